package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Invictus108/NFT-Gift-Bot/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// OrderStore is the durable collection of pending recurring purchase orders.
// An explicit handle is injected into every consumer; nothing reads a global
// database session.
type OrderStore interface {
	DueBefore(ctx context.Context, t time.Time) ([]models.Order, error)
	List(ctx context.Context) ([]models.Order, error)
	Upsert(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PostgresOrderStore implements OrderStore on the orders table.
type PostgresOrderStore struct {
	DB *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{DB: db}
}

const orderColumns = `order_id, name, email, due_at, wallet, funds, price_cap, recurrence_days, preferences_vector, created_at`

// DueBefore returns all orders whose due_at has passed, oldest first.
func (s *PostgresOrderStore) DueBefore(ctx context.Context, t time.Time) ([]models.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE due_at <= $1 ORDER BY due_at ASC`, orderColumns)

	rows, err := s.DB.QueryContext(ctx, query, t)
	if err != nil {
		return nil, fmt.Errorf("failed to query due orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

// List returns all pending orders, newest first.
func (s *PostgresOrderStore) List(ctx context.Context) ([]models.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders ORDER BY created_at DESC`, orderColumns)

	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	return scanOrders(rows)
}

func scanOrders(rows *sql.Rows) ([]models.Order, error) {
	var orders []models.Order
	for rows.Next() {
		var order models.Order
		var prefs pq.Float64Array

		err := rows.Scan(
			&order.ID, &order.Name, &order.Email, &order.DueAt, &order.Wallet,
			&order.Funds, &order.PriceCap, &order.RecurrenceDays, &prefs,
			&order.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order row: %w", err)
		}

		order.Preferences = []float64(prefs)
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// Upsert inserts a new order or overwrites the mutable fields of an existing one.
func (s *PostgresOrderStore) Upsert(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO orders (
			order_id, name, email, due_at, wallet,
			funds, price_cap, recurrence_days, preferences_vector, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10
		)
		ON CONFLICT (order_id) DO UPDATE SET
			due_at = EXCLUDED.due_at,
			funds = EXCLUDED.funds;
	`

	_, err := s.DB.ExecContext(ctx, query,
		order.ID, order.Name, order.Email, order.DueAt, order.Wallet,
		order.Funds, order.PriceCap, order.RecurrenceDays,
		pq.Array(order.Preferences), order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert order %s: %w", order.ID, err)
	}

	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"wallet":   order.Wallet,
		"funds":    order.Funds,
		"due_at":   order.DueAt,
	}).Debug("Order upserted")

	return nil
}

// Delete permanently removes an order; called only when its funds are exhausted.
func (s *PostgresOrderStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM orders WHERE order_id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order %s: %w", id, err)
	}

	logrus.WithField("order_id", id).Info("Order deleted")
	return nil
}

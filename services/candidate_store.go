package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Invictus108/NFT-Gift-Bot/models"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// CandidateStore is the durable NFT inventory cache. ReplaceAll carries
// replace-all semantics: entries absent from the new set are dropped, not
// accumulated.
type CandidateStore interface {
	ReplaceAll(ctx context.Context, candidates []models.Candidate) error
	ScanAll(ctx context.Context) ([]models.Candidate, error)
	RemoveByKey(ctx context.Context, collectionID, tokenID string) error
}

// PostgresCandidateStore implements CandidateStore on the nfts table.
type PostgresCandidateStore struct {
	DB *sql.DB
}

func NewPostgresCandidateStore(db *sql.DB) *PostgresCandidateStore {
	return &PostgresCandidateStore{DB: db}
}

// ReplaceAll swaps the entire inventory in one transaction.
func (s *PostgresCandidateStore) ReplaceAll(ctx context.Context, candidates []models.Candidate) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin inventory transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM nfts`); err != nil {
		return fmt.Errorf("failed to clear inventory: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nfts (
			collection_id, token_id, contract_address, name, description,
			image_url, price, currency, image_embedding, text_embedding, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`)
	if err != nil {
		return fmt.Errorf("failed to prepare inventory insert: %w", err)
	}
	defer stmt.Close()

	for i := range candidates {
		c := &candidates[i]
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}

		_, err := stmt.ExecContext(ctx,
			c.CollectionID, c.TokenID, c.ContractAddress, c.Name, c.Description,
			c.ImageURL, c.Price, c.Currency,
			nullableVector(c.ImageEmbedding), nullableVector(c.TextEmbedding),
			createdAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert candidate %s: %w", c.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit inventory replace: %w", err)
	}

	logrus.WithField("candidate_count", len(candidates)).Info("Inventory replaced")
	return nil
}

// ScanAll loads the full inventory in a stable key order.
func (s *PostgresCandidateStore) ScanAll(ctx context.Context) ([]models.Candidate, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT collection_id, token_id, contract_address, name, description,
		       image_url, price, currency, image_embedding, text_embedding, created_at
		FROM nfts
		ORDER BY collection_id, token_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan inventory: %w", err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		var c models.Candidate
		var imageEmb, textEmb pq.Float64Array

		err := rows.Scan(
			&c.CollectionID, &c.TokenID, &c.ContractAddress, &c.Name,
			&c.Description, &c.ImageURL, &c.Price, &c.Currency,
			&imageEmb, &textEmb, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}

		c.ImageEmbedding = []float64(imageEmb)
		c.TextEmbedding = []float64(textEmb)
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// RemoveByKey deletes a single candidate; used for at-most-once consumption
// the moment the match engine selects it.
func (s *PostgresCandidateStore) RemoveByKey(ctx context.Context, collectionID, tokenID string) error {
	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM nfts WHERE collection_id = $1 AND token_id = $2`,
		collectionID, tokenID)
	if err != nil {
		return fmt.Errorf("failed to remove candidate %s/%s: %w", collectionID, tokenID, err)
	}

	logrus.WithFields(logrus.Fields{
		"collection_id": collectionID,
		"token_id":      tokenID,
	}).Debug("Candidate consumed from inventory")

	return nil
}

// nullableVector maps an absent embedding to SQL NULL instead of an empty array
func nullableVector(v []float64) interface{} {
	if len(v) == 0 {
		return nil
	}
	return pq.Array(v)
}

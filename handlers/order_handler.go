package handlers

import (
	"time"

	"github.com/Invictus108/NFT-Gift-Bot/models"
	"github.com/Invictus108/NFT-Gift-Bot/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type OrderHandler struct {
	Orders      services.OrderStore
	Embedder    services.Embedder
	Coordinator *services.PurchaseCoordinator
}

func NewOrderHandler(orders services.OrderStore, embedder services.Embedder, coordinator *services.PurchaseCoordinator) *OrderHandler {
	return &OrderHandler{
		Orders:      orders,
		Embedder:    embedder,
		Coordinator: coordinator,
	}
}

type createOrderRequest struct {
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Wallet         string    `json:"wallet"`
	Funds          float64   `json:"funds"`
	PriceCap       float64   `json:"price_cap"`
	RecurrenceDays int       `json:"recurrence_days"`
	PreferenceText string    `json:"preference_text"`
	Preferences    []float64 `json:"preferences"`
	DueAt          time.Time `json:"due_at"`
}

func (r *createOrderRequest) validate() string {
	switch {
	case r.Wallet == "":
		return "wallet is required"
	case r.Funds <= 0:
		return "funds must be positive"
	case r.PriceCap <= 0:
		return "price_cap must be positive"
	case r.RecurrenceDays <= 0:
		return "recurrence_days must be positive"
	case r.PreferenceText == "" && len(r.Preferences) == 0:
		return "either preference_text or a preferences vector is required"
	}
	return ""
}

// CreateOrder registers a recurring purchase order. A preference_text body is
// embedded server-side; a raw preferences vector is stored as-is. A zero
// due_at means the order is due on the next fulfillment tick.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	if msg := req.validate(); msg != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   msg,
		})
	}

	preferences := req.Preferences
	if len(preferences) == 0 {
		vector, err := h.Embedder.EmbedText(c.Context(), req.PreferenceText)
		if err != nil {
			logrus.Errorf("Preference embedding failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"success": false,
				"error":   "Preference embedding is currently unavailable",
			})
		}
		preferences = vector
	}

	dueAt := req.DueAt
	if dueAt.IsZero() {
		dueAt = time.Now().UTC()
	}

	order := models.Order{
		ID:             uuid.New(),
		Name:           req.Name,
		Email:          req.Email,
		DueAt:          dueAt,
		Wallet:         req.Wallet,
		Funds:          req.Funds,
		PriceCap:       req.PriceCap,
		RecurrenceDays: req.RecurrenceDays,
		Preferences:    preferences,
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.Orders.Upsert(c.Context(), &order); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,
		"due_at":   order.DueAt,
	}).Info("Order created")

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    order,
	})
}

// GetOrders lists all registered orders.
func (h *OrderHandler) GetOrders(c *fiber.Ctx) error {
	orders, err := h.Orders.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"count":   len(orders),
	})
}

// DeleteOrder cancels an order by ID.
func (h *OrderHandler) DeleteOrder(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("order_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid order ID",
		})
	}

	if err := h.Orders.Delete(c.Context(), orderID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Order deleted",
	})
}

// CheckOrders manually runs one fulfillment tick instead of waiting for the
// scheduler.
func (h *OrderHandler) CheckOrders(c *fiber.Ctx) error {
	logrus.Info("Manual fulfillment tick triggered via API")

	startTime := time.Now()
	summary, err := h.Coordinator.ProcessDueOrders(c.Context(), time.Now().UTC())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"data":     summary,
		"duration": time.Since(startTime).String(),
	})
}

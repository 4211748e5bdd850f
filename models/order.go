package models

import (
	"time"

	"github.com/google/uuid"
)

// Order is a recurring purchase order. Funds, cap, interval and preferences
// are fixed at creation; only Funds and DueAt change afterwards, and only
// through the purchase coordinator.
type Order struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	DueAt          time.Time `json:"due_at"`
	Wallet         string    `json:"wallet"`
	Funds          float64   `json:"funds"`
	PriceCap       float64   `json:"price_cap"`
	RecurrenceDays int       `json:"recurrence_days"`
	Preferences    []float64 `json:"preferences_vector"`
	CreatedAt      time.Time `json:"created_at"`
}

// Budget returns the maximum spend for a single purchase attempt.
func (o *Order) Budget() float64 {
	if o.Funds < o.PriceCap {
		return o.Funds
	}
	return o.PriceCap
}

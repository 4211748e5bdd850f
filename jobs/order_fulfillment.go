package jobs

import (
	"context"
	"time"

	"github.com/Invictus108/NFT-Gift-Bot/services"
	"github.com/sirupsen/logrus"
)

// OrderFulfillmentJob runs one fulfillment tick: every order due at or before
// now gets one purchase attempt.
type OrderFulfillmentJob struct {
	coordinator *services.PurchaseCoordinator
	timeout     time.Duration
}

func NewOrderFulfillmentJob(coordinator *services.PurchaseCoordinator) *OrderFulfillmentJob {
	return &OrderFulfillmentJob{
		coordinator: coordinator,
		timeout:     20 * time.Minute,
	}
}

// Run executes one tick. Errors are logged, never propagated; the scheduler
// always fires the next tick.
func (j *OrderFulfillmentJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	startTime := time.Now()
	logrus.Info("Order fulfillment job started")

	summary, err := j.coordinator.ProcessDueOrders(ctx, time.Now().UTC())
	if err != nil {
		logrus.Errorf("Order fulfillment job failed: %v", err)
		return
	}

	logrus.WithFields(logrus.Fields{
		"due_orders":      summary.DueOrders,
		"purchased":       summary.Purchased,
		"rescheduled":     summary.Rescheduled,
		"deleted":         summary.Deleted,
		"no_fulfillment":  summary.NoFulfillment,
		"failed_attempts": summary.FailedAttempts,
		"duration":        time.Since(startTime),
	}).Info("Order fulfillment job completed")
}

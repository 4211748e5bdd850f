package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/Invictus108/NFT-Gift-Bot/services"
	"github.com/Invictus108/NFT-Gift-Bot/shared"
	"github.com/sirupsen/logrus"
)

// InventoryRefreshJob repopulates the candidate store on a fixed cadence so
// fulfillment ticks usually find fresh inventory already waiting.
type InventoryRefreshJob struct {
	refresher   *services.InventoryRefresher
	targetCount int
	timeout     time.Duration
}

func NewInventoryRefreshJob(refresher *services.InventoryRefresher, targetCount int) *InventoryRefreshJob {
	return &InventoryRefreshJob{
		refresher:   refresher,
		targetCount: targetCount,
		timeout:     30 * time.Minute,
	}
}

// Run executes one refresh pass. A pass already in flight is skipped quietly.
func (j *InventoryRefreshJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	startTime := time.Now()
	logrus.WithField("target_count", j.targetCount).Info("Inventory refresh job started")

	if err := j.refresher.Refresh(ctx, j.targetCount); err != nil {
		if errors.Is(err, shared.ErrRefreshInFlight) {
			logrus.Info("Inventory refresh already in flight, skipping scheduled pass")
			return
		}
		logrus.Errorf("Inventory refresh job failed: %v", err)
		return
	}

	logrus.WithField("duration", time.Since(startTime)).Info("Inventory refresh job completed")
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Invictus108/NFT-Gift-Bot/models"
	"github.com/Invictus108/NFT-Gift-Bot/shared"
	"github.com/sirupsen/logrus"
)

// Outcome is the terminal state of one fulfillment attempt.
type Outcome string

const (
	OutcomePurchased      Outcome = "PURCHASED"
	OutcomeStoreEmpty     Outcome = "STORE_EMPTY"
	OutcomeNoneAffordable Outcome = "NONE_AFFORDABLE"
)

// FulfillmentResult carries the outcome of one FulfillOrder call.
type FulfillmentResult struct {
	Outcome     Outcome           `json:"outcome"`
	AmountSpent float64           `json:"amount_spent,omitempty"`
	Candidate   *models.Candidate `json:"candidate,omitempty"`
	TxHash      string            `json:"tx_hash,omitempty"`
}

// Refresher is the inventory refresh surface the coordinator drives.
type Refresher interface {
	Refresh(ctx context.Context, targetCount int) error
	RefreshAsync(targetCount int) bool
	InFlight() bool
}

// ListingValidator re-checks that a selected candidate still has a live
// affordable listing before committing.
type ListingValidator interface {
	BestListing(ctx context.Context, slug, tokenID string) (models.PriceQuote, error)
}

// Purchaser commits the on-chain buy and transfer for a validated candidate.
type Purchaser interface {
	Buy(ctx context.Context, candidate models.Candidate, recipientWallet string) (string, error)
}

// PurchaseNotifier delivers the post-purchase email. Failures are logged,
// never fatal to fulfillment.
type PurchaseNotifier interface {
	NotifyPurchase(ctx context.Context, order *models.Order, candidate *models.Candidate, amount float64, txHash string) error
}

// CoordinatorConfig tunes fulfillment behavior.
type CoordinatorConfig struct {
	TargetInventorySize int
	LowWaterMark        int
}

// PurchaseCoordinator orchestrates the end-to-end buy attempt for each due
// order: refresh when inventory is stale or empty, rank, validate, commit, and
// reschedule or delete the order afterwards.
type PurchaseCoordinator struct {
	orders     OrderStore
	candidates CandidateStore
	refresher  Refresher
	matcher    *MatchEngine
	listings   ListingValidator
	purchaser  Purchaser
	notifier   PurchaseNotifier
	config     CoordinatorConfig
	metrics    *shared.ServiceMetrics
}

func NewPurchaseCoordinator(
	orders OrderStore,
	candidates CandidateStore,
	refresher Refresher,
	matcher *MatchEngine,
	listings ListingValidator,
	purchaser Purchaser,
	notifier PurchaseNotifier,
	config CoordinatorConfig,
) *PurchaseCoordinator {
	if config.TargetInventorySize <= 0 {
		config.TargetInventorySize = 200
	}
	if config.LowWaterMark <= 0 {
		config.LowWaterMark = 20
	}
	return &PurchaseCoordinator{
		orders:     orders,
		candidates: candidates,
		refresher:  refresher,
		matcher:    matcher,
		listings:   listings,
		purchaser:  purchaser,
		notifier:   notifier,
		config:     config,
		metrics:    shared.NewServiceMetrics("purchase-coordinator"),
	}
}

// FulfillOrder runs one bounded matching loop for a single due order. The
// attempt bound is the candidate count plus one (worst case tries every
// candidate once), recomputed after a refresh changes the inventory. The loop
// never mutates the order; ProcessDueOrders applies funds and scheduling
// afterwards.
func (pc *PurchaseCoordinator) FulfillOrder(ctx context.Context, order *models.Order) (FulfillmentResult, error) {
	budget := order.Budget()

	attempts := 0
	maxAttempts := -1 // set from the first inventory scan
	refreshedOnEmpty := false
	refreshedOnMiss := false
	sawUnaffordable := false

	for {
		candidates, err := pc.candidates.ScanAll(ctx)
		if err != nil {
			return FulfillmentResult{}, err
		}

		if maxAttempts < 0 {
			maxAttempts = len(candidates) + 1
		}
		if attempts > maxAttempts {
			return pc.exhausted(sawUnaffordable), nil
		}

		if len(candidates) == 0 {
			// Never block behind a concurrent refresh; the order stays due
			// for the next tick
			if pc.refresher.InFlight() || refreshedOnEmpty {
				return FulfillmentResult{Outcome: OutcomeStoreEmpty}, nil
			}
			if err := pc.syncRefresh(ctx); err != nil {
				if errors.Is(err, shared.ErrRefreshInFlight) {
					return FulfillmentResult{Outcome: OutcomeStoreEmpty}, nil
				}
				return FulfillmentResult{}, err
			}
			refreshedOnEmpty = true
			continue // retry at the same attempt count
		}

		if len(candidates) < pc.config.LowWaterMark && !pc.refresher.InFlight() {
			if pc.refresher.RefreshAsync(pc.config.TargetInventorySize) {
				logrus.WithField("candidate_count", len(candidates)).
					Info("Inventory below low-water mark, background refresh started")
			}
		}

		best := pc.matcher.SelectBest(order, candidates)
		if best == nil {
			sawUnaffordable = true
			if refreshedOnMiss || pc.refresher.InFlight() {
				return FulfillmentResult{Outcome: OutcomeNoneAffordable}, nil
			}
			if err := pc.syncRefresh(ctx); err != nil && !errors.Is(err, shared.ErrRefreshInFlight) {
				return FulfillmentResult{}, err
			}
			refreshedOnMiss = true
			attempts++
			maxAttempts = -1 // rebound from the refreshed candidate count
			continue
		}

		// Consume immediately so a second fulfillment in the same tick can
		// never re-select it; this is deliberately irrevocable even when the
		// validation below fails
		if err := pc.candidates.RemoveByKey(ctx, best.CollectionID, best.TokenID); err != nil {
			return FulfillmentResult{}, err
		}

		quote, err := pc.listings.BestListing(ctx, best.CollectionID, best.TokenID)
		if err != nil || quote.Price <= 0 || quote.Price > budget {
			if err == nil && quote.Price > budget {
				sawUnaffordable = true
			}
			logrus.WithFields(logrus.Fields{
				"collection_id": best.CollectionID,
				"token_id":      best.TokenID,
				"budget":        budget,
			}).Debug("Selected candidate no longer has a valid affordable listing")
			pc.metrics.IncrementCounter("stale_candidates")
			attempts++
			continue
		}

		txHash, err := pc.purchaser.Buy(ctx, *best, order.Wallet)
		if err != nil {
			return FulfillmentResult{}, fmt.Errorf("purchase commit failed for %s: %w", best.Key(), err)
		}

		logrus.WithFields(logrus.Fields{
			"order_id":      order.ID,
			"collection_id": best.CollectionID,
			"token_id":      best.TokenID,
			"price":         quote.Price,
			"currency":      quote.Currency,
			"tx_hash":       txHash,
		}).Info("Purchase committed")

		return FulfillmentResult{
			Outcome:     OutcomePurchased,
			AmountSpent: quote.Price,
			Candidate:   best,
			TxHash:      txHash,
		}, nil
	}
}

func (pc *PurchaseCoordinator) syncRefresh(ctx context.Context) error {
	return pc.refresher.Refresh(ctx, pc.config.TargetInventorySize)
}

func (pc *PurchaseCoordinator) exhausted(sawUnaffordable bool) FulfillmentResult {
	if sawUnaffordable {
		return FulfillmentResult{Outcome: OutcomeNoneAffordable}
	}
	return FulfillmentResult{Outcome: OutcomeStoreEmpty}
}

// ProcessSummary reports one fulfillment tick.
type ProcessSummary struct {
	DueOrders      int `json:"due_orders"`
	Purchased      int `json:"purchased"`
	Deleted        int `json:"deleted"`
	Rescheduled    int `json:"rescheduled"`
	NoFulfillment  int `json:"no_fulfillment"`
	FailedAttempts int `json:"failed_attempts"`
}

// ProcessDueOrders is the scheduler-facing entry point: it fulfills every due
// order sequentially and applies the post-purchase order mutation. A purchase
// reduces funds; when the remainder still exceeds the price cap the order is
// rescheduled, otherwise it is deleted. Non-purchase outcomes leave the order
// untouched for the next tick.
func (pc *PurchaseCoordinator) ProcessDueOrders(ctx context.Context, now time.Time) (ProcessSummary, error) {
	due, err := pc.orders.DueBefore(ctx, now)
	if err != nil {
		return ProcessSummary{}, err
	}

	summary := ProcessSummary{DueOrders: len(due)}

	for i := range due {
		order := due[i]

		startTime := time.Now()
		result, err := pc.FulfillOrder(ctx, &order)
		pc.metrics.RecordRequest(err == nil, time.Since(startTime))

		if err != nil {
			// The order stays due and is retried next tick; no error deletes
			// an order
			logrus.Errorf("Fulfillment failed for order %s: %v", order.ID, err)
			summary.FailedAttempts++
			continue
		}

		if result.Outcome != OutcomePurchased {
			logrus.WithFields(logrus.Fields{
				"order_id": order.ID,
				"outcome":  result.Outcome,
			}).Info("No purchase this tick, order left untouched")
			summary.NoFulfillment++
			continue
		}

		order.Funds -= result.AmountSpent
		summary.Purchased++

		if order.Funds > order.PriceCap {
			order.DueAt = now.AddDate(0, 0, order.RecurrenceDays)
			if err := pc.orders.Upsert(ctx, &order); err != nil {
				logrus.Errorf("Failed to reschedule order %s: %v", order.ID, err)
				summary.FailedAttempts++
				continue
			}
			summary.Rescheduled++
		} else {
			// Remaining funds can no longer cover a capped purchase
			if err := pc.orders.Delete(ctx, order.ID); err != nil {
				logrus.Errorf("Failed to delete exhausted order %s: %v", order.ID, err)
				summary.FailedAttempts++
				continue
			}
			summary.Deleted++
		}

		if pc.notifier != nil {
			if err := pc.notifier.NotifyPurchase(ctx, &order, result.Candidate, result.AmountSpent, result.TxHash); err != nil {
				logrus.Warnf("Purchase notification failed for order %s: %v", order.ID, err)
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"due_orders":  summary.DueOrders,
		"purchased":   summary.Purchased,
		"rescheduled": summary.Rescheduled,
		"deleted":     summary.Deleted,
	}).Info("Fulfillment tick completed")

	return summary, nil
}

// Metrics exposes coordinator counters for reporting endpoints.
func (pc *PurchaseCoordinator) Metrics() *shared.ServiceMetrics {
	return pc.metrics
}

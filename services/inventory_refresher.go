package services

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Invictus108/NFT-Gift-Bot/models"
	"github.com/Invictus108/NFT-Gift-Bot/shared"
	"github.com/sirupsen/logrus"
)

// PriceIndex lists collections cheapest-floor-first.
type PriceIndex interface {
	CollectionsByFloorAsc(ctx context.Context, chain string, limit int) ([]string, error)
}

// SlugResolver maps a contract address to its marketplace collection slug.
type SlugResolver interface {
	ResolveSlug(ctx context.Context, contractAddress string) (string, error)
}

// ListingCatalog is the marketplace surface the refresher reads from.
type ListingCatalog interface {
	ActiveListings(ctx context.Context, slug string, ceiling float64) ([]models.Listing, error)
	Metadata(ctx context.Context, contractAddress, tokenID string) (models.Metadata, error)
}

// Embedder produces fixed-dimensionality vectors for candidate text and images.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
	EmbedImage(ctx context.Context, imageURL string) ([]float64, error)
}

// RefresherConfig tunes one refresh pass.
type RefresherConfig struct {
	Chain           string
	PriceCeiling    float64
	CollectionLimit int
}

// InventoryRefresher repopulates the candidate store from live marketplace
// listings, walking collections cheapest-first and reusing stored embeddings
// for keys already present. It owns the single in-flight guard: at most one
// refresh runs at a time, process-wide.
type InventoryRefresher struct {
	candidates CandidateStore
	priceIndex PriceIndex
	slugs      SlugResolver
	catalog    ListingCatalog
	embedder   Embedder
	config     RefresherConfig
	metrics    *shared.ServiceMetrics

	inFlight atomic.Bool
}

func NewInventoryRefresher(
	candidates CandidateStore,
	priceIndex PriceIndex,
	slugs SlugResolver,
	catalog ListingCatalog,
	embedder Embedder,
	config RefresherConfig,
) *InventoryRefresher {
	if config.CollectionLimit <= 0 {
		config.CollectionLimit = 250
	}
	return &InventoryRefresher{
		candidates: candidates,
		priceIndex: priceIndex,
		slugs:      slugs,
		catalog:    catalog,
		embedder:   embedder,
		config:     config,
		metrics:    shared.NewServiceMetrics("inventory-refresher"),
	}
}

// InFlight reports whether a refresh is currently running.
func (r *InventoryRefresher) InFlight() bool {
	return r.inFlight.Load()
}

// Refresh runs one synchronous refresh pass. Returns ErrRefreshInFlight when
// another refresh already holds the guard. The guard clears on every exit
// path, success or failure; a stuck flag would starve all future refreshes.
func (r *InventoryRefresher) Refresh(ctx context.Context, targetCount int) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		return shared.ErrRefreshInFlight
	}
	defer r.inFlight.Store(false)

	return r.doRefresh(ctx, targetCount)
}

// RefreshAsync starts a refresh on a background goroutine without blocking the
// caller. Returns false when a refresh is already in flight.
func (r *InventoryRefresher) RefreshAsync(targetCount int) bool {
	if !r.inFlight.CompareAndSwap(false, true) {
		return false
	}

	go func() {
		defer r.inFlight.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		if err := r.doRefresh(ctx, targetCount); err != nil {
			logrus.Errorf("Background inventory refresh failed: %v", err)
		}
	}()

	return true
}

func (r *InventoryRefresher) doRefresh(ctx context.Context, targetCount int) error {
	startTime := time.Now()
	logrus.WithFields(logrus.Fields{
		"target_count":  targetCount,
		"chain":         r.config.Chain,
		"price_ceiling": r.config.PriceCeiling,
	}).Info("Starting inventory refresh")

	contracts, err := r.priceIndex.CollectionsByFloorAsc(ctx, r.config.Chain, r.config.CollectionLimit)
	if err != nil {
		// A total listing failure aborts the refresh; per-item failures below
		// are skip-and-continue
		r.metrics.RecordRequest(false, time.Since(startTime))
		return err
	}

	existing, err := r.candidates.ScanAll(ctx)
	if err != nil {
		r.metrics.RecordRequest(false, time.Since(startTime))
		return err
	}

	existingByKey := make(map[string]models.Candidate, len(existing))
	for _, candidate := range existing {
		existingByKey[candidate.Key()] = candidate
	}

	merged := make(map[string]models.Candidate)
	retained, embedded, skipped := 0, 0, 0

	for _, contract := range contracts {
		if len(merged) >= targetCount {
			break
		}

		slug, err := r.slugs.ResolveSlug(ctx, contract)
		if err != nil {
			logrus.Debugf("Skipping collection %s: %v", contract, err)
			skipped++
			continue
		}

		listings, err := r.catalog.ActiveListings(ctx, slug, r.config.PriceCeiling)
		if err != nil {
			logrus.Warnf("Skipping collection %s listings: %v", slug, err)
			skipped++
			continue
		}

		for _, listing := range listings {
			if len(merged) >= targetCount {
				break
			}

			// Malformed source keys are skipped, never inserted
			if listing.CollectionSlug == "" || listing.TokenID == "" {
				skipped++
				continue
			}

			key := listing.CollectionSlug + "/" + listing.TokenID
			if _, seen := merged[key]; seen {
				continue
			}

			// A key already in the store keeps its stored record unchanged,
			// avoiding a re-embed
			if stored, ok := existingByKey[key]; ok {
				merged[key] = stored
				retained++
				continue
			}

			candidate, err := r.buildCandidate(ctx, listing)
			if err != nil {
				logrus.Debugf("Skipping listing %s: %v", key, err)
				skipped++
				continue
			}

			merged[key] = candidate
			embedded++
		}
	}

	if err := r.commitMerged(ctx, merged); err != nil {
		r.metrics.RecordRequest(false, time.Since(startTime))
		return err
	}

	r.metrics.RecordRequest(true, time.Since(startTime))
	logrus.WithFields(logrus.Fields{
		"total":    len(merged),
		"retained": retained,
		"embedded": embedded,
		"skipped":  skipped,
		"duration": time.Since(startTime),
	}).Info("Inventory refresh completed")

	return nil
}

// buildCandidate fetches metadata and computes embeddings for one new listing.
// Embedding failures degrade to nil vectors; only metadata fetch failures skip
// the listing.
func (r *InventoryRefresher) buildCandidate(ctx context.Context, listing models.Listing) (models.Candidate, error) {
	metadata, err := r.catalog.Metadata(ctx, listing.ContractAddress, listing.TokenID)
	if err != nil {
		return models.Candidate{}, err
	}

	candidate := models.Candidate{
		CollectionID:    listing.CollectionSlug,
		TokenID:         listing.TokenID,
		ContractAddress: listing.ContractAddress,
		Name:            metadata.Name,
		Description:     metadata.Description,
		ImageURL:        metadata.ImageURL,
		Price:           listing.Price,
		Currency:        listing.Currency,
		CreatedAt:       time.Now().UTC(),
	}

	if metadata.Description != "" {
		if vector, err := r.embedder.EmbedText(ctx, metadata.Description); err == nil {
			candidate.TextEmbedding = vector
		} else {
			logrus.Debugf("Text embedding unavailable for %s: %v", candidate.Key(), err)
			r.metrics.IncrementCounter("text_embedding_failures")
		}
	}

	if metadata.ImageURL != "" {
		if vector, err := r.embedder.EmbedImage(ctx, metadata.ImageURL); err == nil {
			candidate.ImageEmbedding = vector
		} else {
			logrus.Debugf("Image embedding unavailable for %s: %v", candidate.Key(), err)
			r.metrics.IncrementCounter("image_embedding_failures")
		}
	}

	return candidate, nil
}

// commitMerged writes the merged set with replace-all semantics in a stable
// key order, so two identical passes leave the store byte-for-byte equal.
func (r *InventoryRefresher) commitMerged(ctx context.Context, merged map[string]models.Candidate) error {
	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	candidates := make([]models.Candidate, 0, len(merged))
	for _, key := range keys {
		candidates = append(candidates, merged[key])
	}

	return r.candidates.ReplaceAll(ctx, candidates)
}

// Metrics exposes refresher counters for the admin inventory endpoint.
func (r *InventoryRefresher) Metrics() *shared.ServiceMetrics {
	return r.metrics
}

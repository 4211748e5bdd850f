package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/Invictus108/NFT-Gift-Bot/models"
	"github.com/Invictus108/NFT-Gift-Bot/shared"
)

type stubPriceIndex struct {
	contracts []string
	err       error
	block     chan struct{}
}

func (s *stubPriceIndex) CollectionsByFloorAsc(context.Context, string, int) ([]string, error) {
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.contracts, nil
}

type stubSlugResolver struct {
	slugs map[string]string
}

func (s *stubSlugResolver) ResolveSlug(_ context.Context, contract string) (string, error) {
	if slug, ok := s.slugs[contract]; ok {
		return slug, nil
	}
	return "", fmt.Errorf("no slug for %s", contract)
}

type stubCatalog struct {
	listings map[string][]models.Listing
	metadata map[string]models.Metadata
}

func (s *stubCatalog) ActiveListings(_ context.Context, slug string, _ float64) ([]models.Listing, error) {
	if listings, ok := s.listings[slug]; ok {
		return listings, nil
	}
	return nil, fmt.Errorf("no listings for %s", slug)
}

func (s *stubCatalog) Metadata(_ context.Context, contractAddress, tokenID string) (models.Metadata, error) {
	if metadata, ok := s.metadata[contractAddress+"/"+tokenID]; ok {
		return metadata, nil
	}
	return models.Metadata{}, fmt.Errorf("no metadata for %s/%s", contractAddress, tokenID)
}

type countingEmbedder struct {
	textCalls  int
	imageCalls int
}

func (e *countingEmbedder) EmbedText(context.Context, string) ([]float64, error) {
	e.textCalls++
	return []float64{0.1, 0.2}, nil
}

func (e *countingEmbedder) EmbedImage(context.Context, string) ([]float64, error) {
	e.imageCalls++
	return []float64{0.3, 0.4}, nil
}

func listing(slug, contract, tokenID string, price float64) models.Listing {
	return models.Listing{
		CollectionSlug:  slug,
		ContractAddress: contract,
		TokenID:         tokenID,
		Price:           price,
		Currency:        "ETH",
	}
}

func refresherFixture(store *memCandidateStore, embedder *countingEmbedder) *InventoryRefresher {
	priceIndex := &stubPriceIndex{contracts: []string{"0xaaa", "0xbbb"}}
	slugs := &stubSlugResolver{slugs: map[string]string{
		"0xaaa": "cool-cats",
		"0xbbb": "pixel-dogs",
	}}
	catalog := &stubCatalog{
		listings: map[string][]models.Listing{
			"cool-cats":  {listing("cool-cats", "0xaaa", "1", 0.2), listing("cool-cats", "0xaaa", "2", 0.3)},
			"pixel-dogs": {listing("pixel-dogs", "0xbbb", "7", 0.5)},
		},
		metadata: map[string]models.Metadata{
			"0xaaa/1": {Name: "Cat #1", Description: "a cool cat", ImageURL: "https://img/1.png"},
			"0xaaa/2": {Name: "Cat #2", Description: "another cat", ImageURL: "https://img/2.png"},
			"0xbbb/7": {Name: "Dog #7", Description: "a pixel dog", ImageURL: "https://img/7.png"},
		},
	}

	return NewInventoryRefresher(store, priceIndex, slugs, catalog, embedder, RefresherConfig{
		Chain:        "ethereum",
		PriceCeiling: 1.0,
	})
}

func TestRefreshPopulatesStore(t *testing.T) {
	store := &memCandidateStore{}
	embedder := &countingEmbedder{}
	refresher := refresherFixture(store, embedder)

	if err := refresher.Refresh(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(store.candidates))
	}
	for _, candidate := range store.candidates {
		if !candidate.HasEmbedding() {
			t.Errorf("candidate %s stored without any embedding", candidate.Key())
		}
	}
	if embedder.textCalls != 3 || embedder.imageCalls != 3 {
		t.Errorf("expected 3 text and 3 image embeddings, got %d/%d", embedder.textCalls, embedder.imageCalls)
	}
}

func TestRefreshIsIdempotent(t *testing.T) {
	store := &memCandidateStore{}
	refresher := refresherFixture(store, &countingEmbedder{})
	ctx := context.Background()

	if err := refresher.Refresh(ctx, 10); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	first := append([]models.Candidate(nil), store.candidates...)

	if err := refresher.Refresh(ctx, 10); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}

	if !reflect.DeepEqual(first, store.candidates) {
		t.Error("two refreshes over unchanged listings must leave the store identical")
	}
}

func TestRefreshReusesStoredEmbeddings(t *testing.T) {
	store := &memCandidateStore{}
	embedder := &countingEmbedder{}
	refresher := refresherFixture(store, embedder)
	ctx := context.Background()

	if err := refresher.Refresh(ctx, 10); err != nil {
		t.Fatalf("first refresh failed: %v", err)
	}
	firstTextCalls := embedder.textCalls

	if err := refresher.Refresh(ctx, 10); err != nil {
		t.Fatalf("second refresh failed: %v", err)
	}

	if embedder.textCalls != firstTextCalls {
		t.Errorf("already-stored candidates must not be re-embedded, calls went %d -> %d",
			firstTextCalls, embedder.textCalls)
	}
}

func TestRefreshDropsStaleEntries(t *testing.T) {
	store := &memCandidateStore{candidates: []models.Candidate{
		{CollectionID: "gone-collection", TokenID: "99", Price: 0.1, ImageEmbedding: []float64{1}},
	}}
	refresher := refresherFixture(store, &countingEmbedder{})

	if err := refresher.Refresh(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, candidate := range store.candidates {
		if candidate.CollectionID == "gone-collection" {
			t.Error("replace-all semantics must drop entries absent from live listings")
		}
	}
}

func TestRefreshHonorsTargetCount(t *testing.T) {
	store := &memCandidateStore{}
	refresher := refresherFixture(store, &countingEmbedder{})

	if err := refresher.Refresh(context.Background(), 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.candidates) != 2 {
		t.Errorf("expected the store capped at 2 candidates, got %d", len(store.candidates))
	}
}

func TestRefreshSkipsMalformedListings(t *testing.T) {
	store := &memCandidateStore{}
	priceIndex := &stubPriceIndex{contracts: []string{"0xaaa"}}
	slugs := &stubSlugResolver{slugs: map[string]string{"0xaaa": "cool-cats"}}
	catalog := &stubCatalog{
		listings: map[string][]models.Listing{
			"cool-cats": {
				{CollectionSlug: "cool-cats", ContractAddress: "0xaaa", TokenID: "", Price: 0.2},
				listing("cool-cats", "0xaaa", "1", 0.2),
			},
		},
		metadata: map[string]models.Metadata{
			"0xaaa/1": {Name: "Cat #1", Description: "a cool cat"},
		},
	}
	refresher := NewInventoryRefresher(store, priceIndex, slugs, catalog, &countingEmbedder{}, RefresherConfig{
		Chain:        "ethereum",
		PriceCeiling: 1.0,
	})

	if err := refresher.Refresh(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.candidates) != 1 {
		t.Fatalf("malformed listing must be skipped, got %d candidates", len(store.candidates))
	}
	if store.candidates[0].TokenID != "1" {
		t.Errorf("expected only token 1 stored, got %s", store.candidates[0].TokenID)
	}
}

func TestRefreshGuardClearsOnFailure(t *testing.T) {
	store := &memCandidateStore{}
	priceIndex := &stubPriceIndex{err: errors.New("index down")}
	refresher := NewInventoryRefresher(store, priceIndex, &stubSlugResolver{}, &stubCatalog{}, &countingEmbedder{}, RefresherConfig{
		Chain:        "ethereum",
		PriceCeiling: 1.0,
	})

	if err := refresher.Refresh(context.Background(), 10); err == nil {
		t.Fatal("expected the refresh to fail")
	}
	if refresher.InFlight() {
		t.Fatal("in-flight guard must clear after a failed refresh")
	}

	// A later refresh must be admitted, not rejected as concurrent
	priceIndex.err = nil
	if err := refresher.Refresh(context.Background(), 10); errors.Is(err, shared.ErrRefreshInFlight) {
		t.Fatal("guard leaked: follow-up refresh rejected as concurrent")
	}
}

func TestRefreshRejectsConcurrentPass(t *testing.T) {
	store := &memCandidateStore{}
	block := make(chan struct{})
	priceIndex := &stubPriceIndex{block: block}
	refresher := NewInventoryRefresher(store, priceIndex, &stubSlugResolver{}, &stubCatalog{}, &countingEmbedder{}, RefresherConfig{
		Chain:        "ethereum",
		PriceCeiling: 1.0,
	})

	if !refresher.RefreshAsync(10) {
		t.Fatal("first async refresh should start")
	}

	deadline := time.Now().Add(2 * time.Second)
	for !refresher.InFlight() {
		if time.Now().After(deadline) {
			t.Fatal("refresh never reported in flight")
		}
		time.Sleep(time.Millisecond)
	}

	if err := refresher.Refresh(context.Background(), 10); !errors.Is(err, shared.ErrRefreshInFlight) {
		t.Errorf("expected ErrRefreshInFlight, got %v", err)
	}
	if refresher.RefreshAsync(10) {
		t.Error("second async refresh must be rejected while one runs")
	}

	close(block)

	for refresher.InFlight() {
		if time.Now().After(deadline.Add(2 * time.Second)) {
			t.Fatal("refresh never finished")
		}
		time.Sleep(time.Millisecond)
	}
}

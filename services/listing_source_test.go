package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Invictus108/NFT-Gift-Bot/shared"
)

func testServiceConfig(baseURL string) shared.ServiceConfig {
	return shared.ServiceConfig{
		BaseURL:            baseURL,
		HTTPRequestTimeout: 5 * time.Second,
		RequestRateLimit:   0,
		MaxRetryAttempts:   0,
	}
}

func openSeaClientForTest(t *testing.T, handler http.HandlerFunc) (*OpenSeaClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	factory := shared.NewHTTPClientFactory(5 * time.Second)
	client := NewOpenSeaClient(testServiceConfig(server.URL), "test-key", "ethereum", factory, nil)
	return client, server
}

const listingsPayload = `{
	"listings": [
		{
			"status": "ACTIVE",
			"price": {"current": {"currency": "ETH", "decimals": 18, "value": "200000000000000000"}},
			"protocol_data": {"parameters": {"offer": [{"token": "0xaaa", "identifierOrCriteria": "1"}]}}
		},
		{
			"status": "EXPIRED",
			"price": {"current": {"currency": "ETH", "decimals": 18, "value": "100000000000000000"}},
			"protocol_data": {"parameters": {"offer": [{"token": "0xaaa", "identifierOrCriteria": "2"}]}}
		},
		{
			"status": "ACTIVE",
			"price": {"current": {"currency": "ETH", "decimals": 18, "value": "300000000000000000"}},
			"protocol_data": {"parameters": {"offer": []}}
		},
		{
			"status": "ACTIVE",
			"price": {"current": {"currency": "ETH", "decimals": 18, "value": "5000000000000000000"}},
			"protocol_data": {"parameters": {"offer": [{"token": "0xaaa", "identifierOrCriteria": "3"}]}}
		}
	]
}`

func TestActiveListingsFiltersAndConverts(t *testing.T) {
	client, _ := openSeaClientForTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing API key header")
		}
		fmt.Fprint(w, listingsPayload)
	})

	listings, err := client.ActiveListings(context.Background(), "cool-cats", 1.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// One survivor: ACTIVE, well-formed offer, price 0.2 under the 1.0 ceiling.
	// EXPIRED status, the empty offer block and the 5.0 ETH listing all drop.
	if len(listings) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(listings))
	}

	got := listings[0]
	if got.TokenID != "1" || got.ContractAddress != "0xaaa" {
		t.Errorf("unexpected listing identity: %+v", got)
	}
	if got.Price != 0.2 {
		t.Errorf("expected price 0.2 from 2e17 wei at 18 decimals, got %g", got.Price)
	}
	if got.Currency != "ETH" {
		t.Errorf("expected ETH, got %s", got.Currency)
	}
	if got.CollectionSlug != "cool-cats" {
		t.Errorf("expected slug cool-cats, got %s", got.CollectionSlug)
	}
}

func TestBestListingParsesQuote(t *testing.T) {
	client, _ := openSeaClientForTest(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"price": {"current": {"currency": "ETH", "decimals": 18, "value": "450000000000000000"}}}`)
	})

	quote, err := client.BestListing(context.Background(), "cool-cats", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Price != 0.45 || quote.Currency != "ETH" {
		t.Errorf("unexpected quote: %+v", quote)
	}
}

func TestBestListingMalformedPriceIsError(t *testing.T) {
	client, _ := openSeaClientForTest(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"price": {"current": {"currency": "", "decimals": 0, "value": ""}}}`)
	})

	if _, err := client.BestListing(context.Background(), "cool-cats", "1"); err == nil {
		t.Fatal("a malformed price block must be an error, not a zero quote")
	}
}

func TestMetadataFromAPIPayload(t *testing.T) {
	client, _ := openSeaClientForTest(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"nft": {"identifier": "1", "collection": "cool-cats", "name": "Cat #1", "description": "a cool cat", "image_url": "https://img/1.png"}}`)
	})

	metadata, err := client.Metadata(context.Background(), "0xaaa", "1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metadata.Name != "Cat #1" || metadata.Description != "a cool cat" || metadata.ImageURL != "https://img/1.png" {
		t.Errorf("unexpected metadata: %+v", metadata)
	}
}

func TestParsePriceBlock(t *testing.T) {
	cases := []struct {
		name     string
		currency string
		decimals int
		value    string
		want     float64
		wantErr  bool
	}{
		{"eth wei", "ETH", 18, "1000000000000000000", 1.0, false},
		{"fractional", "ETH", 18, "250000000000000000", 0.25, false},
		{"zero decimals", "USDC", 0, "42", 42, false},
		{"missing value", "ETH", 18, "", 0, true},
		{"missing currency", "", 18, "1000", 0, true},
		{"non-numeric", "ETH", 18, "abc", 0, true},
		{"zero price", "ETH", 18, "0", 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var block openSeaPriceBlock
			block.Current.Currency = tc.currency
			block.Current.Decimals = tc.decimals
			block.Current.Value = tc.value

			price, currency, err := parsePriceBlock(block)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got price %g", price)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if price != tc.want {
				t.Errorf("expected %g, got %g", tc.want, price)
			}
			if currency != tc.currency {
				t.Errorf("expected currency %s, got %s", tc.currency, currency)
			}
		})
	}
}

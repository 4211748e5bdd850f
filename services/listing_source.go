package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Invictus108/NFT-Gift-Bot/models"
	"github.com/Invictus108/NFT-Gift-Bot/shared"
	"github.com/sirupsen/logrus"
)

// OpenSeaClient talks to the OpenSea v2 API. All calls go through the shared
// client factory, retry helper and per-provider rate limiter.
type OpenSeaClient struct {
	config      shared.ServiceConfig
	apiKey      string
	chain       string
	factory     *shared.HTTPClientFactory
	rateLimiter *shared.HTTPRequestRateLimiter
	scraper     *ItemPageScraper
}

// NewOpenSeaClient creates an OpenSea client. scraper may be nil to disable
// the item-page metadata fallback.
func NewOpenSeaClient(config shared.ServiceConfig, apiKey, chain string, factory *shared.HTTPClientFactory, scraper *ItemPageScraper) *OpenSeaClient {
	return &OpenSeaClient{
		config:      config,
		apiKey:      apiKey,
		chain:       chain,
		factory:     factory,
		rateLimiter: shared.NewHTTPRequestRateLimiter(config.RequestRateLimit),
		scraper:     scraper,
	}
}

type openSeaPriceBlock struct {
	Current struct {
		Currency string `json:"currency"`
		Decimals int    `json:"decimals"`
		Value    string `json:"value"`
	} `json:"current"`
}

type openSeaListingsResponse struct {
	Listings []struct {
		Status       string            `json:"status"`
		Price        openSeaPriceBlock `json:"price"`
		ProtocolData struct {
			Parameters struct {
				Offer []struct {
					Token                string `json:"token"`
					IdentifierOrCriteria string `json:"identifierOrCriteria"`
				} `json:"offer"`
			} `json:"parameters"`
		} `json:"protocol_data"`
	} `json:"listings"`
}

type openSeaNFTResponse struct {
	NFT struct {
		Identifier  string `json:"identifier"`
		Collection  string `json:"collection"`
		Name        string `json:"name"`
		Description string `json:"description"`
		ImageURL    string `json:"image_url"`
	} `json:"nft"`
}

// ActiveListings returns ACTIVE listings for a collection priced at or below
// ceiling. Listings with a missing or malformed price or offer block are
// dropped, not surfaced as errors.
func (c *OpenSeaClient) ActiveListings(ctx context.Context, slug string, ceiling float64) ([]models.Listing, error) {
	endpoint := fmt.Sprintf("%s/api/v2/listings/collection/%s/all", c.config.BaseURL, url.PathEscape(slug))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, shared.NewExternalFetchError("opensea", "ActiveListings", err)
	}

	var response openSeaListingsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, shared.NewExternalFetchError("opensea", "ActiveListings", err)
	}

	var listings []models.Listing
	skipped := 0
	for _, entry := range response.Listings {
		if entry.Status != "ACTIVE" {
			continue
		}

		price, currency, err := parsePriceBlock(entry.Price)
		if err != nil {
			skipped++
			continue
		}

		offers := entry.ProtocolData.Parameters.Offer
		if len(offers) == 0 || offers[0].Token == "" || offers[0].IdentifierOrCriteria == "" {
			skipped++
			continue
		}

		if price > ceiling {
			continue
		}

		listings = append(listings, models.Listing{
			CollectionSlug:  slug,
			ContractAddress: offers[0].Token,
			TokenID:         offers[0].IdentifierOrCriteria,
			Price:           price,
			Currency:        currency,
		})
	}

	logrus.WithFields(logrus.Fields{
		"collection_slug": slug,
		"active_listings": len(listings),
		"skipped":         skipped,
		"price_ceiling":   ceiling,
	}).Debug("Fetched collection listings")

	return listings, nil
}

// BestListing returns the best current price for a single NFT. Any malformed
// or missing price block is an error; the caller treats it as an invalid
// candidate.
func (c *OpenSeaClient) BestListing(ctx context.Context, slug, tokenID string) (models.PriceQuote, error) {
	endpoint := fmt.Sprintf("%s/api/v2/listings/collection/%s/nfts/%s/best",
		c.config.BaseURL, url.PathEscape(slug), url.PathEscape(tokenID))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return models.PriceQuote{}, shared.NewExternalFetchError("opensea", "BestListing", err)
	}

	var response struct {
		Price openSeaPriceBlock `json:"price"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return models.PriceQuote{}, shared.NewExternalFetchError("opensea", "BestListing", err)
	}

	price, currency, err := parsePriceBlock(response.Price)
	if err != nil {
		return models.PriceQuote{}, shared.NewExternalFetchError("opensea", "BestListing", err)
	}

	return models.PriceQuote{Currency: currency, Price: price}, nil
}

// Metadata returns name/description/image for a single NFT. When the API
// returns neither a name nor a description, the item-page scraper fallback
// fills in what it can; scraper failures degrade to the API payload.
func (c *OpenSeaClient) Metadata(ctx context.Context, contractAddress, tokenID string) (models.Metadata, error) {
	endpoint := fmt.Sprintf("%s/api/v2/chain/%s/contract/%s/nfts/%s",
		c.config.BaseURL, url.PathEscape(c.chain), url.PathEscape(contractAddress), url.PathEscape(tokenID))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return models.Metadata{}, shared.NewExternalFetchError("opensea", "Metadata", err)
	}

	var response openSeaNFTResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return models.Metadata{}, shared.NewExternalFetchError("opensea", "Metadata", err)
	}

	metadata := models.Metadata{
		Name:        response.NFT.Name,
		Description: response.NFT.Description,
		ImageURL:    response.NFT.ImageURL,
	}

	if metadata.Name == "" && metadata.Description == "" && c.scraper != nil {
		if scraped, err := c.scraper.ScrapeItemPage(c.chain, contractAddress, tokenID); err == nil {
			if scraped.Name != "" {
				metadata.Name = scraped.Name
			}
			if scraped.Description != "" {
				metadata.Description = scraped.Description
			}
			if metadata.ImageURL == "" && scraped.ImageURL != "" {
				metadata.ImageURL = scraped.ImageURL
			}
		} else {
			logrus.WithFields(logrus.Fields{
				"contract_address": contractAddress,
				"token_id":         tokenID,
			}).Debugf("Item page scraper fallback failed: %v", err)
		}
	}

	return metadata, nil
}

func (c *OpenSeaClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	c.rateLimiter.EnforceRateLimit()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	shared.SetAPIHeaders(request, "x-api-key", c.apiKey)

	client := c.factory.Client(c.config.HTTPRequestTimeout)
	response, err := shared.ExecuteHTTPRequestWithRetry(client, request, c.config.MaxRetryAttempts)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	return io.ReadAll(response.Body)
}

// parsePriceBlock converts OpenSea's {currency, decimals, value} block into a
// decimal price. value is a stringified integer in the smallest unit.
func parsePriceBlock(block openSeaPriceBlock) (float64, string, error) {
	if block.Current.Value == "" || block.Current.Currency == "" {
		return 0, "", fmt.Errorf("price block missing value or currency")
	}

	value, err := strconv.ParseFloat(block.Current.Value, 64)
	if err != nil {
		return 0, "", fmt.Errorf("unparseable price value %q: %w", block.Current.Value, err)
	}

	price := value / math.Pow10(block.Current.Decimals)
	if price <= 0 {
		return 0, "", fmt.Errorf("non-positive price %g", price)
	}

	return price, block.Current.Currency, nil
}

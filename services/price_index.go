package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Invictus108/NFT-Gift-Bot/shared"
	"github.com/sirupsen/logrus"
)

// CoinGeckoClient lists NFT collections ordered ascending by native floor
// price. Cheap-first ordering maximizes affordable matches per unit of
// downstream API cost.
type CoinGeckoClient struct {
	config      shared.ServiceConfig
	apiKey      string
	factory     *shared.HTTPClientFactory
	rateLimiter *shared.HTTPRequestRateLimiter
}

func NewCoinGeckoClient(config shared.ServiceConfig, apiKey string, factory *shared.HTTPClientFactory) *CoinGeckoClient {
	return &CoinGeckoClient{
		config:      config,
		apiKey:      apiKey,
		factory:     factory,
		rateLimiter: shared.NewHTTPRequestRateLimiter(config.RequestRateLimit),
	}
}

type coinGeckoNFTEntry struct {
	ID              string `json:"id"`
	ContractAddress string `json:"contract_address"`
	AssetPlatformID string `json:"asset_platform_id"`
}

// CollectionsByFloorAsc returns contract addresses of collections on the given
// chain, cheapest floor first.
func (c *CoinGeckoClient) CollectionsByFloorAsc(ctx context.Context, chain string, limit int) ([]string, error) {
	c.rateLimiter.EnforceRateLimit()

	endpoint := fmt.Sprintf("%s/api/v3/nfts/list?order=floor_price_native_asc&per_page=%d", c.config.BaseURL, limit)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	shared.SetAPIHeaders(request, "x-cg-demo-api-key", c.apiKey)

	client := c.factory.Client(c.config.HTTPRequestTimeout)
	response, err := shared.ExecuteHTTPRequestWithRetry(client, request, c.config.MaxRetryAttempts)
	if err != nil {
		return nil, shared.NewExternalFetchError("coingecko", "CollectionsByFloorAsc", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, shared.NewExternalFetchError("coingecko", "CollectionsByFloorAsc", err)
	}

	var entries []coinGeckoNFTEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, shared.NewExternalFetchError("coingecko", "CollectionsByFloorAsc", err)
	}

	var contracts []string
	for _, entry := range entries {
		if entry.AssetPlatformID != chain || entry.ContractAddress == "" {
			continue
		}
		contracts = append(contracts, entry.ContractAddress)
	}

	logrus.WithFields(logrus.Fields{
		"chain":       chain,
		"collections": len(contracts),
	}).Debug("Fetched collections ordered by ascending floor price")

	return contracts, nil
}

// AlchemyClient resolves a contract address to its canonical OpenSea
// collection slug via the floor-price endpoint.
type AlchemyClient struct {
	config      shared.ServiceConfig
	apiKey      string
	factory     *shared.HTTPClientFactory
	rateLimiter *shared.HTTPRequestRateLimiter
}

func NewAlchemyClient(config shared.ServiceConfig, apiKey string, factory *shared.HTTPClientFactory) *AlchemyClient {
	return &AlchemyClient{
		config:      config,
		apiKey:      apiKey,
		factory:     factory,
		rateLimiter: shared.NewHTTPRequestRateLimiter(config.RequestRateLimit),
	}
}

type alchemyFloorPriceResponse struct {
	OpenSea struct {
		FloorPrice    float64 `json:"floorPrice"`
		CollectionURL string  `json:"collectionUrl"`
	} `json:"openSea"`
}

// ResolveSlug returns the OpenSea collection slug for a contract address. The
// slug is the last path segment of the collection URL.
func (c *AlchemyClient) ResolveSlug(ctx context.Context, contractAddress string) (string, error) {
	c.rateLimiter.EnforceRateLimit()

	endpoint := fmt.Sprintf("%s/nft/v3/%s/getFloorPrice?contractAddress=%s",
		c.config.BaseURL, url.PathEscape(c.apiKey), url.QueryEscape(contractAddress))

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	shared.SetAPIHeaders(request, "accept", "")

	client := c.factory.Client(c.config.HTTPRequestTimeout)
	response, err := shared.ExecuteHTTPRequestWithRetry(client, request, c.config.MaxRetryAttempts)
	if err != nil {
		return "", shared.NewExternalFetchError("alchemy", "ResolveSlug", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", shared.NewExternalFetchError("alchemy", "ResolveSlug", err)
	}

	var parsed alchemyFloorPriceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", shared.NewExternalFetchError("alchemy", "ResolveSlug", err)
	}

	collectionURL := strings.TrimRight(parsed.OpenSea.CollectionURL, "/")
	if collectionURL == "" {
		return "", fmt.Errorf("no openSea marketplace entry for contract %s", contractAddress)
	}

	segments := strings.Split(collectionURL, "/")
	slug := segments[len(segments)-1]
	if slug == "" {
		return "", fmt.Errorf("could not extract slug from collection URL %q", collectionURL)
	}

	return slug, nil
}

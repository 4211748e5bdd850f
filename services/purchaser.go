package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/Invictus108/NFT-Gift-Bot/models"
	"github.com/Invictus108/NFT-Gift-Bot/shared"
	"github.com/sirupsen/logrus"
)

// Seaport 1.5 protocol address on Ethereum mainnet.
const seaportProtocolAddress = "0x00000000000001ad428e4906ae43d8f9852d0dd6"

// PurchaseTransaction is the unsigned transaction assembled from marketplace
// fulfillment data.
type PurchaseTransaction struct {
	To    string `json:"to"`
	Value string `json:"value"`
	Data  string `json:"data"`
}

// TxSigner signs and broadcasts an assembled purchase transaction and returns
// the transaction hash. Key custody and chain submission live behind this
// boundary.
type TxSigner interface {
	SignAndSend(ctx context.Context, tx PurchaseTransaction) (string, error)
}

// DryRunSigner logs the assembled transaction instead of broadcasting it and
// returns a deterministic pseudo-hash. Used when no wallet key is configured.
type DryRunSigner struct{}

func (DryRunSigner) SignAndSend(_ context.Context, tx PurchaseTransaction) (string, error) {
	digest := sha256.Sum256([]byte(tx.To + tx.Value + tx.Data))
	pseudoHash := "0xdryrun" + hex.EncodeToString(digest[:12])

	logrus.WithFields(logrus.Fields{
		"to":      tx.To,
		"value":   tx.Value,
		"tx_hash": pseudoHash,
	}).Warn("Dry-run signer: transaction assembled but not broadcast")

	return pseudoHash, nil
}

// OpenSeaPurchaser commits a purchase through the OpenSea fulfillment API: it
// looks up the candidate's current listing, requests Seaport fulfillment data
// for its order hash, and hands the assembled transaction to the signer.
type OpenSeaPurchaser struct {
	config      shared.ServiceConfig
	apiKey      string
	chain       string
	factory     *shared.HTTPClientFactory
	rateLimiter *shared.HTTPRequestRateLimiter
	signer      TxSigner
	metrics     *shared.ServiceMetrics
}

func NewOpenSeaPurchaser(config shared.ServiceConfig, apiKey, chain string, factory *shared.HTTPClientFactory, signer TxSigner) *OpenSeaPurchaser {
	if signer == nil {
		signer = DryRunSigner{}
	}
	return &OpenSeaPurchaser{
		config:      config,
		apiKey:      apiKey,
		chain:       chain,
		factory:     factory,
		rateLimiter: shared.NewHTTPRequestRateLimiter(config.RequestRateLimit),
		signer:      signer,
		metrics:     shared.NewServiceMetrics("opensea-purchaser"),
	}
}

type fulfillmentRequest struct {
	Listing struct {
		Hash            string `json:"hash"`
		Chain           string `json:"chain"`
		ProtocolAddress string `json:"protocol_address"`
	} `json:"listing"`
	Fulfiller struct {
		Address string `json:"address"`
	} `json:"fulfiller"`
}

type fulfillmentResponse struct {
	FulfillmentData struct {
		Transaction struct {
			Function string          `json:"function"`
			Chain    int             `json:"chain"`
			To        string          `json:"to"`
			Value     json.RawMessage `json:"value"`
			InputData json.RawMessage `json:"input_data"`
		} `json:"transaction"`
	} `json:"fulfillment_data"`
}

// Buy fulfills the candidate's best current listing to the recipient wallet
// and returns the transaction hash. Any failure before broadcast leaves the
// chain untouched; the caller treats every error as a fatal commit failure.
func (p *OpenSeaPurchaser) Buy(ctx context.Context, candidate models.Candidate, recipientWallet string) (string, error) {
	orderHash, err := p.lookupOrderHash(ctx, candidate.CollectionID, candidate.TokenID)
	if err != nil {
		return "", err
	}

	tx, err := p.fulfillmentData(ctx, orderHash, recipientWallet)
	if err != nil {
		return "", err
	}

	txHash, err := p.signer.SignAndSend(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("transaction broadcast failed: %w", err)
	}

	p.metrics.IncrementCounter("purchases_committed")
	return txHash, nil
}

// lookupOrderHash finds the order hash of the candidate's best active listing.
func (p *OpenSeaPurchaser) lookupOrderHash(ctx context.Context, slug, tokenID string) (string, error) {
	endpoint := fmt.Sprintf("%s/api/v2/listings/collection/%s/nfts/%s/best",
		p.config.BaseURL, url.PathEscape(slug), url.PathEscape(tokenID))

	p.rateLimiter.EnforceRateLimit()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	shared.SetAPIHeaders(request, "x-api-key", p.apiKey)

	client := p.factory.Client(p.config.HTTPRequestTimeout)
	response, err := shared.ExecuteHTTPRequestWithRetry(client, request, p.config.MaxRetryAttempts)
	if err != nil {
		return "", shared.NewExternalFetchError("opensea", "lookupOrderHash", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", shared.NewExternalFetchError("opensea", "lookupOrderHash", err)
	}

	var parsed struct {
		OrderHash string `json:"order_hash"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", shared.NewExternalFetchError("opensea", "lookupOrderHash", err)
	}
	if parsed.OrderHash == "" {
		return "", fmt.Errorf("listing for %s/%s carries no order hash", slug, tokenID)
	}

	return parsed.OrderHash, nil
}

// fulfillmentData asks the marketplace to assemble the Seaport fulfillment
// transaction for one order hash.
func (p *OpenSeaPurchaser) fulfillmentData(ctx context.Context, orderHash, fulfillerAddress string) (PurchaseTransaction, error) {
	var reqBody fulfillmentRequest
	reqBody.Listing.Hash = orderHash
	reqBody.Listing.Chain = p.chain
	reqBody.Listing.ProtocolAddress = seaportProtocolAddress
	reqBody.Fulfiller.Address = fulfillerAddress

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return PurchaseTransaction{}, err
	}

	endpoint := p.config.BaseURL + "/api/v2/listings/fulfillment_data"

	p.rateLimiter.EnforceRateLimit()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return PurchaseTransaction{}, err
	}
	request.Header.Set("Content-Type", "application/json")
	shared.SetAPIHeaders(request, "x-api-key", p.apiKey)

	client := p.factory.Client(p.config.HTTPRequestTimeout)
	response, err := shared.ExecuteHTTPRequestWithRetry(client, request, p.config.MaxRetryAttempts)
	if err != nil {
		return PurchaseTransaction{}, shared.NewExternalFetchError("opensea", "fulfillmentData", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return PurchaseTransaction{}, shared.NewExternalFetchError("opensea", "fulfillmentData", err)
	}

	var parsed fulfillmentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return PurchaseTransaction{}, shared.NewExternalFetchError("opensea", "fulfillmentData", err)
	}

	tx := parsed.FulfillmentData.Transaction
	if tx.To == "" {
		return PurchaseTransaction{}, fmt.Errorf("fulfillment data for order %s carries no transaction target", orderHash)
	}

	return PurchaseTransaction{
		To:    tx.To,
		Value: string(tx.Value),
		Data:  string(tx.InputData),
	}, nil
}

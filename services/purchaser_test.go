package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Invictus108/NFT-Gift-Bot/models"
	"github.com/Invictus108/NFT-Gift-Bot/shared"
)

func TestBuyAssemblesAndSignsTransaction(t *testing.T) {
	var fulfillmentBody fulfillmentRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/best"):
			fmt.Fprint(w, `{"order_hash": "0xorderhash"}`)
		case strings.HasSuffix(r.URL.Path, "/fulfillment_data"):
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, &fulfillmentBody); err != nil {
				t.Errorf("unparseable fulfillment request: %v", err)
			}
			fmt.Fprint(w, `{"fulfillment_data": {"transaction": {"function": "fulfillBasicOrder", "chain": 1, "to": "0xseaport", "value": 250000000000000000, "input_data": {"parameters": {}}}}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	factory := shared.NewHTTPClientFactory(5 * time.Second)
	purchaser := NewOpenSeaPurchaser(testServiceConfig(server.URL), "test-key", "ethereum", factory, nil)

	candidate := models.Candidate{
		CollectionID:    "cool-cats",
		TokenID:         "7",
		ContractAddress: "0xaaa",
	}

	txHash, err := purchaser.Buy(context.Background(), candidate, "0xrecipient")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(txHash, "0xdryrun") {
		t.Errorf("nil signer must fall back to the dry-run signer, got hash %s", txHash)
	}

	if fulfillmentBody.Listing.Hash != "0xorderhash" {
		t.Errorf("wrong order hash: %s", fulfillmentBody.Listing.Hash)
	}
	if fulfillmentBody.Listing.ProtocolAddress != seaportProtocolAddress {
		t.Errorf("wrong protocol address: %s", fulfillmentBody.Listing.ProtocolAddress)
	}
	if fulfillmentBody.Fulfiller.Address != "0xrecipient" {
		t.Errorf("fulfiller must be the order wallet, got %s", fulfillmentBody.Fulfiller.Address)
	}
}

func TestBuyFailsWithoutOrderHash(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	purchaser := NewOpenSeaPurchaser(testServiceConfig(server.URL), "test-key", "ethereum", shared.NewHTTPClientFactory(5*time.Second), nil)

	_, err := purchaser.Buy(context.Background(), models.Candidate{CollectionID: "c", TokenID: "1"}, "0xrecipient")
	if err == nil {
		t.Fatal("a listing without an order hash cannot be bought")
	}
}

func TestDryRunSignerIsDeterministic(t *testing.T) {
	tx := PurchaseTransaction{To: "0xseaport", Value: "1", Data: "0xcafe"}

	first, err := DryRunSigner{}.SignAndSend(context.Background(), tx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, _ := DryRunSigner{}.SignAndSend(context.Background(), tx)
	if first != second {
		t.Errorf("same transaction must yield the same pseudo-hash: %s vs %s", first, second)
	}
}

//go:build ignore

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Invictus108/NFT-Gift-Bot/config"
	"github.com/Invictus108/NFT-Gift-Bot/database"
	"github.com/Invictus108/NFT-Gift-Bot/services"
	"github.com/Invictus108/NFT-Gift-Bot/shared"
)

func main() {
	fmt.Printf("🏥 NFT Gift Bot Health Check - %s\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Println(strings.Repeat("=", 50))

	// Quick tests
	healthScore := 0
	totalTests := 4

	cfg := config.LoadConfig()
	serviceConfig := shared.NewDefaultConfiguration()
	serviceConfig.Embedding.BaseURL = cfg.EmbeddingAPIURL
	factory := shared.NewHTTPClientFactory(30 * time.Second)
	ctx := context.Background()

	// Test 1: CoinGecko collection index
	fmt.Print("📡 CoinGecko API: ")
	coinGecko := services.NewCoinGeckoClient(serviceConfig.CoinGecko, cfg.CoinGeckoAPIKey, factory)
	if contracts, err := coinGecko.CollectionsByFloorAsc(ctx, cfg.Chain, 10); err != nil {
		fmt.Printf("❌ FAILED (%v)\n", err)
	} else {
		fmt.Printf("✅ OK (%d collections)\n", len(contracts))
		healthScore++
	}

	// Test 2: Embedding service
	fmt.Print("🧠 Embedding Service: ")
	embedder := services.NewEmbeddingClient(serviceConfig.Embedding, cfg.EmbeddingAPIKey, factory)
	if vector, err := embedder.EmbedText(ctx, "a colorful pixel art cat"); err != nil {
		fmt.Printf("❌ FAILED (%v)\n", err)
	} else {
		fmt.Printf("✅ OK (%d dimensions)\n", len(vector))
		healthScore++
	}

	// Test 3: Database
	fmt.Print("🗄️  Database: ")
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		fmt.Printf("❌ FAILED (%v)\n", err)
	} else {
		fmt.Println("✅ OK")
		healthScore++
		database.Close()
	}

	// Test 4: Inventory and orders
	fmt.Print("📊 Database Data: ")
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		fmt.Printf("❌ FAILED (%v)\n", err)
	} else {
		candidateStore := services.NewPostgresCandidateStore(database.DB)
		orderStore := services.NewPostgresOrderStore(database.DB)
		candidates, candidatesErr := candidateStore.ScanAll(ctx)
		orders, ordersErr := orderStore.List(ctx)
		if candidatesErr != nil || ordersErr != nil {
			fmt.Printf("❌ FAILED (candidates: %v, orders: %v)\n", candidatesErr, ordersErr)
		} else {
			fmt.Printf("✅ OK (%d candidates, %d orders)\n", len(candidates), len(orders))
			healthScore++
		}
		database.Close()
	}

	// Overall health
	fmt.Println(strings.Repeat("-", 50))
	healthPercent := float64(healthScore) / float64(totalTests) * 100

	if healthScore == totalTests {
		fmt.Printf("🎉 SYSTEM HEALTHY: %d/%d tests passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	} else if healthScore >= totalTests/2 {
		fmt.Printf("⚠️  SYSTEM DEGRADED: %d/%d tests passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	} else {
		fmt.Printf("❌ SYSTEM UNHEALTHY: %d/%d tests passed (%.0f%%)\n", healthScore, totalTests, healthPercent)
	}

	fmt.Printf("⏰ Check completed at: %s\n", time.Now().Format("15:04:05"))
}

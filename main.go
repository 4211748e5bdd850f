package main

import (
	"log"
	"time"

	"github.com/Invictus108/NFT-Gift-Bot/config"
	"github.com/Invictus108/NFT-Gift-Bot/database"
	"github.com/Invictus108/NFT-Gift-Bot/handlers"
	"github.com/Invictus108/NFT-Gift-Bot/jobs"
	"github.com/Invictus108/NFT-Gift-Bot/services"
	"github.com/Invictus108/NFT-Gift-Bot/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load config
	cfg := config.LoadConfig()

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logrus.SetLevel(level)
	}

	// Connect to database
	if err := database.Connect(cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate("database/schema.sql"); err != nil {
		log.Printf("Migration warning: %v", err)
	}
	if err := database.ValidateSchema(); err != nil {
		log.Printf("Schema validation warning: %v", err)
	}

	// Shared HTTP plumbing and per-provider configs
	serviceConfig := shared.NewDefaultConfiguration()
	serviceConfig.Embedding.BaseURL = cfg.EmbeddingAPIURL
	clientFactory := shared.NewHTTPClientFactory(30 * time.Second)
	defer clientFactory.CleanupAllClients()

	// Marketplace and embedding clients
	scraper := services.NewItemPageScraper()
	openSea := services.NewOpenSeaClient(serviceConfig.OpenSea, cfg.OpenSeaAPIKey, cfg.Chain, clientFactory, scraper)
	coinGecko := services.NewCoinGeckoClient(serviceConfig.CoinGecko, cfg.CoinGeckoAPIKey, clientFactory)
	alchemy := services.NewAlchemyClient(serviceConfig.Alchemy, cfg.AlchemyAPIKey, clientFactory)
	embedder := services.NewEmbeddingClient(serviceConfig.Embedding, cfg.EmbeddingAPIKey, clientFactory)

	// Stores
	orderStore := services.NewPostgresOrderStore(database.DB)
	candidateStore := services.NewPostgresCandidateStore(database.DB)

	// Matching pipeline
	refresher := services.NewInventoryRefresher(candidateStore, coinGecko, alchemy, openSea, embedder, services.RefresherConfig{
		Chain:        cfg.Chain,
		PriceCeiling: cfg.PriceCeiling,
	})
	matchEngine := services.NewMatchEngine()
	purchaser := services.NewOpenSeaPurchaser(serviceConfig.OpenSea, cfg.OpenSeaAPIKey, cfg.Chain, clientFactory, nil)
	notifier := services.NewSendGridNotifier(cfg.SendGridAPIKey, cfg.SendGridTemplateID, cfg.SendGridFromEmail, clientFactory)

	coordinator := services.NewPurchaseCoordinator(
		orderStore,
		candidateStore,
		refresher,
		matchEngine,
		openSea,
		purchaser,
		notifier,
		services.CoordinatorConfig{
			TargetInventorySize: cfg.TargetInventorySize,
			LowWaterMark:        cfg.InventoryLowWater,
		},
	)

	logrus.WithFields(logrus.Fields{
		"chain":            cfg.Chain,
		"price_ceiling":    cfg.PriceCeiling,
		"target_inventory": cfg.TargetInventorySize,
		"fulfill_interval": cfg.GetFulfillInterval(),
		"refresh_interval": cfg.GetRefreshInterval(),
	}).Info("NFT gift bot services initialized")

	// Initialize jobs
	fulfillmentJob := jobs.NewOrderFulfillmentJob(coordinator)
	refreshJob := jobs.NewInventoryRefreshJob(refresher, cfg.TargetInventorySize)

	// Initialize handlers
	orderHandler := handlers.NewOrderHandler(orderStore, embedder, coordinator)
	inventoryHandler := handlers.NewInventoryHandler(candidateStore, refresher, cfg.TargetInventorySize)

	// Start background jobs
	go func() {
		// Populate inventory immediately so the first tick has candidates
		go refreshJob.Run()

		fulfillTicker := time.NewTicker(cfg.GetFulfillInterval())
		refreshTicker := time.NewTicker(cfg.GetRefreshInterval())

		for {
			select {
			case <-fulfillTicker.C:
				fulfillmentJob.Run()
			case <-refreshTicker.C:
				refreshJob.Run()
			}
		}
	}()

	// Setup Fiber
	app := fiber.New()

	// Middleware
	app.Use(logger.New())
	app.Use(cors.New())

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	// Routes
	api := app.Group("/api/v1")

	// Order Routes
	api.Post("/orders", orderHandler.CreateOrder)
	api.Get("/orders", orderHandler.GetOrders)
	api.Delete("/orders/:order_id", orderHandler.DeleteOrder)
	api.Post("/orders/check", orderHandler.CheckOrders)

	// Inventory Routes
	api.Get("/inventory", inventoryHandler.GetInventory)

	// Admin Routes
	admin := api.Group("/admin")
	// TODO: Add auth middleware
	admin.Post("/inventory/refresh", inventoryHandler.TriggerRefresh)

	// Start server
	log.Printf("Server starting on port %s", cfg.ServerPort)
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

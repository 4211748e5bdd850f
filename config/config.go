package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	ServerPort  string
	DatabaseURL string
	LogLevel    string

	// Marketplace API credentials
	OpenSeaAPIKey   string
	CoinGeckoAPIKey string
	AlchemyAPIKey   string

	// Embedding service
	EmbeddingAPIURL string
	EmbeddingAPIKey string

	// Notification (SendGrid)
	SendGridAPIKey     string
	SendGridTemplateID string
	SendGridFromEmail  string

	// Matching pipeline tuning
	Chain                string
	PriceCeiling         float64
	TargetInventorySize  int
	InventoryLowWater    int
	FulfillIntervalMins  string
	RefreshIntervalHours string
}

// GetFulfillInterval returns the order fulfillment tick interval from environment or default
func (c *Config) GetFulfillInterval() time.Duration {
	mins, err := strconv.Atoi(c.FulfillIntervalMins)
	if err != nil || mins <= 0 {
		logrus.Warnf("Invalid FULFILL_INTERVAL_MINS value: %s, using default 15 minutes", c.FulfillIntervalMins)
		return 15 * time.Minute
	}
	return time.Duration(mins) * time.Minute
}

// GetRefreshInterval returns the inventory refresh interval from environment or default
func (c *Config) GetRefreshInterval() time.Duration {
	hours, err := strconv.Atoi(c.RefreshIntervalHours)
	if err != nil || hours <= 0 {
		logrus.Warnf("Invalid REFRESH_INTERVAL_HOURS value: %s, using default 6 hours", c.RefreshIntervalHours)
		return 6 * time.Hour
	}
	return time.Duration(hours) * time.Hour
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		logrus.Warn("Error loading .env file, using system environment variables")
	}

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		OpenSeaAPIKey:   getEnv("OPENSEA_API_KEY", ""),
		CoinGeckoAPIKey: getEnv("COINGECKO_API_KEY", ""),
		AlchemyAPIKey:   getEnv("ALCHEMY_API_KEY", ""),

		EmbeddingAPIURL: getEnv("EMBEDDING_API_URL", "http://localhost:5001"),
		EmbeddingAPIKey: getEnv("EMBEDDING_API_KEY", ""),

		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),
		SendGridTemplateID: getEnv("SENDGRID_TEMPLATE_ID", ""),
		SendGridFromEmail:  getEnv("SENDGRID_FROM_EMAIL", "rewards@nftgiftbot.xyz"),

		Chain:                getEnv("CHAIN", "ethereum"),
		PriceCeiling:         getEnvFloat("PRICE_CEILING", 1.0),
		TargetInventorySize:  getEnvInt("TARGET_INVENTORY_SIZE", 200),
		InventoryLowWater:    getEnvInt("INVENTORY_LOW_WATER", 20),
		FulfillIntervalMins:  getEnv("FULFILL_INTERVAL_MINS", "15"),
		RefreshIntervalHours: getEnv("REFRESH_INTERVAL_HOURS", "6"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
		logrus.Warnf("Invalid integer for %s: %s, using default %d", key, value, fallback)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		logrus.Warnf("Invalid float for %s: %s, using default %g", key, value, fallback)
	}
	return fallback
}

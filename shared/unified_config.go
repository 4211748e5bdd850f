package shared

import "time"

// UnifiedConfiguration holds tuning parameters for the whole application
type UnifiedConfiguration struct {
	OpenSea   ServiceConfig  `json:"opensea"`
	CoinGecko ServiceConfig  `json:"coingecko"`
	Alchemy   ServiceConfig  `json:"alchemy"`
	Embedding ServiceConfig  `json:"embedding"`
	Database  DatabaseConfig `json:"database"`
}

// ServiceConfig holds outbound HTTP service configuration
type ServiceConfig struct {
	BaseURL            string        `json:"base_url"`
	HTTPRequestTimeout time.Duration `json:"http_timeout"`
	RequestRateLimit   time.Duration `json:"rate_limit"`
	MaxRetryAttempts   int           `json:"max_retries"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	PingTimeout     time.Duration `json:"ping_timeout"`
}

// NewDefaultConfiguration returns production-ready defaults. Rate limits track
// the published free-tier limits of each provider.
func NewDefaultConfiguration() *UnifiedConfiguration {
	return &UnifiedConfiguration{
		OpenSea: ServiceConfig{
			BaseURL:            "https://api.opensea.io",
			HTTPRequestTimeout: 30 * time.Second,
			RequestRateLimit:   500 * time.Millisecond,
			MaxRetryAttempts:   3,
		},
		CoinGecko: ServiceConfig{
			BaseURL:            "https://api.coingecko.com",
			HTTPRequestTimeout: 30 * time.Second,
			RequestRateLimit:   2 * time.Second,
			MaxRetryAttempts:   3,
		},
		Alchemy: ServiceConfig{
			BaseURL:            "https://eth-mainnet.g.alchemy.com",
			HTTPRequestTimeout: 30 * time.Second,
			RequestRateLimit:   200 * time.Millisecond,
			MaxRetryAttempts:   3,
		},
		Embedding: ServiceConfig{
			BaseURL:            "http://localhost:5001",
			HTTPRequestTimeout: 60 * time.Second,
			RequestRateLimit:   0,
			MaxRetryAttempts:   1,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
	}
}

package binance

import (
	"time"
)

const (
	mainnetBaseURL = "https://api.binance.com"
	testnetBaseURL = "https://testnet.binance.vision"
)

type Config struct {
	APIKey    string
	APISecret string
	// Testnet switches the REST base URL to the spot testnet.
	Testnet bool
	// BaseURL overrides the derived URL when set.
	BaseURL     string
	HTTPTimeout time.Duration
	// RequestsPerSec paces REST calls below the exchange rate limits.
	RequestsPerSec float64
	// Breaker settings: consecutive failures before the circuit opens, and
	// how long it stays open before probing.
	BreakerThreshold int
	BreakerTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		if c.Testnet {
			c.BaseURL = testnetBaseURL
		} else {
			c.BaseURL = mainnetBaseURL
		}
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 15 * time.Second
	}
	if c.RequestsPerSec <= 0 {
		c.RequestsPerSec = 8
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	return c
}

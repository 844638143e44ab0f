package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every knob for one run. Loaded once at startup and passed by
// pointer into each component; never mutated afterwards.
type Config struct {
	AppPort string `env:"APP_PORT" envDefault:"3000"`

	BaseURL       string `env:"COINBASE_API_URL" envDefault:"https://api.exchange.coinbase.com"`
	QuoteCurrency string `env:"QUOTE_CURRENCY" envDefault:"USD"`

	PairsFile       string `env:"PAIRS_FILE" envDefault:"active_pairs.txt"`
	ProductsFile    string `env:"PRODUCTS_FILE" envDefault:"products.json"`
	SpreadPairsFile string `env:"SPREAD_PAIRS_FILE" envDefault:"active_spread_pairs.json"`

	DefaultPrecision int           `env:"DEFAULT_PRECISION" envDefault:"8"`
	ProductsMaxAge   time.Duration `env:"PRODUCTS_MAX_AGE" envDefault:"4h"`

	RateLimitDelay    time.Duration `env:"RATE_LIMIT_DELAY" envDefault:"1s"`
	RateLimitAttempts int           `env:"RATE_LIMIT_ATTEMPTS" envDefault:"5"`
	RequestsPerSecond float64       `env:"REQUESTS_PER_SECOND" envDefault:"2"`

	OrderbookValue float64 `env:"ORDERBOOK_VALUE" envDefault:"50000"`
	Min24hVolume   float64 `env:"MIN_24HR_VOLUME" envDefault:"0"`
	SpreadAlert    float64 `env:"SPREAD_ALERT" envDefault:"5"`

	ScanBooksWait    time.Duration `env:"SCAN_BOOKS_WAIT" envDefault:"300s"`
	ScanActiveWait   time.Duration `env:"SCAN_ACTIVE_PAIRS_WAIT" envDefault:"15s"`
	ActiveScanCycles int           `env:"ACTIVE_SCAN_CYCLES" envDefault:"3"`
	ScanOnce         bool          `env:"SCAN_ONCE" envDefault:"false"`

	ShowScanResults    bool `env:"SHOW_SCAN_RESULTS" envDefault:"false"`
	ShowBelowThreshold bool `env:"SHOW_BELOW_THRESHOLD" envDefault:"false"`
	ShowLoadedPairInfo bool `env:"SHOW_LOADED_PAIR_INFO" envDefault:"false"`
	Debug              bool `env:"DEBUG" envDefault:"false"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment directly")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.OrderbookValue <= 0 {
		return fmt.Errorf("ORDERBOOK_VALUE must be positive, got %v", c.OrderbookValue)
	}
	if c.RateLimitAttempts < 1 {
		return fmt.Errorf("RATE_LIMIT_ATTEMPTS must be at least 1, got %d", c.RateLimitAttempts)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("REQUESTS_PER_SECOND must be positive, got %v", c.RequestsPerSecond)
	}
	if c.ActiveScanCycles < 0 {
		return fmt.Errorf("ACTIVE_SCAN_CYCLES must not be negative, got %d", c.ActiveScanCycles)
	}
	return nil
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.exchange.coinbase.com", cfg.BaseURL)
	assert.Equal(t, "USD", cfg.QuoteCurrency)
	assert.Equal(t, 8, cfg.DefaultPrecision)
	assert.Equal(t, 4*time.Hour, cfg.ProductsMaxAge)
	assert.Equal(t, 5, cfg.RateLimitAttempts)
	assert.Equal(t, time.Second, cfg.RateLimitDelay)
	assert.Equal(t, 50000.0, cfg.OrderbookValue)
	assert.Equal(t, 5.0, cfg.SpreadAlert)
	assert.Equal(t, 300*time.Second, cfg.ScanBooksWait)
	assert.Equal(t, 15*time.Second, cfg.ScanActiveWait)
	assert.Equal(t, 3, cfg.ActiveScanCycles)
	assert.False(t, cfg.ScanOnce)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SPREAD_ALERT", "12.5")
	t.Setenv("SCAN_ONCE", "true")
	t.Setenv("SCAN_BOOKS_WAIT", "1m")
	t.Setenv("MIN_24HR_VOLUME", "250000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12.5, cfg.SpreadAlert)
	assert.True(t, cfg.ScanOnce)
	assert.Equal(t, time.Minute, cfg.ScanBooksWait)
	assert.Equal(t, 250000.0, cfg.Min24hVolume)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"ORDERBOOK_VALUE", "-1"},
		{"RATE_LIMIT_ATTEMPTS", "0"},
		{"REQUESTS_PER_SECOND", "0"},
		{"ACTIVE_SCAN_CYCLES", "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

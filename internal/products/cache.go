// Package products maintains the on-disk cache of tradable-pair metadata and
// the user-editable pairs file derived from it.
package products

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/suwandre/spreadscan/internal/models"
)

// ErrCacheUnavailable means neither a readable cache file nor a successful
// fetch could supply product metadata.
var ErrCacheUnavailable = errors.New("product metadata unavailable")

// Source is the remote product-list capability the cache refreshes from.
type Source interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
}

// Cache serves product descriptors from a JSON file, refreshing from the
// source when the file is missing, unreadable, or older than maxAge.
// File mtime is the staleness reference.
type Cache struct {
	source    Source
	path      string
	pairsPath string
	quote     string
	maxAge    time.Duration
	logger    zerolog.Logger

	now func() time.Time
}

func NewCache(source Source, path, pairsPath, quote string, maxAge time.Duration, logger zerolog.Logger) *Cache {
	return &Cache{
		source:    source,
		path:      path,
		pairsPath: pairsPath,
		quote:     quote,
		maxAge:    maxAge,
		logger:    logger,
		now:       time.Now,
	}
}

// GetProducts returns the cached descriptor set, refreshing from the source
// when the file is stale or forceRefresh is set. A corrupt cache file forces
// a refresh; a failed refresh falls back to any readable file before giving
// up with ErrCacheUnavailable.
func (c *Cache) GetProducts(ctx context.Context, forceRefresh bool) ([]models.Product, error) {
	if !forceRefresh && c.fresh() {
		products, err := c.load()
		if err == nil {
			c.logger.Debug().Int("count", len(products)).Str("file", c.path).Msg("loaded products from cache")
			return products, nil
		}
		c.logger.Warn().Err(err).Str("file", c.path).Msg("cache file unreadable, refreshing")
	}

	products, fetchErr := c.source.GetProducts(ctx)
	if fetchErr != nil {
		// Stale metadata beats none: a pair set that is hours old still
		// identifies what is tradable.
		if fallback, err := c.load(); err == nil {
			c.logger.Warn().Err(fetchErr).Int("count", len(fallback)).
				Msg("product fetch failed, using stale cache file")
			return fallback, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrCacheUnavailable, fetchErr)
	}

	if err := c.persist(products); err != nil {
		c.logger.Warn().Err(err).Str("file", c.path).Msg("failed to persist products file")
	} else {
		c.logger.Info().Int("count", len(products)).Str("file", c.path).Msg("products file refreshed")
	}

	if err := WritePairsFile(c.pairsPath, products, c.quote); err != nil {
		c.logger.Warn().Err(err).Str("file", c.pairsPath).Msg("failed to update pairs file")
	}

	return products, nil
}

// Find returns the descriptor for one product id.
func Find(products []models.Product, id string) (models.Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

func (c *Cache) fresh() bool {
	info, err := os.Stat(c.path)
	if err != nil {
		return false
	}
	return c.now().Sub(info.ModTime()) <= c.maxAge
}

func (c *Cache) load() ([]models.Product, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("reading products file: %w", err)
	}

	var products []models.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("parsing products file: %w", err)
	}
	return products, nil
}

func (c *Cache) persist(products []models.Product) error {
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding products: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("writing products file: %w", err)
	}
	return nil
}

// WritePairsFile regenerates the newline-delimited pairs file from the
// tradable products quoted in the given currency. The file holds sorted base
// symbols and is only rewritten when the set actually changed, preserving
// its mtime (and any user edits' timestamp) otherwise.
func WritePairsFile(path string, products []models.Product, quote string) error {
	var symbols []string
	for _, p := range products {
		if p.QuoteCurrency != quote || !p.Tradable() || p.BaseCurrency == "" {
			continue
		}
		symbols = append(symbols, p.BaseCurrency)
	}
	sort.Strings(symbols)

	if len(symbols) == 0 {
		return fmt.Errorf("no tradable %s pairs to write to %s", quote, path)
	}

	previous := make(map[string]bool)
	if data, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if line != "" {
				previous[line] = true
			}
		}
	}

	changed := len(previous) != len(symbols)
	if !changed {
		for _, s := range symbols {
			if !previous[s] {
				changed = true
				break
			}
		}
	}
	if !changed {
		return nil
	}

	return os.WriteFile(path, []byte(strings.Join(symbols, "\n")+"\n"), 0o644)
}

// LoadTradingPairs reads the pairs file, skipping blanks and '#' comments,
// upper-casing symbols and appending the quote suffix when absent
// ("btc" -> "BTC-USD").
func LoadTradingPairs(path, quote string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pairs file: %w", err)
	}

	suffix := "-" + strings.ToUpper(quote)
	var pairs []string

	for _, line := range strings.Split(string(data), "\n") {
		pair := strings.TrimSpace(line)
		if pair == "" || strings.HasPrefix(pair, "#") {
			continue
		}
		pair = strings.ToUpper(pair)
		if !strings.HasSuffix(pair, suffix) {
			pair += suffix
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

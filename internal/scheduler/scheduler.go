// Package scheduler drives the two-tier scan loop: periodic full scans over
// every configured pair, interleaved with cheaper rescans of the pairs
// currently above the spread-alert threshold.
package scheduler

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/suwandre/spreadscan/config"
	"github.com/suwandre/spreadscan/internal/exchange"
	"github.com/suwandre/spreadscan/internal/fetch"
	"github.com/suwandre/spreadscan/internal/impact"
	"github.com/suwandre/spreadscan/internal/models"
	"github.com/suwandre/spreadscan/internal/products"
)

// Volume jumps are only worth warning about above this floor; below it the
// ratios swing wildly on normal thin-market noise.
const volumeWarnFloor = 100_000.0

type Scheduler struct {
	cfg      *config.Config
	exchange exchange.Exchange
	cache    *products.Cache
	out      io.Writer
	logger   zerolog.Logger

	notional decimal.Decimal

	mu       sync.RWMutex
	results  map[string]models.ImpactResult
	active   []models.ImpactResult
	catalog  map[string]models.Product
	prevVols map[string]float64

	// sleep and now are swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func New(cfg *config.Config, ex exchange.Exchange, cache *products.Cache, out io.Writer, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		exchange: ex,
		cache:    cache,
		out:      out,
		logger:   logger,
		notional: decimal.NewFromFloat(cfg.OrderbookValue),
		results:  make(map[string]models.ImpactResult),
		catalog:  make(map[string]models.Product),
		prevVols: make(map[string]float64),
		sleep:    sleepContext,
		now:      time.Now,
	}
}

// Run executes the scan loop until ctx is cancelled. In single-shot mode it
// performs exactly one full scan and returns, propagating any whole-scan
// failure so the process can exit non-zero.
func (s *Scheduler) Run(ctx context.Context) error {
	s.banner()

	if s.cfg.ScanOnce {
		s.logger.Info().Msg("single-shot mode: performing one full scan")
		if err := s.runFullScan(ctx); err != nil {
			return err
		}
		s.saveActivePairs()
		return nil
	}

	s.loadActivePairs()
	defer s.saveActivePairs()

	for {
		if err := s.runFullScan(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error().Err(err).Msg("full scan aborted, waiting for next cycle")
		}

		if err := s.sleep(ctx, s.cfg.ScanBooksWait); err != nil {
			return nil
		}

		for remaining := s.cfg.ActiveScanCycles; remaining > 0 && s.activeCount() > 0; remaining-- {
			s.logger.Info().
				Int("cycles_left", remaining).
				Int("pairs", s.activeCount()).
				Msg("scanning active spread pairs")

			if err := s.runActiveScan(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error().Err(err).Msg("active scan aborted, falling back to full scan")
				break
			}

			if err := s.sleep(ctx, s.cfg.ScanActiveWait); err != nil {
				return nil
			}
		}
	}
}

// ActivePairs returns a copy of the pairs currently above the alert
// threshold, in the order they were scanned.
func (s *Scheduler) ActivePairs() []models.ImpactResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ImpactResult, len(s.active))
	copy(out, s.active)
	return out
}

// Result returns the latest scan result for a pair.
func (s *Scheduler) Result(productID string) (models.ImpactResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.results[productID]
	return res, ok
}

// runFullScan walks every configured pair, rebuilds the active set from the
// alerts, and persists it. Rate-limit exhaustion or missing metadata aborts
// the whole cycle; any other per-pair failure just skips that pair.
func (s *Scheduler) runFullScan(ctx context.Context) error {
	catalog, err := s.cache.GetProducts(ctx, false)
	if err != nil {
		return err
	}
	s.setCatalog(catalog)

	pairs, err := products.LoadTradingPairs(s.cfg.PairsFile, s.cfg.QuoteCurrency)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		s.logger.Warn().Str("file", s.cfg.PairsFile).Msg("no trading pairs to scan")
		return nil
	}

	s.logger.Info().Int("pairs", len(pairs)).Msg("starting full scan")
	if s.cfg.ShowLoadedPairInfo {
		s.logLoadedPairs(pairs)
	}

	var newActive []models.ImpactResult
	valid, skipped := 0, 0

	for _, pair := range pairs {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		product, ok := s.product(pair)
		if !ok || !product.Tradable() {
			// Absent from metadata means unknown, not zero-liquidity.
			s.logger.Debug().Str("pair", pair).Msg("pair not in product catalog, skipping")
			skipped++
			continue
		}

		res, decision, err := s.scanPair(ctx, product)
		if err != nil {
			var rlErr *fetch.RateLimitError
			if errors.As(err, &rlErr) {
				return err
			}
			s.logger.Warn().Err(err).Str("pair", pair).Msg("pair skipped this cycle")
			skipped++
			continue
		}
		if res == nil {
			// Screened out below the volume threshold without display.
			continue
		}

		if decision != models.DecisionBelowVolume {
			valid++
		}
		s.storeResult(*res)
		s.display(*res, decision)

		if decision == models.DecisionAlert {
			newActive = append(newActive, *res)
		}
	}

	s.setActive(newActive)
	s.saveActivePairs()

	s.logger.Info().
		Int("valid", valid).
		Int("total", len(pairs)).
		Int("skipped", skipped).
		Int("alerts", len(newActive)).
		Stringer("next_wait", s.cfg.ScanBooksWait).
		Msg("full scan complete")

	return nil
}

// runActiveScan re-evaluates only the active set. Pairs whose fetch fails
// stay in the set; pairs that fell below the threshold are kept for the next
// full scan to filter, matching the set's rebuild-on-full-scan contract.
func (s *Scheduler) runActiveScan(ctx context.Context) error {
	current := s.ActivePairs()
	if len(current) == 0 {
		return nil
	}

	updated := make([]models.ImpactResult, 0, len(current))
	valid, skipped, belowNow := 0, 0, 0

	for _, prev := range current {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		product, ok := s.product(prev.ProductID)
		if !ok {
			skipped++
			continue
		}

		res, decision, err := s.scanPair(ctx, product)
		if err != nil {
			var rlErr *fetch.RateLimitError
			if errors.As(err, &rlErr) {
				return err
			}
			s.logger.Warn().Err(err).Str("pair", prev.ProductID).
				Msg("rescan failed, keeping pair in active set")
			updated = append(updated, prev)
			skipped++
			continue
		}
		if res == nil {
			updated = append(updated, prev)
			continue
		}

		valid++
		s.storeResult(*res)
		s.display(*res, decision)

		if decision != models.DecisionAlert {
			belowNow++
		}
		updated = append(updated, *res)
	}

	s.setActive(updated)
	s.saveActivePairs()

	s.logger.Info().
		Int("valid", valid).
		Int("total", len(current)).
		Int("skipped", skipped).
		Stringer("next_wait", s.cfg.ScanActiveWait).
		Msg("active spread scan complete")
	if belowNow > 0 {
		s.logger.Info().Int("pairs", belowNow).
			Msg("pairs now below spread threshold, kept until next full scan")
	}

	return nil
}

// scanPair runs the per-pair pipeline: stats, volume screen, book fetch,
// impact computation, classification. A nil result with nil error means the
// pair was screened out below the volume threshold without display.
func (s *Scheduler) scanPair(ctx context.Context, product models.Product) (*models.ImpactResult, models.Decision, error) {
	stats, err := s.exchange.Get24hStats(ctx, product.ID)
	if err != nil {
		return nil, 0, err
	}
	s.checkVolumeJump(product.ID, stats.USDVolume)

	showBelow := s.cfg.ShowScanResults && s.cfg.ShowBelowThreshold
	if stats.USDVolume < s.cfg.Min24hVolume && !showBelow {
		return nil, 0, nil
	}

	book, err := s.exchange.GetOrderBook(ctx, product.ID, 2)
	if err != nil {
		return nil, 0, err
	}

	res, err := impact.Compute(book, s.notional)
	if err != nil {
		return nil, 0, err
	}
	res.USDVolume = stats.USDVolume
	res.Timestamp = s.now()

	return res, impact.Classify(res, s.cfg), nil
}

// display writes the per-pair row per the display toggles: everything when
// ShowScanResults is on (threshold permitting), alerts only otherwise.
func (s *Scheduler) display(res models.ImpactResult, decision models.Decision) {
	below := decision == models.DecisionBelowVolume
	decimals := s.decimals(res.ProductID)

	if s.cfg.ShowScanResults {
		if !below || s.cfg.ShowBelowThreshold {
			s.printRow(res, decimals, below)
		}
		return
	}
	if decision == models.DecisionAlert {
		s.printRow(res, decimals, false)
	}
}

func (s *Scheduler) decimals(productID string) int {
	if product, ok := s.product(productID); ok {
		return product.PriceDecimals(s.cfg.DefaultPrecision)
	}
	return s.cfg.DefaultPrecision
}

// checkVolumeJump flags implausible swings in the reported 24h volume, which
// point at the stats endpoint racing the book fetch rather than real flow.
func (s *Scheduler) checkVolumeJump(productID string, volume float64) {
	s.mu.Lock()
	prev, ok := s.prevVols[productID]
	s.prevVols[productID] = volume
	s.mu.Unlock()

	if !ok || prev <= 0 || volume <= 0 {
		return
	}
	ratio := volume / prev
	if (ratio > 100 || ratio < 0.01) && (volume > volumeWarnFloor || prev > volumeWarnFloor) {
		s.logger.Warn().
			Str("pair", productID).
			Float64("previous", prev).
			Float64("current", volume).
			Float64("ratio", ratio).
			Msg("24h volume changed dramatically between scans")
	}
}

func (s *Scheduler) banner() {
	s.logger.Info().
		Float64("orderbook_value", s.cfg.OrderbookValue).
		Float64("spread_alert_pct", s.cfg.SpreadAlert).
		Float64("min_24h_volume", s.cfg.Min24hVolume).
		Stringer("scan_interval", s.cfg.ScanBooksWait).
		Stringer("active_interval", s.cfg.ScanActiveWait).
		Int("active_scan_cycles", s.cfg.ActiveScanCycles).
		Bool("scan_once", s.cfg.ScanOnce).
		Bool("show_scan_results", s.cfg.ShowScanResults).
		Msg("orderbook scanner starting")
}

func (s *Scheduler) logLoadedPairs(pairs []string) {
	for _, pair := range pairs {
		if product, ok := s.product(pair); ok {
			s.logger.Info().Str("pair", pair).
				Int("decimals", product.PriceDecimals(s.cfg.DefaultPrecision)).
				Msg("loaded trading pair")
		} else {
			s.logger.Info().Str("pair", pair).Msg("loaded trading pair (no product info)")
		}
	}
}

func (s *Scheduler) setCatalog(list []models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.catalog = make(map[string]models.Product, len(list))
	for _, p := range list {
		s.catalog[p.ID] = p
	}
}

func (s *Scheduler) product(id string) (models.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.catalog[id]
	return p, ok
}

func (s *Scheduler) storeResult(res models.ImpactResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.ProductID] = res
}

func (s *Scheduler) setActive(set []models.ImpactResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = set
}

func (s *Scheduler) activeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

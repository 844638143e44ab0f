package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a tradable-pair descriptor as returned by the exchange's
// /products endpoint. Snapshots are immutable; a metadata refresh replaces
// the whole set.
type Product struct {
	ID              string `json:"id"`
	BaseCurrency    string `json:"base_currency"`
	QuoteCurrency   string `json:"quote_currency"`
	QuoteIncrement  string `json:"quote_increment"`
	BaseIncrement   string `json:"base_increment"`
	MinMarketFunds  string `json:"min_market_funds"`
	MaxMarketFunds  string `json:"max_market_funds"`
	Status          string `json:"status"`
	TradingDisabled bool   `json:"trading_disabled"`
}

// Tradable reports whether the product should be scanned at all. Stricter
// than trading_disabled alone: any non-online status (delisted, post_only,
// limit_only) is excluded too, since those books do not take market orders.
func (p Product) Tradable() bool {
	return !p.TradingDisabled && (p.Status == "" || p.Status == "online")
}

// PriceDecimals derives display precision from the quote increment
// (e.g. "0.01" -> 2). Falls back when the increment is missing or unparsable.
func (p Product) PriceDecimals(fallback int) int {
	inc := strings.TrimSpace(p.QuoteIncrement)
	if inc == "" {
		return fallback
	}
	if _, err := decimal.NewFromString(inc); err != nil {
		return fallback
	}
	if i := strings.IndexByte(inc, '.'); i >= 0 {
		return len(inc) - i - 1
	}
	return 0
}

// BookLevel is one (price, size) rung of an order-book ladder.
type BookLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBook is a single depth snapshot for one pair. Bids are ordered by
// descending price, asks by ascending price. Never persisted.
type OrderBook struct {
	ProductID string
	Bids      []BookLevel
	Asks      []BookLevel
}

// Stats carries the 24-hour trading figures for one pair.
type Stats struct {
	ProductID string
	Volume24h float64 // base-currency units
	LastPrice float64
	USDVolume float64 // Volume24h * LastPrice
}

// ImpactResult is the per-pair outcome of one scan cycle: quoted spread plus
// simulated market-order impact for the configured notional.
type ImpactResult struct {
	ProductID       string    `json:"id"`
	BestBid         float64   `json:"best_bid"`
	BestAsk         float64   `json:"best_ask"`
	SpreadPct       float64   `json:"spread_pct"`           // (ask-bid)/bid * 100
	BuyImpactPct    float64   `json:"buy_impact_pct"`       // (avgBuy-bestAsk)/bestAsk * 100
	SellImpactPct   float64   `json:"sell_impact_pct"`      // (bestBid-avgSell)/bestBid * 100
	EffectiveSpread float64   `json:"effective_spread_pct"` // round-trip cost of the notional
	USDVolume       float64   `json:"usd_volume"`
	Timestamp       time.Time `json:"timestamp"`
}

// Symbol returns the base symbol for display ("BTC-USD" -> "BTC").
func (r ImpactResult) Symbol() string {
	if i := strings.IndexByte(r.ProductID, '-'); i >= 0 {
		return r.ProductID[:i]
	}
	return r.ProductID
}

// Decision is the classifier's verdict for one scanned pair.
type Decision int

const (
	DecisionNormal Decision = iota
	DecisionBelowVolume
	DecisionAlert
)

func (d Decision) String() string {
	switch d {
	case DecisionAlert:
		return "ALERT"
	case DecisionBelowVolume:
		return "BELOW_VOLUME"
	default:
		return "NORMAL"
	}
}

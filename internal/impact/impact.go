// Package impact prices simulated market orders through an order-book
// snapshot and classifies pairs against the configured thresholds.
package impact

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/suwandre/spreadscan/config"
	"github.com/suwandre/spreadscan/internal/models"
)

// InsufficientDepthError means a side of the book cannot absorb the target
// notional, so no meaningful average execution price exists.
type InsufficientDepthError struct {
	ProductID string
	Side      string // "buy" walks asks, "sell" walks bids
	Available decimal.Decimal
	Target    decimal.Decimal
}

func (e *InsufficientDepthError) Error() string {
	return fmt.Sprintf("%s: %s side holds only %s of %s target notional",
		e.ProductID, e.Side, e.Available.StringFixed(2), e.Target.StringFixed(2))
}

// Compute walks both ladders of the snapshot pricing a market buy and a
// market sell of the given notional value. Pure function; USDVolume and
// Timestamp are left for the caller to fill in.
func Compute(book *models.OrderBook, notional decimal.Decimal) (*models.ImpactResult, error) {
	if book == nil || len(book.Bids) == 0 || len(book.Asks) == 0 {
		return nil, fmt.Errorf("incomplete order book for %s", bookID(book))
	}

	bestBid := book.Bids[0].Price
	bestAsk := book.Asks[0].Price

	if !bestBid.IsPositive() || !bestAsk.IsPositive() {
		return nil, fmt.Errorf("%s: invalid prices bid=%s ask=%s", book.ProductID, bestBid, bestAsk)
	}
	if bestAsk.LessThan(bestBid) {
		return nil, fmt.Errorf("%s: crossed book bid=%s ask=%s", book.ProductID, bestBid, bestAsk)
	}

	avgBuy, err := walk(book.ProductID, "buy", book.Asks, notional)
	if err != nil {
		return nil, err
	}
	avgSell, err := walk(book.ProductID, "sell", book.Bids, notional)
	if err != nil {
		return nil, err
	}

	hundred := decimal.NewFromInt(100)
	spreadPct := bestAsk.Sub(bestBid).Div(bestBid).Mul(hundred)
	buyImpactPct := avgBuy.Sub(bestAsk).Div(bestAsk).Mul(hundred)
	sellImpactPct := bestBid.Sub(avgSell).Div(bestBid).Mul(hundred)
	effectivePct := avgBuy.Sub(avgSell).Div(bestBid).Mul(hundred)

	return &models.ImpactResult{
		ProductID:       book.ProductID,
		BestBid:         bestBid.InexactFloat64(),
		BestAsk:         bestAsk.InexactFloat64(),
		SpreadPct:       spreadPct.InexactFloat64(),
		BuyImpactPct:    buyImpactPct.InexactFloat64(),
		SellImpactPct:   sellImpactPct.InexactFloat64(),
		EffectiveSpread: effectivePct.InexactFloat64(),
	}, nil
}

// walk accumulates levels until the target notional is filled, consuming the
// final level only partially, and returns the volume-weighted average price.
func walk(productID, side string, levels []models.BookLevel, target decimal.Decimal) (decimal.Decimal, error) {
	remaining := target
	cost := decimal.Zero
	quantity := decimal.Zero

	for i, level := range levels {
		if !level.Price.IsPositive() {
			return decimal.Zero, fmt.Errorf("%s: %s side level %d has non-positive price %s",
				productID, side, i, level.Price)
		}

		levelValue := level.Price.Mul(level.Size)

		take := levelValue
		if take.GreaterThan(remaining) {
			take = remaining
		}

		cost = cost.Add(take)
		quantity = quantity.Add(take.Div(level.Price))
		remaining = remaining.Sub(take)

		if remaining.IsZero() {
			return cost.Div(quantity), nil
		}
	}

	return decimal.Zero, &InsufficientDepthError{
		ProductID: productID,
		Side:      side,
		Available: target.Sub(remaining),
		Target:    target,
	}
}

// Classify applies the volume and spread thresholds. The volume screen wins
// when both conditions hold. Alerts fire on the quoted spread or on the
// depth-weighted effective spread, whichever crosses the threshold.
func Classify(result *models.ImpactResult, cfg *config.Config) models.Decision {
	if result.USDVolume < cfg.Min24hVolume {
		return models.DecisionBelowVolume
	}
	if result.SpreadPct > cfg.SpreadAlert || result.EffectiveSpread > cfg.SpreadAlert {
		return models.DecisionAlert
	}
	return models.DecisionNormal
}

func bookID(book *models.OrderBook) string {
	if book == nil {
		return "<nil>"
	}
	return book.ProductID
}

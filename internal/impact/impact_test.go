package impact

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suwandre/spreadscan/config"
	"github.com/suwandre/spreadscan/internal/models"
)

func level(price, size string) models.BookLevel {
	return models.BookLevel{
		Price: decimal.RequireFromString(price),
		Size:  decimal.RequireFromString(size),
	}
}

func TestCompute_DeepBook(t *testing.T) {
	book := &models.OrderBook{
		ProductID: "BTC-USD",
		Bids:      []models.BookLevel{level("50000.00", "10")},
		Asks:      []models.BookLevel{level("50010.00", "10")},
	}

	res, err := Compute(book, decimal.NewFromInt(50000))
	require.NoError(t, err)

	// Full notional fills at the top of book on both sides.
	assert.InDelta(t, 0.02, res.SpreadPct, 1e-9)
	assert.InDelta(t, 0.0, res.BuyImpactPct, 1e-9)
	assert.InDelta(t, 0.0, res.SellImpactPct, 1e-9)
	assert.InDelta(t, res.SpreadPct, res.EffectiveSpread, 1e-9)
	assert.Equal(t, 50000.0, res.BestBid)
	assert.Equal(t, 50010.0, res.BestAsk)
}

func TestCompute_ThinAskLadder(t *testing.T) {
	// $50k buy has to climb three ask levels; sell side fills at the top.
	book := &models.OrderBook{
		ProductID: "XYZ-USD",
		Bids:      []models.BookLevel{level("0.0152", "10000000")},
		Asks: []models.BookLevel{
			level("0.0153", "1000000"),
			level("0.0170", "1000000"),
			level("0.0200", "1000000"),
		},
	}

	res, err := Compute(book, decimal.NewFromInt(50000))
	require.NoError(t, err)

	assert.Greater(t, res.BuyImpactPct, 5.0, "climbing the ladder must show up as buy impact")
	assert.InDelta(t, 0.0, res.SellImpactPct, 1e-9)
	assert.Greater(t, res.EffectiveSpread, res.SpreadPct)

	cfg := &config.Config{SpreadAlert: 5, Min24hVolume: 0}
	res.USDVolume = 1_000_000
	assert.Equal(t, models.DecisionAlert, Classify(res, cfg))
}

func TestCompute_PartialLevelVWAP(t *testing.T) {
	// $150 target: $100 from the first level, $50 of the $200 second level.
	book := &models.OrderBook{
		ProductID: "TEST-USD",
		Bids:      []models.BookLevel{level("10", "100")},
		Asks: []models.BookLevel{
			level("10", "10"), // $100
			level("20", "10"), // $200
		},
	}

	res, err := Compute(book, decimal.NewFromInt(150))
	require.NoError(t, err)

	// cost 150, qty 10 + 2.5 -> avg 12, impact (12-10)/10 = 20%
	assert.InDelta(t, 20.0, res.BuyImpactPct, 1e-9)
}

func TestCompute_InsufficientDepth(t *testing.T) {
	tests := []struct {
		name string
		book *models.OrderBook
		side string
	}{
		{
			name: "thin asks",
			book: &models.OrderBook{
				ProductID: "AAA-USD",
				Bids:      []models.BookLevel{level("100", "10000")},
				Asks:      []models.BookLevel{level("101", "1")},
			},
			side: "buy",
		},
		{
			name: "thin bids",
			book: &models.OrderBook{
				ProductID: "AAA-USD",
				Bids:      []models.BookLevel{level("100", "1")},
				Asks:      []models.BookLevel{level("101", "10000")},
			},
			side: "sell",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.book, decimal.NewFromInt(50000))

			var depthErr *InsufficientDepthError
			require.ErrorAs(t, err, &depthErr)
			assert.Equal(t, tt.side, depthErr.Side)
			assert.True(t, depthErr.Available.LessThan(depthErr.Target))
		})
	}
}

func TestCompute_MonotonicLadderNonNegativeImpact(t *testing.T) {
	book := &models.OrderBook{
		ProductID: "MONO-USD",
		Bids: []models.BookLevel{
			level("99", "100"),
			level("98", "200"),
			level("95", "500"),
		},
		Asks: []models.BookLevel{
			level("100", "100"),
			level("102", "200"),
			level("105", "500"),
		},
	}

	res, err := Compute(book, decimal.NewFromInt(40000))
	require.NoError(t, err)

	assert.GreaterOrEqual(t, res.BuyImpactPct, 0.0)
	assert.GreaterOrEqual(t, res.SellImpactPct, 0.0)
}

func TestCompute_InvalidBooks(t *testing.T) {
	tests := []struct {
		name string
		book *models.OrderBook
	}{
		{"nil book", nil},
		{"no asks", &models.OrderBook{ProductID: "X-USD", Bids: []models.BookLevel{level("1", "1")}}},
		{"no bids", &models.OrderBook{ProductID: "X-USD", Asks: []models.BookLevel{level("1", "1")}}},
		{
			"crossed book",
			&models.OrderBook{
				ProductID: "X-USD",
				Bids:      []models.BookLevel{level("101", "100")},
				Asks:      []models.BookLevel{level("100", "100")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(tt.book, decimal.NewFromInt(100))
			assert.Error(t, err)
		})
	}
}

func TestCompute_ZeroPriceDeepInLadder(t *testing.T) {
	// A zero-price rung past the top of book must surface as an error, not a
	// division panic, so the scan cycle can skip the pair and move on.
	tests := []struct {
		name string
		book *models.OrderBook
	}{
		{
			"zero-price ask",
			&models.OrderBook{
				ProductID: "X-USD",
				Bids:      []models.BookLevel{level("100", "1000")},
				Asks: []models.BookLevel{
					level("100", "1"),
					level("0", "5"),
				},
			},
		},
		{
			"zero-price bid",
			&models.OrderBook{
				ProductID: "X-USD",
				Bids: []models.BookLevel{
					level("100", "1"),
					level("0", "5"),
				},
				Asks: []models.BookLevel{level("100", "1000")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Compute(tt.book, decimal.NewFromInt(50000))
			require.Error(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestClassify(t *testing.T) {
	cfg := &config.Config{SpreadAlert: 5, Min24hVolume: 10000}

	tests := []struct {
		name   string
		result models.ImpactResult
		want   models.Decision
	}{
		{
			name:   "normal",
			result: models.ImpactResult{SpreadPct: 0.02, EffectiveSpread: 0.05, USDVolume: 50000},
			want:   models.DecisionNormal,
		},
		{
			name:   "alert on quoted spread",
			result: models.ImpactResult{SpreadPct: 6, EffectiveSpread: 6, USDVolume: 50000},
			want:   models.DecisionAlert,
		},
		{
			name:   "alert on effective spread only",
			result: models.ImpactResult{SpreadPct: 0.5, EffectiveSpread: 13.44, USDVolume: 50000},
			want:   models.DecisionAlert,
		},
		{
			name:   "below volume",
			result: models.ImpactResult{SpreadPct: 0.02, EffectiveSpread: 0.05, USDVolume: 500},
			want:   models.DecisionBelowVolume,
		},
		{
			name:   "below volume wins over alert",
			result: models.ImpactResult{SpreadPct: 20, EffectiveSpread: 30, USDVolume: 500},
			want:   models.DecisionBelowVolume,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(&tt.result, cfg)
			assert.Equal(t, tt.want, got)
			// Total and deterministic: same inputs, same verdict.
			assert.Equal(t, got, Classify(&tt.result, cfg))
		})
	}
}

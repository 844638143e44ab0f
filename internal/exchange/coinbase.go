package exchange

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/suwandre/spreadscan/internal/fetch"
	"github.com/suwandre/spreadscan/internal/models"
)

// CoinbaseAdapter reads the Coinbase Exchange public market-data API.
// No credentials are used; every endpoint it touches is unauthenticated.
type CoinbaseAdapter struct {
	baseURL string
	client  *fetch.Client
}

func NewCoinbaseAdapter(baseURL string, client *fetch.Client) *CoinbaseAdapter {
	return &CoinbaseAdapter{
		baseURL: baseURL,
		client:  client,
	}
}

func (c *CoinbaseAdapter) Name() string {
	return "coinbase"
}

// GetProducts fetches the full tradable-product list.
func (c *CoinbaseAdapter) GetProducts(ctx context.Context) ([]models.Product, error) {
	url := c.baseURL + "/products"

	var products []models.Product
	if err := c.client.GetJSON(ctx, url, &products); err != nil {
		return nil, fmt.Errorf("coinbase products: %w", err)
	}
	return products, nil
}

// GetOrderBook fetches the aggregated book for one product. Level 2 returns
// the top 50 aggregated levels per side, which is what the scanner uses.
func (c *CoinbaseAdapter) GetOrderBook(ctx context.Context, productID string, level int) (*models.OrderBook, error) {
	url := fmt.Sprintf("%s/products/%s/book?level=%d", c.baseURL, productID, level)

	// Book entries are heterogeneous arrays: ["price", "size", num_orders].
	var raw struct {
		Bids [][]any `json:"bids"`
		Asks [][]any `json:"asks"`
	}

	if err := c.client.GetJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("coinbase book for %s: %w", productID, err)
	}

	bids, err := parseLevels(raw.Bids)
	if err != nil {
		return nil, fmt.Errorf("coinbase book for %s: bids: %w", productID, err)
	}
	asks, err := parseLevels(raw.Asks)
	if err != nil {
		return nil, fmt.Errorf("coinbase book for %s: asks: %w", productID, err)
	}

	return &models.OrderBook{
		ProductID: productID,
		Bids:      bids,
		Asks:      asks,
	}, nil
}

// Get24hStats fetches the 24-hour trading stats for one product and derives
// the quote-currency volume as volume * last trade price.
func (c *CoinbaseAdapter) Get24hStats(ctx context.Context, productID string) (*models.Stats, error) {
	url := fmt.Sprintf("%s/products/%s/stats", c.baseURL, productID)

	var raw struct {
		Volume string `json:"volume"`
		Last   string `json:"last"`
	}

	if err := c.client.GetJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("coinbase stats for %s: %w", productID, err)
	}

	volume, err := strconv.ParseFloat(raw.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("coinbase stats for %s: parsing volume %q: %w", productID, raw.Volume, err)
	}
	last, err := strconv.ParseFloat(raw.Last, 64)
	if err != nil {
		return nil, fmt.Errorf("coinbase stats for %s: parsing last price %q: %w", productID, raw.Last, err)
	}

	return &models.Stats{
		ProductID: productID,
		Volume24h: volume,
		LastPrice: last,
		USDVolume: volume * last,
	}, nil
}

func parseLevels(raw [][]any) ([]models.BookLevel, error) {
	levels := make([]models.BookLevel, 0, len(raw))

	for i, entry := range raw {
		if len(entry) < 2 {
			return nil, fmt.Errorf("level %d has %d fields, want at least 2", i, len(entry))
		}

		priceStr, ok := entry[0].(string)
		if !ok {
			return nil, fmt.Errorf("level %d price is not a string", i)
		}
		sizeStr, ok := entry[1].(string)
		if !ok {
			return nil, fmt.Errorf("level %d size is not a string", i)
		}

		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, fmt.Errorf("level %d price %q: %w", i, priceStr, err)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("level %d has non-positive price %q", i, priceStr)
		}
		size, err := decimal.NewFromString(sizeStr)
		if err != nil {
			return nil, fmt.Errorf("level %d size %q: %w", i, sizeStr, err)
		}

		levels = append(levels, models.BookLevel{Price: price, Size: size})
	}
	return levels, nil
}

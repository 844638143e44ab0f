package exchange

import (
	"context"

	"github.com/suwandre/spreadscan/internal/models"
)

type Exchange interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetOrderBook(ctx context.Context, productID string, level int) (*models.OrderBook, error)
	Get24hStats(ctx context.Context, productID string) (*models.Stats, error)
	Name() string
}

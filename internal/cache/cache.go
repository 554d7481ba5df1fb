package cache

import (
	"context"
	"time"

	"milkledger/backend/internal/domain"
)

type StockReportCache interface {
	Get(ctx context.Context, key string) ([]domain.ProductStock, bool, error)
	Set(ctx context.Context, key string, value []domain.ProductStock, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopStockReportCache struct{}

func (NoopStockReportCache) Get(_ context.Context, _ string) ([]domain.ProductStock, bool, error) {
	return nil, false, nil
}

func (NoopStockReportCache) Set(_ context.Context, _ string, _ []domain.ProductStock, _ time.Duration) error {
	return nil
}

func (NoopStockReportCache) Invalidate(_ context.Context, _ string) error {
	return nil
}

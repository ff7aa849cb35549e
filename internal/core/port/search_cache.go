package port

import (
	"context"
	"errors"
	"time"

	"search-service/internal/core/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// SearchCachePort кэш первых страниц поиска.
// Generation растет при каждом изменении индекса и входит в ключ.
type SearchCachePort interface {
	Get(ctx context.Context, key string) (*domain.SearchResponse, error)
	Set(ctx context.Context, key string, resp *domain.SearchResponse, ttl time.Duration) error
	Generation(ctx context.Context) (int64, error)
	BumpGeneration(ctx context.Context) error
	Ping(ctx context.Context) error
}

package usecase

import (
	"context"
	"sync"
	"time"

	"search-service/internal/adapters/memory"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

// flakyStore хранилище в памяти с внедряемыми ошибками
type flakyStore struct {
	*memory.DocumentStore
	queryErr  error
	aggErr    error
	upsertErr error
	queries   int
	mu        sync.Mutex
}

func newFlakyStore() *flakyStore {
	return &flakyStore{DocumentStore: memory.NewDocumentStore()}
}

func (s *flakyStore) QueryListings(ctx context.Context, q domain.ListingQuery) (*domain.ListingPage, error) {
	s.mu.Lock()
	s.queries++
	s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.DocumentStore.QueryListings(ctx, q)
}

func (s *flakyStore) AggregateListings(ctx context.Context, f domain.AggregationField, filter domain.ListingFilter) (map[string]int64, error) {
	if s.aggErr != nil {
		return nil, s.aggErr
	}
	return s.DocumentStore.AggregateListings(ctx, f, filter)
}

func (s *flakyStore) UpsertListing(ctx context.Context, doc domain.ListingDocument) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	return s.DocumentStore.UpsertListing(ctx, doc)
}

// mapCache кэш поиска в памяти
type mapCache struct {
	mu         sync.Mutex
	items      map[string]domain.SearchResponse
	generation int64
	sets       int
}

func newMapCache() *mapCache {
	return &mapCache{items: map[string]domain.SearchResponse{}}
}

func (c *mapCache) Get(_ context.Context, key string) (*domain.SearchResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp, ok := c.items[key]
	if !ok {
		return nil, port.ErrCacheMiss
	}
	return &resp, nil
}

func (c *mapCache) Set(_ context.Context, key string, resp *domain.SearchResponse, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = *resp
	c.sets++
	return nil
}

func (c *mapCache) Generation(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *mapCache) BumpGeneration(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	return nil
}

func (c *mapCache) Ping(context.Context) error { return nil }

func defaultBands() []domain.PriceBand {
	bands, _ := domain.PriceBandsFromBounds([]float64{0, 1000, 2000, 3000, 5000})
	return bands
}

func listingEvent(id string, action domain.Action, emitted time.Time, p domain.ListingPayload) domain.ChangeEvent {
	p.ID = id
	return domain.ChangeEvent{
		EntityKind: domain.EntityListing,
		Action:     action,
		EntityID:   id,
		EmittedAt:  emitted,
		Listing:    &p,
	}
}

package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"search-service/internal/contextkeys"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"

	"golang.org/x/sync/errgroup"
)

// aggregator считает фасеты под заданным фильтром
type aggregator struct {
	store        port.DocumentStorePort
	bands        []domain.PriceBand
	storeTimeout time.Duration
}

func (a *aggregator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.storeTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.storeTimeout)
}

// all считает три фасета параллельно; ошибка любого - ошибка целиком
func (a *aggregator) all(ctx context.Context, filter domain.ListingFilter) (*domain.Aggregations, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	out := &domain.Aggregations{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		buckets, err := a.store.AggregateListings(gctx, domain.AggregateByCity, filter)
		out.ByCity = buckets
		return err
	})
	g.Go(func() error {
		buckets, err := a.store.AggregateListings(gctx, domain.AggregateByPropertyType, filter)
		out.ByPropertyType = buckets
		return err
	})
	g.Go(func() error {
		buckets, err := a.priceRanges(gctx, filter)
		out.ByPriceRange = buckets
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// priceRanges число документов в каждом ценовом диапазоне, пустые диапазоны тоже попадают в ответ
func (a *aggregator) priceRanges(ctx context.Context, filter domain.ListingFilter) (map[string]int64, error) {
	var mu sync.Mutex
	out := make(map[string]int64, len(a.bands))

	g, gctx := errgroup.WithContext(ctx)
	for _, band := range a.bands {
		g.Go(func() error {
			f := filter
			f.Price = intersectPrice(filter.Price, band.Range())
			n, err := a.store.CountListings(gctx, f)
			if err != nil {
				return fmt.Errorf("count price band %s: %w", band.Label(), err)
			}
			mu.Lock()
			out[band.Label()] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// intersectPrice пересечение ценового фильтра запроса (включительно) и диапазона [min, max)
func intersectPrice(user, band domain.FloatRange) domain.FloatRange {
	out := band
	if user.Min != nil && (out.Min == nil || *user.Min > *out.Min) {
		out.Min = user.Min
	}
	if user.Max != nil && (band.Max == nil || *user.Max < *band.Max) {
		out.Max = user.Max
		out.MaxExclusive = user.MaxExclusive
	}
	return out
}

// AggregationsUseCase глобальные фасеты по доступным объявлениям
type AggregationsUseCase struct {
	agg *aggregator
}

func NewAggregationsUseCase(store port.DocumentStorePort, bands []domain.PriceBand, storeTimeout time.Duration) *AggregationsUseCase {
	return &AggregationsUseCase{agg: &aggregator{store: store, bands: bands, storeTimeout: storeTimeout}}
}

func availableOnly() domain.ListingFilter {
	available := true
	return domain.ListingFilter{Available: &available}
}

func (uc *AggregationsUseCase) CityAggregation(ctx context.Context) (map[string]int64, error) {
	return uc.byField(ctx, domain.AggregateByCity)
}

func (uc *AggregationsUseCase) PropertyTypeAggregation(ctx context.Context) (map[string]int64, error) {
	return uc.byField(ctx, domain.AggregateByPropertyType)
}

func (uc *AggregationsUseCase) byField(ctx context.Context, field domain.AggregationField) (map[string]int64, error) {
	ctx, cancel := uc.agg.withTimeout(ctx)
	defer cancel()

	buckets, err := uc.agg.store.AggregateListings(ctx, field, availableOnly())
	if err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Aggregation failed", err, port.Fields{"field": string(field)})
		return nil, fmt.Errorf("aggregate by %s: %w", field, err)
	}
	return buckets, nil
}

func (uc *AggregationsUseCase) PriceRangeAggregation(ctx context.Context) (map[string]int64, error) {
	ctx, cancel := uc.agg.withTimeout(ctx)
	defer cancel()

	buckets, err := uc.agg.priceRanges(ctx, availableOnly())
	if err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Price range aggregation failed", err, nil)
		return nil, err
	}
	return buckets, nil
}

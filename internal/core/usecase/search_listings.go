package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"search-service/internal/contextkeys"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Исходы поиска для метрик
const (
	SearchOutcomeOK       = "ok"
	SearchOutcomeCached   = "cached"
	SearchOutcomeDegraded = "degraded"
	SearchOutcomeInvalid  = "invalid"
)

type SearchConfig struct {
	MaxRadiusKm     float64
	PriceBands      []domain.PriceBand
	StoreTimeout    time.Duration
	CacheTTL        time.Duration
	SuggestionLimit int
}

// SearchListingsUseCase поиск объявлений: нормализация, выполнение, фасеты первой страницы, кэш
type SearchListingsUseCase struct {
	store       port.DocumentStorePort
	cache       port.SearchCachePort
	suggestions *SuggestionsUseCase
	metrics     port.MetricsPort
	agg         *aggregator
	cfg         SearchConfig
	group       singleflight.Group
	now         func() time.Time
}

// NewSearchListingsUseCase cache, suggestions и metrics могут быть nil
func NewSearchListingsUseCase(
	store port.DocumentStorePort,
	cache port.SearchCachePort,
	suggestions *SuggestionsUseCase,
	metrics port.MetricsPort,
	cfg SearchConfig,
) *SearchListingsUseCase {
	if metrics == nil {
		metrics = port.NoopMetrics{}
	}
	if cfg.MaxRadiusKm <= 0 {
		cfg.MaxRadiusKm = 100
	}
	return &SearchListingsUseCase{
		store:       store,
		cache:       cache,
		suggestions: suggestions,
		metrics:     metrics,
		agg:         &aggregator{store: store, bands: cfg.PriceBands, storeTimeout: cfg.StoreTimeout},
		cfg:         cfg,
		now:         time.Now,
	}
}

func (uc *SearchListingsUseCase) Execute(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	started := uc.now()
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"use_case": "SearchListings"})

	query, err := NormalizeSearchRequest(req, uc.cfg.MaxRadiusKm)
	if err != nil {
		uc.metrics.SearchServed(SearchOutcomeInvalid, uc.now().Sub(started))
		logger.Warn("Invalid search request", port.Fields{"error": err.Error()})
		return nil, err
	}

	key, cacheable := uc.cacheKey(ctx, query, logger)
	if cacheable {
		cached, err := uc.cache.Get(ctx, key)
		switch {
		case err == nil:
			uc.metrics.CacheLookup(true)
			uc.metrics.SearchServed(SearchOutcomeCached, uc.now().Sub(started))
			return uc.finish(*cached, started), nil
		case errors.Is(err, port.ErrCacheMiss):
			uc.metrics.CacheLookup(false)
		default:
			logger.Warn("Search cache read failed", port.Fields{"error": err.Error()})
		}
	}

	flightKey := key
	if flightKey == "" {
		flightKey = queryFingerprint(query)
	}
	// одинаковые параллельные запросы выполняются один раз
	v, _, _ := uc.group.Do(flightKey, func() (interface{}, error) {
		return uc.execute(context.WithoutCancel(ctx), query, logger), nil
	})
	result := v.(searchResult)
	resp, degraded := result.resp, result.degraded

	if cacheable && !degraded {
		if err := uc.cache.Set(ctx, key, resp, uc.cfg.CacheTTL); err != nil {
			logger.Warn("Search cache write failed", port.Fields{"error": err.Error()})
		}
	}

	outcome := SearchOutcomeOK
	if degraded {
		outcome = SearchOutcomeDegraded
	}
	uc.metrics.SearchServed(outcome, uc.now().Sub(started))
	return uc.finish(*resp, started), nil
}

// searchResult degraded - пустой ответ после ошибки хранилища, такие ответы не кэшируются
type searchResult struct {
	resp     *domain.SearchResponse
	degraded bool
}

// finish копия ответа со своим searchId и временем выполнения
func (uc *SearchListingsUseCase) finish(resp domain.SearchResponse, started time.Time) *domain.SearchResponse {
	resp.Content = append([]domain.ListingHit{}, resp.Content...)
	resp.SearchID = uuid.NewString()
	resp.TookMs = uc.now().Sub(started).Milliseconds()
	return &resp
}

func (uc *SearchListingsUseCase) execute(ctx context.Context, query domain.ListingQuery, logger port.LoggerPort) searchResult {
	storeCtx, cancel := uc.agg.withTimeout(ctx)
	defer cancel()

	page, err := uc.store.QueryListings(storeCtx, query)
	if err != nil {
		logger.Error("Document store query failed, returning empty result", err, port.Fields{"page": query.Page})
		return searchResult{resp: degradedResponse(query), degraded: true}
	}

	resp := envelope(query, page)

	if query.Page == 0 {
		aggs, err := uc.agg.all(ctx, query.Filter)
		if err != nil {
			logger.Warn("Aggregations failed, omitted from response", port.Fields{"error": err.Error()})
		} else {
			resp.Aggregations = aggs
		}
		if uc.suggestions != nil && query.Filter.Keyword != "" {
			if s := uc.suggestions.Suggestions(ctx, query.Filter.Keyword, uc.cfg.SuggestionLimit); len(s) > 0 {
				resp.Suggestions = s
			}
		}
	}

	logger.Info("Search executed", port.Fields{"total": page.Total, "page": query.Page, "size": query.Size})
	return searchResult{resp: resp}
}

func envelope(query domain.ListingQuery, page *domain.ListingPage) *domain.SearchResponse {
	totalPages := 0
	if page.Total > 0 {
		totalPages = int((page.Total + int64(query.Size) - 1) / int64(query.Size))
	}
	hasNext := query.Page+1 < totalPages
	hits := page.Hits
	if hits == nil {
		hits = []domain.ListingHit{}
	}
	return &domain.SearchResponse{
		Content:     hits,
		Total:       page.Total,
		Page:        query.Page,
		Size:        query.Size,
		TotalPages:  totalPages,
		HasNext:     hasNext,
		HasPrevious: query.Page > 0,
		IsFirst:     query.Page == 0,
		IsLast:      !hasNext,
	}
}

func degradedResponse(query domain.ListingQuery) *domain.SearchResponse {
	return &domain.SearchResponse{
		Content: []domain.ListingHit{},
		Page:    query.Page,
		Size:    query.Size,
		IsFirst: true,
		IsLast:  true,
	}
}

// cacheKey кэшируется только первая страница; поколение входит в ключ
func (uc *SearchListingsUseCase) cacheKey(ctx context.Context, query domain.ListingQuery, logger port.LoggerPort) (string, bool) {
	if uc.cache == nil || query.Page != 0 {
		return "", false
	}
	gen, err := uc.cache.Generation(ctx)
	if err != nil {
		logger.Warn("Search cache generation unavailable, cache bypassed", port.Fields{"error": err.Error()})
		return "", false
	}
	return fmt.Sprintf("search:listings:%d:%s", gen, queryFingerprint(query)), true
}

func queryFingerprint(query domain.ListingQuery) string {
	raw, _ := json.Marshal(query)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:16])
}

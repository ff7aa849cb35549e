package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"search-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSearch(store *flakyStore, cache *mapCache) *SearchListingsUseCase {
	uc := NewSearchListingsUseCase(store, nil, NewSuggestionsUseCase([]string{"Minsk apartment", "Brest house"}, nil), nil, SearchConfig{
		MaxRadiusKm:     100,
		PriceBands:      defaultBands(),
		StoreTimeout:    time.Second,
		CacheTTL:        time.Minute,
		SuggestionLimit: 5,
	})
	// nil *mapCache в интерфейсе не равен nil, поэтому кэш подставляется отдельно
	if cache != nil {
		uc.cache = cache
	}
	return uc
}

func seedListings(t *testing.T, store *flakyStore, docs ...domain.ListingDocument) {
	t.Helper()
	for _, d := range docs {
		if d.City == "" {
			d.City = "Minsk"
		}
		if d.PropertyType == "" {
			d.PropertyType = "APARTMENT"
		}
		d.Available = true
		require.NoError(t, store.UpsertListing(context.Background(), d))
	}
}

func hitIDs(resp *domain.SearchResponse) []string {
	out := make([]string, 0, len(resp.Content))
	for _, h := range resp.Content {
		out = append(out, h.Document.ID)
	}
	return out
}

func TestSearch_PriceFilterAndAggregations(t *testing.T) {
	store := newFlakyStore()
	seedListings(t, store,
		domain.ListingDocument{ID: "a", Price: 1800},
		domain.ListingDocument{ID: "b", Price: 2500, City: "Brest", PropertyType: "HOUSE"},
		domain.ListingDocument{ID: "c", Price: 5200},
	)
	uc := newSearch(store, nil)

	resp, err := uc.Execute(context.Background(), domain.SearchRequest{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, resp.Total)
	require.NotNil(t, resp.Aggregations)
	assert.Equal(t, map[string]int64{"0-1000": 0, "1000-2000": 1, "2000-3000": 1, "3000-5000": 0, "5000+": 1}, resp.Aggregations.ByPriceRange)
	assert.Equal(t, map[string]int64{"Minsk": 2, "Brest": 1}, resp.Aggregations.ByCity)
	assert.Equal(t, map[string]int64{"APARTMENT": 2, "HOUSE": 1}, resp.Aggregations.ByPropertyType)
	assert.NotEmpty(t, resp.SearchID)

	resp, err = uc.Execute(context.Background(), domain.SearchRequest{MinPrice: fptr(2000), MaxPrice: fptr(3000)})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, hitIDs(resp))
	assert.Equal(t, map[string]int64{"0-1000": 0, "1000-2000": 0, "2000-3000": 1, "3000-5000": 0, "5000+": 0}, resp.Aggregations.ByPriceRange)
}

func TestSearch_BedroomsExactMatch(t *testing.T) {
	store := newFlakyStore()
	seedListings(t, store,
		domain.ListingDocument{ID: "a", Bedrooms: 2},
		domain.ListingDocument{ID: "b", Bedrooms: 3},
		domain.ListingDocument{ID: "c", Bedrooms: 2},
	)
	resp, err := newSearch(store, nil).Execute(context.Background(), domain.SearchRequest{MinBedrooms: iptr(3), MaxBedrooms: iptr(3)})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, hitIDs(resp))
}

func TestSearch_EnvelopeAndPagination(t *testing.T) {
	store := newFlakyStore()
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		seedListings(t, store, domain.ListingDocument{ID: id, Price: 100})
	}
	uc := newSearch(store, nil)

	resp, err := uc.Execute(context.Background(), domain.SearchRequest{Page: iptr(1), Size: iptr(2), SortBy: "price", SortDirection: "asc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "4"}, hitIDs(resp))
	assert.Equal(t, 3, resp.TotalPages)
	assert.True(t, resp.HasNext)
	assert.True(t, resp.HasPrevious)
	assert.False(t, resp.IsFirst)
	assert.False(t, resp.IsLast)
	assert.Nil(t, resp.Aggregations, "aggregations only on the first page")

	resp, err = uc.Execute(context.Background(), domain.SearchRequest{Page: iptr(2), Size: iptr(2), SortBy: "price", SortDirection: "asc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"5"}, hitIDs(resp))
	assert.True(t, resp.IsLast)
	assert.False(t, resp.HasNext)
}

func TestSearch_BoundaryClamping(t *testing.T) {
	uc := newSearch(newFlakyStore(), nil)

	resp, err := uc.Execute(context.Background(), domain.SearchRequest{Size: iptr(0)})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Size)

	resp, err = uc.Execute(context.Background(), domain.SearchRequest{Size: iptr(1000)})
	require.NoError(t, err)
	assert.Equal(t, 100, resp.Size)

	resp, err = uc.Execute(context.Background(), domain.SearchRequest{Page: iptr(-1)})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Page)
	assert.Equal(t, 20, resp.Size)
	assert.True(t, resp.IsFirst)
	assert.True(t, resp.IsLast)
	assert.Zero(t, resp.TotalPages)
}

func TestSearch_PageBeyondResultWindow(t *testing.T) {
	uc := newSearch(newFlakyStore(), nil)

	resp, err := uc.Execute(context.Background(), domain.SearchRequest{Page: iptr(99), Size: iptr(100)})
	require.NoError(t, err)
	assert.Equal(t, 99, resp.Page)
	assert.Empty(t, resp.Content)

	_, err = uc.Execute(context.Background(), domain.SearchRequest{Page: iptr(100), Size: iptr(100)})
	assert.ErrorIs(t, err, domain.ErrInvalidSearchRequest)

	_, err = uc.Execute(context.Background(), domain.SearchRequest{Page: iptr(math.MaxInt)})
	assert.ErrorIs(t, err, domain.ErrInvalidSearchRequest)

	_, err = uc.Execute(context.Background(), domain.SearchRequest{Page: iptr(math.MaxInt), Size: iptr(1000)})
	assert.ErrorIs(t, err, domain.ErrInvalidSearchRequest)
}

func TestSearch_ValidationErrors(t *testing.T) {
	uc := newSearch(newFlakyStore(), nil)
	cases := map[string]domain.SearchRequest{
		"unknown sort":        {SortBy: "color"},
		"relevance no query":  {SortBy: "relevance"},
		"bad direction":       {SortDirection: "sideways"},
		"zero radius":         {Latitude: fptr(53.9), Longitude: fptr(27.5), RadiusKm: fptr(0)},
		"radius over maximum": {Latitude: fptr(53.9), Longitude: fptr(27.5), RadiusKm: fptr(500)},
		"latitude range":      {Latitude: fptr(91), Longitude: fptr(27.5), RadiusKm: fptr(5)},
		"inverted price":      {MinPrice: fptr(10), MaxPrice: fptr(5)},
		"bad availability":    {Availability: "sometimes"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := uc.Execute(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrInvalidSearchRequest)
		})
	}
}

func TestSearch_AvailabilityDefaultsToAvailable(t *testing.T) {
	store := newFlakyStore()
	seedListings(t, store, domain.ListingDocument{ID: "on"})
	off := domain.ListingDocument{ID: "off", City: "Minsk"}
	require.NoError(t, store.UpsertListing(context.Background(), off))
	uc := newSearch(store, nil)

	resp, err := uc.Execute(context.Background(), domain.SearchRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"on"}, hitIDs(resp))

	resp, err = uc.Execute(context.Background(), domain.SearchRequest{Availability: domain.AvailabilityUnavailable})
	require.NoError(t, err)
	assert.Equal(t, []string{"off"}, hitIDs(resp))

	resp, err = uc.Execute(context.Background(), domain.SearchRequest{Availability: domain.AvailabilityAny})
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.Total)
}

func TestSearch_StoreFailureDegradesToEmpty(t *testing.T) {
	store := newFlakyStore()
	store.queryErr = context.DeadlineExceeded
	cache := newMapCache()
	uc := newSearch(store, cache)

	resp, err := uc.Execute(context.Background(), domain.SearchRequest{Page: iptr(3)})
	require.NoError(t, err)
	assert.Empty(t, resp.Content)
	assert.NotNil(t, resp.Content)
	assert.Zero(t, resp.Total)
	assert.True(t, resp.IsFirst)
	assert.True(t, resp.IsLast)

	_, err = uc.Execute(context.Background(), domain.SearchRequest{})
	require.NoError(t, err)
	assert.Zero(t, cache.sets, "degraded responses are not cached")
}

func TestSearch_AggregationFailureOmitsAggregations(t *testing.T) {
	store := newFlakyStore()
	seedListings(t, store, domain.ListingDocument{ID: "a", Price: 10})
	store.aggErr = errors.New("terms aggregation timed out")

	resp, err := newSearch(store, nil).Execute(context.Background(), domain.SearchRequest{})
	require.NoError(t, err)
	assert.Nil(t, resp.Aggregations)
	assert.EqualValues(t, 1, resp.Total)
}

func TestSearch_CacheHitAndInvalidation(t *testing.T) {
	ctx := context.Background()
	store := newFlakyStore()
	seedListings(t, store, domain.ListingDocument{ID: "a", Price: 10})
	cache := newMapCache()
	uc := newSearch(store, cache)

	first, err := uc.Execute(ctx, domain.SearchRequest{})
	require.NoError(t, err)
	second, err := uc.Execute(ctx, domain.SearchRequest{})
	require.NoError(t, err)

	assert.Equal(t, 1, store.queries)
	assert.Equal(t, hitIDs(first), hitIDs(second))
	assert.NotEqual(t, first.SearchID, second.SearchID)

	// изменение индекса сдвигает поколение и ключ
	require.NoError(t, cache.BumpGeneration(ctx))
	_, err = uc.Execute(ctx, domain.SearchRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, store.queries)

	// вторая страница не кэшируется
	_, err = uc.Execute(ctx, domain.SearchRequest{Page: iptr(1)})
	require.NoError(t, err)
	_, err = uc.Execute(ctx, domain.SearchRequest{Page: iptr(1)})
	require.NoError(t, err)
	assert.Equal(t, 4, store.queries)
}

func TestSearch_ConcurrentRequestsAreSafe(t *testing.T) {
	store := newFlakyStore()
	seedListings(t, store, domain.ListingDocument{ID: "a", Price: 10}, domain.ListingDocument{ID: "b", Price: 20})
	uc := newSearch(store, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := uc.Execute(context.Background(), domain.SearchRequest{SortBy: "price", SortDirection: "asc"})
			assert.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, hitIDs(resp))
		}()
	}
	wg.Wait()
}

func TestSearch_KeywordAttachesSuggestions(t *testing.T) {
	store := newFlakyStore()
	seedListings(t, store, domain.ListingDocument{ID: "a", Title: "Bright apartment"})

	resp, err := newSearch(store, nil).Execute(context.Background(), domain.SearchRequest{Keyword: "Apartment", SortBy: "relevance"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, hitIDs(resp))
	assert.Equal(t, []string{"Minsk apartment"}, resp.Suggestions)
}

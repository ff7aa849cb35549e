package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"search-service/internal/adapters/memory"
	"search-service/internal/contextkeys"
	"search-service/internal/core/domain"
	"search-service/internal/core/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReindex struct {
	running bool
}

func (f *fakeReindex) Execute(context.Context) (*domain.ReindexReport, error) {
	return nil, errors.New("not used")
}

func (f *fakeReindex) Start(context.Context) (*domain.ReindexReport, error) {
	if f.running {
		return nil, domain.ErrReindexInProgress
	}
	f.running = true
	return &domain.ReindexReport{RunID: "run-1", Status: domain.ReindexRunning, StartedAt: time.Now()}, nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	router  http.Handler
	store   *memory.DocumentStore
	reindex *fakeReindex
}

func newTestEnv(t *testing.T, cache Pinger) *testEnv {
	t.Helper()
	store := memory.NewDocumentStore()
	bands, err := domain.PriceBandsFromBounds([]float64{0, 1000, 2000, 3000, 5000})
	require.NoError(t, err)

	suggestions := usecase.NewSuggestionsUseCase([]string{"Minsk", "Minsk region", "Brest"}, []string{"loft", "studio"})
	search := usecase.NewSearchListingsUseCase(store, nil, suggestions, nil, usecase.SearchConfig{
		MaxRadiusKm:  50,
		PriceBands:   bands,
		StoreTimeout: time.Second,
	})
	stats := usecase.NewSyncStatsTracker()
	reindex := &fakeReindex{}

	searchHandler := NewSearchHandler(
		search,
		usecase.NewGetListingUseCase(store, time.Second),
		suggestions,
		usecase.NewAggregationsUseCase(store, bands, time.Second),
		usecase.NewSearchUsersUseCase(store, time.Second),
		50,
	)
	adminHandler := NewAdminHandler(context.Background(), reindex, usecase.NewGetSyncStatsUseCase(store, stats, time.Second))
	router := NewRouter(ServerConfig{}, searchHandler, adminHandler, NewHealthHandler(store, cache), nil, contextkeys.NoopLogger())
	return &testEnv{router: router, store: store, reindex: reindex}
}

func (e *testEnv) seed(t *testing.T, docs ...domain.ListingDocument) {
	t.Helper()
	for _, doc := range docs {
		doc.Available = true
		doc.SourceVersion = 1
		require.NoError(t, e.store.UpsertListing(context.Background(), doc))
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, http.NoBody)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestSearchListings_PriceFilter(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t,
		domain.ListingDocument{ID: "a", Title: "Cheap", City: "Minsk", Price: 1800},
		domain.ListingDocument{ID: "b", Title: "Middle", City: "Minsk", Price: 2500},
		domain.ListingDocument{ID: "c", Title: "Expensive", City: "Brest", Price: 5200},
	)

	rr := env.do(t, http.MethodGet, "/api/v1/search/listings?minPrice=2000&maxPrice=3000", "")
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[SearchResponseDTO](t, rr)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "b", resp.Content[0].ID)
	assert.EqualValues(t, 1, resp.Total)
	assert.True(t, resp.IsFirst)
	assert.True(t, resp.IsLast)
	require.NotNil(t, resp.Aggregations)
	assert.Equal(t, int64(1), resp.Aggregations.Cities["Minsk"])
	assert.NotEmpty(t, resp.SearchID)
}

func TestSearchListings_PostBody(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t,
		domain.ListingDocument{ID: "a", Bedrooms: 2},
		domain.ListingDocument{ID: "b", Bedrooms: 3},
		domain.ListingDocument{ID: "c", Bedrooms: 2},
	)

	rr := env.do(t, http.MethodPost, "/api/v1/search/listings", `{"minBedrooms":3,"maxBedrooms":3,"size":1000}`)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[SearchResponseDTO](t, rr)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "b", resp.Content[0].ID)
	assert.Equal(t, usecase.MaxPageSize, resp.Size)

	rr = env.do(t, http.MethodPost, "/api/v1/search/listings", `{"bedroomz":3}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSearchListings_BadRequests(t *testing.T) {
	env := newTestEnv(t, nil)
	tests := []struct {
		name   string
		target string
	}{
		{"not a number", "/api/v1/search/listings?minPrice=cheap"},
		{"bad boolean", "/api/v1/search/listings?fuzzy=maybe"},
		{"bad availability", "/api/v1/search/listings?available=sometimes"},
		{"radius above max", "/api/v1/search/listings?latitude=53.9&longitude=27.5&radius=500"},
		{"zero radius", "/api/v1/search/listings?latitude=53.9&longitude=27.5&radius=0"},
		{"radius without center", "/api/v1/search/listings?radius=5"},
		{"unknown sort field", "/api/v1/search/listings?sortBy=floor"},
		{"relevance without keyword", "/api/v1/search/listings?sortBy=relevance"},
		{"page beyond result window", "/api/v1/search/listings?page=9223372036854775807"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, tt.target, "")
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			body := decode[map[string]string](t, rr)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGetListing(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, domain.ListingDocument{ID: "a", Title: "Loft", Location: &domain.GeoPoint{Lat: 53.9, Lon: 27.56}})

	rr := env.do(t, http.MethodGet, "/api/v1/search/listings/a", "")
	require.Equal(t, http.StatusOK, rr.Code)
	listing := decode[ListingResponse](t, rr)
	assert.Equal(t, "Loft", listing.Title)
	require.NotNil(t, listing.Location)
	assert.Equal(t, 53.9, listing.Location.Lat)
	assert.Equal(t, []string{}, listing.Amenities)

	rr = env.do(t, http.MethodGet, "/api/v1/search/listings/missing", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSuggestionsAndTrending(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodGet, "/api/v1/search/suggestions?prefix=mins&limit=5", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"Minsk", "Minsk region"}, decode[[]string](t, rr))

	rr = env.do(t, http.MethodGet, "/api/v1/search/trending?limit=1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"loft"}, decode[[]string](t, rr))

	rr = env.do(t, http.MethodGet, "/api/v1/search/trending?limit=x", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPriceRangeAggregation(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t,
		domain.ListingDocument{ID: "a", Price: 1800},
		domain.ListingDocument{ID: "b", Price: 2500},
		domain.ListingDocument{ID: "c", Price: 5200},
	)

	rr := env.do(t, http.MethodGet, "/api/v1/search/aggregations/price-ranges", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]int64{
		"0-1000": 0, "1000-2000": 1, "2000-3000": 1, "3000-5000": 0, "5000+": 1,
	}, decode[map[string]int64](t, rr))
}

func TestSearchUsers(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.store.UpsertUser(context.Background(), domain.UserDocument{ID: "u1", Username: "anna", Role: "AGENT", SourceVersion: 1}))
	require.NoError(t, env.store.UpsertUser(context.Background(), domain.UserDocument{ID: "u2", Username: "boris", Role: "BUYER", SourceVersion: 1}))

	rr := env.do(t, http.MethodGet, "/api/v1/search/users?role=agent", "")
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[UserPageResponse](t, rr)
	require.Len(t, page.Content, 1)
	assert.Equal(t, "anna", page.Content[0].Username)
	assert.Equal(t, usecase.DefaultPageSize, page.Size)

	rr = env.do(t, http.MethodGet, "/api/v1/search/users?page=first", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/v1/search/users?page=9223372036854775807", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminReindex(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(t, http.MethodPost, "/api/v1/admin/reindex", "")
	require.Equal(t, http.StatusAccepted, rr.Code)
	report := decode[ReindexReportResponse](t, rr)
	assert.Equal(t, "RUNNING", report.Status)

	rr = env.do(t, http.MethodPost, "/api/v1/admin/reindex", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/v1/admin/sync/stats", "")
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decode[SyncStatsResponse](t, rr)
	assert.NotNil(t, stats.Applied)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	rr := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, HealthResponse{Status: "UP", Store: "UP", Cache: "DISABLED"}, decode[HealthResponse](t, rr))

	env = newTestEnv(t, pinger{err: errors.New("redis down")})
	rr = env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "DEGRADED", decode[HealthResponse](t, rr).Status)
}

func TestLoggerMiddleware_EchoesTraceID(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set(contextkeys.TraceIDHeader, "6f1c1b0e-6a55-4b44-9d7e-3b1f0c1b2a11")
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, "6f1c1b0e-6a55-4b44-9d7e-3b1f0c1b2a11", rr.Header().Get(contextkeys.TraceIDHeader))

	rr = env.do(t, http.MethodGet, "/health", "")
	assert.Len(t, rr.Header().Get(contextkeys.TraceIDHeader), 36)
}

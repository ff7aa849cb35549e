package memory

import (
	"context"
	"math"
	"testing"
	"time"

	"search-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }
func bptr(v bool) *bool       { return &v }

func listing(id string, price float64, bedrooms int) domain.ListingDocument {
	return domain.ListingDocument{
		ID:           id,
		Title:        "Flat " + id,
		City:         "Minsk",
		PropertyType: "APARTMENT",
		Price:        price,
		Bedrooms:     bedrooms,
		Available:    true,
		PostedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func seed(t *testing.T, s *DocumentStore, docs ...domain.ListingDocument) {
	t.Helper()
	for _, d := range docs {
		require.NoError(t, s.UpsertListing(context.Background(), d))
	}
}

func ids(page *domain.ListingPage) []string {
	out := make([]string, 0, len(page.Hits))
	for _, h := range page.Hits {
		out = append(out, h.Document.ID)
	}
	return out
}

func TestUpsertListing_StaleVersionRejected(t *testing.T) {
	ctx := context.Background()
	s := NewDocumentStore()

	doc := listing("1", 100, 1)
	doc.SourceVersion = 200
	require.NoError(t, s.UpsertListing(ctx, doc))

	older := doc
	older.Price = 50
	older.SourceVersion = 100
	assert.ErrorIs(t, s.UpsertListing(ctx, older), domain.ErrStaleDocument)

	same := doc
	same.Price = 300
	require.NoError(t, s.UpsertListing(ctx, same))

	got, err := s.GetListing(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 300.0, got.Price)
}

func TestDeleteListing_MissingIsNoop(t *testing.T) {
	ctx := context.Background()
	s := NewDocumentStore()
	require.NoError(t, s.DeleteListing(ctx, "nope"))

	seed(t, s, listing("1", 100, 1))
	require.NoError(t, s.DeleteListing(ctx, "1"))
	_, err := s.GetListing(ctx, "1")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestQueryListings_PriceRangeInclusive(t *testing.T) {
	s := NewDocumentStore()
	seed(t, s, listing("a", 1800, 2), listing("b", 2500, 3), listing("c", 5200, 2))

	page, err := s.QueryListings(context.Background(), domain.ListingQuery{
		Filter: domain.ListingFilter{Price: domain.FloatRange{Min: fptr(2000), Max: fptr(3000)}},
		SortBy: domain.SortPrice, SortDir: domain.SortAsc, Size: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(page))
	assert.EqualValues(t, 1, page.Total)

	page, err = s.QueryListings(context.Background(), domain.ListingQuery{
		Filter: domain.ListingFilter{Bedrooms: domain.IntRange{Min: iptr(3), Max: iptr(3)}},
		SortBy: domain.SortPostedAt, Size: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(page))
}

func TestQueryListings_PaginationIsDeterministic(t *testing.T) {
	s := NewDocumentStore()
	seed(t, s, listing("3", 100, 1), listing("1", 100, 1), listing("2", 100, 1), listing("4", 200, 1))

	query := domain.ListingQuery{SortBy: domain.SortPrice, SortDir: domain.SortDesc, Size: 2}
	first, err := s.QueryListings(context.Background(), query)
	require.NoError(t, err)
	query.Page = 1
	second, err := s.QueryListings(context.Background(), query)
	require.NoError(t, err)

	assert.Equal(t, []string{"4", "1"}, ids(first))
	assert.Equal(t, []string{"2", "3"}, ids(second))

	query.Page = 5
	empty, err := s.QueryListings(context.Background(), query)
	require.NoError(t, err)
	assert.Empty(t, empty.Hits)
	assert.EqualValues(t, 4, empty.Total)
}

func TestQueryListings_KeywordAndFuzzy(t *testing.T) {
	s := NewDocumentStore()
	a := listing("a", 100, 1)
	a.Title = "Cozy apartment near park"
	b := listing("b", 100, 1)
	b.Title = "Loft"
	b.Description = "Cozy loft with apartment-style kitchen"
	c := listing("c", 100, 1)
	c.Title = "Cozy house"
	seed(t, s, a, b, c)

	page, err := s.QueryListings(context.Background(), domain.ListingQuery{
		Filter: domain.ListingFilter{Keyword: "cozy apartment"},
		SortBy: domain.SortRelevance, SortDir: domain.SortDesc, Size: 10, Highlight: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(page))
	assert.Equal(t, []string{"<em>Cozy</em> <em>apartment</em> near park"}, page.Hits[0].Highlights["title"])

	page, err = s.QueryListings(context.Background(), domain.ListingQuery{
		Filter: domain.ListingFilter{Keyword: "apartmnet", Fuzzy: true},
		SortBy: domain.SortPostedAt, Size: 10,
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids(page))

	count, err := s.CountListings(context.Background(), domain.ListingFilter{Keyword: "apartmnet"})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestQueryListings_GeoAndAvailability(t *testing.T) {
	s := NewDocumentStore()
	near := listing("near", 100, 1)
	near.Location = &domain.GeoPoint{Lat: 53.90, Lon: 27.56}
	far := listing("far", 100, 1)
	far.Location = &domain.GeoPoint{Lat: 52.10, Lon: 23.73}
	noLoc := listing("noloc", 100, 1)
	hidden := listing("hidden", 100, 1)
	hidden.Location = &domain.GeoPoint{Lat: 53.91, Lon: 27.55}
	hidden.Available = false
	seed(t, s, near, far, noLoc, hidden)

	filter := domain.ListingFilter{
		Geo:       &domain.GeoFilter{Center: domain.GeoPoint{Lat: 53.9045, Lon: 27.5615}, RadiusKm: 10},
		Available: bptr(true),
	}
	count, err := s.CountListings(context.Background(), filter)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	filter.Available = nil
	count, err = s.CountListings(context.Background(), filter)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestAggregateListings(t *testing.T) {
	s := NewDocumentStore()
	a := listing("a", 100, 1)
	b := listing("b", 100, 1)
	b.City = "Brest"
	c := listing("c", 100, 1)
	c.City = ""
	seed(t, s, a, b, c, listing("d", 100, 1))

	buckets, err := s.AggregateListings(context.Background(), domain.AggregateByCity, domain.ListingFilter{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"Minsk": 2, "Brest": 1}, buckets)

	count, err := s.CountListings(context.Background(), domain.ListingFilter{Price: domain.FloatRange{Min: fptr(0), Max: fptr(100), MaxExclusive: true}})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPurgeIndexedBefore(t *testing.T) {
	ctx := context.Background()
	s := NewDocumentStore()
	cutoff := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	old := listing("old", 1, 1)
	old.IndexedAt = cutoff.Add(-time.Minute)
	fresh := listing("fresh", 1, 1)
	fresh.IndexedAt = cutoff
	seed(t, s, old, fresh)
	require.NoError(t, s.UpsertUser(ctx, domain.UserDocument{ID: "u1", IndexedAt: cutoff.Add(-time.Hour)}))

	purged, err := s.PurgeIndexedBefore(ctx, domain.EntityListing, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)
	_, err = s.GetListing(ctx, "fresh")
	assert.NoError(t, err)

	purged, err = s.PurgeIndexedBefore(ctx, domain.EntityUser, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 1, purged)
}

func TestQueryUsers(t *testing.T) {
	ctx := context.Background()
	s := NewDocumentStore()
	require.NoError(t, s.UpsertUser(ctx, domain.UserDocument{ID: "1", Username: "anna", FullName: "Anna Ivanova", Role: "AGENT"}))
	require.NoError(t, s.UpsertUser(ctx, domain.UserDocument{ID: "2", Username: "boris", FullName: "Boris Petrov", Role: "USER"}))
	require.NoError(t, s.UpsertUser(ctx, domain.UserDocument{ID: "3", Username: "vera", FullName: "Vera Ivanova", Role: "AGENT"}))

	page, err := s.QueryUsers(ctx, domain.UserQuery{Keyword: "ivanova", Role: "agent", Size: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.Total)
	assert.Equal(t, "anna", page.Items[0].Username)

	total, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
}

func TestQuery_OverflowingOffsetReturnsEmptyPage(t *testing.T) {
	ctx := context.Background()
	s := NewDocumentStore()
	seed(t, s, listing("a", 100, 1), listing("b", 200, 2))
	require.NoError(t, s.UpsertUser(ctx, domain.UserDocument{ID: "1", Username: "anna"}))

	for _, size := range []int{2, 3, 100} {
		page, err := s.QueryListings(ctx, domain.ListingQuery{Page: math.MaxInt, Size: size})
		require.NoError(t, err)
		assert.EqualValues(t, 2, page.Total)
		assert.Empty(t, page.Hits)

		users, err := s.QueryUsers(ctx, domain.UserQuery{Page: math.MaxInt, Size: size})
		require.NoError(t, err)
		assert.EqualValues(t, 1, users.Total)
		assert.Empty(t, users.Items)
	}
}

package es_adapter

import (
	"testing"

	"search-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

func TestListingQuery_MatchAllWithoutFilters(t *testing.T) {
	assert.Equal(t, map[string]interface{}{"match_all": map[string]interface{}{}}, listingQuery(domain.ListingFilter{}))
}

func TestListingQuery_FiltersAndKeyword(t *testing.T) {
	available := true
	q := listingQuery(domain.ListingFilter{
		Keyword:   "sunny loft",
		Fuzzy:     true,
		City:      "Minsk",
		AgentID:   "a-1",
		Price:     domain.FloatRange{Min: fptr(1000), Max: fptr(2000), MaxExclusive: true},
		Bedrooms:  domain.IntRange{Min: iptr(2)},
		Available: &available,
		Geo:       &domain.GeoFilter{Center: domain.GeoPoint{Lat: 53.9, Lon: 27.5}, RadiusKm: 2.5},
	})

	boolQuery := q["bool"].(map[string]interface{})
	assert.Equal(t, []interface{}{map[string]interface{}{
		"multi_match": map[string]interface{}{
			"query":     "sunny loft",
			"fields":    []string{"title^3", "description", "address"},
			"operator":  "and",
			"fuzziness": "AUTO",
		},
	}}, boolQuery["must"])

	assert.Equal(t, []interface{}{
		term("city.folded", "Minsk"),
		term("agentId", "a-1"),
		rangeQuery("price", map[string]interface{}{"gte": 1000.0, "lt": 2000.0}),
		rangeQuery("bedrooms", map[string]interface{}{"gte": 2}),
		term("available", true),
		map[string]interface{}{"geo_distance": map[string]interface{}{
			"distance": "2.5km",
			"location": map[string]interface{}{"lat": 53.9, "lon": 27.5},
		}},
	}, boolQuery["filter"])
}

func TestListingSort(t *testing.T) {
	tests := []struct {
		name    string
		query   domain.ListingQuery
		primary map[string]interface{}
	}{
		{
			name:    "price ascending",
			query:   domain.ListingQuery{SortBy: domain.SortPrice, SortDir: domain.SortAsc},
			primary: map[string]interface{}{"price": map[string]interface{}{"order": "asc", "missing": "_last"}},
		},
		{
			name:    "relevance with keyword",
			query:   domain.ListingQuery{SortBy: domain.SortRelevance, Filter: domain.ListingFilter{Keyword: "loft"}},
			primary: map[string]interface{}{"_score": map[string]interface{}{"order": "desc"}},
		},
		{
			name:    "relevance without keyword falls back to postedAt",
			query:   domain.ListingQuery{SortBy: domain.SortRelevance},
			primary: map[string]interface{}{"postedAt": map[string]interface{}{"order": "desc", "missing": "_last"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sort := listingSort(tt.query)
			assert.Equal(t, tt.primary, sort[0])
			assert.Equal(t, map[string]interface{}{"id": map[string]interface{}{"order": "asc"}}, sort[1])
		})
	}
}

func TestListingSearchBody_HighlightOnlyWithKeyword(t *testing.T) {
	body := listingSearchBody(domain.ListingQuery{Page: 1, Size: 20, Highlight: true})
	assert.NotContains(t, body, "highlight")
	assert.Equal(t, 20, body["from"])

	body = listingSearchBody(domain.ListingQuery{Size: 20, Highlight: true, Filter: domain.ListingFilter{Keyword: "loft"}})
	assert.Contains(t, body, "highlight")
}

func TestUserSearchBody(t *testing.T) {
	body := userSearchBody(domain.UserQuery{Keyword: "anna", Role: "AGENT", Page: 1, Size: 10})
	assert.Equal(t, 10, body["from"])
	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Equal(t, []interface{}{term("role.folded", "AGENT")}, boolQuery["filter"])

	body = userSearchBody(domain.UserQuery{Size: 10})
	assert.Equal(t, map[string]interface{}{"match_all": map[string]interface{}{}}, body["query"])
}

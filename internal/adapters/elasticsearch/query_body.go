package es_adapter

import (
	"strconv"
	"strings"

	"search-service/internal/core/domain"
)

// aggregationLimit максимум корзин в одной агрегации
const aggregationLimit = 1000

var listingSortFields = map[domain.SortField]string{
	domain.SortPostedAt:  "postedAt",
	domain.SortPrice:     "price",
	domain.SortRating:    "rating",
	domain.SortBedrooms:  "bedrooms",
	domain.SortBathrooms: "bathrooms",
	domain.SortViewCount: "viewCount",
	domain.SortAreaSqm:   "areaSqm",
	domain.SortRelevance: "_score",
}

var aggregationFields = map[domain.AggregationField]string{
	domain.AggregateByCity:         "city",
	domain.AggregateByDistrict:     "district",
	domain.AggregateByPropertyType: "propertyType",
	domain.AggregateByListingType:  "listingType",
	domain.AggregateByAgentID:      "agentId",
}

// listingQuery bool-запрос: ключевые слова в must, остальное в filter
func listingQuery(f domain.ListingFilter) map[string]interface{} {
	must := make([]interface{}, 0, 1)
	filter := make([]interface{}, 0)

	if keyword := strings.TrimSpace(f.Keyword); keyword != "" {
		match := map[string]interface{}{
			"query":    keyword,
			"fields":   []string{"title^3", "description", "address"},
			"operator": "and",
		}
		if f.Fuzzy {
			match["fuzziness"] = "AUTO"
		}
		must = append(must, map[string]interface{}{"multi_match": match})
	}

	for _, eq := range []struct{ field, value string }{
		{"city.folded", f.City},
		{"district.folded", f.District},
		{"propertyType.folded", f.PropertyType},
		{"listingType.folded", f.ListingType},
		{"agentId", f.AgentID},
	} {
		if eq.value != "" {
			filter = append(filter, term(eq.field, eq.value))
		}
	}

	if r := floatRange(f.Price); r != nil {
		filter = append(filter, rangeQuery("price", r))
	}
	if r := floatRange(f.Rating); r != nil {
		filter = append(filter, rangeQuery("rating", r))
	}
	if r := intRange(f.Bedrooms); r != nil {
		filter = append(filter, rangeQuery("bedrooms", r))
	}
	if r := intRange(f.Bathrooms); r != nil {
		filter = append(filter, rangeQuery("bathrooms", r))
	}
	if f.Available != nil {
		filter = append(filter, term("available", *f.Available))
	}
	if f.Geo != nil {
		filter = append(filter, map[string]interface{}{
			"geo_distance": map[string]interface{}{
				"distance": strconv.FormatFloat(f.Geo.RadiusKm, 'f', -1, 64) + "km",
				"location": map[string]interface{}{"lat": f.Geo.Center.Lat, "lon": f.Geo.Center.Lon},
			},
		})
	}

	if len(must) == 0 && len(filter) == 0 {
		return map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]interface{}{"bool": boolQuery}
}

// listingSearchBody тело запроса страницы выдачи
func listingSearchBody(q domain.ListingQuery) map[string]interface{} {
	body := map[string]interface{}{
		"from":             q.Offset(),
		"size":             q.Size,
		"query":            listingQuery(q.Filter),
		"sort":             listingSort(q),
		"track_total_hits": true,
	}
	if q.Highlight && strings.TrimSpace(q.Filter.Keyword) != "" {
		body["highlight"] = map[string]interface{}{
			"pre_tags":  []string{"<em>"},
			"post_tags": []string{"</em>"},
			"fields": map[string]interface{}{
				"title":       map[string]interface{}{},
				"description": map[string]interface{}{"number_of_fragments": 1},
				"address":     map[string]interface{}{},
			},
		}
	}
	return body
}

// listingSort сортировка с добивкой по id
func listingSort(q domain.ListingQuery) []interface{} {
	field, ok := listingSortFields[q.SortBy]
	if !ok || (field == "_score" && strings.TrimSpace(q.Filter.Keyword) == "") {
		field = listingSortFields[domain.SortPostedAt]
	}
	order := string(domain.SortDesc)
	if q.SortDir == domain.SortAsc {
		order = string(domain.SortAsc)
	}
	primary := map[string]interface{}{"order": order}
	if field != "_score" {
		primary["missing"] = "_last"
	}
	return []interface{}{
		map[string]interface{}{field: primary},
		map[string]interface{}{"id": map[string]interface{}{"order": "asc"}},
	}
}

// aggregationBody только корзины, без документов
func aggregationBody(field domain.AggregationField, f domain.ListingFilter) (map[string]interface{}, bool) {
	esField, ok := aggregationFields[field]
	if !ok {
		return nil, false
	}
	return map[string]interface{}{
		"size":  0,
		"query": listingQuery(f),
		"aggs": map[string]interface{}{
			"buckets": map[string]interface{}{
				"terms": map[string]interface{}{"field": esField, "size": aggregationLimit},
			},
		},
	}, true
}

func userSearchBody(q domain.UserQuery) map[string]interface{} {
	boolQuery := map[string]interface{}{}
	if q.Keyword != "" {
		boolQuery["must"] = []interface{}{map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":    q.Keyword,
				"fields":   []string{"username^2", "fullName^2", "email", "city"},
				"operator": "and",
			},
		}}
	}
	if q.Role != "" {
		boolQuery["filter"] = []interface{}{term("role.folded", q.Role)}
	}
	query := map[string]interface{}{"bool": boolQuery}
	if len(boolQuery) == 0 {
		query = map[string]interface{}{"match_all": map[string]interface{}{}}
	}
	return map[string]interface{}{
		"from":             q.Page * q.Size,
		"size":             q.Size,
		"query":            query,
		"track_total_hits": true,
		"sort": []interface{}{
			map[string]interface{}{"username.keyword": map[string]interface{}{"order": "asc"}},
			map[string]interface{}{"id": map[string]interface{}{"order": "asc"}},
		},
	}
}

func term(field string, value interface{}) map[string]interface{} {
	return map[string]interface{}{"term": map[string]interface{}{field: value}}
}

func rangeQuery(field string, bounds map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"range": map[string]interface{}{field: bounds}}
}

func floatRange(r domain.FloatRange) map[string]interface{} {
	if r.Min == nil && r.Max == nil {
		return nil
	}
	bounds := map[string]interface{}{}
	if r.Min != nil {
		bounds["gte"] = *r.Min
	}
	if r.Max != nil {
		if r.MaxExclusive {
			bounds["lt"] = *r.Max
		} else {
			bounds["lte"] = *r.Max
		}
	}
	return bounds
}

func intRange(r domain.IntRange) map[string]interface{} {
	if r.Min == nil && r.Max == nil {
		return nil
	}
	bounds := map[string]interface{}{}
	if r.Min != nil {
		bounds["gte"] = *r.Min
	}
	if r.Max != nil {
		bounds["lte"] = *r.Max
	}
	return bounds
}

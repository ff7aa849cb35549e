package memory

import (
	"sort"
	"strings"

	"search-service/internal/core/domain"
)

func matchListing(doc domain.ListingDocument, f domain.ListingFilter) (float64, map[string][]string, bool) {
	if !equalFold(f.City, doc.City) || !equalFold(f.District, doc.District) ||
		!equalFold(f.PropertyType, doc.PropertyType) || !equalFold(f.ListingType, doc.ListingType) ||
		(f.AgentID != "" && f.AgentID != doc.AgentID) {
		return 0, nil, false
	}
	if f.Available != nil && *f.Available != doc.Available {
		return 0, nil, false
	}
	if !inFloatRange(doc.Price, f.Price) || !inFloatRange(doc.Rating, f.Rating) ||
		!inIntRange(doc.Bedrooms, f.Bedrooms) || !inIntRange(doc.Bathrooms, f.Bathrooms) {
		return 0, nil, false
	}
	if f.Geo != nil {
		if doc.Location == nil || domain.DistanceKm(f.Geo.Center, *doc.Location) > f.Geo.RadiusKm {
			return 0, nil, false
		}
	}
	if strings.TrimSpace(f.Keyword) == "" {
		return 0, nil, true
	}
	return matchKeyword(f.Keyword, f.Fuzzy, []textField{
		{name: "title", text: doc.Title, weight: 3},
		{name: "description", text: doc.Description, weight: 1},
		{name: "address", text: doc.Address, weight: 1},
	})
}

// equalFold пустой фильтр пропускает все
func equalFold(filter, value string) bool {
	return filter == "" || strings.EqualFold(filter, value)
}

func inFloatRange(v float64, r domain.FloatRange) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil {
		if r.MaxExclusive && v >= *r.Max {
			return false
		}
		if !r.MaxExclusive && v > *r.Max {
			return false
		}
	}
	return true
}

func inIntRange(v int, r domain.IntRange) bool {
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// sortListings сортирует по полю, при равенстве по id по возрастанию
func sortListings(items []scoredListing, field domain.SortField, dir domain.SortDirection) {
	desc := dir != domain.SortAsc
	sort.SliceStable(items, func(i, j int) bool {
		c := compareByField(items[i], items[j], field)
		if c == 0 {
			return items[i].doc.ID < items[j].doc.ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

func compareByField(a, b scoredListing, field domain.SortField) int {
	switch field {
	case domain.SortPrice:
		return cmpFloat(a.doc.Price, b.doc.Price)
	case domain.SortRating:
		return cmpFloat(a.doc.Rating, b.doc.Rating)
	case domain.SortBedrooms:
		return cmpFloat(float64(a.doc.Bedrooms), float64(b.doc.Bedrooms))
	case domain.SortBathrooms:
		return cmpFloat(float64(a.doc.Bathrooms), float64(b.doc.Bathrooms))
	case domain.SortViewCount:
		return cmpFloat(float64(a.doc.ViewCount), float64(b.doc.ViewCount))
	case domain.SortAreaSqm:
		return cmpFloat(a.doc.AreaSqm, b.doc.AreaSqm)
	case domain.SortRelevance:
		return cmpFloat(a.score, b.score)
	}
	return a.doc.PostedAt.Compare(b.doc.PostedAt)
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

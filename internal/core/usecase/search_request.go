package usecase

import (
	"fmt"
	"strings"

	"search-service/internal/core/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// NormalizeSearchRequest приводит запрос клиента к запросу хранилища.
// size зажимается в [1, MaxPageSize], отрицательная страница становится нулевой,
// страница за пределами domain.MaxResultWindow - ошибка валидации.
func NormalizeSearchRequest(req domain.SearchRequest, maxRadiusKm float64) (domain.ListingQuery, error) {
	q := domain.ListingQuery{
		Page:      0,
		Size:      DefaultPageSize,
		SortBy:    domain.SortPostedAt,
		SortDir:   domain.SortDesc,
		Highlight: req.Highlight,
	}
	if req.Page != nil && *req.Page > 0 {
		q.Page = *req.Page
	}
	if req.Size != nil {
		q.Size = clampSize(*req.Size)
	}
	if !domain.WithinResultWindow(q.Page, q.Size) {
		return q, fmt.Errorf("%w: page %d of size %d is beyond the first %d results",
			domain.ErrInvalidSearchRequest, q.Page, q.Size, domain.MaxResultWindow)
	}

	keyword := strings.TrimSpace(req.Keyword)
	if sortBy := strings.TrimSpace(req.SortBy); sortBy != "" {
		field := domain.SortField(sortBy)
		if !field.Valid() {
			return q, fmt.Errorf("%w: unsupported sortBy %q", domain.ErrInvalidSearchRequest, sortBy)
		}
		if field == domain.SortRelevance && keyword == "" {
			return q, fmt.Errorf("%w: sortBy=relevance requires a keyword", domain.ErrInvalidSearchRequest)
		}
		q.SortBy = field
	}
	switch dir := strings.ToLower(strings.TrimSpace(req.SortDirection)); dir {
	case "":
	case string(domain.SortAsc), string(domain.SortDesc):
		q.SortDir = domain.SortDirection(dir)
	default:
		return q, fmt.Errorf("%w: sortDirection must be asc or desc", domain.ErrInvalidSearchRequest)
	}

	f := domain.ListingFilter{
		Keyword:      keyword,
		Fuzzy:        req.Fuzzy,
		City:         strings.TrimSpace(req.City),
		District:     strings.TrimSpace(req.District),
		PropertyType: strings.ToUpper(strings.TrimSpace(req.PropertyType)),
		ListingType:  strings.ToUpper(strings.TrimSpace(req.ListingType)),
		AgentID:      strings.TrimSpace(req.AgentID),
		Price:        domain.FloatRange{Min: req.MinPrice, Max: req.MaxPrice},
		Bedrooms:     domain.IntRange{Min: req.MinBedrooms, Max: req.MaxBedrooms},
		Bathrooms:    domain.IntRange{Min: req.MinBathrooms, Max: req.MaxBathrooms},
		Rating:       domain.FloatRange{Min: req.MinRating, Max: req.MaxRating},
	}
	if err := checkRanges(f); err != nil {
		return q, err
	}

	switch req.Availability {
	case domain.AvailabilityDefault, domain.AvailabilityAvailable:
		available := true
		f.Available = &available
	case domain.AvailabilityUnavailable:
		available := false
		f.Available = &available
	case domain.AvailabilityAny:
	default:
		return q, fmt.Errorf("%w: unsupported availability %q", domain.ErrInvalidSearchRequest, req.Availability)
	}

	geo, err := geoFilter(req, maxRadiusKm)
	if err != nil {
		return q, err
	}
	f.Geo = geo

	q.Filter = f
	return q, nil
}

func clampSize(size int) int {
	if size < 1 {
		return 1
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

func checkRanges(f domain.ListingFilter) error {
	if f.Price.Min != nil && f.Price.Max != nil && *f.Price.Min > *f.Price.Max {
		return fmt.Errorf("%w: minPrice is greater than maxPrice", domain.ErrInvalidSearchRequest)
	}
	if f.Bedrooms.Min != nil && f.Bedrooms.Max != nil && *f.Bedrooms.Min > *f.Bedrooms.Max {
		return fmt.Errorf("%w: minBedrooms is greater than maxBedrooms", domain.ErrInvalidSearchRequest)
	}
	if f.Bathrooms.Min != nil && f.Bathrooms.Max != nil && *f.Bathrooms.Min > *f.Bathrooms.Max {
		return fmt.Errorf("%w: minBathrooms is greater than maxBathrooms", domain.ErrInvalidSearchRequest)
	}
	if f.Rating.Min != nil && f.Rating.Max != nil && *f.Rating.Min > *f.Rating.Max {
		return fmt.Errorf("%w: minRating is greater than maxRating", domain.ErrInvalidSearchRequest)
	}
	return nil
}

// geoFilter фильтр строится только когда заданы широта, долгота и радиус.
// Заданные значения проверяются всегда.
func geoFilter(req domain.SearchRequest, maxRadiusKm float64) (*domain.GeoFilter, error) {
	if req.RadiusKm != nil && (*req.RadiusKm <= 0 || *req.RadiusKm > maxRadiusKm) {
		return nil, fmt.Errorf("%w: radius must be in (0, %g] km", domain.ErrInvalidSearchRequest, maxRadiusKm)
	}
	if req.Latitude != nil && (*req.Latitude < -90 || *req.Latitude > 90) {
		return nil, fmt.Errorf("%w: latitude must be in [-90, 90]", domain.ErrInvalidSearchRequest)
	}
	if req.Longitude != nil && (*req.Longitude < -180 || *req.Longitude > 180) {
		return nil, fmt.Errorf("%w: longitude must be in [-180, 180]", domain.ErrInvalidSearchRequest)
	}
	if req.Latitude == nil || req.Longitude == nil || req.RadiusKm == nil {
		return nil, nil
	}
	return &domain.GeoFilter{
		Center:   domain.GeoPoint{Lat: *req.Latitude, Lon: *req.Longitude},
		RadiusKm: *req.RadiusKm,
	}, nil
}

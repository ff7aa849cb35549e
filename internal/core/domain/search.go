package domain

import (
	"fmt"
	"strconv"
)

// Availability фильтр по доступности объявления
type Availability string

const (
	AvailabilityDefault     Availability = ""      // только доступные
	AvailabilityAvailable   Availability = "true"
	AvailabilityUnavailable Availability = "false"
	AvailabilityAny         Availability = "any"
)

// ParseAvailability разбирает значение параметра available
func ParseAvailability(s string) (Availability, error) {
	switch Availability(s) {
	case AvailabilityDefault, AvailabilityAvailable, AvailabilityUnavailable, AvailabilityAny:
		return Availability(s), nil
	}
	return "", fmt.Errorf("%w: available must be true, false or any", ErrInvalidSearchRequest)
}

type SortField string

const (
	SortPostedAt  SortField = "postedAt"
	SortPrice     SortField = "price"
	SortRating    SortField = "rating"
	SortBedrooms  SortField = "bedrooms"
	SortBathrooms SortField = "bathrooms"
	SortViewCount SortField = "viewCount"
	SortAreaSqm   SortField = "areaSqm"
	SortRelevance SortField = "relevance"
)

// Valid сообщает, поддерживается ли поле сортировки
func (f SortField) Valid() bool {
	switch f {
	case SortPostedAt, SortPrice, SortRating, SortBedrooms, SortBathrooms, SortViewCount, SortAreaSqm, SortRelevance:
		return true
	}
	return false
}

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SearchRequest запрос клиента до нормализации; nil значит "не задано"
type SearchRequest struct {
	Keyword string

	City         string
	District     string
	PropertyType string
	ListingType  string
	AgentID      string

	MinPrice     *float64
	MaxPrice     *float64
	MinBedrooms  *int
	MaxBedrooms  *int
	MinBathrooms *int
	MaxBathrooms *int
	MinRating    *float64
	MaxRating    *float64

	Availability Availability

	Latitude  *float64
	Longitude *float64
	RadiusKm  *float64

	SortBy        string
	SortDirection string
	Page          *int
	Size          *int

	Fuzzy     bool
	Highlight bool
}

// FloatRange границы включительно; при MaxExclusive верхняя граница не входит
type FloatRange struct {
	Min          *float64
	Max          *float64
	MaxExclusive bool
}

// IntRange границы включительно
type IntRange struct {
	Min *int
	Max *int
}

// GeoFilter поиск в радиусе от точки
type GeoFilter struct {
	Center   GeoPoint
	RadiusKm float64
}

// ListingFilter нормализованный набор фильтров, общий для выдачи, подсчетов и агрегаций
type ListingFilter struct {
	Keyword string
	Fuzzy   bool

	City         string
	District     string
	PropertyType string
	ListingType  string
	AgentID      string

	Price     FloatRange
	Bedrooms  IntRange
	Bathrooms IntRange
	Rating    FloatRange

	// nil - любые
	Available *bool
	Geo       *GeoFilter
}

// ListingQuery запрос к хранилищу документов
type ListingQuery struct {
	Filter    ListingFilter
	SortBy    SortField
	SortDir   SortDirection
	Page      int
	Size      int
	Highlight bool
}

// MaxResultWindow предел page*size+size; дальше Elasticsearch не листает (index.max_result_window)
const MaxResultWindow = 10000

// WithinResultWindow страница page размера size целиком помещается в окно выдачи
func WithinResultWindow(page, size int) bool {
	if page < 0 || size < 1 || size > MaxResultWindow {
		return false
	}
	return page <= (MaxResultWindow-size)/size
}

// Offset смещение первой записи страницы
func (q ListingQuery) Offset() int {
	return q.Page * q.Size
}

// ListingHit документ в выдаче
type ListingHit struct {
	Document   ListingDocument
	Score      float64
	Highlights map[string][]string
}

// ListingPage страница выдачи хранилища
type ListingPage struct {
	Hits  []ListingHit
	Total int64
}

// AggregationField поле, по которому считаются корзины
type AggregationField string

const (
	AggregateByCity         AggregationField = "city"
	AggregateByDistrict     AggregationField = "district"
	AggregateByPropertyType AggregationField = "propertyType"
	AggregateByListingType  AggregationField = "listingType"
	AggregateByAgentID      AggregationField = "agentId"
)

// Valid сообщает, поддерживается ли агрегация по полю
func (f AggregationField) Valid() bool {
	switch f {
	case AggregateByCity, AggregateByDistrict, AggregateByPropertyType, AggregateByListingType, AggregateByAgentID:
		return true
	}
	return false
}

// PriceBand ценовой диапазон [Min, Max); Max == nil - без верхней границы
type PriceBand struct {
	Min float64
	Max *float64
}

// Label подпись вида "1000-2000" или "5000+"
func (b PriceBand) Label() string {
	lo := strconv.FormatFloat(b.Min, 'f', -1, 64)
	if b.Max == nil {
		return lo + "+"
	}
	return lo + "-" + strconv.FormatFloat(*b.Max, 'f', -1, 64)
}

// Range фильтр цены для диапазона
func (b PriceBand) Range() FloatRange {
	lo := b.Min
	return FloatRange{Min: &lo, Max: b.Max, MaxExclusive: true}
}

// PriceBandsFromBounds строит диапазоны из возрастающих границ: [0,1000,5000] -> 0-1000, 1000-5000, 5000+
func PriceBandsFromBounds(bounds []float64) ([]PriceBand, error) {
	if len(bounds) == 0 {
		return nil, fmt.Errorf("price band bounds are empty")
	}
	bands := make([]PriceBand, 0, len(bounds))
	for i, lo := range bounds {
		if i > 0 && lo <= bounds[i-1] {
			return nil, fmt.Errorf("price band bounds must be strictly increasing")
		}
		band := PriceBand{Min: lo}
		if i+1 < len(bounds) {
			hi := bounds[i+1]
			band.Max = &hi
		}
		bands = append(bands, band)
	}
	return bands, nil
}

// Aggregations фасеты первой страницы
type Aggregations struct {
	ByCity         map[string]int64
	ByPriceRange   map[string]int64
	ByPropertyType map[string]int64
}

// SearchResponse конверт ответа поиска
type SearchResponse struct {
	Content     []ListingHit
	Total       int64
	Page        int
	Size        int
	TotalPages  int
	HasNext     bool
	HasPrevious bool
	IsFirst     bool
	IsLast      bool

	Aggregations *Aggregations
	Suggestions  []string

	SearchID string
	TookMs   int64
}

// UserQuery поиск пользователей
type UserQuery struct {
	Keyword string
	Role    string
	Page    int
	Size    int
}

// UserPage страница пользователей; Page и Size после нормализации
type UserPage struct {
	Items []UserDocument
	Total int64
	Page  int
	Size  int
}

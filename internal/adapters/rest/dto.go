package rest

import (
	"time"

	"search-service/internal/core/domain"
)

// SearchRequestDTO тело POST /search/listings; названия полей совпадают с query-параметрами
type SearchRequestDTO struct {
	Keyword      string   `json:"keyword"`
	City         string   `json:"city"`
	District     string   `json:"district"`
	PropertyType string   `json:"propertyType"`
	ListingType  string   `json:"listingType"`
	AgentID      string   `json:"agentId"`
	MinPrice     *float64 `json:"minPrice"`
	MaxPrice     *float64 `json:"maxPrice"`
	MinBedrooms  *int     `json:"minBedrooms"`
	MaxBedrooms  *int     `json:"maxBedrooms"`
	MinBathrooms *int     `json:"minBathrooms"`
	MaxBathrooms *int     `json:"maxBathrooms"`
	MinRating    *float64 `json:"minRating"`
	MaxRating    *float64 `json:"maxRating"`
	Available    *string  `json:"available"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Radius       *float64 `json:"radius"`
	SortBy       string   `json:"sortBy"`
	SortDir      string   `json:"sortDirection"`
	Page         *int     `json:"page"`
	Size         *int     `json:"size"`
	Fuzzy        bool     `json:"fuzzy"`
	Highlight    bool     `json:"highlight"`
}

func (d SearchRequestDTO) toDomain() (domain.SearchRequest, error) {
	req := domain.SearchRequest{
		Keyword:       d.Keyword,
		City:          d.City,
		District:      d.District,
		PropertyType:  d.PropertyType,
		ListingType:   d.ListingType,
		AgentID:       d.AgentID,
		MinPrice:      d.MinPrice,
		MaxPrice:      d.MaxPrice,
		MinBedrooms:   d.MinBedrooms,
		MaxBedrooms:   d.MaxBedrooms,
		MinBathrooms:  d.MinBathrooms,
		MaxBathrooms:  d.MaxBathrooms,
		MinRating:     d.MinRating,
		MaxRating:     d.MaxRating,
		Latitude:      d.Latitude,
		Longitude:     d.Longitude,
		RadiusKm:      d.Radius,
		SortBy:        d.SortBy,
		SortDirection: d.SortDir,
		Page:          d.Page,
		Size:          d.Size,
		Fuzzy:         d.Fuzzy,
		Highlight:     d.Highlight,
	}
	if d.Available != nil {
		availability, err := domain.ParseAvailability(*d.Available)
		if err != nil {
			return req, err
		}
		req.Availability = availability
	}
	return req, nil
}

type LocationResponse struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type ListingResponse struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Address      string            `json:"address,omitempty"`
	City         string            `json:"city,omitempty"`
	District     string            `json:"district,omitempty"`
	PropertyType string            `json:"propertyType,omitempty"`
	ListingType  string            `json:"listingType,omitempty"`
	AgentID      string            `json:"agentId,omitempty"`
	AgentName    string            `json:"agentName,omitempty"`
	Amenities    []string          `json:"amenities"`
	Images       []string          `json:"images"`
	Price        float64           `json:"price"`
	Bedrooms     int               `json:"bedrooms"`
	Bathrooms    int               `json:"bathrooms"`
	AreaSqm      float64           `json:"areaSqm"`
	Rating       float64           `json:"rating"`
	ViewCount    int64             `json:"viewCount"`
	Location     *LocationResponse `json:"location,omitempty"`
	Available    bool              `json:"available"`
	Featured     bool              `json:"featured"`
	PostedAt     *time.Time        `json:"postedAt,omitempty"`
	UpdatedAt    *time.Time        `json:"updatedAt,omitempty"`

	Score      float64             `json:"score,omitempty"`
	Highlights map[string][]string `json:"highlights,omitempty"`
}

type AggregationsResponse struct {
	Cities        map[string]int64 `json:"cities"`
	PriceRanges   map[string]int64 `json:"priceRanges"`
	PropertyTypes map[string]int64 `json:"propertyTypes"`
}

type SearchResponseDTO struct {
	Content      []ListingResponse     `json:"content"`
	Total        int64                 `json:"total"`
	Page         int                   `json:"page"`
	Size         int                   `json:"size"`
	TotalPages   int                   `json:"totalPages"`
	HasNext      bool                  `json:"hasNext"`
	HasPrevious  bool                  `json:"hasPrevious"`
	IsFirst      bool                  `json:"isFirst"`
	IsLast       bool                  `json:"isLast"`
	Aggregations *AggregationsResponse `json:"aggregations,omitempty"`
	Suggestions  []string              `json:"suggestions,omitempty"`
	SearchID     string                `json:"searchId"`
	TookMs       int64                 `json:"tookMs"`
}

type UserResponse struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email,omitempty"`
	FullName     string     `json:"fullName,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Role         string     `json:"role,omitempty"`
	City         string     `json:"city,omitempty"`
	Verified     bool       `json:"verified"`
	ListingCount int        `json:"listingCount"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

type UserPageResponse struct {
	Content []UserResponse `json:"content"`
	Total   int64          `json:"total"`
	Page    int            `json:"page"`
	Size    int            `json:"size"`
}

type ReindexReportResponse struct {
	RunID           string     `json:"runId"`
	Status          string     `json:"status"`
	StartedAt       time.Time  `json:"startedAt"`
	FinishedAt      *time.Time `json:"finishedAt,omitempty"`
	ListingsIndexed int        `json:"listingsIndexed"`
	UsersIndexed    int        `json:"usersIndexed"`
	Failed          int        `json:"failed"`
	ListingsPurged  int64      `json:"listingsPurged"`
	UsersPurged     int64      `json:"usersPurged"`
	Errors          []string   `json:"errors,omitempty"`
}

type SyncStatsResponse struct {
	ListingDocuments int64                  `json:"listingDocuments"`
	UserDocuments    int64                  `json:"userDocuments"`
	Applied          map[string]int64       `json:"applied"`
	Dropped          int64                  `json:"dropped"`
	Malformed        int64                  `json:"malformed"`
	Stale            int64                  `json:"stale"`
	Failed           int64                  `json:"failed"`
	LastSyncAt       *time.Time             `json:"lastSyncAt,omitempty"`
	LastReindex      *ReindexReportResponse `json:"lastReindex,omitempty"`
	Reindexing       bool                   `json:"reindexing"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Cache  string `json:"cache"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toListingResponse(doc domain.ListingDocument) ListingResponse {
	resp := ListingResponse{
		ID:           doc.ID,
		Title:        doc.Title,
		Description:  doc.Description,
		Address:      doc.Address,
		City:         doc.City,
		District:     doc.District,
		PropertyType: doc.PropertyType,
		ListingType:  doc.ListingType,
		AgentID:      doc.AgentID,
		AgentName:    doc.AgentName,
		Amenities:    nonNil(doc.Amenities),
		Images:       nonNil(doc.Images),
		Price:        doc.Price,
		Bedrooms:     doc.Bedrooms,
		Bathrooms:    doc.Bathrooms,
		AreaSqm:      doc.AreaSqm,
		Rating:       doc.Rating,
		ViewCount:    doc.ViewCount,
		Available:    doc.Available,
		Featured:     doc.Featured,
		PostedAt:     timePtr(doc.PostedAt),
		UpdatedAt:    timePtr(doc.UpdatedAt),
	}
	if doc.Location != nil {
		resp.Location = &LocationResponse{Lat: doc.Location.Lat, Lon: doc.Location.Lon}
	}
	return resp
}

func toSearchResponse(res *domain.SearchResponse) SearchResponseDTO {
	dto := SearchResponseDTO{
		Content:     make([]ListingResponse, len(res.Content)),
		Total:       res.Total,
		Page:        res.Page,
		Size:        res.Size,
		TotalPages:  res.TotalPages,
		HasNext:     res.HasNext,
		HasPrevious: res.HasPrevious,
		IsFirst:     res.IsFirst,
		IsLast:      res.IsLast,
		Suggestions: res.Suggestions,
		SearchID:    res.SearchID,
		TookMs:      res.TookMs,
	}
	for i, hit := range res.Content {
		item := toListingResponse(hit.Document)
		item.Score = hit.Score
		item.Highlights = hit.Highlights
		dto.Content[i] = item
	}
	if res.Aggregations != nil {
		dto.Aggregations = &AggregationsResponse{
			Cities:        res.Aggregations.ByCity,
			PriceRanges:   res.Aggregations.ByPriceRange,
			PropertyTypes: res.Aggregations.ByPropertyType,
		}
	}
	return dto
}

func toUserPageResponse(page *domain.UserPage) UserPageResponse {
	resp := UserPageResponse{
		Content: make([]UserResponse, len(page.Items)),
		Total:   page.Total,
		Page:    page.Page,
		Size:    page.Size,
	}
	for i, u := range page.Items {
		resp.Content[i] = UserResponse{
			ID:           u.ID,
			Username:     u.Username,
			Email:        u.Email,
			FullName:     u.FullName,
			Phone:        u.Phone,
			Role:         u.Role,
			City:         u.City,
			Verified:     u.Verified,
			ListingCount: u.ListingCount,
			CreatedAt:    timePtr(u.CreatedAt),
		}
	}
	return resp
}

func toReindexReportResponse(r domain.ReindexReport) ReindexReportResponse {
	return ReindexReportResponse{
		RunID:           r.RunID,
		Status:          string(r.Status),
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		ListingsIndexed: r.ListingsIndexed,
		UsersIndexed:    r.UsersIndexed,
		Failed:          r.Failed,
		ListingsPurged:  r.ListingsPurged,
		UsersPurged:     r.UsersPurged,
		Errors:          r.Errors,
	}
}

func toSyncStatsResponse(s *domain.SyncStats) SyncStatsResponse {
	resp := SyncStatsResponse{
		ListingDocuments: s.ListingDocuments,
		UserDocuments:    s.UserDocuments,
		Applied:          s.Applied,
		Dropped:          s.Dropped,
		Malformed:        s.Malformed,
		Stale:            s.Stale,
		Failed:           s.Failed,
		LastSyncAt:       s.LastSyncAt,
		Reindexing:       s.Reindexing,
	}
	if resp.Applied == nil {
		resp.Applied = map[string]int64{}
	}
	if s.LastReindex != nil {
		report := toReindexReportResponse(*s.LastReindex)
		resp.LastReindex = &report
	}
	return resp
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

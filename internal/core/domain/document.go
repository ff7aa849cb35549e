package domain

import "time"

// GeoPoint координаты в градусах
type GeoPoint struct {
	Lat float64
	Lon float64
}

// ListingDocument поисковая проекция объявления
type ListingDocument struct {
	ID string

	Title       string
	Description string
	Address     string

	City         string
	District     string
	PropertyType string
	ListingType  string
	AgentID      string
	AgentName    string
	Amenities    []string
	Images       []string

	Price     float64
	Bedrooms  int
	Bathrooms int
	AreaSqm   float64
	Rating    float64
	ViewCount int64

	Location *GeoPoint
	Geohash  string

	Available bool
	Featured  bool

	PostedAt  time.Time
	UpdatedAt time.Time

	// SourceVersion время генерации события в мс, по нему отсекаются устаревшие обновления
	SourceVersion int64
	IndexedAt     time.Time
}

// UserDocument поисковая проекция профиля пользователя
type UserDocument struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	Phone        string
	Role         string
	City         string
	Verified     bool
	ListingCount int

	CreatedAt time.Time
	UpdatedAt time.Time

	SourceVersion int64
	IndexedAt     time.Time
}

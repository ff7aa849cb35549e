package es_adapter

import (
	"time"

	"search-service/internal/core/domain"
)

// esGeoPoint формат geo_point
type esGeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// esListing документ объявления в индексе
type esListing struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Address      string      `json:"address"`
	City         string      `json:"city"`
	District     string      `json:"district"`
	PropertyType string      `json:"propertyType"`
	ListingType  string      `json:"listingType"`
	AgentID      string      `json:"agentId"`
	AgentName    string      `json:"agentName"`
	Amenities    []string    `json:"amenities"`
	Images       []string    `json:"images"`
	Price        float64     `json:"price"`
	Bedrooms     int         `json:"bedrooms"`
	Bathrooms    int         `json:"bathrooms"`
	AreaSqm      float64     `json:"areaSqm"`
	Rating       float64     `json:"rating"`
	ViewCount    int64       `json:"viewCount"`
	Location     *esGeoPoint `json:"location,omitempty"`
	Geohash      string      `json:"geohash,omitempty"`
	Available    bool        `json:"available"`
	Featured     bool        `json:"featured"`
	PostedAt     time.Time   `json:"postedAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`

	SourceVersion int64     `json:"sourceVersion"`
	IndexedAt     time.Time `json:"indexedAt"`
}

type esUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	Phone        string    `json:"phone"`
	Role         string    `json:"role"`
	City         string    `json:"city"`
	Verified     bool      `json:"verified"`
	ListingCount int       `json:"listingCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	SourceVersion int64     `json:"sourceVersion"`
	IndexedAt     time.Time `json:"indexedAt"`
}

func toESListing(d domain.ListingDocument) esListing {
	out := esListing{
		ID: d.ID, Title: d.Title, Description: d.Description, Address: d.Address,
		City: d.City, District: d.District, PropertyType: d.PropertyType, ListingType: d.ListingType,
		AgentID: d.AgentID, AgentName: d.AgentName, Amenities: d.Amenities, Images: d.Images,
		Price: d.Price, Bedrooms: d.Bedrooms, Bathrooms: d.Bathrooms, AreaSqm: d.AreaSqm,
		Rating: d.Rating, ViewCount: d.ViewCount, Geohash: d.Geohash,
		Available: d.Available, Featured: d.Featured, PostedAt: d.PostedAt, UpdatedAt: d.UpdatedAt,
		SourceVersion: d.SourceVersion, IndexedAt: d.IndexedAt,
	}
	if d.Location != nil {
		out.Location = &esGeoPoint{Lat: d.Location.Lat, Lon: d.Location.Lon}
	}
	return out
}

func (l esListing) toDomain() domain.ListingDocument {
	out := domain.ListingDocument{
		ID: l.ID, Title: l.Title, Description: l.Description, Address: l.Address,
		City: l.City, District: l.District, PropertyType: l.PropertyType, ListingType: l.ListingType,
		AgentID: l.AgentID, AgentName: l.AgentName, Amenities: l.Amenities, Images: l.Images,
		Price: l.Price, Bedrooms: l.Bedrooms, Bathrooms: l.Bathrooms, AreaSqm: l.AreaSqm,
		Rating: l.Rating, ViewCount: l.ViewCount, Geohash: l.Geohash,
		Available: l.Available, Featured: l.Featured, PostedAt: l.PostedAt, UpdatedAt: l.UpdatedAt,
		SourceVersion: l.SourceVersion, IndexedAt: l.IndexedAt,
	}
	if l.Location != nil {
		out.Location = &domain.GeoPoint{Lat: l.Location.Lat, Lon: l.Location.Lon}
	}
	return out
}

func toESUser(d domain.UserDocument) esUser {
	return esUser{
		ID: d.ID, Username: d.Username, Email: d.Email, FullName: d.FullName, Phone: d.Phone,
		Role: d.Role, City: d.City, Verified: d.Verified, ListingCount: d.ListingCount,
		CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt, SourceVersion: d.SourceVersion, IndexedAt: d.IndexedAt,
	}
}

func (u esUser) toDomain() domain.UserDocument {
	return domain.UserDocument{
		ID: u.ID, Username: u.Username, Email: u.Email, FullName: u.FullName, Phone: u.Phone,
		Role: u.Role, City: u.City, Verified: u.Verified, ListingCount: u.ListingCount,
		CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt, SourceVersion: u.SourceVersion, IndexedAt: u.IndexedAt,
	}
}

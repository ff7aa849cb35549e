package usecase

import (
	"strings"
	"time"

	"search-service/internal/core/domain"

	"github.com/mmcloughlin/geohash"
)

// GeohashPrecision длина geohash в документе, 9 символов ~ 5 м
const GeohashPrecision = 9

// buildListingDocument переносит поля payload в поисковый документ.
// Отсутствующие поля получают значения по умолчанию, город и район берутся из адреса.
// Без createdAt в payload дата публикации - время события, а не время применения:
// повторная доставка дает тот же документ.
func buildListingDocument(p domain.ListingPayload, emittedAt, indexedAt time.Time) domain.ListingDocument {
	doc := domain.ListingDocument{
		ID:            p.ID,
		Title:         p.Title,
		Description:   p.Description,
		Address:       p.Address,
		City:          p.City,
		District:      p.District,
		PropertyType:  strings.ToUpper(p.PropertyType),
		ListingType:   strings.ToUpper(p.ListingType),
		AgentID:       p.AgentID,
		AgentName:     p.AgentName,
		Amenities:     p.Amenities,
		Images:        p.Images,
		Available:     true,
		SourceVersion: emittedAt.UnixMilli(),
		IndexedAt:     indexedAt,
	}

	if doc.City == "" || doc.District == "" {
		city, district := splitAddress(p.Address)
		if doc.City == "" {
			doc.City = city
		}
		if doc.District == "" {
			doc.District = district
		}
	}

	if p.Price != nil {
		doc.Price = *p.Price
	}
	if p.Bedrooms != nil {
		doc.Bedrooms = *p.Bedrooms
	}
	if p.Bathrooms != nil {
		doc.Bathrooms = *p.Bathrooms
	}
	if p.AreaSqm != nil {
		doc.AreaSqm = *p.AreaSqm
	}
	if p.Rating != nil {
		doc.Rating = *p.Rating
	}
	if p.ViewCount != nil {
		doc.ViewCount = *p.ViewCount
	}
	if p.Available != nil {
		doc.Available = *p.Available
	}
	if p.Featured != nil {
		doc.Featured = *p.Featured
	}

	if p.Latitude != nil && p.Longitude != nil {
		doc.Location = &domain.GeoPoint{Lat: *p.Latitude, Lon: *p.Longitude}
		doc.Geohash = geohash.EncodeWithPrecision(*p.Latitude, *p.Longitude, GeohashPrecision)
	}

	doc.PostedAt = emittedAt
	if p.CreatedAt != nil {
		doc.PostedAt = *p.CreatedAt
	}
	doc.UpdatedAt = doc.PostedAt
	if p.UpdatedAt != nil {
		doc.UpdatedAt = *p.UpdatedAt
	}
	return doc
}

// splitAddress "улица, район, город": последний непустой сегмент - город, предпоследний - район.
// Адрес из одного сегмента считается городом.
func splitAddress(address string) (city, district string) {
	var parts []string
	for _, p := range strings.Split(address, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "", ""
	}
	city = parts[len(parts)-1]
	if len(parts) >= 2 {
		district = parts[len(parts)-2]
	}
	return city, district
}

func buildUserDocument(p domain.UserPayload, emittedAt, indexedAt time.Time) domain.UserDocument {
	doc := domain.UserDocument{
		ID:            p.ID,
		Username:      p.Username,
		Email:         strings.ToLower(p.Email),
		FullName:      p.FullName,
		Phone:         p.Phone,
		Role:          strings.ToUpper(p.Role),
		City:          p.City,
		SourceVersion: emittedAt.UnixMilli(),
		IndexedAt:     indexedAt,
		CreatedAt:     emittedAt,
	}
	if p.Verified != nil {
		doc.Verified = *p.Verified
	}
	if p.ListingCount != nil {
		doc.ListingCount = *p.ListingCount
	}
	if p.CreatedAt != nil {
		doc.CreatedAt = *p.CreatedAt
	}
	doc.UpdatedAt = doc.CreatedAt
	if p.UpdatedAt != nil {
		doc.UpdatedAt = *p.UpdatedAt
	}
	return doc
}

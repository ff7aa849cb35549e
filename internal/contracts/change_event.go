package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"search-service/internal/core/domain"
)

type changeEventEnvelope struct {
	EntityKind string                 `json:"entityKind"`
	Action     string                 `json:"action"`
	EmittedAt  interface{}            `json:"emittedAt"`
	Payload    map[string]interface{} `json:"payload"`
}

// DecodeChangeEvent разбирает тело сообщения в domain.ChangeEvent.
// Неизвестный вид сущности или действие не ошибка: событие возвращается без payload.
// Ошибки разбора оборачивают domain.ErrMalformedEvent.
func DecodeChangeEvent(body []byte, now time.Time) (domain.ChangeEvent, error) {
	var env changeEventEnvelope
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}

	event := domain.ChangeEvent{EmittedAt: now.UTC()}
	if ts := timePtr(env.EmittedAt); ts != nil {
		event.EmittedAt = *ts
	}

	kind, kindOK := domain.ParseEntityKind(env.EntityKind)
	action, actionOK := domain.ParseAction(env.Action)
	event.EntityKind = kind
	event.Action = action
	if !kindOK || !actionOK {
		event.EntityID = asString(env.Payload["id"])
		return event, nil
	}

	if env.Payload == nil {
		return event, fmt.Errorf("%w: payload is missing", domain.ErrMalformedEvent)
	}
	event.EntityID = asString(env.Payload["id"])
	if event.EntityID == "" {
		return event, fmt.Errorf("%w: payload.id is missing", domain.ErrMalformedEvent)
	}
	if action == domain.ActionDelete {
		return event, nil
	}

	switch kind {
	case domain.EntityListing:
		event.Listing = decodeListingPayload(event.EntityID, env.Payload)
	case domain.EntityUser:
		event.User = decodeUserPayload(event.EntityID, env.Payload)
	}
	return event, nil
}

// ListingPayloadFromMap приводит выгрузку сервиса объявлений к типизированному виду
func ListingPayloadFromMap(m map[string]interface{}) (domain.ListingPayload, error) {
	id := asString(m["id"])
	if id == "" {
		return domain.ListingPayload{}, fmt.Errorf("%w: listing id is missing", domain.ErrMalformedEvent)
	}
	return *decodeListingPayload(id, m), nil
}

// UserPayloadFromMap приводит выгрузку сервиса пользователей к типизированному виду
func UserPayloadFromMap(m map[string]interface{}) (domain.UserPayload, error) {
	id := asString(m["id"])
	if id == "" {
		return domain.UserPayload{}, fmt.Errorf("%w: user id is missing", domain.ErrMalformedEvent)
	}
	return *decodeUserPayload(id, m), nil
}

func decodeListingPayload(id string, m map[string]interface{}) *domain.ListingPayload {
	p := &domain.ListingPayload{
		ID:           id,
		Title:        asString(m["title"]),
		Description:  asString(m["description"]),
		Address:      asString(m["address"]),
		City:         asString(m["city"]),
		District:     asString(m["district"]),
		PropertyType: asString(first(m, "propertyType", "type")),
		ListingType:  asString(first(m, "listingType", "dealType")),
		AgentID:      asString(first(m, "agentId", "ownerId")),
		AgentName:    asString(first(m, "agentName", "ownerName")),
		Amenities:    stringList(m["amenities"]),
		Images:       stringList(first(m, "images", "imageUrls")),
		Price:        floatPtr(m["price"]),
		Bedrooms:     intPtr(m["bedrooms"]),
		Bathrooms:    intPtr(m["bathrooms"]),
		AreaSqm:      floatPtr(first(m, "areaSqm", "area")),
		Rating:       floatPtr(m["rating"]),
		ViewCount:    int64Ptr(first(m, "viewCount", "views")),
		Available:    boolPtr(first(m, "available", "isAvailable")),
		Featured:     boolPtr(first(m, "featured", "isFeatured")),
		CreatedAt:    timePtr(first(m, "createdAt", "postedAt")),
		UpdatedAt:    timePtr(m["updatedAt"]),
	}
	p.Latitude, p.Longitude = decodeLocation(m)
	return p
}

// decodeLocation координаты либо в location{lat,lon|latitude,longitude}, либо на верхнем уровне.
// Неполная пара отбрасывается.
func decodeLocation(m map[string]interface{}) (*float64, *float64) {
	var lat, lon *float64
	if loc, ok := m["location"].(map[string]interface{}); ok {
		lat = floatPtr(first(loc, "lat", "latitude"))
		lon = floatPtr(first(loc, "lon", "lng", "longitude"))
	}
	if lat == nil || lon == nil {
		lat = floatPtr(m["latitude"])
		lon = floatPtr(m["longitude"])
	}
	if lat == nil || lon == nil {
		return nil, nil
	}
	if !domain.ValidCoordinates(*lat, *lon) {
		return nil, nil
	}
	return lat, lon
}

func decodeUserPayload(id string, m map[string]interface{}) *domain.UserPayload {
	return &domain.UserPayload{
		ID:           id,
		Username:     asString(m["username"]),
		Email:        asString(m["email"]),
		FullName:     asString(first(m, "fullName", "name")),
		Phone:        asString(first(m, "phone", "phoneNumber")),
		Role:         asString(m["role"]),
		City:         asString(m["city"]),
		Verified:     boolPtr(first(m, "verified", "isVerified")),
		ListingCount: intPtr(m["listingCount"]),
		CreatedAt:    timePtr(m["createdAt"]),
		UpdatedAt:    timePtr(m["updatedAt"]),
	}
}

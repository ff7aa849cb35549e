package contracts

import (
	"testing"
	"time"

	"search-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func TestSchemaKey(t *testing.T) {
	assert.Equal(t, "ChangeEvent/1.0.0", schemaKey("change-event/v1.json"))
	assert.Equal(t, "", schemaKey("broken.json"))
}

func TestValidateEvent(t *testing.T) {
	valid := []byte(`{"entityKind":"LISTING","action":"CREATE","payload":{"id":1}}`)
	require.NoError(t, ValidateEvent(ChangeEventType, ChangeEventVersion, valid))

	missingPayload := []byte(`{"entityKind":"LISTING","action":"CREATE"}`)
	assert.Error(t, ValidateEvent(ChangeEventType, ChangeEventVersion, missingPayload))

	badID := []byte(`{"entityKind":"LISTING","action":"CREATE","payload":{"id":true}}`)
	assert.Error(t, ValidateEvent(ChangeEventType, ChangeEventVersion, badID))

	assert.Error(t, ValidateEvent(ChangeEventType, ChangeEventVersion, []byte(`{not json`)))
	assert.Error(t, ValidateEvent("Unknown", "1.0.0", valid))
}

func TestDecodeChangeEvent_ListingWithCoercions(t *testing.T) {
	body := []byte(`{
		"entityKind": "property",
		"action": "updated",
		"emittedAt": "2026-09-30T08:15:00Z",
		"payload": {
			"id": 42,
			"title": "Sunny flat",
			"address": "12 Main St, Downtown, Springfield",
			"type": "APARTMENT",
			"price": "2500.50",
			"bedrooms": 2.9,
			"bathrooms": "1",
			"rating": "not-a-number",
			"available": "false",
			"featured": 1,
			"amenities": "parking, balcony ,",
			"location": {"latitude": 53.9, "longitude": 27.56},
			"createdAt": 1759219200000,
			"updatedAt": "2026-09-29T10:00:00"
		}
	}`)

	event, err := DecodeChangeEvent(body, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, domain.EntityListing, event.EntityKind)
	assert.Equal(t, domain.ActionUpdate, event.Action)
	assert.Equal(t, "42", event.EntityID)
	assert.Equal(t, time.Date(2026, 9, 30, 8, 15, 0, 0, time.UTC), event.EmittedAt)

	p := event.Listing
	require.NotNil(t, p)
	assert.Equal(t, "APARTMENT", p.PropertyType)
	require.NotNil(t, p.Price)
	assert.InDelta(t, 2500.5, *p.Price, 1e-9)
	assert.Equal(t, 2, *p.Bedrooms)
	assert.Equal(t, 1, *p.Bathrooms)
	assert.Nil(t, p.Rating)
	assert.False(t, *p.Available)
	assert.True(t, *p.Featured)
	assert.Equal(t, []string{"parking", "balcony"}, p.Amenities)
	assert.InDelta(t, 53.9, *p.Latitude, 1e-9)
	assert.InDelta(t, 27.56, *p.Longitude, 1e-9)
	assert.Equal(t, time.UnixMilli(1759219200000).UTC(), *p.CreatedAt)
	assert.Equal(t, time.Date(2026, 9, 29, 10, 0, 0, 0, time.UTC), *p.UpdatedAt)
	assert.Nil(t, event.User)
}

func TestDecodeChangeEvent_MissingEmittedAtFallsBackToNow(t *testing.T) {
	event, err := DecodeChangeEvent([]byte(`{"entityKind":"USER","action":"CREATE","payload":{"id":"u-1","verified":"true"}}`), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, event.EmittedAt)
	require.NotNil(t, event.User)
	assert.True(t, *event.User.Verified)
}

func TestDecodeChangeEvent_DeleteCarriesOnlyID(t *testing.T) {
	event, err := DecodeChangeEvent([]byte(`{"entityKind":"LISTING","action":"DELETE","payload":{"id":"7"}}`), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, domain.ActionDelete, event.Action)
	assert.Equal(t, "7", event.EntityID)
	assert.Nil(t, event.Listing)
}

func TestDecodeChangeEvent_MissingIDIsMalformed(t *testing.T) {
	_, err := DecodeChangeEvent([]byte(`{"entityKind":"LISTING","action":"CREATE","payload":{"title":"x"}}`), fixedNow)
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)

	_, err = DecodeChangeEvent([]byte(`{"entityKind":"LISTING","action":"CREATE","payload":{"id":"  "}}`), fixedNow)
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)

	_, err = DecodeChangeEvent([]byte(`[1,2]`), fixedNow)
	assert.ErrorIs(t, err, domain.ErrMalformedEvent)
}

func TestDecodeChangeEvent_UnknownKindOrActionIsNotAnError(t *testing.T) {
	event, err := DecodeChangeEvent([]byte(`{"entityKind":"AGENCY","action":"CREATE","payload":{}}`), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, domain.EntityKind("AGENCY"), event.EntityKind)

	event, err = DecodeChangeEvent([]byte(`{"entityKind":"LISTING","action":"ARCHIVE","payload":{"id":1}}`), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, domain.Action("ARCHIVE"), event.Action)
	assert.Nil(t, event.Listing)
}

func TestDecodeLocation_PartialCoordinatesDropped(t *testing.T) {
	lat, lon := decodeLocation(map[string]interface{}{"latitude": 10.0})
	assert.Nil(t, lat)
	assert.Nil(t, lon)

	lat, lon = decodeLocation(map[string]interface{}{"location": map[string]interface{}{"lat": "95", "lon": "10"}})
	assert.Nil(t, lat)
	assert.Nil(t, lon)
}

func TestTimePtrLayouts(t *testing.T) {
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), *timePtr("2026-01-02"))
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), *timePtr("2026-01-02T05:04:05+02:00"))
	assert.Nil(t, timePtr("yesterday"))
	assert.Nil(t, timePtr(nil))
}

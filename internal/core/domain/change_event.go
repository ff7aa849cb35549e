package domain

import (
	"strings"
	"time"
)

type EntityKind string

const (
	EntityListing EntityKind = "LISTING"
	EntityUser    EntityKind = "USER"
)

type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// ParseEntityKind разбирает вид сущности без учета регистра
func ParseEntityKind(s string) (EntityKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LISTING", "PROPERTY":
		return EntityListing, true
	case "USER":
		return EntityUser, true
	}
	return EntityKind(s), false
}

// ParseAction разбирает действие без учета регистра, прошедшее время тоже принимается
func ParseAction(s string) (Action, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CREATE", "CREATED":
		return ActionCreate, true
	case "UPDATE", "UPDATED":
		return ActionUpdate, true
	case "DELETE", "DELETED":
		return ActionDelete, true
	}
	return Action(s), false
}

// ChangeEvent уведомление об изменении сущности в основном хранилище.
// Для известного вида заполнен ровно один из Listing/User.
type ChangeEvent struct {
	EntityKind EntityKind
	Action     Action
	EntityID   string
	EmittedAt  time.Time

	Listing *ListingPayload
	User    *UserPayload
}

// Version версия документа, полученного из события
func (e ChangeEvent) Version() int64 {
	return e.EmittedAt.UnixMilli()
}

// ListingPayload типизированные поля объявления; nil означает "не пришло"
type ListingPayload struct {
	ID           string
	Title        string
	Description  string
	Address      string
	City         string
	District     string
	PropertyType string
	ListingType  string
	AgentID      string
	AgentName    string
	Amenities    []string
	Images       []string

	Price     *float64
	Bedrooms  *int
	Bathrooms *int
	AreaSqm   *float64
	Rating    *float64
	ViewCount *int64

	Latitude  *float64
	Longitude *float64

	Available *bool
	Featured  *bool

	CreatedAt *time.Time
	UpdatedAt *time.Time
}

// UserPayload типизированные поля пользователя
type UserPayload struct {
	ID           string
	Username     string
	Email        string
	FullName     string
	Phone        string
	Role         string
	City         string
	Verified     *bool
	ListingCount *int
	CreatedAt    *time.Time
	UpdatedAt    *time.Time
}

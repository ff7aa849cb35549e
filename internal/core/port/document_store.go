package port

import (
	"context"
	"time"

	"search-service/internal/core/domain"
)

// DocumentStorePort хранилище поисковых документов.
// Upsert с версией ниже сохраненной возвращает domain.ErrStaleDocument;
// Get отсутствующего id - domain.ErrDocumentNotFound; Delete отсутствующего id - не ошибка.
type DocumentStorePort interface {
	UpsertListing(ctx context.Context, doc domain.ListingDocument) error
	DeleteListing(ctx context.Context, id string) error
	GetListing(ctx context.Context, id string) (*domain.ListingDocument, error)
	QueryListings(ctx context.Context, query domain.ListingQuery) (*domain.ListingPage, error)
	CountListings(ctx context.Context, filter domain.ListingFilter) (int64, error)
	AggregateListings(ctx context.Context, field domain.AggregationField, filter domain.ListingFilter) (map[string]int64, error)

	UpsertUser(ctx context.Context, doc domain.UserDocument) error
	DeleteUser(ctx context.Context, id string) error
	GetUser(ctx context.Context, id string) (*domain.UserDocument, error)
	QueryUsers(ctx context.Context, query domain.UserQuery) (*domain.UserPage, error)
	CountUsers(ctx context.Context) (int64, error)

	// PurgeIndexedBefore удаляет документы вида kind, проиндексированные раньше t
	PurgeIndexedBefore(ctx context.Context, kind domain.EntityKind, t time.Time) (int64, error)
	Ping(ctx context.Context) error
}

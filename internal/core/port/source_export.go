package port

import (
	"context"

	"search-service/internal/core/domain"
)

// SourceExportPort постраничная выгрузка из сервисов-владельцев данных.
// Last == true на последней странице.
type SourceExportPort interface {
	ExportListings(ctx context.Context, page, size int) (*domain.ExportPage[domain.ListingPayload], error)
	ExportUsers(ctx context.Context, page, size int) (*domain.ExportPage[domain.UserPayload], error)
}

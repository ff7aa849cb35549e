package usecases_port

import (
	"context"

	"search-service/internal/core/domain"
)

type SearchListingsUseCase interface {
	Execute(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)
}

type GetListingUseCase interface {
	Execute(ctx context.Context, id string) (*domain.ListingDocument, error)
}

package usecase

import (
	"context"
	"errors"
	"time"

	"search-service/internal/contextkeys"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"
)

type GetListingUseCase struct {
	store        port.DocumentStorePort
	storeTimeout time.Duration
}

func NewGetListingUseCase(store port.DocumentStorePort, storeTimeout time.Duration) *GetListingUseCase {
	return &GetListingUseCase{store: store, storeTimeout: storeTimeout}
}

func (uc *GetListingUseCase) Execute(ctx context.Context, id string) (*domain.ListingDocument, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"use_case": "GetListing", "listing_id": id})

	if uc.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.storeTimeout)
		defer cancel()
	}

	doc, err := uc.store.GetListing(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrDocumentNotFound) {
			logger.Error("Storage returned an error", err, nil)
		}
		return nil, err
	}
	return doc, nil
}

package usecase

import (
	"context"
	"fmt"
	"time"

	"search-service/internal/contextkeys"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"

	"golang.org/x/sync/errgroup"
)

type GetSyncStatsUseCase struct {
	store        port.DocumentStorePort
	stats        *SyncStatsTracker
	storeTimeout time.Duration
}

func NewGetSyncStatsUseCase(store port.DocumentStorePort, stats *SyncStatsTracker, storeTimeout time.Duration) *GetSyncStatsUseCase {
	return &GetSyncStatsUseCase{store: store, stats: stats, storeTimeout: storeTimeout}
}

func (uc *GetSyncStatsUseCase) Execute(ctx context.Context) (*domain.SyncStats, error) {
	if uc.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.storeTimeout)
		defer cancel()
	}

	stats := uc.stats.Snapshot()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := uc.store.CountListings(gctx, domain.ListingFilter{})
		stats.ListingDocuments = n
		return err
	})
	g.Go(func() error {
		n, err := uc.store.CountUsers(gctx)
		stats.UserDocuments = n
		return err
	})
	if err := g.Wait(); err != nil {
		contextkeys.LoggerFromContext(ctx).Error("Failed to count documents", err, port.Fields{"use_case": "GetSyncStats"})
		return nil, fmt.Errorf("count documents: %w", err)
	}
	return &stats, nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"search-service/internal/contextkeys"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"
)

// Исходы обработки события для метрик
const (
	OutcomeApplied   = "applied"
	OutcomeDropped   = "dropped"
	OutcomeStale     = "stale"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
)

// ApplyChangeEventUseCase единственная точка записи в индекс: события из очередей и переиндексация
type ApplyChangeEventUseCase struct {
	store        port.DocumentStorePort
	cache        port.SearchCachePort
	stats        *SyncStatsTracker
	metrics      port.MetricsPort
	storeTimeout time.Duration
	now          func() time.Time
}

// NewApplyChangeEventUseCase cache и metrics могут быть nil
func NewApplyChangeEventUseCase(
	store port.DocumentStorePort,
	cache port.SearchCachePort,
	stats *SyncStatsTracker,
	metrics port.MetricsPort,
	storeTimeout time.Duration,
) *ApplyChangeEventUseCase {
	if metrics == nil {
		metrics = port.NoopMetrics{}
	}
	if stats == nil {
		stats = NewSyncStatsTracker()
	}
	return &ApplyChangeEventUseCase{
		store:        store,
		cache:        cache,
		stats:        stats,
		metrics:      metrics,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

func (uc *ApplyChangeEventUseCase) Execute(ctx context.Context, event domain.ChangeEvent) error {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":    "ApplyChangeEvent",
		"entity_kind": string(event.EntityKind),
		"action":      string(event.Action),
		"entity_id":   event.EntityID,
	})

	if !knownKind(event.EntityKind) || !knownAction(event.Action) {
		logger.Info("Unrecognized entity kind or action, event dropped", nil)
		uc.stats.RecordDropped()
		uc.metrics.EventProcessed(string(event.EntityKind), string(event.Action), OutcomeDropped)
		return nil
	}

	err := uc.apply(ctx, event)
	switch {
	case err == nil:
		uc.stats.RecordApplied(event.EntityKind, event.Action, uc.now().UTC())
		uc.metrics.EventProcessed(string(event.EntityKind), string(event.Action), OutcomeApplied)
		uc.invalidateCache(ctx, logger)
		logger.Debug("Change event applied", nil)
		return nil

	case errors.Is(err, domain.ErrStaleDocument):
		uc.stats.RecordStale()
		uc.metrics.EventProcessed(string(event.EntityKind), string(event.Action), OutcomeStale)
		logger.Info("Stored document is newer, update skipped", port.Fields{"version": event.Version()})
		return nil

	case errors.Is(err, domain.ErrMalformedEvent):
		uc.stats.RecordMalformed()
		uc.metrics.EventProcessed(string(event.EntityKind), string(event.Action), OutcomeMalformed)
		logger.Error("Malformed change event", err, nil)
		return err

	default:
		uc.stats.RecordFailed()
		uc.metrics.EventProcessed(string(event.EntityKind), string(event.Action), OutcomeFailed)
		logger.Error("Document store returned an error", err, nil)
		return err
	}
}

func (uc *ApplyChangeEventUseCase) apply(ctx context.Context, event domain.ChangeEvent) error {
	if event.EntityID == "" {
		return fmt.Errorf("%w: entity id is empty", domain.ErrMalformedEvent)
	}

	storeCtx := ctx
	if uc.storeTimeout > 0 {
		var cancel context.CancelFunc
		storeCtx, cancel = context.WithTimeout(ctx, uc.storeTimeout)
		defer cancel()
	}
	now := uc.now().UTC()

	switch event.EntityKind {
	case domain.EntityListing:
		if event.Action == domain.ActionDelete {
			if err := uc.store.DeleteListing(storeCtx, event.EntityID); err != nil {
				return fmt.Errorf("delete listing %s: %w", event.EntityID, err)
			}
			return nil
		}
		if event.Listing == nil {
			return fmt.Errorf("%w: listing payload is missing", domain.ErrMalformedEvent)
		}
		doc := buildListingDocument(*event.Listing, event.EmittedAt, now)
		if err := uc.store.UpsertListing(storeCtx, doc); err != nil {
			return fmt.Errorf("upsert listing %s: %w", event.EntityID, err)
		}

	case domain.EntityUser:
		if event.Action == domain.ActionDelete {
			if err := uc.store.DeleteUser(storeCtx, event.EntityID); err != nil {
				return fmt.Errorf("delete user %s: %w", event.EntityID, err)
			}
			return nil
		}
		if event.User == nil {
			return fmt.Errorf("%w: user payload is missing", domain.ErrMalformedEvent)
		}
		doc := buildUserDocument(*event.User, event.EmittedAt, now)
		if err := uc.store.UpsertUser(storeCtx, doc); err != nil {
			return fmt.Errorf("upsert user %s: %w", event.EntityID, err)
		}
	}
	return nil
}

// invalidateCache сдвигает поколение кэша; ошибка кэша не влияет на запись
func (uc *ApplyChangeEventUseCase) invalidateCache(ctx context.Context, logger port.LoggerPort) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.BumpGeneration(ctx); err != nil {
		logger.Warn("Failed to bump search cache generation", port.Fields{"error": err.Error()})
	}
}

func knownKind(k domain.EntityKind) bool {
	return k == domain.EntityListing || k == domain.EntityUser
}

func knownAction(a domain.Action) bool {
	return a == domain.ActionCreate || a == domain.ActionUpdate || a == domain.ActionDelete
}

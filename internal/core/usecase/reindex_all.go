package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"search-service/internal/contextkeys"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"
	"search-service/internal/core/port/usecases_port"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// maxReportErrors сколько сообщений об ошибках хранится в отчете
const maxReportErrors = 20

const reportPublishTimeout = 5 * time.Second

type ReindexConfig struct {
	PageSize int
	Workers  int
}

// ReindexAllUseCase полная пересинхронизация индекса из выгрузки сервисов-владельцев.
// Записи применяются как синтетические события Create через тот же путь, что и события очереди.
type ReindexAllUseCase struct {
	source   port.SourceExportPort
	apply    usecases_port.ApplyChangeEventUseCase
	store    port.DocumentStorePort
	reporter port.ReindexReporterPort
	stats    *SyncStatsTracker
	cfg      ReindexConfig
	running  atomic.Bool
	inFlight sync.WaitGroup
	now      func() time.Time
}

// NewReindexAllUseCase reporter может быть nil
func NewReindexAllUseCase(
	source port.SourceExportPort,
	apply usecases_port.ApplyChangeEventUseCase,
	store port.DocumentStorePort,
	reporter port.ReindexReporterPort,
	stats *SyncStatsTracker,
	cfg ReindexConfig,
) *ReindexAllUseCase {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 200
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &ReindexAllUseCase{
		source:   source,
		apply:    apply,
		store:    store,
		reporter: reporter,
		stats:    stats,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (uc *ReindexAllUseCase) Execute(ctx context.Context) (*domain.ReindexReport, error) {
	if !uc.running.CompareAndSwap(false, true) {
		return nil, domain.ErrReindexInProgress
	}
	defer uc.running.Store(false)

	sweep := uc.newSweep()
	report := uc.run(ctx, sweep)
	return &report, nil
}

// Start запускает переиндексацию в фоне на ctx вызывающего, обычно это контекст приложения.
// Отмена ctx прерывает проход без очистки.
func (uc *ReindexAllUseCase) Start(ctx context.Context) (*domain.ReindexReport, error) {
	if !uc.running.CompareAndSwap(false, true) {
		return nil, domain.ErrReindexInProgress
	}

	sweep := uc.newSweep()
	started := sweep.snapshot()
	uc.stats.SetReindexReport(started)

	uc.inFlight.Add(1)
	go func() {
		defer uc.inFlight.Done()
		defer uc.running.Store(false)
		uc.run(ctx, sweep)
	}()
	return &started, nil
}

// Wait ждет завершения фонового прохода, запущенного через Start
func (uc *ReindexAllUseCase) Wait() {
	uc.inFlight.Wait()
}

// sweep состояние одного прохода
type sweep struct {
	mu     sync.Mutex
	report domain.ReindexReport

	listings atomic.Int64
	users    atomic.Int64
	failed   atomic.Int64
	aborted  atomic.Bool
}

func (uc *ReindexAllUseCase) newSweep() *sweep {
	// точность до мс: время индексации в хранилищах не точнее
	started := uc.now().UTC().Truncate(time.Millisecond)
	return &sweep{report: domain.ReindexReport{
		RunID:     uuid.NewString(),
		Status:    domain.ReindexRunning,
		StartedAt: started,
	}}
}

func (s *sweep) addError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.report.Errors) < maxReportErrors {
		s.report.Errors = append(s.report.Errors, err.Error())
	}
}

func (s *sweep) snapshot() domain.ReindexReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.report
	r.Errors = append([]string(nil), s.report.Errors...)
	r.ListingsIndexed = int(s.listings.Load())
	r.UsersIndexed = int(s.users.Load())
	r.Failed = int(s.failed.Load())
	return r
}

func (uc *ReindexAllUseCase) run(ctx context.Context, s *sweep) domain.ReindexReport {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "ReindexAll",
		"run_id":   s.report.RunID,
	})
	logger.Info("Reindex started", nil)

	uc.sweepListings(ctx, s, logger)
	uc.sweepUsers(ctx, s, logger)

	clean := s.failed.Load() == 0 && !s.aborted.Load()
	if clean {
		uc.purge(ctx, s, logger)
	}

	finished := uc.now().UTC()
	s.mu.Lock()
	s.report.FinishedAt = &finished
	s.report.Status = domain.ReindexCompleted
	if !clean || s.aborted.Load() {
		s.report.Status = domain.ReindexFailed
	}
	s.mu.Unlock()

	report := s.snapshot()
	uc.stats.SetReindexReport(report)

	if uc.reporter != nil {
		// итог прерванного прохода тоже публикуется; сам проход к этому моменту завершен
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportPublishTimeout)
		if err := uc.reporter.ReportReindex(pubCtx, report); err != nil {
			logger.Error("Failed to publish reindex report", err, nil)
		}
		cancel()
	}

	logger.Info("Reindex finished", port.Fields{
		"status":           string(report.Status),
		"listings_indexed": report.ListingsIndexed,
		"users_indexed":    report.UsersIndexed,
		"failed":           report.Failed,
		"listings_purged":  report.ListingsPurged,
		"users_purged":     report.UsersPurged,
	})
	return report
}

func (uc *ReindexAllUseCase) sweepListings(ctx context.Context, s *sweep, logger port.LoggerPort) {
	walkExport(ctx, s, logger.WithFields(port.Fields{"entity": string(domain.EntityListing)}), uc.cfg,
		uc.source.ExportListings,
		func(item domain.ListingPayload) {
			event := domain.ChangeEvent{
				EntityKind: domain.EntityListing,
				Action:     domain.ActionCreate,
				EntityID:   item.ID,
				EmittedAt:  s.report.StartedAt,
				Listing:    &item,
			}
			uc.applyOne(ctx, s, event, &s.listings)
		})
}

func (uc *ReindexAllUseCase) sweepUsers(ctx context.Context, s *sweep, logger port.LoggerPort) {
	walkExport(ctx, s, logger.WithFields(port.Fields{"entity": string(domain.EntityUser)}), uc.cfg,
		uc.source.ExportUsers,
		func(item domain.UserPayload) {
			event := domain.ChangeEvent{
				EntityKind: domain.EntityUser,
				Action:     domain.ActionCreate,
				EntityID:   item.ID,
				EmittedAt:  s.report.StartedAt,
				User:       &item,
			}
			uc.applyOne(ctx, s, event, &s.users)
		})
}

// walkExport проходит выгрузку до страницы с Last.
// Пустая непоследняя страница или отмена ctx прерывают проход: выгрузка неполная, очистки не будет.
func walkExport[T any](
	ctx context.Context,
	s *sweep,
	logger port.LoggerPort,
	cfg ReindexConfig,
	fetch func(ctx context.Context, page, size int) (*domain.ExportPage[T], error),
	apply func(item T),
) {
	g := new(errgroup.Group)
	g.SetLimit(cfg.Workers)
	defer func() { _ = g.Wait() }()

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			logger.Warn("Export walk interrupted", port.Fields{"page": page, "error": err.Error()})
			s.addError(fmt.Errorf("export page %d: %w", page, err))
			s.aborted.Store(true)
			return
		}
		batch, err := fetch(ctx, page, cfg.PageSize)
		if err != nil {
			logger.Error("Export failed", err, port.Fields{"page": page})
			s.addError(fmt.Errorf("export page %d: %w", page, err))
			s.aborted.Store(true)
			return
		}
		for _, item := range batch.Items {
			g.Go(func() error {
				apply(item)
				return nil
			})
		}
		if batch.Last {
			return
		}
		if batch.Fetched == 0 {
			err := fmt.Errorf("export page %d: empty page without last flag", page)
			logger.Error("Export returned an empty page before the last one", err, nil)
			s.addError(err)
			s.aborted.Store(true)
			return
		}
		if len(batch.Items) < batch.Fetched {
			logger.Warn("Export page had records without id", port.Fields{
				"page": page, "fetched": batch.Fetched, "usable": len(batch.Items),
			})
		}
	}
}

// applyOne ошибка одной записи не останавливает проход, но отменяет очистку
func (uc *ReindexAllUseCase) applyOne(ctx context.Context, s *sweep, event domain.ChangeEvent, counter *atomic.Int64) {
	if err := uc.apply.Execute(ctx, event); err != nil {
		s.failed.Add(1)
		s.addError(fmt.Errorf("%s %s: %w", event.EntityKind, event.EntityID, err))
		return
	}
	counter.Add(1)
}

// purge удаляет документы, не встреченные в этом проходе
func (uc *ReindexAllUseCase) purge(ctx context.Context, s *sweep, logger port.LoggerPort) {
	listings, err := uc.store.PurgeIndexedBefore(ctx, domain.EntityListing, s.report.StartedAt)
	if err != nil {
		logger.Error("Failed to purge stale listings", err, nil)
		s.addError(fmt.Errorf("purge listings: %w", err))
		s.aborted.Store(true)
		return
	}
	users, err := uc.store.PurgeIndexedBefore(ctx, domain.EntityUser, s.report.StartedAt)
	if err != nil {
		logger.Error("Failed to purge stale users", err, nil)
		s.addError(fmt.Errorf("purge users: %w", err))
		s.aborted.Store(true)
	}

	s.mu.Lock()
	s.report.ListingsPurged = listings
	s.report.UsersPurged = users
	s.mu.Unlock()
}

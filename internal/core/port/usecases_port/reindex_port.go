package usecases_port

import (
	"context"

	"search-service/internal/core/domain"
)

type ReindexAllUseCase interface {
	// Execute выполняет переиндексацию синхронно
	Execute(ctx context.Context) (*domain.ReindexReport, error)
	// Start запускает переиндексацию в фоне и сразу возвращает начальный отчет
	Start(ctx context.Context) (*domain.ReindexReport, error)
}

type GetSyncStatsUseCase interface {
	Execute(ctx context.Context) (*domain.SyncStats, error)
}

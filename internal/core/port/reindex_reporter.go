package port

import (
	"context"

	"search-service/internal/core/domain"
)

type ReindexReporterPort interface {
	ReportReindex(ctx context.Context, report domain.ReindexReport) error
}

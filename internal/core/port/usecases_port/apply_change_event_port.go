package usecases_port

import (
	"context"

	"search-service/internal/core/domain"
)

type ApplyChangeEventUseCase interface {
	Execute(ctx context.Context, event domain.ChangeEvent) error
}

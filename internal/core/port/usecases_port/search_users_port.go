package usecases_port

import (
	"context"

	"search-service/internal/core/domain"
)

type SearchUsersUseCase interface {
	Execute(ctx context.Context, query domain.UserQuery) (*domain.UserPage, error)
}

package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"search-service/internal/contextkeys"
	"search-service/internal/core/domain"
	"search-service/internal/core/port"
)

type SearchUsersUseCase struct {
	store        port.DocumentStorePort
	storeTimeout time.Duration
}

func NewSearchUsersUseCase(store port.DocumentStorePort, storeTimeout time.Duration) *SearchUsersUseCase {
	return &SearchUsersUseCase{store: store, storeTimeout: storeTimeout}
}

// Execute при ошибке хранилища возвращает пустую страницу, как и поиск объявлений.
// Ошибка только для страницы за пределами окна выдачи.
func (uc *SearchUsersUseCase) Execute(ctx context.Context, query domain.UserQuery) (*domain.UserPage, error) {
	query.Keyword = strings.TrimSpace(query.Keyword)
	query.Role = strings.ToUpper(strings.TrimSpace(query.Role))
	if query.Page < 0 {
		query.Page = 0
	}
	if query.Size == 0 {
		query.Size = DefaultPageSize
	}
	query.Size = clampSize(query.Size)
	if !domain.WithinResultWindow(query.Page, query.Size) {
		return nil, fmt.Errorf("%w: page %d of size %d is beyond the first %d results",
			domain.ErrInvalidSearchRequest, query.Page, query.Size, domain.MaxResultWindow)
	}

	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case": "SearchUsers",
		"keyword":  query.Keyword,
		"role":     query.Role,
	})

	if uc.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.storeTimeout)
		defer cancel()
	}

	page, err := uc.store.QueryUsers(ctx, query)
	if err != nil {
		logger.Error("User query failed, returning empty page", err, nil)
		return &domain.UserPage{Items: []domain.UserDocument{}, Page: query.Page, Size: query.Size}, nil
	}
	page.Page, page.Size = query.Page, query.Size
	return page, nil
}

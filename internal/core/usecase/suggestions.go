package usecase

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
)

const (
	defaultSuggestionLimit = 10
	maxSuggestionLimit     = 50
)

// SuggestionsUseCase подсказки и популярные запросы из статических списков конфигурации.
// Индекс для подсказок не используется.
type SuggestionsUseCase struct {
	terms    []string
	trending []string
}

func NewSuggestionsUseCase(terms, trending []string) *SuggestionsUseCase {
	return &SuggestionsUseCase{terms: terms, trending: trending}
}

// Suggestions термы, содержащие prefix без учета регистра
func (uc *SuggestionsUseCase) Suggestions(_ context.Context, prefix string, limit int) []string {
	limit = clampLimit(limit)
	// Caser хранит состояние, поэтому создается на каждый вызов
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(prefix))

	out := make([]string, 0, limit)
	for _, term := range uc.terms {
		if len(out) == limit {
			break
		}
		if needle == "" || strings.Contains(fold.String(term), needle) {
			out = append(out, term)
		}
	}
	return out
}

func (uc *SuggestionsUseCase) Trending(_ context.Context, limit int) []string {
	limit = clampLimit(limit)
	if limit > len(uc.trending) {
		limit = len(uc.trending)
	}
	return append([]string{}, uc.trending[:limit]...)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultSuggestionLimit
	}
	if limit > maxSuggestionLimit {
		return maxSuggestionLimit
	}
	return limit
}

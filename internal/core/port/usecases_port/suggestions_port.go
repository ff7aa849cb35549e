package usecases_port

import "context"

type SuggestionsUseCase interface {
	Suggestions(ctx context.Context, prefix string, limit int) []string
	Trending(ctx context.Context, limit int) []string
}

package usecases_port

import "context"

type AggregationsUseCase interface {
	CityAggregation(ctx context.Context) (map[string]int64, error)
	PriceRangeAggregation(ctx context.Context) (map[string]int64, error)
	PropertyTypeAggregation(ctx context.Context) (map[string]int64, error)
}

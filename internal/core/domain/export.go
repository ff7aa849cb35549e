package domain

// ExportPage страница выгрузки сервиса-владельца.
// Fetched число записей в ответе, включая отброшенные при разборе.
type ExportPage[T any] struct {
	Items   []T
	Fetched int
	Last    bool
}

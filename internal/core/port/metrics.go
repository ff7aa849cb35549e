package port

import "time"

// MetricsPort счетчики синхронизации и поиска
type MetricsPort interface {
	EventProcessed(kind, action, outcome string)
	SearchServed(outcome string, took time.Duration)
	CacheLookup(hit bool)
}

// NoopMetrics ничего не считает
type NoopMetrics struct{}

func (NoopMetrics) EventProcessed(string, string, string) {}
func (NoopMetrics) SearchServed(string, time.Duration)    {}
func (NoopMetrics) CacheLookup(bool)                      {}

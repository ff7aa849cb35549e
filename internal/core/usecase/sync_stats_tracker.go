package usecase

import (
	"sync"
	"time"

	"search-service/internal/core/domain"
)

// SyncStatsTracker счетчики синхронизации в памяти процесса
type SyncStatsTracker struct {
	mu          sync.Mutex
	applied     map[string]int64
	dropped     int64
	malformed   int64
	stale       int64
	failed      int64
	lastSyncAt  *time.Time
	lastReindex *domain.ReindexReport
}

func NewSyncStatsTracker() *SyncStatsTracker {
	return &SyncStatsTracker{applied: map[string]int64{}}
}

func (t *SyncStatsTracker) RecordApplied(kind domain.EntityKind, action domain.Action, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.applied[string(kind)+"."+string(action)]++
	t.lastSyncAt = &at
}

func (t *SyncStatsTracker) RecordDropped() {
	t.mu.Lock()
	t.dropped++
	t.mu.Unlock()
}

func (t *SyncStatsTracker) RecordMalformed() {
	t.mu.Lock()
	t.malformed++
	t.mu.Unlock()
}

func (t *SyncStatsTracker) RecordStale() {
	t.mu.Lock()
	t.stale++
	t.mu.Unlock()
}

func (t *SyncStatsTracker) RecordFailed() {
	t.mu.Lock()
	t.failed++
	t.mu.Unlock()
}

func (t *SyncStatsTracker) SetReindexReport(report domain.ReindexReport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	report.Errors = append([]string(nil), report.Errors...)
	t.lastReindex = &report
}

// Snapshot копия текущих значений; количество документов заполняет вызывающий
func (t *SyncStatsTracker) Snapshot() domain.SyncStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := domain.SyncStats{
		Applied:   make(map[string]int64, len(t.applied)),
		Dropped:   t.dropped,
		Malformed: t.malformed,
		Stale:     t.stale,
		Failed:    t.failed,
	}
	for k, v := range t.applied {
		stats.Applied[k] = v
	}
	if t.lastSyncAt != nil {
		at := *t.lastSyncAt
		stats.LastSyncAt = &at
	}
	if t.lastReindex != nil {
		r := *t.lastReindex
		r.Errors = append([]string(nil), r.Errors...)
		stats.LastReindex = &r
		stats.Reindexing = r.Status == domain.ReindexRunning
	}
	return stats
}

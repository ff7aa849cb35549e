package domain

import "time"

type ReindexStatus string

const (
	ReindexRunning   ReindexStatus = "RUNNING"
	ReindexCompleted ReindexStatus = "COMPLETED"
	ReindexFailed    ReindexStatus = "FAILED"
)

// ReindexReport итог полной переиндексации
type ReindexReport struct {
	RunID      string
	Status     ReindexStatus
	StartedAt  time.Time
	FinishedAt *time.Time

	ListingsIndexed int
	UsersIndexed    int
	Failed          int
	ListingsPurged  int64
	UsersPurged     int64
	Errors          []string
}

// SyncStats состояние синхронизации индекса
type SyncStats struct {
	ListingDocuments int64
	UserDocuments    int64

	// ключ вида "LISTING.CREATE"
	Applied   map[string]int64
	Dropped   int64
	Malformed int64
	Stale     int64
	Failed    int64

	LastSyncAt  *time.Time
	LastReindex *ReindexReport
	Reindexing  bool
}

package domain

import "time"

// ImportStatus is the outcome of one import attempt
type ImportStatus string

// import statuses, "running" transitions to exactly one terminal status
const (
	ImportStatusRunning ImportStatus = "running"
	ImportStatusSuccess ImportStatus = "success"
	ImportStatusError   ImportStatus = "error"
	ImportStatusPartial ImportStatus = "partial"
)

// ImportLog is an immutable audit record of one import attempt. A row is
// created with status "running" before any network call and finalized once,
// never updated afterwards and never deleted by the engine.
type ImportLog struct {
	ID            int64
	SourceID      int64
	Status        ImportStatus
	ItemsImported int
	ItemsSkipped  int
	ErrorMessage  string
	StartedAt     time.Time
	CompletedAt   *time.Time
}

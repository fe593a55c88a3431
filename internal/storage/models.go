package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// IngestionRun is the persisted summary of one ingestion.
type IngestionRun struct {
	ID              string
	Filename        string
	RecordsIngested int
	RecordsCleaned  int
	Anomalies       int
	Duplicates      int
	SkippedRows     int
	Inserted        int
	Updated         int
	CompletedAt     time.Time
}

// IngestionTotals aggregates every recorded ingestion.
type IngestionTotals struct {
	Runs            int
	RecordsIngested int
	LastIngestion   *time.Time
}

// ValidationRun is the persisted summary of one validation run. Its logs
// live in quality_logs under the same id.
type ValidationRun struct {
	ID          string
	Total       int
	Clean       int
	Score       float64
	HasError    bool
	IssueCount  int
	TotalChecks int
	RanAt       time.Time
}

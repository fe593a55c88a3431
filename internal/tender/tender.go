// Package tender holds the canonical procurement records and the types shared
// by the ingestion, validation, search and health components.
package tender

import (
	"time"
)

// RawRecord is one CSV row keyed by canonical column name. Values are
// untrimmed and unvalidated.
type RawRecord struct {
	Line   int
	Fields map[string]string
}

// Get returns the raw value for a canonical column, or "" if absent.
func (r RawRecord) Get(column string) string {
	return r.Fields[column]
}

// Tender is the canonical, cleaned procurement record.
type Tender struct {
	ID            string     `json:"id"`
	TenderID      string     `json:"tender_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Organization  string     `json:"organization"`
	Category      string     `json:"category"`
	Location      string     `json:"location"`
	Value         float64    `json:"value"`
	Currency      string     `json:"currency"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
	Status        string     `json:"status"`
	Embedding     []float32  `json:"-"`
	Seq           int64      `json:"-"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// ValueAnomaly marks a record whose value could not be parsed and was
	// stored as zero.
	ValueAnomaly bool `json:"-"`
}

// Severity grades a quality finding.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// CheckType names a validation check.
type CheckType string

const (
	CheckMissingField      CheckType = "missing_field"
	CheckInvalidValue      CheckType = "invalid_value"
	CheckDuplicateTenderID CheckType = "duplicate_tender_id"
	CheckStaleDeadline     CheckType = "stale_deadline"
	CheckUnknownCategory   CheckType = "unknown_category"
	CheckUnknownCurrency   CheckType = "unknown_currency"
	CheckOutlierValue      CheckType = "outlier_value"
)

// QualityLog is one immutable finding of a validation run.
type QualityLog struct {
	ID          string         `json:"id"`
	RunID       string         `json:"run_id"`
	CheckType   CheckType      `json:"check_type"`
	Severity    Severity       `json:"severity"`
	Message     string         `json:"message"`
	Details     map[string]any `json:"details"`
	RecordCount int            `json:"record_count"`
	Timestamp   time.Time      `json:"created_at"`
}

// Status is the overall pipeline health.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusUnknown  Status = "unknown"
)

// HealthSnapshot is derived on demand and never persisted.
type HealthSnapshot struct {
	Status         Status         `json:"status"`
	TotalRecords   int            `json:"total_records"`
	CleanRecords   int            `json:"clean_records"`
	QualityScore   float64        `json:"quality_score"`
	LastIngestion  *time.Time     `json:"last_ingestion"`
	IndexedRecords int            `json:"indexed_records"`
	LastRun        *RunSummary    `json:"last_run,omitempty"`
	Errors         map[string]any `json:"errors"`
}

// RunSummary describes the most recent ingestion.
type RunSummary struct {
	RunID           string    `json:"run_id"`
	Filename        string    `json:"filename"`
	RecordsIngested int       `json:"records_ingested"`
	RecordsCleaned  int       `json:"records_cleaned"`
	Anomalies       int       `json:"anomalies"`
	Duplicates      int       `json:"duplicates"`
	CompletedAt     time.Time `json:"completed_at"`
}

// RowNote describes a per-row defect absorbed into ingestion statistics.
type RowNote struct {
	Line    int    `json:"line"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Row note kinds.
const (
	NoteMissingField = "missing_field"
	NoteMalformedRow = "malformed_row"
	NoteInvalidValue = "invalid_value"
	NoteInvalidDate  = "invalid_date"
	NoteDuplicate    = "duplicate"
)

// IngestionResult summarises one ingestion run.
type IngestionResult struct {
	RunID           string    `json:"run_id"`
	RecordsIngested int       `json:"records_ingested"`
	RecordsCleaned  int       `json:"records_cleaned"`
	Anomalies       int       `json:"anomalies"`
	Duplicates      int       `json:"duplicates"`
	SkippedRows     int       `json:"skipped_rows"`
	Inserted        int       `json:"inserted"`
	Updated         int       `json:"updated"`
	Notes           []RowNote `json:"notes,omitempty"`
	CompletedAt     time.Time `json:"completed_at"`
}

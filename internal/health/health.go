// Package health composes ingestion, validation and index state into a
// single pipeline status snapshot. It holds no state of its own.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kalambet/tenderscope/internal/quality"
	"github.com/kalambet/tenderscope/internal/storage"
	"github.com/kalambet/tenderscope/internal/tender"
)

// RunStore reads persisted ingestion and validation history.
type RunStore interface {
	IngestionTotals(ctx context.Context) (storage.IngestionTotals, error)
	LatestRun(ctx context.Context) (storage.IngestionRun, error)
	LatestValidation(ctx context.Context) (storage.ValidationRun, error)
}

// Dataset exposes the published tender snapshot and the number of records
// the search index held when it was published.
type Dataset interface {
	Published() (tenders []tender.Tender, indexed int)
}

// Aggregator builds HealthSnapshots on demand.
type Aggregator struct {
	runs      RunStore
	data      Dataset
	validator *quality.Validator
	threshold float64
	now       func() time.Time
}

// NewAggregator returns an Aggregator. A non-positive threshold selects
// quality.DefaultHealthyThreshold.
func NewAggregator(runs RunStore, data Dataset, threshold float64) *Aggregator {
	if threshold <= 0 {
		threshold = quality.DefaultHealthyThreshold
	}
	return &Aggregator{
		runs:      runs,
		data:      data,
		validator: quality.NewValidator(),
		threshold: threshold,
		now:       time.Now,
	}
}

// Snapshot returns the current pipeline health. Before any ingestion the
// status is unknown and every count is zero.
func (a *Aggregator) Snapshot(ctx context.Context) (tender.HealthSnapshot, error) {
	current, indexed := a.data.Published()
	snap := tender.HealthSnapshot{
		Status:         tender.StatusUnknown,
		IndexedRecords: indexed,
		Errors:         map[string]any{"issue_count": 0, "has_error": false},
	}

	tot, err := a.runs.IngestionTotals(ctx)
	if err != nil {
		return tender.HealthSnapshot{}, fmt.Errorf("reading ingestion totals: %w", err)
	}
	if tot.Runs == 0 {
		return snap, nil
	}

	snap.TotalRecords = tot.RecordsIngested
	snap.CleanRecords = len(current)
	snap.LastIngestion = tot.LastIngestion

	last, err := a.runs.LatestRun(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return tender.HealthSnapshot{}, fmt.Errorf("reading latest ingestion: %w", err)
	default:
		snap.LastRun = &tender.RunSummary{
			RunID:           last.ID,
			Filename:        last.Filename,
			RecordsIngested: last.RecordsIngested,
			RecordsCleaned:  last.RecordsCleaned,
			Anomalies:       last.Anomalies,
			Duplicates:      last.Duplicates,
			CompletedAt:     last.CompletedAt,
		}
	}

	score, hasError, issues, err := a.quality(ctx, current, tot.LastIngestion)
	if err != nil {
		return tender.HealthSnapshot{}, err
	}
	snap.QualityScore = score
	snap.Status = quality.Status(score, hasError, true, a.threshold)
	snap.Errors["issue_count"] = issues
	snap.Errors["has_error"] = hasError
	return snap, nil
}

// quality uses the latest persisted validation run unless it predates the
// last ingestion, in which case the checks are evaluated without persisting.
func (a *Aggregator) quality(ctx context.Context, current []tender.Tender, lastIngestion *time.Time) (float64, bool, int, error) {
	v, err := a.runs.LatestValidation(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return 0, false, 0, fmt.Errorf("reading latest validation: %w", err)
	case lastIngestion == nil || !v.RanAt.Before(*lastIngestion):
		return v.Score, v.HasError, v.IssueCount, nil
	}

	rep := a.validator.Run(current, a.now())
	return rep.Score, rep.HasError, rep.IssueCount(), nil
}

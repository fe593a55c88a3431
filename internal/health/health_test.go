package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/tenderscope/internal/storage"
	"github.com/kalambet/tenderscope/internal/tender"
)

type fakeRuns struct {
	totals     storage.IngestionTotals
	last       *storage.IngestionRun
	validation *storage.ValidationRun
	err        error
}

func (f *fakeRuns) IngestionTotals(context.Context) (storage.IngestionTotals, error) {
	return f.totals, f.err
}

func (f *fakeRuns) LatestRun(context.Context) (storage.IngestionRun, error) {
	if f.last == nil {
		return storage.IngestionRun{}, storage.ErrNotFound
	}
	return *f.last, nil
}

func (f *fakeRuns) LatestValidation(context.Context) (storage.ValidationRun, error) {
	if f.validation == nil {
		return storage.ValidationRun{}, storage.ErrNotFound
	}
	return *f.validation, nil
}

type fakeData struct {
	tenders []tender.Tender
	indexed int
}

func (f fakeData) Published() ([]tender.Tender, int) { return f.tenders, f.indexed }

func indexedData(ts ...tender.Tender) fakeData {
	return fakeData{tenders: ts, indexed: len(ts)}
}

func cleanTender(id string) tender.Tender {
	return tender.Tender{TenderID: id, Organization: "o", Category: "water", Location: "l", Value: 1, Currency: "USD"}
}

func TestSnapshot_BeforeIngestion(t *testing.T) {
	a := NewAggregator(&fakeRuns{}, fakeData{}, 0)
	snap, err := a.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tender.StatusUnknown, snap.Status)
	assert.Zero(t, snap.TotalRecords)
	assert.Zero(t, snap.CleanRecords)
	assert.Zero(t, snap.IndexedRecords)
	assert.Zero(t, snap.QualityScore)
	assert.Nil(t, snap.LastIngestion)
	assert.Equal(t, 0, snap.Errors["issue_count"])
	assert.Nil(t, snap.LastRun)
}

func TestSnapshot_UsesLatestValidation(t *testing.T) {
	last := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	runs := &fakeRuns{
		totals:     storage.IngestionTotals{Runs: 2, RecordsIngested: 7, LastIngestion: &last},
		validation: &storage.ValidationRun{Score: 80, IssueCount: 3, RanAt: last.Add(time.Second)},
	}
	a := NewAggregator(runs, indexedData(cleanTender("A"), cleanTender("B")), 90)

	snap, err := a.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, snap.TotalRecords)
	assert.Equal(t, 2, snap.CleanRecords)
	assert.Equal(t, 2, snap.IndexedRecords)
	assert.Equal(t, 80.0, snap.QualityScore)
	assert.Equal(t, tender.StatusDegraded, snap.Status)
	assert.Equal(t, 3, snap.Errors["issue_count"])
	require.NotNil(t, snap.LastIngestion)
	assert.True(t, last.Equal(*snap.LastIngestion))
}

func TestSnapshot_RecomputesWhenValidationIsStale(t *testing.T) {
	last := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	runs := &fakeRuns{
		totals:     storage.IngestionTotals{Runs: 1, RecordsIngested: 2, LastIngestion: &last},
		validation: &storage.ValidationRun{Score: 10, HasError: true, RanAt: last.Add(-time.Hour)},
	}
	a := NewAggregator(runs, indexedData(cleanTender("A"), cleanTender("B")), 90)

	snap, err := a.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100.0, snap.QualityScore)
	assert.Equal(t, tender.StatusHealthy, snap.Status)
	assert.Equal(t, false, snap.Errors["has_error"])
}

func TestSnapshot_RecomputesWithoutAnyValidation(t *testing.T) {
	last := time.Now()
	bad := cleanTender("B")
	bad.Value = 0
	runs := &fakeRuns{totals: storage.IngestionTotals{Runs: 1, RecordsIngested: 2, LastIngestion: &last}}
	a := NewAggregator(runs, indexedData(cleanTender("A"), bad), 90)

	snap, err := a.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50.0, snap.QualityScore)
	assert.Equal(t, tender.StatusDegraded, snap.Status)
	assert.Equal(t, 1, snap.Errors["issue_count"])
}

func TestSnapshot_StoreError(t *testing.T) {
	a := NewAggregator(&fakeRuns{err: errors.New("disk gone")}, fakeData{}, 90)
	_, err := a.Snapshot(context.Background())
	assert.ErrorContains(t, err, "disk gone")
}

func TestSnapshot_ReportsLastRun(t *testing.T) {
	last := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	runs := &fakeRuns{
		totals:     storage.IngestionTotals{Runs: 2, RecordsIngested: 9, LastIngestion: &last},
		last:       &storage.IngestionRun{ID: "r2", Filename: "march.csv", RecordsIngested: 4, RecordsCleaned: 3, Anomalies: 1, CompletedAt: last},
		validation: &storage.ValidationRun{Score: 100, RanAt: last.Add(time.Second)},
	}
	a := NewAggregator(runs, indexedData(cleanTender("A"), cleanTender("B"), cleanTender("C")), 90)

	snap, err := a.Snapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.LastRun)
	assert.Equal(t, "r2", snap.LastRun.RunID)
	assert.Equal(t, "march.csv", snap.LastRun.Filename)
	assert.Equal(t, 4, snap.LastRun.RecordsIngested)
	assert.Equal(t, 3, snap.LastRun.RecordsCleaned)
	assert.Equal(t, 1, snap.LastRun.Anomalies)
}


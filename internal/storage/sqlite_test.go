package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/tenderscope/internal/tender"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTender(id string, seq int64) tender.Tender {
	now := time.Date(2026, 1, 2, 3, 4, 5, 600, time.UTC)
	deadline := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return tender.Tender{
		ID:           "uuid-" + id,
		TenderID:     id,
		Title:        "Title " + id,
		Description:  "Description " + id,
		Organization: "Ministry",
		Category:     "construction",
		Location:     "Lagos",
		Value:        1250.5,
		Currency:     "NGN",
		Deadline:     &deadline,
		Status:       "Open",
		Embedding:    []float32{0.25, -0.5, 1},
		Seq:          seq,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func commit(t *testing.T, s *Store, runID string, tenders ...tender.Tender) {
	t.Helper()
	require.NoError(t, s.CommitIngestion(context.Background(), tenders, IngestionRun{ID: runID, CompletedAt: time.Now()}))
}

func byTenderID(t *testing.T, s *Store, id string) tender.Tender {
	t.Helper()
	all, err := s.AllTenders(context.Background())
	require.NoError(t, err)
	for _, tn := range all {
		if tn.TenderID == id {
			return tn
		}
	}
	t.Fatalf("tender %s not stored", id)
	return tender.Tender{}
}

func TestMigrations_IdempotentAcrossOpens(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	require.NoError(t, err)
	v1, err := s1.AppliedMigrations()
	require.NoError(t, err)
	s1.Close()

	s2, err := Open(dir)
	require.NoError(t, err)
	defer s2.Close()
	v2, err := s2.AppliedMigrations()
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
}

func TestMigrations_AscendingOrder(t *testing.T) {
	versions, err := openTestStore(t).AppliedMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, versions)
	assert.IsIncreasing(t, versions)
}

func TestMigrations_IndexesExist(t *testing.T) {
	s := openTestStore(t)
	for _, idx := range []string{"idx_tenders_seq", "idx_ingestion_runs_completed", "idx_validation_runs_ran_at", "idx_quality_logs_run", "idx_quality_logs_created"} {
		var count int
		require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count))
		assert.Equal(t, 1, count, "index %s", idx)
	}
}

func TestCommitIngestion_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	want := sampleTender("T-1", 1)
	commit(t, s, "r1", want)

	got := byTenderID(t, s, "T-1")
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Value, got.Value)
	assert.Equal(t, want.Currency, got.Currency)
	require.NotNil(t, got.Deadline)
	assert.True(t, got.Deadline.Equal(*want.Deadline))
	assert.Nil(t, got.PublishedDate)
	assert.True(t, got.CreatedAt.Equal(want.CreatedAt))
	assert.Equal(t, want.Embedding, got.Embedding)
}

func TestCommitIngestion_UpsertKeepsIdentity(t *testing.T) {
	s := openTestStore(t)
	first := sampleTender("T-1", 1)
	commit(t, s, "r1", first)

	second := sampleTender("T-1", 9)
	second.ID = "other-uuid"
	second.Value = 99
	second.UpdatedAt = first.UpdatedAt.Add(time.Hour)
	commit(t, s, "r2", second)

	all, err := s.AllTenders(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, int64(1), all[0].Seq)
	assert.Equal(t, 99.0, all[0].Value)
	assert.True(t, all[0].UpdatedAt.Equal(second.UpdatedAt))
}

func TestCommitIngestion_RejectsNegativeValue(t *testing.T) {
	s := openTestStore(t)
	bad := sampleTender("T-1", 1)
	bad.Value = -1
	err := s.CommitIngestion(context.Background(), []tender.Tender{bad}, IngestionRun{ID: "r1", CompletedAt: time.Now()})
	require.Error(t, err)

	tot, err := s.IngestionTotals(context.Background())
	require.NoError(t, err)
	assert.Zero(t, tot.Runs)
}

func TestAllTenders_OrderedBySeq(t *testing.T) {
	s := openTestStore(t)
	commit(t, s, "r1", sampleTender("C", 3), sampleTender("A", 1), sampleTender("B", 2))

	all, err := s.AllTenders(context.Background())
	require.NoError(t, err)
	ids := make([]string, len(all))
	for i, tn := range all {
		ids[i] = tn.TenderID
	}
	assert.Equal(t, []string{"A", "B", "C"}, ids)
}

func TestIngestionTotals_AndLatestRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tot, err := s.IngestionTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, IngestionTotals{}, tot)
	_, err = s.LatestRun(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	runs := []IngestionRun{
		{ID: "r1", Filename: "a.csv", RecordsIngested: 3, RecordsCleaned: 2, CompletedAt: base},
		{ID: "r2", Filename: "b.csv", RecordsIngested: 5, RecordsCleaned: 5, Anomalies: 1, CompletedAt: base.Add(500 * time.Millisecond)},
	}
	for i, r := range runs {
		require.NoError(t, s.CommitIngestion(ctx, []tender.Tender{sampleTender(r.ID, int64(i+1))}, r))
	}

	tot, err = s.IngestionTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, tot.Runs)
	assert.Equal(t, 8, tot.RecordsIngested)
	require.NotNil(t, tot.LastIngestion)
	assert.True(t, tot.LastIngestion.Equal(runs[1].CompletedAt))

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "r2", latest.ID)
	assert.Equal(t, "b.csv", latest.Filename)
	assert.Equal(t, 1, latest.Anomalies)
	assert.True(t, latest.CompletedAt.Equal(runs[1].CompletedAt))
}

func TestCommitIngestion_RollsBackOnRunFailure(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	commit(t, s, "dup")

	// The run id is reused, so the run insert fails after the tender insert.
	err := s.CommitIngestion(ctx, []tender.Tender{sampleTender("T-1", 1)}, IngestionRun{ID: "dup", CompletedAt: time.Now()})
	require.Error(t, err)

	all, err := s.AllTenders(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestQualityLogs_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LatestValidation(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	older := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	newer := older.Add(time.Minute)

	require.NoError(t, s.AppendQualityLogs(ctx, ValidationRun{ID: "v1", Total: 4, Clean: 4, Score: 100, RanAt: older}, []tender.QualityLog{
		{ID: "l0", RunID: "v1", CheckType: tender.CheckStaleDeadline, Severity: tender.SeverityInfo, Message: "old", RecordCount: 1, Timestamp: older},
	}))
	require.NoError(t, s.AppendQualityLogs(ctx, ValidationRun{ID: "v2", Total: 4, Clean: 3, Score: 75, HasError: true, IssueCount: 3, TotalChecks: 2, RanAt: newer}, []tender.QualityLog{
		{ID: "l1", RunID: "v2", CheckType: tender.CheckMissingField, Severity: tender.SeverityWarning, Message: "m",
			Details: map[string]any{"tender_ids": []string{"A"}}, RecordCount: 1, Timestamp: newer},
		{ID: "l2", RunID: "v2", CheckType: tender.CheckDuplicateTenderID, Severity: tender.SeverityError, Message: "d",
			RecordCount: 2, Timestamp: newer},
	}))

	logs, err := s.ListQualityLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "l1", logs[0].ID)
	assert.Equal(t, "l2", logs[1].ID)
	assert.Equal(t, "l0", logs[2].ID)
	assert.Equal(t, []any{"A"}, logs[0].Details["tender_ids"])
	assert.Equal(t, tender.SeverityError, logs[1].Severity)

	limited, err := s.ListQualityLogs(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	v, err := s.LatestValidation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", v.ID)
	assert.True(t, v.HasError)
	assert.Equal(t, 75.0, v.Score)
	assert.Equal(t, 2, v.TotalChecks)
}

func TestReset_ClearsDataKeepsSchema(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	commit(t, s, "r1", sampleTender("T-1", 1))
	require.NoError(t, s.AppendQualityLogs(ctx, ValidationRun{ID: "v1", RanAt: time.Now()}, nil))

	require.NoError(t, s.Reset(ctx))

	all, err := s.AllTenders(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	tot, err := s.IngestionTotals(ctx)
	require.NoError(t, err)
	assert.Zero(t, tot.Runs)
	_, err = s.LatestValidation(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
	v, err := s.AppliedMigrations()
	require.NoError(t, err)
	assert.NotEmpty(t, v)
}

func TestFloat32Codec(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3e-7}
	out, err := decodeFloat32s(encodeFloat32s(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeFloat32s([]byte{1, 2, 3})
	assert.Error(t, err)
}

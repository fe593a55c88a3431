package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kalambet/tenderscope/internal/tender"
)

func recordIngestion(ctx context.Context, ex execer, run IngestionRun) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO ingestion_runs (id, filename, records_ingested, records_cleaned, anomalies, duplicates,
			skipped_rows, inserted, updated, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Filename, run.RecordsIngested, run.RecordsCleaned, run.Anomalies, run.Duplicates,
		run.SkippedRows, run.Inserted, run.Updated, formatTime(run.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("recording ingestion %s: %w", run.ID, err)
	}
	return nil
}

// LatestRun returns the most recently completed ingestion.
func (s *Store) LatestRun(ctx context.Context) (IngestionRun, error) {
	var r IngestionRun
	var completedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, filename, records_ingested, records_cleaned, anomalies, duplicates, skipped_rows,
			inserted, updated, completed_at
		FROM ingestion_runs ORDER BY completed_at DESC, rowid DESC LIMIT 1`,
	).Scan(&r.ID, &r.Filename, &r.RecordsIngested, &r.RecordsCleaned, &r.Anomalies, &r.Duplicates,
		&r.SkippedRows, &r.Inserted, &r.Updated, &completedAt)
	if err == sql.ErrNoRows {
		return IngestionRun{}, ErrNotFound
	}
	if err != nil {
		return IngestionRun{}, fmt.Errorf("reading latest ingestion: %w", err)
	}
	if r.CompletedAt, err = parseTime(completedAt); err != nil {
		return IngestionRun{}, fmt.Errorf("parsing completed_at: %w", err)
	}
	return r, nil
}

// IngestionTotals sums all recorded ingestions.
func (s *Store) IngestionTotals(ctx context.Context) (IngestionTotals, error) {
	var tot IngestionTotals
	var last sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(records_ingested), 0), MAX(completed_at) FROM ingestion_runs`,
	).Scan(&tot.Runs, &tot.RecordsIngested, &last)
	if err != nil {
		return IngestionTotals{}, fmt.Errorf("summing ingestions: %w", err)
	}
	if tot.LastIngestion, err = parseNullTime(last); err != nil {
		return IngestionTotals{}, fmt.Errorf("parsing last ingestion: %w", err)
	}
	return tot, nil
}

// AppendQualityLogs stores a validation run and its logs in one transaction.
// Logs are never updated or deleted outside Reset.
func (s *Store) AppendQualityLogs(ctx context.Context, run ValidationRun, logs []tender.QualityLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning quality log transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO validation_runs (id, total_records, clean_records, quality_score, has_error, issue_count, total_checks, ran_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Total, run.Clean, run.Score, run.HasError, run.IssueCount, run.TotalChecks, formatTime(run.RanAt),
	); err != nil {
		return fmt.Errorf("recording validation run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quality_logs (id, run_id, check_type, severity, message, details, record_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing quality log insert: %w", err)
	}
	defer stmt.Close()

	for _, l := range logs {
		details, err := json.Marshal(l.Details)
		if err != nil {
			return fmt.Errorf("encoding details for %s: %w", l.CheckType, err)
		}
		if _, err := stmt.ExecContext(ctx, l.ID, l.RunID, string(l.CheckType), string(l.Severity), l.Message,
			string(details), l.RecordCount, formatTime(l.Timestamp)); err != nil {
			return fmt.Errorf("inserting quality log %s: %w", l.ID, err)
		}
	}
	return tx.Commit()
}

// ListQualityLogs returns up to limit logs, newest run first. Within a run
// logs keep the order they were appended in.
func (s *Store) ListQualityLogs(ctx context.Context, limit int) ([]tender.QualityLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, check_type, severity, message, details, record_count, created_at
		FROM quality_logs ORDER BY created_at DESC, rowid ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying quality logs: %w", err)
	}
	defer rows.Close()

	var out []tender.QualityLog
	for rows.Next() {
		var l tender.QualityLog
		var checkType, severity, details, createdAt string
		if err := rows.Scan(&l.ID, &l.RunID, &checkType, &severity, &l.Message, &details, &l.RecordCount, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning quality log: %w", err)
		}
		l.CheckType = tender.CheckType(checkType)
		l.Severity = tender.Severity(severity)
		if err := json.Unmarshal([]byte(details), &l.Details); err != nil {
			return nil, fmt.Errorf("decoding details for %s: %w", l.ID, err)
		}
		if l.Timestamp, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", l.ID, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// LatestValidation returns the most recent validation run.
func (s *Store) LatestValidation(ctx context.Context) (ValidationRun, error) {
	var r ValidationRun
	var ranAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, total_records, clean_records, quality_score, has_error, issue_count, total_checks, ran_at
		FROM validation_runs ORDER BY ran_at DESC, rowid DESC LIMIT 1`,
	).Scan(&r.ID, &r.Total, &r.Clean, &r.Score, &r.HasError, &r.IssueCount, &r.TotalChecks, &ranAt)
	if err == sql.ErrNoRows {
		return ValidationRun{}, ErrNotFound
	}
	if err != nil {
		return ValidationRun{}, fmt.Errorf("reading latest validation: %w", err)
	}
	if r.RanAt, err = parseTime(ranAt); err != nil {
		return ValidationRun{}, fmt.Errorf("parsing ran_at: %w", err)
	}
	return r, nil
}

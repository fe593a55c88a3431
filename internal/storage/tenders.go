package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kalambet/tenderscope/internal/tender"
)

const tenderColumns = `id, tender_id, seq, title, description, organization, category, location,
	value, value_anomaly, currency, deadline, published_date, status, embedding, created_at, updated_at`

// CommitIngestion upserts tenders and records run in a single transaction,
// so a failed ingestion leaves no trace.
func (s *Store) CommitIngestion(ctx context.Context, tenders []tender.Tender, run IngestionRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning ingestion transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertTenders(ctx, tx, tenders); err != nil {
		return err
	}
	if err := recordIngestion(ctx, tx, run); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing ingestion %s: %w", run.ID, err)
	}
	return nil
}

func upsertTenders(ctx context.Context, ex execer, tenders []tender.Tender) error {
	stmt, err := ex.PrepareContext(ctx, `
		INSERT INTO tenders (`+tenderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tender_id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			organization = excluded.organization,
			category = excluded.category,
			location = excluded.location,
			value = excluded.value,
			value_anomaly = excluded.value_anomaly,
			currency = excluded.currency,
			deadline = excluded.deadline,
			published_date = excluded.published_date,
			status = excluded.status,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing tender upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tenders {
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.TenderID, t.Seq, t.Title, t.Description, t.Organization, t.Category, t.Location,
			t.Value, t.ValueAnomaly, t.Currency, formatNullTime(t.Deadline), formatNullTime(t.PublishedDate),
			t.Status, encodeFloat32s(t.Embedding), formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
		); err != nil {
			return fmt.Errorf("upserting tender %s: %w", t.TenderID, err)
		}
	}
	return nil
}

// AllTenders returns every tender ordered by seq.
func (s *Store) AllTenders(ctx context.Context) ([]tender.Tender, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tenderColumns+` FROM tenders ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying tenders: %w", err)
	}
	defer rows.Close()

	var out []tender.Tender
	for rows.Next() {
		t, err := scanTender(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTender(sc scanner) (tender.Tender, error) {
	var t tender.Tender
	var deadline, published sql.NullString
	var blob []byte
	var createdAt, updatedAt string
	if err := sc.Scan(&t.ID, &t.TenderID, &t.Seq, &t.Title, &t.Description, &t.Organization, &t.Category,
		&t.Location, &t.Value, &t.ValueAnomaly, &t.Currency, &deadline, &published, &t.Status, &blob,
		&createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return t, err
		}
		return t, fmt.Errorf("scanning tender: %w", err)
	}

	var err error
	if t.Embedding, err = decodeFloat32s(blob); err != nil {
		return t, fmt.Errorf("decoding embedding for %s: %w", t.TenderID, err)
	}
	if t.Deadline, err = parseNullTime(deadline); err != nil {
		return t, fmt.Errorf("parsing deadline for %s: %w", t.TenderID, err)
	}
	if t.PublishedDate, err = parseNullTime(published); err != nil {
		return t, fmt.Errorf("parsing published_date for %s: %w", t.TenderID, err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return t, fmt.Errorf("parsing created_at for %s: %w", t.TenderID, err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return t, fmt.Errorf("parsing updated_at for %s: %w", t.TenderID, err)
	}
	return t, nil
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32s deserializes little-endian bytes into a new float32 slice.
// Returns an error if the byte slice length is not a multiple of 4.
func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Package pipeline owns the canonical tender dataset and orchestrates
// ingestion, validation, search and health over it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/tenderscope/internal/cleaning"
	"github.com/kalambet/tenderscope/internal/embedding"
	"github.com/kalambet/tenderscope/internal/health"
	"github.com/kalambet/tenderscope/internal/parser"
	"github.com/kalambet/tenderscope/internal/quality"
	"github.com/kalambet/tenderscope/internal/search"
	"github.com/kalambet/tenderscope/internal/storage"
	"github.com/kalambet/tenderscope/internal/tender"
)

// Options tunes a Service. Zero values select defaults.
type Options struct {
	ChunkSize        int
	HealthyThreshold float64
	Logger           *slog.Logger
}

// Service is the single owner of the dataset and the search index.
// Ingestions are serialized; a second concurrent ingestion is rejected with
// tender.ErrIngestionInProgress. Reads observe the last published snapshot.
type Service struct {
	store     *storage.Store
	cleaner   *cleaning.Engine
	index     *search.Index
	search    *search.Engine
	validator *quality.Validator
	health    *health.Aggregator
	chunkSize int
	logger    *slog.Logger
	now       func() time.Time

	ingestMu   sync.Mutex
	validateMu sync.Mutex
	data       atomic.Pointer[dataset]
}

// New wires a Service over store using e for both ingestion and queries.
// Call Start before serving traffic.
func New(store *storage.Store, e embedding.Embedder, opts Options) *Service {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = cleaning.DefaultChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	idx := search.NewIndex(e.Dimensions())
	s := &Service{
		store:     store,
		cleaner:   cleaning.NewEngine(e, opts.ChunkSize),
		index:     idx,
		search:    search.NewEngine(idx, e),
		validator: quality.NewValidator(),
		chunkSize: opts.ChunkSize,
		logger:    opts.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	s.health = health.NewAggregator(store, s, opts.HealthyThreshold)
	s.data.Store(emptyDataset)
	return s
}

// Start loads the persisted dataset and rebuilds the index from the stored
// embeddings.
func (s *Service) Start(ctx context.Context) error {
	all, err := s.store.AllTenders(ctx)
	if err != nil {
		return fmt.Errorf("loading tenders: %w", err)
	}
	if err := s.index.Load(all); err != nil {
		return fmt.Errorf("loading index (re-ingest or reset after changing the embedding provider): %w", err)
	}
	d := newDataset(all)
	d.indexed = s.index.Stats().Count
	s.data.Store(d)
	s.logger.Info("dataset loaded", "tenders", len(all), "dimensions", s.index.Dimensions())
	return nil
}

// Current returns the canonical tenders of the published snapshot. The
// slice must not be modified.
func (s *Service) Current() []tender.Tender {
	return s.data.Load().tenders
}

// Published returns the canonical tenders together with the index size
// published with them.
func (s *Service) Published() ([]tender.Tender, int) {
	d := s.data.Load()
	return d.tenders, d.indexed
}

// Ingest parses, cleans, embeds and upserts a CSV upload, then runs a
// validation pass. Nothing is committed when parsing or embedding fails.
func (s *Service) Ingest(ctx context.Context, r io.Reader, filename string) (tender.IngestionResult, error) {
	if !s.ingestMu.TryLock() {
		return tender.IngestionResult{}, tender.ErrIngestionInProgress
	}
	defer s.ingestMu.Unlock()

	start := time.Now()
	rd, err := parser.New(r)
	if err != nil {
		return tender.IngestionResult{}, err
	}

	acc := cleaning.NewAccumulator()
	for n := 1; ; n++ {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return tender.IngestionResult{}, err
		}
		acc.Add(rec)
		if n%s.chunkSize == 0 {
			if err := ctx.Err(); err != nil {
				return tender.IngestionResult{}, err
			}
			s.logger.Debug("ingest progress", "file", filename, "rows", rd.Rows())
		}
	}
	acc.AddNotes(rd.Notes())
	batch := acc.Batch()

	cur := s.data.Load()
	if err := s.embed(ctx, cur, batch.Tenders); err != nil {
		return tender.IngestionResult{}, err
	}

	now := s.now()
	next, changed, inserted, updated := cur.merge(batch.Tenders, now)
	staged, err := s.index.Stage(changed)
	if err != nil {
		return tender.IngestionResult{}, fmt.Errorf("staging index update: %w", err)
	}
	next.indexed = staged.Count()

	run := storage.IngestionRun{
		ID:              uuid.New().String(),
		Filename:        filename,
		RecordsIngested: rd.Rows(),
		RecordsCleaned:  len(batch.Tenders),
		Anomalies:       batch.Anomalies,
		Duplicates:      batch.Duplicates,
		SkippedRows:     rd.Skipped(),
		Inserted:        inserted,
		Updated:         updated,
		CompletedAt:     now,
	}
	if err := s.store.CommitIngestion(ctx, changed, run); err != nil {
		return tender.IngestionResult{}, fmt.Errorf("committing ingestion: %w", err)
	}

	s.data.Store(next)
	staged.Publish()

	s.logger.Info("ingestion complete",
		"run_id", run.ID,
		"file", filename,
		"rows", run.RecordsIngested,
		"cleaned", run.RecordsCleaned,
		"inserted", inserted,
		"updated", updated,
		"anomalies", run.Anomalies,
		"duplicates", run.Duplicates,
		"duration", time.Since(start),
	)

	if _, err := s.Validate(ctx); err != nil {
		s.logger.Warn("post-ingestion validation failed", "run_id", run.ID, "error", err)
	}

	return tender.IngestionResult{
		RunID:           run.ID,
		RecordsIngested: run.RecordsIngested,
		RecordsCleaned:  run.RecordsCleaned,
		Anomalies:       run.Anomalies,
		Duplicates:      run.Duplicates,
		SkippedRows:     run.SkippedRows,
		Inserted:        inserted,
		Updated:         updated,
		Notes:           batch.Notes,
		CompletedAt:     now,
	}, nil
}

// embed fills embeddings for batch, reusing the stored vector when a
// tender's description is unchanged.
func (s *Service) embed(ctx context.Context, cur *dataset, batch []tender.Tender) error {
	dims := s.cleaner.Dimensions()
	var pending []int
	for i, t := range batch {
		if old, ok := cur.get(t.TenderID); ok && old.Description == t.Description && len(old.Embedding) == dims {
			batch[i].Embedding = old.Embedding
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return nil
	}

	todo := make([]tender.Tender, len(pending))
	for j, i := range pending {
		todo[j] = batch[i]
	}
	if err := s.cleaner.Embed(ctx, todo); err != nil {
		return err
	}
	for j, i := range pending {
		batch[i].Embedding = todo[j].Embedding
	}
	return nil
}

// Validate runs every quality check over the published snapshot and appends
// the resulting logs.
func (s *Service) Validate(ctx context.Context) (quality.Report, error) {
	s.validateMu.Lock()
	defer s.validateMu.Unlock()

	rep := s.validator.Run(s.Current(), s.now())
	run := storage.ValidationRun{
		ID:          rep.RunID,
		Total:       rep.Total,
		Clean:       rep.Clean,
		Score:       rep.Score,
		HasError:    rep.HasError,
		IssueCount:  rep.IssueCount(),
		TotalChecks: len(rep.Logs),
		RanAt:       rep.RanAt,
	}
	if err := s.store.AppendQualityLogs(ctx, run, rep.Logs); err != nil {
		return quality.Report{}, fmt.Errorf("saving validation run: %w", err)
	}
	s.logger.Info("validation complete", "run_id", rep.RunID, "score", rep.Score, "checks_failed", len(rep.Logs))
	return rep, nil
}

// Tenders returns up to limit tenders, most recently updated first.
func (s *Service) Tenders(_ context.Context, limit int) ([]tender.Tender, error) {
	if limit <= 0 {
		return nil, tender.InvalidArgument("limit must be positive, got %d", limit)
	}
	cur := s.Current()
	out := make([]tender.Tender, len(cur))
	copy(out, cur)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].Seq > out[j].Seq
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// QualityLogs returns up to limit logs, newest first.
func (s *Service) QualityLogs(ctx context.Context, limit int) ([]tender.QualityLog, error) {
	if limit <= 0 {
		return nil, tender.InvalidArgument("limit must be positive, got %d", limit)
	}
	return s.store.ListQualityLogs(ctx, limit)
}

// Search ranks the indexed tenders against query.
func (s *Service) Search(ctx context.Context, query string, k int) ([]search.Result, error) {
	return s.search.Search(ctx, query, k)
}

// Health returns the current pipeline health snapshot.
func (s *Service) Health(ctx context.Context) (tender.HealthSnapshot, error) {
	return s.health.Snapshot(ctx)
}

// Reset deletes every tender, run and log and empties the index. It is
// rejected while an ingestion is running.
func (s *Service) Reset(ctx context.Context) error {
	if !s.ingestMu.TryLock() {
		return tender.ErrIngestionInProgress
	}
	defer s.ingestMu.Unlock()
	s.validateMu.Lock()
	defer s.validateMu.Unlock()

	if err := s.store.Reset(ctx); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}
	s.data.Store(emptyDataset)
	s.index.Reset()
	s.logger.Info("dataset reset")
	return nil
}

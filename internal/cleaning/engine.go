package cleaning

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/tenderscope/internal/embedding"
	"github.com/kalambet/tenderscope/internal/parser"
	"github.com/kalambet/tenderscope/internal/tender"
)

// DefaultChunkSize bounds how many descriptions are embedded per call.
const DefaultChunkSize = 500

// Batch is the output of a cleaning pass.
type Batch struct {
	Tenders    []tender.Tender
	Anomalies  int
	Duplicates int
	Notes      []tender.RowNote
}

// Engine normalises, deduplicates and embeds raw rows.
type Engine struct {
	embedder  embedding.Embedder
	chunkSize int
}

// NewEngine returns an Engine that embeds with e in chunks of chunkSize.
// A non-positive chunkSize selects DefaultChunkSize.
func NewEngine(e embedding.Embedder, chunkSize int) *Engine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Engine{embedder: e, chunkSize: chunkSize}
}

// Dimensions returns the vector length the engine produces.
func (e *Engine) Dimensions() int { return e.embedder.Dimensions() }

// Clean runs the full pass over already-parsed rows.
func (e *Engine) Clean(ctx context.Context, records []tender.RawRecord) (Batch, error) {
	acc := NewAccumulator()
	for _, r := range records {
		acc.Add(r)
	}
	b := acc.Batch()
	if err := e.Embed(ctx, b.Tenders); err != nil {
		return Batch{}, err
	}
	return b, nil
}

// Embed fills Embedding for every tender from its description. Vectors of
// the wrong length fail the whole call with a *tender.DimensionMismatchError.
func (e *Engine) Embed(ctx context.Context, tenders []tender.Tender) error {
	want := e.embedder.Dimensions()
	for start := 0; start < len(tenders); start += e.chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+e.chunkSize, len(tenders))
		texts := make([]string, 0, end-start)
		for _, t := range tenders[start:end] {
			texts = append(texts, t.Description)
		}
		vecs, err := embedding.EmbedAll(ctx, e.embedder, texts)
		if err != nil {
			return fmt.Errorf("embedding rows %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("embedding rows %d-%d: got %d vectors for %d texts", start, end-1, len(vecs), len(texts))
		}
		for i, v := range vecs {
			if len(v) != want {
				return &tender.DimensionMismatchError{Want: want, Got: len(v)}
			}
			tenders[start+i].Embedding = v
		}
	}
	return nil
}

// Accumulator normalises rows one at a time and deduplicates them, so a
// caller can stream a parser into it without buffering raw rows.
type Accumulator struct {
	dedup     *Deduper
	anomalies int
	notes     []tender.RowNote
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{dedup: NewDeduper()}
}

// Add normalises and records one row.
func (a *Accumulator) Add(r tender.RawRecord) {
	t, notes := Normalize(r)
	if len(notes) > 0 {
		a.anomalies += len(notes)
		a.notes = append(a.notes, notes...)
	}
	explicit := strings.TrimSpace(r.Get(parser.ColTenderID)) != ""
	a.dedup.Add(t, r.Line, explicit)
}

// AddNotes counts defects reported upstream, such as rows the parser dropped.
func (a *Accumulator) AddNotes(notes []tender.RowNote) {
	a.anomalies += len(notes)
	a.notes = append(a.notes, notes...)
}

// Batch returns the deduplicated tenders and statistics gathered so far.
func (a *Accumulator) Batch() Batch {
	tenders, dups := a.dedup.Result()
	notes := append(append([]tender.RowNote(nil), a.notes...), dups...)
	return Batch{
		Tenders:    tenders,
		Anomalies:  a.anomalies,
		Duplicates: len(dups),
		Notes:      notes,
	}
}

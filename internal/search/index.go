// Package search holds the in-memory vector index over tender descriptions
// and answers top-K similarity queries against it.
package search

import (
	"sync"
	"sync/atomic"

	"github.com/kalambet/tenderscope/internal/tender"
)

type entry struct {
	tender tender.Tender
	norm   float64
}

// snapshot is immutable once published.
type snapshot struct {
	entries []entry
	byID    map[string]int
	dims    int
}

var emptySnapshot = &snapshot{byID: map[string]int{}}

// Index is a copy-on-write vector index. Readers load the current snapshot
// without locking; writers build a new snapshot and swap it in.
type Index struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
	dims int
}

// NewIndex returns an empty index that accepts vectors of length dims.
func NewIndex(dims int) *Index {
	idx := &Index{dims: dims}
	idx.snap.Store(emptySnapshot)
	return idx
}

// Stats describes the published snapshot.
type Stats struct {
	Count      int `json:"count"`
	Dimensions int `json:"dimensions"`
}

// Stats returns the size of the current snapshot.
func (idx *Index) Stats() Stats {
	s := idx.snap.Load()
	return Stats{Count: len(s.entries), Dimensions: idx.dims}
}

// Dimensions returns the vector length the index accepts.
func (idx *Index) Dimensions() int { return idx.dims }

// Load replaces the index contents with tenders.
func (idx *Index) Load(tenders []tender.Tender) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	next := &snapshot{
		entries: make([]entry, 0, len(tenders)),
		byID:    make(map[string]int, len(tenders)),
		dims:    idx.dims,
	}
	if err := next.add(tenders); err != nil {
		return err
	}
	idx.snap.Store(next)
	return nil
}

// Batch is an index update that has been built but is not yet visible to
// queries.
type Batch struct {
	idx  *Index
	snap *snapshot
}

// Stage builds the snapshot that results from upserting tenders by TenderID
// onto the published one, without publishing it. Existing entries are shared;
// nothing is re-embedded. Callers serialize Stage and Publish.
func (idx *Index) Stage(tenders []tender.Tender) (*Batch, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	cur := idx.snap.Load()
	next := &snapshot{
		entries: make([]entry, len(cur.entries), len(cur.entries)+len(tenders)),
		byID:    make(map[string]int, len(cur.entries)+len(tenders)),
		dims:    idx.dims,
	}
	copy(next.entries, cur.entries)
	for k, v := range cur.byID {
		next.byID[k] = v
	}
	if err := next.add(tenders); err != nil {
		return nil, err
	}
	return &Batch{idx: idx, snap: next}, nil
}

// Count is the number of entries the index holds once b is published.
func (b *Batch) Count() int { return len(b.snap.entries) }

// Publish makes every tender in b visible to queries at once.
func (b *Batch) Publish() {
	b.idx.mu.Lock()
	defer b.idx.mu.Unlock()
	b.idx.snap.Store(b.snap)
}

// Reset empties the index.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.snap.Store(emptySnapshot)
}

func (s *snapshot) add(tenders []tender.Tender) error {
	for _, t := range tenders {
		if len(t.Embedding) != s.dims {
			return &tender.DimensionMismatchError{Want: s.dims, Got: len(t.Embedding)}
		}
		e := entry{tender: t, norm: norm(t.Embedding)}
		if i, ok := s.byID[t.TenderID]; ok {
			s.entries[i] = e
			continue
		}
		s.byID[t.TenderID] = len(s.entries)
		s.entries = append(s.entries, e)
	}
	return nil
}

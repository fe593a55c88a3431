package search

import (
	"container/heap"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kalambet/tenderscope/internal/embedding"
	"github.com/kalambet/tenderscope/internal/tender"
)

// Result is one ranked match.
type Result struct {
	Tender     tender.Tender
	Similarity float64
}

// Engine embeds queries and ranks the index against them.
type Engine struct {
	index    *Index
	embedder embedding.Embedder
}

// NewEngine returns an Engine over idx using e for query embedding.
func NewEngine(idx *Index, e embedding.Embedder) *Engine {
	return &Engine{index: idx, embedder: e}
}

// Search returns at most k tenders ranked by descending similarity to query.
// Ties keep insertion order (ascending Seq). An empty index yields an empty slice.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, tender.InvalidArgument("k must be positive, got %d", k)
	}
	if strings.TrimSpace(query) == "" {
		return nil, tender.InvalidArgument("query must not be empty")
	}

	snap := e.index.snap.Load()
	if len(snap.entries) == 0 {
		return []Result{}, nil
	}

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vec) != snap.dims {
		return nil, &tender.DimensionMismatchError{Want: snap.dims, Got: len(vec)}
	}
	return rank(snap, vec, k), nil
}

func rank(snap *snapshot, vec []float32, k int) []Result {
	qNorm := norm(vec)
	h := &resultHeap{}
	for i := range snap.entries {
		en := &snap.entries[i]
		r := Result{Tender: en.tender, Similarity: Similarity(cosine(vec, en.tender.Embedding, qNorm, en.norm))}
		if h.Len() < k {
			heap.Push(h, r)
		} else if worse((*h)[0], r) {
			(*h)[0] = r
			heap.Fix(h, 0)
		}
	}

	out := make([]Result, h.Len())
	copy(out, *h)
	sort.Slice(out, func(i, j int) bool { return worse(out[j], out[i]) })
	return out
}

// worse reports whether a ranks below b.
func worse(a, b Result) bool {
	if a.Similarity != b.Similarity {
		return a.Similarity < b.Similarity
	}
	if a.Tender.Seq != b.Tender.Seq {
		return a.Tender.Seq > b.Tender.Seq
	}
	return a.Tender.TenderID > b.Tender.TenderID
}

// resultHeap is a min-heap keeping the worst candidate at the root.
type resultHeap []Result

func (h resultHeap) Len() int           { return len(h) }
func (h resultHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h resultHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x any)        { *h = append(*h, x.(Result)) }
func (h *resultHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

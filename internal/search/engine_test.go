package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/tenderscope/internal/embedding"
	"github.com/kalambet/tenderscope/internal/tender"
)

const testDims = 128

func embedded(t *testing.T, e embedding.Embedder, seq int64, id, title, desc string) tender.Tender {
	t.Helper()
	v, err := e.Embed(context.Background(), desc)
	require.NoError(t, err)
	return tender.Tender{TenderID: id, Title: title, Description: desc, Seq: seq, Embedding: v}
}

func newTestEngine(t *testing.T, tenders ...tender.Tender) *Engine {
	t.Helper()
	idx := NewIndex(testDims)
	require.NoError(t, idx.Load(tenders))
	return NewEngine(idx, embedding.NewHashEmbedder(testDims))
}

func TestSearch_CloudRanksAboveFurniture(t *testing.T) {
	e := embedding.NewHashEmbedder(testDims)
	eng := newTestEngine(t,
		embedded(t, e, 1, "T-1", "Office Furniture", "Supply of desks, chairs and office furniture"),
		embedded(t, e, 2, "T-2", "Cloud Migration Services", "Migration of workloads to cloud infrastructure"),
	)

	res, err := eng.Search(context.Background(), "cloud infrastructure", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "T-2", res[0].Tender.TenderID)
	assert.Greater(t, res[0].Similarity, res[1].Similarity)
}

func TestSearch_InvalidArguments(t *testing.T) {
	eng := newTestEngine(t)
	for _, k := range []int{0, -3} {
		_, err := eng.Search(context.Background(), "x", k)
		assert.ErrorIs(t, err, tender.ErrInvalidArgument)
	}
	_, err := eng.Search(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, tender.ErrInvalidArgument)
}

func TestSearch_EmptyIndex(t *testing.T) {
	res, err := newTestEngine(t).Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.NotNil(t, res)
	assert.Empty(t, res)
}

func TestSearch_BoundsAndOrdering(t *testing.T) {
	e := embedding.NewHashEmbedder(testDims)
	var ts []tender.Tender
	for i := range 20 {
		ts = append(ts, embedded(t, e, int64(i), fmt.Sprintf("T-%02d", i), "t", fmt.Sprintf("item %d road bridge", i)))
	}
	eng := newTestEngine(t, ts...)

	res, err := eng.Search(context.Background(), "road bridge", 7)
	require.NoError(t, err)
	require.Len(t, res, 7)
	for i, r := range res {
		assert.GreaterOrEqual(t, r.Similarity, 0.0)
		assert.LessOrEqual(t, r.Similarity, 1.0)
		if i > 0 {
			assert.GreaterOrEqual(t, res[i-1].Similarity, r.Similarity)
		}
	}

	all, err := eng.Search(context.Background(), "road bridge", 100)
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestSearch_Deterministic(t *testing.T) {
	e := embedding.NewHashEmbedder(testDims)
	eng := newTestEngine(t,
		embedded(t, e, 1, "A", "a", "water treatment plant"),
		embedded(t, e, 2, "B", "b", "water pipes"),
		embedded(t, e, 3, "C", "c", "school books"),
	)
	first, err := eng.Search(context.Background(), "water", 3)
	require.NoError(t, err)
	for range 5 {
		again, err := eng.Search(context.Background(), "water", 3)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSearch_TiesBrokenBySeq(t *testing.T) {
	e := embedding.NewHashEmbedder(testDims)
	eng := newTestEngine(t,
		embedded(t, e, 5, "late", "x", "same words"),
		embedded(t, e, 1, "early", "x", "same words"),
	)
	res, err := eng.Search(context.Background(), "same words", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "early", res[0].Tender.TenderID)
	assert.Equal(t, res[0].Similarity, res[1].Similarity)
}

func TestSearch_SelfMatchIsMaximal(t *testing.T) {
	e := embedding.NewHashEmbedder(testDims)
	target := embedded(t, e, 3, "T", "t", "renewable energy solar farm construction")
	eng := newTestEngine(t,
		embedded(t, e, 1, "A", "a", "solar panels"),
		embedded(t, e, 2, "B", "b", "office supplies"),
		target,
	)
	res, err := eng.Search(context.Background(), target.Description, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "T", res[0].Tender.TenderID)
	assert.InDelta(t, 1.0, res[0].Similarity, 1e-6)
}

type shortEmbedder struct{}

func (shortEmbedder) Embed(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil }
func (shortEmbedder) Dimensions() int                                  { return 2 }

func TestSearch_DimensionMismatch(t *testing.T) {
	e := embedding.NewHashEmbedder(testDims)
	idx := NewIndex(testDims)
	require.NoError(t, idx.Load([]tender.Tender{embedded(t, e, 1, "A", "a", "x")}))
	eng := NewEngine(idx, shortEmbedder{})

	_, err := eng.Search(context.Background(), "x", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tender.ErrEmbeddingDimensionMismatch))
	var dm *tender.DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, testDims, dm.Want)
	assert.Equal(t, 2, dm.Got)
}

type mismatchedModel struct{}

func (mismatchedModel) Embed(context.Context, string) ([]float32, error) {
	return nil, fmt.Errorf("model all-minilm: %w", &tender.DimensionMismatchError{Want: testDims, Got: 4})
}
func (mismatchedModel) Dimensions() int { return testDims }

func TestSearch_EmbedderMismatchKeepsType(t *testing.T) {
	e := embedding.NewHashEmbedder(testDims)
	idx := NewIndex(testDims)
	require.NoError(t, idx.Load([]tender.Tender{embedded(t, e, 1, "A", "a", "x")}))

	_, err := NewEngine(idx, mismatchedModel{}).Search(context.Background(), "x", 1)
	var dm *tender.DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 4, dm.Got)
}

func publish(t *testing.T, idx *Index, tenders ...tender.Tender) {
	t.Helper()
	b, err := idx.Stage(tenders)
	require.NoError(t, err)
	b.Publish()
}

func TestIndex_StageUpsertsByTenderID(t *testing.T) {
	e := embedding.NewHashEmbedder(testDims)
	idx := NewIndex(testDims)
	publish(t, idx,
		embedded(t, e, 1, "A", "a", "x"),
		embedded(t, e, 2, "B", "b", "y"),
	)
	publish(t, idx,
		embedded(t, e, 1, "A", "a2", "z"),
		embedded(t, e, 3, "C", "c", "w"),
	)
	assert.Equal(t, Stats{Count: 3, Dimensions: testDims}, idx.Stats())

	idx.Reset()
	assert.Equal(t, 0, idx.Stats().Count)
}

func TestIndex_StagedBatchHiddenUntilPublished(t *testing.T) {
	e := embedding.NewHashEmbedder(testDims)
	eng := newTestEngine(t, embedded(t, e, 1, "A", "Office chairs", "office chairs and desks"))

	b, err := eng.index.Stage([]tender.Tender{
		embedded(t, e, 2, "B", "Cloud hosting", "cloud infrastructure hosting"),
		embedded(t, e, 3, "C", "Cloud backup", "cloud infrastructure backup"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, b.Count())
	assert.Equal(t, 1, eng.index.Stats().Count)

	res, err := eng.Search(context.Background(), "cloud infrastructure", 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "A", res[0].Tender.TenderID)

	b.Publish()
	res, err = eng.Search(context.Background(), "cloud infrastructure", 5)
	require.NoError(t, err)
	assert.Len(t, res, 3)
}

func TestIndex_RejectsWrongLength(t *testing.T) {
	idx := NewIndex(testDims)
	_, err := idx.Stage([]tender.Tender{{TenderID: "A", Embedding: []float32{1}}})
	assert.ErrorIs(t, err, tender.ErrEmbeddingDimensionMismatch)
	assert.Equal(t, 0, idx.Stats().Count)
}

func TestSearch_ConcurrentWithPublish(t *testing.T) {
	e := embedding.NewHashEmbedder(testDims)
	eng := newTestEngine(t, embedded(t, e, 0, "seed", "s", "seed tender"))

	batch := make([]tender.Tender, 50)
	for i := range batch {
		batch[i] = embedded(t, e, int64(i+1), fmt.Sprintf("T-%d", i), "t", "bulk tender")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for _, tn := range batch {
			b, err := eng.index.Stage([]tender.Tender{tn})
			if !assert.NoError(t, err) {
				return
			}
			b.Publish()
		}
	}()
	go func() {
		defer wg.Done()
		for range 50 {
			res, err := eng.Search(context.Background(), "tender", 3)
			assert.NoError(t, err)
			assert.NotEmpty(t, res)
		}
	}()
	wg.Wait()
	assert.Equal(t, 51, eng.index.Stats().Count)
}

func TestSimilarity_Bounds(t *testing.T) {
	assert.Equal(t, 0.0, Similarity(-1))
	assert.Equal(t, 0.5, Similarity(0))
	assert.Equal(t, 1.0, Similarity(1))
	assert.Equal(t, 1.0, Similarity(1.0000001))
	assert.Equal(t, 0.0, Similarity(-1.5))
}

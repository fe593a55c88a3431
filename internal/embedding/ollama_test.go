package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/tenderscope/internal/tender"
)

func newEmbedServer(t *testing.T, dims int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Input any `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		n := 1
		if list, ok := req.Input.([]any); ok {
			n = len(list)
		}
		out := struct {
			Embeddings [][]float32 `json:"embeddings"`
		}{}
		for i := 0; i < n; i++ {
			out.Embeddings = append(out.Embeddings, make([]float32, dims))
		}
		json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaEmbedder_BatchSplitsRequests(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbedServer(t, 8, &calls)
	e := NewOllamaEmbedder(srv.URL, "all-minilm", 8)

	texts := make([]string, ollamaBatchSize*2+1)
	for i := range texts {
		texts[i] = "tender"
	}
	vecs, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, len(texts))
	assert.Equal(t, int32(3), calls.Load())
}

func TestOllamaEmbedder_DimensionCheck(t *testing.T) {
	var calls atomic.Int32
	srv := newEmbedServer(t, 4, &calls)
	e := NewOllamaEmbedder(srv.URL, "all-minilm", 8)

	_, err := e.Embed(context.Background(), "hello")
	require.ErrorIs(t, err, tender.ErrEmbeddingDimensionMismatch)
	var dm *tender.DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 8, dm.Want)
	assert.Equal(t, 4, dm.Got)

	_, err = e.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, tender.ErrEmbeddingDimensionMismatch)
}

func TestOllamaEmbedder_EmptyBatch(t *testing.T) {
	e := NewOllamaEmbedder("http://127.0.0.1:1", "all-minilm", 8)
	vecs, err := e.EmbedBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vecs)
}

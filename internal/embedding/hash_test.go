package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func embed(t *testing.T, e Embedder, text string) []float32 {
	t.Helper()
	v, err := e.Embed(context.Background(), text)
	require.NoError(t, err)
	return v
}

func TestHashEmbedder_Deterministic(t *testing.T) {
	e := NewHashEmbedder(128)
	a := embed(t, e, "Cloud infrastructure upgrade")
	b := embed(t, e, "cloud   INFRASTRUCTURE upgrade!")
	assert.Len(t, a, 128)
	assert.Equal(t, a, b)
}

func TestHashEmbedder_UnitNorm(t *testing.T) {
	e := NewHashEmbedder(0)
	require.Equal(t, DefaultDimensions, e.Dimensions())
	var sum float64
	for _, f := range embed(t, e, "supply of office furniture") {
		sum += float64(f) * float64(f)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestHashEmbedder_EmptyIsZero(t *testing.T) {
	v := embed(t, NewHashEmbedder(16), "  ... ")
	assert.Equal(t, make([]float32, 16), v)
}

func TestHashEmbedder_SharedWordsAreCloser(t *testing.T) {
	e := NewHashEmbedder(384)
	q := embed(t, e, "cloud infrastructure")
	cloud := embed(t, e, "Migrate on-premise workloads to cloud infrastructure")
	chairs := embed(t, e, "Supply of desks and chairs")
	assert.Greater(t, cosine(q, cloud), cosine(q, chairs))
}

func TestHashEmbedder_BatchMatchesSingle(t *testing.T) {
	e := NewHashEmbedder(64)
	texts := []string{"bridge repair", "road resurfacing", ""}
	batch, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	for i, text := range texts {
		assert.Equal(t, embed(t, e, text), batch[i], text)
	}
}

func TestNew_Providers(t *testing.T) {
	e, err := New(Config{Provider: ProviderHash, Dimensions: 32})
	require.NoError(t, err)
	assert.Equal(t, 32, e.Dimensions())

	oe, err := New(Config{Provider: ProviderOllama, OllamaBaseURL: "http://127.0.0.1:1", OllamaModel: "all-minilm", Dimensions: 8})
	require.NoError(t, err)
	require.IsType(t, &OllamaEmbedder{}, oe)
	assert.Equal(t, "all-minilm", oe.(*OllamaEmbedder).Model())
	assert.NotNil(t, oe.(*OllamaEmbedder).Client())

	_, err = New(Config{Provider: ProviderOllama})
	assert.Error(t, err)
	_, err = New(Config{Provider: "word2vec"})
	assert.Error(t, err)
}

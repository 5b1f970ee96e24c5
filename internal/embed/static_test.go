package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func TestStaticEmbedder_Embed_UnitLengthAndDimension(t *testing.T) {
	e := NewStaticEmbedder()

	vec, err := e.Embed(context.Background(), "Federer hits an ace on match point")
	require.NoError(t, err)

	assert.Len(t, vec, StaticDimensions)
	assert.InDelta(t, 1.0, magnitude(vec), 1e-5)
}

func TestStaticEmbedder_Embed_Deterministic(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()

	first, err := e.Embed(ctx, "nadal forehand winner down the line")
	require.NoError(t, err)
	second, err := NewStaticEmbedder().Embed(ctx, "nadal forehand winner down the line")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestStaticEmbedder_Embed_BlankIsZeroVector(t *testing.T) {
	vec, err := NewStaticEmbedder().Embed(context.Background(), "   ")
	require.NoError(t, err)

	assert.Len(t, vec, StaticDimensions)
	assert.Equal(t, 0.0, magnitude(vec))
}

func TestStaticEmbedder_SimilarTextsScoreHigher(t *testing.T) {
	// Given: a query and two candidate texts
	e := NewStaticEmbedder()
	ctx := context.Background()
	query, _ := e.Embed(ctx, "federer backhand winner")
	near, _ := e.Embed(ctx, "federer backhand winner crosscourt")
	far, _ := e.Embed(ctx, "rain delay covers court")

	// Then: the overlapping text is more similar
	assert.Greater(t, dot(query, near), dot(query, far))
}

func TestStaticEmbedder_EmbedBatch_PreservesOrder(t *testing.T) {
	e := NewStaticEmbedder()
	ctx := context.Background()
	texts := []string{"ace", "double fault", "tiebreak"}

	batch, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], text)
	}
}

func TestStaticEmbedder_Closed(t *testing.T) {
	e := NewStaticEmbedder()
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "ace")
	assert.Error(t, err)
}

func TestExtractNgrams(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"ace", []string{"ace"}},
		{"ab", []string{}},
		{"lobs", []string{"lob", "obs"}},
		{"été", []string{"été"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, extractNgrams([]rune(tt.in), 3))
		})
	}
}

package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/smre/internal/corpus"
	"github.com/Aman-CERP/smre/internal/embed"
	"github.com/Aman-CERP/smre/internal/store"
)

func TestConsistencyChecker_CleanBuild(t *testing.T) {
	// Given: an index built from the corpus it is checked against
	c := sampleCorpus(t)
	idx, err := Build(context.Background(), t.TempDir(), c, embed.NewStaticEmbedder(), BuildOptions{})
	require.NoError(t, err)

	// When: checking
	result := NewConsistencyChecker(idx, c).Check()

	// Then: nothing is reported
	assert.Empty(t, result.Inconsistencies)
	assert.Equal(t, 3, result.Checked)
	assert.True(t, result.BuildConsistent())
}

func TestConsistencyChecker_CorpusDrift(t *testing.T) {
	// Given: an index and a corpus that gained "d" and lost "c"
	idx, err := Build(context.Background(), t.TempDir(), sampleCorpus(t), embed.NewStaticEmbedder(), BuildOptions{})
	require.NoError(t, err)
	drifted, err := corpus.New([]corpus.Moment{
		{ID: "b", Text: "nadal"},
		{ID: "a", Text: "federer"},
		{ID: "d", Text: "new record"},
	})
	require.NoError(t, err)

	// When: checking
	result := NewConsistencyChecker(idx, drifted).Check()

	// Then: drift is reported but the indices still agree
	assert.Equal(t, []Inconsistency{
		{Type: InconsistencyNotIndexed, ID: "d"},
		{Type: InconsistencyNotInCorpus, ID: "c"},
	}, result.Inconsistencies)
	assert.True(t, result.BuildConsistent())
	assert.Equal(t, 4, result.Checked)
}

func TestConsistencyChecker_IndicesDisagree(t *testing.T) {
	lexical, err := store.BuildLexical([]store.Document{{ID: "a", Content: "x"}, {ID: "b", Content: "y"}}, store.DefaultBM25Config())
	require.NoError(t, err)
	vectors := store.NewVectorIndex(1)
	require.NoError(t, vectors.Add("a", []float32{1}))
	require.NoError(t, vectors.Add("z", []float32{1}))
	idx := &Index{Lexical: lexical, Vectors: vectors}

	result := NewConsistencyChecker(idx, nil).Check()

	assert.False(t, result.BuildConsistent())
	assert.Equal(t, map[InconsistencyType]int{
		InconsistencyLexicalOnly: 1,
		InconsistencyVectorOnly:  1,
	}, result.Counts())
}

func TestInconsistencyType_String(t *testing.T) {
	assert.Equal(t, "lexical_only", InconsistencyLexicalOnly.String())
	assert.Equal(t, "not_in_corpus", InconsistencyNotInCorpus.String())
	assert.Equal(t, "unknown", InconsistencyType(99).String())
}

package retrieval

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/grounded-agent/server/internal/core/error"
)

// fixedEmbedder maps known strings to fixed vectors, everything else to a
// constant direction.
type fixedEmbedder struct {
	vectors map[string][]float32
}

func (e fixedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return []float32{1, 0, 0}, nil
}

func writeIndex(t *testing.T, file indexFile) string {
	t.Helper()
	raw, err := json.Marshal(file)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func testIndexFile() indexFile {
	return indexFile{
		Model: "text-embedding-3-small",
		Chunks: []indexChunk{
			{DocID: "handbook", Text: "Expense reports are due in 30 days.", Offset: 0, Embedding: []float32{1, 0, 0}},
			{DocID: "handbook", Text: "PTO accrues at 1.5 days per month.", Offset: 35, Embedding: []float32{0, 1, 0}},
			{DocID: "travel", Text: "Book flights through the portal.", Offset: 0, Embedding: []float32{0.7, 0.7, 0}},
		},
	}
}

func TestOpenLocalIndexMissingFile(t *testing.T) {
	_, err := OpenLocalIndex(filepath.Join(t.TempDir(), "absent.json"), fixedEmbedder{})
	require.Error(t, err)
	assert.Equal(t, errx.KindRetrievalUnavailable, errx.KindOf(err))
}

func TestOpenLocalIndexMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	_, err := OpenLocalIndex(path, fixedEmbedder{})
	require.Error(t, err)
	assert.Equal(t, errx.KindRetrievalUnavailable, errx.KindOf(err))
}

func TestOpenLocalIndexEmpty(t *testing.T) {
	path := writeIndex(t, indexFile{Model: "m"})
	_, err := OpenLocalIndex(path, fixedEmbedder{})
	require.Error(t, err)
	assert.Equal(t, errx.KindRetrievalUnavailable, errx.KindOf(err))
}

func TestRetrieveRanksByCosine(t *testing.T) {
	path := writeIndex(t, testIndexFile())
	idx, err := OpenLocalIndex(path, fixedEmbedder{vectors: map[string][]float32{
		"expense deadline": {1, 0, 0},
	}})
	require.NoError(t, err)

	passages, err := idx.Retrieve(context.Background(), "expense deadline", 3)
	require.NoError(t, err)
	require.Len(t, passages, 3)

	assert.Equal(t, "Expense reports are due in 30 days.", passages[0].Text)
	assert.InDelta(t, 1.0, passages[0].Score, 1e-6)
	assert.Equal(t, "Book flights through the portal.", passages[1].Text)
	assert.Equal(t, "PTO accrues at 1.5 days per month.", passages[2].Text)

	// provenance survives ranking
	assert.Equal(t, "handbook", passages[0].DocID)
	assert.Equal(t, 0, passages[0].Offset)
	assert.Equal(t, "handbook@0-35", passages[0].Key())
}

func TestRetrieveTopKBound(t *testing.T) {
	path := writeIndex(t, testIndexFile())
	idx, err := OpenLocalIndex(path, fixedEmbedder{})
	require.NoError(t, err)

	passages, err := idx.Retrieve(context.Background(), "anything", 2)
	require.NoError(t, err)
	assert.Len(t, passages, 2)
}

func TestRetrieveDeterministic(t *testing.T) {
	// two chunks with identical similarity keep their index order
	file := indexFile{
		Model: "m",
		Chunks: []indexChunk{
			{DocID: "a", Text: "first", Embedding: []float32{1, 0, 0}},
			{DocID: "b", Text: "second", Embedding: []float32{2, 0, 0}},
		},
	}
	path := writeIndex(t, file)
	idx, err := OpenLocalIndex(path, fixedEmbedder{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		passages, err := idx.Retrieve(context.Background(), "tie", 2)
		require.NoError(t, err)
		require.Len(t, passages, 2)
		assert.Equal(t, "a", passages[0].DocID)
		assert.Equal(t, "b", passages[1].DocID)
	}
}

func TestRetrieveZeroQueryEmbedding(t *testing.T) {
	path := writeIndex(t, testIndexFile())
	idx, err := OpenLocalIndex(path, fixedEmbedder{vectors: map[string][]float32{
		"void": {0, 0, 0},
	}})
	require.NoError(t, err)

	_, err = idx.Retrieve(context.Background(), "void", 3)
	require.Error(t, err)
	assert.Equal(t, errx.KindRetrievalUnavailable, errx.KindOf(err))
}

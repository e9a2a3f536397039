package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/grounded-agent/server/internal/agent/model"
	errx "github.com/grounded-agent/server/internal/core/error"
	logx "github.com/grounded-agent/server/pkg/logger"
)

type indexChunk struct {
	DocID     string    `json:"doc_id"`
	Text      string    `json:"text"`
	Offset    int       `json:"offset"`
	Embedding []float32 `json:"embedding"`
}

type indexFile struct {
	Model  string       `json:"model"`
	Chunks []indexChunk `json:"chunks"`
}

// LocalIndex ranks pre-embedded chunks by cosine similarity to the query
// embedding. Immutable after open.
type LocalIndex struct {
	embedder Embedder
	chunks   []indexChunk
	norms    []float64
}

// OpenLocalIndex loads the JSON index from disk. A missing or unreadable
// index surfaces as RetrievalUnavailable so the agent can degrade to
// answering without grounding.
func OpenLocalIndex(path string, embedder Embedder) (*LocalIndex, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errx.New(err, errx.KindRetrievalUnavailable, "retrieval index not loaded")
	}
	var file indexFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, errx.New(err, errx.KindRetrievalUnavailable, "retrieval index malformed")
	}
	if len(file.Chunks) == 0 {
		return nil, errx.Newf(errx.KindRetrievalUnavailable, "retrieval index %s is empty", path)
	}

	norms := make([]float64, len(file.Chunks))
	for i, c := range file.Chunks {
		norms[i] = vectorNorm(c.Embedding)
	}

	logx.Info().
		Str("path", path).
		Str("embedding_model", file.Model).
		Int("chunks", len(file.Chunks)).
		Msg("retrieval index loaded")

	return &LocalIndex{embedder: embedder, chunks: file.Chunks, norms: norms}, nil
}

// Retrieve embeds the query and returns the top-k chunks by cosine
// similarity, ranked descending with index order breaking ties so results
// are deterministic.
func (idx *LocalIndex) Retrieve(ctx context.Context, query string, k int) ([]model.Passage, error) {
	if k <= 0 {
		k = 5
	}
	qv, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errx.New(err, errx.KindRetrievalUnavailable, "query embedding failed")
	}
	qnorm := vectorNorm(qv)
	if qnorm == 0 {
		return nil, errx.Newf(errx.KindRetrievalUnavailable, "query embedding is zero")
	}

	type scored struct {
		pos   int
		score float64
	}
	ranked := make([]scored, 0, len(idx.chunks))
	for i, c := range idx.chunks {
		denom := idx.norms[i] * qnorm
		if denom == 0 {
			continue
		}
		ranked = append(ranked, scored{pos: i, score: dot(c.Embedding, qv) / denom})
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}

	out := make([]model.Passage, len(ranked))
	for i, r := range ranked {
		c := idx.chunks[r.pos]
		out[i] = model.Passage{
			DocID:  c.DocID,
			Text:   c.Text,
			Offset: c.Offset,
			Score:  r.score,
		}
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

var _ Retriever = (*LocalIndex)(nil)

// String implements fmt.Stringer for debug logging.
func (idx *LocalIndex) String() string {
	return fmt.Sprintf("LocalIndex(%d chunks)", len(idx.chunks))
}

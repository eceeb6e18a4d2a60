// ABOUTME: Retrieval path: embed, hard-filtered search, hierarchy rerank
// ABOUTME: Returns a complete ranking or an explicit error, never partial

package retrieve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nainya/lexindex/pkg/embed"
	"github.com/nainya/lexindex/pkg/obs"
	"github.com/nainya/lexindex/pkg/store"
)

// ErrTimeout indicates the caller's deadline expired before a complete
// candidate set was available. Reranking an incomplete set could silently
// bias legal relevance, so no partial result is ever returned.
var ErrTimeout = errors.New("retrieve: deadline exceeded")

// Query is one retrieval request.
type Query struct {
	Text   string
	Filter store.Filter
	TopK   int
}

// Passage is one ranked result. When the reranker merges adjacent sibling
// chunks, Text carries the merged context and MergedChunkIDs names every
// constituent chunk.
type Passage struct {
	ChunkID        string
	Text           string
	Citation       string
	AncestorPath   []string
	Similarity     float64 // raw vector similarity
	Score          float64 // post-rerank score
	MergedChunkIDs []string
}

// Result is the ordered, deduplicated passage list of one retrieval.
type Result struct {
	Passages   []Passage
	Candidates int // filtered candidates considered before reranking
}

// Config exposes the reranking heuristics. Both knobs are configuration by
// design: BoostWeight raises the aggregate score of co-located results,
// SiblingMergeWindow is the maximum order-index distance for merging.
type Config struct {
	TopK               int     // default result size when the query leaves it zero
	RerankDepth        int     // top-N candidates entering the rerank pass
	BoostWeight        float64 // bounded score boost for shared ancestry
	SiblingMergeWindow int     // max sibling distance for context merging
}

func (c Config) withDefaults() Config {
	if c.TopK <= 0 {
		c.TopK = 10
	}
	if c.RerankDepth <= 0 {
		c.RerankDepth = 30
	}
	if c.BoostWeight == 0 {
		c.BoostWeight = 0.05
	}
	if c.SiblingMergeWindow <= 0 {
		c.SiblingMergeWindow = 1
	}
	return c
}

// Retriever answers queries against the current index snapshot. It holds no
// mutable state, so calls are freely concurrent.
type Retriever struct {
	store    store.Store
	embedder embed.Embedder
	cfg      Config
	sink     obs.Sink
}

// New builds a retriever. sink may be nil.
func New(s store.Store, e embed.Embedder, cfg Config, sink obs.Sink) *Retriever {
	return &Retriever{store: s, embedder: e, cfg: cfg.withDefaults(), sink: sink}
}

// Retrieve embeds the query, gathers candidates under the hard filter and
// applies the hierarchy-aware rerank. An empty filtered set is a valid
// outcome ("no matching provision") and returns an empty result, not an
// error. Fewer than TopK matches return all of them, no padding.
func (r *Retriever) Retrieve(ctx context.Context, q Query) (*Result, error) {
	start := time.Now()

	topK := q.TopK
	if topK <= 0 {
		topK = r.cfg.TopK
	}
	fetch := r.cfg.RerankDepth
	if topK > fetch {
		fetch = topK
	}

	vector, err := r.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, r.fail(start, err)
	}

	candidates, err := r.store.Search(ctx, vector, q.Filter, fetch)
	if err != nil {
		return nil, r.fail(start, err)
	}
	// The deadline may have expired with a complete-looking candidate set;
	// treat it as a timeout rather than reranking on uncertain input.
	if err := ctx.Err(); err != nil {
		return nil, r.fail(start, err)
	}

	if len(candidates) == 0 {
		obs.Timed(r.sink, "retrieve", start, 0, "empty")
		return &Result{}, nil
	}

	passages := rerank(candidates, r.cfg)
	if topK < len(passages) {
		passages = passages[:topK]
	}

	merges := 0
	for _, p := range passages {
		if len(p.MergedChunkIDs) > 1 {
			merges++
		}
	}
	if merges > 0 {
		obs.Timed(r.sink, "sibling_merge", start, merges, "ok")
	}
	obs.Timed(r.sink, "retrieve", start, len(passages), "ok")
	return &Result{Passages: passages, Candidates: len(candidates)}, nil
}

func (r *Retriever) fail(start time.Time, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		obs.Timed(r.sink, "retrieve", start, 0, "timeout")
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	obs.Timed(r.sink, "retrieve", start, 0, "error")
	return err
}

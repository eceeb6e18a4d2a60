// ABOUTME: Offline indexing pipeline: build, chunk, enrich, embed, write
// ABOUTME: Parallel across top-level subtrees, bounded embed/write workers

package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nainya/lexindex/internal/logger"
	"github.com/nainya/lexindex/pkg/chunk"
	"github.com/nainya/lexindex/pkg/embed"
	"github.com/nainya/lexindex/pkg/enrich"
	"github.com/nainya/lexindex/pkg/index"
	"github.com/nainya/lexindex/pkg/obs"
	"github.com/nainya/lexindex/pkg/tree"
)

// Pipeline wires the indexing stages together. Tree build, chunking and
// enrichment are pure transformations; only embedding calls and index
// writes cross a service boundary.
type Pipeline struct {
	Builder  *tree.Builder
	Chunker  *chunk.Chunker
	Embedder embed.Embedder
	Writer   *index.Writer
	Log      *logger.Logger
	Sink     obs.Sink

	// EmbedBatch is the number of chunk texts per embedding call.
	EmbedBatch int
	// Workers bounds concurrent embedding calls.
	Workers int
}

// Report summarizes one indexing run.
type Report struct {
	RunID        string
	Nodes        int
	Chunks       int
	Written      int
	Unwritten    []string
	TreeWarnings []tree.Warning
	SizeWarnings []chunk.SizeWarning
	Duration     time.Duration
}

func (p *Pipeline) embedBatch() int {
	if p.EmbedBatch > 0 {
		return p.EmbedBatch
	}
	return 32
}

func (p *Pipeline) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return 4
}

// Run indexes a full element sequence. On write failures the report still
// carries the unwritten chunk ids alongside the returned *index.WriteFailure
// so the caller can resume without reprocessing the corpus.
func (p *Pipeline) Run(ctx context.Context, elements []tree.Element) (*tree.Tree, *Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	log := p.Log
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	runLog := log.PipelineLogger(report.RunID)

	var sizeMu sync.Mutex
	chunker := *p.Chunker
	chunker.OnWarning = func(w chunk.SizeWarning) {
		sizeMu.Lock()
		report.SizeWarnings = append(report.SizeWarnings, w)
		sizeMu.Unlock()
		runLog.Warn("oversized chunk").
			Str("node_id", w.NodeID).
			Int("tokens", w.Tokens).
			Int("budget", w.MaxTokens).
			Msg("Chunk exceeds token budget, emitted whole")
	}

	t, err := p.Builder.Build(elements)
	if err != nil {
		return nil, report, fmt.Errorf("ingest: build tree: %w", err)
	}
	report.Nodes = t.Len()
	report.TreeWarnings = p.Builder.Warnings()
	for _, w := range report.TreeWarnings {
		runLog.Warn("structural anomaly").
			Str("kind", string(w.Kind)).
			Str("node_id", w.NodeID).
			Msg(w.Msg)
	}

	entries, err := p.collectEntries(ctx, t, &chunker)
	if err != nil {
		return t, report, err
	}
	report.Chunks = len(entries)
	runLog.Info("corpus chunked").
		Int("nodes", report.Nodes).
		Int("chunks", report.Chunks).
		Msg("Tree chunked and enriched")

	if err := p.embedEntries(ctx, entries); err != nil {
		return t, report, err
	}

	err = p.Writer.Upsert(ctx, entries)
	report.Duration = time.Since(start)
	if wf, ok := err.(*index.WriteFailure); ok {
		report.Unwritten = wf.UnwrittenChunkIDs
		report.Written = report.Chunks - len(report.Unwritten)
		runLog.Error("partial write").
			Int("written", report.Written).
			Int("unwritten", len(report.Unwritten)).
			Msg("Indexing run completed with unwritten chunks")
		return t, report, err
	}
	if err != nil {
		return t, report, err
	}
	report.Written = report.Chunks
	runLog.Info("run complete").
		Int("written", report.Written).
		Dur("duration_ms", report.Duration).
		Msg("Indexing run completed")
	return t, report, nil
}

// collectEntries chunks and enriches the tree, fanning out across
// independent top-level subtrees; they share no mutable state.
func (p *Pipeline) collectEntries(ctx context.Context, t *tree.Tree, chunker *chunk.Chunker) ([]index.Entry, error) {
	enricher := enrich.NewEnricher(t)
	root := t.Root()
	if root == nil {
		return nil, nil
	}

	chunkSubtree := func(start *tree.Node) []index.Entry {
		var out []index.Entry
		var walk func(n *tree.Node)
		walk = func(n *tree.Node) {
			for _, ck := range chunker.ChunkNode(t, n) {
				meta := enricher.Enrich(&ck)
				out = append(out, index.Entry{Chunk: ck, Metadata: meta})
			}
			for _, c := range t.Children(n.ID) {
				walk(c)
			}
		}
		walk(start)
		return out
	}

	// Root body first to keep document order, then subtrees in parallel.
	var entries []index.Entry
	for _, ck := range chunker.ChunkNode(t, root) {
		meta := enricher.Enrich(&ck)
		entries = append(entries, index.Entry{Chunk: ck, Metadata: meta})
	}

	children := t.Children(root.ID)
	results := make([][]index.Entry, len(children))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i, child := range children {
		g.Go(func() error {
			results[i] = chunkSubtree(child)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, r := range results {
		entries = append(entries, r...)
	}
	return entries, nil
}

// embedEntries fills vectors through the gateway in bounded concurrent
// batches.
func (p *Pipeline) embedEntries(ctx context.Context, entries []index.Entry) error {
	batchSize := p.embedBatch()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for begin := 0; begin < len(entries); begin += batchSize {
		end := begin + batchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[begin:end]
		g.Go(func() error {
			start := time.Now()
			texts := make([]string, len(batch))
			for i, e := range batch {
				texts[i] = e.Chunk.Text
			}
			vecs, err := p.Embedder.EmbedBatch(gctx, texts)
			if err != nil {
				obs.Timed(p.Sink, "embed", start, len(texts), "error")
				return fmt.Errorf("ingest: embed batch: %w", err)
			}
			for i := range batch {
				batch[i].Vector = vecs[i]
			}
			obs.Timed(p.Sink, "embed", start, len(texts), "ok")
			return nil
		})
	}
	return g.Wait()
}

// ReindexNode re-chunks a single node after its text changed: prior chunks
// are deleted, fresh ones inserted, sibling nodes untouched.
func (p *Pipeline) ReindexNode(ctx context.Context, t *tree.Tree, nodeID string) error {
	n, ok := t.Node(nodeID)
	if !ok {
		return fmt.Errorf("ingest: node %s not found", nodeID)
	}
	enricher := enrich.NewEnricher(t)
	var entries []index.Entry
	for _, ck := range p.Chunker.ChunkNode(t, n) {
		meta := enricher.Enrich(&ck)
		entries = append(entries, index.Entry{Chunk: ck, Metadata: meta})
	}
	if err := p.embedEntries(ctx, entries); err != nil {
		return err
	}
	return p.Writer.ReindexNode(ctx, nodeID, entries)
}

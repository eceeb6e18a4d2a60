// ABOUTME: Index writer pushing (chunk, vector, metadata) triples to the store
// ABOUTME: Idempotent upsert keyed by chunk id, bounded retries, cascading delete

package index

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nainya/lexindex/pkg/chunk"
	"github.com/nainya/lexindex/pkg/enrich"
	"github.com/nainya/lexindex/pkg/obs"
	"github.com/nainya/lexindex/pkg/store"
)

// Entry pairs an enriched chunk with its embedding vector.
type Entry struct {
	Chunk    chunk.Chunk
	Metadata enrich.Metadata
	Vector   []float32
}

func (e Entry) record() store.Record {
	return store.Record{
		ChunkID:   e.Chunk.ChunkID,
		Vector:    e.Vector,
		Text:      e.Chunk.Text,
		Metadata:  e.Metadata,
		Seq:       e.Chunk.Seq,
		NodeOrder: e.Chunk.NodeOrder,
	}
}

// Config tunes batching, concurrency and the retry budget.
type Config struct {
	BatchSize   int           // records per store call
	Workers     int           // concurrent batch writers
	MaxAttempts int           // attempts per batch before giving up
	BaseBackoff time.Duration // first retry delay, doubled per attempt
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 200 * time.Millisecond
	}
	return c
}

// Writer persists entries into the vector store. Concurrent Upsert calls
// over disjoint chunk-id sets are safe; same-id races resolve to
// last-writer-wins, which re-indexing fully supersedes anyway.
type Writer struct {
	store store.Store
	cfg   Config
	sink  obs.Sink
}

// NewWriter builds a writer over the given store. sink may be nil.
func NewWriter(s store.Store, cfg Config, sink obs.Sink) *Writer {
	return &Writer{store: s, cfg: cfg.withDefaults(), sink: sink}
}

// Upsert writes entries in batches through a bounded worker pool. Writing
// the same chunk id twice replaces the prior record entirely. On terminal
// batch failures the returned error is a *WriteFailure naming every
// unwritten chunk id; batches that succeeded stay written.
func (w *Writer) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	start := time.Now()

	var mu sync.Mutex
	var unwritten []string
	var lastErr error

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Workers)
	for begin := 0; begin < len(entries); begin += w.cfg.BatchSize {
		end := begin + w.cfg.BatchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[begin:end]
		g.Go(func() error {
			if err := w.writeBatch(gctx, batch); err != nil {
				mu.Lock()
				for _, e := range batch {
					unwritten = append(unwritten, e.Chunk.ChunkID)
				}
				lastErr = err
				mu.Unlock()
			}
			// Failures are collected, not propagated, so sibling batches
			// keep writing and the caller gets a complete resume list.
			return nil
		})
	}
	_ = g.Wait()

	if len(unwritten) > 0 {
		obs.Timed(w.sink, "upsert", start, len(entries), "error")
		return &WriteFailure{UnwrittenChunkIDs: unwritten, Err: lastErr}
	}
	obs.Timed(w.sink, "upsert", start, len(entries), "ok")
	return nil
}

func (w *Writer) writeBatch(ctx context.Context, batch []Entry) error {
	records := make([]store.Record, len(batch))
	for i, e := range batch {
		records[i] = e.record()
	}
	var err error
	for attempt := 0; attempt < w.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			obs.Timed(w.sink, "write_retry", time.Now(), len(batch), "retry")
			delay := w.cfg.BaseBackoff << uint(attempt-1)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
		if err = w.store.Upsert(ctx, records); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

// DeleteByNode removes every chunk derived from the node. Called before a
// node's re-chunking so no stale chunk from a prior text version survives.
func (w *Writer) DeleteByNode(ctx context.Context, nodeID string) error {
	start := time.Now()
	err := w.store.DeleteByFilter(ctx, store.Filter{SourceNode: nodeID})
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	obs.Timed(w.sink, "delete_by_node", start, 1, outcome)
	return err
}

// ReindexNode replaces a node's chunks: cascading delete of the prior
// records, then insert of the new entries. Chunks of other nodes are
// untouched.
func (w *Writer) ReindexNode(ctx context.Context, nodeID string, entries []Entry) error {
	if err := w.DeleteByNode(ctx, nodeID); err != nil {
		return err
	}
	return w.Upsert(ctx, entries)
}

// ABOUTME: Tests for the batching index writer
// ABOUTME: Verifies retries, resume lists on failure and re-index isolation

package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nainya/lexindex/pkg/chunk"
	"github.com/nainya/lexindex/pkg/enrich"
	"github.com/nainya/lexindex/pkg/store"
)

// flakyStore fails Upsert until failuresLeft reaches zero, optionally only
// for batches containing a poisoned chunk id.
type flakyStore struct {
	mu           sync.Mutex
	records      map[string]store.Record
	failuresLeft int
	poisonID     string
	upsertCalls  int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{records: make(map[string]store.Record)}
}

func (s *flakyStore) Init(ctx context.Context, dimension int) error { return nil }

func (s *flakyStore) Upsert(ctx context.Context, records []store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertCalls++
	poisoned := false
	for _, r := range records {
		if r.ChunkID == s.poisonID {
			poisoned = true
		}
	}
	if s.failuresLeft != 0 && (s.poisonID == "" || poisoned) {
		if s.failuresLeft > 0 {
			s.failuresLeft--
		}
		return fmt.Errorf("transient store failure")
	}
	for _, r := range records {
		s.records[r.ChunkID] = r
	}
	return nil
}

func (s *flakyStore) Search(ctx context.Context, vector []float32, f store.Filter, topK int) ([]store.Candidate, error) {
	return nil, nil
}

func (s *flakyStore) DeleteByFilter(ctx context.Context, f store.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.records {
		if f.Matches(r) {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *flakyStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

func makeEntries(nodeID string, n int) []Entry {
	entries := make([]Entry, n)
	for i := range entries {
		entries[i] = Entry{
			Chunk: chunk.Chunk{
				ChunkID:       chunk.ChunkID([]string{nodeID}, i),
				Text:          fmt.Sprintf("chunk %d of %s", i, nodeID),
				SourceNodeIDs: []string{nodeID},
				Seq:           i,
			},
			Metadata: enrich.Metadata{SourceNodeIDs: []string{nodeID}},
			Vector:   []float32{1, 0, 0},
		}
	}
	return entries
}

func TestUpsertWritesAllBatches(t *testing.T) {
	s := newFlakyStore()
	w := NewWriter(s, Config{BatchSize: 3, Workers: 2}, nil)

	entries := makeEntries("26/61", 10)
	if err := w.Upsert(context.Background(), entries); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	n, _ := s.Count(context.Background())
	if n != 10 {
		t.Errorf("Expected 10 records, got %d", n)
	}
	// 10 entries in batches of 3 means 4 store calls.
	if s.upsertCalls != 4 {
		t.Errorf("Expected 4 batch writes, got %d", s.upsertCalls)
	}
}

func TestUpsertRetriesTransientFailures(t *testing.T) {
	s := newFlakyStore()
	s.failuresLeft = 2
	w := NewWriter(s, Config{BatchSize: 10, MaxAttempts: 5, BaseBackoff: time.Millisecond}, nil)

	if err := w.Upsert(context.Background(), makeEntries("26/61", 4)); err != nil {
		t.Fatalf("Expected retries to absorb transient failures, got %v", err)
	}
	n, _ := s.Count(context.Background())
	if n != 4 {
		t.Errorf("Expected 4 records after retries, got %d", n)
	}
}

func TestUpsertReportsUnwrittenChunks(t *testing.T) {
	s := newFlakyStore()
	s.failuresLeft = -1 // never stop failing
	entries := makeEntries("26/61", 6)
	s.poisonID = entries[0].Chunk.ChunkID
	w := NewWriter(s, Config{BatchSize: 3, MaxAttempts: 2, BaseBackoff: time.Millisecond}, nil)

	err := w.Upsert(context.Background(), entries)
	var wf *WriteFailure
	if !errors.As(err, &wf) {
		t.Fatalf("Expected *WriteFailure, got %v", err)
	}

	// The poisoned batch holds the first three entries; the sibling batch
	// must still have been written.
	if len(wf.UnwrittenChunkIDs) != 3 {
		t.Fatalf("Expected 3 unwritten ids, got %d", len(wf.UnwrittenChunkIDs))
	}
	unwritten := make(map[string]bool)
	for _, id := range wf.UnwrittenChunkIDs {
		unwritten[id] = true
	}
	for i := 0; i < 3; i++ {
		if !unwritten[entries[i].Chunk.ChunkID] {
			t.Errorf("Entry %d missing from the resume list", i)
		}
	}
	n, _ := s.Count(context.Background())
	if n != 3 {
		t.Errorf("Expected the healthy batch written, got %d records", n)
	}
}

func TestUpsertEmptyIsNoop(t *testing.T) {
	s := newFlakyStore()
	w := NewWriter(s, Config{}, nil)
	if err := w.Upsert(context.Background(), nil); err != nil {
		t.Errorf("Empty upsert must succeed, got %v", err)
	}
	if s.upsertCalls != 0 {
		t.Errorf("Empty upsert must not hit the store, got %d calls", s.upsertCalls)
	}
}

func TestReindexNodeLeavesSiblingsUntouched(t *testing.T) {
	s := newFlakyStore()
	w := NewWriter(s, Config{BatchSize: 10}, nil)
	ctx := context.Background()

	if err := w.Upsert(ctx, makeEntries("26/61", 3)); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	if err := w.Upsert(ctx, makeEntries("26/62", 2)); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	// Re-chunk 26/61 into fewer chunks; its stale third chunk must go.
	if err := w.ReindexNode(ctx, "26/61", makeEntries("26/61", 2)); err != nil {
		t.Fatalf("Failed to reindex: %v", err)
	}

	n, _ := s.Count(ctx)
	if n != 4 {
		t.Errorf("Expected 2+2 records after reindex, got %d", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, stale := s.records[chunk.ChunkID([]string{"26/61"}, 2)]; stale {
		t.Error("Stale chunk survived the cascading delete")
	}
	for i := 0; i < 2; i++ {
		if _, ok := s.records[chunk.ChunkID([]string{"26/62"}, i)]; !ok {
			t.Errorf("Sibling node chunk %d was disturbed", i)
		}
	}
}

func TestWriteFailureError(t *testing.T) {
	cause := errors.New("connection refused")
	wf := &WriteFailure{UnwrittenChunkIDs: []string{"a", "b", "c", "d", "e", "f", "g"}, Err: cause}
	msg := wf.Error()
	if msg == "" {
		t.Fatal("Expected a message")
	}
	if !errors.Is(wf, cause) {
		t.Error("WriteFailure must unwrap to its cause")
	}
}

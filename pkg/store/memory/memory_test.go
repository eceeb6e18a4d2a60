// ABOUTME: Tests for the in-memory brute-force vector store
// ABOUTME: Verifies ranking determinism, hard filters and cascading deletes

package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nainya/lexindex/pkg/enrich"
	"github.com/nainya/lexindex/pkg/store"
)

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func setupStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	if err := s.Init(context.Background(), 3); err != nil {
		t.Fatalf("Failed to init store: %v", err)
	}
	return s
}

func seedRecords(t *testing.T, s *Store) {
	t.Helper()
	records := []store.Record{
		{
			ChunkID: "aaa", Vector: []float32{1, 0, 0}, Text: "gross income",
			Metadata: enrich.Metadata{
				Citation:      "Title 26 > § 61",
				AncestorPath:  []string{"26", "26/A"},
				SourceNodeIDs: []string{"26/A/61"},
			},
		},
		{
			ChunkID: "bbb", Vector: []float32{0.9, 0.1, 0}, Text: "adjusted gross income",
			Metadata: enrich.Metadata{
				Citation:       "Title 26 > § 62",
				AncestorPath:   []string{"26", "26/A"},
				SourceNodeIDs:  []string{"26/A/62"},
				EffectiveStart: date("2018-01-01"),
				EffectiveEnd:   date("2025-12-31"),
			},
		},
		{
			ChunkID: "ccc", Vector: []float32{0, 1, 0}, Text: "civil rights",
			Metadata: enrich.Metadata{
				Citation:      "Title 42 > § 1983",
				AncestorPath:  []string{"42"},
				SourceNodeIDs: []string{"42/1983"},
			},
		},
	}
	if err := s.Upsert(context.Background(), records); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
}

func TestUpsertBeforeInit(t *testing.T) {
	s := New()
	err := s.Upsert(context.Background(), []store.Record{{ChunkID: "x", Vector: []float32{1}}})
	if !errors.Is(err, store.ErrNotInitialized) {
		t.Errorf("Expected ErrNotInitialized, got %v", err)
	}
}

func TestDimensionMismatch(t *testing.T) {
	s := setupStore(t)
	err := s.Upsert(context.Background(), []store.Record{{ChunkID: "x", Vector: []float32{1, 0}}})
	if !errors.Is(err, store.ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}

	if err := New().Init(context.Background(), 0); !errors.Is(err, store.ErrDimensionMismatch) {
		t.Errorf("Expected Init to reject dimension 0, got %v", err)
	}
}

func TestSearchRanking(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)

	got, err := s.Search(context.Background(), []float32{1, 0, 0}, store.Filter{}, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 candidates, got %d", len(got))
	}
	if got[0].ChunkID != "aaa" || got[1].ChunkID != "bbb" || got[2].ChunkID != "ccc" {
		t.Errorf("Unexpected ranking: %s, %s, %s", got[0].ChunkID, got[1].ChunkID, got[2].ChunkID)
	}
	if got[0].Score < got[1].Score || got[1].Score < got[2].Score {
		t.Error("Scores must be non-increasing")
	}
}

func TestSearchTopKTruncation(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)

	got, err := s.Search(context.Background(), []float32{1, 0, 0}, store.Filter{}, 2)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 candidates, got %d", len(got))
	}
}

func TestSearchEmptyResultIsNotError(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)

	got, err := s.Search(context.Background(), []float32{1, 0, 0},
		store.Filter{Equals: map[string]string{"citation": "Title 26 > § 9999"}}, 10)
	if err != nil {
		t.Fatalf("Empty filtered set must not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no candidates, got %d", len(got))
	}
}

func TestFilterCitation(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)

	got, err := s.Search(context.Background(), []float32{1, 0, 0},
		store.Filter{Equals: map[string]string{"citation": "Title 26 > § 62"}}, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(got) != 1 || got[0].ChunkID != "bbb" {
		t.Errorf("Expected only bbb, got %v", got)
	}
}

func TestFilterSubtree(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)

	got, err := s.Search(context.Background(), []float32{0, 1, 0},
		store.Filter{AncestorContains: "26"}, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected the two Title 26 chunks, got %d", len(got))
	}
	for _, c := range got {
		if c.ChunkID == "ccc" {
			t.Error("Title 42 chunk leaked through the subtree filter")
		}
	}
}

func TestFilterEffectiveAt(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)

	// Inside bbb's range: everything matches (aaa and ccc have open ranges).
	got, err := s.Search(context.Background(), []float32{1, 0, 0},
		store.Filter{EffectiveAt: date("2020-06-15")}, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("Expected 3 candidates at 2020-06-15, got %d", len(got))
	}

	// Before bbb's range: bbb drops out.
	got, err = s.Search(context.Background(), []float32{1, 0, 0},
		store.Filter{EffectiveAt: date("2010-01-01")}, 10)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	for _, c := range got {
		if c.ChunkID == "bbb" {
			t.Error("Record outside its effective range matched")
		}
	}
}

func TestUpsertReplacesRecord(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)

	updated := store.Record{
		ChunkID: "aaa", Vector: []float32{0, 0, 1}, Text: "amended text",
		Metadata: enrich.Metadata{Citation: "Title 26 > § 61", SourceNodeIDs: []string{"26/A/61"}},
	}
	if err := s.Upsert(context.Background(), []store.Record{updated}); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}

	got, err := s.Search(context.Background(), []float32{0, 0, 1}, store.Filter{SourceNode: "26/A/61"}, 1)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if len(got) != 1 || got[0].Text != "amended text" {
		t.Errorf("Expected full replacement, got %v", got)
	}

	n, _ := s.Count(context.Background())
	if n != 3 {
		t.Errorf("Replacement must not grow the store: %d", n)
	}
}

func TestDeleteBySourceNode(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)

	if err := s.DeleteByFilter(context.Background(), store.Filter{SourceNode: "26/A/61"}); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	n, _ := s.Count(context.Background())
	if n != 2 {
		t.Errorf("Expected 2 records after delete, got %d", n)
	}
	got, _ := s.Search(context.Background(), []float32{1, 0, 0}, store.Filter{SourceNode: "26/A/61"}, 10)
	if len(got) != 0 {
		t.Error("Deleted node's chunks still retrievable")
	}
}

func TestSearchHonorsCancelledContext(t *testing.T) {
	s := setupStore(t)
	seedRecords(t, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Search(ctx, []float32{1, 0, 0}, store.Filter{}, 10); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

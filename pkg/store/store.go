// ABOUTME: Vector store abstraction over memory, sqlite and qdrant backends
// ABOUTME: Records are immutable once written except for full replacement

package store

import (
	"context"
	"errors"
	"time"

	"github.com/nainya/lexindex/pkg/enrich"
)

var (
	// ErrNotInitialized indicates use of a store before Init.
	ErrNotInitialized = errors.New("store: not initialized")

	// ErrDimensionMismatch indicates a vector whose length differs from the
	// store dimension.
	ErrDimensionMismatch = errors.New("store: vector dimension mismatch")
)

// Record is the persisted external form of a chunk:
// (chunk_id, vector, text, metadata).
type Record struct {
	ChunkID   string
	Vector    []float32
	Text      string
	Metadata  enrich.Metadata
	Seq       int
	NodeOrder int
}

// Candidate is a search hit with its similarity score.
type Candidate struct {
	Record
	Score float64
}

// Filter narrows a search or delete to records whose metadata satisfies
// every set predicate. Filters are hard constraints, never rank signals.
type Filter struct {
	// Equals requires metadata-key equality; supported key: citation.
	Equals map[string]string

	// SourceNode requires membership in source_node_ids.
	SourceNode string

	// AncestorContains requires the node id to appear in ancestor_path,
	// scoping retrieval to one subtree of the hierarchy.
	AncestorContains string

	// EffectiveAt requires the effective-date range to cover the instant.
	EffectiveAt *time.Time
}

// Empty reports whether no predicate is set.
func (f Filter) Empty() bool {
	return len(f.Equals) == 0 && f.SourceNode == "" && f.AncestorContains == "" && f.EffectiveAt == nil
}

// Matches evaluates the filter against a record. Backends without native
// predicate pushdown share this implementation.
func (f Filter) Matches(r Record) bool {
	for key, want := range f.Equals {
		switch key {
		case enrich.KeyCitation:
			if r.Metadata.Citation != want {
				return false
			}
		default:
			return false
		}
	}
	if f.SourceNode != "" && !r.Metadata.HasSourceNode(f.SourceNode) {
		return false
	}
	if f.AncestorContains != "" {
		found := false
		for _, id := range r.Metadata.AncestorPath {
			if id == f.AncestorContains {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.EffectiveAt != nil && !r.Metadata.EffectiveAt(*f.EffectiveAt) {
		return false
	}
	return true
}

// Store is the narrow interface the index writer and retriever depend on.
// The underlying engine's own concurrency control governs same-id races;
// last-writer-wins is acceptable because re-index fully supersedes.
type Store interface {
	// Init prepares the store for vectors of the given dimension.
	Init(ctx context.Context, dimension int) error

	// Upsert inserts or fully replaces records keyed by chunk id.
	Upsert(ctx context.Context, records []Record) error

	// Search returns up to topK candidates satisfying the filter, ordered by
	// similarity descending.
	Search(ctx context.Context, vector []float32, f Filter, topK int) ([]Candidate, error)

	// DeleteByFilter removes every record satisfying the filter.
	DeleteByFilter(ctx context.Context, f Filter) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)
}

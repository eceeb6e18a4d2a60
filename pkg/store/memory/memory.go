// ABOUTME: In-memory vector store using brute-force cosine similarity
// ABOUTME: Reference backend for tests and small corpora

package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/nainya/lexindex/pkg/store"
)

// Store keeps records in memory behind a read-write lock. Retrieval paths
// only take the read lock, so concurrent searches never block each other.
type Store struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]store.Record
}

func New() *Store { return &Store{} }

func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return store.ErrDimensionMismatch
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.records = make(map[string]store.Record)
	return nil
}

func (s *Store) Upsert(ctx context.Context, records []store.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		return store.ErrNotInitialized
	}
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return store.ErrDimensionMismatch
		}
	}
	// Same-id writes replace the prior record entirely.
	for _, r := range records {
		s.records[r.ChunkID] = r
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, f store.Filter, topK int) ([]store.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.records == nil {
		return nil, store.ErrNotInitialized
	}
	if topK <= 0 {
		return nil, nil
	}

	qm := magnitude(vector)
	if qm == 0 {
		return nil, nil
	}
	candidates := make([]store.Candidate, 0, len(s.records))
	for _, r := range s.records {
		if !f.Matches(r) {
			continue
		}
		rm := magnitude(r.Vector)
		if rm == 0 {
			continue
		}
		score := dot(vector, r.Vector) / (qm * rm)
		if math.IsNaN(score) {
			continue
		}
		candidates = append(candidates, store.Candidate{Record: r, Score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})
	if topK < len(candidates) {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func (s *Store) DeleteByFilter(ctx context.Context, f store.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records == nil {
		return store.ErrNotInitialized
	}
	for id, r := range s.records {
		if f.Matches(r) {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
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

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

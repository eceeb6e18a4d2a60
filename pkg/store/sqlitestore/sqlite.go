// ABOUTME: Durable local vector store backed by SQLite (modernc.org/sqlite)
// ABOUTME: Embeddings stored as little-endian float32 BLOBs

package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nainya/lexindex/pkg/enrich"
	"github.com/nainya/lexindex/pkg/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS chunks (
    chunk_id        TEXT PRIMARY KEY,
    text            TEXT NOT NULL,
    citation        TEXT,
    ancestor_path   TEXT,
    effective_start INTEGER,
    effective_end   INTEGER,
    cross_refs      TEXT,
    source_node_ids TEXT,
    seq             INTEGER,
    node_order      INTEGER,
    embedding       BLOB
);
CREATE INDEX IF NOT EXISTS idx_chunks_citation ON chunks(citation);
`

// Store persists records in a single SQLite database file. Similarity is
// computed in-process over the filtered row set; corpora here are per-title
// sized, so a brute-force scan stays well within budget.
type Store struct {
	db        *sql.DB
	dimension int
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return store.ErrDimensionMismatch
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlitestore: ensure schema: %w", err)
	}
	s.dimension = dimension
	return nil
}

func (s *Store) Upsert(ctx context.Context, records []store.Record) error {
	if s.dimension == 0 {
		return store.ErrNotInitialized
	}
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO chunks(chunk_id, text, citation, ancestor_path, effective_start,
                   effective_end, cross_refs, source_node_ids, seq, node_order, embedding)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(chunk_id) DO UPDATE SET
    text = excluded.text,
    citation = excluded.citation,
    ancestor_path = excluded.ancestor_path,
    effective_start = excluded.effective_start,
    effective_end = excluded.effective_end,
    cross_refs = excluded.cross_refs,
    source_node_ids = excluded.source_node_ids,
    seq = excluded.seq,
    node_order = excluded.node_order,
    embedding = excluded.embedding`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return store.ErrDimensionMismatch
		}
		ancestors, _ := json.Marshal(r.Metadata.AncestorPath)
		refs, _ := json.Marshal(r.Metadata.CrossReferences)
		sources, _ := json.Marshal(r.Metadata.SourceNodeIDs)
		if _, err := stmt.ExecContext(ctx,
			r.ChunkID, r.Text, r.Metadata.Citation, string(ancestors),
			unixOrNil(r.Metadata.EffectiveStart), unixOrNil(r.Metadata.EffectiveEnd),
			string(refs), string(sources), r.Seq, r.NodeOrder,
			encodeEmbedding(r.Vector)); err != nil {
			return fmt.Errorf("sqlitestore: upsert %s: %w", r.ChunkID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) Search(ctx context.Context, vector []float32, f store.Filter, topK int) ([]store.Candidate, error) {
	if s.dimension == 0 {
		return nil, store.ErrNotInitialized
	}
	if topK <= 0 {
		return nil, nil
	}
	qm := magnitude(vector)
	if qm == 0 {
		return nil, nil
	}

	records, err := s.scan(ctx, f)
	if err != nil {
		return nil, err
	}
	candidates := make([]store.Candidate, 0, len(records))
	for _, r := range records {
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
	records, err := s.scan(ctx, f)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, r := range records {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE chunk_id = ?`, r.ChunkID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// scan reads rows, narrowing on citation equality in SQL and evaluating the
// remaining predicates client-side.
func (s *Store) scan(ctx context.Context, f store.Filter) ([]store.Record, error) {
	query := `SELECT chunk_id, text, citation, ancestor_path, effective_start,
                  effective_end, cross_refs, source_node_ids, seq, node_order, embedding
              FROM chunks`
	var args []any
	if c, ok := f.Equals[enrich.KeyCitation]; ok {
		query += ` WHERE citation = ?`
		args = append(args, c)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Record
	for rows.Next() {
		var r store.Record
		var ancestors, refs, sources string
		var start, end sql.NullInt64
		var blob []byte
		if err := rows.Scan(&r.ChunkID, &r.Text, &r.Metadata.Citation, &ancestors,
			&start, &end, &refs, &sources, &r.Seq, &r.NodeOrder, &blob); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(ancestors), &r.Metadata.AncestorPath)
		_ = json.Unmarshal([]byte(refs), &r.Metadata.CrossReferences)
		_ = json.Unmarshal([]byte(sources), &r.Metadata.SourceNodeIDs)
		r.Metadata.EffectiveStart = timeOrNil(start)
		r.Metadata.EffectiveEnd = timeOrNil(end)
		r.Vector = decodeEmbedding(blob)
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out, rows.Err()
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
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

// ABOUTME: Qdrant vector store backend over the official gRPC client
// ABOUTME: Point ids are UUIDv5 of the chunk id, payload keeps the full record

package qdrantstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/nainya/lexindex/pkg/enrich"
	"github.com/nainya/lexindex/pkg/store"
)

// Open date bounds are stored as sentinel unix seconds so server-side range
// filters treat a missing date as unbounded.
const (
	openStartUnix = int64(0)
	openEndUnix   = int64(253402300799) // 9999-12-31T23:59:59Z
)

// chunkNamespace maps deterministic chunk ids onto the UUID space Qdrant
// requires for string point ids.
var chunkNamespace = uuid.MustParse("8f1c9d52-6e4b-4c73-9a1e-2b5d7c3f0a64")

// Config holds connection settings for a Qdrant instance.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
}

// Store speaks the Qdrant gRPC API.
type Store struct {
	client     *qdrant.Client
	collection string
	dimension  int
}

// Open dials the Qdrant instance. The gRPC call-size option mirrors the
// payload-heavy statute chunks.
func Open(cfg Config) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(32 * 1024 * 1024)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("qdrantstore: connect %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return &Store{client: client, collection: cfg.Collection}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return store.ErrDimensionMismatch
	}
	s.dimension = dimension
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("qdrantstore: check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrantstore: create collection: %w", err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, records []store.Record) error {
	if s.dimension == 0 {
		return store.ErrNotInitialized
	}
	if len(records) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, r := range records {
		if len(r.Vector) != s.dimension {
			return store.ErrDimensionMismatch
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(r.ChunkID)),
			Vectors: qdrant.NewVectors(r.Vector...),
			Payload: payload(r),
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrantstore: upsert %d points: %w", len(points), err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, vector []float32, f store.Filter, topK int) ([]store.Candidate, error) {
	if s.dimension == 0 {
		return nil, store.ErrNotInitialized
	}
	if topK <= 0 {
		return nil, nil
	}
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         buildFilter(f),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrantstore: query: %w", err)
	}
	out := make([]store.Candidate, 0, len(hits))
	for _, hit := range hits {
		out = append(out, store.Candidate{
			Record: recordFromPayload(hit.GetPayload()),
			Score:  float64(hit.GetScore()),
		})
	}
	return out, nil
}

func (s *Store) DeleteByFilter(ctx context.Context, f store.Filter) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelectorFilter(buildFilter(f)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrantstore: delete: %w", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrantstore: count: %w", err)
	}
	return int(n), nil
}

func pointID(chunkID string) string {
	return uuid.NewSHA1(chunkNamespace, []byte(chunkID)).String()
}

func buildFilter(f store.Filter) *qdrant.Filter {
	if f.Empty() {
		return nil
	}
	var must []*qdrant.Condition
	for key, v := range f.Equals {
		must = append(must, qdrant.NewMatch(key, v))
	}
	if f.SourceNode != "" {
		must = append(must, qdrant.NewMatch(enrich.KeySourceNodeIDs, f.SourceNode))
	}
	if f.AncestorContains != "" {
		must = append(must, qdrant.NewMatch(enrich.KeyAncestorPath, f.AncestorContains))
	}
	if f.EffectiveAt != nil {
		ts := float64(f.EffectiveAt.Unix())
		must = append(must,
			qdrant.NewRange(enrich.KeyEffectiveStart, &qdrant.Range{Lte: qdrant.PtrOf(ts)}),
			qdrant.NewRange(enrich.KeyEffectiveEnd, &qdrant.Range{Gte: qdrant.PtrOf(ts)}),
		)
	}
	return &qdrant.Filter{Must: must}
}

func payload(r store.Record) map[string]*qdrant.Value {
	start := openStartUnix
	if r.Metadata.EffectiveStart != nil {
		start = r.Metadata.EffectiveStart.Unix()
	}
	end := openEndUnix
	if r.Metadata.EffectiveEnd != nil {
		end = r.Metadata.EffectiveEnd.Unix()
	}
	return qdrant.NewValueMap(map[string]any{
		"chunk_id":               r.ChunkID,
		"text":                   r.Text,
		"seq":                    int64(r.Seq),
		"node_order":             int64(r.NodeOrder),
		enrich.KeyCitation:       r.Metadata.Citation,
		enrich.KeyAncestorPath:   toAnySlice(r.Metadata.AncestorPath),
		enrich.KeyCrossRefs:      toAnySlice(r.Metadata.CrossReferences),
		enrich.KeySourceNodeIDs:  toAnySlice(r.Metadata.SourceNodeIDs),
		enrich.KeyEffectiveStart: start,
		enrich.KeyEffectiveEnd:   end,
	})
}

func recordFromPayload(p map[string]*qdrant.Value) store.Record {
	r := store.Record{
		ChunkID:   p["chunk_id"].GetStringValue(),
		Text:      p["text"].GetStringValue(),
		Seq:       int(p["seq"].GetIntegerValue()),
		NodeOrder: int(p["node_order"].GetIntegerValue()),
	}
	r.Metadata.Citation = p[enrich.KeyCitation].GetStringValue()
	r.Metadata.AncestorPath = toStringSlice(p[enrich.KeyAncestorPath])
	r.Metadata.CrossReferences = toStringSlice(p[enrich.KeyCrossRefs])
	r.Metadata.SourceNodeIDs = toStringSlice(p[enrich.KeySourceNodeIDs])
	if ts := p[enrich.KeyEffectiveStart].GetIntegerValue(); ts > openStartUnix {
		t := time.Unix(ts, 0).UTC()
		r.Metadata.EffectiveStart = &t
	}
	if ts := p[enrich.KeyEffectiveEnd].GetIntegerValue(); ts > 0 && ts < openEndUnix {
		t := time.Unix(ts, 0).UTC()
		r.Metadata.EffectiveEnd = &t
	}
	return r
}

func toAnySlice(xs []string) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func toStringSlice(v *qdrant.Value) []string {
	list := v.GetListValue()
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		out = append(out, item.GetStringValue())
	}
	return out
}

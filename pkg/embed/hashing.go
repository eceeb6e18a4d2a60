// ABOUTME: Deterministic local embedder using term feature hashing
// ABOUTME: Used by tests, examples and offline runs without a model service

package embed

import (
	"context"
	"math"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// HashingEmbedder hashes lowercased terms into a fixed number of buckets
// and L2-normalizes the result. It carries no semantics beyond lexical
// overlap, which is exactly enough for deterministic tests and dry runs.
type HashingEmbedder struct {
	dimension int
}

// NewHashingEmbedder creates an embedder of the given dimension.
func NewHashingEmbedder(dimension int) *HashingEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashingEmbedder{dimension: dimension}
}

func (h *HashingEmbedder) Name() string   { return "hashing" }
func (h *HashingEmbedder) Dimension() int { return h.dimension }

func (h *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, h.dimension)
	for _, term := range strings.Fields(strings.ToLower(text)) {
		term = strings.Trim(term, ".,;:()[]§\"'")
		if term == "" {
			continue
		}
		bucket := xxhash.Sum64String(term) % uint64(h.dimension)
		vec[bucket]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (h *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// ABOUTME: Hierarchy-aware reranking over the top similarity candidates
// ABOUTME: Bounded ancestor boost plus adjacent-sibling context merging

package retrieve

import (
	"sort"

	"github.com/nainya/lexindex/pkg/store"
)

type scoredCandidate struct {
	store.Candidate
	boosted float64
}

// rerank re-orders candidates using hierarchy relationships. Chunks sharing
// an immediate parent with other top candidates get a bounded boost
// (converging evidence from the same statutory section), and adjacent
// sibling chunks collapse into one merged passage instead of surfacing as
// near-duplicate legal text. Output is deduplicated by chunk id.
func rerank(candidates []store.Candidate, cfg Config) []Passage {
	// Group co-located candidates by immediate parent.
	byParent := make(map[string][]int)
	for i, c := range candidates {
		byParent[parentOf(c)] = append(byParent[parentOf(c)], i)
	}

	scored := make([]scoredCandidate, len(candidates))
	for i, c := range candidates {
		s := scoredCandidate{Candidate: c, boosted: c.Score}
		if group := byParent[parentOf(c)]; len(group) > 1 {
			// Boost grows with the group but never exceeds BoostWeight.
			s.boosted += cfg.BoostWeight * float64(len(group)-1) / float64(len(group))
		}
		scored[i] = s
	}

	// Merge runs of adjacent chunks under the same parent. Within a parent,
	// order by source node position then chunk sequence, which is statute
	// reading order.
	consumed := make(map[string]bool)
	var passages []Passage
	for _, idxs := range byParent {
		sort.Slice(idxs, func(a, b int) bool {
			ca, cb := scored[idxs[a]], scored[idxs[b]]
			if ca.NodeOrder != cb.NodeOrder {
				return ca.NodeOrder < cb.NodeOrder
			}
			return ca.Seq < cb.Seq
		})

		var run []scoredCandidate
		flush := func() {
			if len(run) > 0 {
				passages = append(passages, mergeRun(run))
				run = nil
			}
		}
		for _, i := range idxs {
			c := scored[i]
			if consumed[c.ChunkID] {
				continue
			}
			consumed[c.ChunkID] = true
			if len(run) > 0 && !adjacent(run[len(run)-1].Candidate, c.Candidate, cfg.SiblingMergeWindow) {
				flush()
			}
			run = append(run, c)
		}
		flush()
	}

	sort.Slice(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		return passages[i].ChunkID < passages[j].ChunkID
	})
	return passages
}

// parentOf returns the candidate's immediate parent node id, empty for
// chunks of the root.
func parentOf(c store.Candidate) string {
	if n := len(c.Metadata.AncestorPath); n > 0 {
		return c.Metadata.AncestorPath[n-1]
	}
	return ""
}

// adjacent reports whether two same-parent chunks are close enough to merge:
// consecutive chunks of one node, or sibling nodes within the window.
func adjacent(a, b store.Candidate, window int) bool {
	if sameSource(a, b) {
		return b.Seq-a.Seq <= 1
	}
	return b.NodeOrder-a.NodeOrder <= window
}

func sameSource(a, b store.Candidate) bool {
	if len(a.Metadata.SourceNodeIDs) == 0 || len(b.Metadata.SourceNodeIDs) == 0 {
		return false
	}
	return a.Metadata.SourceNodeIDs[0] == b.Metadata.SourceNodeIDs[0]
}

// mergeRun folds a run of adjacent candidates into one passage. Text
// concatenates in reading order; scores keep the best of the run so the
// merge never outranks what its strongest member earned.
func mergeRun(run []scoredCandidate) Passage {
	best := run[0]
	var ids []string
	text := ""
	for i, c := range run {
		if c.boosted > best.boosted {
			best = c
		}
		if i > 0 {
			text += "\n\n"
		}
		text += c.Text
		ids = append(ids, c.ChunkID)
	}
	p := Passage{
		ChunkID:      best.ChunkID,
		Text:         text,
		Citation:     best.Metadata.Citation,
		AncestorPath: best.Metadata.AncestorPath,
		Similarity:   best.Score,
		Score:        best.boosted,
	}
	if len(ids) > 1 {
		p.MergedChunkIDs = ids
	}
	return p
}

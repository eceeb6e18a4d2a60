// ABOUTME: Hierarchical chunker producing retrievable units from tree nodes
// ABOUTME: Semantic boundaries, forward merge under a token budget, no truncation

package chunk

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/nainya/lexindex/pkg/tree"
)

// DefaultMaxTokens is the merge budget applied when none is configured.
const DefaultMaxTokens = 512

// Chunk is a retrievable unit derived from one node. A chunk never spans a
// level boundary: its text is a contiguous slice of a single node's
// normalized body.
type Chunk struct {
	ChunkID       string
	Text          string
	AncestorPath  []string // node ids, root to immediate parent
	Citation      string   // filled by the enricher
	TokenCount    int
	SourceNodeIDs []string
	Seq           int // sequence among chunks of the same node
	NodeOrder     int // source node's position among its siblings
	Oversize      bool
}

// SizeWarning reports a segment whose size alone exceeds the budget. The
// chunk is emitted whole; truncating would silently drop legal meaning.
type SizeWarning struct {
	NodeID    string
	ChunkID   string
	Tokens    int
	MaxTokens int
}

func (w SizeWarning) String() string {
	return fmt.Sprintf("chunk %s of node %s is %d tokens (budget %d), emitted whole",
		w.ChunkID, w.NodeID, w.Tokens, w.MaxTokens)
}

// Chunker converts node bodies into chunks. The zero value is usable with
// the default budget.
type Chunker struct {
	// MaxTokens is the merge budget T_max. Segments merge forward while the
	// combined count stays within it.
	MaxTokens int

	// OnWarning receives oversize notifications. Nil drops them.
	OnWarning func(SizeWarning)
}

func (c *Chunker) maxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return DefaultMaxTokens
}

// ChunkNode emits the chunks of a single node in sequence order. Re-running
// on an unchanged node reproduces identical chunk ids and texts.
func (c *Chunker) ChunkNode(t *tree.Tree, n *tree.Node) []Chunk {
	normalized := Normalize(n.BodyText)
	if normalized == "" {
		return nil
	}
	segs := segments(normalized)
	budget := c.maxTokens()

	// Greedy forward merge: a short segment combines with the following
	// sibling first, preserving forward legal reading order. The budget is
	// judged on the per-segment sums; re-counting the merged text can round
	// differently and would flag a splittable chunk as oversize.
	type piece struct {
		text   string
		tokens int
	}
	var merged []piece
	var cur strings.Builder
	curTokens := 0
	flush := func() {
		if cur.Len() > 0 {
			merged = append(merged, piece{text: cur.String(), tokens: curTokens})
			cur.Reset()
			curTokens = 0
		}
	}
	for _, seg := range segs {
		segTokens := CountTokens(seg)
		if curTokens > 0 && curTokens+segTokens > budget {
			flush()
		}
		cur.WriteString(seg)
		curTokens += segTokens
		if curTokens > budget {
			flush()
		}
	}
	flush()

	ancestors := t.AncestorPath(n.ID)
	chunks := make([]Chunk, 0, len(merged))
	for seq, p := range merged {
		ck := Chunk{
			ChunkID:       ChunkID([]string{n.ID}, seq),
			Text:          p.text,
			AncestorPath:  ancestors,
			TokenCount:    p.tokens,
			SourceNodeIDs: []string{n.ID},
			Seq:           seq,
			NodeOrder:     n.OrderIndex,
		}
		if p.tokens > budget {
			ck.Oversize = true
			if c.OnWarning != nil {
				c.OnWarning(SizeWarning{
					NodeID:    n.ID,
					ChunkID:   ck.ChunkID,
					Tokens:    p.tokens,
					MaxTokens: budget,
				})
			}
		}
		chunks = append(chunks, ck)
	}
	return chunks
}

// ChunkTree eagerly collects the chunks of every body-bearing node in
// depth-first document order. Prefer Cursor for large corpora.
func (c *Chunker) ChunkTree(t *tree.Tree) []Chunk {
	var out []Chunk
	t.Walk(func(n *tree.Node) bool {
		out = append(out, c.ChunkNode(t, n)...)
		return true
	})
	return out
}

// ChunkID derives the deterministic chunk identity from the source node ids
// and the chunk's sequence number.
func ChunkID(sourceNodeIDs []string, seq int) string {
	h := xxhash.New()
	h.WriteString(strings.Join(sourceNodeIDs, "|"))
	h.WriteString("#")
	h.WriteString(strconv.Itoa(seq))
	return fmt.Sprintf("%016x", h.Sum64())
}

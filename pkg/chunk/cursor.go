// ABOUTME: Lazy depth-first chunk production over a document tree
// ABOUTME: Bounded memory: at most one node's chunks are buffered at a time

package chunk

import "github.com/nainya/lexindex/pkg/tree"

// Cursor yields chunks one at a time while walking the tree depth-first.
// Large corpora index in bounded memory because only the current node's
// chunks are ever materialized.
type Cursor struct {
	c       *Chunker
	t       *tree.Tree
	stack   []string
	pending []Chunk
}

// Cursor starts a lazy walk from the tree root.
func (c *Chunker) Cursor(t *tree.Tree) *Cursor {
	cur := &Cursor{c: c, t: t}
	if root := t.Root(); root != nil {
		cur.stack = []string{root.ID}
	}
	return cur
}

// Next returns the next chunk in document order. The second return value is
// false once the walk is exhausted.
func (cur *Cursor) Next() (Chunk, bool) {
	for {
		if len(cur.pending) > 0 {
			ck := cur.pending[0]
			cur.pending = cur.pending[1:]
			return ck, true
		}
		if len(cur.stack) == 0 {
			return Chunk{}, false
		}
		id := cur.stack[len(cur.stack)-1]
		cur.stack = cur.stack[:len(cur.stack)-1]
		n, ok := cur.t.Node(id)
		if !ok {
			continue
		}
		// Push children in reverse so they pop in sibling order.
		for i := len(n.ChildIDs) - 1; i >= 0; i-- {
			cur.stack = append(cur.stack, n.ChildIDs[i])
		}
		cur.pending = cur.c.ChunkNode(cur.t, n)
	}
}

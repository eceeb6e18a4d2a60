// ABOUTME: Core data model for the statutory document tree
// ABOUTME: Defines levels, parsed elements and arena-backed nodes

package tree

import (
	"strings"
	"time"
)

// Level identifies a node's position in the statutory hierarchy.
type Level int

const (
	LevelTitle Level = iota
	LevelSubtitle
	LevelChapter
	LevelSection
	LevelSubsection
	LevelParagraph
)

// Label returns the human-readable level name used in citations.
func (l Level) Label() string {
	switch l {
	case LevelTitle:
		return "Title"
	case LevelSubtitle:
		return "Subtitle"
	case LevelChapter:
		return "Chapter"
	case LevelSection:
		return "Section"
	case LevelSubsection:
		return "Subsection"
	case LevelParagraph:
		return "Paragraph"
	default:
		return "Unknown"
	}
}

func (l Level) String() string { return l.Label() }

// ParseLevel converts a level name (case-insensitive) to its Level.
func ParseLevel(s string) (Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "title":
		return LevelTitle, true
	case "subtitle":
		return LevelSubtitle, true
	case "chapter":
		return LevelChapter, true
	case "section":
		return LevelSection, true
	case "subsection":
		return LevelSubsection, true
	case "paragraph":
		return LevelParagraph, true
	default:
		return 0, false
	}
}

// Element is one parsed structural unit in document order, as produced by
// the upstream source parser. Acquisition and cleaning of raw sources is
// outside this module; elements arrive already stripped of boilerplate.
type Element struct {
	Level          Level
	Designator     string // citation component, e.g. "26", "A", "1", "61"
	Heading        string
	Body           string
	EffectiveStart *time.Time
	EffectiveEnd   *time.Time
	Meta           map[string]string
}

// Node is a single node in the document tree. Nodes live in the Tree arena
// and reference each other by id only, so there is no cyclic ownership.
type Node struct {
	ID             string // deterministic citation path, e.g. "26/A/1/61"
	Level          Level
	Designator     string
	TitleText      string
	BodyText       string // text owned exclusively by this node
	OrderIndex     int    // position among siblings
	ParentID       string // empty for the root
	ChildIDs       []string
	Synthetic      bool // placeholder inserted for a missing intermediate level
	EffectiveStart *time.Time
	EffectiveEnd   *time.Time
	Meta           map[string]string
}

// Tree is an arena of nodes indexed by id with a single root.
type Tree struct {
	rootID string
	nodes  map[string]*Node
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.nodes[t.rootID] }

// Node looks up a node by id.
func (t *Tree) Node(id string) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Len returns the total number of nodes, placeholders included.
func (t *Tree) Len() int { return len(t.nodes) }

// Children returns a node's children in sibling order.
func (t *Tree) Children(id string) []*Node {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := make([]*Node, 0, len(n.ChildIDs))
	for _, cid := range n.ChildIDs {
		out = append(out, t.nodes[cid])
	}
	return out
}

// AncestorPath returns node ids from the root down to the node's immediate
// parent. The root itself has an empty path. Cost is O(depth).
func (t *Tree) AncestorPath(id string) []string {
	var rev []string
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	for n.ParentID != "" {
		rev = append(rev, n.ParentID)
		n = t.nodes[n.ParentID]
	}
	path := make([]string, len(rev))
	for i := range rev {
		path[i] = rev[len(rev)-1-i]
	}
	return path
}

// Walk visits nodes depth-first in document order. Returning false from fn
// stops the walk.
func (t *Tree) Walk(fn func(*Node) bool) {
	var visit func(id string) bool
	visit = func(id string) bool {
		n := t.nodes[id]
		if !fn(n) {
			return false
		}
		for _, cid := range n.ChildIDs {
			if !visit(cid) {
				return false
			}
		}
		return true
	}
	if t.rootID != "" {
		visit(t.rootID)
	}
}

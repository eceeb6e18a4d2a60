// ABOUTME: Builds a single-rooted statute tree from parsed elements
// ABOUTME: Produces deterministic citation-path node ids across runs

package tree

import (
	"fmt"
	"strconv"
	"strings"
)

// placeholderDesignator is the citation component used for synthesized
// intermediate nodes, kept stable so rebuilt trees reproduce identical ids.
const placeholderDesignator = "_"

// Builder turns a flat element sequence into a Tree.
//
// Two level-skip policies exist. The default (lenient) attaches a deeper
// element directly under the current container, which matches real statutory
// sources where sections sit directly under a title with no chapter heading.
// Strict mode synthesizes one placeholder node per missing intermediate
// level instead. Either way a Warning is recorded and the build continues.
type Builder struct {
	// Strict enables placeholder synthesis for skipped levels.
	Strict bool

	// OnWarning receives recoverable structural anomalies. Nil means warnings
	// are collected but not reported anywhere else.
	OnWarning func(Warning)

	warnings []Warning
}

// Warnings returns the anomalies recorded by the most recent Build.
func (b *Builder) Warnings() []Warning { return b.warnings }

func (b *Builder) warn(w Warning) {
	b.warnings = append(b.warnings, w)
	if b.OnWarning != nil {
		b.OnWarning(w)
	}
}

// Build consumes elements in document order and returns the tree. Node ids
// are a pure function of the ancestor citation path, so two builds over
// unchanged input produce byte-identical ids.
func (b *Builder) Build(elements []Element) (*Tree, error) {
	b.warnings = nil
	if len(elements) == 0 {
		return nil, &StructuralError{Index: -1, Err: ErrNoElements}
	}

	t := &Tree{nodes: make(map[string]*Node, len(elements))}
	var stack []*Node

	for i, el := range elements {
		// Close containers at the same or a deeper level.
		for len(stack) > 0 && stack[len(stack)-1].Level >= el.Level {
			stack = stack[:len(stack)-1]
		}

		if len(stack) == 0 {
			if t.rootID != "" {
				return nil, &StructuralError{Index: i, Level: el.Level, Designator: el.Designator, Err: ErrMultipleRoots}
			}
			root := b.newNode(t, nil, el)
			t.rootID = root.ID
			stack = append(stack, root)
			continue
		}

		parent := stack[len(stack)-1]
		if el.Level > parent.Level+1 {
			if b.Strict {
				for lvl := parent.Level + 1; lvl < el.Level; lvl++ {
					parent = b.synthesize(t, parent, lvl)
					stack = append(stack, parent)
				}
			} else {
				b.warn(Warning{
					Kind:  WarnLevelSkip,
					Level: el.Level,
					Msg:   fmt.Sprintf("%s %s nested directly under %s %s", el.Level, el.Designator, parent.Level, parent.Designator),
				})
			}
		}

		node := b.newNode(t, parent, el)
		stack = append(stack, node)
	}

	return t, nil
}

func (b *Builder) newNode(t *Tree, parent *Node, el Element) *Node {
	designator := strings.TrimSpace(el.Designator)
	order := 0
	parentID := ""
	if parent != nil {
		order = len(parent.ChildIDs)
		parentID = parent.ID
	}
	if designator == "" {
		// Fall back to the sibling position so the id stays deterministic.
		designator = strconv.Itoa(order + 1)
	}

	id := designator
	if parent != nil {
		id = parent.ID + "/" + designator
	}
	if _, exists := t.nodes[id]; exists {
		// Duplicate sibling designators occur in amended statutes; disambiguate
		// rather than abort, and keep the suffix stable.
		base := id
		for n := 2; ; n++ {
			id = base + "~" + strconv.Itoa(n)
			if _, clash := t.nodes[id]; !clash {
				break
			}
		}
		b.warn(Warning{
			Kind:   WarnDuplicateDesignator,
			NodeID: id,
			Level:  el.Level,
			Msg:    fmt.Sprintf("duplicate designator %q under %s", designator, parentID),
		})
	}

	node := &Node{
		ID:             id,
		Level:          el.Level,
		Designator:     designator,
		TitleText:      strings.TrimSpace(el.Heading),
		BodyText:       el.Body,
		OrderIndex:     order,
		ParentID:       parentID,
		EffectiveStart: el.EffectiveStart,
		EffectiveEnd:   el.EffectiveEnd,
		Meta:           el.Meta,
	}
	t.nodes[id] = node
	if parent != nil {
		parent.ChildIDs = append(parent.ChildIDs, node.ID)
	}
	return node
}

func (b *Builder) synthesize(t *Tree, parent *Node, lvl Level) *Node {
	id := parent.ID + "/" + placeholderDesignator
	if existing, ok := t.nodes[id]; ok && existing.Synthetic && existing.Level == lvl {
		return existing
	}
	node := &Node{
		ID:         id,
		Level:      lvl,
		Designator: placeholderDesignator,
		OrderIndex: len(parent.ChildIDs),
		ParentID:   parent.ID,
		Synthetic:  true,
	}
	t.nodes[id] = node
	parent.ChildIDs = append(parent.ChildIDs, node.ID)
	b.warn(Warning{
		Kind:   WarnSyntheticNode,
		NodeID: id,
		Level:  lvl,
		Msg:    fmt.Sprintf("synthesized placeholder %s under %s", lvl, parent.ID),
	})
	return node
}

// ABOUTME: Attaches citations, effective dates and cross-references to chunks
// ABOUTME: Dates inherit top-down with child overriding parent

package enrich

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/nainya/lexindex/pkg/chunk"
	"github.com/nainya/lexindex/pkg/tree"
)

// Cross-reference patterns found in statutory text. Resolution is
// best-effort: an unmatched reference yields an empty list, never an error.
var (
	sectionRefRE = regexp.MustCompile(`(?i)\bsections?\s+(\d+[A-Za-z]?(?:\([0-9a-zA-Z]{1,4}\))*)`)
	uscRefRE     = regexp.MustCompile(`\b(\d+)\s+U\.S\.C\.\s*§+\s*(\d+[A-Za-z]?)`)
)

// Enricher derives metadata for chunks of one tree.
type Enricher struct {
	t *tree.Tree
}

func NewEnricher(t *tree.Tree) *Enricher { return &Enricher{t: t} }

// Enrich computes the metadata of a chunk and fills its citation.
func (e *Enricher) Enrich(ck *chunk.Chunk) Metadata {
	nodeID := ""
	if len(ck.SourceNodeIDs) > 0 {
		nodeID = ck.SourceNodeIDs[0]
	}
	m := Metadata{
		Citation:        e.Citation(nodeID),
		AncestorPath:    ck.AncestorPath,
		CrossReferences: ExtractCrossReferences(ck.Text),
		SourceNodeIDs:   ck.SourceNodeIDs,
	}
	m.EffectiveStart, m.EffectiveEnd = e.effectiveDates(nodeID)
	ck.Citation = m.Citation
	return m
}

// Citation renders the human-readable legal citation by walking the
// ancestor path: level label plus designator per component, subdivision
// designators folded onto the section ("§ 61(a)(1)"). Synthesized
// placeholder nodes are skipped.
func (e *Enricher) Citation(nodeID string) string {
	chain := e.chain(nodeID)
	var comps []string
	for _, n := range chain {
		if n.Synthetic {
			continue
		}
		switch n.Level {
		case tree.LevelSection:
			comps = append(comps, "§ "+n.Designator)
		case tree.LevelSubsection, tree.LevelParagraph:
			if len(comps) > 0 && strings.HasPrefix(comps[len(comps)-1], "§ ") {
				comps[len(comps)-1] += "(" + n.Designator + ")"
			} else {
				comps = append(comps, n.Level.Label()+" ("+n.Designator+")")
			}
		default:
			comps = append(comps, n.Level.Label()+" "+n.Designator)
		}
	}
	return strings.Join(comps, " > ")
}

// CompactCitation renders the short statutory form, e.g. "26 U.S.C. § 61(a)".
// It falls back to Citation when the path holds no title/section pair.
func (e *Enricher) CompactCitation(nodeID string) string {
	chain := e.chain(nodeID)
	title := ""
	section := ""
	for _, n := range chain {
		switch n.Level {
		case tree.LevelTitle:
			title = n.Designator
		case tree.LevelSection:
			section = n.Designator
		case tree.LevelSubsection, tree.LevelParagraph:
			if section != "" {
				section += "(" + n.Designator + ")"
			}
		}
	}
	if title == "" || section == "" {
		return e.Citation(nodeID)
	}
	return fmt.Sprintf("%s U.S.C. § %s", title, section)
}

// effectiveDates walks root to node; the deepest explicit value wins, so a
// subsection with its own date overrides its section's.
func (e *Enricher) effectiveDates(nodeID string) (start, end *time.Time) {
	for _, n := range e.chain(nodeID) {
		if n.EffectiveStart != nil {
			start = n.EffectiveStart
		}
		if n.EffectiveEnd != nil {
			end = n.EffectiveEnd
		}
	}
	return start, end
}

// chain returns root..node, inclusive.
func (e *Enricher) chain(nodeID string) []*tree.Node {
	n, ok := e.t.Node(nodeID)
	if !ok {
		return nil
	}
	var out []*tree.Node
	for _, id := range e.t.AncestorPath(nodeID) {
		if a, ok := e.t.Node(id); ok {
			out = append(out, a)
		}
	}
	return append(out, n)
}

// ExtractCrossReferences pulls in-text statutory references from a chunk.
// The result is sorted and deduplicated; no match means an empty list.
func ExtractCrossReferences(text string) []string {
	seen := make(map[string]struct{})
	for _, m := range sectionRefRE.FindAllStringSubmatch(text, -1) {
		seen["§ "+m[1]] = struct{}{}
	}
	for _, m := range uscRefRE.FindAllStringSubmatch(text, -1) {
		seen[m[1]+" U.S.C. § "+m[2]] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for ref := range seen {
		out = append(out, ref)
	}
	sort.Strings(out)
	return out
}

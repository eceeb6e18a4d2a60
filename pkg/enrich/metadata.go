// ABOUTME: Structured metadata attached to chunks for filtered retrieval
// ABOUTME: Fixed key set shared with the vector store payload layout

package enrich

import "time"

// Fixed metadata keys of the persisted record layout.
const (
	KeyCitation       = "citation"
	KeyAncestorPath   = "ancestor_path"
	KeyEffectiveStart = "effective_date_start"
	KeyEffectiveEnd   = "effective_date_end"
	KeyCrossRefs      = "cross_references"
	KeySourceNodeIDs  = "source_node_ids"
)

// Metadata is the structured payload stored alongside each chunk.
type Metadata struct {
	Citation        string
	AncestorPath    []string
	EffectiveStart  *time.Time
	EffectiveEnd    *time.Time
	CrossReferences []string
	SourceNodeIDs   []string
}

// EffectiveAt reports whether the chunk's effective-date range covers ts.
// Open ends are treated as unbounded.
func (m Metadata) EffectiveAt(ts time.Time) bool {
	if m.EffectiveStart != nil && ts.Before(*m.EffectiveStart) {
		return false
	}
	if m.EffectiveEnd != nil && ts.After(*m.EffectiveEnd) {
		return false
	}
	return true
}

// HasSourceNode reports whether the chunk derives from the given node.
func (m Metadata) HasSourceNode(nodeID string) bool {
	for _, id := range m.SourceNodeIDs {
		if id == nodeID {
			return true
		}
	}
	return false
}

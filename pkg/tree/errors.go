// ABOUTME: Error and warning types for tree construction
// ABOUTME: Structural anomalies are recovered locally and reported, not fatal

package tree

import (
	"errors"
	"fmt"
)

var (
	// ErrNoElements indicates Build was called with an empty element sequence.
	ErrNoElements = errors.New("tree: no elements")

	// ErrMultipleRoots indicates a second top-level element where a single
	// root was expected.
	ErrMultipleRoots = errors.New("tree: multiple root elements")
)

// StructuralError reports document hierarchy input that cannot form a tree.
// It wraps one of the sentinels above, so errors.Is keeps working.
// Recoverable anomalies (level skips, duplicate designators) are downgraded
// to warnings instead.
type StructuralError struct {
	Index      int // position of the offending element, -1 when there is none
	Level      Level
	Designator string
	Err        error
}

func (e *StructuralError) Error() string {
	if e.Index < 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: element %d (%s %s)", e.Err, e.Index, e.Level, e.Designator)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// WarningKind classifies recoverable structural anomalies.
type WarningKind string

const (
	WarnLevelSkip           WarningKind = "level_skip"
	WarnSyntheticNode       WarningKind = "synthetic_node"
	WarnDuplicateDesignator WarningKind = "duplicate_designator"
)

// Warning describes a structural anomaly that was recovered during Build.
type Warning struct {
	Kind   WarningKind
	NodeID string
	Level  Level
	Msg    string
}

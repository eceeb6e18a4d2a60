// ABOUTME: Tests for tree construction from flat element sequences
// ABOUTME: Verifies deterministic ids, level-skip policies and warnings

package tree

import (
	"errors"
	"reflect"
	"testing"
)

func taxElements() []Element {
	return []Element{
		{Level: LevelTitle, Designator: "26", Heading: "Internal Revenue Code"},
		{Level: LevelSubtitle, Designator: "A", Heading: "Income Taxes"},
		{Level: LevelChapter, Designator: "1", Heading: "Normal Taxes and Surtaxes"},
		{Level: LevelSection, Designator: "61", Heading: "Gross income defined", Body: "Gross income means all income."},
		{Level: LevelSubsection, Designator: "a", Body: "General definition."},
		{Level: LevelSubsection, Designator: "b", Body: "Cross references."},
		{Level: LevelSection, Designator: "62", Heading: "Adjusted gross income defined", Body: "Adjusted gross income means gross income minus deductions."},
	}
}

func TestBuildBasicHierarchy(t *testing.T) {
	b := &Builder{}
	tr, err := b.Build(taxElements())
	if err != nil {
		t.Fatalf("Failed to build: %v", err)
	}

	if tr.Len() != 7 {
		t.Errorf("Expected 7 nodes, got %d", tr.Len())
	}

	root := tr.Root()
	if root.ID != "26" {
		t.Errorf("Expected root id '26', got '%s'", root.ID)
	}
	if root.Level != LevelTitle {
		t.Errorf("Expected root level Title, got %s", root.Level)
	}

	sec, ok := tr.Node("26/A/1/61")
	if !ok {
		t.Fatal("Expected node 26/A/1/61 to exist")
	}
	if sec.TitleText != "Gross income defined" {
		t.Errorf("Unexpected heading: %s", sec.TitleText)
	}
	if sec.ParentID != "26/A/1" {
		t.Errorf("Expected parent 26/A/1, got %s", sec.ParentID)
	}

	kids := tr.Children(sec.ID)
	if len(kids) != 2 {
		t.Fatalf("Expected 2 subsections, got %d", len(kids))
	}
	if kids[0].ID != "26/A/1/61/a" || kids[1].ID != "26/A/1/61/b" {
		t.Errorf("Unexpected child ids: %s, %s", kids[0].ID, kids[1].ID)
	}
	if kids[0].OrderIndex != 0 || kids[1].OrderIndex != 1 {
		t.Errorf("Unexpected sibling order: %d, %d", kids[0].OrderIndex, kids[1].OrderIndex)
	}
}

func TestBuildDeterministicIDs(t *testing.T) {
	first, err := (&Builder{}).Build(taxElements())
	if err != nil {
		t.Fatalf("Failed to build: %v", err)
	}
	second, err := (&Builder{}).Build(taxElements())
	if err != nil {
		t.Fatalf("Failed to rebuild: %v", err)
	}

	var a, b []string
	first.Walk(func(n *Node) bool { a = append(a, n.ID); return true })
	second.Walk(func(n *Node) bool { b = append(b, n.ID); return true })
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Rebuild changed ids:\n%v\n%v", a, b)
	}
}

func TestWalkDocumentOrder(t *testing.T) {
	tr, err := (&Builder{}).Build(taxElements())
	if err != nil {
		t.Fatalf("Failed to build: %v", err)
	}

	var ids []string
	tr.Walk(func(n *Node) bool { ids = append(ids, n.ID); return true })
	want := []string{"26", "26/A", "26/A/1", "26/A/1/61", "26/A/1/61/a", "26/A/1/61/b", "26/A/1/62"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("Expected walk order %v, got %v", want, ids)
	}
}

func TestAncestorPath(t *testing.T) {
	tr, err := (&Builder{}).Build(taxElements())
	if err != nil {
		t.Fatalf("Failed to build: %v", err)
	}

	path := tr.AncestorPath("26/A/1/61/a")
	want := []string{"26", "26/A", "26/A/1", "26/A/1/61"}
	if !reflect.DeepEqual(path, want) {
		t.Errorf("Expected path %v, got %v", want, path)
	}

	if got := tr.AncestorPath("26"); len(got) != 0 {
		t.Errorf("Expected empty path for root, got %v", got)
	}
}

func TestLevelSkipLenient(t *testing.T) {
	elements := []Element{
		{Level: LevelTitle, Designator: "1", Heading: "General Provisions"},
		{Level: LevelSection, Designator: "1", Body: "Words importing the singular include the plural."},
		{Level: LevelSection, Designator: "2", Body: "The word county includes a parish."},
	}

	b := &Builder{}
	tr, err := b.Build(elements)
	if err != nil {
		t.Fatalf("Failed to build: %v", err)
	}

	// Sections attach directly under the title.
	sec, ok := tr.Node("1/1")
	if !ok {
		t.Fatal("Expected node 1/1 to exist")
	}
	if sec.ParentID != "1" {
		t.Errorf("Expected parent '1', got '%s'", sec.ParentID)
	}
	if path := tr.AncestorPath(sec.ID); len(path) != 1 || path[0] != "1" {
		t.Errorf("Expected ancestor path [1], got %v", path)
	}

	warnings := b.Warnings()
	if len(warnings) != 2 {
		t.Fatalf("Expected 2 level-skip warnings, got %d", len(warnings))
	}
	for _, w := range warnings {
		if w.Kind != WarnLevelSkip {
			t.Errorf("Expected WarnLevelSkip, got %s", w.Kind)
		}
	}
}

func TestLevelSkipStrict(t *testing.T) {
	elements := []Element{
		{Level: LevelTitle, Designator: "1"},
		{Level: LevelSection, Designator: "1", Body: "Body one."},
		{Level: LevelSection, Designator: "2", Body: "Body two."},
	}

	b := &Builder{Strict: true}
	tr, err := b.Build(elements)
	if err != nil {
		t.Fatalf("Failed to build: %v", err)
	}

	// One placeholder per skipped level: subtitle and chapter.
	subtitle, ok := tr.Node("1/_")
	if !ok || !subtitle.Synthetic {
		t.Fatal("Expected synthetic subtitle placeholder at 1/_")
	}
	chapter, ok := tr.Node("1/_/_")
	if !ok || !chapter.Synthetic {
		t.Fatal("Expected synthetic chapter placeholder at 1/_/_")
	}

	sec, ok := tr.Node("1/_/_/1")
	if !ok {
		t.Fatal("Expected section under placeholders")
	}
	if sec.ParentID != chapter.ID {
		t.Errorf("Expected section parent %s, got %s", chapter.ID, sec.ParentID)
	}

	// The second section reuses the existing placeholders.
	if _, ok := tr.Node("1/_/_/2"); !ok {
		t.Error("Expected second section to share the placeholder chain")
	}
	synthetic := 0
	tr.Walk(func(n *Node) bool {
		if n.Synthetic {
			synthetic++
		}
		return true
	})
	if synthetic != 2 {
		t.Errorf("Expected 2 synthetic nodes, got %d", synthetic)
	}
}

func TestDuplicateDesignators(t *testing.T) {
	elements := []Element{
		{Level: LevelTitle, Designator: "26"},
		{Level: LevelSection, Designator: "132", Body: "Original."},
		{Level: LevelSection, Designator: "132", Body: "Duplicate enacted by a later amendment."},
	}

	b := &Builder{}
	tr, err := b.Build(elements)
	if err != nil {
		t.Fatalf("Failed to build: %v", err)
	}

	if _, ok := tr.Node("26/132"); !ok {
		t.Error("Expected original node 26/132")
	}
	dup, ok := tr.Node("26/132~2")
	if !ok {
		t.Fatal("Expected disambiguated node 26/132~2")
	}
	if dup.BodyText != "Duplicate enacted by a later amendment." {
		t.Errorf("Disambiguated node has wrong body: %s", dup.BodyText)
	}

	found := false
	for _, w := range b.Warnings() {
		if w.Kind == WarnDuplicateDesignator {
			found = true
		}
	}
	if !found {
		t.Error("Expected a duplicate-designator warning")
	}
}

func TestBuildErrors(t *testing.T) {
	if _, err := (&Builder{}).Build(nil); !errors.Is(err, ErrNoElements) {
		t.Errorf("Expected ErrNoElements, got %v", err)
	}

	twoRoots := []Element{
		{Level: LevelTitle, Designator: "26"},
		{Level: LevelTitle, Designator: "42"},
	}
	if _, err := (&Builder{}).Build(twoRoots); !errors.Is(err, ErrMultipleRoots) {
		t.Errorf("Expected ErrMultipleRoots, got %v", err)
	}
}

func TestBuildFatalErrorsAreStructural(t *testing.T) {
	var se *StructuralError

	_, err := (&Builder{}).Build(nil)
	if !errors.As(err, &se) {
		t.Fatalf("Expected *StructuralError for empty input, got %T (%v)", err, err)
	}
	if se.Index != -1 {
		t.Errorf("Expected Index -1 when no element is at fault, got %d", se.Index)
	}
	if !errors.Is(se, ErrNoElements) {
		t.Errorf("Expected wrapped ErrNoElements, got %v", se.Err)
	}

	twoRoots := []Element{
		{Level: LevelTitle, Designator: "26"},
		{Level: LevelTitle, Designator: "42"},
	}
	_, err = (&Builder{}).Build(twoRoots)
	if !errors.As(err, &se) {
		t.Fatalf("Expected *StructuralError for a second root, got %T (%v)", err, err)
	}
	if se.Index != 1 || se.Level != LevelTitle || se.Designator != "42" {
		t.Errorf("Expected offending element 1 (Title 42), got element %d (%s %s)", se.Index, se.Level, se.Designator)
	}
	if !errors.Is(se, ErrMultipleRoots) {
		t.Errorf("Expected wrapped ErrMultipleRoots, got %v", se.Err)
	}
	if got := se.Error(); got != "tree: multiple root elements: element 1 (Title 42)" {
		t.Errorf("Unexpected error text %q", got)
	}
}

func TestEmptyDesignatorFallback(t *testing.T) {
	elements := []Element{
		{Level: LevelTitle, Designator: "26"},
		{Level: LevelSection, Designator: "61", Body: "x"},
		{Level: LevelSubsection, Designator: "", Body: "unnumbered flush paragraph"},
	}
	tr, err := (&Builder{}).Build(elements)
	if err != nil {
		t.Fatalf("Failed to build: %v", err)
	}
	if _, ok := tr.Node("26/61/1"); !ok {
		t.Error("Expected positional designator fallback 26/61/1")
	}
}

func TestOnWarningCallback(t *testing.T) {
	var seen []Warning
	b := &Builder{OnWarning: func(w Warning) { seen = append(seen, w) }}
	_, err := b.Build([]Element{
		{Level: LevelTitle, Designator: "1"},
		{Level: LevelSection, Designator: "1", Body: "x"},
	})
	if err != nil {
		t.Fatalf("Failed to build: %v", err)
	}
	if len(seen) != len(b.Warnings()) {
		t.Errorf("Callback saw %d warnings, recorded %d", len(seen), len(b.Warnings()))
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"title":      LevelTitle,
		"Subtitle":   LevelSubtitle,
		"CHAPTER":    LevelChapter,
		" section ":  LevelSection,
		"subsection": LevelSubsection,
		"paragraph":  LevelParagraph,
	}
	for in, want := range cases {
		got, ok := ParseLevel(in)
		if !ok || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, ok, want)
		}
	}
	if _, ok := ParseLevel("clause"); ok {
		t.Error("Expected ParseLevel to reject unknown level")
	}
}

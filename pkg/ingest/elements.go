// ABOUTME: Loads parsed structural elements from JSON produced upstream
// ABOUTME: Source acquisition and cleaning live outside this module

package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nainya/lexindex/pkg/tree"
)

type elementJSON struct {
	Level          string            `json:"level"`
	Designator     string            `json:"designator"`
	Heading        string            `json:"heading,omitempty"`
	Body           string            `json:"body,omitempty"`
	EffectiveStart string            `json:"effective_start,omitempty"`
	EffectiveEnd   string            `json:"effective_end,omitempty"`
	Meta           map[string]string `json:"meta,omitempty"`
}

// LoadElements reads an element sequence from a JSON file: an array of
// objects with level, designator, heading, body and optional RFC 3339
// effective dates, in document order.
func LoadElements(path string) ([]tree.Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: read elements %s: %w", path, err)
	}
	var raw []elementJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("ingest: parse elements %s: %w", path, err)
	}
	out := make([]tree.Element, 0, len(raw))
	for i, e := range raw {
		level, ok := tree.ParseLevel(e.Level)
		if !ok {
			return nil, fmt.Errorf("ingest: element %d: unknown level %q", i, e.Level)
		}
		el := tree.Element{
			Level:      level,
			Designator: e.Designator,
			Heading:    e.Heading,
			Body:       e.Body,
			Meta:       e.Meta,
		}
		if el.EffectiveStart, err = parseDate(e.EffectiveStart); err != nil {
			return nil, fmt.Errorf("ingest: element %d: %w", i, err)
		}
		if el.EffectiveEnd, err = parseDate(e.EffectiveEnd); err != nil {
			return nil, fmt.Errorf("ingest: element %d: %w", i, err)
		}
		out = append(out, el)
	}
	return out, nil
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid date %q", s)
}

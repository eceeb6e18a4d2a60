// ABOUTME: Error types for the index writer
// ABOUTME: Partial-batch failures carry unwritten ids so callers can resume

package index

import (
	"fmt"
	"strings"
)

// WriteFailure reports chunks that could not be written after the bounded
// retry budget. Writes of other batches may have succeeded; the caller can
// resume with exactly the named ids instead of re-embedding everything.
type WriteFailure struct {
	UnwrittenChunkIDs []string
	Err               error
}

func (f *WriteFailure) Error() string {
	n := len(f.UnwrittenChunkIDs)
	sample := f.UnwrittenChunkIDs
	if n > 5 {
		sample = sample[:5]
	}
	return fmt.Sprintf("index: %d chunks unwritten after retries (%s): %v",
		n, strings.Join(sample, ", "), f.Err)
}

func (f *WriteFailure) Unwrap() error { return f.Err }

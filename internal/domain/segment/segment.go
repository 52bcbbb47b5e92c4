// Package segment holds discovered partitions of the key space and their
// harvested results.
package segment

import (
	"fmt"

	"github.com/kailas-cloud/examharvest/internal/domain/record"
)

// Segment is one discovered prefix. Immutable after discovery.
type Segment struct {
	prefixID int
	label    string
}

// New creates a Segment; an empty label falls back to "Segment NN".
func New(prefixID int, label string) Segment {
	if label == "" {
		label = DefaultLabel(prefixID)
	}
	return Segment{prefixID: prefixID, label: label}
}

// DefaultLabel is the label used when the probe response carries none.
func DefaultLabel(prefixID int) string {
	return fmt.Sprintf("Segment %02d", prefixID)
}

// PrefixID returns the numeric prefix.
func (s Segment) PrefixID() int { return s.prefixID }

// Label returns the human label taken from the probe response.
func (s Segment) Label() string { return s.label }

// Result is the ordered set of records harvested for one segment.
type Result struct {
	Segment Segment
	Bound   int
	Records []record.Record
}

// Len returns the number of harvested records.
func (r *Result) Len() int { return len(r.Records) }

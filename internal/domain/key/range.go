package key

import (
	"fmt"

	"github.com/kailas-cloud/examharvest/internal/domain"
)

// Range is an inclusive suffix range [Low, High].
type Range struct {
	Low  int
	High int
}

// NewRange validates and creates a suffix Range.
func NewRange(low, high int) (Range, error) {
	r := Range{Low: low, High: high}
	if err := r.Validate(); err != nil {
		return Range{}, err
	}
	return r, nil
}

// Validate checks 1 <= Low <= High.
func (r Range) Validate() error {
	if r.Low < 1 {
		return fmt.Errorf("low suffix must be >= 1, got %d: %w", r.Low, domain.ErrInvalidRange)
	}
	if r.High < r.Low {
		return fmt.Errorf("high suffix %d below low suffix %d: %w", r.High, r.Low, domain.ErrInvalidRange)
	}
	return nil
}

// Contains reports whether suffix lies in the range.
func (r Range) Contains(suffix int) bool {
	return suffix >= r.Low && suffix <= r.High
}

// Len returns the number of suffixes in the range.
func (r Range) Len() int {
	if r.High < r.Low {
		return 0
	}
	return r.High - r.Low + 1
}

// Batches splits [Low, min(High, upTo)] into consecutive ranges of at most size suffixes.
func (r Range) Batches(upTo, size int) []Range {
	if size <= 0 {
		size = 1
	}
	hi := min(r.High, upTo)
	if hi < r.Low {
		return nil
	}
	out := make([]Range, 0, (hi-r.Low)/size+1)
	for lo := r.Low; lo <= hi; lo += size {
		out = append(out, Range{Low: lo, High: min(lo+size-1, hi)})
	}
	return out
}

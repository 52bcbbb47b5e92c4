// Package bound finds the highest valid suffix of a segment.
//
// Every search here relies on one operating assumption about the key space:
// validity is monotone over the searched range. For some bound B it holds for
// every suffix in [Low, B] and fails for every suffix in (B, High]. Identifiers
// are assigned contiguously from 1, so the exam key space satisfies this by
// construction. When it does not hold the finders return a wrong bound without
// failing; Verify exists to detect that case.
package bound

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/examharvest/internal/domain"
	"github.com/kailas-cloud/examharvest/internal/domain/key"
	"github.com/kailas-cloud/examharvest/internal/logger"
	"github.com/kailas-cloud/examharvest/internal/metrics"
)

// Strategy selects the search algorithm.
type Strategy string

// Supported strategies.
const (
	StrategyBinary      Strategy = "binary"
	StrategyExponential Strategy = "exponential"
)

// ParseStrategy maps a config value onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyBinary:
		return StrategyBinary, nil
	case StrategyExponential:
		return StrategyExponential, nil
	default:
		return "", fmt.Errorf("unknown bound strategy %q", s)
	}
}

// Finder searches a segment's suffix range through single-key lookups.
// Probes are issued one at a time; each depends on the previous result.
type Finder struct {
	looker       Looker
	format       key.Format
	strategy     Strategy
	verifyWindow int
}

// New creates a Finder using binary search.
func New(looker Looker, format key.Format) *Finder {
	return &Finder{looker: looker, format: format, strategy: StrategyBinary}
}

// WithStrategy selects the search algorithm used by Bound.
func (f *Finder) WithStrategy(s Strategy) *Finder {
	if s != "" {
		f.strategy = s
	}
	return f
}

// WithVerifyWindow enables a spot check of window suffixes around each bound
// found by Bound. Violations are logged, never returned.
func (f *Finder) WithVerifyWindow(window int) *Finder {
	f.verifyWindow = max(0, window)
	return f
}

// Valid reports whether the record at (prefix, suffix) exists.
// Suffixes that cannot form a key are invalid.
func (f *Finder) Valid(ctx context.Context, prefix, suffix int) bool {
	k, err := f.format.New(prefix, suffix)
	if err != nil {
		return false
	}
	return f.looker.Lookup(ctx, k.String()).Found()
}

// Bound runs the configured strategy and the optional spot check.
// It returns 0 when no valid suffix was seen.
func (f *Finder) Bound(ctx context.Context, prefix int, r key.Range) int {
	var b int
	if f.strategy == StrategyExponential {
		b = f.FindExponential(ctx, prefix, r)
	} else {
		b = f.Find(ctx, prefix, r)
	}

	if f.verifyWindow > 0 && b > 0 {
		if err := f.Verify(ctx, prefix, b, r, f.verifyWindow); err != nil {
			logger.FromContext(ctx).Warn("bound spot check failed",
				zap.Int("prefix", prefix),
				zap.Int("bound", b),
				zap.Error(err),
			)
		}
	}
	metrics.SegmentBound.WithLabelValues(fmt.Sprintf("%02d", prefix)).Set(float64(b))
	return b
}

// Find is a binary search over [r.Low, r.High]. A valid midpoint becomes the
// best-known bound and the search moves to the upper half; an invalid one
// moves it to the lower half. Cost is O(log(High-Low)) lookups.
func (f *Finder) Find(ctx context.Context, prefix int, r key.Range) int {
	if r.Validate() != nil {
		return 0
	}
	ctx = metrics.WithStage(ctx, metrics.StageBound)

	best := 0
	lo, hi := r.Low, r.High
	for lo <= hi && ctx.Err() == nil {
		mid := lo + (hi-lo)/2
		if f.Valid(ctx, prefix, mid) {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best
}

// FindExponential probes Low, Low+1, Low+3, Low+7, ... until a probe is invalid
// or passes High, then binary searches the last gap. It costs O(log B) lookups,
// which beats Find when the bound is far below High.
func (f *Finder) FindExponential(ctx context.Context, prefix int, r key.Range) int {
	if r.Validate() != nil {
		return 0
	}
	ctx = metrics.WithStage(ctx, metrics.StageBound)

	if !f.Valid(ctx, prefix, r.Low) {
		return 0
	}

	last := r.Low
	step := 1
	for ctx.Err() == nil {
		next := last + step
		if next > r.High {
			break
		}
		if !f.Valid(ctx, prefix, next) {
			return f.Find(ctx, prefix, key.Range{Low: last, High: next - 1})
		}
		last = next
		step *= 2
	}
	if last == r.High || ctx.Err() != nil {
		return last
	}
	return f.Find(ctx, prefix, key.Range{Low: last, High: r.High})
}

// Verify checks the monotone shape around bound with linear lookups: every
// suffix in [bound-window+1, bound] must be valid and every suffix in
// (bound, bound+window] invalid, both clipped to r. A window <= 0 checks the
// whole range. The first violation is returned as a *domain.NonMonotoneError.
func (f *Finder) Verify(ctx context.Context, prefix, bound int, r key.Range, window int) error {
	if err := r.Validate(); err != nil {
		return err
	}
	ctx = metrics.WithStage(ctx, metrics.StageVerify)

	lo, hi := r.Low, r.High
	if window > 0 {
		lo = max(r.Low, bound-window+1)
		hi = min(r.High, bound+window)
	}

	for s := lo; s <= hi; s++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("verify prefix %d: %w", prefix, err)
		}
		want := s <= bound
		if got := f.Valid(ctx, prefix, s); got != want {
			return &domain.NonMonotoneError{Prefix: prefix, Suffix: s, Bound: bound, Valid: got}
		}
	}
	return nil
}

package run

import (
	"context"

	"github.com/kailas-cloud/examharvest/internal/domain/key"
	"github.com/kailas-cloud/examharvest/internal/domain/segment"
)

// Discoverer lists the segments that hold records.
type Discoverer interface {
	Discover(ctx context.Context) ([]segment.Segment, error)
}

// BoundFinder returns the highest valid suffix of a segment.
type BoundFinder interface {
	Bound(ctx context.Context, prefix int, r key.Range) int
}

// Harvester fetches every record of a segment up to its bound.
type Harvester interface {
	Harvest(ctx context.Context, seg segment.Segment, bound int) segment.Result
}

// Checkpoint persists progress between runs. Optional.
type Checkpoint interface {
	LoadSegments(ctx context.Context) ([]segment.Segment, bool, error)
	SaveSegments(ctx context.Context, segs []segment.Segment) error
	LoadResult(ctx context.Context, prefixID int) (segment.Result, bool, error)
	SaveResult(ctx context.Context, res *segment.Result) error
	Clear(ctx context.Context, prefixIDs []int) error
}

// FailureCounter reports the running total of lookups that ended as transport
// failures. Optional; without it only empty stages are kept out of the checkpoint.
type FailureCounter interface {
	TransportFailures() int64
}

// Exporter receives the finished result set. Optional.
type Exporter interface {
	Export(ctx context.Context, results []segment.Result) error
}

// Package harvest fetches every record of a segment in ordered batches.
package harvest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/examharvest/internal/domain/key"
	"github.com/kailas-cloud/examharvest/internal/domain/lookup"
	"github.com/kailas-cloud/examharvest/internal/domain/record"
	"github.com/kailas-cloud/examharvest/internal/domain/segment"
	"github.com/kailas-cloud/examharvest/internal/logger"
	"github.com/kailas-cloud/examharvest/internal/metrics"
)

// DefaultBatchSize is the number of keys scheduled before the harvester waits.
const DefaultBatchSize = 1000

// Service harvests segments. Batch size controls scheduling granularity only;
// the real in-flight ceiling belongs to the Looker's pool.
type Service struct {
	looker    Looker
	format    key.Format
	low       int
	batchSize int
}

// New creates a harvest Service starting at suffix low.
func New(looker Looker, format key.Format, low int) *Service {
	return &Service{
		looker:    looker,
		format:    format,
		low:       max(1, low),
		batchSize: DefaultBatchSize,
	}
}

// WithBatchSize configures the batch size.
func (s *Service) WithBatchSize(size int) *Service {
	if size > 0 {
		s.batchSize = size
	}
	return s
}

// Harvest looks up every suffix in [low, bound] and returns the Found records
// in ascending suffix order. Batches run strictly one after another; lookups
// inside a batch run concurrently and each writes only its own slot, so
// completion order never affects the output. Failed or absent keys are
// skipped. Cancelling ctx stops scheduling further batches.
func (s *Service) Harvest(ctx context.Context, seg segment.Segment, bound int) segment.Result {
	ctx = metrics.WithStage(ctx, metrics.StageHarvest)
	log := logger.FromContext(ctx) // run tags prefix and label
	prefixLabel := fmt.Sprintf("%02d", seg.PrefixID())

	res := segment.Result{Segment: seg, Bound: bound}
	span := key.Range{Low: s.low, High: bound}
	batches := span.Batches(bound, s.batchSize)

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			log.Warn("harvest interrupted",
				zap.Int("batch", i),
				zap.Int("records", len(res.Records)),
				zap.Error(err),
			)
			break
		}

		start := time.Now()
		recs := s.runBatch(ctx, seg.PrefixID(), batch)
		res.Records = append(res.Records, recs...)

		metrics.BatchDuration.Observe(time.Since(start).Seconds())
		metrics.RecordsHarvestedTotal.WithLabelValues(prefixLabel).Add(float64(len(recs)))
		log.Debug("batch done",
			zap.Int("batch", i),
			zap.Int("low", batch.Low),
			zap.Int("high", batch.High),
			zap.Int("records", len(recs)),
			zap.Duration("duration", time.Since(start)),
		)
	}
	return res
}

func (s *Service) runBatch(ctx context.Context, prefix int, batch key.Range) []record.Record {
	slots := make([]*record.Record, batch.Len())

	var g errgroup.Group
	for i := range slots {
		suffix := batch.Low + i
		g.Go(func() error {
			k, err := s.format.New(prefix, suffix)
			if err != nil {
				return nil //nolint:nilerr // unrepresentable suffix is an absent record
			}
			out := s.looker.Lookup(ctx, k.String())
			if !out.Found() {
				return nil
			}
			rec := record.Extract(suffix, lookup.CandidateOf(out.Response()))
			slots[i] = &rec
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors

	recs := make([]record.Record, 0, len(slots))
	for _, r := range slots {
		if r != nil {
			recs = append(recs, *r)
		}
	}
	return recs
}

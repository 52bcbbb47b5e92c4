// Package run drives one discovery, bound and harvest pass and hands the
// results to the exporters.
package run

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/examharvest/internal/domain/key"
	"github.com/kailas-cloud/examharvest/internal/domain/segment"
	"github.com/kailas-cloud/examharvest/internal/logger"
)

// Report summarizes a finished run.
type Report struct {
	Results  []segment.Result
	Resumed  int // segments taken from the checkpoint
	Records  int
	Duration time.Duration
}

// Service orchestrates a run.
type Service struct {
	discovery  Discoverer
	bounds     BoundFinder
	harvester  Harvester
	checkpoint Checkpoint
	exporter   Exporter
	progress   *Progress
	failures   FailureCounter
	span       key.Range
	fresh      bool
}

// New creates a run Service searching each segment over span.
func New(discovery Discoverer, bounds BoundFinder, harvester Harvester, span key.Range) *Service {
	return &Service{discovery: discovery, bounds: bounds, harvester: harvester, span: span}
}

// WithCheckpoint enables resuming from cp. A nil cp disables checkpointing.
// When fresh is set, existing checkpoints are ignored and overwritten.
func (s *Service) WithCheckpoint(cp Checkpoint, fresh bool) *Service {
	s.checkpoint = cp
	s.fresh = fresh
	return s
}

// WithExporter sets the exporter that receives the results. Nil disables export.
func (s *Service) WithExporter(e Exporter) *Service {
	s.exporter = e
	return s
}

// WithFailureCounter lets the run tell stages that saw transport failures apart
// from clean ones. Only clean stages are checkpointed.
func (s *Service) WithFailureCounter(fc FailureCounter) *Service {
	s.failures = fc
	return s
}

// WithProgress publishes run progress to p.
func (s *Service) WithProgress(p *Progress) *Service {
	s.progress = p
	return s
}

// Run executes discovery, then bound finding and harvesting per segment in
// prefix order, then export. Per-key failures never surface here; the only
// errors are an invalid span, cancellation and a failed export.
func (s *Service) Run(ctx context.Context) (rep Report, err error) {
	start := time.Now()
	log := logger.FromContext(ctx)

	if err := s.span.Validate(); err != nil {
		return Report{}, fmt.Errorf("run: %w", err)
	}

	s.progress.start()
	defer func() {
		if err != nil {
			s.progress.phase(PhaseFailed)
		} else {
			s.progress.phase(PhaseDone)
		}
	}()

	segs, err := s.segments(ctx)
	if err != nil {
		return Report{}, err
	}
	s.progress.discovered(len(segs))
	log.Info("discovery done", zap.Int("segments", len(segs)))

	rep.Results = make([]segment.Result, 0, len(segs))
	for _, seg := range segs {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("run interrupted before prefix %d: %w", seg.PrefixID(), err)
		}

		s.progress.segmentStarted(seg.PrefixID(), seg.Label())
		res, resumed := s.segment(ctx, seg)
		if resumed {
			rep.Resumed++
		}
		rep.Records += res.Len()
		rep.Results = append(rep.Results, res)
		s.progress.segmentDone(res.Len())
	}
	// the last harvest may have been cut short
	if err := ctx.Err(); err != nil {
		return rep, fmt.Errorf("run interrupted: %w", err)
	}

	if s.exporter != nil {
		s.progress.phase(PhaseExport)
		if err := s.exporter.Export(ctx, rep.Results); err != nil {
			rep.Duration = time.Since(start)
			return rep, fmt.Errorf("export: %w", err)
		}
	}

	rep.Duration = time.Since(start)
	log.Info("run done",
		zap.Int("segments", len(rep.Results)),
		zap.Int("resumed", rep.Resumed),
		zap.Int("records", rep.Records),
		zap.Duration("duration", rep.Duration),
	)
	return rep, nil
}

func (s *Service) segments(ctx context.Context) ([]segment.Segment, error) {
	log := logger.FromContext(ctx)

	if s.checkpoint != nil && !s.fresh {
		segs, found, err := s.checkpoint.LoadSegments(ctx)
		switch {
		case err != nil:
			log.Warn("checkpoint unavailable, discovering", zap.Error(err))
		case found:
			log.Info("segments loaded from checkpoint", zap.Int("segments", len(segs)))
			return segs, nil
		}
	}

	before := s.failureCount()
	segs, err := s.discovery.Discover(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery: %w", err)
	}

	if s.checkpoint != nil {
		if s.fresh {
			if err := s.checkpoint.Clear(ctx, prefixIDs(segs)); err != nil {
				log.Warn("checkpoint clear failed", zap.Error(err))
			}
		}
		switch failed := s.failureCount() - before; {
		case len(segs) == 0:
			log.Warn("no segments discovered, not checkpointing discovery")
		case failed > 0:
			log.Warn("discovery saw transport failures, not checkpointing discovery", zap.Int64("failures", failed))
		default:
			if err := s.checkpoint.SaveSegments(ctx, segs); err != nil {
				log.Warn("checkpoint save failed", zap.Error(err))
			}
		}
	}
	return segs, nil
}

// segment finds the bound and harvests one segment, or takes both from the checkpoint.
func (s *Service) segment(ctx context.Context, seg segment.Segment) (segment.Result, bool) {
	ctx = logger.WithSegment(ctx, seg.PrefixID(), seg.Label())
	log := logger.FromContext(ctx)

	if s.checkpoint != nil && !s.fresh {
		res, found, err := s.checkpoint.LoadResult(ctx, seg.PrefixID())
		switch {
		case err != nil:
			log.Warn("checkpoint unavailable, harvesting", zap.Error(err))
		case found:
			log.Info("segment resumed from checkpoint", zap.Int("bound", res.Bound), zap.Int("records", res.Len()))
			return res, true
		}
	}

	start := time.Now()
	before := s.failureCount()
	bound := s.bounds.Bound(ctx, seg.PrefixID(), s.span)
	res := s.harvester.Harvest(ctx, seg, bound)

	log.Info("segment harvested",
		zap.Int("bound", bound),
		zap.Int("records", res.Len()),
		zap.Duration("duration", time.Since(start)),
	)

	if s.checkpoint == nil {
		return res, false
	}
	// Only complete, clean harvests are resumable: a cancelled one is partial,
	// and a zero bound or a transport failure may be an outage, not absence.
	switch failed := s.failureCount() - before; {
	case ctx.Err() != nil:
		// cancelled: partial result
	case bound == 0:
		log.Warn("zero bound, not checkpointing segment")
	case failed > 0:
		log.Warn("segment saw transport failures, not checkpointing", zap.Int64("failures", failed))
	default:
		if err := s.checkpoint.SaveResult(ctx, &res); err != nil {
			log.Warn("checkpoint save failed", zap.Error(err))
		}
	}
	return res, false
}

func (s *Service) failureCount() int64 {
	if s.failures == nil {
		return 0
	}
	return s.failures.TransportFailures()
}

func prefixIDs(segs []segment.Segment) []int {
	ids := make([]int, len(segs))
	for i, s := range segs {
		ids[i] = s.PrefixID()
	}
	return ids
}

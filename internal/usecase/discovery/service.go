// Package discovery finds which segment prefixes hold records.
package discovery

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/examharvest/internal/domain"
	"github.com/kailas-cloud/examharvest/internal/domain/key"
	"github.com/kailas-cloud/examharvest/internal/domain/lookup"
	"github.com/kailas-cloud/examharvest/internal/domain/segment"
	"github.com/kailas-cloud/examharvest/internal/logger"
	"github.com/kailas-cloud/examharvest/internal/metrics"
)

// Config holds the candidate prefix range and the probe suffix.
type Config struct {
	FirstPrefix int
	LastPrefix  int
	ProbeSuffix int
	Format      key.Format
}

// Service probes candidate prefixes one at a time.
//
// A prefix is kept only when its probe key is Found. A segment whose probe
// suffix happens to be unallocated is reported absent even if later suffixes
// hold records; the probe is never widened.
type Service struct {
	looker Looker
	cfg    Config
}

// New creates a discovery Service.
func New(looker Looker, cfg Config) (*Service, error) {
	if cfg.FirstPrefix < 0 || cfg.FirstPrefix > cfg.LastPrefix {
		return nil, fmt.Errorf("prefix range [%d, %d]: %w", cfg.FirstPrefix, cfg.LastPrefix, domain.ErrInvalidRange)
	}
	if cfg.LastPrefix > cfg.Format.MaxPrefix() {
		return nil, fmt.Errorf("last prefix %d does not fit %d digits: %w",
			cfg.LastPrefix, cfg.Format.PrefixWidth(), domain.ErrInvalidKey)
	}
	if _, err := cfg.Format.New(cfg.FirstPrefix, cfg.ProbeSuffix); err != nil {
		return nil, fmt.Errorf("probe suffix: %w", err)
	}
	return &Service{looker: looker, cfg: cfg}, nil
}

// Discover returns the segments found, ordered by prefix. It only fails when
// ctx is cancelled; a probe that fails for any reason excludes its prefix.
func (s *Service) Discover(ctx context.Context) ([]segment.Segment, error) {
	ctx = metrics.WithStage(ctx, metrics.StageDiscovery)
	log := logger.FromContext(ctx)

	var found []segment.Segment
	for prefix := s.cfg.FirstPrefix; prefix <= s.cfg.LastPrefix; prefix++ {
		if err := ctx.Err(); err != nil {
			return found, fmt.Errorf("discovery interrupted at prefix %d: %w", prefix, err)
		}

		k, _ := s.cfg.Format.New(prefix, s.cfg.ProbeSuffix) // range checked in New
		out := s.looker.Lookup(ctx, k.String())
		if !out.Found() {
			log.Debug("segment absent",
				zap.Int("prefix", prefix),
				zap.String("status", string(out.Status())),
			)
			continue
		}

		seg := segment.New(prefix, labelOf(out.Response()))
		log.Info("segment discovered",
			zap.Int("prefix", prefix),
			zap.String("label", seg.Label()),
		)
		found = append(found, seg)
	}

	metrics.SegmentsDiscovered.Set(float64(len(found)))
	return found, nil
}

func labelOf(resp *lookup.Response) string {
	c := lookup.CandidateOf(resp)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.ProvinceName)
}

// Package checkpoint persists discovery and harvest progress so a re-run can
// skip work that already finished.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/examharvest/internal/db"
	"github.com/kailas-cloud/examharvest/internal/domain/segment"
	"github.com/kailas-cloud/examharvest/internal/logger"
	"github.com/kailas-cloud/examharvest/internal/metrics"
)

// store is the consumer interface for checkpoint operations (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Repo stores checkpoints as JSON values under examharvest:<year>:<type>:...
type Repo struct {
	store  store
	prefix string
	ttl    time.Duration
}

// New creates a checkpoint repository scoped to one exam year and type.
func New(s store, year, examType string, ttl time.Duration) *Repo {
	return &Repo{
		store:  s,
		prefix: fmt.Sprintf("examharvest:%s:%s:", year, examType),
		ttl:    ttl,
	}
}

func (r *Repo) segmentsKey() string { return r.prefix + "segments" }

func (r *Repo) resultKey(prefixID int) string {
	return fmt.Sprintf("%sresult:%02d", r.prefix, prefixID)
}

// LoadSegments returns the saved discovery output. found is false when nothing was saved.
func (r *Repo) LoadSegments(ctx context.Context) (segs []segment.Segment, found bool, err error) {
	var rows []segmentRow
	found, err = r.load(ctx, "segments", r.segmentsKey(), &rows)
	if !found || err != nil {
		return nil, found, err
	}
	segs = make([]segment.Segment, len(rows))
	for i, row := range rows {
		segs[i] = segmentFromRow(row)
	}
	return segs, true, nil
}

// SaveSegments stores the discovery output.
func (r *Repo) SaveSegments(ctx context.Context, segs []segment.Segment) error {
	rows := make([]segmentRow, len(segs))
	for i, s := range segs {
		rows[i] = segmentToRow(s)
	}
	return r.save(ctx, "segments", r.segmentsKey(), rows)
}

// LoadResult returns the saved harvest of one segment.
func (r *Repo) LoadResult(ctx context.Context, prefixID int) (segment.Result, bool, error) {
	var row resultRow
	found, err := r.load(ctx, "result", r.resultKey(prefixID), &row)
	if !found || err != nil {
		return segment.Result{}, found, err
	}
	return resultFromRow(row), true, nil
}

// SaveResult stores the harvest of one segment.
func (r *Repo) SaveResult(ctx context.Context, res *segment.Result) error {
	return r.save(ctx, "result", r.resultKey(res.Segment.PrefixID()), resultToRow(res))
}

// Clear removes the discovery checkpoint and the results of the given prefixes.
func (r *Repo) Clear(ctx context.Context, prefixIDs []int) error {
	keys := make([]string, 0, len(prefixIDs)+1)
	keys = append(keys, r.segmentsKey())
	for _, p := range prefixIDs {
		keys = append(keys, r.resultKey(p))
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		metrics.CheckpointTotal.WithLabelValues("clear", "error").Inc()
		return fmt.Errorf("checkpoint clear: %w", err)
	}
	metrics.CheckpointTotal.WithLabelValues("clear", "ok").Inc()
	return nil
}

func (r *Repo) load(ctx context.Context, op, key string, dst any) (bool, error) {
	data, err := r.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			metrics.CheckpointTotal.WithLabelValues("load_"+op, "miss").Inc()
			return false, nil
		}
		metrics.CheckpointTotal.WithLabelValues("load_"+op, "error").Inc()
		return false, fmt.Errorf("checkpoint GET %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		metrics.CheckpointTotal.WithLabelValues("load_"+op, "error").Inc()
		return false, fmt.Errorf("checkpoint GET %s decode: %w", key, err)
	}
	metrics.CheckpointTotal.WithLabelValues("load_"+op, "hit").Inc()

	// a hit restarts the TTL; refresh failures are logged only
	if err := r.store.Expire(ctx, key, r.ttl); err != nil {
		metrics.CheckpointTotal.WithLabelValues("refresh_"+op, "error").Inc()
		logger.FromContext(ctx).Warn("checkpoint TTL refresh failed", zap.String("key", key), zap.Error(err))
	}
	return true, nil
}

func (r *Repo) save(ctx context.Context, op, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("checkpoint SET %s encode: %w", key, err)
	}
	if err := r.store.SetWithTTL(ctx, key, data, r.ttl); err != nil {
		metrics.CheckpointTotal.WithLabelValues("save_"+op, "error").Inc()
		return fmt.Errorf("checkpoint SET %s: %w", key, err)
	}
	metrics.CheckpointTotal.WithLabelValues("save_"+op, "ok").Inc()
	return nil
}

// Package httpclient is the single-key lookup client: it holds a pool slot per
// lookup, retries transport failures with incremental backoff and classifies
// decoded bodies into found / not found.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/examharvest/internal/domain"
	"github.com/kailas-cloud/examharvest/internal/domain/lookup"
	"github.com/kailas-cloud/examharvest/internal/metrics"
)

const maxBodyBytes = 1 << 20

var errEmptyKey = errors.New("key is required")

// Config holds lookup client settings.
type Config struct {
	URLs           *URLBuilder
	UserAgent      string
	Retries        int           // additional attempts after the first
	BackoffBase    time.Duration // delay before retry n is BackoffBase*n
	UnhealthyAfter int           // consecutive transport failures before HealthCheck fails
	Logger         *zap.Logger
}

// Client performs lookups through a Pool.
type Client struct {
	pool           *Pool
	urls           *URLBuilder
	userAgent      string
	retries        int
	backoffBase    time.Duration
	unhealthyAfter int64
	logger         *zap.Logger

	consecutiveFailures atomic.Int64
	totalFailures       atomic.Int64
	sleep               func(ctx context.Context, d time.Duration) error
}

// NewClient creates a lookup client bound to pool.
func NewClient(pool *Pool, cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		pool:           pool,
		urls:           cfg.URLs,
		userAgent:      cfg.UserAgent,
		retries:        max(0, cfg.Retries),
		backoffBase:    cfg.BackoffBase,
		unhealthyAfter: int64(cfg.UnhealthyAfter),
		logger:         logger,
		sleep:          sleepCtx,
	}
}

// Lookup fetches key and returns a tagged outcome. It never returns a Go error:
// a lookup that still fails after the retry budget is a TransportError outcome.
// The pool slot is held across retries and released on every path.
func (c *Client) Lookup(ctx context.Context, key string) lookup.Outcome {
	start := time.Now()
	out := c.lookup(ctx, key)

	metrics.LookupsTotal.WithLabelValues(metrics.StageFrom(ctx), string(out.Status())).Inc()
	metrics.LookupDuration.WithLabelValues(string(out.Status())).Observe(time.Since(start).Seconds())

	if out.Status() == lookup.StatusTransportError {
		c.consecutiveFailures.Add(1)
		c.totalFailures.Add(1)
		c.logger.Debug("lookup failed",
			zap.String("key", key),
			zap.Int("attempts", out.Attempts()),
			zap.Error(out.Err()),
		)
	} else {
		c.consecutiveFailures.Store(0)
	}
	return out
}

func (c *Client) lookup(ctx context.Context, key string) lookup.Outcome {
	if key == "" {
		return lookup.NewTransportError(key, fmt.Errorf("%w: %w", domain.ErrTransport, errEmptyKey), 0)
	}
	if err := c.pool.Acquire(ctx); err != nil {
		return lookup.NewTransportError(key, fmt.Errorf("%w: %w", domain.ErrTransport, err), 0)
	}
	defer c.pool.Release()

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoffBase*time.Duration(attempt)); err != nil {
				lastErr = err
				break
			}
		}
		attempts++

		resp, err := c.fetchOnce(ctx, key)
		if err == nil {
			return lookup.Classify(key, resp, attempts)
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return lookup.NewTransportError(key,
		fmt.Errorf("%w: key %s after %d attempts: %w", domain.ErrTransport, key, attempts, lastErr),
		attempts,
	)
}

// Fetch is the optional-returning form of Lookup: the decoded response when the
// record exists, otherwise (nil, false).
func (c *Client) Fetch(ctx context.Context, key string) (*lookup.Response, bool) {
	out := c.Lookup(ctx, key)
	if !out.Found() {
		return nil, false
	}
	return out.Response(), true
}

func (c *Client) fetchOnce(ctx context.Context, key string) (*lookup.Response, error) {
	if err := c.pool.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.urls.Build(key), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.pool.Do(req)
	if err != nil {
		metrics.LookupAttemptsTotal.WithLabelValues("transport").Inc()
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		metrics.LookupAttemptsTotal.WithLabelValues("status").Inc()
		return nil, &domain.StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.LookupAttemptsTotal.WithLabelValues("transport").Inc()
		return nil, fmt.Errorf("read body: %w", err)
	}

	// Content-Type is not consulted; the body is always decoded as JSON.
	decoded, err := lookup.Decode(body)
	if err != nil {
		metrics.LookupAttemptsTotal.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("decode body (content-type %q): %w", resp.Header.Get("Content-Type"), err)
	}

	metrics.LookupAttemptsTotal.WithLabelValues("ok").Inc()
	return decoded, nil
}

// TransportFailures returns how many lookups ended as TransportError since
// the client was created. Callers diff it around a stage.
func (c *Client) TransportFailures() int64 { return c.totalFailures.Load() }

// HealthCheck fails once the upstream has produced UnhealthyAfter consecutive transport failures.
func (c *Client) HealthCheck(_ context.Context) error {
	if c.unhealthyAfter <= 0 {
		return nil
	}
	if n := c.consecutiveFailures.Load(); n >= c.unhealthyAfter {
		return fmt.Errorf("%d consecutive lookup failures: %w", n, domain.ErrTransport)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err() //nolint:wrapcheck // context error is the signal
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck // context error is the signal
	case <-t.C:
		return nil
	}
}

package httpclient

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/examharvest/internal/domain"
	"github.com/kailas-cloud/examharvest/internal/metrics"
)

// Wait-time gate labels.
const (
	gateSlot = "slot"
	gateRate = "rate"
)

// PoolConfig holds the per-run resource limits.
type PoolConfig struct {
	Concurrency       int
	RequestsPerSecond float64 // 0 = unlimited
	Timeout           time.Duration
	Transport         http.RoundTripper // optional, defaults to a tuned *http.Transport
}

// Pool is the resource pool owned by one run: a bounded set of in-flight slots,
// an optional request-rate limiter and the HTTP connection pool behind them.
// Each run builds its own Pool; nothing here is process-global.
type Pool struct {
	sem      *semaphore.Weighted
	limiter  *rate.Limiter
	client   *http.Client
	size     int
	closed   atomic.Bool
	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewPool creates a Pool. A non-positive ceiling is the one fatal resource error of a run.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("pool concurrency must be positive, got %d", cfg.Concurrency)
	}
	if cfg.RequestsPerSecond < 0 {
		return nil, fmt.Errorf("pool requests per second must be >= 0, got %v", cfg.RequestsPerSecond)
	}

	transport := cfg.Transport
	if transport == nil {
		transport = newTransport(cfg.Concurrency)
	}

	p := &Pool{
		sem:    semaphore.NewWeighted(int64(cfg.Concurrency)),
		client: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		size:   cfg.Concurrency,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := max(1, int(math.Ceil(cfg.RequestsPerSecond)))
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return p, nil
}

func newTransport(conns int) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          conns,
		MaxIdleConnsPerHost:   conns,
		MaxConnsPerHost:       conns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// Acquire takes one in-flight slot, blocking until one is free or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	if p.closed.Load() {
		return domain.ErrPoolClosed
	}
	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire pool slot: %w", err)
	}
	metrics.PoolWaitDuration.WithLabelValues(gateSlot).Observe(time.Since(start).Seconds())

	n := p.inFlight.Add(1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	metrics.PoolInFlight.Inc()
	return nil
}

// Release returns a slot taken by Acquire.
func (p *Pool) Release() {
	p.inFlight.Add(-1)
	metrics.PoolInFlight.Dec()
	p.sem.Release(1)
}

// Wait blocks until the rate limiter admits one request. No-op when unlimited.
func (p *Pool) Wait(ctx context.Context) error {
	if p.limiter == nil {
		return nil
	}
	start := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	metrics.PoolWaitDuration.WithLabelValues(gateRate).Observe(time.Since(start).Seconds())
	return nil
}

// Do sends req through the pool's HTTP client.
func (p *Pool) Do(req *http.Request) (*http.Response, error) {
	return p.client.Do(req) //nolint:wrapcheck // caller wraps with key context
}

// Size returns the in-flight ceiling.
func (p *Pool) Size() int { return p.size }

// InFlight returns the number of slots currently held.
func (p *Pool) InFlight() int64 { return p.inFlight.Load() }

// Peak returns the highest number of slots held at once.
func (p *Pool) Peak() int64 { return p.peak.Load() }

// Close rejects further acquires and drops idle connections.
func (p *Pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.client.CloseIdleConnections()
}

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Lookup and harvest Prometheus metrics.
var (
	LookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "examharvest",
			Name:      "lookups_total",
			Help:      "Total number of key lookups by outcome",
		},
		[]string{"stage", "outcome"}, // outcome: found / not_found / transport_error
	)

	LookupAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "examharvest",
			Name:      "lookup_attempts_total",
			Help:      "Total HTTP attempts issued, including retries",
		},
		[]string{"result"}, // ok / status / decode / transport
	)

	LookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "examharvest",
			Name:      "lookup_duration_seconds",
			Help:      "Lookup duration in seconds, including retries and backoff",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"outcome"},
	)

	PoolInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "examharvest",
			Name:      "pool_in_flight",
			Help:      "Lookups currently holding a pool slot",
		},
	)

	PoolWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "examharvest",
			Name:      "pool_wait_seconds",
			Help:      "Time spent waiting at a pool gate",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"gate"}, // slot / rate
	)

	SegmentsDiscovered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "examharvest",
			Name:      "segments_discovered",
			Help:      "Number of segments found by discovery",
		},
	)

	SegmentBound = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "examharvest",
			Name:      "segment_bound",
			Help:      "Highest valid suffix found per segment",
		},
		[]string{"prefix"},
	)

	RecordsHarvestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "examharvest",
			Name:      "records_harvested_total",
			Help:      "Total records harvested per segment",
		},
		[]string{"prefix"},
	)

	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "examharvest",
			Name:      "batch_duration_seconds",
			Help:      "Harvest batch duration",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	CheckpointTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "examharvest",
			Name:      "checkpoint_total",
			Help:      "Checkpoint store operations",
		},
		[]string{"op", "result"}, // result: hit / miss / error / ok
	)
)

var registerOnce sync.Once

// RegisterHarvestMetrics registers lookup and harvest metrics on reg. Safe to call more than once.
func RegisterHarvestMetrics(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			LookupsTotal,
			LookupAttemptsTotal,
			LookupDuration,
			PoolInFlight,
			PoolWaitDuration,
			SegmentsDiscovered,
			SegmentBound,
			RecordsHarvestedTotal,
			BatchDuration,
			CheckpointTotal,
		)
	})
}

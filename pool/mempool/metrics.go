package mempool

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsProvider defines the interface for providing metrics for pool operations.
type MetricsProvider interface {
	IncrementAllocations()
	IncrementAllocationMisses()
	IncrementFrees()
	IncrementMisuse()
	SetFreeChunks(count float64)
	ObserveWaitDuration(duration time.Duration)
}

// NoopMetricsProvider implements MetricsProvider with no-op operations.
type NoopMetricsProvider struct{}

func (n *NoopMetricsProvider) IncrementAllocations()                      {}
func (n *NoopMetricsProvider) IncrementAllocationMisses()                 {}
func (n *NoopMetricsProvider) IncrementFrees()                            {}
func (n *NoopMetricsProvider) IncrementMisuse()                           {}
func (n *NoopMetricsProvider) SetFreeChunks(count float64)                {}
func (n *NoopMetricsProvider) ObserveWaitDuration(duration time.Duration) {}

// NewNoopMetricsProvider creates a new NoopMetricsProvider.
func NewNoopMetricsProvider() *NoopMetricsProvider {
	return &NoopMetricsProvider{}
}

// PrometheusMetricsProvider implements MetricsProvider using Prometheus.
// Every series carries a constant "pool" label.
type PrometheusMetricsProvider struct {
	allocations      prometheus.Counter
	allocationMisses prometheus.Counter
	frees            prometheus.Counter
	misuse           prometheus.Counter
	freeChunks       prometheus.Gauge
	waitDuration     prometheus.Histogram
}

// NewPrometheusMetricsProvider creates a PrometheusMetricsProvider for the
// named pool and registers its collectors with registry.
func NewPrometheusMetricsProvider(registry prometheus.Registerer, pool string) *PrometheusMetricsProvider {
	labels := prometheus.Labels{"pool": pool}
	p := &PrometheusMetricsProvider{
		allocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "weos_pool_allocations_total",
			Help:        "Total number of chunks handed out",
			ConstLabels: labels,
		}),
		allocationMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "weos_pool_allocation_misses_total",
			Help:        "Total number of allocations that failed on exhaustion, timeout or cancellation",
			ConstLabels: labels,
		}),
		frees: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "weos_pool_frees_total",
			Help:        "Total number of chunks returned",
			ConstLabels: labels,
		}),
		misuse: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "weos_pool_rejected_frees_total",
			Help:        "Total number of rejected frees of foreign or unallocated chunks",
			ConstLabels: labels,
		}),
		freeChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "weos_pool_free_chunks",
			Help:        "Number of chunks currently free",
			ConstLabels: labels,
		}),
		waitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "weos_pool_wait_duration_seconds",
			Help:        "Time spent waiting for a free chunk",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	registry.MustRegister(
		p.allocations,
		p.allocationMisses,
		p.frees,
		p.misuse,
		p.freeChunks,
		p.waitDuration,
	)

	return p
}

func (p *PrometheusMetricsProvider) IncrementAllocations() {
	p.allocations.Inc()
}

func (p *PrometheusMetricsProvider) IncrementAllocationMisses() {
	p.allocationMisses.Inc()
}

func (p *PrometheusMetricsProvider) IncrementFrees() {
	p.frees.Inc()
}

func (p *PrometheusMetricsProvider) IncrementMisuse() {
	p.misuse.Inc()
}

func (p *PrometheusMetricsProvider) SetFreeChunks(count float64) {
	p.freeChunks.Set(count)
}

func (p *PrometheusMetricsProvider) ObserveWaitDuration(duration time.Duration) {
	p.waitDuration.Observe(duration.Seconds())
}

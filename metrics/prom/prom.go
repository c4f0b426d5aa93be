// Package prom adapts cache.Metrics to Prometheus collectors.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweepkv/sweepkv/cache"
)

// Adapter implements cache.Metrics and exports Prometheus counters and a
// sweep-duration histogram. Safe for concurrent use; all Prometheus metric
// types are goroutine-safe.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	evicts   prometheus.Counter
	requeues prometheus.Counter
	crashes  prometheus.Counter
	sweeps   prometheus.Histogram
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses (absent or expired keys)",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "evictions_total",
			Help:        "Expired entries reclaimed by sweepers",
			ConstLabels: constLabels,
		}),
		requeues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "requeues_total",
			Help:        "Stale sweep records replaced by refreshed entries",
			ConstLabels: constLabels,
		}),
		crashes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "sweeper_crashes_total",
			Help:        "Sweepers terminated by a panic (shard degraded)",
			ConstLabels: constLabels,
		}),
		sweeps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "sweep_duration_seconds",
			Help:        "Duration of sweep passes",
			ConstLabels: constLabels,
			Buckets:     prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.requeues, a.crashes, a.sweeps)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict counts one expired entry reclaimed by a sweeper.
func (a *Adapter) Evict() { a.evicts.Inc() }

// Requeue counts one stale sweep record replaced by a fresher entry.
func (a *Adapter) Requeue() { a.requeues.Inc() }

// SweepPass observes the duration of one completed sweep pass.
func (a *Adapter) SweepPass(d time.Duration) { a.sweeps.Observe(d.Seconds()) }

// SweeperCrash counts a sweeper terminated by a panic.
func (a *Adapter) SweeperCrash() { a.crashes.Inc() }

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)

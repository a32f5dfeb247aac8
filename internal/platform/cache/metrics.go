package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics observes cache effectiveness per collection.
type Metrics struct {
	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
	loads  *prometheus.HistogramVec
	purged *prometheus.CounterVec
}

// NewMetrics registers the cache collectors. Re-registration reuses the existing collectors.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "funko_cache_hits_total",
			Help: "Number of cache hits per collection.",
		}, []string{"collection"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "funko_cache_miss_total",
			Help: "Number of cache misses per collection.",
		}, []string{"collection"}),
		loads: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "funko_cache_load_duration_seconds",
			Help:    "Duration of backing store loads on cache miss.",
			Buckets: prometheus.DefBuckets,
		}, []string{"collection"}),
		purged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "funko_cache_invalidated_keys_total",
			Help: "Number of keys removed by invalidation per prefix.",
		}, []string{"prefix"}),
	}
	m.hits = registerCounter(reg, m.hits)
	m.misses = registerCounter(reg, m.misses)
	m.purged = registerCounter(reg, m.purged)
	if err := reg.Register(m.loads); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, fmt.Errorf("platform/cache: register metrics: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("platform/cache: unexpected collector type %T", already.ExistingCollector)
		}
		m.loads = existing
	}
	return m, nil
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) hit(collection string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(collection).Inc()
}

func (m *Metrics) miss(collection string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(collection).Inc()
}

func (m *Metrics) observeLoad(collection string, d time.Duration) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(collection).Observe(d.Seconds())
}

func (m *Metrics) invalidated(prefix string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.purged.WithLabelValues(prefix).Add(float64(n))
}

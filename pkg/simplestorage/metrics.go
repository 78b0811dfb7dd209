package simplestorage

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Cache events recorded by the content cache counter
const (
	cacheHit       = "hit"
	cacheMiss      = "miss"
	cacheReclaimed = "reclaimed"
	cacheTierHit   = "tier_hit"
)

// serviceMetrics holds Prometheus metrics for service operations.
// A nil *serviceMetrics records nothing.
type serviceMetrics struct {
	ops   *prometheus.CounterVec // by backend, op, result
	cache *prometheus.CounterVec // by event
}

func newServiceMetrics(reg prometheus.Registerer) (*serviceMetrics, error) {
	if reg == nil {
		return nil, nil // metrics disabled
	}

	ops := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "simplestorage",
		Name:      "operations_total",
		Help:      "Total number of storage operations by backend, operation and result",
	}, []string{"backend", "op", "result"})

	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "simplestorage",
		Name:      "content_cache_total",
		Help:      "Handle content cache events",
	}, []string{"event"})

	var err error
	if ops, err = registerCounter(reg, ops); err != nil {
		return nil, err
	}
	if cache, err = registerCounter(reg, cache); err != nil {
		return nil, err
	}
	return &serviceMetrics{ops: ops, cache: cache}, nil
}

// registerCounter registers c, reusing an identical collector that another
// service already registered on reg.
func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

func (m *serviceMetrics) observe(backend, op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = KindOf(err).String()
	}
	m.ops.WithLabelValues(backend, op, result).Inc()
}

func (m *serviceMetrics) cacheEvent(event string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(event).Inc()
}

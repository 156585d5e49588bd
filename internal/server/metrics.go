package server

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics for the candles service.
type Collector struct {
	gatherer prometheus.Gatherer

	Requests     *prometheus.CounterVec
	CandlesTotal prometheus.Gauge
}

// NewCollector registers service metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil. Re-registering an
// existing collector reuses it, so tests can build multiple routers.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vigil_requests_total",
		Help: "Total handled candle API requests, labeled by operation and status code.",
	}, []string{"op", "code"})
	requests, err := registerCounterVec(reg, requests, "vigil_requests_total")
	if err != nil {
		return nil, err
	}

	total, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vigil_candles_total",
		Help: "Current number of candles in the store.",
	}), "vigil_candles_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:     gatherer,
		Requests:     requests,
		CandlesTotal: total,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) count(op string, code int) {
	if c == nil || c.Requests == nil {
		return
	}
	c.Requests.WithLabelValues(op, fmt.Sprintf("%d", code)).Inc()
}

func (c *Collector) setTotal(n int64) {
	if c == nil || c.CandlesTotal == nil {
		return
	}
	c.CandlesTotal.Set(float64(n))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

// Package metrics exposes the scanner's live Prometheus counters and the
// backtest runner's signal-gap statistics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the process-wide counters the scan loop updates on every
// tick. A nil *Collector is safe to call methods on (all become no-ops),
// so callers that don't enable metrics don't need a feature flag at every
// call site.
type Collector struct {
	scansTotal       *prometheus.CounterVec
	signalsTotal     *prometheus.CounterVec
	fetchErrorsTotal *prometheus.CounterVec
	trackedPairs     prometheus.Gauge
}

// NewCollector registers a fresh set of counters against the default
// Prometheus registry.
func NewCollector() *Collector {
	return &Collector{
		scansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "scans_total",
			Help:      "Number of (symbol, timeframe) pairs scanned.",
		}, []string{"timeframe"}),
		signalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "signals_total",
			Help:      "Number of confirmed CHoCH signals, by direction.",
		}, []string{"direction"}),
		fetchErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Name:      "fetch_errors_total",
			Help:      "Number of candle fetches that ultimately failed.",
		}, []string{"symbol"}),
		trackedPairs: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "sentinel",
			Name:      "tracked_pairs",
			Help:      "Number of (symbol, timeframe) pairs currently carrying scan state.",
		}),
	}
}

func (c *Collector) ObserveScan(timeframe string) {
	if c == nil {
		return
	}
	c.scansTotal.WithLabelValues(timeframe).Inc()
}

func (c *Collector) ObserveSignal(direction string) {
	if c == nil {
		return
	}
	c.signalsTotal.WithLabelValues(direction).Inc()
}

func (c *Collector) ObserveFetchError(symbol string) {
	if c == nil {
		return
	}
	c.fetchErrorsTotal.WithLabelValues(symbol).Inc()
}

func (c *Collector) SetTrackedPairs(n int) {
	if c == nil {
		return
	}
	c.trackedPairs.Set(float64(n))
}

// Handler returns the standard /metrics HTTP handler for mounting on the
// dashboard server.
func Handler() http.Handler {
	return promhttp.Handler()
}

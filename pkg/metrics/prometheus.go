package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	ticksIngested *prometheus.CounterVec
	invalidTicks  *prometheus.CounterVec
	droppedTicks  prometheus.Counter
	windowResets  *prometheus.CounterVec
	signalsTotal  *prometheus.CounterVec
	activeSignals prometheus.Gauge
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
	errorsTotal   *prometheus.CounterVec
}

// New creates a Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		ticksIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscout_ticks_ingested_total",
				Help: "Ticks admitted into window state",
			},
			[]string{"instrument"},
		),
		invalidTicks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscout_invalid_ticks_total",
				Help: "Ticks rejected at the ingestion boundary",
			},
			[]string{"reason"},
		),
		droppedTicks: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pairscout_dropped_ticks_total",
				Help: "Ticks dropped by pipeline backpressure",
			},
		),
		windowResets: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscout_window_resets_total",
				Help: "Rolling window resets after stale feed gaps",
			},
			[]string{"instrument"},
		),
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscout_signals_total",
				Help: "Signals entering the Active state",
			},
			[]string{"pair", "direction"},
		),
		activeSignals: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pairscout_active_signals",
				Help: "Currently active signals",
			},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pairscout_last_price",
				Help: "Last admitted price per instrument",
			},
			[]string{"instrument"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pairscout_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pairscout_errors_total",
				Help: "Errors by kind",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordTick(instrument string) {
	r.ticksIngested.WithLabelValues(instrument).Inc()
}

func (r *Recorder) RecordInvalidTick(reason string) {
	r.invalidTicks.WithLabelValues(reason).Inc()
}

func (r *Recorder) RecordDroppedTick() {
	r.droppedTicks.Inc()
}

func (r *Recorder) RecordWindowReset(instrument string) {
	r.windowResets.WithLabelValues(instrument).Inc()
}

func (r *Recorder) RecordSignal(pair, direction string) {
	r.signalsTotal.WithLabelValues(pair, direction).Inc()
}

func (r *Recorder) RecordActiveSignals(n int) {
	r.activeSignals.Set(float64(n))
}

func (r *Recorder) RecordLastPrice(instrument string, price float64) {
	r.lastPrice.WithLabelValues(instrument).Set(price)
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

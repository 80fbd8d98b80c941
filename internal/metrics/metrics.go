// Package metrics holds the Prometheus collectors of the three binaries.
// Every method is safe to call on a nil receiver so callers can run without
// metrics in tests.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "envgen"

type Simulator struct {
	written       *prometheus.CounterVec
	writeErrors   *prometheus.CounterVec
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	normalized    *prometheus.GaugeVec
}

func NewSimulator(reg prometheus.Registerer) *Simulator {
	m := &Simulator{
		written: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_written_total",
			Help:      "Readings accepted by a sink.",
		}, []string{"sink"}),
		writeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_errors_total",
			Help:      "Readings rejected by a sink.",
		}, []string{"sink"}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Completed passes over the sensor set.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Time spent writing one pass over the sensor set.",
			Buckets:   prometheus.DefBuckets,
		}),
		normalized: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading_normalized",
			Help:      "Last normalized score generated per sensor.",
		}, []string{"sensor_id"}),
	}

	reg.MustRegister(m.written, m.writeErrors, m.cycles, m.cycleDuration, m.normalized)
	return m
}

func (m *Simulator) Written(sink string) {
	if m == nil {
		return
	}
	m.written.WithLabelValues(sink).Inc()
}

func (m *Simulator) WriteFailed(sink string) {
	if m == nil {
		return
	}
	m.writeErrors.WithLabelValues(sink).Inc()
}

func (m *Simulator) Generated(sensorID string, normalized float64) {
	if m == nil {
		return
	}
	m.normalized.WithLabelValues(sensorID).Set(normalized)
}

func (m *Simulator) CycleDone(d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
}

type Controller struct {
	requests *prometheus.CounterVec
	ingested prometheus.Counter
}

func NewController(reg prometheus.Registerer) *Controller {
	m := &Controller{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Ingest requests by route and status.",
		}, []string{"route", "status"}),
		ingested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_readings_total",
			Help:      "Readings stored and queued by the controller.",
		}),
	}
	reg.MustRegister(m.requests, m.ingested)
	return m
}

func (m *Controller) Ingested() {
	if m == nil {
		return
	}
	m.ingested.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests served by next under route.
func (m *Controller) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if m != nil {
			m.requests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		}
	})
}

type Engine struct {
	processed prometheus.Counter
	failures  prometheus.Counter
	alerts    *prometheus.CounterVec
}

func NewEngine(reg prometheus.Registerer) *Engine {
	m := &Engine{
		processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_messages_total",
			Help:      "Readings consumed from the queue.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Readings that could not be processed.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Alerts raised by rule type.",
		}, []string{"type"}),
	}
	reg.MustRegister(m.processed, m.failures, m.alerts)
	return m
}

func (m *Engine) Processed(err error) {
	if m == nil {
		return
	}
	m.processed.Inc()
	if err != nil {
		m.failures.Inc()
	}
}

func (m *Engine) Alert(kind string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(kind).Inc()
}

// Serve exposes the default registry on addr. It blocks like
// http.ListenAndServe.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

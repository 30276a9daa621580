package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics holds the Prometheus metrics of the batch runner.
type Metrics struct {
	Evaluations         *prometheus.CounterVec // labels: status=ok|skipped|failed
	Signals             *prometheus.CounterVec // labels: kind=BUY|SELL
	NotificationsFailed prometheus.Counter
	BatchDuration       prometheus.Histogram
	LastBatch           prometheus.Gauge

	mu       sync.RWMutex
	lastRun  time.Time
	lastFail int
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crosssentinel_evaluations_total",
			Help: "Symbol evaluations by outcome status",
		}, []string{"status"}),
		Signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crosssentinel_signals_total",
			Help: "Fired signals by kind",
		}, []string{"kind"}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crosssentinel_notifications_failed_total",
			Help: "Signal notifications that could not be delivered",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crosssentinel_batch_duration_seconds",
			Help:    "Wall time of a full batch run",
			Buckets: []float64{1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		LastBatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crosssentinel_last_batch_timestamp",
			Help: "Unix time of the last completed batch",
		}),
	}

	reg.MustRegister(
		m.Evaluations,
		m.Signals,
		m.NotificationsFailed,
		m.BatchDuration,
		m.LastBatch,
	)
	return m
}

// ObserveOutcome counts one evaluation with the given status.
func (m *Metrics) ObserveOutcome(status string) {
	m.Evaluations.WithLabelValues(status).Inc()
}

// ObserveSignal counts one fired signal.
func (m *Metrics) ObserveSignal(kind string) {
	m.Signals.WithLabelValues(kind).Inc()
}

// ObserveNotificationFailure counts one undelivered notification.
func (m *Metrics) ObserveNotificationFailure() {
	m.NotificationsFailed.Inc()
}

// ObserveBatch records a finished batch.
func (m *Metrics) ObserveBatch(started time.Time, duration time.Duration, failed int) {
	m.BatchDuration.Observe(duration.Seconds())
	m.LastBatch.Set(float64(started.Add(duration).Unix()))

	m.mu.Lock()
	m.lastRun = started.Add(duration)
	m.lastFail = failed
	m.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := struct {
		Status       string `json:"status"`
		LastBatch    string `json:"last_batch,omitempty"`
		LastFailures int    `json:"last_failures"`
	}{Status: "healthy", LastFailures: m.lastFail}

	if m.lastRun.IsZero() {
		status.Status = "starting"
	} else {
		status.LastBatch = m.lastRun.Format(time.RFC3339)
	}
	if m.lastFail > 0 {
		status.Status = "degraded"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	srv *http.Server
	log logrus.FieldLogger
}

// NewServer creates a metrics and health server.
func NewServer(addr string, g prometheus.Gatherer, m *Metrics, log logrus.FieldLogger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", m)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.WithField("component", "metrics"),
	}
}

// Start serves in the background.
func (s *Server) Start() {
	go func() {
		s.log.WithField("addr", s.srv.Addr).Info("metrics server listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("metrics server failed")
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the server mux for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

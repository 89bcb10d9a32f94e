// Package metrics exposes ingestion counters as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "tokenbench"

// Document outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Metrics holds the ingestion collectors. A nil *Metrics discards every
// observation.
type Metrics struct {
	documents      *prometheus.CounterVec
	rowsWritten    *prometheus.CounterVec
	batches        *prometheus.CounterVec
	insertDuration *prometheus.HistogramVec
	rowsPerSecond  *prometheus.GaugeVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		documents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "documents_total",
			Help:      "Documents handled, by outcome",
		}, []string{"outcome"}),
		rowsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rows_written_total",
			Help:      "Aggregated token rows inserted",
		}, []string{"backend"}),
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "batches_total",
			Help:      "Batched insert calls issued",
		}, []string{"backend"}),
		insertDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "insert_duration_seconds",
			Help:      "Time spent inserting one document's rows",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"backend"}),
		rowsPerSecond: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "rows_per_second",
			Help:      "Insert throughput of the most recent document",
		}, []string{"backend"}),
	}
}

// Document counts one document with the given outcome.
func (m *Metrics) Document(outcome string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(outcome).Inc()
}

// Batch counts one WriteBatch call.
func (m *Metrics) Batch(backend string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(backend).Inc()
}

// Insert records the rows written for one document and how long it took.
func (m *Metrics) Insert(backend string, rows int, d time.Duration) {
	if m == nil {
		return
	}
	m.rowsWritten.WithLabelValues(backend).Add(float64(rows))
	m.insertDuration.WithLabelValues(backend).Observe(d.Seconds())
	if d > 0 {
		m.rowsPerSecond.WithLabelValues(backend).Set(float64(rows) / d.Seconds())
	}
}

// Serve exposes g on addr at /metrics, with pprof under /debug/pprof/, until
// ctx is done. The listener is bound before Serve returns, so bind errors
// surface immediately.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) (net.Addr, <-chan error, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	done := make(chan error, 1)
	go func() {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return ln.Addr(), done, nil
}

package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Document(OutcomeProcessed)
	m.Batch("sqlite")
	m.Insert("sqlite", 10, time.Second)
}

func TestRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Document(OutcomeProcessed)
	m.Document(OutcomeProcessed)
	m.Document(OutcomeSkipped)
	m.Batch("sqlite")
	m.Batch("sqlite")
	m.Batch("sqlite")
	m.Insert("sqlite", 500, 2*time.Second)
	m.Insert("sqlite", 0, 0)

	if got := testutil.ToFloat64(m.documents.WithLabelValues(OutcomeProcessed)); got != 2 {
		t.Errorf("processed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.documents.WithLabelValues(OutcomeSkipped)); got != 1 {
		t.Errorf("skipped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.batches.WithLabelValues("sqlite")); got != 3 {
		t.Errorf("batches = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.rowsWritten.WithLabelValues("sqlite")); got != 500 {
		t.Errorf("rows = %v, want 500", got)
	}
	// A zero-duration insert leaves the last throughput in place.
	if got := testutil.ToFloat64(m.rowsPerSecond.WithLabelValues("sqlite")); got != 250 {
		t.Errorf("rows/s = %v, want 250", got)
	}
	if n := testutil.CollectAndCount(m.insertDuration); n != 1 {
		t.Errorf("histogram series = %d, want 1", n)
	}
}

func TestServe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Document(OutcomeProcessed)

	ctx, cancel := context.WithCancel(context.Background())
	addr, done, err := Serve(ctx, "127.0.0.1:0", reg)
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}

	resp, err := http.Get("http://" + addr.String() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if !strings.Contains(string(body), `tokenbench_documents_total{outcome="processed"} 1`) {
		t.Errorf("metrics output missing document counter:\n%s", body)
	}

	resp, err = http.Get("http://" + addr.String() + "/debug/pprof/cmdline")
	if err != nil {
		t.Fatalf("GET /debug/pprof/cmdline: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("pprof status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("server exit: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeBadAddress(t *testing.T) {
	if _, _, err := Serve(context.Background(), "not-an-address", prometheus.NewRegistry()); err == nil {
		t.Error("expected listen error")
	}
}

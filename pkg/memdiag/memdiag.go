// Package memdiag samples Go heap statistics during a run and logs them.
package memdiag

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/eunmann/tokenbench/pkg/humanfmt"
	"github.com/eunmann/tokenbench/pkg/logging"
)

// DefaultInterval is the sampling period used by the CLI in debug mode.
const DefaultInterval = 5 * time.Second

// Stats holds memory statistics from runtime.
type Stats struct {
	// HeapAlloc is bytes allocated on heap and still in use.
	HeapAlloc uint64
	// HeapSys is bytes obtained from OS for heap.
	HeapSys uint64
	// TotalAlloc is cumulative bytes allocated (even if freed).
	TotalAlloc uint64
	// Sys is bytes obtained from OS.
	Sys uint64
	// NumGC is the number of completed GC cycles.
	NumGC uint32
	// GCCPUFraction is the fraction of CPU used by GC.
	GCCPUFraction float64
}

// Read reads current memory statistics.
func Read() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Stats{
		HeapAlloc:     m.HeapAlloc,
		HeapSys:       m.HeapSys,
		TotalAlloc:    m.TotalAlloc,
		Sys:           m.Sys,
		NumGC:         m.NumGC,
		GCCPUFraction: m.GCCPUFraction,
	}
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (s Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Uint64("heap_alloc", s.HeapAlloc).
		Uint64("heap_sys", s.HeapSys).
		Uint64("total_alloc", s.TotalAlloc).
		Uint64("sys", s.Sys).
		Uint32("num_gc", s.NumGC).
		Float64("gc_cpu_pct", s.GCCPUFraction*100)
	if logging.IsPrettyMode() {
		e.Str("heap_alloc_h", humanfmt.Bytes(s.HeapAlloc)).
			Str("sys_h", humanfmt.Bytes(s.Sys))
	}
}

// Tracker samples memory periodically and remembers the peak heap.
type Tracker struct {
	interval time.Duration
	log      zerolog.Logger

	peakHeap atomic.Uint64
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewTracker creates a tracker that logs to log every interval once started.
func NewTracker(interval time.Duration, log zerolog.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Tracker{
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins periodic logging at debug level. Calling it twice is a no-op.
func (t *Tracker) Start() {
	if !t.started.CompareAndSwap(false, true) {
		return
	}
	go t.logLoop()
}

// Stop ends periodic logging and waits for the last sample.
func (t *Tracker) Stop() {
	if !t.started.Load() {
		return
	}
	t.stopOnce.Do(func() { close(t.stopCh) })
	<-t.doneCh
}

// Sample reads current statistics and updates the peak.
func (t *Tracker) Sample() Stats {
	s := Read()
	for {
		peak := t.peakHeap.Load()
		if s.HeapAlloc <= peak || t.peakHeap.CompareAndSwap(peak, s.HeapAlloc) {
			return s
		}
	}
}

// PeakHeap returns the peak heap allocation seen by Sample.
func (t *Tracker) PeakHeap() uint64 {
	return t.peakHeap.Load()
}

// LogNow samples and logs at debug level.
func (t *Tracker) LogNow(reason string) {
	s := t.Sample()
	t.log.Debug().
		Str("reason", reason).
		Object("memory", s).
		Uint64("peak_heap", t.PeakHeap()).
		Msg("memory stats")
}

func (t *Tracker) logLoop() {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			t.LogNow("shutdown")
			return
		case <-ticker.C:
			t.LogNow("periodic")
		}
	}
}

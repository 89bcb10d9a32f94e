package logging

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eunmann/tokenbench/pkg/humanfmt"
	"github.com/rs/zerolog"
)

// ProgressTracker tracks how many of a known number of documents have been
// processed or skipped, with an ETA from a moving average of recent documents.
// It is safe for concurrent use.
type ProgressTracker struct {
	total     int64
	completed atomic.Int64
	skipped   atomic.Int64
	startTime time.Time
	log       zerolog.Logger
	phase     string

	// For moving average of item durations
	mu              sync.Mutex
	recentDurations []time.Duration
	maxRecent       int
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker(phase string, total int64, log zerolog.Logger) *ProgressTracker {
	return &ProgressTracker{
		total:           total,
		startTime:       time.Now(),
		log:             log,
		phase:           phase,
		recentDurations: make([]time.Duration, 0, 10),
		maxRecent:       10,
	}
}

// RecordCompletion records that an item completed with the given duration.
func (pt *ProgressTracker) RecordCompletion(d time.Duration) {
	pt.completed.Add(1)
	pt.observe(d)
}

// RecordSkip records that an item was skipped after taking d to inspect.
func (pt *ProgressTracker) RecordSkip(d time.Duration) {
	pt.skipped.Add(1)
	pt.observe(d)
}

func (pt *ProgressTracker) observe(d time.Duration) {
	pt.mu.Lock()
	if len(pt.recentDurations) >= pt.maxRecent {
		pt.recentDurations = pt.recentDurations[1:]
	}
	pt.recentDurations = append(pt.recentDurations, d)
	pt.mu.Unlock()
}

// Progress returns current progress stats.
func (pt *ProgressTracker) Progress() (completed, skipped, total int64) {
	return pt.completed.Load(), pt.skipped.Load(), pt.total
}

// Done returns completed plus skipped.
func (pt *ProgressTracker) Done() int64 {
	return pt.completed.Load() + pt.skipped.Load()
}

// ProgressPct returns the progress percentage (0-100).
func (pt *ProgressTracker) ProgressPct() float64 {
	if pt.total == 0 {
		return 100.0
	}
	return float64(pt.Done()) * 100.0 / float64(pt.total)
}

// ETA returns the estimated time remaining based on the recent item durations.
func (pt *ProgressTracker) ETA() time.Duration {
	done := pt.Done()
	if done == 0 {
		return 0
	}

	remaining := pt.total - done
	if remaining <= 0 {
		return 0
	}

	pt.mu.Lock()
	var avgDuration time.Duration
	if len(pt.recentDurations) > 0 {
		var sum time.Duration
		for _, d := range pt.recentDurations {
			sum += d
		}
		avgDuration = sum / time.Duration(len(pt.recentDurations))
	} else {
		avgDuration = time.Since(pt.startTime) / time.Duration(done)
	}
	pt.mu.Unlock()

	return avgDuration * time.Duration(remaining)
}

// MaybeReport logs a progress event when the number of finished items is a
// positive multiple of every. It is called after an item finishes, so the
// event for item N follows that item's own log lines. It returns whether an
// event was logged.
func (pt *ProgressTracker) MaybeReport(every int) bool {
	done := pt.Done()
	if every <= 0 || done == 0 || done%int64(every) != 0 {
		return false
	}

	e := pt.log.Info().
		Str("event", "progress").
		Str("phase", pt.phase).
		Int64("done", done).
		Int64("processed", pt.completed.Load()).
		Int64("skipped", pt.skipped.Load()).
		Int64("total", pt.total).
		Float64("progress_pct", pt.ProgressPct())
	if eta := pt.ETA(); eta > 0 {
		e = e.Int64("eta_ms", eta.Milliseconds())
		if IsPrettyMode() {
			e = e.Str("eta_h", humanfmt.Duration(eta))
		}
	}
	e.Msgf("processed %d documents (%.2f %%)", done, pt.ProgressPct())
	return true
}

// CompletionEvent helps build consistent completion log events.
type CompletionEvent struct {
	log     zerolog.Logger
	event   string
	phase   string
	elapsed time.Duration
	fields  map[string]interface{}
}

// NewCompletionEvent creates a new completion event builder.
func NewCompletionEvent(log zerolog.Logger, event, phase string, elapsed time.Duration) *CompletionEvent {
	return &CompletionEvent{
		log:     log,
		event:   event,
		phase:   phase,
		elapsed: elapsed,
		fields:  make(map[string]interface{}),
	}
}

// Str adds a string field.
func (ce *CompletionEvent) Str(key, val string) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Int adds an int field.
func (ce *CompletionEvent) Int(key string, val int) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Int64 adds an int64 field.
func (ce *CompletionEvent) Int64(key string, val int64) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Count adds count with optional human-readable companion.
func (ce *CompletionEvent) Count(key string, n int64) *CompletionEvent {
	ce.fields[key] = n
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanfmt.Count(n)
	}
	return ce
}

// Rate adds "<unit>_per_sec" computed over d, with an optional
// human-readable companion.
func (ce *CompletionEvent) Rate(unit string, n int64, d time.Duration) *CompletionEvent {
	key := unit + "_per_sec"
	ce.fields[key] = humanfmt.PerSecond(n, d)
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanfmt.Rate(n, d, unit)
	}
	return ce
}

// Log emits the completion event.
func (ce *CompletionEvent) Log(msg string) {
	ce.emit(ce.log.Info(), msg)
}

// LogDebug emits the completion event at debug level.
func (ce *CompletionEvent) LogDebug(msg string) {
	ce.emit(ce.log.Debug(), msg)
}

func (ce *CompletionEvent) emit(e *zerolog.Event, msg string) {
	e = e.Str("event", ce.event).
		Str("phase", ce.phase).
		Int64("duration_ms", ce.elapsed.Milliseconds())

	if IsPrettyMode() {
		e = e.Str("duration_h", humanfmt.Duration(ce.elapsed))
	}

	for k, v := range ce.fields {
		e = e.Interface(k, v)
	}

	e.Msg(msg)
}

// PhaseComplete logs a phase completion event.
func PhaseComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "phase_completed", phase, elapsed)
}

// DocumentLoaded logs the completion of one document's load into the store.
func DocumentLoaded(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "document_loaded", phase, elapsed)
}

// DocumentSkipped logs a document that the language filter excluded.
func DocumentSkipped(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "document_skipped", phase, elapsed)
}

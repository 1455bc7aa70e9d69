// Package progress tracks completed work units across pipeline stages and
// reports status through a rate-limited callback.
package progress

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Status is a point-in-time snapshot of pipeline progress.
type Status struct {
	Current  int64
	Total    int64
	Failures int64
	Elapsed  time.Duration
}

// Fraction returns completion as a value in [0, 1], or -1 when the total is
// unknown.
func (s Status) Fraction() float64 {
	if s.Total <= 0 {
		return -1
	}
	f := float64(s.Current) / float64(s.Total)
	if f > 1 {
		f = 1
	}
	return f
}

// PerSecond returns the average completion rate since tracking started.
func (s Status) PerSecond() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Current) / secs
}

// Tracker counts completed and total work units plus per-record failures.
// All counters are safe for concurrent use. A non-nil report callback is
// invoked at most once per reporting interval, plus once from Finish.
type Tracker struct {
	current  atomic.Int64
	total    atomic.Int64
	failures atomic.Int64

	start   time.Time
	limiter *rate.Limiter
	report  func(Status)
}

// NewTracker creates a Tracker that invokes report at most once per interval.
// A nil report disables status callbacks; counters still accumulate.
func NewTracker(interval time.Duration, report func(Status)) *Tracker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Tracker{
		start:   time.Now(),
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		report:  report,
	}
}

// AddTotal grows the expected work unit count.
func (t *Tracker) AddTotal(n int64) {
	t.total.Add(n)
}

// Step records n completed work units and maybe emits a status report.
func (t *Tracker) Step(n int64) {
	t.current.Add(n)
	if t.report != nil && t.limiter.Allow() {
		t.report(t.Status())
	}
}

// Fail records n per-record failures. Failures count as completed work.
func (t *Tracker) Fail(n int64) {
	t.failures.Add(n)
}

// Status returns the current snapshot.
func (t *Tracker) Status() Status {
	return Status{
		Current:  t.current.Load(),
		Total:    t.total.Load(),
		Failures: t.failures.Load(),
		Elapsed:  time.Since(t.start),
	}
}

// Finish emits a final status report regardless of the limiter and returns
// the closing snapshot.
func (t *Tracker) Finish() Status {
	s := t.Status()
	if t.report != nil {
		t.report(s)
	}
	return s
}

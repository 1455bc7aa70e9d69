package brec

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    enrollCounter    prometheus.Counter
//	    compareHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordEnroll(count, failed int, duration time.Duration) {
//	    p.enrollCounter.Add(float64(count))
//	    // ... record failure counts, duration, etc.
//	}
type MetricsCollector interface {
	// RecordTrain is called after each training run.
	// records is the training batch size, err is nil if successful.
	RecordTrain(records int, duration time.Duration, err error)

	// RecordEnroll is called after each enrollment pass.
	// count is the number of records enrolled, failed is the number flagged
	// as failures to enroll, duration is the total pass time.
	RecordEnroll(count, failed int, duration time.Duration)

	// RecordCompare is called after each comparison run.
	// comparisons is the number of scored pairs, err is nil if successful.
	RecordCompare(comparisons uint64, duration time.Duration, err error)

	// RecordModelStore is called after each model save.
	RecordModelStore(duration time.Duration, err error)

	// RecordModelLoad is called after each model load.
	RecordModelLoad(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordTrain(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordEnroll(int, int, time.Duration)       {}
func (NoopMetricsCollector) RecordCompare(uint64, time.Duration, error) {}
func (NoopMetricsCollector) RecordModelStore(time.Duration, error)      {}
func (NoopMetricsCollector) RecordModelLoad(time.Duration, error)       {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	TrainCount        atomic.Int64
	TrainErrors       atomic.Int64
	TrainTotalNanos   atomic.Int64
	EnrollPasses      atomic.Int64
	EnrollRecords     atomic.Int64
	EnrollFailures    atomic.Int64
	CompareCount      atomic.Int64
	CompareErrors     atomic.Int64
	Comparisons       atomic.Int64
	CompareTotalNanos atomic.Int64
	ModelStoreCount   atomic.Int64
	ModelStoreErrors  atomic.Int64
	ModelLoadCount    atomic.Int64
	ModelLoadErrors   atomic.Int64
}

// RecordTrain implements MetricsCollector.
func (b *BasicMetricsCollector) RecordTrain(records int, duration time.Duration, err error) {
	b.TrainCount.Add(1)
	b.TrainTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.TrainErrors.Add(1)
	}
}

// RecordEnroll implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEnroll(count, failed int, duration time.Duration) {
	b.EnrollPasses.Add(1)
	b.EnrollRecords.Add(int64(count))
	b.EnrollFailures.Add(int64(failed))
}

// RecordCompare implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompare(comparisons uint64, duration time.Duration, err error) {
	b.CompareCount.Add(1)
	b.Comparisons.Add(int64(comparisons)) //nolint:gosec
	b.CompareTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.CompareErrors.Add(1)
	}
}

// RecordModelStore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordModelStore(duration time.Duration, err error) {
	b.ModelStoreCount.Add(1)
	if err != nil {
		b.ModelStoreErrors.Add(1)
	}
}

// RecordModelLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordModelLoad(duration time.Duration, err error) {
	b.ModelLoadCount.Add(1)
	if err != nil {
		b.ModelLoadErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		TrainCount:      b.TrainCount.Load(),
		TrainErrors:     b.TrainErrors.Load(),
		TrainAvgNanos:   b.getAvgTrainNanos(),
		EnrollPasses:    b.EnrollPasses.Load(),
		EnrollRecords:   b.EnrollRecords.Load(),
		EnrollFailures:  b.EnrollFailures.Load(),
		CompareCount:    b.CompareCount.Load(),
		CompareErrors:   b.CompareErrors.Load(),
		Comparisons:     b.Comparisons.Load(),
		CompareAvgNanos: b.getAvgCompareNanos(),
		ModelStores:     b.ModelStoreCount.Load(),
		ModelLoads:      b.ModelLoadCount.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgTrainNanos() int64 {
	count := b.TrainCount.Load()
	if count == 0 {
		return 0
	}
	return b.TrainTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgCompareNanos() int64 {
	count := b.CompareCount.Load()
	if count == 0 {
		return 0
	}
	return b.CompareTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	TrainCount      int64
	TrainErrors     int64
	TrainAvgNanos   int64
	EnrollPasses    int64
	EnrollRecords   int64
	EnrollFailures  int64
	CompareCount    int64
	CompareErrors   int64
	Comparisons     int64
	CompareAvgNanos int64
	ModelStores     int64
	ModelLoads      int64
}

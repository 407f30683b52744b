package metrics

import (
	"sync"
	"time"
)

// Accumulator collects call metrics from concurrent workers.
type Accumulator struct {
	mu      sync.Mutex
	records []Record
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Record stores a single metric.
func (a *Accumulator) Record(r Record) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	a.mu.Lock()
	a.records = append(a.records, r)
	a.mu.Unlock()
}

// Add records a successful call for stage/item.
func (a *Accumulator) Add(stage, itemKey string, m CallMetrics) {
	a.Record(Record{
		Stage:       stage,
		ItemKey:     itemKey,
		CallMetrics: m,
		Success:     true,
	})
}

// RecordError records a failed call.
func (a *Accumulator) RecordError(stage, itemKey, errorType string, duration time.Duration) {
	a.Record(Record{
		Stage:       stage,
		ItemKey:     itemKey,
		CallMetrics: CallMetrics{LatencyMs: duration.Milliseconds()},
		ErrorType:   errorType,
	})
}

// Records returns a snapshot of everything recorded so far.
func (a *Accumulator) Records() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Record, len(a.records))
	copy(out, a.records)
	return out
}

// Len returns the number of records.
func (a *Accumulator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Merge appends every record of other.
func (a *Accumulator) Merge(other *Accumulator) {
	if other == nil || other == a {
		return
	}
	recs := other.Records()
	a.mu.Lock()
	a.records = append(a.records, recs...)
	a.mu.Unlock()
}

package metrics

import (
	"sort"
	"sync"
	"time"
)

// LatencyStats summarizes a set of latency measurements in milliseconds.
type LatencyStats struct {
	Avg   float64 `json:"avg"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	P95   float64 `json:"p95"`
	Count int     `json:"count"`
}

// LatencyTracker accumulates latency samples. It is safe for concurrent
// use; the pipeline goroutine records while status handlers read.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []float64
}

// NewLatencyTracker creates an empty tracker.
func NewLatencyTracker() *LatencyTracker {
	return &LatencyTracker{}
}

// Add records one measurement.
func (t *LatencyTracker) Add(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = append(t.samples, float64(d)/float64(time.Millisecond))
}

// Stats returns summary statistics over all recorded samples.
func (t *LatencyTracker) Stats() LatencyStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.samples) == 0 {
		return LatencyStats{}
	}

	stats := LatencyStats{
		Min:   t.samples[0],
		Max:   t.samples[0],
		Count: len(t.samples),
	}

	var sum float64
	for _, s := range t.samples {
		sum += s
		if s < stats.Min {
			stats.Min = s
		}
		if s > stats.Max {
			stats.Max = s
		}
	}
	stats.Avg = sum / float64(len(t.samples))
	stats.P95 = percentile(t.samples, 95)

	return stats
}

// Reset discards all samples.
func (t *LatencyTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.samples = nil
}

func percentile(data []float64, pct int) float64 {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	idx := float64(pct) / 100 * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	weight := idx - float64(lower)
	return sorted[lower] + weight*(sorted[upper]-sorted[lower])
}

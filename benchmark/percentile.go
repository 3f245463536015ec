package main

import (
	"fmt"
	"slices"
	"sync"
	"time"
)

const maxSamples = 100 * 10000

// Latency keeps up to maxSamples durations, overwriting the oldest
// once full.
type Latency struct {
	sync.Mutex
	data   []time.Duration
	sorted bool
	pos    int
}

// NewLatency
func NewLatency() *Latency {
	return &Latency{data: make([]time.Duration, 0, 1024)}
}

// Add
func (l *Latency) Add(d time.Duration) {
	l.Lock()
	defer l.Unlock()

	l.sorted = false
	if len(l.data) == maxSamples {
		l.data[l.pos] = d
		l.pos = (l.pos + 1) % maxSamples
		return
	}
	l.data = append(l.data, d)
}

func (l *Latency) sort() {
	if !l.sorted {
		slices.Sort(l.data)
		l.sorted = true
	}
}

// Percentile returns the sample below which p percent of samples fall.
func (l *Latency) Percentile(p float64) time.Duration {
	l.Lock()
	defer l.Unlock()

	if len(l.data) == 0 {
		return 0
	}
	l.sort()
	i := int((p / 100) * float64(len(l.data)))
	if i >= len(l.data) {
		i = len(l.data) - 1
	}
	return l.data[i]
}

// Count
func (l *Latency) Count() int {
	l.Lock()
	defer l.Unlock()
	return len(l.data)
}

// Avg
func (l *Latency) Avg() time.Duration {
	l.Lock()
	defer l.Unlock()

	if len(l.data) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range l.data {
		sum += d
	}
	return sum / time.Duration(len(l.data))
}

// Summary returns avg and the usual percentiles.
func (l *Latency) Summary() map[string]time.Duration {
	return map[string]time.Duration{
		"avg": l.Avg(),
		"p50": l.Percentile(50),
		"p90": l.Percentile(90),
		"p99": l.Percentile(99),
		"max": l.Percentile(100),
	}
}

func (l *Latency) String() string {
	return fmt.Sprintf("n: %d avg: %v p50: %v p90: %v p99: %v max: %v",
		l.Count(), l.Avg(), l.Percentile(50), l.Percentile(90), l.Percentile(99), l.Percentile(100))
}

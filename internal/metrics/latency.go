package metrics

import (
	"sort"
	"sync"
	"time"
)

// Summary reports latency statistics of one operation in milliseconds
type Summary struct {
	Operation string  `json:"operation"`
	Count     int     `json:"count"`
	MeanMs    float64 `json:"meanMs"`
	StdDevMs  float64 `json:"stdDevMs"`
	MaxMs     float64 `json:"maxMs"`
	Errors    int     `json:"errors"`
}

// Latency records query latencies per operation. It is safe for concurrent use.
type Latency struct {
	mu     sync.Mutex
	states map[string]*WelfordState
	errors map[string]int
}

// NewLatency creates an empty recorder
func NewLatency() *Latency {
	return &Latency{
		states: make(map[string]*WelfordState),
		errors: make(map[string]int),
	}
}

// Observe records one call of op. Failed calls are counted but excluded from
// the timing statistics.
func (l *Latency) Observe(op string, d time.Duration, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		l.errors[op]++
		return
	}
	s, ok := l.states[op]
	if !ok {
		s = &WelfordState{}
		l.states[op] = s
	}
	s.Update(float64(d) / float64(time.Millisecond))
}

// Since records a call that started at start
func (l *Latency) Since(op string, start time.Time, err error) {
	l.Observe(op, time.Since(start), err)
}

// Snapshot returns the statistics of every operation seen, sorted by name
func (l *Latency) Snapshot() []Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]bool)
	for op := range l.states {
		seen[op] = true
	}
	for op := range l.errors {
		seen[op] = true
	}
	out := make([]Summary, 0, len(seen))
	for op := range seen {
		sum := Summary{Operation: op, Errors: l.errors[op]}
		if s, ok := l.states[op]; ok {
			sum.Count = s.Count
			sum.MeanMs = s.Mean
			sum.StdDevMs = s.StdDev()
			sum.MaxMs = s.Max
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}

package botmonitor

import (
	"sync"
	"sync/atomic"
	"time"
)

type Stats struct {
	TotalExecutions int64         `json:"total_executions"`
	TotalCompleted  int64         `json:"total_completed"`
	TotalHandoffs   int64         `json:"total_handoffs"`
	TotalSkipped    int64         `json:"total_skipped"`
	TotalFailed     int64         `json:"total_failed"`
	RecentTraces    []TraceRecord `json:"recent_traces"`
}

// Monitor keeps the last completed traces in a fixed size ring and running
// totals per final status.
type Monitor struct {
	mu    sync.Mutex
	ring  []TraceRecord
	idx   int
	count int
	ttl   time.Duration

	totalExecutions int64
	totalCompleted  int64
	totalHandoffs   int64
	totalSkipped    int64
	totalFailed     int64
}

// New creates a monitor holding size traces. Traces older than ttl are left
// out of Stats; zero keeps them until overwritten.
func New(size int, ttl time.Duration) *Monitor {
	if size <= 0 {
		size = 200
	}
	return &Monitor{ring: make([]TraceRecord, size), ttl: ttl}
}

func (m *Monitor) Record(rec TraceRecord) {
	atomic.AddInt64(&m.totalExecutions, 1)
	switch rec.Status {
	case StatusCompleted:
		atomic.AddInt64(&m.totalCompleted, 1)
	case StatusHandoff:
		atomic.AddInt64(&m.totalHandoffs, 1)
	case StatusSkipped:
		atomic.AddInt64(&m.totalSkipped, 1)
	case StatusFailed:
		atomic.AddInt64(&m.totalFailed, 1)
	}

	m.mu.Lock()
	m.ring[m.idx] = rec
	m.idx = (m.idx + 1) % len(m.ring)
	if m.count < len(m.ring) {
		m.count++
	}
	m.mu.Unlock()
}

// GetStats returns the totals and the buffered traces, oldest first.
func (m *Monitor) GetStats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cutoff time.Time
	if m.ttl > 0 {
		cutoff = time.Now().UTC().Add(-m.ttl)
	}
	start := (m.idx - m.count) % len(m.ring)
	if start < 0 {
		start += len(m.ring)
	}
	recent := make([]TraceRecord, 0, m.count)
	for i := 0; i < m.count; i++ {
		rec := m.ring[(start+i)%len(m.ring)]
		if !cutoff.IsZero() && rec.FinishedAt.Before(cutoff) {
			continue
		}
		recent = append(recent, rec)
	}

	return Stats{
		TotalExecutions: atomic.LoadInt64(&m.totalExecutions),
		TotalCompleted:  atomic.LoadInt64(&m.totalCompleted),
		TotalHandoffs:   atomic.LoadInt64(&m.totalHandoffs),
		TotalSkipped:    atomic.LoadInt64(&m.totalSkipped),
		TotalFailed:     atomic.LoadInt64(&m.totalFailed),
		RecentTraces:    recent,
	}
}

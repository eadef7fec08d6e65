// File: stats/stats.go
// Author: momentics <momentics@gmail.com>
//
// Package stats keeps the probe's round-trip samples: a bounded window of the
// most recent deltas for the average, and lifetime min/max.

package stats

import (
	"math"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-reflector/api"
)

// DefaultWindow is the number of recent samples averaged per report.
const DefaultWindow = 1000

// Statistics is owned by a single probe loop and is not safe for concurrent use.
type Statistics struct {
	window   *queue.Queue // uint64 deltas, oldest first
	capacity int
	min      uint64
	max      uint64
	total    uint64
	unit     api.ClockUnit
}

// New creates Statistics with the given window capacity (DefaultWindow if <= 0).
func New(capacity int, unit api.ClockUnit) *Statistics {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	return &Statistics{
		window:   queue.New(),
		capacity: capacity,
		min:      math.MaxUint64,
		unit:     unit,
	}
}

// Record appends delta, evicting the oldest sample once the window is full,
// and tightens the lifetime bounds.
func (s *Statistics) Record(delta uint64) {
	s.window.Add(delta)
	if s.window.Length() > s.capacity {
		s.window.Remove()
	}
	if delta < s.min {
		s.min = delta
	}
	if delta > s.max {
		s.max = delta
	}
	s.total++
}

// Average returns the mean of the samples currently held, 0 when empty.
func (s *Statistics) Average() float64 {
	n := s.window.Length()
	if n == 0 {
		return 0
	}
	// Divide per element so large cycle counts cannot overflow the sum.
	var avg float64
	for i := 0; i < n; i++ {
		avg += float64(s.window.Get(i).(uint64)) / float64(n)
	}
	return avg
}

// Min is the lifetime minimum; math.MaxUint64 before the first sample.
func (s *Statistics) Min() uint64 { return s.min }

// Max is the lifetime maximum; 0 before the first sample.
func (s *Statistics) Max() uint64 { return s.max }

// Len is the number of samples in the window.
func (s *Statistics) Len() int { return s.window.Length() }

// Cap is the window capacity.
func (s *Statistics) Cap() int { return s.capacity }

// Total is the number of samples recorded over the run.
func (s *Statistics) Total() uint64 { return s.total }

// Unit is the clock unit of every recorded delta.
func (s *Statistics) Unit() api.ClockUnit { return s.unit }

// Snapshot captures the aggregate stats at now.
func (s *Statistics) Snapshot(now time.Time) Report {
	return Report{
		Time:    now,
		Max:     s.max,
		Min:     s.min,
		Average: s.Average(),
		Held:    s.window.Length(),
		Total:   s.total,
		Unit:    s.unit,
	}
}

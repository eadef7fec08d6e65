// File: clock/clock.go
// Author: momentics <momentics@gmail.com>
//
// Package clock provides the probe's timing primitive: the CPU cycle counter
// where the architecture exposes one, a monotonic nanosecond timer elsewhere.

package clock

import (
	"time"

	"github.com/momentics/hioload-reflector/api"
)

// New returns the hardware cycle counter when available, otherwise a
// monotonic nanosecond clock. Callers must consult Unit before labelling output.
func New() api.Clock {
	if c, ok := hardware(); ok {
		return c
	}
	return NewMonotonic()
}

// Monotonic counts nanoseconds since its creation using the runtime's
// monotonic clock reading.
type Monotonic struct {
	start time.Time
}

// NewMonotonic creates a Monotonic clock starting at zero.
func NewMonotonic() *Monotonic {
	return &Monotonic{start: time.Now()}
}

// Now returns nanoseconds elapsed since creation.
func (m *Monotonic) Now() uint64 {
	return uint64(time.Since(m.start).Nanoseconds())
}

// Unit reports nanoseconds.
func (m *Monotonic) Unit() api.ClockUnit {
	return api.UnitNanoseconds
}

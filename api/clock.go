// File: api/clock.go
// Author: momentics <momentics@gmail.com>
//
// Timing primitive used by the probe loop.

package api

// ClockUnit names the unit of a Clock's readings.
type ClockUnit string

const (
	UnitCycles      ClockUnit = "cycles"
	UnitNanoseconds ClockUnit = "ns"
)

// Clock reads a monotonically increasing counter with no relation to wall time.
// Readings wrap modulo 2^64.
type Clock interface {
	Now() uint64
	Unit() ClockUnit
}

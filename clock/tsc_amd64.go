//go:build amd64

// File: clock/tsc_amd64.go
// Author: momentics <momentics@gmail.com>
//
// Time-stamp counter read via RDTSC.

package clock

import "github.com/momentics/hioload-reflector/api"

// rdtsc is implemented in tsc_amd64.s.
func rdtsc() uint64

type tscClock struct{}

func (tscClock) Now() uint64 { return rdtsc() }

func (tscClock) Unit() api.ClockUnit { return api.UnitCycles }

func hardware() (api.Clock, bool) {
	return tscClock{}, true
}

//go:build !amd64

// File: clock/tsc_other.go
// Author: momentics <momentics@gmail.com>
//
// No portable cycle counter: New falls back to the monotonic clock.

package clock

import "github.com/momentics/hioload-reflector/api"

func hardware() (api.Clock, bool) {
	return nil, false
}

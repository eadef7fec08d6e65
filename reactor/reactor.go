// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral reactor interface for readiness multiplexing.

package reactor

import "time"

// FDEventType is a bit set of readiness conditions.
type FDEventType uint8

const (
	EventRead FDEventType = 1 << iota
	EventWrite
	EventError
)

// FDCallback is invoked from Poll for every ready descriptor.
type FDCallback func(fd int, events FDEventType)

// Reactor multiplexes readiness over many descriptors. Implementations are
// owned by a single loop goroutine; callbacks run on that goroutine and may
// Register or Unregister descriptors.
type Reactor interface {
	// Register adds fd with the given interest set.
	Register(fd int, events FDEventType, cb FDCallback) error

	// Modify replaces the interest set of a registered fd.
	Modify(fd int, events FDEventType) error

	// Unregister removes fd. Unknown descriptors are ignored.
	Unregister(fd int) error

	// Poll waits up to timeout for readiness (timeout < 0 blocks, 0 returns
	// immediately) and dispatches callbacks. Returns the number dispatched.
	Poll(timeout time.Duration) (int, error)

	// Len is the number of registered descriptors.
	Len() int

	// Close releases the backend.
	Close() error
}

// timeoutMillis converts a wait duration to the millisecond argument of
// epoll_wait/poll, rounding sub-millisecond waits up.
func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := int(d / time.Millisecond)
	if ms == 0 && d > 0 {
		ms = 1
	}
	return ms
}

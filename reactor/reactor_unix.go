//go:build unix && !linux

// File: reactor/reactor_unix.go
// Author: momentics <momentics@gmail.com>

package reactor

// New creates the platform reactor: poll(2) outside Linux.
func New() (Reactor, error) {
	return NewPoll(), nil
}

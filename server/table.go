// File: server/table.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection table: an arena of accepted connections addressed by stable
// integer handles. Slots are appended in accept order and never reused within
// a run; a disabled slot only keeps its history.

package server

import (
	"fmt"
	"time"

	"github.com/momentics/hioload-reflector/api"
	"github.com/momentics/hioload-reflector/transport"
)

// DefaultMaxConnections matches the raised RLIMIT_NOFILE.
const DefaultMaxConnections = 65536

// Handle addresses one slot of a Table.
type Handle int

// Connection is one accepted socket.
type Connection struct {
	FD           int
	LastActivity time.Time // wall clock of the last successful receive (or accept)
	Enabled      bool
}

// Table is owned by the echo loop goroutine.
type Table struct {
	conns    []Connection
	byFD     map[int]Handle // enabled connections only; the kernel reuses fd numbers
	capacity int
	active   int
	closeFD  func(int) error
}

// NewTable creates a table that accepts at most capacity connections per run.
func NewTable(capacity int) *Table {
	return newTable(capacity, transport.Close)
}

func newTable(capacity int, closeFD func(int) error) *Table {
	if capacity <= 0 {
		capacity = DefaultMaxConnections
	}
	initial := capacity
	if initial > 1024 {
		initial = 1024
	}
	return &Table{
		conns:    make([]Connection, 0, initial),
		byFD:     make(map[int]Handle, initial),
		capacity: capacity,
		closeFD:  closeFD,
	}
}

// Insert stores fd in the next free slot, enabled and stamped with now.
func (t *Table) Insert(fd int, now time.Time) (Handle, error) {
	if len(t.conns) >= t.capacity {
		return -1, fmt.Errorf("connection table (%d slots): %w", t.capacity, api.ErrCapacityExceeded)
	}
	if _, dup := t.byFD[fd]; dup {
		return -1, fmt.Errorf("fd %d: %w", fd, api.ErrAlreadyRegistered)
	}
	h := Handle(len(t.conns))
	t.conns = append(t.conns, Connection{FD: fd, LastActivity: now, Enabled: true})
	t.byFD[fd] = h
	t.active++
	return h, nil
}

// Lookup finds the enabled connection owning fd.
func (t *Table) Lookup(fd int) (Handle, bool) {
	h, ok := t.byFD[fd]
	return h, ok
}

// Get returns a copy of the slot.
func (t *Table) Get(h Handle) (Connection, error) {
	if h < 0 || int(h) >= len(t.conns) {
		return Connection{}, fmt.Errorf("handle %d: %w", h, api.ErrInvalidHandle)
	}
	return t.conns[h], nil
}

// Touch refreshes the liveness timestamp of an enabled connection.
func (t *Table) Touch(h Handle, now time.Time) error {
	if h < 0 || int(h) >= len(t.conns) || !t.conns[h].Enabled {
		return fmt.Errorf("touch handle %d: %w", h, api.ErrInvalidHandle)
	}
	t.conns[h].LastActivity = now
	return nil
}

// Disable closes the socket and marks the slot disabled. Disabling an
// already disabled slot does nothing, so each socket is closed exactly once.
func (t *Table) Disable(h Handle) error {
	if h < 0 || int(h) >= len(t.conns) {
		return fmt.Errorf("disable handle %d: %w", h, api.ErrInvalidHandle)
	}
	c := &t.conns[h]
	if !c.Enabled {
		return nil
	}
	c.Enabled = false
	delete(t.byFD, c.FD)
	t.active--
	return t.closeFD(c.FD)
}

// Expired appends to dst every enabled handle whose last activity is more
// than timeoutSecs whole seconds before now.
func (t *Table) Expired(dst []Handle, timeoutSecs int, now time.Time) []Handle {
	nowSec := now.Unix()
	for i := range t.conns {
		c := &t.conns[i]
		if c.Enabled && nowSec > c.LastActivity.Unix()+int64(timeoutSecs) {
			dst = append(dst, Handle(i))
		}
	}
	return dst
}

// Active is the number of enabled connections.
func (t *Table) Active() int { return t.active }

// Len is the number of slots used so far in the run.
func (t *Table) Len() int { return len(t.conns) }

// Cap is the maximum number of slots.
func (t *Table) Cap() int { return t.capacity }

// CloseAll disables every enabled slot.
func (t *Table) CloseAll() error {
	var first error
	for i := range t.conns {
		if err := t.Disable(Handle(i)); err != nil && first == nil {
			first = err
		}
	}
	return first
}

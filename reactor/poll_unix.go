//go:build unix

// File: reactor/poll_unix.go
// Author: momentics <momentics@gmail.com>
//
// poll(2)-based reactor for unix systems without epoll.

package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reflector/api"
)

type pollEntry struct {
	cb FDCallback
}

// pollReactor keeps a dense pollfd array plus an fd -> index map.
type pollReactor struct {
	fds     []unix.PollFd
	index   map[int]int
	entries map[int]pollEntry
	ready   []unix.PollFd
	closed  bool
}

// NewPoll creates a poll(2)-based reactor. Each Poll costs O(registered).
func NewPoll() Reactor {
	return &pollReactor{
		index:   make(map[int]int),
		entries: make(map[int]pollEntry),
	}
}

func pollMask(events FDEventType) int16 {
	var mask int16
	if events&EventRead != 0 {
		mask |= unix.POLLIN
	}
	if events&EventWrite != 0 {
		mask |= unix.POLLOUT
	}
	return mask
}

func (r *pollReactor) Register(fd int, events FDEventType, cb FDCallback) error {
	if r.closed {
		return api.ErrReactorClosed
	}
	if _, ok := r.index[fd]; ok {
		return fmt.Errorf("poll register fd %d: %w", fd, api.ErrAlreadyRegistered)
	}
	r.index[fd] = len(r.fds)
	r.fds = append(r.fds, unix.PollFd{Fd: int32(fd), Events: pollMask(events)})
	r.entries[fd] = pollEntry{cb: cb}
	return nil
}

func (r *pollReactor) Modify(fd int, events FDEventType) error {
	i, ok := r.index[fd]
	if !ok {
		return fmt.Errorf("poll modify fd %d: %w", fd, api.ErrInvalidArgument)
	}
	r.fds[i].Events = pollMask(events)
	return nil
}

func (r *pollReactor) Unregister(fd int) error {
	i, ok := r.index[fd]
	if !ok {
		return nil
	}
	last := len(r.fds) - 1
	if i != last {
		r.fds[i] = r.fds[last]
		r.index[int(r.fds[i].Fd)] = i
	}
	r.fds = r.fds[:last]
	delete(r.index, fd)
	delete(r.entries, fd)
	return nil
}

func (r *pollReactor) Poll(timeout time.Duration) (int, error) {
	if r.closed {
		return 0, api.ErrReactorClosed
	}
	if len(r.fds) == 0 {
		if timeout > 0 {
			time.Sleep(timeout)
		}
		return 0, nil
	}
	n, err := unix.Poll(r.fds, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return 0, nil
	}
	// Snapshot first: callbacks reorder r.fds through Unregister.
	r.ready = r.ready[:0]
	for _, pfd := range r.fds {
		if pfd.Revents != 0 {
			r.ready = append(r.ready, pfd)
		}
	}
	dispatched := 0
	for _, pfd := range r.ready {
		fd := int(pfd.Fd)
		entry, ok := r.entries[fd]
		if !ok {
			continue
		}
		var eventType FDEventType
		if pfd.Revents&unix.POLLIN != 0 {
			eventType |= EventRead
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			eventType |= EventWrite
		}
		if pfd.Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			eventType |= EventError
		}
		entry.cb(fd, eventType)
		dispatched++
	}
	return dispatched, nil
}

func (r *pollReactor) Len() int {
	return len(r.fds)
}

func (r *pollReactor) Close() error {
	r.closed = true
	r.fds = nil
	r.index = nil
	r.entries = nil
	return nil
}

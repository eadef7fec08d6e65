//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reflector/api"
)

const maxEvents = 256

// epollReactor implements Reactor using level-triggered Linux epoll.
type epollReactor struct {
	epfd      int
	events    []unix.EpollEvent
	callbacks map[int]FDCallback
	closed    bool
}

// New creates the platform reactor: epoll on Linux.
func New() (Reactor, error) {
	return newEpollReactor()
}

func newEpollReactor() (*epollReactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollReactor{
		epfd:      epfd,
		events:    make([]unix.EpollEvent, maxEvents),
		callbacks: make(map[int]FDCallback),
	}, nil
}

func epollMask(events FDEventType) uint32 {
	var mask uint32
	if events&EventRead != 0 {
		mask |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if events&EventWrite != 0 {
		mask |= unix.EPOLLOUT
	}
	return mask
}

// Register adds a file descriptor to the epoll watch list.
func (r *epollReactor) Register(fd int, events FDEventType, cb FDCallback) error {
	if r.closed {
		return api.ErrReactorClosed
	}
	if _, ok := r.callbacks[fd]; ok {
		return fmt.Errorf("epoll register fd %d: %w", fd, api.ErrAlreadyRegistered)
	}
	ev := unix.EpollEvent{Events: epollMask(events), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	r.callbacks[fd] = cb
	return nil
}

// Modify changes the interest set of a registered descriptor.
func (r *epollReactor) Modify(fd int, events FDEventType) error {
	if _, ok := r.callbacks[fd]; !ok {
		return fmt.Errorf("epoll modify fd %d: %w", fd, api.ErrInvalidArgument)
	}
	ev := unix.EpollEvent{Events: epollMask(events), Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl mod: %w", err)
	}
	return nil
}

// Unregister removes a file descriptor from the epoll watch list.
func (r *epollReactor) Unregister(fd int) error {
	if _, ok := r.callbacks[fd]; !ok {
		return nil
	}
	delete(r.callbacks, fd)
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

// Poll waits for events on registered file descriptors and dispatches them.
func (r *epollReactor) Poll(timeout time.Duration) (int, error) {
	if r.closed {
		return 0, api.ErrReactorClosed
	}
	n, err := unix.EpollWait(r.epfd, r.events, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil // interrupted by signal, normal
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	dispatched := 0
	for i := 0; i < n; i++ {
		ev := r.events[i]
		fd := int(ev.Fd)
		// A callback earlier in this batch may have unregistered fd.
		cb, ok := r.callbacks[fd]
		if !ok {
			continue
		}
		var eventType FDEventType
		if ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
			eventType |= EventRead
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			eventType |= EventWrite
		}
		if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			eventType |= EventError
		}
		cb(fd, eventType)
		dispatched++
	}
	return dispatched, nil
}

func (r *epollReactor) Len() int {
	return len(r.callbacks)
}

// Close releases the epoll file descriptor. Registered descriptors stay open.
func (r *epollReactor) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.callbacks = nil
	return unix.Close(r.epfd)
}

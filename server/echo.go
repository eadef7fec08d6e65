// File: server/echo.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Echo loop: accept pass, idle eviction scan and reactor-driven echo on a
// single goroutine.

package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/momentics/hioload-reflector/affinity"
	"github.com/momentics/hioload-reflector/api"
	"github.com/momentics/hioload-reflector/control"
	"github.com/momentics/hioload-reflector/reactor"
	"github.com/momentics/hioload-reflector/transport"
)

// Counters are the loop's running totals.
type Counters struct {
	Accepted    int64
	Rejected    int64
	Evicted     int64
	PeerClosed  int64
	BytesEchoed int64
	Deferred    int64 // echoes that waited for send buffer space
	WriteErrors int64
}

// Server echoes every received payload back to its sender.
type Server struct {
	cfg      *Config
	lfd      int
	port     int
	table    *Table
	conns    reactor.Reactor // accepted connections, read interest
	listener reactor.Reactor // listening socket only
	metrics  *control.MetricsRegistry
	probes   *control.DebugProbes
	now      func() time.Time

	buf          [transport.PayloadSize]byte
	expired      []Handle
	dataReceived bool
	lastScanSec  int64
	counters     Counters

	pending     map[int][]byte // unsent echo bytes per fd
	writeFailed map[int]bool   // fds whose echo write failed, logged once
	inspect     chan chan TableState
}

// Option customizes server initialization.
type Option func(*Server)

// WithMetrics publishes loop counters into registry once per second.
func WithMetrics(registry *control.MetricsRegistry) Option {
	return func(s *Server) {
		s.metrics = registry
	}
}

// WithDebugProbes exposes live connection-table state through probes.
func WithDebugProbes(probes *control.DebugProbes) Option {
	return func(s *Server) {
		s.probes = probes
	}
}

// WithWallClock overrides the wall clock used for liveness and eviction.
func WithWallClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New binds the listening socket, raises the file limit and sets up the
// reactors. Every failure here is fatal to the caller.
func New(cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.TimeoutSecs < 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "negative timeout").WithContext("timeout_secs", cfg.TimeoutSecs)
	}
	s := &Server{
		cfg:   cfg,
		lfd:   -1,
		table: NewTable(cfg.MaxConnections),
		now:   time.Now,

		pending:     make(map[int][]byte),
		writeFailed: make(map[int]bool),
		inspect:     make(chan chan TableState),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.probes != nil {
		s.probes.RegisterProbe("server.table", s.tableProbe)
	}

	lfd, err := transport.Listen(cfg.Port, cfg.Backlog)
	if err != nil {
		return nil, err
	}
	s.lfd = lfd
	if s.port, err = transport.LocalPort(lfd); err != nil {
		s.Close()
		return nil, err
	}
	if cfg.FileLimit > 0 {
		if err := transport.RaiseFileLimit(cfg.FileLimit); err != nil {
			s.Close()
			return nil, err
		}
	}
	if soft, hard, err := transport.FileLimit(); err == nil {
		log.Printf("[server] open file limit: soft %d, hard %d", soft, hard)
	}
	if s.conns, err = reactor.New(); err != nil {
		s.Close()
		return nil, err
	}
	if s.listener, err = reactor.New(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.listener.Register(lfd, reactor.EventRead, s.onAcceptable); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Port is the bound TCP port.
func (s *Server) Port() int { return s.port }

// Table exposes the connection table to the loop's goroutine.
func (s *Server) Table() *Table { return s.table }

// Counters returns the running totals. Call from the loop's goroutine.
func (s *Server) Counters() Counters { return s.counters }

// Accepting reports whether the accept pass still runs.
func (s *Server) Accepting() bool {
	return s.cfg.AcceptAfterData || !s.dataReceived
}

// Run drives the loop until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	log.Printf("[server] started: port %d, timeout: %d", s.port, s.cfg.TimeoutSecs)
	if !s.cfg.AcceptAfterData {
		log.Printf("[server] new connections are accepted only until the first data arrives (accept_after_data: false)")
	}
	if s.cfg.CPU >= 0 {
		release, err := affinity.Pin(s.cfg.CPU)
		if err != nil {
			return err
		}
		defer release()
	}
	for {
		select {
		case <-ctx.Done():
			s.publishMetrics()
			return nil
		default:
		}
		if err := s.step(); err != nil {
			return err
		}
	}
}

// step runs one loop iteration.
func (s *Server) step() error {
	wait := s.cfg.IdleWait
	if s.Accepting() {
		if err := s.acceptReady(); err != nil {
			return err
		}
		// The accept pass already waited.
		wait = 0
	}

	now := s.now()
	select {
	case reply := <-s.inspect:
		reply <- s.tableState(now)
	default:
	}
	if sec := now.Unix(); sec != s.lastScanSec {
		// Eviction compares whole seconds, so scanning once per second
		// matches scanning on every iteration.
		s.scanAndEvict(now)
		s.lastScanSec = sec
		s.publishMetrics()
	}

	if _, err := s.conns.Poll(wait); err != nil {
		return fmt.Errorf("server poll: %w", err)
	}
	return nil
}

// acceptReady accepts while the listener reports a pending connection within
// AcceptWait.
func (s *Server) acceptReady() error {
	for {
		n, err := s.listener.Poll(s.cfg.AcceptWait)
		if err != nil {
			return fmt.Errorf("accept poll: %w", err)
		}
		if n == 0 {
			return nil
		}
	}
}

func (s *Server) onAcceptable(lfd int, _ reactor.FDEventType) {
	fd, err := transport.Accept(lfd)
	if err != nil {
		if !errors.Is(err, transport.ErrWouldBlock) {
			log.Printf("[server] accept: %v", err)
		}
		return
	}
	h, err := s.table.Insert(fd, s.now())
	if err != nil {
		log.Printf("[server] rejecting socket %d: %v", fd, err)
		transport.Close(fd)
		s.counters.Rejected++
		return
	}
	if err := s.conns.Register(fd, reactor.EventRead, s.onReadable); err != nil {
		log.Printf("[server] register socket %d: %v", fd, err)
		s.table.Disable(h)
		s.counters.Rejected++
		return
	}
	s.counters.Accepted++
}

// onReadable receives up to PayloadSize bytes and echoes them. Write
// readiness only arrives while an echo is pending.
func (s *Server) onReadable(fd int, events reactor.FDEventType) {
	h, ok := s.table.Lookup(fd)
	if !ok {
		s.conns.Unregister(fd)
		return
	}
	if events&reactor.EventWrite != 0 {
		s.flush(fd)
	}
	if events&(reactor.EventRead|reactor.EventError) == 0 {
		return
	}
	n, err := transport.Recv(fd, s.buf[:])
	if err != nil {
		// Would-block and socket errors alike: nothing this iteration.
		return
	}
	if n == 0 {
		s.retire(h, fd)
		log.Printf("[server] socket %d closed by client", fd)
		s.counters.PeerClosed++
		return
	}
	s.table.Touch(h, s.now())
	s.dataReceived = true
	s.echo(fd, s.buf[:n])
}

// echo writes b back to fd. Bytes the socket cannot take now are kept and
// sent, in order, once fd reports writable.
func (s *Server) echo(fd int, b []byte) {
	if len(s.pending[fd]) > 0 {
		s.pending[fd] = append(s.pending[fd], b...)
		return
	}
	sent, err := transport.Send(fd, b)
	if err != nil && !errors.Is(err, transport.ErrWouldBlock) {
		s.writeFailure(fd, err)
		return
	}
	s.counters.BytesEchoed += int64(sent)
	if sent == len(b) {
		return
	}
	s.pending[fd] = append([]byte(nil), b[sent:]...)
	s.counters.Deferred++
	if err := s.conns.Modify(fd, reactor.EventRead|reactor.EventWrite); err != nil {
		log.Printf("[server] socket %d: watch writable: %v", fd, err)
	}
}

// flush sends pending echo bytes and drops write interest once drained.
func (s *Server) flush(fd int) {
	rest := s.pending[fd]
	if len(rest) == 0 {
		return
	}
	sent, err := transport.Send(fd, rest)
	if err != nil && !errors.Is(err, transport.ErrWouldBlock) {
		delete(s.pending, fd)
		s.conns.Modify(fd, reactor.EventRead)
		s.writeFailure(fd, err)
		return
	}
	s.counters.BytesEchoed += int64(sent)
	if sent < len(rest) {
		s.pending[fd] = rest[sent:]
		return
	}
	delete(s.pending, fd)
	if err := s.conns.Modify(fd, reactor.EventRead); err != nil {
		log.Printf("[server] socket %d: unwatch writable: %v", fd, err)
	}
}

func (s *Server) writeFailure(fd int, err error) {
	s.counters.WriteErrors++
	if s.writeFailed[fd] {
		return
	}
	s.writeFailed[fd] = true
	log.Printf("[server] socket %d: echo write: %v", fd, err)
}

// scanAndEvict closes every connection idle for longer than the timeout.
func (s *Server) scanAndEvict(now time.Time) {
	s.expired = s.table.Expired(s.expired[:0], s.cfg.TimeoutSecs, now)
	for _, h := range s.expired {
		c, err := s.table.Get(h)
		if err != nil {
			continue
		}
		log.Printf("[server] timeout: closing socket %d", c.FD)
		s.retire(h, c.FD)
		s.counters.Evicted++
	}
}

func (s *Server) retire(h Handle, fd int) {
	delete(s.pending, fd)
	delete(s.writeFailed, fd)
	if err := s.conns.Unregister(fd); err != nil {
		log.Printf("[server] unregister socket %d: %v", fd, err)
	}
	if err := s.table.Disable(h); err != nil {
		log.Printf("[server] close socket %d: %v", fd, err)
	}
}

func (s *Server) publishMetrics() {
	if s.metrics == nil {
		return
	}
	c := s.counters
	s.metrics.Set("server.accepted", c.Accepted)
	s.metrics.Set("server.rejected", c.Rejected)
	s.metrics.Set("server.evicted", c.Evicted)
	s.metrics.Set("server.closed_by_peer", c.PeerClosed)
	s.metrics.Set("server.bytes_echoed", c.BytesEchoed)
	s.metrics.Set("server.deferred_echoes", c.Deferred)
	s.metrics.Set("server.write_errors", c.WriteErrors)
	s.metrics.Set("server.active", s.table.Active())
	s.metrics.Set("server.slots_used", s.table.Len())
	s.metrics.Set("server.accepting", s.Accepting())
}

// Close closes every connection, the listener and the reactors.
func (s *Server) Close() error {
	var errs []error
	if s.table != nil {
		errs = append(errs, s.table.CloseAll())
	}
	if s.lfd >= 0 {
		errs = append(errs, transport.Close(s.lfd))
		s.lfd = -1
	}
	if s.conns != nil {
		errs = append(errs, s.conns.Close())
	}
	if s.listener != nil {
		errs = append(errs, s.listener.Close())
	}
	return errors.Join(errs...)
}

// File: client/probe.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Probe loop: for every writable connection send the current clock reading,
// block for its echo and record the round-trip delta. Reports go out once
// per wall-clock second.

package client

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/momentics/hioload-reflector/affinity"
	"github.com/momentics/hioload-reflector/api"
	"github.com/momentics/hioload-reflector/clock"
	"github.com/momentics/hioload-reflector/reactor"
	"github.com/momentics/hioload-reflector/report"
	"github.com/momentics/hioload-reflector/stats"
	"github.com/momentics/hioload-reflector/transport"
)

// Prober owns the fixed connection set and the sample statistics.
type Prober struct {
	cfg     *Config
	clock   api.Clock
	wall    func() time.Time
	sink    report.Sink
	runID   string
	stats   *stats.Statistics
	cadence *stats.Cadence
	reactor reactor.Reactor
	fds     []int
	silent  map[int]bool // sockets whose probe failed, logged once

	sendBuf [transport.PayloadSize]byte
	recvBuf [transport.PayloadSize]byte
	misses  int64

	mu          sync.Mutex // guards fds against Interrupt racing Close
	interrupted atomic.Bool
}

// Option customizes the prober.
type Option func(*Prober)

// WithClock replaces the cycle clock.
func WithClock(c api.Clock) Option {
	return func(p *Prober) { p.clock = c }
}

// WithWallClock replaces the wall clock driving the report cadence.
func WithWallClock(now func() time.Time) Option {
	return func(p *Prober) { p.wall = now }
}

// WithSink sets where reports go; stdout by default.
func WithSink(s report.Sink) Option {
	return func(p *Prober) { p.sink = s }
}

// WithRunID tags reports with id instead of a fresh UUID.
func WithRunID(id string) Option {
	return func(p *Prober) { p.runID = id }
}

// New resolves the target, connects every socket and registers it for
// writability. Any failure aborts the whole probe: no partial connection set.
func New(ctx context.Context, cfg *Config, opts ...Option) (*Prober, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.NumConnections <= 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "num_connections must be positive").
			WithContext("num_connections", cfg.NumConnections)
	}
	p := &Prober{
		cfg:    cfg,
		wall:   time.Now,
		silent: make(map[int]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.clock == nil {
		p.clock = clock.New()
	}
	if p.sink == nil {
		p.sink = report.NewWriterSink(os.Stdout)
	}
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	p.stats = stats.New(cfg.Window, p.clock.Unit())

	log.Printf("[client] started: host: %s, port %d, interval %f num_connections: %d",
		cfg.Host, cfg.Port, cfg.Interval.Seconds(), cfg.NumConnections)

	ip, err := transport.ResolveIPv4(ctx, cfg.Host)
	if err != nil {
		return nil, err
	}

	p.fds = make([]int, 0, cfg.NumConnections)
	for i := 0; i < cfg.NumConnections; i++ {
		fd, err := transport.Dial(ip, cfg.Port)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("connection %d of %d: %w", i+1, cfg.NumConnections, err)
		}
		p.fds = append(p.fds, fd)
	}

	if p.reactor, err = reactor.New(); err != nil {
		p.Close()
		return nil, err
	}
	for _, fd := range p.fds {
		if err := p.reactor.Register(fd, reactor.EventWrite, p.onWritable); err != nil {
			p.Close()
			return nil, err
		}
	}
	log.Printf("[client] connected %d sockets", len(p.fds))
	p.cadence = stats.NewCadence(p.wall())
	return p, nil
}

// Stats exposes the sample statistics to the loop's goroutine.
func (p *Prober) Stats() *stats.Statistics { return p.stats }

// RunID identifies this probe's reports.
func (p *Prober) RunID() string { return p.runID }

// Misses counts probes that got no full echo back.
func (p *Prober) Misses() int64 { return p.misses }

// Run probes until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) error {
	if p.cfg.CPU >= 0 {
		release, err := affinity.Pin(p.cfg.CPU)
		if err != nil {
			return err
		}
		defer release()
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Interrupt()
		case <-done:
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C
	for {
		if err := p.step(); err != nil {
			return err
		}
		if p.interrupted.Load() {
			return nil
		}
		timer.Reset(p.cfg.Interval)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

// step makes one pass over the writable connections.
func (p *Prober) step() error {
	if _, err := p.reactor.Poll(0); err != nil {
		return fmt.Errorf("client poll: %w", err)
	}
	p.maybeReport()
	return nil
}

// Interrupt shuts down every probe socket so that a pass blocked waiting for
// an echo returns. Safe to call from any goroutine; the pass in progress
// ends without further samples.
func (p *Prober) Interrupt() {
	if !p.interrupted.CompareAndSwap(false, true) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, fd := range p.fds {
		if err := transport.Shutdown(fd); err != nil {
			log.Printf("[client] socket %d: %v", fd, err)
		}
	}
}

func (p *Prober) onWritable(fd int, events reactor.FDEventType) {
	if p.interrupted.Load() {
		return
	}
	if events&reactor.EventWrite != 0 {
		p.probe(fd)
	}
	p.maybeReport()
}

// probe sends one timestamp on fd and waits for its echo.
func (p *Prober) probe(fd int) {
	binary.NativeEndian.PutUint64(p.sendBuf[:], p.clock.Now())
	if err := transport.SendAll(fd, p.sendBuf[:]); err != nil {
		p.miss(fd, "send failed: %v", err)
		return
	}

	n, err := transport.RecvFull(fd, p.recvBuf[:])
	if err != nil || n != len(p.recvBuf) {
		p.miss(fd, "no echo (read %d bytes, err %v)", n, err)
		return
	}
	cur := p.clock.Now()
	recvd := binary.NativeEndian.Uint64(p.recvBuf[:])
	p.stats.Record(stats.Delta(recvd, cur))
}

// miss counts a probe without a sample and logs the first one per socket.
func (p *Prober) miss(fd int, format string, args ...any) {
	p.misses++
	if p.silent[fd] || p.interrupted.Load() {
		return
	}
	p.silent[fd] = true
	log.Printf("[client] socket %d: "+format, append([]any{fd}, args...)...)
}

func (p *Prober) maybeReport() {
	now := p.wall()
	if !p.cadence.Due(now) {
		return
	}
	r := p.stats.Snapshot(now)
	r.RunID = p.runID
	if err := p.sink.Emit(r); err != nil {
		log.Printf("[client] report: %v", err)
	}
}

// Close closes every connection and the reactor.
func (p *Prober) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reactor != nil {
		for _, fd := range p.fds {
			p.reactor.Unregister(fd)
		}
		p.reactor.Close()
		p.reactor = nil
	}
	var first error
	for _, fd := range p.fds {
		if err := transport.Close(fd); err != nil && first == nil {
			first = err
		}
	}
	p.fds = nil
	return first
}

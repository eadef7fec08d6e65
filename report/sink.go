// File: report/sink.go
// Author: momentics <momentics@gmail.com>
//
// Package report delivers the probe's once-per-second aggregates.

package report

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/momentics/hioload-reflector/control"
	"github.com/momentics/hioload-reflector/stats"
)

// Sink receives reports from the probe loop's goroutine.
type Sink interface {
	Emit(r stats.Report) error
}

// WriterSink prints one text line per report.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink writes report lines to w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Emit(r stats.Report) error {
	_, err := fmt.Fprintln(s.w, r.String())
	return err
}

// MetricsSink mirrors the latest report into a metrics registry.
type MetricsSink struct {
	registry *control.MetricsRegistry
	prefix   string
}

// NewMetricsSink publishes under "<prefix>.max", "<prefix>.min" and so on.
func NewMetricsSink(registry *control.MetricsRegistry, prefix string) *MetricsSink {
	return &MetricsSink{registry: registry, prefix: prefix}
}

func (s *MetricsSink) Emit(r stats.Report) error {
	s.registry.Set(s.prefix+".max", r.Max)
	s.registry.Set(s.prefix+".min", r.Min)
	s.registry.Set(s.prefix+".avg", r.Average)
	s.registry.Set(s.prefix+".held", r.Held)
	s.registry.Set(s.prefix+".total", r.Total)
	s.registry.Set(s.prefix+".unit", string(r.Unit))
	s.registry.Set(s.prefix+".reported_at", r.Time)
	s.registry.Add(s.prefix+".reports", 1)
	return nil
}

// Multi fans a report out to every sink. A failing sink is logged and does
// not stop delivery to the rest.
type Multi []Sink

func (m Multi) Emit(r stats.Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(r); err != nil {
			log.Printf("[report] sink %T: %v", s, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

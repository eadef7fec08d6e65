package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/momentics/hioload-reflector/api"
	"github.com/momentics/hioload-reflector/control"
	"github.com/momentics/hioload-reflector/stats"
)

func sampleReport() stats.Report {
	return stats.Report{
		RunID:   "run-1",
		Time:    time.Unix(1_700_000_000, 0).UTC(),
		Max:     900,
		Min:     100,
		Average: 250.5,
		Held:    4,
		Total:   4,
		Unit:    api.UnitCycles,
	}
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriterSink(&buf).Emit(sampleReport()); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if got, want := buf.String(), "max: 900 min: 100 avg: 250.500000 unit: cycles\n"; got != want {
		t.Errorf("line = %q, want %q", got, want)
	}
}

func TestMetricsSink(t *testing.T) {
	mr := control.NewMetricsRegistry()
	sink := NewMetricsSink(mr, "client")
	for i := 0; i < 2; i++ {
		if err := sink.Emit(sampleReport()); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	if n := mr.Counter("client.reports"); n != 2 {
		t.Errorf("client.reports = %d, want 2", n)
	}
	snap := mr.GetSnapshot()
	if snap["client.max"] != uint64(900) || snap["client.min"] != uint64(100) || snap["client.unit"] != "cycles" {
		t.Errorf("snapshot = %v", snap)
	}
}

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	f.subject, f.data = subject, data
	return f.err
}

func TestNATSSinkPublishesJSON(t *testing.T) {
	fp := &fakePublisher{}
	s := &NATSSink{pub: fp, subject: "reflector.reports"}
	if err := s.Emit(sampleReport()); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if fp.subject != "reflector.reports" {
		t.Errorf("subject = %q", fp.subject)
	}
	var got stats.Report
	if err := json.Unmarshal(fp.data, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.RunID != "run-1" || got.Max != 900 || got.Unit != api.UnitCycles {
		t.Errorf("payload = %+v", got)
	}
	s.Close() // nil connection is a no-op
}

type countingSink struct{ n int }

func (c *countingSink) Emit(stats.Report) error { c.n++; return nil }

func TestMultiContinuesPastFailure(t *testing.T) {
	boom := errors.New("boom")
	after := &countingSink{}
	m := Multi{&NATSSink{pub: &fakePublisher{err: boom}, subject: "s"}, after}
	err := m.Emit(sampleReport())
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if after.n != 1 {
		t.Errorf("later sink called %d times", after.n)
	}
}

package clock

import (
	"runtime"
	"testing"
	"time"

	"github.com/momentics/hioload-reflector/api"
)

func TestNewPicksUnitForArch(t *testing.T) {
	c := New()
	want := api.UnitNanoseconds
	if runtime.GOARCH == "amd64" {
		want = api.UnitCycles
	}
	if c.Unit() != want {
		t.Errorf("Unit() = %q, want %q", c.Unit(), want)
	}
}

func TestClockAdvances(t *testing.T) {
	for name, c := range map[string]api.Clock{"default": New(), "monotonic": NewMonotonic()} {
		a := c.Now()
		time.Sleep(2 * time.Millisecond)
		b := c.Now()
		if b <= a {
			t.Errorf("%s: clock did not advance: %d then %d", name, a, b)
		}
	}
}

func TestMonotonicUnit(t *testing.T) {
	m := NewMonotonic()
	if m.Unit() != api.UnitNanoseconds {
		t.Errorf("Unit() = %q", m.Unit())
	}
	time.Sleep(time.Millisecond)
	if m.Now() < uint64(time.Millisecond) {
		t.Errorf("expected at least 1ms of nanoseconds, got %d", m.Now())
	}
}

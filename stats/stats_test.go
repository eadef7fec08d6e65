package stats

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/momentics/hioload-reflector/api"
)

func TestRecordKeepsBoundsMonotonic(t *testing.T) {
	s := New(DefaultWindow, api.UnitCycles)
	if s.Min() != math.MaxUint64 || s.Max() != 0 {
		t.Fatalf("initial bounds = (%d, %d)", s.Min(), s.Max())
	}
	rng := rand.New(rand.NewSource(7))
	prevMin, prevMax := s.Min(), s.Max()
	for i := 0; i < 5000; i++ {
		d := uint64(rng.Int63n(1_000_000))
		s.Record(d)
		if s.Min() > d || s.Max() < d {
			t.Fatalf("sample %d outside [%d, %d]", d, s.Min(), s.Max())
		}
		if s.Min() > prevMin || s.Max() < prevMax {
			t.Fatalf("bounds regressed: min %d->%d max %d->%d", prevMin, s.Min(), prevMax, s.Max())
		}
		prevMin, prevMax = s.Min(), s.Max()
	}
	if s.Total() != 5000 {
		t.Errorf("Total = %d", s.Total())
	}
}

func TestAverageEmpty(t *testing.T) {
	if avg := New(0, api.UnitCycles).Average(); avg != 0 {
		t.Errorf("Average of empty window = %f", avg)
	}
}

func TestAverageIsOrderIndependent(t *testing.T) {
	values := []uint64{10, 20, 30, 40, 1000, 7}
	forward := New(DefaultWindow, api.UnitCycles)
	backward := New(DefaultWindow, api.UnitCycles)
	var sum float64
	for i := range values {
		forward.Record(values[i])
		backward.Record(values[len(values)-1-i])
		sum += float64(values[i])
	}
	want := sum / float64(len(values))
	if got := forward.Average(); math.Abs(got-want) > 1e-9 {
		t.Errorf("forward Average = %f, want %f", got, want)
	}
	if got := backward.Average(); math.Abs(got-want) > 1e-9 {
		t.Errorf("backward Average = %f, want %f", got, want)
	}
}

func TestWindowOverwritesOldest(t *testing.T) {
	s := New(DefaultWindow, api.UnitCycles)
	// The first sample is an outlier that must fall out of the window.
	s.Record(1_000_000)
	for i := 0; i < DefaultWindow; i++ {
		s.Record(10)
	}
	if s.Len() != DefaultWindow {
		t.Fatalf("Len = %d, want %d", s.Len(), DefaultWindow)
	}
	if got := s.Average(); math.Abs(got-10) > 1e-9 {
		t.Errorf("Average = %f, want 10", got)
	}
	// Lifetime max is not windowed.
	if s.Max() != 1_000_000 {
		t.Errorf("Max = %d, want 1000000", s.Max())
	}
}

func TestAverageHugeValuesDoNotOverflow(t *testing.T) {
	s := New(4, api.UnitCycles)
	for i := 0; i < 4; i++ {
		s.Record(math.MaxUint64 - 1)
	}
	if got := s.Average(); got < 1.8e19 {
		t.Errorf("Average = %g, expected near 2^64", got)
	}
}

func TestSnapshot(t *testing.T) {
	s := New(3, api.UnitNanoseconds)
	for _, v := range []uint64{5, 1, 9, 3} {
		s.Record(v)
	}
	now := time.Unix(100, 0)
	r := s.Snapshot(now)
	if r.Max != 9 || r.Min != 1 || r.Held != 3 || r.Total != 4 || r.Unit != api.UnitNanoseconds || !r.Time.Equal(now) {
		t.Fatalf("unexpected report %+v", r)
	}
	if math.Abs(r.Average-13.0/3.0) > 1e-9 {
		t.Errorf("Average = %f", r.Average)
	}
	if got, want := r.String(), "max: 9 min: 1 avg: 4.333333 unit: ns"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

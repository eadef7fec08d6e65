//go:build unix

package reactor

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reflector/api"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

func reactors(t *testing.T) map[string]Reactor {
	t.Helper()
	native, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rs := map[string]Reactor{"native": native, "poll": NewPoll()}
	t.Cleanup(func() {
		for _, r := range rs {
			r.Close()
		}
	})
	return rs
}

func TestPollDispatchesReadReadiness(t *testing.T) {
	for name, r := range reactors(t) {
		t.Run(name, func(t *testing.T) {
			a, b := socketPair(t)
			var got []FDEventType
			if err := r.Register(a, EventRead, func(fd int, ev FDEventType) {
				if fd != a {
					t.Errorf("callback fd = %d, want %d", fd, a)
				}
				got = append(got, ev)
			}); err != nil {
				t.Fatalf("Register: %v", err)
			}

			n, err := r.Poll(0)
			if err != nil || n != 0 {
				t.Fatalf("idle Poll = (%d, %v), want (0, nil)", n, err)
			}

			if _, err := unix.Write(b, []byte{1, 2, 3}); err != nil {
				t.Fatalf("write: %v", err)
			}
			n, err = r.Poll(time.Second)
			if err != nil || n != 1 {
				t.Fatalf("Poll = (%d, %v), want (1, nil)", n, err)
			}
			if len(got) != 1 || got[0]&EventRead == 0 {
				t.Fatalf("events = %v", got)
			}
			if err := r.Unregister(a); err != nil {
				t.Fatalf("Unregister: %v", err)
			}
			if r.Len() != 0 {
				t.Errorf("Len after Unregister = %d", r.Len())
			}
		})
	}
}

func TestWriteInterestAndModify(t *testing.T) {
	for name, r := range reactors(t) {
		t.Run(name, func(t *testing.T) {
			a, _ := socketPair(t)
			writable := 0
			if err := r.Register(a, EventWrite, func(fd int, ev FDEventType) {
				if ev&EventWrite != 0 {
					writable++
				}
			}); err != nil {
				t.Fatalf("Register: %v", err)
			}
			if _, err := r.Poll(0); err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if writable != 1 {
				t.Fatalf("writable = %d, want 1", writable)
			}
			if err := r.Modify(a, EventRead); err != nil {
				t.Fatalf("Modify: %v", err)
			}
			if n, _ := r.Poll(0); n != 0 {
				t.Errorf("Poll after Modify dispatched %d", n)
			}
		})
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	for name, r := range reactors(t) {
		t.Run(name, func(t *testing.T) {
			a, _ := socketPair(t)
			cb := func(int, FDEventType) {}
			if err := r.Register(a, EventRead, cb); err != nil {
				t.Fatalf("Register: %v", err)
			}
			if err := r.Register(a, EventRead, cb); !errors.Is(err, api.ErrAlreadyRegistered) {
				t.Errorf("second Register err = %v", err)
			}
		})
	}
}

func TestUnregisterInsideCallback(t *testing.T) {
	for name, r := range reactors(t) {
		t.Run(name, func(t *testing.T) {
			a, b := socketPair(t)
			c, d := socketPair(t)
			calls := 0
			cb := func(fd int, ev FDEventType) {
				calls++
				// Drop both descriptors; the second must not be dispatched.
				r.Unregister(a)
				r.Unregister(c)
			}
			r.Register(a, EventRead, cb)
			r.Register(c, EventRead, cb)
			unix.Write(b, []byte{1})
			unix.Write(d, []byte{1})
			time.Sleep(10 * time.Millisecond)
			if _, err := r.Poll(time.Second); err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
		})
	}
}

func TestPollTimeoutWaits(t *testing.T) {
	for name, r := range reactors(t) {
		t.Run(name, func(t *testing.T) {
			a, _ := socketPair(t)
			r.Register(a, EventRead, func(int, FDEventType) {})
			start := time.Now()
			if _, err := r.Poll(50 * time.Millisecond); err != nil {
				t.Fatalf("Poll: %v", err)
			}
			if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
				t.Errorf("Poll returned after %v", elapsed)
			}
		})
	}
}

func TestTimeoutMillis(t *testing.T) {
	cases := map[time.Duration]int{
		-1:                     -1,
		0:                      0,
		time.Microsecond:       1,
		100 * time.Millisecond: 100,
	}
	for in, want := range cases {
		if got := timeoutMillis(in); got != want {
			t.Errorf("timeoutMillis(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestClosedReactor(t *testing.T) {
	r := NewPoll()
	r.Close()
	if _, err := r.Poll(0); !errors.Is(err, api.ErrReactorClosed) {
		t.Errorf("Poll on closed reactor err = %v", err)
	}
}

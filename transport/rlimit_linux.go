//go:build linux

// File: transport/rlimit_linux.go
// Author: momentics <momentics@gmail.com>

package transport

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-reflector/api"
)

// RaiseFileLimit sets both the soft and hard RLIMIT_NOFILE to n.
func RaiseFileLimit(n uint64) error {
	r := unix.Rlimit{Cur: n, Max: n}
	if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &r); err != nil {
		return api.WrapError(api.ErrCodeResourceLimit, "setrlimit", err).WithContext("nofile", n)
	}
	return nil
}

// FileLimit returns the current soft and hard RLIMIT_NOFILE.
func FileLimit() (soft, hard uint64, err error) {
	var r unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &r); err != nil {
		return 0, 0, api.WrapError(api.ErrCodeResourceLimit, "getrlimit", err)
	}
	return r.Cur, r.Max, nil
}

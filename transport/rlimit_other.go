//go:build !linux

// File: transport/rlimit_other.go
// Author: momentics <momentics@gmail.com>

package transport

import (
	"fmt"

	"github.com/momentics/hioload-reflector/api"
)

// RaiseFileLimit is only implemented on Linux; configure file_limit: 0 elsewhere.
func RaiseFileLimit(n uint64) error {
	return api.WrapError(api.ErrCodeResourceLimit, "setrlimit", fmt.Errorf("%w on this platform", api.ErrNotSupported))
}

// FileLimit is only implemented on Linux.
func FileLimit() (soft, hard uint64, err error) {
	return 0, 0, api.ErrNotSupported
}

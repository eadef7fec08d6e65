//go:build !linux
// +build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package affinity

import (
	"fmt"

	"github.com/momentics/hioload-reflector/api"
)

// MaxCPU bounds the CPU index accepted by Pin.
const MaxCPU = 1024

func setAffinityPlatform(cpuID int) (func(), error) {
	return nil, fmt.Errorf("affinity: %w", api.ErrNotSupported)
}

//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux-specific implementation for setting thread CPU affinity.

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// MaxCPU is the number of CPUs representable in unix.CPUSet.
const MaxCPU = 1024

// setAffinityPlatform sets the calling thread's affinity to cpuID and returns
// a function restoring the mask it replaced.
func setAffinityPlatform(cpuID int) (func(), error) {
	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		return nil, fmt.Errorf("affinity: sched_getaffinity: %w", err)
	}
	var set unix.CPUSet
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("affinity: sched_setaffinity cpu %d: %w", cpuID, err)
	}
	return func() { _ = unix.SchedSetaffinity(0, &prev) }, nil
}

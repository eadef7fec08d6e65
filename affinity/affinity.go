// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// CPU pinning for the measurement loops. Cycle-counter readings are only
// comparable when taken on the same core, so the probe and the server loop
// can be held on one logical CPU for the whole run.

package affinity

import (
	"fmt"
	"runtime"

	"github.com/momentics/hioload-reflector/api"
)

// Pin locks the calling goroutine to its OS thread and restricts that thread
// to cpuID. The returned release restores the previous CPU mask and unlocks
// the thread; it must be called from the same goroutine.
func Pin(cpuID int) (release func(), err error) {
	if cpuID < 0 || cpuID >= MaxCPU {
		return nil, fmt.Errorf("affinity: cpu %d: %w", cpuID, api.ErrInvalidArgument)
	}
	runtime.LockOSThread()
	restore, err := setAffinityPlatform(cpuID)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	return func() {
		restore()
		runtime.UnlockOSThread()
	}, nil
}

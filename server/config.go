// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/momentics/hioload-reflector/control"
)

// Config holds all echo server parameters.
type Config struct {
	Port            int           // TCP port on INADDR_ANY; 0 picks an ephemeral port
	TimeoutSecs     int           // idle seconds before eviction
	Backlog         int           // listen(2) backlog
	MaxConnections  int           // connection table capacity
	FileLimit       uint64        // RLIMIT_NOFILE to set at startup; 0 leaves it alone
	AcceptWait      time.Duration // bounded wait for pending connections per accept pass
	IdleWait        time.Duration // reactor wait once accepting has stopped
	AcceptAfterData bool          // keep accepting after the first data arrives
	CPU             int           // pin the loop to this CPU; negative leaves it unpinned
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		TimeoutSecs:    5,
		Backlog:        5,
		MaxConnections: DefaultMaxConnections,
		FileLimit:      65536,
		AcceptWait:     100 * time.Millisecond,
		IdleWait:       10 * time.Millisecond,
		CPU:            -1,
	}
}

// ConfigFrom maps the file/flag configuration onto server parameters.
func ConfigFrom(s control.ServerSection) *Config {
	return &Config{
		Port:            s.Port,
		TimeoutSecs:     s.TimeoutSecs,
		Backlog:         s.Backlog,
		MaxConnections:  s.MaxConnections,
		FileLimit:       s.FileLimit,
		AcceptWait:      s.AcceptWait,
		IdleWait:        s.IdleWait,
		AcceptAfterData: s.AcceptAfterData,
		CPU:             s.CPU,
	}
}

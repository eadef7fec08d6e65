// File: client/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"time"

	"github.com/momentics/hioload-reflector/control"
	"github.com/momentics/hioload-reflector/stats"
)

// Config holds the probe parameters.
type Config struct {
	Host           string        // resolved once at startup
	Port           int           // target TCP port
	NumConnections int           // fixed size of the connection set
	Interval       time.Duration // sleep between passes over the connection set
	Window         int           // samples averaged per report
	CPU            int           // pin the probe loop to this CPU; negative leaves it unpinned
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           9000,
		NumConnections: 1,
		Interval:       time.Second,
		Window:         stats.DefaultWindow,
		CPU:            -1,
	}
}

// ConfigFrom maps the file/flag configuration onto probe parameters.
func ConfigFrom(c control.ClientSection) *Config {
	return &Config{
		Host:           c.Host,
		Port:           c.Port,
		NumConnections: c.NumConnections,
		Interval:       c.IntervalDuration(),
		Window:         c.Window,
		CPU:            c.CPU,
	}
}

// File: stats/report.go
// Author: momentics <momentics@gmail.com>

package stats

import (
	"fmt"
	"time"

	"github.com/momentics/hioload-reflector/api"
)

// Report is the aggregate emitted once per wall-clock second.
type Report struct {
	RunID   string        `json:"run_id,omitempty"`
	Time    time.Time     `json:"time"`
	Max     uint64        `json:"max"`
	Min     uint64        `json:"min"`
	Average float64       `json:"avg"`
	Held    int           `json:"held"`
	Total   uint64        `json:"total"`
	Unit    api.ClockUnit `json:"unit"`
}

// String renders the report line printed by the probe.
func (r Report) String() string {
	return fmt.Sprintf("max: %d min: %d avg: %f unit: %s", r.Max, r.Min, r.Average, r.Unit)
}

// Cadence fires at most once per elapsed wall-clock second.
type Cadence struct {
	lastSec int64
}

// NewCadence starts a cadence at the second containing start.
func NewCadence(start time.Time) *Cadence {
	return &Cadence{lastSec: start.Unix()}
}

// Due reports whether now falls in a later second than the last report, and
// if so marks that second as reported.
func (c *Cadence) Due(now time.Time) bool {
	sec := now.Unix()
	if sec > c.lastSec {
		c.lastSec = sec
		return true
	}
	return false
}

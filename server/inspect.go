// File: server/inspect.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"context"
	"time"
)

// maxInspected bounds the connections listed in one TableState.
const maxInspected = 1024

// ConnState describes one enabled connection.
type ConnState struct {
	Handle   Handle `json:"handle"`
	FD       int    `json:"fd"`
	IdleSecs int64  `json:"idle_secs"`
	Pending  int    `json:"pending_bytes"`
}

// TableState is a point-in-time view of the connection table taken on the
// loop goroutine.
type TableState struct {
	Accepting   bool        `json:"accepting"`
	Active      int         `json:"active"`
	Slots       int         `json:"slots"`
	Capacity    int         `json:"capacity"`
	Counters    Counters    `json:"counters"`
	Connections []ConnState `json:"connections"`
	Truncated   bool        `json:"truncated,omitempty"`
}

// Inspect asks the running loop for a TableState. It waits for the next loop
// iteration, so it only returns while Run is active or ctx expires.
func (s *Server) Inspect(ctx context.Context) (TableState, error) {
	reply := make(chan TableState, 1)
	select {
	case s.inspect <- reply:
	case <-ctx.Done():
		return TableState{}, ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return TableState{}, ctx.Err()
	}
}

func (s *Server) tableState(now time.Time) TableState {
	st := TableState{
		Accepting: s.Accepting(),
		Active:    s.table.Active(),
		Slots:     s.table.Len(),
		Capacity:  s.table.Cap(),
		Counters:  s.counters,
	}
	nowSec := now.Unix()
	for i := range s.table.conns {
		c := &s.table.conns[i]
		if !c.Enabled {
			continue
		}
		if len(st.Connections) == maxInspected {
			st.Truncated = true
			break
		}
		st.Connections = append(st.Connections, ConnState{
			Handle:   Handle(i),
			FD:       c.FD,
			IdleSecs: nowSec - c.LastActivity.Unix(),
			Pending:  len(s.pending[c.FD]),
		})
	}
	return st
}

// tableProbe is registered as the "server.table" debug probe.
func (s *Server) tableProbe() any {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	st, err := s.Inspect(ctx)
	if err != nil {
		return map[string]string{"error": err.Error()}
	}
	return st
}

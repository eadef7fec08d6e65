// File: report/nats.go
// Author: momentics <momentics@gmail.com>

package report

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"github.com/momentics/hioload-reflector/stats"
)

// publisher is the subset of *nats.Conn the sink uses.
type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes every report as JSON to a NATS subject.
type NATSSink struct {
	nc      *nats.Conn
	pub     publisher
	subject string
}

// NewNATSSink connects to url and publishes on subject.
func NewNATSSink(url, subject string) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name("reflector"))
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	log.Printf("[report] connected to NATS server at %s", url)
	return &NATSSink{nc: nc, pub: nc, subject: subject}, nil
}

// Emit serializes the report and publishes it.
func (s *NATSSink) Emit(r stats.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.pub.Publish(s.subject, data)
}

// Close drains and closes the NATS connection.
func (s *NATSSink) Close() {
	if s.nc != nil {
		if err := s.nc.Drain(); err != nil {
			log.Printf("[report] NATS drain: %v", err)
		}
		log.Println("[report] NATS connection drained and closed.")
	}
}

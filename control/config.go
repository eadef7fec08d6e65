// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Typed configuration loaded from YAML; command-line flags override file values.

package control

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-reflector/api"
)

// Mode selects which loop the process runs.
type Mode string

const (
	ModeNone   Mode = ""
	ModeServer Mode = "server"
	ModeClient Mode = "client"
)

// ServerSection configures the echo server.
type ServerSection struct {
	Port            int           `yaml:"port"`
	TimeoutSecs     int           `yaml:"timeout_secs"`
	Backlog         int           `yaml:"backlog"`
	MaxConnections  int           `yaml:"max_connections"`
	FileLimit       uint64        `yaml:"file_limit"`
	AcceptWait      time.Duration `yaml:"accept_wait"`
	IdleWait        time.Duration `yaml:"idle_wait"`
	AcceptAfterData bool          `yaml:"accept_after_data"`
	CPU             int           `yaml:"cpu"` // negative leaves the loop unpinned
}

// ClientSection configures the probe.
type ClientSection struct {
	Host           string  `yaml:"host"`
	Port           int     `yaml:"port"`
	NumConnections int     `yaml:"num_connections"`
	Interval       float64 `yaml:"interval"` // seconds, fractional
	Window         int     `yaml:"window"`
	CPU            int     `yaml:"cpu"`
}

// ReportSection configures where probe reports go besides stdout.
type ReportSection struct {
	NATSURL     string `yaml:"nats_url"`
	NATSSubject string `yaml:"nats_subject"`
}

// Config is the top-level configuration.
type Config struct {
	Mode     Mode          `yaml:"mode"`
	Server   ServerSection `yaml:"server"`
	Client   ClientSection `yaml:"client"`
	Report   ReportSection `yaml:"report"`
	HTTPAddr string        `yaml:"http_addr"`
}

// DefaultConfig returns defaults for every optional setting. Required
// parameters (ports, timeout, host, connection count, interval) stay unset.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSection{
			Backlog:        5,
			MaxConnections: 65536,
			FileLimit:      65536,
			AcceptWait:     100 * time.Millisecond,
			IdleWait:       10 * time.Millisecond,
			TimeoutSecs:    -1,
			CPU:            -1,
		},
		Client: ClientSection{
			Interval: -1,
			Window:   1000,
			CPU:      -1,
		},
		Report: ReportSection{
			NATSSubject: "reflector.reports",
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML over DefaultConfig.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	return cfg, nil
}

// IntervalDuration converts the fractional-seconds interval to a duration
// with microsecond resolution.
func (c ClientSection) IntervalDuration() time.Duration {
	return time.Duration(int64(c.Interval*1e6)) * time.Microsecond
}

// Validate checks that the parameters the selected mode requires are present.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeServer:
		s := c.Server
		if s.Port <= 0 || s.Port > 65535 {
			return missing("server.port", s.Port)
		}
		if s.TimeoutSecs < 0 {
			return missing("server.timeout_secs", s.TimeoutSecs)
		}
		if s.MaxConnections <= 0 {
			return missing("server.max_connections", s.MaxConnections)
		}
		if s.AcceptWait < 0 || s.IdleWait < 0 {
			return missing("server.accept_wait/idle_wait", "negative")
		}
	case ModeClient:
		cl := c.Client
		if cl.Host == "" {
			return missing("client.host", cl.Host)
		}
		if cl.Port <= 0 || cl.Port > 65535 {
			return missing("client.port", cl.Port)
		}
		if cl.NumConnections <= 0 {
			return missing("client.num_connections", cl.NumConnections)
		}
		if cl.Interval < 0 {
			return missing("client.interval", cl.Interval)
		}
	default:
		return api.NewError(api.ErrCodeInvalidArgument, "exactly one of client or server mode is required").
			WithContext("mode", string(c.Mode))
	}
	return nil
}

func missing(key string, value any) error {
	return api.NewError(api.ErrCodeInvalidArgument, "missing or invalid "+key).WithContext("value", value)
}

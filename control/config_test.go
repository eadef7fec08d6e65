package control

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/momentics/hioload-reflector/api"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Server.MaxConnections != 65536 || cfg.Server.FileLimit != 65536 {
		t.Errorf("unexpected server limits %+v", cfg.Server)
	}
	if cfg.Server.AcceptWait != 100*time.Millisecond {
		t.Errorf("AcceptWait = %v", cfg.Server.AcceptWait)
	}
	if cfg.Server.CPU != -1 || cfg.Client.CPU != -1 {
		t.Errorf("CPU pinning should default off, got %d/%d", cfg.Server.CPU, cfg.Client.CPU)
	}
	if cfg.Client.Window != 1000 {
		t.Errorf("Window = %d", cfg.Client.Window)
	}
	if err := cfg.Validate(); api.CodeOf(err) != api.ErrCodeInvalidArgument {
		t.Errorf("Validate with no mode err = %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reflector.yaml")
	data := []byte(`
mode: server
server:
  port: 9000
  timeout_secs: 5
  idle_wait: 2ms
  accept_after_data: true
report:
  nats_url: nats://127.0.0.1:4222
http_addr: 127.0.0.1:8080
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Mode != ModeServer || cfg.Server.Port != 9000 || cfg.Server.TimeoutSecs != 5 {
		t.Errorf("unexpected server section %+v", cfg.Server)
	}
	if cfg.Server.IdleWait != 2*time.Millisecond || !cfg.Server.AcceptAfterData {
		t.Errorf("unexpected waits %+v", cfg.Server)
	}
	// Unset keys keep their defaults.
	if cfg.Server.AcceptWait != 100*time.Millisecond || cfg.Report.NATSSubject != "reflector.reports" {
		t.Errorf("defaults lost: %+v %+v", cfg.Server, cfg.Report)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := ParseConfig([]byte("server: [1, 2")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*Config)
		valid bool
	}{
		{"server ok", func(c *Config) { c.Mode = ModeServer; c.Server.Port = 1; c.Server.TimeoutSecs = 0 }, true},
		{"server no port", func(c *Config) { c.Mode = ModeServer; c.Server.TimeoutSecs = 5 }, false},
		{"server no timeout", func(c *Config) { c.Mode = ModeServer; c.Server.Port = 9000 }, false},
		{"client ok", func(c *Config) {
			c.Mode = ModeClient
			c.Client = ClientSection{Host: "localhost", Port: 9000, NumConnections: 4, Interval: 0.5}
		}, true},
		{"client no host", func(c *Config) {
			c.Mode = ModeClient
			c.Client = ClientSection{Port: 9000, NumConnections: 4, Interval: 0.5}
		}, false},
		{"client no interval", func(c *Config) {
			c.Mode = ModeClient
			c.Client.Host, c.Client.Port, c.Client.NumConnections = "h", 1, 1
		}, false},
		{"client zero connections", func(c *Config) {
			c.Mode = ModeClient
			c.Client = ClientSection{Host: "h", Port: 1, Interval: 1}
		}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mut(cfg)
			err := cfg.Validate()
			if (err == nil) != tc.valid {
				t.Errorf("Validate() = %v, valid=%v", err, tc.valid)
			}
		})
	}
}

func TestIntervalDuration(t *testing.T) {
	c := ClientSection{Interval: 0.0015}
	if got := c.IntervalDuration(); got != 1500*time.Microsecond {
		t.Errorf("IntervalDuration = %v", got)
	}
}

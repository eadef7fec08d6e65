// File: cmd/reflector/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// reflector measures TCP round-trip latency with the CPU cycle counter.
//
//	reflector -s -p <port> -t <timeout_secs>
//	reflector -c -h <host> -p <port> -n <num_connections> -i <interval_seconds>

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/momentics/hioload-reflector/api"
	"github.com/momentics/hioload-reflector/client"
	"github.com/momentics/hioload-reflector/control"
	"github.com/momentics/hioload-reflector/report"
	"github.com/momentics/hioload-reflector/server"
	"github.com/momentics/hioload-reflector/transport"
)

const usageText = "Usage: reflector (-c|-s) -h <host> -p <port> -n <num_connections> -t <timeout> -i <interval> [-config <file>] [-http <addr>] [-nats <url>]"

var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stdout, usageText)
		} else {
			fmt.Fprintln(stderr, err)
		}
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// A second signal falls back to the default action.
		<-ctx.Done()
		stop()
	}()

	runID := uuid.NewString()
	registry := control.NewMetricsRegistry()
	registry.Set("run_id", runID)
	registry.Set("mode", string(cfg.Mode))
	probes := control.NewDebugProbes()

	if cfg.HTTPAddr != "" {
		stats, err := control.StartStatsServer(cfg.HTTPAddr, registry, probes, runID)
		if err != nil {
			log.Printf("[main] stats endpoint: %v", err)
			return 1
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			stats.Shutdown(sctx)
		}()
	}

	switch cfg.Mode {
	case control.ModeServer:
		return runServer(ctx, cfg, registry, probes)
	default:
		return runClient(ctx, cfg, registry, runID, stdout)
	}
}

func runServer(ctx context.Context, cfg *control.Config, registry *control.MetricsRegistry, probes *control.DebugProbes) int {
	srv, err := server.New(server.ConfigFrom(cfg.Server), server.WithMetrics(registry), server.WithDebugProbes(probes))
	if err != nil {
		log.Printf("[main] %v", err)
		return 1
	}
	defer srv.Close()
	if err := srv.Run(ctx); err != nil {
		log.Printf("[main] %v", err)
		return 1
	}
	return 0
}

func runClient(ctx context.Context, cfg *control.Config, registry *control.MetricsRegistry, runID string, stdout io.Writer) int {
	sinks := report.Multi{
		report.NewWriterSink(stdout),
		report.NewMetricsSink(registry, "client"),
	}
	if cfg.Report.NATSURL != "" {
		ns, err := report.NewNATSSink(cfg.Report.NATSURL, cfg.Report.NATSSubject)
		if err != nil {
			log.Printf("[main] %v", err)
			return 1
		}
		defer ns.Close()
		sinks = append(sinks, ns)
	}

	p, err := client.New(ctx, client.ConfigFrom(cfg.Client), client.WithSink(sinks), client.WithRunID(runID))
	if err != nil {
		log.Printf("[main] %v", err)
		return exitCode(err)
	}
	defer p.Close()
	log.Printf("[main] run %s, clock unit %s", runID, p.Stats().Unit())
	err = p.Run(ctx)
	log.Printf("[main] %d reports, %d missed probes", registry.Counter("client.reports"), p.Misses())
	if err != nil {
		log.Printf("[main] %v", err)
		return 1
	}
	return 0
}

// exitCode maps a fatal startup error to the process status.
func exitCode(err error) int {
	if api.CodeOf(err) == api.ErrCodeResolve {
		return transport.ResolveExitCode(err)
	}
	return 1
}

// parseArgs merges an optional YAML file with command-line flags; flags win.
func parseArgs(args []string, stderr io.Writer) (*control.Config, error) {
	fs := flag.NewFlagSet("reflector", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {}

	clientMode := fs.Bool("c", false, "client mode")
	serverMode := fs.Bool("s", false, "server mode")
	host := fs.String("h", "", "target host (client)")
	port := fs.Int("p", 0, "TCP port")
	num := fs.Int("n", 0, "number of connections (client)")
	timeout := fs.Int("t", 0, "idle timeout in seconds (server)")
	interval := fs.Float64("i", 0, "interval between passes in seconds (client)")
	cfgPath := fs.String("config", "", "YAML configuration file")
	httpAddr := fs.String("http", "", "serve /stats on this address")
	natsURL := fs.String("nats", "", "publish reports to this NATS server (client)")
	acceptAfterData := fs.Bool("accept-after-data", false, "keep accepting connections after the first data (server)")
	cpu := fs.Int("cpu", -1, "pin the measurement loop to this CPU")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := control.DefaultConfig()
	if *cfgPath != "" {
		var err error
		if cfg, err = control.LoadConfig(*cfgPath); err != nil {
			return nil, err
		}
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	switch {
	case *clientMode && *serverMode:
		return nil, errUsage
	case *serverMode:
		cfg.Mode = control.ModeServer
	case *clientMode:
		cfg.Mode = control.ModeClient
	}

	if set["p"] {
		cfg.Server.Port = *port
		cfg.Client.Port = *port
	}
	if set["t"] {
		cfg.Server.TimeoutSecs = *timeout
	}
	if set["h"] {
		cfg.Client.Host = *host
	}
	if set["n"] {
		cfg.Client.NumConnections = *num
	}
	if set["i"] {
		cfg.Client.Interval = *interval
	}
	if set["http"] {
		cfg.HTTPAddr = *httpAddr
	}
	if set["nats"] {
		cfg.Report.NATSURL = *natsURL
	}
	if set["accept-after-data"] {
		cfg.Server.AcceptAfterData = *acceptAfterData
	}
	if set["cpu"] {
		cfg.Server.CPU = *cpu
		cfg.Client.CPU = *cpu
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	return cfg, nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/squadracorsepolito/candecode"
	"github.com/squadracorsepolito/candecode/dbc"
	"github.com/squadracorsepolito/candecode/internal"
	"github.com/squadracorsepolito/candecode/internal/telemetry"
)

const usage = `usage: candecode [flags] <db.dbc> [all | Frame[.Signal]...]

Decodes a candump log read from stdin (or -input) with the given database.
Without selectors, or with "all", every frame is decoded.

flags:
`

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}

	configPath := flag.String("config", "", "YAML configuration file")
	format := flag.String("format", "", "output format (text or json)")
	onChange := flag.Bool("on-change", false, "report a signal only when its raw value changes")
	logLevel := flag.String("log-level", "", "log level (debug, info, warn, error)")
	input := flag.String("input", "", "candump log to read, stdin when empty")
	iface := flag.String("iface", "", "read frames from a SocketCAN interface instead of a log")
	stats := flag.Bool("stats", false, "log throughput every second")
	withTelemetry := flag.Bool("telemetry", false, "export traces and metrics over OTLP")
	flag.Parse()

	l := internal.NewLogger("cmd", "candecode")

	cfg, err := candecode.LoadConfig(*configPath)
	if err != nil {
		l.Error("failed to load config", err)
		return 1
	}

	args := flag.Args()
	if len(args) > 0 {
		cfg.DBC = args[0]
		if len(args) > 1 {
			cfg.Selectors = args[1:]
		}
	}

	if *format != "" {
		cfg.Output.Format = *format
	}
	if *onChange {
		cfg.OnChange = true
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *input != "" {
		cfg.Input.File = *input
	}
	if *iface != "" {
		cfg.Input.Kind = candecode.InputSocketCAN
		cfg.Input.SocketCAN.Interface = *iface
	}
	if *stats {
		cfg.Stats = true
	}
	if *withTelemetry {
		cfg.Telemetry.Enabled = true
	}

	internal.SetLogLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		l.Error("invalid configuration", err)
		flag.Usage()
		return 1
	}

	ctx, cancelCtx := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelCtx()

	db, diags, err := dbc.ParseFile(cfg.DBC)
	if err != nil {
		l.Error("failed to load database", err, "path", cfg.DBC)
		return 1
	}
	l.Info("loaded database",
		"path", cfg.DBC, "frames", db.FrameCount(), "signals", db.SignalCount(), "diagnostics", len(diags),
	)

	if cfg.Telemetry.Enabled {
		providers, err := telemetry.Init(ctx, cfg.Telemetry)
		if err != nil {
			l.Error("failed to init telemetry", err)
			return 1
		}

		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := providers.Shutdown(shutdownCtx); err != nil {
				l.Error("failed to shutdown telemetry", err)
			}
		}()
	}

	pipeline, err := candecode.Build(cfg, db, os.Stdin, os.Stdout)
	if err != nil {
		l.Error("failed to build pipeline", err)
		return 1
	}

	if err := pipeline.Init(ctx); err != nil {
		l.Error("failed to init pipeline", err)
		return 1
	}

	status := 0
	if err := pipeline.Run(ctx); err != nil {
		l.Error("decoding stopped", err)
		status = 1
	}

	if err := pipeline.Close(context.Background()); err != nil {
		l.Error("failed to close pipeline", err)
		status = 1
	}

	return status
}

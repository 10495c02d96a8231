// Package commands implements the sitebuilder subcommands.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// LogLevelEnv overrides the log level chosen by --verbose.
const LogLevelEnv = "SITEBUILDER_LOG_LEVEL"

// Global is shared state bound into every command.
type Global struct {
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return io.Discard
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"sitebuilder.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Build the production site into dist"`
	Serve   ServeCmd   `cmd:"" help:"Serve a development build with live reload"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild on changes without serving"`
	Clean   CleanCmd   `cmd:"" help:"Remove the staging tree and dist contents"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration, starter theme and sample page"`
	Inspect InspectCmd `cmd:"" help:"Print the merged theme globals and registered filters"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel picks Debug for --verbose, Info otherwise; a valid
// SITEBUILDER_LOG_LEVEL wins over both.
func parseLogLevel(verbose bool) slog.Level {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv(LogLevelEnv))) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return level
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// recorderFor returns a Prometheus recorder when the dev server exposes
// metrics, and the no-op recorder otherwise.
func recorderFor(cfg *config.Config) (metrics.Recorder, *prom.Registry) {
	if !cfg.Server.Metrics {
		return metrics.NoopRecorder{}, nil
	}
	reg := prom.NewRegistry()
	return metrics.NewPrometheusRecorder(reg), reg
}

// Command backtest runs one mean-reversion backtest over broker CSV exports.
// It loads configuration, validates it, wires dependencies, and simulates the
// requested instruments up to the causal cutoff.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aochii2021/rss-sample-sub000/internal/app"
	"github.com/aochii2021/rss-sample-sub000/internal/config"
	"github.com/aochii2021/rss-sample-sub000/internal/domain"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	instruments := flag.String("instruments", "", "comma-separated instrument codes, e.g. 7203,9984")
	cutoffStr := flag.String("cutoff", "", "causal cutoff as RFC 3339 (default: now)")
	flag.Parse()

	// Setup structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	// Set log level from config.
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	opts, err := parseRunOptions(*instruments, *cutoffStr)
	if err != nil {
		logger.Error("invalid flags", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("backtester starting",
		slog.String("config", *configPath),
		slog.Int("instruments", len(opts.Instruments)),
		slog.Time("cutoff", opts.Cutoff),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx, opts); err != nil {
		if isShutdown(err) {
			logger.Info("shut down gracefully")
		} else {
			logger.Error("run failed", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("backtester stopped")
}

// isShutdown reports whether a run error is a cancellation rather than a
// failure. Run wraps errors, so sentinel comparison must unwrap.
func isShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrContextDone)
}

// parseRunOptions converts the instrument and cutoff flags into run options.
func parseRunOptions(instruments, cutoff string) (app.RunOptions, error) {
	var opts app.RunOptions

	for _, raw := range strings.Split(instruments, ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			opts.Instruments = append(opts.Instruments, domain.NewInstrumentID(raw))
		}
	}
	if len(opts.Instruments) == 0 {
		return opts, fmt.Errorf("at least one instrument is required (-instruments)")
	}

	if cutoff == "" {
		opts.Cutoff = time.Now()
		return opts, nil
	}
	t, err := time.Parse(time.RFC3339, cutoff)
	if err != nil {
		return opts, fmt.Errorf("parse cutoff %q: %w", cutoff, err)
	}
	opts.Cutoff = t
	return opts, nil
}

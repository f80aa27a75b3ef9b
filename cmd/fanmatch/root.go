package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/config"
	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/logging"
	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/fanmatch/internal/infrastructure/server"
	"github.com/GriffinCanCode/fanmatch/internal/pipeline"
	"github.com/GriffinCanCode/fanmatch/internal/report"
	"github.com/GriffinCanCode/fanmatch/internal/stream"
)

const (
	defaultPath     = "/dev/null"
	shutdownTimeout = 5 * time.Second
	noPatternWarn   = "warning: no -m option was supplied"
)

type options struct {
	input    string
	output   string
	patterns []string

	queueCapacity  int
	outputCapacity int
	stallTimeout   time.Duration
	format         string
	metricsAddr    string
	logLevel       string
	dev            bool
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "fanmatch",
		Short: "Count pattern occurrences and copy matching lines",
		Long: `fanmatch reads lines from an input, counts the non-overlapping occurrences of
every -m pattern in every line and writes each line that contains at least one
pattern to the output exactly once. Each pattern is matched by its own worker.

The report lists the bytes read, per-pattern matched lines and matches, and the
number of lines written.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	defaults := config.Default()
	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", defaultPath, `input file, directory or glob; "-" reads stdin`)
	flags.StringVarP(&opts.output, "output", "o", defaultPath, `output file; "-" writes stdout, .gz and .zst compress`)
	flags.StringArrayVarP(&opts.patterns, "match", "m", nil, "literal pattern to count (repeatable)")
	flags.IntVar(&opts.queueCapacity, "queue-capacity", defaults.Pipeline.QueueCapacity, "capacity of every per-pattern queue")
	flags.IntVar(&opts.outputCapacity, "output-capacity", defaults.Pipeline.OutputCapacity, "capacity of the matched-lines queue (0: patterns x queue capacity)")
	flags.DurationVar(&opts.stallTimeout, "stall-timeout", defaults.Pipeline.StallTimeout, "fail the run after this long without progress (0 disables; off for stdin unless set)")
	flags.StringVar(&opts.format, "format", defaults.Report.Format, "report format: text, json, yaml or toml")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve /metrics and /progress on this address while running")
	flags.StringVar(&opts.logLevel, "log-level", defaults.Logging.Level, "log level: debug, info, warn or error")
	flags.BoolVar(&opts.dev, "dev", defaults.Logging.Development, "human-readable console logs")

	return cmd
}

// apply copies the flags the user set over the environment configuration.
func (o *options) apply(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("queue-capacity") {
		cfg.Pipeline.QueueCapacity = o.queueCapacity
	}
	if flags.Changed("output-capacity") {
		cfg.Pipeline.OutputCapacity = o.outputCapacity
	}
	if flags.Changed("stall-timeout") {
		cfg.Pipeline.StallTimeout = o.stallTimeout
	} else if _, set := os.LookupEnv(config.EnvStallTimeout); !set && o.input == stream.Stdio {
		// An idle terminal is not a stall.
		cfg.Pipeline.StallTimeout = 0
	}
	if flags.Changed("format") {
		cfg.Report.Format = o.format
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = o.metricsAddr
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("dev") {
		cfg.Logging.Development = o.dev
	}
}

func run(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	opts.apply(cmd.Flags(), cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if len(opts.patterns) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), noPatternWarn)
	}

	p, err := pipeline.New(opts.patterns, pipeline.Config{
		QueueCapacity:  cfg.Pipeline.QueueCapacity,
		OutputCapacity: cfg.Pipeline.OutputCapacity,
		StallTimeout:   cfg.Pipeline.StallTimeout,
	})
	if err != nil {
		return err
	}
	metrics := monitoring.NewMetrics()
	p.WithLogger(logger).WithMetrics(metrics)

	if cfg.Metrics.Addr != "" {
		srv := server.New(serverOptions(cfg), metrics, p.Progress, logger)
		if err := srv.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
			}
		}()
	}

	src, err := stream.Open(opts.input)
	if err != nil {
		return err
	}
	defer src.Close()

	sink, err := stream.Create(opts.output)
	if err != nil {
		return err
	}

	rep, runErr := p.Run(ctx, src, sink)
	closeErr := sink.Close()

	if rep != nil {
		rep.Input = opts.input
		rep.Output = opts.output
		if err := report.Render(cmd.OutOrStdout(), rep, cfg.Report.Format); err != nil {
			return errors.Join(runErr, err)
		}
	}
	if runErr != nil {
		return runErr
	}
	if closeErr != nil {
		return fmt.Errorf("close output: %w", closeErr)
	}
	return nil
}

func newLogger(cfg config.LogConfig) (*logging.Logger, error) {
	logCfg := logging.DefaultConfig()
	if cfg.Development {
		logCfg = logging.DevelopmentConfig()
	}
	if cfg.Level != "" {
		logCfg.Level = cfg.Level
	}

	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("invalid log configuration: %w", err)
	}
	return logger, nil
}

func serverOptions(cfg *config.Config) server.Options {
	opts := server.DefaultOptions(cfg.Metrics.Addr)
	opts.StreamInterval = cfg.Metrics.StreamInterval
	opts.RateLimit = server.RateLimitConfig{
		RequestsPerSecond: cfg.Metrics.RequestsPerSecond,
		Burst:             cfg.Metrics.Burst,
	}
	opts.AllowOrigins = cfg.Metrics.AllowOrigins
	opts.Development = cfg.Logging.Development
	return opts
}

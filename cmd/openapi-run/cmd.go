package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/natserract/baiduapi/pkg/config"
	"github.com/natserract/baiduapi/pkg/journal/postgres"
	"github.com/natserract/baiduapi/pkg/logging"
	"github.com/natserract/baiduapi/pkg/metrics"
	"github.com/natserract/baiduapi/pkg/openapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type runOptions struct {
	callsPath   string
	batch       bool
	serial      bool
	concurrency int
	journal     bool
	metricsOut  string
}

func newRootCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:           "openapi-run",
		Short:         "Run a file of Baidu OpenAPI calls",
		Long:          "Reads a JSON array of calls, sends them one by one or through batch/run, and prints the results as JSON in input order.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.callsPath, "calls", "", "path to a JSON array of calls")
	flags.BoolVar(&opts.batch, "batch", false, "send calls through batch/run in chunks of 10")
	flags.BoolVar(&opts.serial, "serial", false, "ask the server to run batch items serially")
	flags.IntVar(&opts.concurrency, "concurrency", 4, "concurrent calls when not batching")
	flags.BoolVar(&opts.journal, "journal", false, "record every call in PostgreSQL (DB_* env)")
	flags.StringVar(&opts.metricsOut, "metrics-out", "", "write Prometheus metrics in text format to this file")
	_ = cmd.MarkFlagRequired("calls")

	return cmd
}

func run(ctx context.Context, opts *runOptions, out io.Writer) error {
	logger, closeLog, err := logging.New(logging.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config", zap.Error(err))
		return fmt.Errorf("failed to load config: %w", err)
	}

	f, err := os.Open(opts.callsPath)
	if err != nil {
		return fmt.Errorf("failed to open calls file: %w", err)
	}
	specs, err := readCalls(f)
	f.Close()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	client, err := openapi.NewClientWithLogger(cfg, logger, openapi.WithMetrics(m))
	if err != nil {
		logger.Error("Failed to create client", zap.Error(err))
		return fmt.Errorf("failed to create client: %w", err)
	}

	r := &runner{
		client:      client,
		runID:       uuid.New(),
		concurrency: opts.concurrency,
		serialOnly:  opts.serial,
		logger:      logger,
	}

	if opts.journal {
		db, err := postgres.New(ctx, postgres.NewConfig(), logger)
		if err != nil {
			logger.Error("Failed to connect to database", zap.Error(err))
			return err
		}
		defer db.Close()
		if err := db.InitSchema(ctx); err != nil {
			return err
		}
		r.journal = db
	}

	logger.Info("Starting run",
		zap.String("run_id", r.runID.String()),
		zap.Int("calls", len(specs)),
		zap.Bool("batch", opts.batch))

	var results []callResult
	if opts.batch {
		results = r.runBatches(ctx, specs)
	} else {
		results = r.runCalls(ctx, specs)
	}

	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
	}
	logger.Info("Run completed",
		zap.String("run_id", r.runID.String()),
		zap.Int("succeeded", len(results)-failed),
		zap.Int("failed", failed))

	if opts.metricsOut != "" {
		if err := prometheus.WriteToTextfile(opts.metricsOut, registry); err != nil {
			logger.Warn("Failed to write metrics", zap.Error(err))
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

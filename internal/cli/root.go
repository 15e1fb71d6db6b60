// Package cli implements the txp command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/txp-network/txp/internal/api"
	"github.com/txp-network/txp/internal/app/pipeline"
	"github.com/txp-network/txp/internal/config"
	"github.com/txp-network/txp/internal/domain"
	"github.com/txp-network/txp/internal/infra/csvio"
	"github.com/txp-network/txp/internal/infra/observability"
	"github.com/txp-network/txp/internal/infra/sqlite"
	"github.com/txp-network/txp/internal/logging"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

func init() {
	f := rootCmd.Flags()
	f.IntP("buffer", "b", 32, "Per-account queue capacity")
	f.StringP("tracing", "t", "error", "Log level: error, warn, info, debug or trace")
	f.String("log-format", "console", "Log format: console or json")
	f.String("config", "", "Config file (default $TXP_HOME/config.toml)")
	f.String("order", "client", "Output order: client or completion")
	f.String("sqlite-out", "", "Also store final snapshots in this SQLite database")
	f.String("metrics-addr", "", "Serve /health, /api/stats and /metrics on this address during the run")

	rootCmd.AddCommand(versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "txp [flags] FILE [FILE...]",
	Short: "Apply a transaction feed and print final client balances",
	Long: `txp reads one or more CSV transaction feeds (columns type, client, tx,
amount), applies deposits, withdrawals, disputes, resolves and chargebacks
per client, and prints one row per client:

  client,available,held,total,locked

Invalid input aborts the run with a non-zero exit and no output.
Use "-" to read a feed from stdin.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

// ─── version ────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the txp version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "txp %s\n", Version)
		return nil
	},
}

// Execute runs the root command. Interrupts cancel the run.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// ─── run ────────────────────────────────────────────────────────────────────

func runRoot(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts := cfg.LogOptions()
	opts.Output = cmd.ErrOrStderr()
	log, err := logging.New(opts)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return process(ctx, cfg, args, cmd.OutOrStdout(), log)
}

// applyFlags overlays explicitly set flags on top of file and env config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("buffer") {
		cfg.Pipeline.QueueCapacity, _ = f.GetInt("buffer")
	}
	if f.Changed("tracing") {
		cfg.Log.Level, _ = f.GetString("tracing")
	}
	if f.Changed("log-format") {
		cfg.Log.Format, _ = f.GetString("log-format")
	}
	if f.Changed("order") {
		cfg.Pipeline.Order, _ = f.GetString("order")
	}
	if f.Changed("sqlite-out") {
		cfg.Output.SQLitePath, _ = f.GetString("sqlite-out")
	}
	if f.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = f.GetString("metrics-addr")
	}
}

// process runs the pipeline over paths and writes the report to out.
// Nothing is written to out unless the whole run succeeds.
func process(ctx context.Context, cfg config.Config, paths []string, out io.Writer, log *zap.Logger) (err error) {
	runID := observability.NewRunID()
	ctx = observability.WithRunID(ctx, runID)
	log = log.With(zap.String("run_id", runID))

	sources, closeAll, err := openSources(paths)
	if err != nil {
		return err
	}
	defer closeAll()

	p, err := pipeline.New(cfg.PipelineConfig(), log)
	if err != nil {
		return err
	}
	tracer := observability.NewTracer(observability.DefaultTracerConfig())
	p.SetTracer(tracer)

	if cfg.Metrics.Addr != "" {
		stop, err := startServer(ctx, cfg.Metrics.Addr, p, tracer, runID, log)
		if err != nil {
			return err
		}
		defer stop()
	}

	started := time.Now()
	accounts, err := p.Run(ctx, sources...)
	if err != nil {
		return fmt.Errorf("txp: %w", err)
	}
	finished := time.Now()

	var sinks []domain.Sink
	if cfg.Output.SQLitePath != "" {
		db, err := sqlite.Open(cfg.Output.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()

		stats := p.Stats()
		run := sqlite.Run{
			ID:            runID,
			Sources:       paths,
			Records:       stats.Records,
			Applied:       stats.Applied,
			Skipped:       stats.Skipped,
			Accounts:      len(accounts),
			QueueCapacity: stats.QueueCapacity,
			StartedAt:     started,
			FinishedAt:    finished,
		}
		sinks = append(sinks, sqlite.NewSnapshotSink(db, run))
	}
	// The report goes last so a failing store leaves stdout empty.
	sinks = append(sinks, csvio.NewWriter(out))

	sctx, span := tracer.StartSpan(ctx, "report.write", nil)
	defer func() { tracer.EndSpan(span, err) }()
	for _, s := range sinks {
		if err := s.WriteAccounts(sctx, accounts); err != nil {
			return err
		}
	}

	log.Info("report written", zap.Int("accounts", len(accounts)), zap.Int("sinks", len(sinks)))
	return nil
}

func openSources(paths []string) ([]domain.Source, func(), error) {
	var (
		sources []domain.Source
		readers []*csvio.Reader
	)
	closeAll := func() {
		for _, r := range readers {
			r.Close()
		}
	}

	stdin := false
	for _, path := range paths {
		if path == "-" {
			if stdin {
				closeAll()
				return nil, nil, errors.New("txp: stdin given more than once")
			}
			stdin = true
		}
		r, err := csvio.Open(path)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		readers = append(readers, r)
		sources = append(sources, r)
	}
	return sources, closeAll, nil
}

// startServer runs the side-channel HTTP server until the returned stop
// function is called.
func startServer(ctx context.Context, addr string, p *pipeline.Pipeline, tracer *observability.Tracer, runID string, log *zap.Logger) (func(), error) {
	srv := api.NewServer(p, log)
	srv.EnableMetrics()
	srv.SetTracer(tracer)
	srv.SetVersion(Version)
	srv.SetRunID(runID)

	sctx, cancel := context.WithCancel(ctx)
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(sctx, addr, ready) }()

	select {
	case <-ready:
	case err := <-done:
		cancel()
		return nil, fmt.Errorf("txp: metrics server: %w", err)
	}

	return func() {
		cancel()
		if err := <-done; err != nil {
			log.Warn("metrics server stopped with error", zap.Error(err))
		}
	}, nil
}

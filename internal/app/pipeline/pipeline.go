// Package pipeline routes transaction records to per-client account workers.
//
// The pipeline:
//  1. Drains every source into a single intake queue (one reader per source)
//  2. Dispatches each record to the worker that owns its client id,
//     creating workers lazily with a bounded inbound queue
//  3. Applies records per account strictly in arrival order
//  4. Collects one final snapshot per account once every queue has drained
//
// A structural source failure aborts the run: workers stop without
// emitting snapshots and Run returns the error with no accounts.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/txp-network/txp/internal/domain"
	"github.com/txp-network/txp/internal/infra/observability"
)

// ErrNoSources is returned by Run when called without sources.
var ErrNoSources = errors.New("pipeline: no sources")

// ErrInvalidConfig is returned by New for unusable settings.
var ErrInvalidConfig = errors.New("pipeline: invalid config")

// Order controls the order of the collected snapshots.
type Order string

const (
	OrderByClient     Order = "client"     // ascending client id
	OrderByCompletion Order = "completion" // worker completion order
)

// Config controls pipeline behavior.
type Config struct {
	QueueCapacity int   // Per-account inbound queue capacity (default: 32)
	Order         Order // Snapshot order (default: client)
}

// DefaultConfig returns safe pipeline defaults.
func DefaultConfig() Config {
	return Config{
		QueueCapacity: 32,
		Order:         OrderByClient,
	}
}

// Validate checks the config for unusable values.
func (c Config) Validate() error {
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%w: queue capacity must be positive, got %d", ErrInvalidConfig, c.QueueCapacity)
	}
	switch c.Order {
	case OrderByClient, OrderByCompletion:
	default:
		return fmt.Errorf("%w: unknown order %q", ErrInvalidConfig, c.Order)
	}
	return nil
}

// Pipeline runs the ingestion → dispatch → apply → collect flow.
type Pipeline struct {
	config  Config
	log     *zap.Logger
	tracer  *observability.Tracer
	counter counters
}

// New creates a pipeline. A nil logger discards logs.
func New(cfg Config, log *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{config: cfg, log: log}, nil
}

// SetTracer records a span per pipeline phase.
func (p *Pipeline) SetTracer(t *observability.Tracer) { p.tracer = t }

// Run drains all sources and returns the final snapshot of every account
// observed. On any fatal error it returns no accounts.
func (p *Pipeline) Run(ctx context.Context, sources ...domain.Source) (accounts []domain.Account, err error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	start := time.Now()
	ctx, span := p.tracer.StartSpan(ctx, "pipeline.run", map[string]string{
		"sources": strconv.Itoa(len(sources)),
	})
	defer func() {
		p.tracer.EndSpan(span, err)
		observability.RunDuration.Observe(time.Since(start).Seconds())
		result := "ok"
		if err != nil {
			result = "aborted"
		}
		observability.Runs.WithLabelValues(result).Inc()
	}()

	g, gctx := errgroup.WithContext(ctx)

	intake := make(chan domain.Transaction, p.config.QueueCapacity)
	results := make(chan domain.Account, p.config.QueueCapacity)
	collected := make(chan []domain.Account, 1)

	col := newCollector(p.config.Order, p.log)
	go func() { collected <- col.collect(results) }()

	var remaining atomic.Int32
	remaining.Store(int32(len(sources)))
	p.counter.activeSources.Store(int64(len(sources)))
	for _, src := range sources {
		g.Go(func() error {
			return p.read(gctx, src, intake, &remaining)
		})
	}

	d := newDispatcher(p, g, results)
	g.Go(func() error { return d.run(gctx, intake) })

	err = g.Wait()
	close(results)
	snapshots := <-collected

	if err != nil {
		p.log.Error("pipeline aborted", zap.Error(err))
		return nil, err
	}

	p.log.Info("pipeline finished",
		zap.Int("accounts", len(snapshots)),
		zap.Int64("records", p.counter.records.Load()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return snapshots, nil
}

// read drains one source into the intake queue. The last source to finish
// closes the intake, which is the end-of-stream signal for the dispatcher.
func (p *Pipeline) read(ctx context.Context, src domain.Source, intake chan<- domain.Transaction, remaining *atomic.Int32) error {
	log := p.log.With(zap.String("component", "source"), zap.String("source", src.Name()))
	log.Debug("reading source")

	next := pump(ctx, src)
	for {
		var r nextResult
		select {
		case r = <-next:
		case <-ctx.Done():
			return ctx.Err()
		}

		if errors.Is(r.err, io.EOF) {
			p.counter.activeSources.Add(-1)
			if remaining.Add(-1) == 0 {
				close(intake)
			}
			log.Debug("source exhausted")
			return nil
		}
		if r.err != nil {
			log.Error("source failed", zap.Error(r.err))
			return fmt.Errorf("pipeline: read %s: %w", src.Name(), r.err)
		}

		select {
		case intake <- r.tx:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

type nextResult struct {
	tx  domain.Transaction
	err error
}

// pump calls src.Next on its own goroutine. A Next that ignores ctx, such
// as a read from a terminal, no longer holds up an aborted run: read stops
// waiting and the pump exits once Next returns.
func pump(ctx context.Context, src domain.Source) <-chan nextResult {
	out := make(chan nextResult)
	go func() {
		for {
			tx, err := src.Next(ctx)
			select {
			case out <- nextResult{tx: tx, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

// ─── Statistics ─────────────────────────────────────────────────────────────

type counters struct {
	records           atomic.Int64
	workers           atomic.Int64
	activeWorkers     atomic.Int64
	applied           atomic.Int64
	skipped           atomic.Int64
	backpressureWaits atomic.Int64
	activeSources     atomic.Int64
}

// Stats is a point-in-time view of pipeline progress.
type Stats struct {
	Records           int64 `json:"records"`
	Workers           int64 `json:"workers"`
	ActiveWorkers     int64 `json:"active_workers"`
	Applied           int64 `json:"applied"`
	Skipped           int64 `json:"skipped"`
	BackpressureWaits int64 `json:"backpressure_waits"`
	ActiveSources     int64 `json:"active_sources"`
	QueueCapacity     int   `json:"queue_capacity"`
}

// Stats returns current pipeline statistics. Safe to call during Run.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Records:           p.counter.records.Load(),
		Workers:           p.counter.workers.Load(),
		ActiveWorkers:     p.counter.activeWorkers.Load(),
		Applied:           p.counter.applied.Load(),
		Skipped:           p.counter.skipped.Load(),
		BackpressureWaits: p.counter.backpressureWaits.Load(),
		ActiveSources:     p.counter.activeSources.Load(),
		QueueCapacity:     p.config.QueueCapacity,
	}
}

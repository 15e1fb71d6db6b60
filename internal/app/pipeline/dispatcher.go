package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/txp-network/txp/internal/domain"
	"github.com/txp-network/txp/internal/infra/observability"
)

// dispatcher owns the client id → worker table. Only the dispatcher
// goroutine reads or writes it.
type dispatcher struct {
	p       *Pipeline
	group   *errgroup.Group
	results chan<- domain.Account
	workers map[domain.ClientID]*worker
	log     *zap.Logger
}

func newDispatcher(p *Pipeline, g *errgroup.Group, results chan<- domain.Account) *dispatcher {
	return &dispatcher{
		p:       p,
		group:   g,
		results: results,
		workers: make(map[domain.ClientID]*worker),
		log:     p.log.With(zap.String("component", "dispatcher")),
	}
}

// run routes intake records until the intake closes (clean end) or the
// context is cancelled (abort).
func (d *dispatcher) run(ctx context.Context, intake <-chan domain.Transaction) error {
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("dispatch aborted", zap.Int("workers", len(d.workers)))
			return ctx.Err()
		case tx, ok := <-intake:
			if !ok {
				d.closeAll()
				return nil
			}
			if err := d.route(ctx, tx); err != nil {
				return err
			}
		}
	}
}

// route pushes a record into its worker's queue, creating the worker on
// first sight of the client id. A full queue suspends the dispatcher.
func (d *dispatcher) route(ctx context.Context, tx domain.Transaction) error {
	w, ok := d.workers[tx.Client]
	if !ok {
		w = d.spawn(ctx, tx.Client)
	}

	d.p.counter.records.Add(1)
	observability.RecordsDispatched.WithLabelValues(string(tx.Kind)).Inc()

	select {
	case w.inbox <- tx:
		return nil
	default:
	}

	// Queue full: wait for the worker to drain.
	d.p.counter.backpressureWaits.Add(1)
	observability.BackpressureWaits.Inc()
	start := time.Now()
	defer func() {
		observability.BackpressureWaitSeconds.Observe(time.Since(start).Seconds())
	}()

	select {
	case w.inbox <- tx:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *dispatcher) spawn(ctx context.Context, client domain.ClientID) *worker {
	w := newWorker(client, d.p, d.results)
	d.workers[client] = w

	d.p.counter.workers.Add(1)
	observability.WorkersSpawned.Inc()
	d.log.Debug("worker spawned", zap.Uint16("client", uint16(client)))

	d.group.Go(func() error { return w.run(ctx) })
	return w
}

// closeAll half-closes every worker queue; workers drain and finish.
func (d *dispatcher) closeAll() {
	for _, w := range d.workers {
		close(w.inbox)
	}
	d.log.Debug("end of stream", zap.Int("workers", len(d.workers)))
}

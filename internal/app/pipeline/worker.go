package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/txp-network/txp/internal/app/account"
	"github.com/txp-network/txp/internal/domain"
	"github.com/txp-network/txp/internal/infra/observability"
)

// worker applies the records of a single client in arrival order.
// The account is touched only from the worker goroutine.
type worker struct {
	inbox   chan domain.Transaction
	account *account.Account
	results chan<- domain.Account
	p       *Pipeline
	log     *zap.Logger
}

func newWorker(client domain.ClientID, p *Pipeline, results chan<- domain.Account) *worker {
	return &worker{
		inbox:   make(chan domain.Transaction, p.config.QueueCapacity),
		account: account.New(client),
		results: results,
		p:       p,
		log:     p.log.With(zap.String("component", "worker"), zap.Uint16("client", uint16(client))),
	}
}

// run processes the inbox until it is closed and drained, then emits the
// final snapshot. On cancellation it returns without a snapshot.
func (w *worker) run(ctx context.Context) (err error) {
	w.p.counter.activeWorkers.Add(1)
	observability.WorkersActive.Inc()
	defer func() {
		w.p.counter.activeWorkers.Add(-1)
		observability.WorkersActive.Dec()
	}()

	defer func() {
		if r := recover(); r != nil {
			w.log.Error("worker panic", zap.Any("panic", r))
			err = fmt.Errorf("%w: client %d: %v", domain.ErrWorkerFault, w.account.Client(), r)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tx, ok := <-w.inbox:
			if !ok {
				return w.finish(ctx)
			}
			w.apply(tx)
		}
	}
}

func (w *worker) apply(tx domain.Transaction) {
	if tx.Client != w.account.Client() {
		panic(fmt.Sprintf("record for client %d routed to client %d", tx.Client, w.account.Client()))
	}

	wasLocked := w.account.Locked()
	out := w.account.Apply(tx)
	if out.Applied {
		w.p.counter.applied.Add(1)
		observability.RecordsApplied.WithLabelValues(string(tx.Kind)).Inc()
		if !wasLocked && w.account.Locked() {
			observability.AccountsLocked.Inc()
			w.log.Info("account locked", zap.Uint32("tx", uint32(tx.Tx)))
		}
		return
	}

	w.p.counter.skipped.Add(1)
	observability.RecordsSkipped.WithLabelValues(skipReason(out.Reason)).Inc()
	w.log.Debug("record skipped",
		zap.String("type", string(tx.Kind)),
		zap.Uint32("tx", uint32(tx.Tx)),
		zap.Uint64("seq", tx.Seq),
		zap.Error(out.Reason),
	)
}

func (w *worker) finish(ctx context.Context) error {
	snap := w.account.Snapshot()
	select {
	case w.results <- snap:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// skipReason maps a semantic skip to a low-cardinality metric label.
func skipReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrAccountLocked):
		return "locked"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrNonPositiveAmount):
		return "non_positive_amount"
	case errors.Is(err, domain.ErrDuplicateTx):
		return "duplicate_tx"
	case errors.Is(err, domain.ErrUnknownTx):
		return "unknown_tx"
	case errors.Is(err, domain.ErrNotDisputable):
		return "not_disputable"
	case errors.Is(err, domain.ErrNotDisputed):
		return "not_disputed"
	default:
		return "other"
	}
}

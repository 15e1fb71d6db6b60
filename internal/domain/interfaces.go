package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; the pipeline depends on them.

// Source yields validated transactions in input order.
type Source interface {
	// Next returns the next record, io.EOF at a clean end, or a
	// structural error that must abort the run.
	Next(ctx context.Context) (Transaction, error)

	// Name identifies the source in logs and errors.
	Name() string
}

// Sink receives the final snapshots of a successful run.
type Sink interface {
	WriteAccounts(ctx context.Context, accounts []Account) error
}

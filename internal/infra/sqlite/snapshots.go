package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/txp-network/txp/internal/domain"
)

// ErrRunNotFound is returned when a run id has no summary row.
var ErrRunNotFound = errors.New("sqlite: run not found")

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ─── Runs ───────────────────────────────────────────────────────────────────

// Run summarizes one pipeline run.
type Run struct {
	ID            string
	Sources       []string
	Records       int64
	Applied       int64
	Skipped       int64
	Accounts      int
	QueueCapacity int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// insertRun writes the summary row inside tx.
func insertRun(ctx context.Context, tx *sql.Tx, r Run) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, sources, records, applied, skipped, accounts, queue_capacity, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, strings.Join(r.Sources, "\n"), r.Records, r.Applied, r.Skipped, r.Accounts, r.QueueCapacity,
		r.StartedAt.UTC().Format(timeLayout), r.FinishedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("sqlite: save run %s: %w", r.ID, err)
	}
	return nil
}

// GetRun retrieves a run summary.
func (db *DB) GetRun(ctx context.Context, id string) (Run, error) {
	var (
		r                 Run
		sources           string
		started, finished string
	)
	err := db.db.QueryRowContext(ctx, `
		SELECT id, sources, records, applied, skipped, accounts, queue_capacity, started_at, finished_at
		FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &sources, &r.Records, &r.Applied, &r.Skipped, &r.Accounts, &r.QueueCapacity, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("sqlite: get run %s: %w", id, err)
	}
	if sources != "" {
		r.Sources = strings.Split(sources, "\n")
	}
	r.StartedAt, _ = time.Parse(timeLayout, started)
	r.FinishedAt, _ = time.Parse(timeLayout, finished)
	return r, nil
}

// ListRuns returns the most recent run summaries, newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT id FROM runs ORDER BY started_at DESC, created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list runs: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scan run: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list runs: %w", err)
	}

	// Rows are closed before the per-id lookups; the pool holds one connection.
	runs := make([]Run, 0, len(ids))
	for _, id := range ids {
		r, err := db.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, nil
}

// ─── Account Snapshots ──────────────────────────────────────────────────────

// SnapshotSink is a domain.Sink that stores one run summary together with
// its account snapshots.
type SnapshotSink struct {
	db  *DB
	run Run
}

// NewSnapshotSink binds a sink to run. Run.Accounts is taken from the
// written slice.
func NewSnapshotSink(db *DB, run Run) *SnapshotSink {
	return &SnapshotSink{db: db, run: run}
}

// WriteAccounts implements domain.Sink. The run row and every snapshot land
// in one transaction, so a failed write leaves no trace of the run.
func (s *SnapshotSink) WriteAccounts(ctx context.Context, accounts []domain.Account) error {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin snapshot tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	run := s.run
	run.Accounts = len(accounts)
	if err := insertRun(ctx, tx, run); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO account_snapshots (run_id, client, available, held, total, locked)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("sqlite: prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range accounts {
		locked := 0
		if a.Locked {
			locked = 1
		}
		if _, err := stmt.ExecContext(ctx, run.ID, int(a.Client),
			domain.FormatMoney(a.Available), domain.FormatMoney(a.Held), domain.FormatMoney(a.Total()), locked,
		); err != nil {
			return fmt.Errorf("sqlite: insert snapshot client %d: %w", a.Client, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit snapshots: %w", err)
	}
	return nil
}

// ListSnapshots returns the stored snapshots of a run ordered by client.
func (db *DB) ListSnapshots(ctx context.Context, runID string) ([]domain.Account, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT client, available, held, locked
		FROM account_snapshots WHERE run_id = ?
		ORDER BY client
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		var (
			client          int
			available, held string
			locked          int
		)
		if err := rows.Scan(&client, &available, &held, &locked); err != nil {
			return nil, fmt.Errorf("sqlite: scan snapshot: %w", err)
		}
		a := domain.Account{Client: domain.ClientID(client), Locked: locked == 1}
		if a.Available, err = decimal.NewFromString(available); err != nil {
			return nil, fmt.Errorf("sqlite: client %d available %q: %w", client, available, err)
		}
		if a.Held, err = decimal.NewFromString(held); err != nil {
			return nil, fmt.Errorf("sqlite: client %d held %q: %w", client, held, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountLocked returns how many accounts of a run ended locked.
func (db *DB) CountLocked(ctx context.Context, runID string) (int, error) {
	var n int
	err := db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM account_snapshots WHERE run_id = ? AND locked = 1`, runID,
	).Scan(&n)
	return n, err
}

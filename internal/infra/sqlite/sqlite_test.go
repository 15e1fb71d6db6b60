package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txp-network/txp/internal/domain"
)

// ═══════════════════════════════════════════════════════════════════════════
// Snapshot Store Tests
// ═══════════════════════════════════════════════════════════════════════════

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// ─── Schema ─────────────────────────────────────────────────────────────────

func TestMigrations_TablesExist(t *testing.T) {
	db := newTestDB(t)

	for _, table := range []string{"runs", "account_snapshots"} {
		var count int
		err := db.db.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&count)
		require.NoError(t, err, "checking table %s", table)
		assert.Equal(t, 1, count, "table %s not found", table)
	}
}

func TestOpen_DirectoryAndFile(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultFileName), db.Path())
	require.NoError(t, db.Close())

	file := filepath.Join(t.TempDir(), "nested", "out.db")
	db, err = Open(file)
	require.NoError(t, err)
	assert.Equal(t, file, db.Path())
	require.NoError(t, db.Close())

	// Reopening applies migrations idempotently.
	db, err = Open(file)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

// ─── Runs ───────────────────────────────────────────────────────────────────

func testRun(id string, started time.Time) Run {
	return Run{ID: id, StartedAt: started, FinishedAt: started}
}

func TestSnapshotSink_RunRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := Run{
		ID:            "run-1",
		Sources:       []string{"a.csv", "b.csv"},
		Records:       10,
		Applied:       8,
		Skipped:       2,
		Accounts:      99,
		QueueCapacity: 32,
		StartedAt:     started,
		FinishedAt:    started.Add(time.Second),
	}
	accounts := []domain.Account{
		{Client: 1, Available: decimal.NewFromInt(1), Held: decimal.Zero},
		{Client: 2, Available: decimal.NewFromInt(2), Held: decimal.Zero},
		{Client: 3, Available: decimal.NewFromInt(3), Held: decimal.Zero},
	}
	require.NoError(t, NewSnapshotSink(db, run).WriteAccounts(ctx, accounts))

	got, err := db.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.Sources, got.Sources)
	assert.Equal(t, int64(10), got.Records)
	assert.Equal(t, int64(2), got.Skipped)
	assert.Equal(t, 3, got.Accounts, "account count follows the written slice")
	assert.True(t, got.StartedAt.Equal(started))
	assert.True(t, got.FinishedAt.Equal(started.Add(time.Second)))

	assert.Error(t, NewSnapshotSink(db, run).WriteAccounts(ctx, nil), "duplicate run id")
}

func TestListRuns_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		start := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, NewSnapshotSink(db, testRun(id, start)).WriteAccounts(ctx, nil))
	}

	runs, err := db.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].ID)
	assert.Equal(t, "mid", runs[1].ID)
	assert.Empty(t, runs[0].Sources)
}

func TestGetRun_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

// ─── Snapshots ──────────────────────────────────────────────────────────────

func TestSnapshotSink_WriteAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()

	accounts := []domain.Account{
		{Client: 7, Available: decimal.RequireFromString("-1.25"), Held: decimal.RequireFromString("3"), Locked: false},
		{Client: 2, Available: decimal.Zero, Held: decimal.Zero, Locked: true},
	}
	require.NoError(t, NewSnapshotSink(db, testRun("run-a", now)).WriteAccounts(ctx, accounts))
	require.NoError(t, NewSnapshotSink(db, testRun("run-b", now)).WriteAccounts(ctx, accounts[:1]))

	got, err := db.ListSnapshots(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.ClientID(2), got[0].Client)
	assert.True(t, got[0].Locked)
	assert.Equal(t, domain.ClientID(7), got[1].Client)
	assert.Equal(t, "-1.2500", domain.FormatMoney(got[1].Available))
	assert.Equal(t, "3.0000", domain.FormatMoney(got[1].Held))
	assert.Equal(t, "1.7500", domain.FormatMoney(got[1].Total()))

	var total string
	require.NoError(t, db.db.QueryRow(
		`SELECT total FROM account_snapshots WHERE run_id = ? AND client = ?`, "run-a", 7,
	).Scan(&total))
	assert.Equal(t, "1.7500", total)

	locked, err := db.CountLocked(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, 1, locked)

	other, err := db.ListSnapshots(ctx, "run-b")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestSnapshotSink_DuplicateClientRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	dup := []domain.Account{
		{Client: 1, Available: decimal.NewFromInt(1), Held: decimal.Zero},
		{Client: 1, Available: decimal.NewFromInt(2), Held: decimal.Zero},
	}
	require.Error(t, NewSnapshotSink(db, testRun("run-x", time.Now())).WriteAccounts(ctx, dup))

	got, err := db.ListSnapshots(ctx, "run-x")
	require.NoError(t, err)
	assert.Empty(t, got, "no partial snapshot on failure")

	_, err = db.GetRun(ctx, "run-x")
	assert.ErrorIs(t, err, ErrRunNotFound, "run row rolls back with its snapshots")
}

func TestSnapshotSink_CancelledLeavesNoRun(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	accounts := []domain.Account{{Client: 1, Available: decimal.NewFromInt(1), Held: decimal.Zero}}
	require.Error(t, NewSnapshotSink(db, testRun("run-c", time.Now())).WriteAccounts(ctx, accounts))

	runs, err := db.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

// Package account implements the per-client balance state machine.
//
// An Account is owned by exactly one goroutine (its pipeline worker), so it
// carries no locks. States:
//
//	Active ──chargeback──▶ Locked (terminal)
//
// Every record either applies or is skipped with a semantic reason; a skip
// never changes balances and never stops processing.
package account

import (
	"github.com/shopspring/decimal"

	"github.com/txp-network/txp/internal/domain"
)

// Outcome reports what Apply did with a record.
type Outcome struct {
	Applied bool
	Reason  error // skip reason, nil when applied
}

func applied() Outcome { return Outcome{Applied: true} }

func skipped(reason error) Outcome { return Outcome{Reason: reason} }

// Account holds the live balances and dispute history of one client.
type Account struct {
	client    domain.ClientID
	available domain.Money
	held      domain.Money
	locked    bool
	history   map[domain.TxID]domain.HistoryEntry
}

// New creates an unlocked account with zero balances.
func New(client domain.ClientID) *Account {
	return &Account{
		client:    client,
		available: decimal.Zero,
		held:      decimal.Zero,
		history:   make(map[domain.TxID]domain.HistoryEntry),
	}
}

// Client returns the owning client id.
func (a *Account) Client() domain.ClientID { return a.client }

// Locked reports whether a chargeback has frozen the account.
func (a *Account) Locked() bool { return a.locked }

// Snapshot returns an immutable copy of the balances.
func (a *Account) Snapshot() domain.Account {
	return domain.Account{
		Client:    a.client,
		Available: a.available,
		Held:      a.held,
		Locked:    a.locked,
	}
}

// Apply applies a single record.
func (a *Account) Apply(tx domain.Transaction) Outcome {
	switch tx.Kind {
	case domain.KindDeposit:
		return a.deposit(tx.Tx, tx.Amount)
	case domain.KindWithdrawal:
		return a.withdraw(tx.Amount)
	case domain.KindDispute:
		return a.dispute(tx.Tx)
	case domain.KindResolve:
		return a.resolve(tx.Tx)
	case domain.KindChargeback:
		return a.chargeback(tx.Tx)
	default:
		return skipped(domain.ErrUnknownKind)
	}
}

// ─── Funding ────────────────────────────────────────────────────────────────

func (a *Account) deposit(id domain.TxID, amount domain.Money) Outcome {
	if !amount.IsPositive() {
		return skipped(domain.ErrNonPositiveAmount)
	}
	if a.locked {
		return skipped(domain.ErrAccountLocked)
	}
	if _, seen := a.history[id]; seen {
		return skipped(domain.ErrDuplicateTx)
	}

	a.available = a.available.Add(amount)
	a.history[id] = domain.HistoryEntry{
		Kind:   domain.KindDeposit,
		Amount: amount,
		Status: domain.DisputeNone,
	}
	return applied()
}

func (a *Account) withdraw(amount domain.Money) Outcome {
	if !amount.IsPositive() {
		return skipped(domain.ErrNonPositiveAmount)
	}
	if a.locked {
		return skipped(domain.ErrAccountLocked)
	}
	if a.available.LessThan(amount) {
		return skipped(domain.ErrInsufficientFunds)
	}

	a.available = a.available.Sub(amount)
	return applied()
}

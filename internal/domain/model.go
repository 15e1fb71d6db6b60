// Package domain contains pure business types with ZERO infrastructure imports
// beyond the decimal type used for money.
// This is the innermost ring: pipeline, sources and sinks all depend on it.
package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ─── Identifiers ────────────────────────────────────────────────────────────

// ClientID identifies a client account (0..65535).
type ClientID uint16

// TxID identifies a transaction (0..4294967295).
type TxID uint32

// Money is a fixed-point decimal amount.
type Money = decimal.Decimal

// AmountScale is the number of fractional digits accepted on input and
// rendered on output.
const AmountScale = 4

// ─── Transaction Kinds ──────────────────────────────────────────────────────

// Kind is the business reason for a transaction record.
type Kind string

const (
	KindDeposit    Kind = "deposit"
	KindWithdrawal Kind = "withdrawal"
	KindDispute    Kind = "dispute"
	KindResolve    Kind = "resolve"
	KindChargeback Kind = "chargeback"
)

// Kinds lists every supported kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindDeposit, KindWithdrawal, KindDispute, KindResolve, KindChargeback}
}

// ParseKind parses a kind case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindDeposit, KindWithdrawal, KindDispute, KindResolve, KindChargeback:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// CarriesAmount reports whether records of this kind require an amount.
func (k Kind) CarriesAmount() bool {
	return k == KindDeposit || k == KindWithdrawal
}

// ─── Transaction ────────────────────────────────────────────────────────────

// Transaction is a single validated input record.
// Amount is zero for kinds that reference an earlier transaction.
type Transaction struct {
	Kind   Kind     `json:"type"`
	Client ClientID `json:"client"`
	Tx     TxID     `json:"tx"`
	Amount Money    `json:"amount"`
	Seq    uint64   `json:"seq"` // position in the source sequence
}

func (t Transaction) String() string {
	if t.Kind.CarriesAmount() {
		return fmt.Sprintf("%s client=%d tx=%d amount=%s", t.Kind, t.Client, t.Tx, t.Amount.String())
	}
	return fmt.Sprintf("%s client=%d tx=%d", t.Kind, t.Client, t.Tx)
}

// ─── Account Snapshot ───────────────────────────────────────────────────────

// Account is an immutable snapshot of a client's balances.
type Account struct {
	Client    ClientID `json:"client"`
	Available Money    `json:"available"`
	Held      Money    `json:"held"`
	Locked    bool     `json:"locked"`
}

// Total returns available + held.
func (a Account) Total() Money {
	return a.Available.Add(a.Held)
}

// FormatMoney renders an amount with AmountScale fractional digits.
func FormatMoney(m Money) string {
	return m.StringFixed(AmountScale)
}

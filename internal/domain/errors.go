package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, with no infrastructure dependency.

var (
	// Structural errors: fatal, abort the run before any output.
	ErrMalformedRecord  = errors.New("malformed record")
	ErrBadHeader        = errors.New("unexpected input header")
	ErrUnknownKind      = errors.New("unknown transaction type")
	ErrInvalidClient    = errors.New("client id must be an integer in 0..65535")
	ErrInvalidTx        = errors.New("tx id must be an integer in 0..4294967295")
	ErrInvalidAmount    = errors.New("amount must be a non-negative decimal")
	ErrAmountPrecision  = errors.New("amount has more than 4 fractional digits")
	ErrMissingAmount    = errors.New("amount is required for deposit and withdrawal")
	ErrUnexpectedAmount = errors.New("amount is not allowed for dispute, resolve and chargeback")

	// Internal faults: fatal, indicate a defect rather than bad input.
	ErrWorkerFault = errors.New("account worker failed")

	// Semantic skips: never escape the worker that detects them.
	ErrAccountLocked     = errors.New("account is locked")
	ErrInsufficientFunds = errors.New("insufficient available funds")
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	ErrDuplicateTx       = errors.New("tx id already recorded for this client")
	ErrUnknownTx         = errors.New("referenced tx not found for this client")
	ErrNotDisputable     = errors.New("referenced tx is not an undisputed deposit")
	ErrNotDisputed       = errors.New("referenced tx is not under dispute")
)

// RecordError locates a structural failure in the input.
type RecordError struct {
	Source string // input name, empty when unknown
	Line   int    // 1-based line in the source, header included
	Field  string // column name, empty for whole-row failures
	Value  string
	Err    error
}

func (e *RecordError) Error() string {
	loc := fmt.Sprintf("line %d", e.Line)
	if e.Source != "" {
		loc = e.Source + ":" + loc
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", loc, e.Err)
	}
	return fmt.Sprintf("%s: field %q value %q: %v", loc, e.Field, e.Value, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// IsStructural reports whether err is an input failure that must abort a run.
func IsStructural(err error) bool {
	var re *RecordError
	return errors.As(err, &re) || errors.Is(err, ErrMalformedRecord) || errors.Is(err, ErrBadHeader)
}

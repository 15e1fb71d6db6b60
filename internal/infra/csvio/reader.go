// Package csvio reads transaction records from CSV and writes account
// snapshots back as CSV.
//
// Input columns are matched by header name (type, client, tx, amount) in any
// order, case-insensitively. Every row is validated here; a row that fails
// validation is returned as a *domain.RecordError carrying its line and field.
package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/txp-network/txp/internal/domain"
)

// Column names of the input header.
const (
	ColType   = "type"
	ColClient = "client"
	ColTx     = "tx"
	ColAmount = "amount"
)

// Reader is a domain.Source over CSV input.
type Reader struct {
	name   string
	csv    *csv.Reader
	closer io.Closer

	cols       map[string]int
	headerRead bool
	seq        uint64
}

// NewReader wraps r. name identifies the input in errors and logs.
func NewReader(r io.Reader, name string) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &Reader{name: name, csv: cr}
}

// Open opens a CSV file. "-" reads stdin. Close releases the file.
func Open(path string) (*Reader, error) {
	if path == "-" {
		return NewReader(os.Stdin, "stdin"), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvio: open %s: %w", path, err)
	}
	r := NewReader(f, path)
	r.closer = f
	return r, nil
}

// Name implements domain.Source.
func (r *Reader) Name() string { return r.name }

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Next implements domain.Source.
func (r *Reader) Next(ctx context.Context) (domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return domain.Transaction{}, err
	}

	if !r.headerRead {
		if err := r.readHeader(); err != nil {
			return domain.Transaction{}, err
		}
	}

	rec, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return domain.Transaction{}, io.EOF
	}
	if err != nil {
		return domain.Transaction{}, r.rowError(err, 0)
	}
	line, _ := r.csv.FieldPos(0)

	tx, err := r.parse(rec, line)
	if err != nil {
		return domain.Transaction{}, err
	}
	r.seq++
	tx.Seq = r.seq
	return tx, nil
}

func (r *Reader) readHeader() error {
	r.headerRead = true

	rec, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		// Empty input carries no records; the header is not required.
		return io.EOF
	}
	if err != nil {
		return r.rowError(err, 1)
	}

	// Spreadsheet exports often open with a UTF-8 byte-order mark.
	rec[0] = strings.TrimPrefix(rec[0], "\ufeff")

	cols := make(map[string]int, len(rec))
	for i, name := range rec {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := cols[name]; dup {
			return &domain.RecordError{Source: r.name, Line: 1, Field: name, Value: name,
				Err: fmt.Errorf("%w: duplicate column", domain.ErrBadHeader)}
		}
		cols[name] = i
	}

	var missing []string
	for _, want := range []string{ColType, ColClient, ColTx, ColAmount} {
		if _, ok := cols[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return &domain.RecordError{Source: r.name, Line: 1,
			Err: fmt.Errorf("%w: missing column(s) %s", domain.ErrBadHeader, strings.Join(missing, ", "))}
	}

	r.cols = cols
	return nil
}

func (r *Reader) rowError(err error, line int) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		line = pe.Line
	}
	return &domain.RecordError{Source: r.name, Line: line, Err: fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)}
}

// ─── Row Validation ─────────────────────────────────────────────────────────

// field returns the trimmed value of col; short rows read as empty.
func (r *Reader) field(rec []string, col string) string {
	i := r.cols[col]
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (r *Reader) parse(rec []string, line int) (domain.Transaction, error) {
	fail := func(col, value string, err error) error {
		return &domain.RecordError{Source: r.name, Line: line, Field: col, Value: value, Err: err}
	}

	if len(rec) > len(r.cols) {
		return domain.Transaction{}, &domain.RecordError{Source: r.name, Line: line,
			Err: fmt.Errorf("%w: %d fields, header has %d", domain.ErrMalformedRecord, len(rec), len(r.cols))}
	}

	var tx domain.Transaction

	raw := r.field(rec, ColType)
	kind, err := domain.ParseKind(raw)
	if err != nil {
		return tx, fail(ColType, raw, domain.ErrUnknownKind)
	}
	tx.Kind = kind

	raw = r.field(rec, ColClient)
	client, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return tx, fail(ColClient, raw, domain.ErrInvalidClient)
	}
	tx.Client = domain.ClientID(client)

	raw = r.field(rec, ColTx)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return tx, fail(ColTx, raw, domain.ErrInvalidTx)
	}
	tx.Tx = domain.TxID(id)

	raw = r.field(rec, ColAmount)
	switch {
	case kind.CarriesAmount() && raw == "":
		return tx, fail(ColAmount, raw, domain.ErrMissingAmount)
	case !kind.CarriesAmount() && raw != "":
		return tx, fail(ColAmount, raw, domain.ErrUnexpectedAmount)
	case kind.CarriesAmount():
		amount, err := ParseAmount(raw)
		if err != nil {
			return tx, fail(ColAmount, raw, err)
		}
		tx.Amount = amount
	default:
		tx.Amount = decimal.Zero
	}

	return tx, nil
}

// ParseAmount parses a plain non-negative decimal with at most
// domain.AmountScale significant fractional digits. Exponents and signs are
// rejected; trailing zeros beyond the scale are accepted.
func ParseAmount(s string) (domain.Money, error) {
	if !plainDecimal(s) {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.ErrInvalidAmount
	}
	if !d.Equal(d.Truncate(domain.AmountScale)) {
		return decimal.Zero, domain.ErrAmountPrecision
	}
	return d, nil
}

// plainDecimal accepts digits with at most one '.', and at least one digit.
func plainDecimal(s string) bool {
	digits, dots := 0, 0
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

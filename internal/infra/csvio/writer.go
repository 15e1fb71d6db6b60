package csvio

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/txp-network/txp/internal/domain"
)

// OutputHeader is the header row of the account report.
var OutputHeader = []string{"client", "available", "held", "total", "locked"}

// Writer is a domain.Sink writing the account report as CSV.
type Writer struct {
	w io.Writer
}

// NewWriter creates a CSV sink on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteAccounts writes the header and one row per account, in the given order.
func (w *Writer) WriteAccounts(ctx context.Context, accounts []domain.Account) error {
	cw := csv.NewWriter(w.w)
	if err := cw.Write(OutputHeader); err != nil {
		return fmt.Errorf("csvio: write header: %w", err)
	}

	row := make([]string, len(OutputHeader))
	for i, a := range accounts {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		row[0] = strconv.FormatUint(uint64(a.Client), 10)
		row[1] = domain.FormatMoney(a.Available)
		row[2] = domain.FormatMoney(a.Held)
		row[3] = domain.FormatMoney(a.Total())
		row[4] = strconv.FormatBool(a.Locked)
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csvio: write client %d: %w", a.Client, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("csvio: flush: %w", err)
	}
	return nil
}

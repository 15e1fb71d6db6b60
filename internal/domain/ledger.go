package domain

// ─── Dispute History Types ──────────────────────────────────────────────────
// These live in domain because they represent core business rules.
// The state machine that moves entries between statuses lives in app/account.

// DisputeStatus is the dispute lifecycle position of a historical deposit.
type DisputeStatus string

const (
	DisputeNone        DisputeStatus = "NONE"
	DisputeOpen        DisputeStatus = "DISPUTED"
	DisputeResolved    DisputeStatus = "RESOLVED"
	DisputeChargedBack DisputeStatus = "CHARGED_BACK"
)

// HistoryEntry is a previously applied transaction that later records may
// reference by tx id.
type HistoryEntry struct {
	Kind   Kind          `json:"kind"`
	Amount Money         `json:"amount"`
	Status DisputeStatus `json:"status"`
}

// Disputable reports whether the entry can move into dispute.
// Only deposits that were never disputed qualify.
func (e HistoryEntry) Disputable() bool {
	return e.Kind == KindDeposit && e.Status == DisputeNone
}

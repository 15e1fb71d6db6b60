package account

import "github.com/txp-network/txp/internal/domain"

// ─── Dispute Lifecycle ──────────────────────────────────────────────────────
// NONE ──dispute──▶ DISPUTED ──resolve──▶ RESOLVED
//                            └─chargeback─▶ CHARGED_BACK (account locked)
//
// References are looked up in this account's own history only, so a tx id
// that belongs to another client is indistinguishable from an unknown one.

func (a *Account) dispute(id domain.TxID) Outcome {
	entry, ok := a.history[id]
	if !ok {
		return skipped(domain.ErrUnknownTx)
	}
	if !entry.Disputable() {
		return skipped(domain.ErrNotDisputable)
	}

	a.available = a.available.Sub(entry.Amount)
	a.held = a.held.Add(entry.Amount)
	a.setStatus(id, entry, domain.DisputeOpen)
	return applied()
}

func (a *Account) resolve(id domain.TxID) Outcome {
	entry, ok := a.history[id]
	if !ok {
		return skipped(domain.ErrUnknownTx)
	}
	if entry.Status != domain.DisputeOpen {
		return skipped(domain.ErrNotDisputed)
	}

	a.held = a.held.Sub(entry.Amount)
	a.available = a.available.Add(entry.Amount)
	a.setStatus(id, entry, domain.DisputeResolved)
	return applied()
}

func (a *Account) chargeback(id domain.TxID) Outcome {
	entry, ok := a.history[id]
	if !ok {
		return skipped(domain.ErrUnknownTx)
	}
	if entry.Status != domain.DisputeOpen {
		return skipped(domain.ErrNotDisputed)
	}

	a.held = a.held.Sub(entry.Amount)
	a.locked = true
	a.setStatus(id, entry, domain.DisputeChargedBack)
	return applied()
}

func (a *Account) setStatus(id domain.TxID, entry domain.HistoryEntry, status domain.DisputeStatus) {
	entry.Status = status
	a.history[id] = entry
}

// ─── History Queries ────────────────────────────────────────────────────────

// Entry returns the history entry recorded for a tx id.
func (a *Account) Entry(id domain.TxID) (domain.HistoryEntry, bool) {
	e, ok := a.history[id]
	return e, ok
}

// HistoryLen returns the number of dispute-eligible records retained.
// History is kept for the whole run; it is never evicted.
func (a *Account) HistoryLen() int { return len(a.history) }

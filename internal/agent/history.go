package agent

import (
	"fmt"

	"github.com/ard14n/AJETE/api/schemas"
)

// Stagnation detection: within the last stagnationWindow decisions, at least
// stagnationActionable actionable ones spanning at most stagnationUnique
// distinct targets counts as one strike; stagnationStrikes consecutive
// strikes end the journey.
const (
	stagnationWindow     = 10
	stagnationActionable = 8
	stagnationUnique     = 3
	stagnationStrikes    = 3
)

// Ledger tracks decision history, targets that failed execution, and the
// stagnation strike counter for one run. Owned by the loop goroutine.
type Ledger struct {
	entries []schemas.HistoryEntry
	failed  map[string]int
	strikes int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{failed: make(map[string]int)}
}

// Append records one decision and returns its history entry.
func (l *Ledger) Append(d schemas.Decision) schemas.HistoryEntry {
	entry := schemas.HistoryEntry{Step: len(l.entries) + 1, Decision: d}
	l.entries = append(l.entries, entry)
	return entry
}

// Entries exposes the full history, oldest first.
func (l *Ledger) Entries() []schemas.HistoryEntry { return l.entries }

// Steps returns how many decisions have been recorded.
func (l *Ledger) Steps() int { return len(l.entries) }

// ChargeFailure counts one failed execution against a mark id.
func (l *Ledger) ChargeFailure(id string) {
	if id == "" {
		return
	}
	l.failed[id]++
}

// CreditSuccess decays the failure count of a mark that worked after all.
func (l *Ledger) CreditSuccess(id string) {
	if id == "" {
		return
	}
	if n, ok := l.failed[id]; ok {
		if n <= 1 {
			delete(l.failed, id)
		} else {
			l.failed[id] = n - 1
		}
	}
}

// FailedTargets exposes the failure counts for prompt assembly.
func (l *Ledger) FailedTargets() map[string]int { return l.failed }

// ObserveStagnation updates the strike counter after a decision and reports
// whether the run should end. A varied window resets the counter.
func (l *Ledger) ObserveStagnation() bool {
	window := l.entries
	if len(window) > stagnationWindow {
		window = window[len(window)-stagnationWindow:]
	}

	actionable := 0
	unique := make(map[string]bool)
	for _, h := range window {
		switch h.Decision.Action {
		case schemas.ActionClick, schemas.ActionType, schemas.ActionScroll:
			actionable++
			unique[fmt.Sprintf("%s#%s", h.Decision.Action, h.Decision.TargetID)] = true
		}
	}

	if actionable >= stagnationActionable && len(unique) <= stagnationUnique {
		l.strikes++
	} else {
		l.strikes = 0
	}
	return l.strikes >= stagnationStrikes
}

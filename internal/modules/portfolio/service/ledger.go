package service

import (
	"sync"

	"github.com/shopspring/decimal"

	"arb_bot/internal/models"
)

// ExecutionView is what the ledger needs from the execution layer to
// decide fulfillment. TradedQty and OpenOrderQty are tag-filtered: two
// levels on the same instrument must not contaminate each other.
type ExecutionView interface {
	TargetDelta(t models.PortfolioTarget) decimal.Decimal
	TradedQty(instID, tag string) decimal.Decimal
	OpenOrderQty(instID, tag string) decimal.Decimal
	LotSize(instID string) decimal.Decimal
}

// TargetLedger tracks outstanding paired targets keyed by tag, not by
// instrument: the same instrument may carry several grid levels at
// once, and each is an independent economic position.
type TargetLedger struct {
	mu      sync.Mutex
	entries map[string][]models.PortfolioTarget
}

func NewTargetLedger() *TargetLedger {
	return &TargetLedger{entries: make(map[string][]models.PortfolioTarget)}
}

// Upsert replaces the targets stored under each tag present in the
// batch. Last write wins.
func (l *TargetLedger) Upsert(targets []models.PortfolioTarget) {
	if len(targets) == 0 {
		return
	}

	grouped := make(map[string][]models.PortfolioTarget)
	for _, t := range targets {
		grouped[t.Tag] = append(grouped[t.Tag], t)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for tg, ts := range grouped {
		l.entries[tg] = ts
	}
}

// Entries returns a point-in-time deep copy; safe to iterate while the
// ledger is concurrently mutated.
func (l *TargetLedger) Entries() map[string][]models.PortfolioTarget {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string][]models.PortfolioTarget, len(l.entries))
	for tg, ts := range l.entries {
		cp := make([]models.PortfolioTarget, len(ts))
		copy(cp, ts)
		out[tg] = cp
	}
	return out
}

func (l *TargetLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// ClearFulfilled removes entries where every leg is done: the traded
// quantity is within lot-size tolerance of the target delta AND the
// open-order quantity still carrying this tag is below the same
// tolerance. Returns the removed tags.
func (l *TargetLedger) ClearFulfilled(view ExecutionView) []string {
	snapshot := l.Entries()

	var fulfilled []string
	for tg, ts := range snapshot {
		done := true
		for _, t := range ts {
			lot := view.LotSize(t.InstID)
			delta := view.TargetDelta(t)
			traded := view.TradedQty(t.InstID, tg)
			if delta.Sub(traded).Abs().GreaterThanOrEqual(lot) {
				done = false
				break
			}
			if view.OpenOrderQty(t.InstID, tg).Abs().GreaterThanOrEqual(lot) {
				done = false
				break
			}
		}
		if done {
			fulfilled = append(fulfilled, tg)
		}
	}

	if len(fulfilled) > 0 {
		l.mu.Lock()
		for _, tg := range fulfilled {
			delete(l.entries, tg)
		}
		l.mu.Unlock()
	}
	return fulfilled
}

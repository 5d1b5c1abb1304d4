package grid

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arb_bot/internal/models"
	"arb_bot/pkg/logger"
)

// Book is the registry of trading pairs. A pair is created once per leg
// combination; adding the same combination again returns the existing
// instance.
type Book struct {
	mu    sync.Mutex
	pairs map[string]*TradingPair
}

func NewBook() *Book {
	return &Book{pairs: make(map[string]*TradingPair)}
}

// AddPair registers the pair, or returns the already-registered instance
// for the same leg combination.
func (b *Book) AddPair(p *TradingPair) *TradingPair {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.pairs[p.Key()]; ok {
		return existing
	}
	b.pairs[p.Key()] = p
	return p
}

// RemovePair detaches the pair from the book. Callers must cancel any
// live signals referencing either leg before calling this.
func (b *Book) RemovePair(leg1, leg2 string) (*TradingPair, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := PairKey(leg1, leg2)
	p, ok := b.pairs[key]
	if ok {
		delete(b.pairs, key)
	}
	return p, ok
}

func (b *Book) Pair(key string) (*TradingPair, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pairs[key]
	return p, ok
}

// Pairs returns a point-in-time copy of the registry.
func (b *Book) Pairs() []*TradingPair {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*TradingPair, 0, len(b.pairs))
	for _, p := range b.pairs {
		out = append(out, p)
	}
	return out
}

// UpdatePrice fans a leg price out to every pair containing that leg.
func (b *Book) UpdatePrice(instID string, price decimal.Decimal, at time.Time) {
	for _, p := range b.Pairs() {
		if p.HasLeg(instID) {
			p.UpdatePrice(instID, price, at)
		}
	}
}

// ApplyFill routes a fill to the position tracking the broker order ID.
func (b *Book) ApplyFill(brokerID, instID string, qty, price decimal.Decimal, at time.Time) bool {
	for _, p := range b.Pairs() {
		if !p.HasLeg(instID) {
			continue
		}
		for _, pos := range p.Positions() {
			if containsID(pos.OrderIDs(), brokerID) {
				return pos.ApplyFill(instID, qty, price, at)
			}
		}
	}
	return false
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// BookSnapshot is the durable form of all live grid state.
type BookSnapshot struct {
	TakenAt   time.Time          `json:"taken_at"`
	Positions []PositionSnapshot `json:"positions"`
}

func (b *Book) Snapshot(now time.Time) BookSnapshot {
	snap := BookSnapshot{TakenAt: now}
	for _, p := range b.Pairs() {
		for _, pos := range p.Positions() {
			snap.Positions = append(snap.Positions, pos.Snapshot())
		}
	}
	return snap
}

// Restore rebuilds positions from a snapshot into already-registered
// pairs. Positions for unknown pairs or with broken level geometry are
// skipped with a log entry. Returns the number restored.
func (b *Book) Restore(snap BookSnapshot) int {
	restored := 0
	for _, ps := range snap.Positions {
		p, ok := b.Pair(PairKey(ps.Leg1, ps.Leg2))
		if !ok {
			logger.Error("restore: no pair registered for %s/%s, skipping position", ps.Leg1, ps.Leg2)
			continue
		}

		entry, err1 := decimal.NewFromString(ps.Entry)
		exit, err2 := decimal.NewFromString(ps.Exit)
		frac, err3 := decimal.NewFromString(ps.Fraction)
		if err1 != nil || err2 != nil || err3 != nil {
			logger.Error("restore: bad thresholds in snapshot for %s/%s, skipping", ps.Leg1, ps.Leg2)
			continue
		}

		lp, err := models.NewGridLevelPair(models.SpreadDirection(ps.Direction), entry, exit, frac)
		if err != nil {
			logger.Error("restore: %v, skipping position for %s/%s", err, ps.Leg1, ps.Leg2)
			continue
		}

		p.restorePosition(ps, lp)
		restored++
	}
	return restored
}

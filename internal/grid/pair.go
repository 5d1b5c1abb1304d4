package grid

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arb_bot/internal/models"
)

type PairState string

const (
	StateUnknown       PairState = "UNKNOWN"
	StateCrossed       PairState = "CROSSED"
	StateNoOpportunity PairState = "NO_OPPORTUNITY"
)

var hundred = decimal.NewFromInt(100)

// PairKey identifies a leg combination. Leg order matters: (a, b) and
// (b, a) are different pairs.
func PairKey(leg1, leg2 string) string {
	return leg1 + "/" + leg2
}

// TradingPair owns the spread computation and the live grid positions
// for one leg combination. The configured level pairs are strategy
// configuration; the positions map is live state keyed by the entry
// level's natural key.
type TradingPair struct {
	leg1, leg2 string
	lot1, lot2 decimal.Decimal

	levels []models.GridLevelPair

	mu        sync.Mutex
	px1, px2  decimal.Decimal
	has1      bool
	has2      bool
	spread    decimal.Decimal
	state     PairState
	updatedAt time.Time
	positions map[string]*GridPosition
}

func NewTradingPair(leg1, leg2 string, lot1, lot2 decimal.Decimal, levels []models.GridLevelPair) *TradingPair {
	return &TradingPair{
		leg1:      leg1,
		leg2:      leg2,
		lot1:      lot1,
		lot2:      lot2,
		levels:    levels,
		state:     StateUnknown,
		positions: make(map[string]*GridPosition),
	}
}

func (p *TradingPair) Key() string            { return PairKey(p.leg1, p.leg2) }
func (p *TradingPair) Legs() (string, string) { return p.leg1, p.leg2 }

func (p *TradingPair) LotSize(instID string) decimal.Decimal {
	switch instID {
	case p.leg1:
		return p.lot1
	case p.leg2:
		return p.lot2
	}
	return decimal.Zero
}

func (p *TradingPair) HasLeg(instID string) bool {
	return instID == p.leg1 || instID == p.leg2
}

func (p *TradingPair) Levels() []models.GridLevelPair {
	out := make([]models.GridLevelPair, len(p.levels))
	copy(out, p.levels)
	return out
}

// UpdatePrice records a new leg price and recomputes the theoretical
// spread in percent: (leg1 - leg2) / leg2 * 100.
func (p *TradingPair) UpdatePrice(instID string, price decimal.Decimal, at time.Time) {
	if price.Sign() <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch instID {
	case p.leg1:
		p.px1, p.has1 = price, true
	case p.leg2:
		p.px2, p.has2 = price, true
	default:
		return
	}
	p.updatedAt = at

	if !p.has1 || !p.has2 {
		p.state = StateUnknown
		return
	}

	p.spread = p.px1.Sub(p.px2).Div(p.px2).Mul(hundred)
	p.state = StateNoOpportunity
	for _, lp := range p.levels {
		if entryTriggered(lp, p.spread) {
			p.state = StateCrossed
			break
		}
	}
}

func entryTriggered(lp models.GridLevelPair, spread decimal.Decimal) bool {
	switch lp.Direction() {
	case models.LongSpread:
		return spread.LessThanOrEqual(lp.Entry.Threshold)
	case models.ShortSpread:
		return spread.GreaterThanOrEqual(lp.Entry.Threshold)
	}
	return false
}

// EntryTriggered reports whether the given level pair's entry rule fires
// at the current spread.
func (p *TradingPair) EntryTriggered(lp models.GridLevelPair) bool {
	spread, ok := p.Spread()
	if !ok {
		return false
	}
	return entryTriggered(lp, spread)
}

func (p *TradingPair) Spread() (decimal.Decimal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.spread, p.has1 && p.has2
}

func (p *TradingPair) State() PairState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *TradingPair) Price(instID string) (decimal.Decimal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch instID {
	case p.leg1:
		return p.px1, p.has1
	case p.leg2:
		return p.px2, p.has2
	}
	return decimal.Decimal{}, false
}

// EnsurePosition returns the live position for the level pair, creating
// it on first use. Creation is lazy: positions exist only for levels
// whose entry has actually triggered.
func (p *TradingPair) EnsurePosition(lp models.GridLevelPair, now time.Time) *GridPosition {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := lp.Key()
	if pos, ok := p.positions[key]; ok {
		return pos
	}
	pos := newGridPosition(p.leg1, p.leg2, p.lot1, p.lot2, lp, now)
	p.positions[key] = pos
	return pos
}

func (p *TradingPair) Position(key string) (*GridPosition, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos, ok := p.positions[key]
	return pos, ok
}

// Positions returns a point-in-time copy of the live positions.
func (p *TradingPair) Positions() []*GridPosition {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*GridPosition, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	return out
}

// SweepFlat removes positions that are back to flat with no outstanding
// orders and returns how many were removed.
func (p *TradingPair) SweepFlat() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for key, pos := range p.positions {
		if !pos.Invested() && !pos.HasOpenOrders() {
			delete(p.positions, key)
			removed++
		}
	}
	return removed
}

func (p *TradingPair) restorePosition(snap PositionSnapshot, lp models.GridLevelPair) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos := newGridPosition(p.leg1, p.leg2, p.lot1, p.lot2, lp, snap.OpenedAt)
	pos.restore(snap)
	p.positions[lp.Key()] = pos
}

package grid

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"arb_bot/internal/models"
)

// OrderTicket is a transient reference to a live order. Tickets are
// rebuilt from the durable broker order IDs after a restart.
type OrderTicket struct {
	BrokerID  string
	InstID    string
	Remaining decimal.Decimal
}

// GridPosition is the live state opened by one grid level pair. It is
// owned by exactly one TradingPair and mutated from broker callback
// goroutines, so all access goes through its mutex.
type GridPosition struct {
	mu sync.Mutex

	leg1, leg2 string
	lot1, lot2 decimal.Decimal
	levels     models.GridLevelPair

	openedAt    time.Time
	firstFillAt time.Time

	qty1, qty2   decimal.Decimal
	cost1, cost2 decimal.Decimal

	orderIDs map[string]struct{} // durable broker order IDs
	tickets  []*OrderTicket      // transient
}

func newGridPosition(leg1, leg2 string, lot1, lot2 decimal.Decimal, lp models.GridLevelPair, now time.Time) *GridPosition {
	return &GridPosition{
		leg1:     leg1,
		leg2:     leg2,
		lot1:     lot1,
		lot2:     lot2,
		levels:   lp,
		openedAt: now,
		orderIDs: make(map[string]struct{}),
	}
}

func (g *GridPosition) Levels() models.GridLevelPair { return g.levels }
func (g *GridPosition) OpenedAt() time.Time          { return g.openedAt }

func (g *GridPosition) FirstFillAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.firstFillAt
}

// ApplyFill updates one leg's quantity and weighted-average cost:
// newCost = (oldCost*oldQty + fillPrice*fillQty) / (oldQty+fillQty),
// cost resets to zero when the leg returns to zero quantity. Fills for
// the two legs may arrive in either order and in separate callbacks.
func (g *GridPosition) ApplyFill(instID string, qty, price decimal.Decimal, at time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch instID {
	case g.leg1:
		g.qty1, g.cost1 = applyWeighted(g.qty1, g.cost1, qty, price)
	case g.leg2:
		g.qty2, g.cost2 = applyWeighted(g.qty2, g.cost2, qty, price)
	default:
		return false
	}

	if g.firstFillAt.IsZero() {
		g.firstFillAt = at
	}
	return true
}

func applyWeighted(oldQty, oldCost, fillQty, fillPrice decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	newQty := oldQty.Add(fillQty)
	if newQty.IsZero() {
		return newQty, decimal.Zero
	}
	notional := oldCost.Mul(oldQty).Add(fillPrice.Mul(fillQty))
	return newQty, notional.Div(newQty)
}

// Invested reports whether either leg holds more than its lot size.
// The lot-size tolerance absorbs residual dust instead of comparing
// against exact zero.
func (g *GridPosition) Invested() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.qty1.Abs().GreaterThan(g.lot1) || g.qty2.Abs().GreaterThan(g.lot2)
}

// ShouldExit evaluates the exit rule of the level pair that opened this
// position, regardless of what the pair is configured with now.
func (g *GridPosition) ShouldExit(spread decimal.Decimal) bool {
	switch g.levels.Direction() {
	case models.LongSpread:
		return spread.GreaterThanOrEqual(g.levels.Exit.Threshold)
	case models.ShortSpread:
		return spread.LessThanOrEqual(g.levels.Exit.Threshold)
	}
	return false
}

func (g *GridPosition) Quantities() (leg1, leg2 decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.qty1, g.qty2
}

func (g *GridPosition) Costs() (leg1, leg2 decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cost1, g.cost2
}

func (g *GridPosition) TrackOrder(brokerID string) {
	if brokerID == "" {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orderIDs[brokerID] = struct{}{}
}

func (g *GridPosition) ForgetOrder(brokerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.orderIDs, brokerID)
	for i, tk := range g.tickets {
		if tk.BrokerID == brokerID {
			g.tickets = append(g.tickets[:i], g.tickets[i+1:]...)
			break
		}
	}
}

func (g *GridPosition) OrderIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.orderIDs))
	for id := range g.orderIDs {
		out = append(out, id)
	}
	return out
}

func (g *GridPosition) AttachTicket(t *OrderTicket) {
	if t == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orderIDs[t.BrokerID] = struct{}{}
	g.tickets = append(g.tickets, t)
}

func (g *GridPosition) HasOpenOrders() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.orderIDs) > 0
}

// PositionSnapshot is the durable form of a grid position. Tickets are
// deliberately absent; they are rebuilt from OrderIDs on restore.
type PositionSnapshot struct {
	Leg1        string          `json:"leg1"`
	Leg2        string          `json:"leg2"`
	Direction   string          `json:"direction"`
	Entry       string          `json:"entry"`
	Exit        string          `json:"exit"`
	Fraction    string          `json:"fraction"`
	OpenedAt    time.Time       `json:"opened_at"`
	FirstFillAt time.Time       `json:"first_fill_at"`
	Qty1        decimal.Decimal `json:"qty1"`
	Qty2        decimal.Decimal `json:"qty2"`
	Cost1       decimal.Decimal `json:"cost1"`
	Cost2       decimal.Decimal `json:"cost2"`
	OrderIDs    []string        `json:"order_ids"`
}

func (g *GridPosition) Snapshot() PositionSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.orderIDs))
	for id := range g.orderIDs {
		ids = append(ids, id)
	}

	return PositionSnapshot{
		Leg1:        g.leg1,
		Leg2:        g.leg2,
		Direction:   string(g.levels.Direction()),
		Entry:       g.levels.Entry.Threshold.String(),
		Exit:        g.levels.Exit.Threshold.String(),
		Fraction:    g.levels.Entry.SizeFraction.String(),
		OpenedAt:    g.openedAt,
		FirstFillAt: g.firstFillAt,
		Qty1:        g.qty1,
		Qty2:        g.qty2,
		Cost1:       g.cost1,
		Cost2:       g.cost2,
		OrderIDs:    ids,
	}
}

func (g *GridPosition) restore(snap PositionSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.openedAt = snap.OpenedAt
	g.firstFillAt = snap.FirstFillAt
	g.qty1, g.qty2 = snap.Qty1, snap.Qty2
	g.cost1, g.cost2 = snap.Cost1, snap.Cost2
	for _, id := range snap.OrderIDs {
		g.orderIDs[id] = struct{}{}
		g.tickets = append(g.tickets, &OrderTicket{BrokerID: id})
	}
}

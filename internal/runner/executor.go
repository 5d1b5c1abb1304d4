package runner

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"arb_bot/internal/grid"
	"arb_bot/internal/helper"
	"arb_bot/internal/models"
	brokerage "arb_bot/internal/modules/brokerage/service"
	"arb_bot/internal/tag"
	"arb_bot/pkg/logger"
)

// Executor turns ledger targets into orders and keeps the tag-filtered
// execution bookkeeping the ledger's fulfillment check reads. It
// implements portfolio/service.ExecutionView.
//
// Sizing assumes zero initial leg quantity, same as the fulfillment
// check: the target delta IS the target quantity. See DESIGN.md.
type Executor struct {
	agg    *brokerage.Aggregator
	router brokerage.OrderRouter
	book   *grid.Book
	equity decimal.Decimal

	mu     sync.Mutex
	traded map[string]decimal.Decimal // instID#tag -> cumulative signed fills
	orders map[string]*workingOrder   // clientID -> live order
	broker map[string]string          // brokerID -> clientID
}

type workingOrder struct {
	key       string // instID#tag
	instID    string
	tag       string
	remaining decimal.Decimal // signed
}

func NewExecutor(agg *brokerage.Aggregator, router brokerage.OrderRouter, book *grid.Book, equity decimal.Decimal) *Executor {
	return &Executor{
		agg:    agg,
		router: router,
		book:   book,
		equity: equity,
		traded: make(map[string]decimal.Decimal),
		orders: make(map[string]*workingOrder),
		broker: make(map[string]string),
	}
}

func execKey(instID, tagStr string) string { return instID + "#" + tagStr }

// --- ExecutionView ---

func (e *Executor) TargetDelta(t models.PortfolioTarget) decimal.Decimal {
	if t.Percent.IsZero() {
		return decimal.Zero
	}
	px, ok := e.price(t.InstID)
	if !ok {
		return decimal.Zero
	}
	return t.Percent.Mul(e.equity).Div(px)
}

func (e *Executor) TradedQty(instID, tagStr string) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.traded[execKey(instID, tagStr)]
}

func (e *Executor) OpenOrderQty(instID, tagStr string) decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := execKey(instID, tagStr)
	sum := decimal.Zero
	for _, o := range e.orders {
		if o.key == key {
			sum = sum.Add(o.remaining)
		}
	}
	return sum
}

func (e *Executor) LotSize(instID string) decimal.Decimal {
	for _, p := range e.book.Pairs() {
		if p.HasLeg(instID) {
			return p.LotSize(instID)
		}
	}
	return decimal.Zero
}

func (e *Executor) price(instID string) (decimal.Decimal, bool) {
	for _, p := range e.book.Pairs() {
		if !p.HasLeg(instID) {
			continue
		}
		if px, ok := p.Price(instID); ok {
			return px, true
		}
	}
	return decimal.Decimal{}, false
}

// --- order placement ---

// Execute works every ledger entry toward its target: the outstanding
// quantity (target − traded − open) becomes one market order per leg
// when it exceeds the lot size.
func (e *Executor) Execute(ctx context.Context, entries map[string][]models.PortfolioTarget) {
	for tagStr, targets := range entries {
		for _, t := range targets {
			e.workTarget(ctx, tagStr, t)
		}
	}
}

func (e *Executor) workTarget(ctx context.Context, tagStr string, t models.PortfolioTarget) {
	lot := e.LotSize(t.InstID)
	if lot.IsZero() {
		logger.Error("execute: no lot size for %s, skipping target", t.InstID)
		return
	}

	desired := e.TargetDelta(t)
	outstanding := desired.Sub(e.TradedQty(t.InstID, tagStr)).Sub(e.OpenOrderQty(t.InstID, tagStr))
	// orders go out in whole lots; the sub-lot remainder is what the
	// ledger's tolerance absorbs
	outstanding = helper.RoundDownToStep(outstanding, lot)
	if outstanding.Abs().LessThan(lot) {
		return
	}

	side := models.SideBuy
	if outstanding.Sign() < 0 {
		side = models.SideSell
	}

	order := models.Order{
		ClientID:     uuid.NewString(),
		InstID:       t.InstID,
		Side:         side,
		Qty:          outstanding.Abs(),
		Tag:          tagStr,
		SecurityType: models.SecuritySpot,
		Updated:      time.Now(),
	}

	account, err := e.router.Route(order)
	if err != nil {
		logger.Error("execute: route %s: %v", order.InstID, err)
		return
	}

	e.mu.Lock()
	e.orders[order.ClientID] = &workingOrder{
		key:       execKey(t.InstID, tagStr),
		instID:    t.InstID,
		tag:       tagStr,
		remaining: outstanding,
	}
	e.mu.Unlock()

	if !e.agg.PlaceOrder(ctx, account, order) {
		e.mu.Lock()
		delete(e.orders, order.ClientID)
		e.mu.Unlock()
		return
	}
}

// --- event ingestion ---

// OnOrderEvent consumes the aggregator's unified order stream: fills
// update both the execution bookkeeping and the owning grid position,
// terminal states release the order.
func (e *Executor) OnOrderEvent(ev models.OrderEvent) {
	e.mu.Lock()
	clientID := ev.ClientID
	if clientID == "" {
		clientID = e.broker[ev.BrokerID]
	}
	o, known := e.orders[clientID]
	if known && ev.BrokerID != "" {
		e.broker[ev.BrokerID] = clientID
	}

	if !ev.FillQty.IsZero() {
		key := execKey(ev.InstID, ev.Tag)
		e.traded[key] = e.traded[key].Add(ev.FillQty)
		if known {
			o.remaining = o.remaining.Sub(ev.FillQty)
		}
	}

	terminal := ev.Status == models.OrderFilled ||
		ev.Status == models.OrderCanceled ||
		ev.Status == models.OrderRejected
	if terminal && known {
		delete(e.orders, clientID)
		delete(e.broker, ev.BrokerID)
	}
	e.mu.Unlock()

	pos := e.positionFor(ev.Tag, ev.Time)
	if pos == nil {
		return
	}
	if ev.BrokerID != "" && !terminal {
		pos.TrackOrder(ev.BrokerID)
	}
	if !ev.FillQty.IsZero() {
		pos.ApplyFill(ev.InstID, ev.FillQty, ev.FillPrice, ev.Time)
	}
	if terminal && ev.BrokerID != "" {
		pos.ForgetOrder(ev.BrokerID)
	}
}

// positionFor resolves the grid position owning a tag. The position
// may legitimately be created here: fills can arrive after a restart
// before the evaluation loop has re-triggered the level.
func (e *Executor) positionFor(tagStr string, at time.Time) *grid.GridPosition {
	leg1, leg2, lp, ok := tag.TryDecode(tagStr)
	if !ok {
		return nil
	}
	pair, found := e.book.Pair(grid.PairKey(leg1, leg2))
	if !found {
		return nil
	}
	if pos, exists := pair.Position(lp.Key()); exists {
		return pos
	}
	return pair.EnsurePosition(lp, at)
}

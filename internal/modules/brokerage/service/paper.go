package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"arb_bot/internal/models"
)

// PaperConnection is an in-memory brokerage account: orders fill
// instantly at their limit price or at the configured mark. It backs
// dry runs and tests, and implements the optional execution-history
// capability.
type PaperConnection struct {
	name string

	// ConnectErr, when set, makes Connect fail. Used to exercise the
	// all-or-nothing startup path.
	ConnectErr error

	mu        sync.Mutex
	connected bool
	marks     map[string]decimal.Decimal
	open      map[string]models.Order // by BrokerID
	fills     []models.Execution

	orderCh  chan models.OrderEvent
	acctCh   chan models.AccountEvent
	msgCh    chan models.BrokerMessage
	assignCh chan models.OptionAssignment
}

func NewPaperConnection(name string) *PaperConnection {
	return &PaperConnection{
		name:     name,
		marks:    make(map[string]decimal.Decimal),
		open:     make(map[string]models.Order),
		orderCh:  make(chan models.OrderEvent, eventBuffer),
		acctCh:   make(chan models.AccountEvent, eventBuffer),
		msgCh:    make(chan models.BrokerMessage, eventBuffer),
		assignCh: make(chan models.OptionAssignment, eventBuffer),
	}
}

func (p *PaperConnection) Name() string { return p.name }

func (p *PaperConnection) Connect(context.Context) error {
	if p.ConnectErr != nil {
		return p.ConnectErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = true
	return nil
}

func (p *PaperConnection) Disconnect(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return nil
	}
	p.connected = false
	close(p.orderCh)
	close(p.acctCh)
	close(p.msgCh)
	close(p.assignCh)
	return nil
}

func (p *PaperConnection) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// SetMark sets the fill price used for market orders on the instrument.
func (p *PaperConnection) SetMark(instID string, px decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.marks[instID] = px
}

func (p *PaperConnection) PlaceOrder(_ context.Context, o models.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return fmt.Errorf("paper %s: not connected", p.name)
	}

	px := o.Price
	if px.IsZero() {
		mark, ok := p.marks[o.InstID]
		if !ok {
			return fmt.Errorf("paper %s: no mark price for %s", p.name, o.InstID)
		}
		px = mark
	}

	if o.BrokerID == "" {
		o.BrokerID = uuid.NewString()
	}
	now := time.Now()

	fillQty := o.Qty
	if o.Side == models.SideSell {
		fillQty = fillQty.Neg()
	}

	p.orderCh <- models.OrderEvent{
		Account:  p.name,
		BrokerID: o.BrokerID,
		ClientID: o.ClientID,
		InstID:   o.InstID,
		Tag:      o.Tag,
		Status:   models.OrderSubmitted,
		Time:     now,
	}
	p.orderCh <- models.OrderEvent{
		Account:   p.name,
		BrokerID:  o.BrokerID,
		ClientID:  o.ClientID,
		InstID:    o.InstID,
		Tag:       o.Tag,
		Status:    models.OrderFilled,
		FillQty:   fillQty,
		FillPrice: px,
		Time:      now,
	}

	p.fills = append(p.fills, models.Execution{
		Account:  p.name,
		BrokerID: o.BrokerID,
		InstID:   o.InstID,
		Side:     o.Side,
		Qty:      o.Qty,
		Price:    px,
		Time:     now,
	})
	return nil
}

func (p *PaperConnection) UpdateOrder(_ context.Context, o models.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return fmt.Errorf("paper %s: not connected", p.name)
	}
	if _, ok := p.open[o.BrokerID]; !ok {
		return fmt.Errorf("paper %s: no open order %s", p.name, o.BrokerID)
	}
	p.open[o.BrokerID] = o
	return nil
}

func (p *PaperConnection) CancelOrder(_ context.Context, o models.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.connected {
		return fmt.Errorf("paper %s: not connected", p.name)
	}
	if _, ok := p.open[o.BrokerID]; !ok {
		return fmt.Errorf("paper %s: no open order %s", p.name, o.BrokerID)
	}
	delete(p.open, o.BrokerID)
	p.orderCh <- models.OrderEvent{
		Account:  p.name,
		BrokerID: o.BrokerID,
		InstID:   o.InstID,
		Tag:      o.Tag,
		Status:   models.OrderCanceled,
		Time:     time.Now(),
	}
	return nil
}

func (p *PaperConnection) OpenOrders(context.Context) ([]models.Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.Order, 0, len(p.open))
	for _, o := range p.open {
		out = append(out, o)
	}
	return out, nil
}

func (p *PaperConnection) ExecutionHistory(_ context.Context, from, to time.Time) ([]models.Execution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []models.Execution
	for _, e := range p.fills {
		if e.Time.Before(from) || e.Time.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (p *PaperConnection) OrderEvents() <-chan models.OrderEvent        { return p.orderCh }
func (p *PaperConnection) AccountEvents() <-chan models.AccountEvent    { return p.acctCh }
func (p *PaperConnection) Messages() <-chan models.BrokerMessage        { return p.msgCh }
func (p *PaperConnection) Assignments() <-chan models.OptionAssignment  { return p.assignCh }

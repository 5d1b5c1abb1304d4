package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"arb_bot/internal/metrics"
	"arb_bot/internal/models"
	"arb_bot/pkg/logger"
)

const eventBuffer = 4096

// Aggregator fans order operations out to named brokerage connections
// and fans their event streams back in onto one unified surface.
// Operational failures on one account are logged and reported as a
// boolean false; they never take down the aggregator or touch sibling
// accounts. Startup connectivity is the one exception: ConnectAll is
// all-or-nothing.
type Aggregator struct {
	mu      sync.Mutex
	conns   map[string]Connection
	history map[string]ExecutionHistoryProvider // capability, resolved at Register

	orderOut  chan models.OrderEvent
	acctOut   chan models.AccountEvent
	msgOut    chan models.BrokerMessage
	assignOut chan models.OptionAssignment
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		conns:     make(map[string]Connection),
		history:   make(map[string]ExecutionHistoryProvider),
		orderOut:  make(chan models.OrderEvent, eventBuffer),
		acctOut:   make(chan models.AccountEvent, eventBuffer),
		msgOut:    make(chan models.BrokerMessage, eventBuffer),
		assignOut: make(chan models.OptionAssignment, eventBuffer),
	}
}

// Register adds a named connection before ConnectAll. The execution
// history capability is probed here, once, with a type assertion.
func (a *Aggregator) Register(c Connection) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	name := c.Name()
	if name == "" {
		return fmt.Errorf("aggregator: connection with empty name")
	}
	if _, exists := a.conns[name]; exists {
		return fmt.Errorf("aggregator: account %q already registered", name)
	}
	a.conns[name] = c

	if h, ok := c.(ExecutionHistoryProvider); ok {
		a.history[name] = h
	}
	return nil
}

func (a *Aggregator) Accounts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.conns))
	for name := range a.conns {
		out = append(out, name)
	}
	return out
}

func (a *Aggregator) connection(account string) (Connection, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.conns[account]
	return c, ok
}

func (a *Aggregator) connections() []Connection {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Connection, 0, len(a.conns))
	for _, c := range a.conns {
		out = append(out, c)
	}
	return out
}

// ConnectAll connects every registered connection. If any fails to
// connect, or reports not-connected afterwards, every connection is
// disconnected and a fatal error returned: a half-connected
// multi-account system cannot safely trade.
func (a *Aggregator) ConnectAll(ctx context.Context) error {
	conns := a.connections()
	if len(conns) == 0 {
		return fmt.Errorf("aggregator: no connections registered")
	}

	for _, c := range conns {
		if err := c.Connect(ctx); err != nil {
			a.DisconnectAll(ctx)
			return fmt.Errorf("aggregator: connect %q: %w", c.Name(), err)
		}
		if !c.IsConnected() {
			a.DisconnectAll(ctx)
			return fmt.Errorf("aggregator: %q reports not connected after Connect", c.Name())
		}
		logger.Info("connected account %s", c.Name())
	}

	for _, c := range conns {
		a.forward(c)
	}
	metrics.ConnectedAccounts.Set(float64(len(conns)))
	return nil
}

func (a *Aggregator) DisconnectAll(ctx context.Context) {
	for _, c := range a.connections() {
		if err := c.Disconnect(ctx); err != nil {
			logger.Error("disconnect %s: %v", c.Name(), err)
		}
	}
	metrics.ConnectedAccounts.Set(0)
}

// IsConnected is true only when every registered connection is up.
func (a *Aggregator) IsConnected() bool {
	conns := a.connections()
	if len(conns) == 0 {
		return false
	}
	for _, c := range conns {
		if !c.IsConnected() {
			return false
		}
	}
	return true
}

// forward re-emits one connection's streams on the unified surface.
// One goroutine per stream: a slow or dead connection never delays
// events from its siblings.
func (a *Aggregator) forward(c Connection) {
	name := c.Name()

	go func() {
		for ev := range c.OrderEvents() {
			ev.Account = name
			a.orderOut <- ev
			metrics.EventsForwarded.WithLabelValues(name, "order").Inc()
		}
	}()
	go func() {
		for ev := range c.AccountEvents() {
			ev.Account = name
			a.acctOut <- ev
			metrics.EventsForwarded.WithLabelValues(name, "account").Inc()
		}
	}()
	go func() {
		for ev := range c.Messages() {
			ev.Account = name
			a.msgOut <- ev
			metrics.EventsForwarded.WithLabelValues(name, "message").Inc()
		}
	}()
	go func() {
		for ev := range c.Assignments() {
			ev.Account = name
			a.assignOut <- ev
			metrics.EventsForwarded.WithLabelValues(name, "assignment").Inc()
		}
	}()
}

func (a *Aggregator) OrderEvents() <-chan models.OrderEvent          { return a.orderOut }
func (a *Aggregator) AccountEvents() <-chan models.AccountEvent     { return a.acctOut }
func (a *Aggregator) Messages() <-chan models.BrokerMessage         { return a.msgOut }
func (a *Aggregator) Assignments() <-chan models.OptionAssignment   { return a.assignOut }

// PlaceOrder places an order on one account. There is no implicit
// default account in multi-account mode: an empty account name is a
// programming error and is rejected.
func (a *Aggregator) PlaceOrder(ctx context.Context, account string, o models.Order) bool {
	return a.orderOp(ctx, account, o, "place", func(c Connection) error {
		return c.PlaceOrder(ctx, o)
	})
}

func (a *Aggregator) UpdateOrder(ctx context.Context, account string, o models.Order) bool {
	return a.orderOp(ctx, account, o, "update", func(c Connection) error {
		return c.UpdateOrder(ctx, o)
	})
}

func (a *Aggregator) CancelOrder(ctx context.Context, account string, o models.Order) bool {
	return a.orderOp(ctx, account, o, "cancel", func(c Connection) error {
		return c.CancelOrder(ctx, o)
	})
}

func (a *Aggregator) orderOp(ctx context.Context, account string, o models.Order, op string, fn func(Connection) error) (ok bool) {
	if account == "" {
		logger.Error("%s order %s: empty account name rejected", op, o.InstID)
		return false
	}
	c, exists := a.connection(account)
	if !exists {
		logger.Error("%s order %s: unknown account %q", op, o.InstID, account)
		return false
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("%s order %s on %s: panic: %v", op, o.InstID, account, p)
			metrics.OrdersPlaced.WithLabelValues(account, "panic").Inc()
			ok = false
		}
	}()

	if err := fn(c); err != nil {
		logger.Error("%s order %s on %s: %v", op, o.InstID, account, err)
		metrics.OrdersPlaced.WithLabelValues(account, "error").Inc()
		return false
	}
	metrics.OrdersPlaced.WithLabelValues(account, "ok").Inc()
	return true
}

// GetOpenOrders returns the open orders of one account; an account
// failure yields an empty result, not an error.
func (a *Aggregator) GetOpenOrders(ctx context.Context, account string) []models.Order {
	if account == "" {
		logger.Error("open orders: empty account name rejected")
		return nil
	}
	c, exists := a.connection(account)
	if !exists {
		logger.Error("open orders: unknown account %q", account)
		return nil
	}

	orders, err := c.OpenOrders(ctx)
	if err != nil {
		logger.Error("open orders on %s: %v", account, err)
		return nil
	}
	return orders
}

// ExecutionHistory fans the query out to every connection. Accounts
// without history support are skipped with a note; a failing account
// contributes nothing but does not abort the query.
func (a *Aggregator) ExecutionHistory(ctx context.Context, from, to time.Time) []models.Execution {
	var out []models.Execution
	for _, c := range a.connections() {
		a.mu.Lock()
		h, supported := a.history[c.Name()]
		a.mu.Unlock()
		if !supported {
			logger.Info("execution history: account %s does not support history, skipping", c.Name())
			continue
		}

		execs, err := h.ExecutionHistory(ctx, from, to)
		if err != nil {
			logger.Error("execution history on %s: %v", c.Name(), err)
			continue
		}
		out = append(out, execs...)
	}
	return out
}

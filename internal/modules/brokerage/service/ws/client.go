// Package ws implements a brokerage connection over a JSON websocket
// protocol: op frames out, push frames in. One read-loop goroutine per
// connection feeds the event channels.
package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"arb_bot/internal/models"
	"arb_bot/pkg/logger"
)

const (
	defaultDialTimeout = 10 * time.Second
	eventBuffer        = 4096
)

type Config struct {
	Name        string
	URL         string
	APIKey      string
	APISecret   string
	Passphrase  string
	DialTimeout time.Duration
}

type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool

	orderCh  chan models.OrderEvent
	acctCh   chan models.AccountEvent
	msgCh    chan models.BrokerMessage
	assignCh chan models.OptionAssignment
}

func NewClient(cfg Config) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	return &Client{
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		orderCh:  make(chan models.OrderEvent, eventBuffer),
		acctCh:   make(chan models.AccountEvent, eventBuffer),
		msgCh:    make(chan models.BrokerMessage, eventBuffer),
		assignCh: make(chan models.OptionAssignment, eventBuffer),
	}
}

func (c *Client) Name() string { return c.cfg.Name }

// --- wire frames ---

type opFrame struct {
	Op   string     `json:"op"`
	Auth *authArgs  `json:"auth,omitempty"`
	Ord  *orderArgs `json:"order,omitempty"`
}

type authArgs struct {
	Key        string `json:"key"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase,omitempty"`
}

type orderArgs struct {
	ClientID string `json:"client_id"`
	BrokerID string `json:"broker_id,omitempty"`
	InstID   string `json:"inst_id"`
	Side     string `json:"side"`
	Qty      string `json:"qty"`
	Price    string `json:"price,omitempty"`
	Tag      string `json:"tag,omitempty"`
}

type pushFrame struct {
	Type       string          `json:"type"`
	Order      *orderPush      `json:"order,omitempty"`
	Account    *accountPush    `json:"account,omitempty"`
	Message    *messagePush    `json:"message,omitempty"`
	Assignment *assignmentPush `json:"assignment,omitempty"`
}

type orderPush struct {
	BrokerID  string `json:"broker_id"`
	ClientID  string `json:"client_id"`
	InstID    string `json:"inst_id"`
	Tag       string `json:"tag"`
	Status    string `json:"status"`
	FillQty   string `json:"fill_qty"`
	FillPrice string `json:"fill_price"`
	Remaining string `json:"remaining"`
	TS        int64  `json:"ts"`
}

type accountPush struct {
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
	TS       int64  `json:"ts"`
}

type messagePush struct {
	Code string `json:"code"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
}

type assignmentPush struct {
	InstID string `json:"inst_id"`
	Qty    string `json:"qty"`
	TS     int64  `json:"ts"`
}

// --- lifecycle ---

func (c *Client) Connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()

	conn, _, err := c.dialer.DialContext(dialCtx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("ws %s: dial %s: %w", c.cfg.Name, c.cfg.URL, err)
	}

	auth := opFrame{Op: "auth", Auth: &authArgs{
		Key:        c.cfg.APIKey,
		Secret:     c.cfg.APISecret,
		Passphrase: c.cfg.Passphrase,
	}}
	if err := writeFrame(conn, auth); err != nil {
		_ = conn.Close()
		return fmt.Errorf("ws %s: auth: %w", c.cfg.Name, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

func (c *Client) Disconnect(context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// readLoop owns the socket's read side and the event channels: they
// close when the loop exits.
func (c *Client) readLoop(conn *websocket.Conn) {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		close(c.orderCh)
		close(c.acctCh)
		close(c.msgCh)
		close(c.assignCh)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Info("ws %s: read loop stopped: %v", c.cfg.Name, err)
			return
		}

		var push pushFrame
		if err := sonic.Unmarshal(data, &push); err != nil {
			logger.Error("ws %s: bad push frame: %v", c.cfg.Name, err)
			continue
		}
		c.dispatch(push)
	}
}

func (c *Client) dispatch(push pushFrame) {
	switch {
	case push.Type == "order" && push.Order != nil:
		o := push.Order
		c.orderCh <- models.OrderEvent{
			Account:   c.cfg.Name,
			BrokerID:  o.BrokerID,
			ClientID:  o.ClientID,
			InstID:    o.InstID,
			Tag:       o.Tag,
			Status:    models.OrderStatus(o.Status),
			FillQty:   parseDec(o.FillQty),
			FillPrice: parseDec(o.FillPrice),
			Remaining: parseDec(o.Remaining),
			Time:      time.UnixMilli(o.TS),
		}
	case push.Type == "account" && push.Account != nil:
		a := push.Account
		c.acctCh <- models.AccountEvent{
			Account:  c.cfg.Name,
			Currency: a.Currency,
			Balance:  parseDec(a.Balance),
			Time:     time.UnixMilli(a.TS),
		}
	case push.Type == "message" && push.Message != nil:
		m := push.Message
		c.msgCh <- models.BrokerMessage{
			Account: c.cfg.Name,
			Code:    m.Code,
			Text:    m.Text,
			Time:    time.UnixMilli(m.TS),
		}
	case push.Type == "assignment" && push.Assignment != nil:
		a := push.Assignment
		c.assignCh <- models.OptionAssignment{
			Account: c.cfg.Name,
			InstID:  a.InstID,
			Qty:     parseDec(a.Qty),
			Time:    time.UnixMilli(a.TS),
		}
	}
}

func parseDec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// --- order ops ---

func (c *Client) PlaceOrder(_ context.Context, o models.Order) error {
	return c.sendOrder("place", o)
}

func (c *Client) UpdateOrder(_ context.Context, o models.Order) error {
	return c.sendOrder("update", o)
}

func (c *Client) CancelOrder(_ context.Context, o models.Order) error {
	return c.sendOrder("cancel", o)
}

func (c *Client) sendOrder(op string, o models.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return fmt.Errorf("ws %s: not connected", c.cfg.Name)
	}

	frame := opFrame{Op: op, Ord: &orderArgs{
		ClientID: o.ClientID,
		BrokerID: o.BrokerID,
		InstID:   o.InstID,
		Side:     string(o.Side),
		Qty:      o.Qty.String(),
		Tag:      o.Tag,
	}}
	if !o.Price.IsZero() {
		frame.Ord.Price = o.Price.String()
	}
	return writeFrame(c.conn, frame)
}

// OpenOrders is not part of the push protocol; the execution layer
// tracks open orders from order events instead.
func (c *Client) OpenOrders(context.Context) ([]models.Order, error) {
	return nil, nil
}

func writeFrame(conn *websocket.Conn, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) OrderEvents() <-chan models.OrderEvent       { return c.orderCh }
func (c *Client) AccountEvents() <-chan models.AccountEvent   { return c.acctCh }
func (c *Client) Messages() <-chan models.BrokerMessage       { return c.msgCh }
func (c *Client) Assignments() <-chan models.OptionAssignment { return c.assignCh }

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideNone Side = ""
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type SecurityType string

const (
	SecuritySpot    SecurityType = "spot"
	SecurityFutures SecurityType = "futures"
	SecurityOption  SecurityType = "option"
)

type OrderStatus string

const (
	OrderNew       OrderStatus = "NEW"
	OrderSubmitted OrderStatus = "SUBMITTED"
	OrderPartial   OrderStatus = "PARTIALLY_FILLED"
	OrderFilled    OrderStatus = "FILLED"
	OrderCanceled  OrderStatus = "CANCELED"
	OrderRejected  OrderStatus = "REJECTED"
)

// Order is one physical instruction for one brokerage account. Tag ties
// it back to the two-leg decision that produced it.
type Order struct {
	ClientID     string // uuid, assigned at creation
	BrokerID     string // assigned by the brokerage, durable across restarts
	InstID       string
	Market       string // venue identifier, used by routers
	SecurityType SecurityType
	Side         Side
	Qty          decimal.Decimal
	Price        decimal.Decimal // zero => market order
	Tag          string
	Updated      time.Time
}

// OrderEvent is a status/fill push from one brokerage connection.
type OrderEvent struct {
	Account   string
	BrokerID  string
	ClientID  string
	InstID    string
	Tag       string
	Status    OrderStatus
	FillQty   decimal.Decimal // signed: negative for sells
	FillPrice decimal.Decimal
	Remaining decimal.Decimal
	Time      time.Time
}

type AccountEvent struct {
	Account  string
	Currency string
	Balance  decimal.Decimal
	Time     time.Time
}

type BrokerMessage struct {
	Account string
	Code    string
	Text    string
	Time    time.Time
}

type OptionAssignment struct {
	Account string
	InstID  string
	Qty     decimal.Decimal
	Time    time.Time
}

// Execution is one historical fill returned by execution-history queries.
type Execution struct {
	Account  string
	BrokerID string
	InstID   string
	Side     Side
	Qty      decimal.Decimal
	Price    decimal.Decimal
	Time     time.Time
}

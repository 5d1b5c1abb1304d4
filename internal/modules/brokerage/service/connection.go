package service

import (
	"context"
	"time"

	"arb_bot/internal/models"
)

// Connection is one brokerage account. Each connection runs its own
// I/O goroutine and delivers events asynchronously on its channels;
// event channels close on Disconnect.
type Connection interface {
	Name() string

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsConnected() bool

	PlaceOrder(ctx context.Context, o models.Order) error
	UpdateOrder(ctx context.Context, o models.Order) error
	CancelOrder(ctx context.Context, o models.Order) error
	OpenOrders(ctx context.Context) ([]models.Order, error)

	OrderEvents() <-chan models.OrderEvent
	AccountEvents() <-chan models.AccountEvent
	Messages() <-chan models.BrokerMessage
	Assignments() <-chan models.OptionAssignment
}

// ExecutionHistoryProvider is the optional history capability. It is
// resolved once at registration time with a type assertion, never
// per call.
type ExecutionHistoryProvider interface {
	ExecutionHistory(ctx context.Context, from, to time.Time) ([]models.Execution, error)
}

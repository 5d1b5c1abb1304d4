package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arb_bot/internal/models"
	"arb_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InfoLogger = zap.NewNop()
	logger.FatalLogger = zap.NewNop()
	m.Run()
}

func newAggregatorWith(t *testing.T, conns ...*PaperConnection) *Aggregator {
	t.Helper()
	agg := NewAggregator()
	for _, c := range conns {
		if err := agg.Register(c); err != nil {
			t.Fatalf("register %s: %v", c.Name(), err)
		}
	}
	return agg
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	agg := NewAggregator()
	if err := agg.Register(NewPaperConnection("a")); err != nil {
		t.Fatal(err)
	}
	if err := agg.Register(NewPaperConnection("a")); err == nil {
		t.Fatal("duplicate account name must be rejected")
	}
	if err := agg.Register(NewPaperConnection("")); err == nil {
		t.Fatal("empty account name must be rejected")
	}
}

func TestConnectAllFailFast(t *testing.T) {
	ctx := context.Background()

	good1 := NewPaperConnection("a")
	bad := NewPaperConnection("b")
	bad.ConnectErr = fmt.Errorf("refused")
	good2 := NewPaperConnection("c")

	agg := newAggregatorWith(t, good1, bad, good2)
	if err := agg.ConnectAll(ctx); err == nil {
		t.Fatal("ConnectAll must fail when one connection fails")
	}

	// all three must end up disconnected, including the ones that
	// connected successfully before the failure
	for _, c := range []*PaperConnection{good1, bad, good2} {
		if c.IsConnected() {
			t.Fatalf("%s still connected after failed ConnectAll", c.Name())
		}
	}
	if agg.IsConnected() {
		t.Fatal("aggregator must not report connected")
	}
}

func TestConnectAllSuccess(t *testing.T) {
	ctx := context.Background()
	agg := newAggregatorWith(t,
		NewPaperConnection("a"), NewPaperConnection("b"), NewPaperConnection("c"))

	if err := agg.ConnectAll(ctx); err != nil {
		t.Fatalf("ConnectAll: %v", err)
	}
	if !agg.IsConnected() {
		t.Fatal("aggregator must report connected")
	}
	agg.DisconnectAll(ctx)
	if agg.IsConnected() {
		t.Fatal("aggregator must report disconnected after DisconnectAll")
	}
}

func TestConnectAllEmptyRegistry(t *testing.T) {
	if err := NewAggregator().ConnectAll(context.Background()); err == nil {
		t.Fatal("ConnectAll with no connections must fail")
	}
}

func TestPlaceOrderAccountHandling(t *testing.T) {
	ctx := context.Background()
	conn := NewPaperConnection("a")
	conn.SetMark("AAA", decimal.RequireFromString("100"))
	agg := newAggregatorWith(t, conn)
	if err := agg.ConnectAll(ctx); err != nil {
		t.Fatal(err)
	}
	defer agg.DisconnectAll(ctx)

	order := models.Order{InstID: "AAA", Side: models.SideBuy, Qty: decimal.RequireFromString("1")}

	if agg.PlaceOrder(ctx, "", order) {
		t.Fatal("empty account name must be rejected")
	}
	if agg.PlaceOrder(ctx, "ghost", order) {
		t.Fatal("unknown account must be rejected")
	}
	if !agg.PlaceOrder(ctx, "a", order) {
		t.Fatal("valid placement must succeed")
	}
}

func TestOperationalFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	healthy := NewPaperConnection("healthy")
	healthy.SetMark("AAA", decimal.RequireFromString("100"))
	broken := NewPaperConnection("broken") // no mark: placements fail

	agg := newAggregatorWith(t, healthy, broken)
	if err := agg.ConnectAll(ctx); err != nil {
		t.Fatal(err)
	}
	defer agg.DisconnectAll(ctx)

	order := models.Order{InstID: "AAA", Side: models.SideBuy, Qty: decimal.RequireFromString("1")}

	if agg.PlaceOrder(ctx, "broken", order) {
		t.Fatal("broken account placement must report false")
	}
	// sibling account is unaffected
	if !agg.PlaceOrder(ctx, "healthy", order) {
		t.Fatal("healthy account must still place orders")
	}
}

func TestEventFanIn(t *testing.T) {
	ctx := context.Background()
	a := NewPaperConnection("a")
	b := NewPaperConnection("b")
	a.SetMark("AAA", decimal.RequireFromString("100"))
	b.SetMark("BBB", decimal.RequireFromString("200"))

	agg := newAggregatorWith(t, a, b)
	if err := agg.ConnectAll(ctx); err != nil {
		t.Fatal(err)
	}
	defer agg.DisconnectAll(ctx)

	one := decimal.RequireFromString("1")
	agg.PlaceOrder(ctx, "a", models.Order{InstID: "AAA", Side: models.SideBuy, Qty: one})
	agg.PlaceOrder(ctx, "b", models.Order{InstID: "BBB", Side: models.SideSell, Qty: one})

	// each placement yields submitted + filled on the unified stream
	accounts := make(map[string]int)
	timeout := time.After(2 * time.Second)
	for i := 0; i < 4; i++ {
		select {
		case ev := <-agg.OrderEvents():
			accounts[ev.Account]++
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %v", accounts)
		}
	}
	if accounts["a"] != 2 || accounts["b"] != 2 {
		t.Fatalf("events per account = %v, want 2 each", accounts)
	}
}

type historyless struct {
	*PaperConnection
}

// ExecutionHistory hidden: embedding would leak the capability, so
// shadow it away with a non-interface method set trick.
func (h historyless) ExecutionHistory() {}

func TestExecutionHistoryFanOut(t *testing.T) {
	ctx := context.Background()
	withHist := NewPaperConnection("hist")
	withHist.SetMark("AAA", decimal.RequireFromString("100"))
	noHist := historyless{NewPaperConnection("nohist")}

	agg := NewAggregator()
	if err := agg.Register(withHist); err != nil {
		t.Fatal(err)
	}
	if err := agg.Register(noHist); err != nil {
		t.Fatal(err)
	}
	if err := agg.ConnectAll(ctx); err != nil {
		t.Fatal(err)
	}
	defer agg.DisconnectAll(ctx)

	agg.PlaceOrder(ctx, "hist", models.Order{
		InstID: "AAA", Side: models.SideBuy, Qty: decimal.RequireFromString("1"),
	})

	execs := agg.ExecutionHistory(ctx, time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	if len(execs) != 1 {
		t.Fatalf("executions = %d, want 1 (history-less account skipped, not fatal)", len(execs))
	}
	if execs[0].Account != "hist" {
		t.Fatalf("execution account = %s", execs[0].Account)
	}
}

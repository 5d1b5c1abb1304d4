package grid

import (
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

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func longPair(t *testing.T) models.GridLevelPair {
	t.Helper()
	lp, err := models.NewGridLevelPair(models.LongSpread, d("-0.5"), d("-0.1"), d("0.25"))
	if err != nil {
		t.Fatal(err)
	}
	return lp
}

func shortPair(t *testing.T) models.GridLevelPair {
	t.Helper()
	lp, err := models.NewGridLevelPair(models.ShortSpread, d("0.5"), d("0.1"), d("0.25"))
	if err != nil {
		t.Fatal(err)
	}
	return lp
}

func newTestPosition(t *testing.T, lp models.GridLevelPair) *GridPosition {
	t.Helper()
	return newGridPosition("AAA", "BBB", d("0.001"), d("0.001"), lp, time.Now())
}

func TestApplyFillWeightedAverageCost(t *testing.T) {
	pos := newTestPosition(t, longPair(t))
	now := time.Now()

	if ok := pos.ApplyFill("AAA", d("1"), d("100"), now); !ok {
		t.Fatal("fill for leg1 rejected")
	}
	pos.ApplyFill("AAA", d("1"), d("110"), now)

	q1, _ := pos.Quantities()
	c1, _ := pos.Costs()
	if !q1.Equal(d("2")) {
		t.Fatalf("qty1 = %s, want 2", q1)
	}
	if !c1.Equal(d("105")) {
		t.Fatalf("cost1 = %s, want 105", c1)
	}
}

func TestApplyFillCostResetsAtZero(t *testing.T) {
	pos := newTestPosition(t, longPair(t))
	now := time.Now()

	pos.ApplyFill("BBB", d("-2"), d("50"), now)
	pos.ApplyFill("BBB", d("2"), d("48"), now)

	_, q2 := pos.Quantities()
	_, c2 := pos.Costs()
	if !q2.IsZero() {
		t.Fatalf("qty2 = %s, want 0", q2)
	}
	if !c2.IsZero() {
		t.Fatalf("cost after flat = %s, want 0", c2)
	}
}

func TestApplyFillLegsInEitherOrder(t *testing.T) {
	a := newTestPosition(t, longPair(t))
	b := newTestPosition(t, longPair(t))
	now := time.Now()

	a.ApplyFill("AAA", d("1"), d("100"), now)
	a.ApplyFill("BBB", d("-1"), d("101"), now)

	b.ApplyFill("BBB", d("-1"), d("101"), now)
	b.ApplyFill("AAA", d("1"), d("100"), now)

	aq1, aq2 := a.Quantities()
	bq1, bq2 := b.Quantities()
	if !aq1.Equal(bq1) || !aq2.Equal(bq2) {
		t.Fatal("fill order must not matter")
	}
}

func TestApplyFillUnknownLeg(t *testing.T) {
	pos := newTestPosition(t, longPair(t))
	if pos.ApplyFill("CCC", d("1"), d("100"), time.Now()) {
		t.Fatal("fill for foreign instrument must be rejected")
	}
}

func TestInvestedUsesLotSizeTolerance(t *testing.T) {
	pos := newTestPosition(t, longPair(t))
	now := time.Now()

	// dust below lot size is not invested
	pos.ApplyFill("AAA", d("0.0005"), d("100"), now)
	if pos.Invested() {
		t.Fatal("dust position must not count as invested")
	}

	pos.ApplyFill("AAA", d("1"), d("100"), now)
	if !pos.Invested() {
		t.Fatal("position above lot size must count as invested")
	}
}

func TestShouldExit(t *testing.T) {
	tests := []struct {
		name   string
		long   bool
		spread string
		want   bool
	}{
		{"long below exit", true, "-0.3", false},
		{"long at exit", true, "-0.1", true},
		{"long above exit", true, "0.2", true},
		{"short above exit", false, "0.3", false},
		{"short at exit", false, "0.1", true},
		{"short below exit", false, "-0.2", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var pos *GridPosition
			if tt.long {
				pos = newTestPosition(t, longPair(t))
			} else {
				pos = newTestPosition(t, shortPair(t))
			}
			if got := pos.ShouldExit(d(tt.spread)); got != tt.want {
				t.Fatalf("ShouldExit(%s) = %v, want %v", tt.spread, got, tt.want)
			}
		})
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	lp := longPair(t)
	pos := newTestPosition(t, lp)
	now := time.Now().Truncate(time.Second)

	pos.ApplyFill("AAA", d("2"), d("100"), now)
	pos.ApplyFill("BBB", d("-2"), d("101"), now)
	pos.TrackOrder("ord-1")
	pos.TrackOrder("ord-2")

	snap := pos.Snapshot()

	restored := newGridPosition("AAA", "BBB", d("0.001"), d("0.001"), lp, now)
	restored.restore(snap)

	q1, q2 := restored.Quantities()
	if !q1.Equal(d("2")) || !q2.Equal(d("-2")) {
		t.Fatalf("restored quantities = %s/%s", q1, q2)
	}
	if len(restored.OrderIDs()) != 2 {
		t.Fatalf("restored order IDs = %d, want 2", len(restored.OrderIDs()))
	}
	if !restored.HasOpenOrders() {
		t.Fatal("tickets must be rebuilt from durable order IDs")
	}
}

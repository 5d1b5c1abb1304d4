package service

import (
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"arb_bot/internal/models"
)

// fakeView is a hand-rolled ExecutionView keyed by instID#tag.
type fakeView struct {
	deltas map[string]decimal.Decimal // by instID
	traded map[string]decimal.Decimal // by instID#tag
	open   map[string]decimal.Decimal // by instID#tag
	lot    decimal.Decimal
}

func newFakeView() *fakeView {
	return &fakeView{
		deltas: make(map[string]decimal.Decimal),
		traded: make(map[string]decimal.Decimal),
		open:   make(map[string]decimal.Decimal),
		lot:    decimal.RequireFromString("0.01"),
	}
}

func (v *fakeView) TargetDelta(t models.PortfolioTarget) decimal.Decimal {
	return v.deltas[t.InstID]
}
func (v *fakeView) TradedQty(instID, tag string) decimal.Decimal {
	return v.traded[instID+"#"+tag]
}
func (v *fakeView) OpenOrderQty(instID, tag string) decimal.Decimal {
	return v.open[instID+"#"+tag]
}
func (v *fakeView) LotSize(string) decimal.Decimal { return v.lot }

func targetsFor(tg string) []models.PortfolioTarget {
	return []models.PortfolioTarget{
		{InstID: "AAA", Percent: d("0.125"), Tag: tg},
		{InstID: "BBB", Percent: d("-0.125"), Tag: tg},
	}
}

func TestUpsertLastWriteWins(t *testing.T) {
	l := NewTargetLedger()

	l.Upsert(targetsFor("tag-1"))
	replacement := []models.PortfolioTarget{
		{InstID: "AAA", Percent: d("0.5"), Tag: "tag-1"},
		{InstID: "BBB", Percent: d("-0.5"), Tag: "tag-1"},
	}
	l.Upsert(replacement)

	entries := l.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if !entries["tag-1"][0].Percent.Equal(d("0.5")) {
		t.Fatal("last write must win")
	}
}

func TestClearFulfilled(t *testing.T) {
	l := NewTargetLedger()
	l.Upsert(targetsFor("tag-1"))

	view := newFakeView()
	view.deltas["AAA"] = d("1")
	view.deltas["BBB"] = d("-1")

	// nothing traded yet: not fulfilled
	if got := l.ClearFulfilled(view); len(got) != 0 {
		t.Fatalf("cleared = %v, want none", got)
	}

	// one leg done, the other not: still not fulfilled
	view.traded["AAA#tag-1"] = d("1")
	if got := l.ClearFulfilled(view); len(got) != 0 {
		t.Fatalf("cleared = %v, want none with one leg open", got)
	}

	// both legs traded but an open order still carries the tag
	view.traded["BBB#tag-1"] = d("-1")
	view.open["BBB#tag-1"] = d("-0.5")
	if got := l.ClearFulfilled(view); len(got) != 0 {
		t.Fatalf("cleared = %v, want none with tagged open orders", got)
	}

	// open order gone: fulfilled
	view.open["BBB#tag-1"] = decimal.Zero
	got := l.ClearFulfilled(view)
	if len(got) != 1 || got[0] != "tag-1" {
		t.Fatalf("cleared = %v, want [tag-1]", got)
	}
	if l.Len() != 0 {
		t.Fatal("fulfilled entry must be removed")
	}
}

func TestClearFulfilledTagFiltered(t *testing.T) {
	// two levels on the same instruments, different tags: open orders on
	// tag-2 must not block tag-1's fulfillment.
	l := NewTargetLedger()
	l.Upsert(targetsFor("tag-1"))
	l.Upsert(targetsFor("tag-2"))

	view := newFakeView()
	view.deltas["AAA"] = d("1")
	view.deltas["BBB"] = d("-1")
	view.traded["AAA#tag-1"] = d("1")
	view.traded["BBB#tag-1"] = d("-1")
	view.open["AAA#tag-2"] = d("1") // other level still working

	got := l.ClearFulfilled(view)
	if len(got) != 1 || got[0] != "tag-1" {
		t.Fatalf("cleared = %v, want [tag-1] only", got)
	}
	if l.Len() != 1 {
		t.Fatal("tag-2 must remain outstanding")
	}
}

func TestToleranceIsStrict(t *testing.T) {
	l := NewTargetLedger()
	l.Upsert(targetsFor("tag-1"))

	view := newFakeView()
	view.deltas["AAA"] = d("1")
	view.deltas["BBB"] = d("-1")
	// residual exactly equal to lot size: |delta-traded| < lot fails
	view.traded["AAA#tag-1"] = d("0.99")
	view.traded["BBB#tag-1"] = d("-1")

	if got := l.ClearFulfilled(view); len(got) != 0 {
		t.Fatalf("cleared = %v; residual == lot size must not fulfill", got)
	}

	view.traded["AAA#tag-1"] = d("0.995")
	if got := l.ClearFulfilled(view); len(got) != 1 {
		t.Fatal("residual below lot size must fulfill")
	}
}

func TestEntriesSnapshotUnderConcurrentMutation(t *testing.T) {
	l := NewTargetLedger()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				l.Upsert(targetsFor(fmt.Sprintf("tag-%d-%d", i, j)))
				for range l.Entries() {
				}
			}
		}(i)
	}
	wg.Wait()

	if l.Len() != 8*200 {
		t.Fatalf("entries = %d, want %d", l.Len(), 8*200)
	}
}

package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"arb_bot/internal/grid"
	"arb_bot/internal/models"
	"arb_bot/internal/signals"
	"arb_bot/internal/tag"
	"arb_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InfoLogger = zap.NewNop()
	logger.FatalLogger = zap.NewNop()
	m.Run()
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustLevel(t *testing.T, dir models.SpreadDirection, entry, exit, frac string) models.GridLevelPair {
	t.Helper()
	lp, err := models.NewGridLevelPair(dir, d(entry), d(exit), d(frac))
	if err != nil {
		t.Fatalf("level: %v", err)
	}
	return lp
}

func newModel(t *testing.T, levels ...models.GridLevelPair) (*AlphaModel, *grid.Book, *signals.Collection) {
	t.Helper()
	book := grid.NewBook()
	book.AddPair(grid.NewTradingPair("AAA", "BBB", d("0.001"), d("0.001"), levels))
	sigs := signals.NewCollection()
	return NewAlphaModel(book, sigs, 5*time.Minute), book, sigs
}

func TestEntrySignalLongSpread(t *testing.T) {
	now := time.Now()
	m, book, sigs := newModel(t, mustLevel(t, models.LongSpread, "-1", "-0.2", "0.5"))

	book.UpdatePrice("AAA", d("99"), now)
	book.UpdatePrice("BBB", d("100"), now)

	out := m.OnTick(now)
	if len(out) != 1 {
		t.Fatalf("signals = %d, want 1", len(out))
	}
	s := out[0]
	if s.InstID != "AAA" {
		t.Fatalf("signal instrument = %s, want leg1", s.InstID)
	}
	if s.Direction != models.DirectionUp {
		t.Fatalf("direction = %s, want UP for long spread", s.Direction)
	}
	if l1, l2, _, ok := tag.TryDecode(s.Tag); !ok || l1 != "AAA" || l2 != "BBB" {
		t.Fatalf("tag %q must decode back to the pair", s.Tag)
	}
	if !sigs.HasActive("AAA", s.LevelKey, now) {
		t.Fatal("emitted signal must be registered in the collection")
	}

	// same tick again: deduplicated through the collection
	if again := m.OnTick(now); len(again) != 0 {
		t.Fatalf("repeat tick emitted %d signals, want 0", len(again))
	}
}

func TestEntrySignalShortSpread(t *testing.T) {
	now := time.Now()
	m, book, _ := newModel(t, mustLevel(t, models.ShortSpread, "1", "0.2", "0.5"))

	book.UpdatePrice("AAA", d("101"), now)
	book.UpdatePrice("BBB", d("100"), now)

	out := m.OnTick(now)
	if len(out) != 1 || out[0].Direction != models.DirectionDown {
		t.Fatalf("signals = %+v, want one DOWN", out)
	}
}

func TestNoSignalWithoutBothPrices(t *testing.T) {
	now := time.Now()
	m, book, _ := newModel(t, mustLevel(t, models.LongSpread, "-1", "-0.2", "0.5"))

	book.UpdatePrice("AAA", d("99"), now)
	if out := m.OnTick(now); len(out) != 0 {
		t.Fatalf("signals = %d with one leg priced, want 0", len(out))
	}
}

func TestNoSignalWhileUncrossed(t *testing.T) {
	now := time.Now()
	m, book, _ := newModel(t, mustLevel(t, models.LongSpread, "-1", "-0.2", "0.5"))

	book.UpdatePrice("AAA", d("99.9"), now) // spread -0.1, above entry
	book.UpdatePrice("BBB", d("100"), now)
	if out := m.OnTick(now); len(out) != 0 {
		t.Fatalf("signals = %d while uncrossed, want 0", len(out))
	}
}

func TestInvestedPositionSuppressesReentry(t *testing.T) {
	now := time.Now()
	lp := mustLevel(t, models.LongSpread, "-1", "-0.2", "0.5")
	m, book, sigs := newModel(t, lp)

	book.UpdatePrice("AAA", d("99"), now)
	book.UpdatePrice("BBB", d("100"), now)

	out := m.OnTick(now)
	if len(out) != 1 {
		t.Fatalf("signals = %d, want 1", len(out))
	}

	// fills arrive, signal expires: the invested position alone must
	// keep the level from firing again
	pair, _ := book.Pair(grid.PairKey("AAA", "BBB"))
	pos, _ := pair.Position(lp.Key())
	pos.ApplyFill("AAA", d("10"), d("99"), now)
	sigs.Cancel(out)

	if again := m.OnTick(now.Add(time.Second)); len(again) != 0 {
		t.Fatalf("invested level re-emitted %d signals, want 0", len(again))
	}
}

func TestExitSignalSupersedesEntry(t *testing.T) {
	now := time.Now()
	lp := mustLevel(t, models.LongSpread, "-1", "-0.2", "0.5")
	m, book, sigs := newModel(t, lp)

	book.UpdatePrice("AAA", d("99"), now)
	book.UpdatePrice("BBB", d("100"), now)
	entry := m.OnTick(now)
	if len(entry) != 1 {
		t.Fatalf("entry signals = %d, want 1", len(entry))
	}

	pair, _ := book.Pair(grid.PairKey("AAA", "BBB"))
	pos, _ := pair.Position(lp.Key())
	pos.ApplyFill("AAA", d("10"), d("99"), now)
	pos.ApplyFill("BBB", d("-10"), d("100"), now)

	// spread recovers to the exit threshold
	later := now.Add(time.Second)
	book.UpdatePrice("AAA", d("99.8"), later)

	out := m.OnTick(later)
	if len(out) != 1 || out[0].Direction != models.DirectionFlat {
		t.Fatalf("exit signals = %+v, want one FLAT", out)
	}

	// the entry signal sharing the tag is gone; only the flatten lives
	active := sigs.GetActiveSignals(later)
	if len(active) != 1 || active[0].Direction != models.DirectionFlat {
		t.Fatalf("active = %+v, want only the FLAT signal", active)
	}
}

func TestCancelPairSignals(t *testing.T) {
	now := time.Now()
	m, book, sigs := newModel(t, mustLevel(t, models.LongSpread, "-1", "-0.2", "0.5"))

	book.UpdatePrice("AAA", d("99"), now)
	book.UpdatePrice("BBB", d("100"), now)
	if out := m.OnTick(now); len(out) != 1 {
		t.Fatalf("signals = %d, want 1", len(out))
	}

	// cancelling by the second leg must still find the signal, which
	// was emitted on leg1, through its tag
	if n := m.CancelPairSignals("BBB", "CCC", now); n != 1 {
		t.Fatalf("cancelled = %d, want 1", n)
	}
	if len(sigs.GetActiveSignals(now)) != 0 {
		t.Fatal("no signals may survive pair cancellation")
	}
}

package service

import (
	"time"

	"arb_bot/internal/grid"
	"arb_bot/internal/models"
	"arb_bot/internal/signals"
	"arb_bot/internal/tag"
	"arb_bot/pkg/logger"
)

// AlphaModel scans every trading pair's grid levels against the live
// spread and emits single-leg signals carrying the encoded pairing tag.
// It is stateless: deduplication goes through the signal collection,
// exit rules live on the positions themselves.
type AlphaModel struct {
	book *grid.Book
	sigs *signals.Collection
	ttl  time.Duration
}

func NewAlphaModel(book *grid.Book, sigs *signals.Collection, ttl time.Duration) *AlphaModel {
	return &AlphaModel{
		book: book,
		sigs: sigs,
		ttl:  ttl,
	}
}

// OnTick evaluates all pairs once and returns the newly emitted
// signals. Emitted signals are also registered in the collection.
func (a *AlphaModel) OnTick(now time.Time) []models.Signal {
	var out []models.Signal
	for _, p := range a.book.Pairs() {
		out = append(out, a.evalPair(p, now)...)
	}
	return out
}

func (a *AlphaModel) evalPair(p *grid.TradingPair, now time.Time) []models.Signal {
	spread, ok := p.Spread()
	if !ok {
		return nil
	}

	leg1, leg2 := p.Legs()
	var out []models.Signal

	for _, lp := range p.Levels() {
		if !p.EntryTriggered(lp) {
			continue
		}

		// position exists from the first entry trigger onward
		pos := p.EnsurePosition(lp, now)
		if pos.Invested() {
			continue
		}

		levelKey := lp.Entry.NaturalKey()
		if a.sigs.HasActive(leg1, levelKey, now) {
			continue
		}

		dir := models.DirectionUp
		if lp.Direction() == models.ShortSpread {
			dir = models.DirectionDown
		}

		encoded := tag.Encode(leg1, leg2, lp)
		// one live signal per tag: a stale flatten must not coexist
		// with a fresh entry on the same pairing
		a.sigs.CancelTag(encoded)

		s := models.Signal{
			InstID:      leg1,
			Direction:   dir,
			Tag:         encoded,
			LevelKey:    levelKey,
			GeneratedAt: now,
			CloseAt:     now.Add(a.ttl),
			Reason:      "entry " + lp.Key(),
		}
		a.sigs.Add(s)
		out = append(out, s)
	}

	// exits follow the level pair that opened the position, even if the
	// pair's configured levels have changed since
	for _, pos := range p.Positions() {
		if !pos.Invested() || !pos.ShouldExit(spread) {
			continue
		}

		lp := pos.Levels()
		levelKey := lp.Exit.NaturalKey()
		if a.sigs.HasActive(leg1, levelKey, now) {
			continue
		}

		encoded := tag.Encode(leg1, leg2, lp)
		// supersede the entry signal that opened this position
		a.sigs.CancelTag(encoded)

		s := models.Signal{
			InstID:      leg1,
			Direction:   models.DirectionFlat,
			Tag:         encoded,
			LevelKey:    levelKey,
			GeneratedAt: now,
			CloseAt:     now.Add(a.ttl),
			Reason:      "exit " + lp.Key(),
		}
		a.sigs.Add(s)
		out = append(out, s)
	}

	return out
}

// CancelPairSignals removes every live signal referencing either leg,
// whether emitted on the leg directly or paired with it through the
// tag. Called before a pair is removed from the book.
func (a *AlphaModel) CancelPairSignals(leg1, leg2 string, now time.Time) int {
	var doomed []models.Signal
	for _, s := range a.sigs.GetActiveSignals(now) {
		if s.InstID == leg1 || s.InstID == leg2 {
			doomed = append(doomed, s)
			continue
		}
		if l1, l2, _, ok := tag.TryDecode(s.Tag); ok {
			if l1 == leg1 || l1 == leg2 || l2 == leg1 || l2 == leg2 {
				doomed = append(doomed, s)
			}
		}
	}

	if len(doomed) > 0 {
		a.sigs.Cancel(doomed)
		logger.Info("cancelled %d live signals for pair %s/%s", len(doomed), leg1, leg2)
	}
	return len(doomed)
}

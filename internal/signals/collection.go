// Package signals holds the live-signal collection the alpha model
// queries for deduplication. The generator keeps no local state: this
// collection is the single source of truth for what is active, which
// makes the generator restart-safe.
package signals

import (
	"sync"
	"time"

	"arb_bot/internal/models"
)

type Collection struct {
	mu     sync.Mutex
	active map[string]models.Signal // by Signal.Key()
}

func NewCollection() *Collection {
	return &Collection{active: make(map[string]models.Signal)}
}

func (c *Collection) Add(s models.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active[s.Key()] = s
}

// GetActiveSignals returns a snapshot of unexpired signals.
func (c *Collection) GetActiveSignals(now time.Time) []models.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Signal, 0, len(c.active))
	for _, s := range c.active {
		if !s.IsExpired(now) {
			out = append(out, s)
		}
	}
	return out
}

// HasActive reports whether an unexpired signal exists for the
// (instrument, level) key.
func (c *Collection) HasActive(instID, levelKey string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.active[instID+"#"+levelKey]
	return ok && !s.IsExpired(now)
}

// SweepExpired removes and returns signals past their deadline. The
// portfolio layer calls this once per cycle to emit flatten targets.
func (c *Collection) SweepExpired(now time.Time) []models.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []models.Signal
	for key, s := range c.active {
		if s.IsExpired(now) {
			out = append(out, s)
			delete(c.active, key)
		}
	}
	return out
}

func (c *Collection) Cancel(sigs []models.Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range sigs {
		delete(c.active, s.Key())
	}
}

// CancelTag removes every signal carrying the tag. Entry and exit
// signals of one level pair share a tag; cancelling by tag before
// emitting keeps at most one live signal per tag, so the ledger never
// holds contradictory targets for the same pairing.
func (c *Collection) CancelTag(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key, s := range c.active {
		if s.Tag == tag {
			delete(c.active, key)
			n++
		}
	}
	return n
}

// CancelInstrument removes every signal on the instrument and returns
// the cancelled signals.
func (c *Collection) CancelInstrument(instID string) []models.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []models.Signal
	for key, s := range c.active {
		if s.InstID == instID {
			out = append(out, s)
			delete(c.active, key)
		}
	}
	return out
}

// ActiveOnInstrument reports whether any unexpired signal remains on
// the instrument.
func (c *Collection) ActiveOnInstrument(instID string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.active {
		if s.InstID == instID && !s.IsExpired(now) {
			return true
		}
	}
	return false
}

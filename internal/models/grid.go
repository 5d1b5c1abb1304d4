package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SpreadDirection — which side of the spread a grid level trades.
type SpreadDirection string

const (
	LongSpread  SpreadDirection = "long_spread"
	ShortSpread SpreadDirection = "short_spread"
)

func (d SpreadDirection) Valid() bool {
	return d == LongSpread || d == ShortSpread
}

// LevelKind — entry opens a position at the level, exit closes it.
type LevelKind string

const (
	KindEntry LevelKind = "entry"
	KindExit  LevelKind = "exit"
)

// GridLevel is an immutable trigger rule: cross Threshold in the
// direction-appropriate sense and trade SizeFraction of the portfolio.
type GridLevel struct {
	Threshold    decimal.Decimal
	Direction    SpreadDirection
	Kind         LevelKind
	SizeFraction decimal.Decimal
}

// NaturalKey is deterministic and unique within one trading pair only.
func (l GridLevel) NaturalKey() string {
	return fmt.Sprintf("%s|%s|%s", l.Threshold.String(), l.Direction, l.Kind)
}

// GridLevelPair is an entry level plus the exit level that unwinds it.
type GridLevelPair struct {
	Entry GridLevel
	Exit  GridLevel
}

// NewGridLevelPair validates threshold geometry at construction time:
// long spread enters below zero and exits above its entry, short spread
// enters above zero and exits below its entry. The exit size fraction is
// always the negation of the entry one.
func NewGridLevelPair(dir SpreadDirection, entry, exit, sizeFraction decimal.Decimal) (GridLevelPair, error) {
	if !dir.Valid() {
		return GridLevelPair{}, fmt.Errorf("grid level pair: unknown direction %q", dir)
	}

	switch dir {
	case LongSpread:
		if entry.Sign() >= 0 {
			return GridLevelPair{}, fmt.Errorf("grid level pair: long spread entry threshold %s must be negative", entry)
		}
		if exit.LessThanOrEqual(entry) {
			return GridLevelPair{}, fmt.Errorf("grid level pair: long spread exit threshold %s must be above entry %s", exit, entry)
		}
	case ShortSpread:
		if entry.Sign() <= 0 {
			return GridLevelPair{}, fmt.Errorf("grid level pair: short spread entry threshold %s must be positive", entry)
		}
		if exit.GreaterThanOrEqual(entry) {
			return GridLevelPair{}, fmt.Errorf("grid level pair: short spread exit threshold %s must be below entry %s", exit, entry)
		}
	}

	return GridLevelPair{
		Entry: GridLevel{
			Threshold:    entry,
			Direction:    dir,
			Kind:         KindEntry,
			SizeFraction: sizeFraction,
		},
		Exit: GridLevel{
			Threshold:    exit,
			Direction:    dir,
			Kind:         KindExit,
			SizeFraction: sizeFraction.Neg(),
		},
	}, nil
}

// Key is the pair-local identity of the level pair, derived from its
// entry level.
func (lp GridLevelPair) Key() string {
	return lp.Entry.NaturalKey()
}

func (lp GridLevelPair) Direction() SpreadDirection {
	return lp.Entry.Direction
}

// Equal compares the full configuration of both levels.
func (lp GridLevelPair) Equal(other GridLevelPair) bool {
	return lp.Entry.Direction == other.Entry.Direction &&
		lp.Entry.Threshold.Equal(other.Entry.Threshold) &&
		lp.Exit.Threshold.Equal(other.Exit.Threshold) &&
		lp.Entry.SizeFraction.Equal(other.Entry.SizeFraction)
}

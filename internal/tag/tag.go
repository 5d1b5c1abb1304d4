// Package tag encodes spread-pairing metadata into a portable string.
// The tag is the only channel between single-leg signals and the
// two-leg allocation layer, so it must round-trip exactly and decode
// without access to the trading pair that produced it.
package tag

import (
	"strings"

	"github.com/shopspring/decimal"

	"arb_bot/internal/models"
)

const (
	version   = "v1"
	separator = "|"
	numFields = 7
)

// Encode builds a versioned tag from both legs and the level pair.
// Leg order is preserved, not normalized: swapping legs yields a
// different tag.
func Encode(leg1, leg2 string, lp models.GridLevelPair) string {
	parts := []string{
		version,
		leg1,
		leg2,
		string(lp.Entry.Direction),
		lp.Entry.Threshold.String(),
		lp.Exit.Threshold.String(),
		lp.Entry.SizeFraction.String(),
	}
	return strings.Join(parts, separator)
}

// TryDecode reconstructs the legs and level pair from a tag. It never
// panics on malformed input; callers skip-and-log on ok == false.
func TryDecode(s string) (leg1, leg2 string, lp models.GridLevelPair, ok bool) {
	parts := strings.Split(s, separator)
	if len(parts) != numFields || parts[0] != version {
		return "", "", models.GridLevelPair{}, false
	}

	leg1, leg2 = parts[1], parts[2]
	if leg1 == "" || leg2 == "" {
		return "", "", models.GridLevelPair{}, false
	}

	dir := models.SpreadDirection(parts[3])
	if !dir.Valid() {
		return "", "", models.GridLevelPair{}, false
	}

	entry, err := decimal.NewFromString(parts[4])
	if err != nil {
		return "", "", models.GridLevelPair{}, false
	}
	exit, err := decimal.NewFromString(parts[5])
	if err != nil {
		return "", "", models.GridLevelPair{}, false
	}
	fraction, err := decimal.NewFromString(parts[6])
	if err != nil {
		return "", "", models.GridLevelPair{}, false
	}

	lp, err = models.NewGridLevelPair(dir, entry, exit, fraction)
	if err != nil {
		return "", "", models.GridLevelPair{}, false
	}

	return leg1, leg2, lp, true
}

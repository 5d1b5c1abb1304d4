package tag

import (
	"testing"

	"github.com/shopspring/decimal"

	"arb_bot/internal/models"
)

func mustPair(t *testing.T, dir models.SpreadDirection, entry, exit, frac string) models.GridLevelPair {
	t.Helper()
	lp, err := models.NewGridLevelPair(
		dir,
		decimal.RequireFromString(entry),
		decimal.RequireFromString(exit),
		decimal.RequireFromString(frac),
	)
	if err != nil {
		t.Fatalf("build level pair: %v", err)
	}
	return lp
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		leg1, leg2 string
		dir        models.SpreadDirection
		entry      string
		exit       string
		frac       string
	}{
		{"long", "BTC-USDT", "BTC-USDT-SWAP", models.LongSpread, "-0.5", "-0.1", "0.25"},
		{"short", "ETH-USDT", "ETH-USDT-SWAP", models.ShortSpread, "0.8", "0.2", "0.1"},
		{"long exit positive", "AAA", "BBB", models.LongSpread, "-1.25", "0.75", "0.05"},
		{"high precision", "AAA", "BBB", models.ShortSpread, "0.123456789", "0.0000001", "0.333333"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lp := mustPair(t, tt.dir, tt.entry, tt.exit, tt.frac)
			s := Encode(tt.leg1, tt.leg2, lp)

			l1, l2, got, ok := TryDecode(s)
			if !ok {
				t.Fatalf("decode failed for %q", s)
			}
			if l1 != tt.leg1 || l2 != tt.leg2 {
				t.Fatalf("legs: got (%s, %s), want (%s, %s)", l1, l2, tt.leg1, tt.leg2)
			}
			if !got.Equal(lp) {
				t.Fatalf("level pair mismatch: got %+v want %+v", got, lp)
			}

			// encode→decode→encode is idempotent
			if again := Encode(l1, l2, got); again != s {
				t.Fatalf("re-encode mismatch: %q != %q", again, s)
			}
		})
	}
}

func TestLegOrderIsPreserved(t *testing.T) {
	lp := mustPair(t, models.LongSpread, "-0.5", "-0.1", "0.25")
	a := Encode("AAA", "BBB", lp)
	b := Encode("BBB", "AAA", lp)
	if a == b {
		t.Fatal("swapped legs must produce a different tag")
	}
}

func TestTryDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"garbage", "not a tag at all"},
		{"wrong version", "v9|AAA|BBB|long_spread|-0.5|-0.1|0.25"},
		{"missing field", "v1|AAA|BBB|long_spread|-0.5|-0.1"},
		{"extra field", "v1|AAA|BBB|long_spread|-0.5|-0.1|0.25|x"},
		{"bad direction", "v1|AAA|BBB|sideways|-0.5|-0.1|0.25"},
		{"bad threshold", "v1|AAA|BBB|long_spread|abc|-0.1|0.25"},
		{"bad fraction", "v1|AAA|BBB|long_spread|-0.5|-0.1|lots"},
		{"empty leg", "v1||BBB|long_spread|-0.5|-0.1|0.25"},
		{"invalid geometry", "v1|AAA|BBB|long_spread|0.5|0.9|0.25"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, ok := TryDecode(tt.in); ok {
				t.Fatalf("expected decode failure for %q", tt.in)
			}
		})
	}
}

package main

import (
	"testing"

	"go.uber.org/zap"

	"arb_bot/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.InfoLogger = zap.NewNop()
	logger.FatalLogger = zap.NewNop()
	m.Run()
}

func TestExpandBandLongLadder(t *testing.T) {
	levels, err := expandBand(bandSpec{
		Direction:  "long_spread",
		Start:      "-0.5",
		Step:       "-0.5",
		Count:      3,
		ExitOffset: "0.3",
		Fraction:   "0.25",
	})
	if err != nil {
		t.Fatalf("expandBand: %v", err)
	}
	if len(levels) != 3 {
		t.Fatalf("levels = %d, want 3", len(levels))
	}

	wantEntries := []string{"-0.5", "-1", "-1.5"}
	wantExits := []string{"-0.2", "-0.7", "-1.2"}
	for i, lv := range levels {
		if lv.Entry != wantEntries[i] || lv.Exit != wantExits[i] {
			t.Errorf("level %d = entry %s exit %s, want %s/%s", i, lv.Entry, lv.Exit, wantEntries[i], wantExits[i])
		}
	}
}

func TestExpandBandShortLadder(t *testing.T) {
	levels, err := expandBand(bandSpec{
		Direction:  "short_spread",
		Start:      "0.5",
		Step:       "0.5",
		Count:      2,
		ExitOffset: "0.3",
		Fraction:   "0.5",
	})
	if err != nil {
		t.Fatalf("expandBand: %v", err)
	}
	if levels[0].Exit != "0.2" || levels[1].Exit != "0.7" {
		t.Fatalf("short exits = %s, %s", levels[0].Exit, levels[1].Exit)
	}
}

func TestExpandBandRejectsBadSpecs(t *testing.T) {
	base := bandSpec{
		Direction:  "long_spread",
		Start:      "-0.5",
		Step:       "-0.5",
		Count:      2,
		ExitOffset: "0.3",
		Fraction:   "0.25",
	}

	tests := []struct {
		name string
		mut  func(*bandSpec)
	}{
		{"zero count", func(b *bandSpec) { b.Count = 0 }},
		{"bad start", func(b *bandSpec) { b.Start = "x" }},
		{"bad direction", func(b *bandSpec) { b.Direction = "sideways" }},
		{"wrong sign start", func(b *bandSpec) { b.Start = "0.5"; b.Step = "0.5" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := base
			tt.mut(&b)
			if _, err := expandBand(b); err == nil {
				t.Fatal("want error")
			}
		})
	}
}

func TestExpandRequiresLevels(t *testing.T) {
	if _, err := expand([]pairSpec{{Leg1: "A", Leg2: "B"}}); err == nil {
		t.Fatal("pair without bands must fail")
	}
}

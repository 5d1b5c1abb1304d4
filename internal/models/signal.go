package models

import "time"

// SignalDirection — where the signal wants the instrument to go.
// Exits always map to Flat.
type SignalDirection string

const (
	DirectionUp   SignalDirection = "UP"
	DirectionDown SignalDirection = "DOWN"
	DirectionFlat SignalDirection = "FLAT"
)

// Signal is a single-leg trading signal. Pairing metadata travels only
// in Tag; nothing else links the two legs of a spread decision.
type Signal struct {
	InstID      string
	Direction   SignalDirection
	Tag         string
	LevelKey    string // natural key of the grid level that fired
	Price       float64
	GeneratedAt time.Time
	CloseAt     time.Time // expiry deadline
	Reason      string
}

// Key deduplicates signals per (instrument, level).
func (s Signal) Key() string {
	return s.InstID + "#" + s.LevelKey
}

func (s Signal) IsExpired(now time.Time) bool {
	return !s.CloseAt.IsZero() && now.After(s.CloseAt)
}

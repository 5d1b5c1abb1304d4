package service

import (
	"sync/atomic"
	"time"
)

// State is the shared health surface of the trading core. Writers are
// the runner (eval/tick freshness); readers are the HTTP probes.
type State struct {
	startedAt time.Time

	lastTickUnix atomic.Int64
	lastEvalUnix atomic.Int64
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

func (s *State) TouchTick(t time.Time) { s.lastTickUnix.Store(t.Unix()) }
func (s *State) TouchEval(t time.Time) { s.lastEvalUnix.Store(t.Unix()) }

func (s *State) LastTick() time.Time { return fromUnix(s.lastTickUnix.Load()) }
func (s *State) LastEval() time.Time { return fromUnix(s.lastEvalUnix.Load()) }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }

func fromUnix(u int64) time.Time {
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

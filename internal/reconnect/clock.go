package reconnect

import "time"

// clock abstracts the passage of time so tests can control exactly when
// a scheduled reconnect fires without sleeping real seconds.
type clock interface {
	After() <-chan time.Time
}

// Delay is a clock that fires once, d after After is called — i.e.
// wraps time.After. This is the production implementation; use
// NewFakeClock in tests.
type Delay time.Duration

func (d Delay) After() <-chan time.Time {
	return time.After(time.Duration(d))
}

// FakeClock lets tests deterministically control when Schedule's timer
// fires, instead of racing real wall-clock sleeps.
type FakeClock struct {
	ch chan time.Time
}

// NewFakeClock creates a FakeClock whose channel fires only when Fire
// is called.
func NewFakeClock() *FakeClock {
	return &FakeClock{ch: make(chan time.Time, 1)}
}

func (f *FakeClock) After() <-chan time.Time { return f.ch }

// Fire causes the next receive on After() to succeed immediately.
func (f *FakeClock) Fire() { f.ch <- time.Now() }

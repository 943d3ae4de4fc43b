// Package tunnelmachinetest provides an in-memory fake
// tunnelmachine.Machine for orchestrator tests.
package tunnelmachinetest

import (
	"context"
	"sync"

	"vpnguard/internal/tunnelmachine"
)

// Fake records every Command sent to it and lets the test script
// transitions onto the Transitions channel.
type Fake struct {
	mu       sync.Mutex
	Sent     []tunnelmachine.Command
	SendErr  error
	transCh  chan tunnelmachine.State
	offlineC chan bool
}

func New() *Fake {
	return &Fake{
		transCh:  make(chan tunnelmachine.State, 64),
		offlineC: make(chan bool, 8),
	}
}

func (f *Fake) Send(ctx context.Context, cmd tunnelmachine.Command) error {
	f.mu.Lock()
	f.Sent = append(f.Sent, cmd)
	err := f.SendErr
	f.mu.Unlock()
	if err != nil {
		return err
	}
	// Acknowledge reply channels so callers awaiting them never block.
	if cmd.PathsReply != nil {
		cmd.PathsReply <- nil
	}
	if cmd.BypassReply != nil {
		cmd.BypassReply <- nil
	}
	return nil
}

func (f *Fake) Transitions() <-chan tunnelmachine.State { return f.transCh }
func (f *Fake) Offline() <-chan bool                    { return f.offlineC }

// Transition pushes a new state as if reported by the real machine.
func (f *Fake) Transition(s tunnelmachine.State) { f.transCh <- s }

// SetOffline pushes a connectivity signal.
func (f *Fake) SetOffline(v bool) { f.offlineC <- v }

// LastSent returns the most recently sent command, or the zero value.
func (f *Fake) LastSent() (tunnelmachine.Command, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return tunnelmachine.Command{}, false
	}
	return f.Sent[len(f.Sent)-1], true
}

// Count returns how many commands of the given kind were sent.
func (f *Fake) Count(kind tunnelmachine.Kind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Sent {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

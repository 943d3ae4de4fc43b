// Package eventbus implements the unbounded, single-consumer event queue
// (C1) that carries InternalEvents from every subsystem to the
// orchestrator. Senders held by subsystems are weak references to the
// bus so that a subsystem goroutine can never keep the daemon alive
// past shutdown.
package eventbus

import (
	"context"
	"errors"
	"sync"
	"weak"
)

// ErrClosed is returned by Send once the bus has been closed.
var ErrClosed = errors.New("eventbus: closed")

// ErrGone is returned by a WeakSender whose bus has already been
// garbage-collected.
var ErrGone = errors.New("eventbus: bus no longer available")

// Kind identifies the variant carried by an Event's Payload.
type Kind int

const (
	KindTunnelStateTransition Kind = iota
	KindGenerateTunnelParameters
	KindCommand
	KindTriggerShutdown
	KindNewAppVersionInfo
	KindDeviceEvent
	KindDeviceMigrationEvent
	KindExcludedPathsEvent
	KindOfflineStateChanged
)

func (k Kind) String() string {
	switch k {
	case KindTunnelStateTransition:
		return "TunnelStateTransition"
	case KindGenerateTunnelParameters:
		return "GenerateTunnelParameters"
	case KindCommand:
		return "Command"
	case KindTriggerShutdown:
		return "TriggerShutdown"
	case KindNewAppVersionInfo:
		return "NewAppVersionInfo"
	case KindDeviceEvent:
		return "DeviceEvent"
	case KindDeviceMigrationEvent:
		return "DeviceMigrationEvent"
	case KindExcludedPathsEvent:
		return "ExcludedPathsEvent"
	case KindOfflineStateChanged:
		return "OfflineStateChanged"
	default:
		return "Unknown"
	}
}

// Event is the single variant type carried on the bus. Payload holds the
// kind-specific data; concrete payload types live alongside the package
// that owns the semantics (e.g. orchestrator.Command for KindCommand).
type Event struct {
	Kind    Kind
	Payload any
}

// Bus is an unbounded multi-producer, single-consumer FIFO queue.
// Ordering is strict per-producer; cross-producer order is whatever
// Send calls happen to interleave in, matching spec.md §4.1.
type Bus struct {
	mu     sync.Mutex
	queue  []Event
	wake   chan struct{}
	closed bool
}

// New creates a ready-to-use Bus.
func New() *Bus {
	return &Bus{wake: make(chan struct{}, 1)}
}

// Send enqueues e. Safe for concurrent use by multiple producers.
func (b *Bus) Send(e Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.queue = append(b.queue, e)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

// Next blocks until an event is available, ctx is cancelled, or the bus
// is closed. Only the orchestrator's single consumer goroutine should
// call this.
func (b *Bus) Next(ctx context.Context) (Event, error) {
	for {
		b.mu.Lock()
		if len(b.queue) > 0 {
			e := b.queue[0]
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return e, nil
		}
		closed := b.closed
		b.mu.Unlock()
		if closed {
			return Event{}, ErrClosed
		}

		select {
		case <-b.wake:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// Close marks the bus closed. Pending events already queued are still
// delivered by subsequent Next calls; once drained, Next returns
// ErrClosed. Further Sends fail immediately.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// StrongSender returns a sender that keeps the Bus reachable. Only the
// orchestrator itself should hold one (e.g. to hand to its own
// deferred-work scheduler that it explicitly joins at shutdown).
type StrongSender struct{ bus *Bus }

func (b *Bus) StrongSender() StrongSender { return StrongSender{bus: b} }

func (s StrongSender) Send(e Event) error { return s.bus.Send(e) }

// WeakSender is a weak reference to a Bus. Subsystems spawned as
// detached tasks hold one of these instead of a *Bus so that they
// never keep the orchestrator alive; once the orchestrator drops its
// own reference, WeakSender.Send fails with ErrGone instead of
// panicking.
type WeakSender struct {
	ptr weak.Pointer[Bus]
}

// WeakSender returns a weak-referencing sender for b.
func (b *Bus) WeakSender() WeakSender {
	return WeakSender{ptr: weak.Make(b)}
}

// Send enqueues e if the referenced bus is still alive, returning
// ErrGone otherwise. Never panics.
func (w WeakSender) Send(e Event) error {
	bus := w.ptr.Value()
	if bus == nil {
		return ErrGone
	}
	return bus.Send(e)
}

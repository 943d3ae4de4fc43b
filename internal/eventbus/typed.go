package eventbus

// Typed wraps a WeakSender to offer a narrow, kind-specific Send method
// for one payload type, so subsystems that only ever emit one event
// variant (e.g. the tunnel state machine emitting transitions, or the
// version checker emitting NewAppVersionInfo) don't need to know about
// Kind or Event at their call sites. Same weak-reference semantics as
// WeakSender: a send after the bus is gone returns ErrGone rather than
// panicking.
type Typed[T any] struct {
	sender WeakSender
	kind   Kind
}

// NewTyped creates a Typed adapter bound to kind, backed by sender.
func NewTyped[T any](sender WeakSender, kind Kind) Typed[T] {
	return Typed[T]{sender: sender, kind: kind}
}

// Send enqueues payload as an Event of this adapter's Kind.
func (t Typed[T]) Send(payload T) error {
	return t.sender.Send(Event{Kind: t.kind, Payload: payload})
}

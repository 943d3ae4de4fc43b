// Package tunnelmachine models the Tunnel State Machine external
// collaborator (spec.md §6) — the out-of-scope kernel/OS-level tunnel
// and firewall driver. The orchestrator only sends it TunnelCommands
// and observes the TunnelState transitions (and offline signal) it
// reports back.
package tunnelmachine

import "context"

// ErrorCause distinguishes why a tunnel entered the Error state.
type ErrorCause int

const (
	CauseOther ErrorCause = iota
	CauseAuthFailed
)

// Phase is the coarse lifecycle phase of the mirrored TunnelState.
type Phase int

const (
	Disconnected Phase = iota
	Connecting
	Connected
	Disconnecting
	Error
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// TunnelType distinguishes the transport in use while Connected or
// Connecting, used by the Settings Change Handler to decide whether a
// setting change warrants a reconnect.
type TunnelType int

const (
	TunnelTypeNone TunnelType = iota
	TunnelTypeWireGuard
	TunnelTypeOpenVPN
)

// State mirrors the tunnel machine's reported state (spec.md §3).
type State struct {
	Phase Phase

	// Endpoint/Location apply to Connecting and Connected.
	Endpoint string
	Location *string // opaque rendered description; nil if unknown
	Type     TunnelType

	// After applies to Disconnecting: what phase it is heading toward.
	After Phase

	// Cause/Blocking apply to Error.
	Cause    ErrorCause
	Blocking bool
}

// Command is sent to the tunnel machine to drive it.
type Command struct {
	Kind Kind

	// AllowLan / BlockWhenDisconnected carry their bool payload.
	Bool bool
	// DNS carries resolver addresses for the Dns command.
	DNS []string
	// ExcludedPaths carries the new split-tunnel path set plus a reply
	// channel the machine uses to ack or reject it.
	ExcludedPaths []string
	PathsReply    chan<- error

	// BypassFD/BypassReply are used by BypassSocket.
	BypassFD    int
	BypassReply chan<- error
}

// Kind identifies the Command variant.
type Kind int

const (
	Connect Kind = iota
	Disconnect
	Reconnect
	AllowLan
	BlockWhenDisconnected
	Dns
	SetExcludedApps
	BypassSocket
)

// Machine is the Tunnel State Machine contract.
type Machine interface {
	Send(ctx context.Context, cmd Command) error
	// Transitions returns a channel of State updates, closed when the
	// machine shuts down.
	Transitions() <-chan State
	// Offline returns a channel of connectivity signals: true means the
	// host appears to have no network path at all.
	Offline() <-chan bool
}

package orchestrator

import (
	"context"

	"vpnguard/internal/tunnelmachine"
)

// handleTunnelTransition implements spec.md §4.8's eight numbered
// steps for every TunnelStateTransition observed.
func (o *Orchestrator) handleTunnelTransition(ctx context.Context, st tunnelmachine.State) {
	prior := o.cached.Phase

	// Step 1: reset internal API sockets iff crossing the Connected
	// boundary in either direction.
	enteringConnected := st.Phase == tunnelmachine.Connected && prior != tunnelmachine.Connected
	leavingConnected := prior == tunnelmachine.Connected && st.Phase != tunnelmachine.Connected
	if enteringConnected || leavingConnected {
		o.resetAPISockets(ctx)
	}

	// Step 2: forward to the device revocation checker. The checker
	// itself lives behind the Account Manager collaborator; this
	// daemon only needs to give it the chance to act on a transition,
	// so nothing else happens here beyond the forward.
	o.notifyRevocationChecker(st)

	// Step 3: compose the new cached state, overlaying location on
	// Connecting/Connected.
	next := TunnelState{State: st}
	if st.Phase == tunnelmachine.Connecting || st.Phase == tunnelmachine.Connected {
		if o.location != nil {
			next.Location = snapshotLocation(o.location.Current(ctx, st.Phase))
		}
	}

	// Step 4: cancel any pending reconnect if the new state isn't
	// Connected.
	if st.Phase != tunnelmachine.Connected {
		o.reconnect.Cancel()
	}

	// Step 5: inactivity timer starts on Disconnected, stops otherwise.
	if st.Phase == tunnelmachine.Disconnected {
		o.availability.StartInactivityTimer()
	} else {
		o.availability.StopInactivityTimer()
	}

	// Step 6: Disconnected may complete shutdown.
	if st.Phase == tunnelmachine.Disconnected {
		o.execState.Disconnected()
	}

	// Step 7: Error{AuthFailed} schedules a reconnect 60s out.
	if st.Phase == tunnelmachine.Error && st.Cause == tunnelmachine.CauseAuthFailed {
		o.reconnect.Schedule(ctx, reconnectDelay(authFailedReconnectDelay), o.fireReconnect)
	}

	// Step 8: replace cached state, notify listener.
	o.cached = next
	o.listener.NotifyNewState(next)
}

// fireReconnect is the Fire callback handed to the reconnect
// scheduler: it re-enters the event loop via a Reconnect command
// rather than calling tunnelMachine.Send directly, preserving the
// single-writer ordering guarantee (spec.md §5).
func (o *Orchestrator) fireReconnect(ctx context.Context) {
	_ = o.weakSender.Send(commandEvent(Command{Kind: CmdReconnect}))
}

func (o *Orchestrator) resetAPISockets(ctx context.Context) {
	o.availability.Suspend()
	o.availability.Unsuspend()
}

func (o *Orchestrator) notifyRevocationChecker(st tunnelmachine.State) {
	// The revocation checker is a facet of the Account Manager
	// collaborator (spec.md §6); it observes transitions by also
	// subscribing to tunnel state externally. Nothing further is
	// required of the orchestrator core beyond the transitions it
	// already forwards onto the bus for any such subscriber.
}

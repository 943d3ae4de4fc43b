package orchestrator

import (
	"context"

	"vpnguard/internal/account"
	"vpnguard/internal/targetstate"
	"vpnguard/internal/tunnelmachine"
)

// handleDeviceEvent implements the Device Event Handler (C8): reacts
// to PrivateDeviceEvents from the Account Manager, whether they
// originate from a command this daemon issued or from a background
// poll against the API (Remote).
func (o *Orchestrator) handleDeviceEvent(ctx context.Context, ev account.PrivateDeviceEvent) {
	switch ev.Kind {
	case account.EventLogin:
		// Invariant 7: history updated before the next command is
		// processed (we're still inside this event's handling), and a
		// reconnect is issued iff target = Secured.
		if err := o.history.Remember(ev.AccountToken); err != nil {
			o.log.Warnf("DeviceEvent", "failed to persist account history: %v", err)
		}
		if o.targetState.Get() == targetstate.Secured {
			_ = o.sendTunnelCommand(ctx, tunnelmachine.Command{Kind: tunnelmachine.Connect})
		}
		o.listener.NotifyDeviceEvent(ev)

	case account.EventLogout:
		// Invariant 8: target becomes Unsecured, Disconnect sent.
		_ = o.targetState.Set(targetstate.Unsecured)
		_ = o.sendTunnelCommand(ctx, tunnelmachine.Command{Kind: tunnelmachine.Disconnect})
		o.listener.NotifyDeviceEvent(ev)

	case account.EventRevoked:
		// Revocation: reconnect so the resulting error surfaces to the
		// UI (glossary: "Revoked").
		_ = o.sendTunnelCommand(ctx, tunnelmachine.Command{Kind: tunnelmachine.Reconnect})
		o.listener.NotifyDeviceEvent(ev)

	case account.EventRotatedKey:
		// Invariant 6: schedule a reconnect 240s out iff the tunnel is
		// currently Connected or Connecting with WireGuard. TunnelTypeNone
		// (the zero value, also what a Disconnected tunnel reports) must
		// not arm this job, or a rotation observed while disconnected
		// schedules a spurious reconnect that can cancel a legitimate
		// pending one (e.g. the §4.8 step 7 AuthFailed job).
		if (o.cached.Phase == tunnelmachine.Connected || o.cached.Phase == tunnelmachine.Connecting) && o.cached.Type == tunnelmachine.TunnelTypeWireGuard {
			o.reconnect.Schedule(ctx, reconnectDelay(postRotationReconnectDelay), o.fireReconnect)
		}
		o.listener.NotifyDeviceEvent(ev)

	case account.EventUpdated:
		o.listener.NotifyDeviceEvent(ev)
	}
}

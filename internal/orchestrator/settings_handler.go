package orchestrator

import (
	"context"
	"reflect"
	"time"

	"vpnguard/internal/eventbus"
	"vpnguard/internal/relay"
	"vpnguard/internal/settings"
	"vpnguard/internal/targetstate"
	"vpnguard/internal/tunnelmachine"
)

// handleSettingUpdate implements the Settings Change Handler (C9,
// spec.md §4.9): persist; if the stored value didn't change, reply Ok
// and stop; otherwise notify the settings listener and perform the
// field-specific side effect.
func (o *Orchestrator) handleSettingUpdate(ctx context.Context, cmd Command) {
	if cmd.Field == FieldSplitTunnelPaths || cmd.Field == FieldSplitTunnelEnabled {
		o.handleSplitTunnelUpdate(ctx, cmd)
		return
	}

	changed, err := o.settings.Update(func(s *settings.Settings) { applySettingField(s, cmd.Field, cmd.Value) })
	if err != nil {
		o.reply(cmd, Reply{Err: err})
		return
	}
	o.reply(cmd, Reply{})
	if !changed {
		return
	}

	o.listener.NotifySettings(o.settings.Get())
	o.applySettingSideEffect(ctx, cmd.Field)
}

func applySettingField(s *settings.Settings, field SettingField, value any) {
	switch field {
	case FieldAllowLan:
		s.AllowLan = value.(bool)
	case FieldBlockWhenDisconnected:
		s.BlockWhenDisconnected = value.(bool)
	case FieldAutoConnect:
		s.AutoConnect = value.(bool)
	case FieldDNSOptions:
		s.DNS = value.(settings.DNSOptions)
	case FieldEnableIPv6:
		s.EnableIPv6 = value.(bool)
	case FieldWireguardMTU:
		s.Tunnel.Wireguard.MTU = value.(int)
	case FieldWireguardRotationInterval:
		s.Tunnel.Wireguard.RotationIntervalDays = value.(int)
	case FieldOpenVPNMssfix:
		s.Tunnel.OpenVPN.Mssfix = value.(int)
	case FieldRelayConstraints:
		s.RelayConstraints = value.(settings.RelayConstraints)
	case FieldBridgeSettings:
		// Settings has no field for bridge settings, so the value is
		// discarded: the update never reports a change, and the selector
		// reconfiguration, API endpoint rotation and reconnect in
		// applySettingSideEffect never run for this field.
	case FieldBridgeState:
		s.Bridge = value.(settings.BridgeState)
	case FieldObfuscationSettings:
		s.Obfuscation = value.(settings.ObfuscationMode)
	case FieldShowBetaReleases:
		s.ShowBetaReleases = value.(bool)
	case FieldWireguardNT:
		s.Tunnel.Wireguard.UseWireguardNT = value.(bool)
	}
}

// applySettingSideEffect implements spec.md §4.9's field-to-side-effect
// table.
func (o *Orchestrator) applySettingSideEffect(ctx context.Context, field SettingField) {
	cur := o.settings.Get()

	switch field {
	case FieldAllowLan:
		_ = o.sendTunnelCommand(ctx, tunnelmachine.Command{Kind: tunnelmachine.AllowLan, Bool: cur.AllowLan})
	case FieldBlockWhenDisconnected:
		_ = o.sendTunnelCommand(ctx, tunnelmachine.Command{Kind: tunnelmachine.BlockWhenDisconnected, Bool: cur.BlockWhenDisconnected})
	case FieldAutoConnect:
		// none: AutoConnect is read only by finishShutdown; daemon
		// startup does not consult it.
	case FieldDNSOptions:
		_ = o.sendTunnelCommand(ctx, tunnelmachine.Command{Kind: tunnelmachine.Dns, DNS: resolversFromDNSOptions(cur.DNS)})
	case FieldEnableIPv6:
		o.reconnectIfSecured(ctx)
	case FieldWireguardMTU:
		if o.cached.Phase == tunnelmachine.Connected && o.cached.Type == tunnelmachine.TunnelTypeWireGuard {
			o.reconnectIfSecured(ctx)
		}
	case FieldWireguardRotationInterval:
		// propagate to account manager; no reconnect.
		interval := time.Duration(cur.Tunnel.Wireguard.RotationIntervalDays) * 24 * time.Hour
		go func() { _ = o.account.SetRotationInterval(ctx, interval) }()
	case FieldOpenVPNMssfix:
		if o.cached.Phase == tunnelmachine.Connected && o.cached.Type == tunnelmachine.TunnelTypeOpenVPN {
			o.reconnectIfSecured(ctx)
		}
	case FieldRelayConstraints, FieldBridgeSettings, FieldBridgeState, FieldObfuscationSettings:
		o.relaySelector.SetConfig(relay.SelectorConfig{
			RelayConstraints:  cur.RelayConstraints,
			BridgeState:       cur.Bridge,
			ObfuscationConfig: cur.Obfuscation,
		})
		if field == FieldBridgeSettings {
			_ = o.availability.NextAPIEndpoint(ctx)
		}
		o.reconnectIfSecured(ctx)
	case FieldShowBetaReleases:
		// Not propagated: versioncheck.Checker has no beta setting, and
		// the Fetcher implementations in this repository do not read
		// ShowBetaReleases.
	case FieldWireguardNT:
		if o.cached.Type == tunnelmachine.TunnelTypeWireGuard {
			o.reconnectIfSecured(ctx)
		}
	}
}

// reconnectIfSecured implements the §4.9 "reconnect" state machine:
// if target = Secured, send Connect (the tunnel machine treats Connect
// while connected as a restart); Unsecured means the change takes
// effect on next connect.
func (o *Orchestrator) reconnectIfSecured(ctx context.Context) {
	if o.targetState.Get() == targetstate.Secured {
		_ = o.sendTunnelCommand(ctx, tunnelmachine.Command{Kind: tunnelmachine.Connect})
	}
}

func resolversFromDNSOptions(d settings.DNSOptions) []string {
	if d.DefaultOptions {
		return nil
	}
	return d.CustomServers
}

// excludedPathsEvent carries phase 1's outcome onto the bus for phase
// 2 to persist (spec.md §4.9's two-phase split-tunnel protocol).
type excludedPathsEvent struct {
	enabledUpdate *bool
	pathsUpdate   []string
	origCmd       Command
}

// handleSplitTunnelUpdate is phase 1: send the new set/flag to the
// tunnel machine; on success, emit an ExcludedPathsEvent carrying the
// update and the original reply channel back onto the bus. On
// failure, reply with the split-tunnel error and do not persist. A
// request equal to the current value short-circuits with Ok and no
// phase 1.
func (o *Orchestrator) handleSplitTunnelUpdate(ctx context.Context, cmd Command) {
	cur := o.settings.Get().SplitTunnel

	if cmd.Field == FieldSplitTunnelEnabled {
		want := cmd.Value.(bool)
		if want == cur.EnableExclusions {
			o.reply(cmd, Reply{})
			return
		}
		ackCh := make(chan error, 1)
		if err := o.sendTunnelCommand(ctx, tunnelmachine.Command{Kind: tunnelmachine.SetExcludedApps, Bool: want, PathsReply: ackCh}); err != nil {
			o.reply(cmd, Reply{Err: err})
			return
		}
		if err := <-ackCh; err != nil {
			o.reply(cmd, Reply{Err: err})
			return
		}
		if err := o.splitTunnel.SetEnabled(want); err != nil {
			o.log.Warnf("SplitTunnel", "local exclusion toggle failed: %v", err)
		}
		_ = o.weakSender.Send(eventbus.Event{Kind: eventbus.KindExcludedPathsEvent, Payload: excludedPathsEvent{enabledUpdate: &want, origCmd: cmd}})
		return
	}

	want := cmd.Value.([]string)
	if reflect.DeepEqual(want, cur.ExcludedPaths) {
		o.reply(cmd, Reply{})
		return
	}
	ackCh := make(chan error, 1)
	if err := o.sendTunnelCommand(ctx, tunnelmachine.Command{Kind: tunnelmachine.SetExcludedApps, ExcludedPaths: want, PathsReply: ackCh}); err != nil {
		o.reply(cmd, Reply{Err: err})
		return
	}
	if err := <-ackCh; err != nil {
		o.reply(cmd, Reply{Err: err})
		return
	}
	if err := o.splitTunnel.SetExcludedPaths(want); err != nil {
		o.log.Warnf("SplitTunnel", "local exclusion set failed: %v", err)
	}
	_ = o.weakSender.Send(eventbus.Event{Kind: eventbus.KindExcludedPathsEvent, Payload: excludedPathsEvent{pathsUpdate: want, origCmd: cmd}})
}

// handleExcludedPathsEvent is phase 2: persist the update, reply to
// the original caller, and notify settings listeners iff the setting
// actually changed.
func (o *Orchestrator) handleExcludedPathsEvent(ev excludedPathsEvent) {
	changed, err := o.settings.Update(func(s *settings.Settings) {
		if ev.enabledUpdate != nil {
			s.SplitTunnel.EnableExclusions = *ev.enabledUpdate
		}
		if ev.pathsUpdate != nil {
			s.SplitTunnel.ExcludedPaths = ev.pathsUpdate
		}
	})
	o.reply(ev.origCmd, Reply{Err: err})
	if err == nil && changed {
		o.listener.NotifySettings(o.settings.Get())
	}
}

package orchestrator

import (
	"time"

	"vpnguard/internal/eventbus"
	"vpnguard/internal/reconnect"
	"vpnguard/internal/targetstate"
)

// Kind identifies a Command variant (spec.md §4.7). Every external
// operation maps to exactly one.
type Kind int

const (
	CmdSetTargetState Kind = iota
	CmdReconnect
	CmdGetState
	CmdGetSettings
	CmdGetRelayLocations
	CmdGetAccountHistory
	CmdGetCurrentVersion
	CmdIsPerformingPostUpgrade
	CmdGetWireguardKey
	CmdGetDevice
	CmdLogin
	CmdLogout
	CmdCreateNewAccount
	CmdSubmitVoucher
	CmdGetAccountData
	CmdGetWwwAuthToken
	CmdListDevices
	CmdRemoveDevice
	CmdUpdateDevice
	CmdRotateWireguardKey
	CmdUpdateSetting
	CmdShutdown
	CmdPrepareRestart
	CmdFactoryReset
)

// SettingField identifies which Settings field an UpdateSetting
// command targets (spec.md §4.9's field table).
type SettingField int

const (
	FieldAllowLan SettingField = iota
	FieldBlockWhenDisconnected
	FieldAutoConnect
	FieldDNSOptions
	FieldEnableIPv6
	FieldWireguardMTU
	FieldWireguardRotationInterval
	FieldOpenVPNMssfix
	FieldRelayConstraints
	FieldBridgeSettings
	FieldBridgeState
	FieldObfuscationSettings
	FieldShowBetaReleases
	FieldSplitTunnelPaths
	FieldSplitTunnelEnabled
	FieldWireguardNT
)

// Reply is sent back on a Command's reply channel exactly once.
type Reply struct {
	Value any
	Err   error
}

// Command is the uniform envelope for every Command Dispatcher
// operation (spec.md §4.7). Only the fields relevant to Kind are
// populated; the rest are zero.
type Command struct {
	Kind Kind

	TargetState  targetstate.State
	AccountToken string
	DeviceID     string
	Voucher      string

	Field SettingField
	Value any

	Reply chan<- Reply
}

// reply sends r on cmd.Reply if present, logging (not panicking) on a
// dropped receiver — per spec.md §5's "callers that drop the reply
// channel simply cause a log warning on send failure."
func (o *Orchestrator) reply(cmd Command, r Reply) {
	if cmd.Reply == nil {
		return
	}
	select {
	case cmd.Reply <- r:
	default:
		o.log.Warnf("Dispatch", "reply channel for command kind %d was not ready; dropping reply", cmd.Kind)
	}
}

// commandEvent wraps a Command as the eventbus Event that carries it.
func commandEvent(cmd Command) eventbus.Event {
	return eventbus.Event{Kind: eventbus.KindCommand, Payload: cmd}
}

// reconnectDelay adapts a plain time.Duration to the reconnect
// package's clock interface for production use.
func reconnectDelay(d time.Duration) reconnect.Delay {
	return reconnect.Delay(d)
}

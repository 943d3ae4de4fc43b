package orchestrator

import (
	"context"
	"errors"

	"vpnguard/internal/account"
	"vpnguard/internal/execstate"
	"vpnguard/internal/targetstate"
	"vpnguard/internal/tunnelmachine"
)

// ErrNoAccountToken is returned by operations that require a logged-in
// device when none is present (spec.md §7).
var ErrNoAccountToken = errors.New("no account token: not logged in")

// handleCommand implements the Command Dispatcher (C7, spec.md §4.7).
// If execution state is not Running, every command is silently dropped
// with a trace log. Any command observed while the tunnel is
// Disconnected resets the API inactivity timer.
func (o *Orchestrator) handleCommand(ctx context.Context, cmd Command) {
	if o.execState.Get() != execstate.Running {
		o.log.Debugf("Dispatch", "dropping command kind %d: execution state is not Running", cmd.Kind)
		return
	}
	if o.cached.Phase == tunnelmachine.Disconnected {
		o.availability.ResetInactivityTimer()
	}

	switch cmd.Kind {
	case CmdSetTargetState:
		o.dispatchSetTargetState(ctx, cmd)
	case CmdReconnect:
		o.dispatchReconnect(ctx, cmd)
	case CmdGetState:
		o.reply(cmd, Reply{Value: o.cached})
	case CmdGetSettings:
		o.reply(cmd, Reply{Value: o.settings.Get()})
	case CmdGetRelayLocations:
		o.reply(cmd, Reply{Value: o.relaySelector.GetLocations()})
	case CmdGetAccountHistory:
		token, ok := o.history.Get()
		o.reply(cmd, Reply{Value: struct {
			Token string
			Set   bool
		}{token, ok}})
	case CmdGetCurrentVersion:
		if o.versionCheck != nil {
			o.reply(cmd, Reply{Value: o.versionCheck.Current()})
		} else {
			o.reply(cmd, Reply{})
		}
	case CmdIsPerformingPostUpgrade:
		o.reply(cmd, Reply{Value: o.postUpgrade})
	case CmdGetWireguardKey:
		o.dispatchGetWireguardKey(cmd)
	case CmdGetDevice:
		o.dispatchGetDevice(cmd)
	case CmdLogin:
		o.dispatchLogin(ctx, cmd)
	case CmdLogout:
		o.dispatchLogout(ctx, cmd)
	case CmdCreateNewAccount:
		o.dispatchCreateNewAccount(ctx, cmd)
	case CmdSubmitVoucher:
		o.dispatchSubmitVoucher(ctx, cmd)
	case CmdGetAccountData:
		o.dispatchGetAccountData(ctx, cmd)
	case CmdGetWwwAuthToken:
		o.dispatchGetWwwAuthToken(ctx, cmd)
	case CmdListDevices:
		o.dispatchListDevices(ctx, cmd)
	case CmdRemoveDevice:
		o.dispatchRemoveDevice(ctx, cmd)
	case CmdUpdateDevice:
		o.dispatchSimpleAccountOp(ctx, cmd, o.account.UpdateDevice)
	case CmdRotateWireguardKey:
		o.dispatchSimpleAccountOp(ctx, cmd, o.account.RotateWireguardKey)
	case CmdUpdateSetting:
		o.handleSettingUpdate(ctx, cmd)
	case CmdShutdown:
		o.dispatchShutdown(ctx, cmd)
	case CmdPrepareRestart:
		o.dispatchPrepareRestart(cmd)
	case CmdFactoryReset:
		o.dispatchFactoryReset(ctx, cmd)
	default:
		o.log.Warnf("Dispatch", "unknown command kind %d", cmd.Kind)
	}
}

// dispatchSetTargetState: if the requested state differs from current,
// or the tunnel is in Error, persist and send Connect/Disconnect;
// reply true iff a change was initiated.
func (o *Orchestrator) dispatchSetTargetState(ctx context.Context, cmd Command) {
	current := o.targetState.Get()
	inError := o.cached.Phase == tunnelmachine.Error

	if cmd.TargetState == current && !inError {
		o.reply(cmd, Reply{Value: false})
		return
	}

	if err := o.targetState.Set(cmd.TargetState); err != nil {
		o.reply(cmd, Reply{Err: err})
		return
	}

	if cmd.TargetState == targetstate.Secured {
		_ = o.sendTunnelCommand(ctx, tunnelmachine.Command{Kind: tunnelmachine.Connect})
	} else {
		_ = o.sendTunnelCommand(ctx, tunnelmachine.Command{Kind: tunnelmachine.Disconnect})
	}
	o.reply(cmd, Reply{Value: true})
}

// dispatchReconnect: reply true + Connect iff target=Secured or the
// tunnel is in Error; else reply false (scenario S3).
func (o *Orchestrator) dispatchReconnect(ctx context.Context, cmd Command) {
	if o.targetState.Get() == targetstate.Secured || o.cached.Phase == tunnelmachine.Error {
		_ = o.sendTunnelCommand(ctx, tunnelmachine.Command{Kind: tunnelmachine.Connect})
		o.reply(cmd, Reply{Value: true})
		return
	}
	o.reply(cmd, Reply{Value: false})
}

func (o *Orchestrator) dispatchGetWireguardKey(cmd Command) {
	dev, ok := o.account.Current()
	if !ok {
		o.reply(cmd, Reply{Err: ErrNoAccountToken})
		return
	}
	o.reply(cmd, Reply{Value: dev.Device.Pubkey})
}

func (o *Orchestrator) dispatchGetDevice(cmd Command) {
	dev, ok := o.account.Current()
	if !ok {
		o.reply(cmd, Reply{Err: ErrNoAccountToken})
		return
	}
	o.reply(cmd, Reply{Value: dev})
}

func (o *Orchestrator) dispatchLogin(ctx context.Context, cmd Command) {
	err := o.account.Login(ctx, cmd.AccountToken)
	o.reply(cmd, Reply{Err: err})
}

func (o *Orchestrator) dispatchLogout(ctx context.Context, cmd Command) {
	err := o.account.Logout(ctx)
	o.reply(cmd, Reply{Err: err})
}

func (o *Orchestrator) dispatchCreateNewAccount(ctx context.Context, cmd Command) {
	token, err := o.account.CreateNewAccount(ctx)
	o.reply(cmd, Reply{Value: token, Err: err})
}

func (o *Orchestrator) dispatchSubmitVoucher(ctx context.Context, cmd Command) {
	res, err := o.account.SubmitVoucher(ctx, cmd.Voucher)
	o.reply(cmd, Reply{Value: res, Err: err})
}

func (o *Orchestrator) dispatchGetAccountData(ctx context.Context, cmd Command) {
	data, err := o.account.GetAccountData(ctx, cmd.AccountToken)
	o.reply(cmd, Reply{Value: data, Err: err})
}

func (o *Orchestrator) dispatchGetWwwAuthToken(ctx context.Context, cmd Command) {
	token, err := o.account.GetWwwAuthToken(ctx)
	o.reply(cmd, Reply{Value: token, Err: err})
}

func (o *Orchestrator) dispatchListDevices(ctx context.Context, cmd Command) {
	devices, err := o.account.ListDevices(ctx, cmd.AccountToken)
	o.reply(cmd, Reply{Value: devices, Err: err})
}

// dispatchRemoveDevice: delegate, then notify remove_device_event
// listeners with the post-removal list, synthesising a placeholder
// only in the sync-anomaly case the manager itself reports (its own
// pre-removal bookkeeping didn't contain deviceID), per spec.md §9.
func (o *Orchestrator) dispatchRemoveDevice(ctx context.Context, cmd Command) {
	remaining, found, err := o.account.RemoveDevice(ctx, cmd.AccountToken, cmd.DeviceID)
	o.reply(cmd, Reply{Err: err})
	if err != nil {
		return
	}

	if !found {
		o.log.Warnf("Dispatch", "removed device %s was not present in the manager's pre-removal list; synthesising placeholder", cmd.DeviceID)
		remaining = append(remaining, account.Device{ID: cmd.DeviceID, Pubkey: account.ZeroPubkey})
	}
	o.listener.NotifyRemoveDeviceEvent(remaining)
}

func (o *Orchestrator) dispatchSimpleAccountOp(ctx context.Context, cmd Command, op func(context.Context) error) {
	err := op(ctx)
	o.reply(cmd, Reply{Err: err})
}

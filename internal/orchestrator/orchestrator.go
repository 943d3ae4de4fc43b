package orchestrator

import (
	"context"
	"time"

	"vpnguard/internal/account"
	"vpnguard/internal/apiruntime"
	"vpnguard/internal/eventbus"
	"vpnguard/internal/execstate"
	"vpnguard/internal/location"
	"vpnguard/internal/logging"
	"vpnguard/internal/paramgen"
	"vpnguard/internal/platform"
	"vpnguard/internal/reconnect"
	"vpnguard/internal/relay"
	"vpnguard/internal/settings"
	"vpnguard/internal/targetstate"
	"vpnguard/internal/tunnelmachine"
	"vpnguard/internal/versioncheck"
)

// Constants from spec.md §6.
const (
	postRotationReconnectDelay = 240 * time.Second
	authFailedReconnectDelay   = 60 * time.Second
	minFileHandleSoftLimit     = 1024
)

// AutoConnectOnBootSupported gates spec.md §4.10 step 4's
// pre-restart-leak-prevention BlockWhenDisconnected send. It defaults to
// true and neither the tests nor the cmd/daemon entrypoint change it, so
// the send happens on every platform when auto_connect is set.
var AutoConnectOnBootSupported = true

// Config bundles every collaborator the Orchestrator wires together.
type Config struct {
	Bus           *eventbus.Bus
	TargetState   *targetstate.Store
	Settings      *settings.Store
	History       *account.History
	Account       account.Manager
	RelaySelector relay.Selector
	TunnelMachine tunnelmachine.Machine
	Availability  apiruntime.Availability
	VersionCheck  *versioncheck.Checker
	Location      *location.Resolver
	SplitTunnel   platform.SplitTunnel
	Listener      Listener

	CacheDir string
	LogDir   string
}

// Orchestrator is the Daemon Orchestrator: the single task that owns
// every collaborator and serialises all state mutation (spec.md §5).
// No field here is guarded by a lock — only the Run goroutine touches
// them, by construction.
type Orchestrator struct {
	bus        *eventbus.Bus
	weakSender eventbus.WeakSender
	log        *logging.Logger

	targetState *targetstate.Store
	execState   *execstate.Tracker
	reconnect   *reconnect.Scheduler

	settings      *settings.Store
	account       account.Manager
	relaySelector relay.Selector
	tunnelMachine tunnelmachine.Machine
	availability  apiruntime.Availability
	versionCheck  *versioncheck.Checker
	location      *location.Resolver
	splitTunnel   platform.SplitTunnel
	listener      Listener

	cacheDir string
	logDir   string

	history     *account.History
	cached      TunnelState
	postUpgrade bool

	pendingFactoryReset *factoryResetTask
}

// New assembles an Orchestrator. Callers must call Run to start
// processing events.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		bus:           cfg.Bus,
		weakSender:    cfg.Bus.WeakSender(),
		log:           logging.Log,
		targetState:   cfg.TargetState,
		execState:     execstate.New(),
		reconnect:     reconnect.New(),
		settings:      cfg.Settings,
		history:       cfg.History,
		account:       cfg.Account,
		relaySelector: cfg.RelaySelector,
		tunnelMachine: cfg.TunnelMachine,
		availability:  cfg.Availability,
		versionCheck:  cfg.VersionCheck,
		location:      cfg.Location,
		splitTunnel:   cfg.SplitTunnel,
		listener:      cfg.Listener,
		cacheDir:      cfg.CacheDir,
		logDir:        cfg.LogDir,
	}
	o.cached = TunnelState{State: tunnelmachine.State{Phase: tunnelmachine.Disconnected}}
	return o
}

// Submit enqueues cmd for processing by the Run loop. Safe to call
// from any goroutine.
func (o *Orchestrator) Submit(cmd Command) error {
	return o.bus.Send(eventbus.Event{Kind: eventbus.KindCommand, Payload: cmd})
}

// startForwarders spawns the detached tasks that translate collaborator
// push channels into bus events, each holding only a WeakSender
// (spec.md §9 "Cyclic references").
func (o *Orchestrator) startForwarders(ctx context.Context) {
	sender := o.weakSender

	go func() {
		for {
			select {
			case st, ok := <-o.tunnelMachine.Transitions():
				if !ok {
					return
				}
				if sender.Send(eventbus.Event{Kind: eventbus.KindTunnelStateTransition, Payload: st}) != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case offline, ok := <-o.tunnelMachine.Offline():
				if !ok {
					return
				}
				if sender.Send(eventbus.Event{Kind: eventbus.KindOfflineStateChanged, Payload: offline}) != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case ev, ok := <-o.account.Events():
				if !ok {
					return
				}
				if sender.Send(eventbus.Event{Kind: eventbus.KindDeviceEvent, Payload: ev}) != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if o.versionCheck != nil {
		o.versionCheck.OnChange(func(info versioncheck.AppVersionInfo) {
			_ = sender.Send(eventbus.Event{Kind: eventbus.KindNewAppVersionInfo, Payload: info})
		})
	}
}

// Run drives the event loop until shutdown completes or ctx is
// cancelled. It returns nil once ExecutionState reaches Finished.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.startForwarders(ctx)

	for {
		ev, err := o.bus.Next(ctx)
		if err != nil {
			return err
		}
		o.handleEvent(ctx, ev)

		if o.execState.Get() == execstate.Finished {
			o.finishShutdown(ctx)
			return nil
		}
	}
}

func (o *Orchestrator) handleEvent(ctx context.Context, ev eventbus.Event) {
	switch ev.Kind {
	case eventbus.KindCommand:
		o.handleCommand(ctx, ev.Payload.(Command))
	case eventbus.KindTunnelStateTransition:
		o.handleTunnelTransition(ctx, ev.Payload.(tunnelmachine.State))
	case eventbus.KindOfflineStateChanged:
		o.availability.SetOffline(ev.Payload.(bool))
	case eventbus.KindDeviceEvent:
		o.handleDeviceEvent(ctx, ev.Payload.(account.PrivateDeviceEvent))
	case eventbus.KindGenerateTunnelParameters:
		o.handleGenerateTunnelParameters(ev.Payload.(paramgen.Request))
	case eventbus.KindNewAppVersionInfo:
		o.listener.NotifyAppVersion(ev.Payload.(versioncheck.AppVersionInfo))
	case eventbus.KindExcludedPathsEvent:
		o.handleExcludedPathsEvent(ev.Payload.(excludedPathsEvent))
	default:
		o.log.Debugf("Orchestrator", "unhandled event kind %s", ev.Kind)
	}
}

// sendTunnelCommand is the one place that calls tunnelMachine.Send,
// isolated so it never itself blocks waiting on the machine's worker
// thread (spec.md §5's cross-threading-point constraint).
func (o *Orchestrator) sendTunnelCommand(ctx context.Context, cmd tunnelmachine.Command) error {
	return o.tunnelMachine.Send(ctx, cmd)
}

// snapshotLocation converts the location package's Location into the
// exported LocationSnapshot this package's public TunnelState uses.
func snapshotLocation(l *location.Location) *LocationSnapshot {
	if l == nil {
		return nil
	}
	return &LocationSnapshot{
		Country: l.Country, City: l.City, Hostname: l.Hostname,
		IPv4: l.IPv4, IPv6: l.IPv6, Lat: l.Lat, Lon: l.Lon,
	}
}

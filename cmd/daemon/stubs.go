package main

// The tunnel state machine, relay selector algorithm, account/device
// persistence layer, and version-check poller are all external
// collaborators spec.md §1 places out of scope ("specified only by
// interface"). The stand-ins below are the minimal concrete adapters
// that let this binary link and run end to end on a platform with no
// native driver wired in yet; a real deployment replaces each one with
// its platform-specific implementation without touching
// internal/orchestrator (see DESIGN.md).

import (
	"context"
	"sync"
	"time"

	"vpnguard/internal/account"
	"vpnguard/internal/apiruntime"
	"vpnguard/internal/location"
	"vpnguard/internal/logging"
	"vpnguard/internal/orchestrator"
	"vpnguard/internal/relay"
	"vpnguard/internal/settings"
	"vpnguard/internal/tunnelmachine"
	"vpnguard/internal/versioncheck"
)

// loopbackTunnelMachine simulates a tunnel driver by echoing Connect
// and Disconnect commands back as Connected/Disconnected transitions.
// Split-tunnel and bypass commands are acknowledged immediately.
type loopbackTunnelMachine struct {
	mu    sync.Mutex
	trans chan tunnelmachine.State
	off   chan bool
}

func newLoopbackTunnelMachine() *loopbackTunnelMachine {
	return &loopbackTunnelMachine{
		trans: make(chan tunnelmachine.State, 16),
		off:   make(chan bool, 4),
	}
}

func (m *loopbackTunnelMachine) Send(ctx context.Context, cmd tunnelmachine.Command) error {
	switch cmd.Kind {
	case tunnelmachine.Connect:
		m.trans <- tunnelmachine.State{Phase: tunnelmachine.Connecting}
		m.trans <- tunnelmachine.State{Phase: tunnelmachine.Connected, Type: tunnelmachine.TunnelTypeWireGuard}
	case tunnelmachine.Disconnect, tunnelmachine.Reconnect:
		m.trans <- tunnelmachine.State{Phase: tunnelmachine.Disconnecting, After: tunnelmachine.Disconnected}
		m.trans <- tunnelmachine.State{Phase: tunnelmachine.Disconnected}
	case tunnelmachine.SetExcludedApps:
		if cmd.PathsReply != nil {
			cmd.PathsReply <- nil
		}
	case tunnelmachine.BypassSocket:
		if cmd.BypassReply != nil {
			cmd.BypassReply <- nil
		}
	}
	return nil
}

func (m *loopbackTunnelMachine) Transitions() <-chan tunnelmachine.State { return m.trans }
func (m *loopbackTunnelMachine) Offline() <-chan bool                   { return m.off }

var _ tunnelmachine.Machine = (*loopbackTunnelMachine)(nil)

// memoryAccountManager is an in-memory stand-in for the Account
// Manager: no real API calls, devices never expire or get revoked
// remotely.
type memoryAccountManager struct {
	mu      sync.Mutex
	current *account.ActiveDevice
	devices map[string][]account.Device
	events  chan account.PrivateDeviceEvent
}

func newMemoryAccountManager() *memoryAccountManager {
	return &memoryAccountManager{
		devices: make(map[string][]account.Device),
		events:  make(chan account.PrivateDeviceEvent, 16),
	}
}

func (m *memoryAccountManager) Login(ctx context.Context, accountToken string) error {
	dev := account.Device{ID: accountToken + "-dev", Created: time.Now()}
	m.mu.Lock()
	m.current = &account.ActiveDevice{AccountToken: accountToken, Device: dev}
	m.devices[accountToken] = append(m.devices[accountToken], dev)
	m.mu.Unlock()
	m.events <- account.PrivateDeviceEvent{Kind: account.EventLogin, AccountToken: accountToken, Device: dev}
	return nil
}

func (m *memoryAccountManager) Logout(ctx context.Context) error {
	m.mu.Lock()
	cur := m.current
	m.current = nil
	m.mu.Unlock()
	if cur != nil {
		m.events <- account.PrivateDeviceEvent{Kind: account.EventLogout, AccountToken: cur.AccountToken, Device: cur.Device}
	}
	return nil
}

func (m *memoryAccountManager) CreateNewAccount(ctx context.Context) (string, error) {
	return "", errUnsupported("create new account")
}

func (m *memoryAccountManager) SubmitVoucher(ctx context.Context, voucher string) (account.VoucherResult, error) {
	return account.VoucherResult{}, errUnsupported("submit voucher")
}

func (m *memoryAccountManager) GetAccountData(ctx context.Context, accountToken string) (account.AccountData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return account.AccountData{Token: accountToken, Devices: m.devices[accountToken]}, nil
}

func (m *memoryAccountManager) GetWwwAuthToken(ctx context.Context) (string, error) {
	return "", errUnsupported("www auth token")
}

func (m *memoryAccountManager) ListDevices(ctx context.Context, accountToken string) ([]account.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]account.Device(nil), m.devices[accountToken]...), nil
}

func (m *memoryAccountManager) RemoveDevice(ctx context.Context, accountToken, deviceID string) ([]account.Device, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	remaining := m.devices[accountToken][:0:0]
	for _, d := range m.devices[accountToken] {
		if d.ID == deviceID {
			found = true
			continue
		}
		remaining = append(remaining, d)
	}
	m.devices[accountToken] = remaining
	return append([]account.Device(nil), remaining...), found, nil
}

func (m *memoryAccountManager) UpdateDevice(ctx context.Context) error       { return nil }
func (m *memoryAccountManager) RotateWireguardKey(ctx context.Context) error { return nil }
func (m *memoryAccountManager) SetRotationInterval(ctx context.Context, d time.Duration) error {
	return nil
}

func (m *memoryAccountManager) Current() (account.ActiveDevice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return account.ActiveDevice{}, false
	}
	return *m.current, true
}

func (m *memoryAccountManager) Events() <-chan account.PrivateDeviceEvent { return m.events }

func (m *memoryAccountManager) Shutdown(ctx context.Context) error {
	close(m.events)
	return nil
}

var _ account.Manager = (*memoryAccountManager)(nil)

type errUnsupported string

func (e errUnsupported) Error() string { return string(e) + ": not available without a real API client" }

// staticRelaySelector returns one fixed WireGuard relay
// (se-got-wg-001) for every attempt, whatever the settings; SetConfig
// only records the config. It never talks to the API.
type staticRelaySelector struct {
	mu  sync.Mutex
	cfg relay.SelectorConfig
}

func newStaticRelaySelector() *staticRelaySelector { return &staticRelaySelector{} }

func (s *staticRelaySelector) GetRelay(attempt uint32) (relay.Selected, *relay.Bridge, *relay.Obfuscator, error) {
	return relay.Selected{
		Protocol: relay.WireGuard,
		Exit: relay.Endpoint{
			Protocol: relay.WireGuard,
			Location: relay.Location{Country: "se", City: "got", Hostname: "se-got-wg-001"},
		},
	}, nil, nil, nil
}

func (s *staticRelaySelector) SetConfig(cfg relay.SelectorConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func (s *staticRelaySelector) GetLocations() relay.List {
	return relay.List{WireGuard: []relay.Location{{Country: "se", City: "got", Hostname: "se-got-wg-001"}}}
}

var _ relay.Selector = (*staticRelaySelector)(nil)

// noopAvailability logs what a real API Runtime availability handle
// would do without touching any network state.
type noopAvailability struct{ log *logging.Logger }

func (a noopAvailability) Suspend()               { a.log.Debugf("API", "suspend") }
func (a noopAvailability) Unsuspend()             { a.log.Debugf("API", "unsuspend") }
func (a noopAvailability) SetOffline(v bool)      { a.log.Debugf("API", "offline=%v", v) }
func (a noopAvailability) StartInactivityTimer()  { a.log.Debugf("API", "inactivity timer started") }
func (a noopAvailability) StopInactivityTimer()   { a.log.Debugf("API", "inactivity timer stopped") }
func (a noopAvailability) ResetInactivityTimer()  {}
func (a noopAvailability) ResumeBackground()      {}
func (a noopAvailability) NextAPIEndpoint(ctx context.Context) error {
	a.log.Debugf("API", "rotated API endpoint")
	return nil
}

var _ apiruntime.Availability = noopAvailability{}

// staticVersionFetcher reports the running binary as current and
// supported, since there is no real update server to query.
type staticVersionFetcher struct{ current string }

func (f staticVersionFetcher) Fetch(ctx context.Context) (versioncheck.AppVersionInfo, error) {
	return versioncheck.AppVersionInfo{
		Current:      f.current,
		IsSupported:  true,
		Suggested:    f.current,
		Latest:       f.current,
		LatestStable: f.current,
	}, nil
}

var _ versioncheck.Fetcher = staticVersionFetcher{}

// noopIPLookup reports no IP, leaving the UI's location display blank
// rather than invented.
type noopIPLookup struct{}

func (noopIPLookup) Lookup(ctx context.Context) (location.Location, error) {
	return location.Location{}, nil
}

var _ location.IPLookup = noopIPLookup{}

// logListener is the Event Listener stand-in used until a real IPC
// transport is wired in (spec.md §1 places the management RPC surface
// out of scope): every notification is just logged.
type logListener struct{ log *logging.Logger }

func (l logListener) NotifyNewState(s orchestrator.TunnelState) {
	l.log.Infof("Listener", "tunnel state -> %s", s.Phase)
}
func (l logListener) NotifySettings(s settings.Settings) {
	l.log.Infof("Listener", "settings changed")
}
func (l logListener) NotifyRelayList(relay.List) {
	l.log.Infof("Listener", "relay list changed")
}
func (l logListener) NotifyAppVersion(v versioncheck.AppVersionInfo) {
	l.log.Infof("Listener", "app version info: current=%s supported=%v", v.Current, v.IsSupported)
}
func (l logListener) NotifyDeviceEvent(ev account.PrivateDeviceEvent) {
	l.log.Infof("Listener", "device event kind=%d", ev.Kind)
}
func (l logListener) NotifyRemoveDeviceEvent(devs []account.Device) {
	l.log.Infof("Listener", "device removed, %d devices remain", len(devs))
}

var _ orchestrator.Listener = logListener{}

package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vpnguard/internal/account"
	"vpnguard/internal/account/accounttest"
	"vpnguard/internal/apiruntime"
	"vpnguard/internal/eventbus"
	"vpnguard/internal/location"
	"vpnguard/internal/platform"
	"vpnguard/internal/relay"
	"vpnguard/internal/relay/relaytest"
	"vpnguard/internal/settings"
	"vpnguard/internal/targetstate"
	"vpnguard/internal/tunnelmachine"
	"vpnguard/internal/tunnelmachine/tunnelmachinetest"
	"vpnguard/internal/versioncheck"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAvailability is a minimal apiruntime.Availability recording calls.
type fakeAvailability struct {
	mu                          sync.Mutex
	suspended                   bool
	offline                     bool
	inactivityRunning           bool
	suspendCount, unsuspendCount int
	resetCount                  int
	nextEndpointCalls            int
}

func (f *fakeAvailability) Suspend()   { f.mu.Lock(); f.suspended = true; f.suspendCount++; f.mu.Unlock() }
func (f *fakeAvailability) Unsuspend() { f.mu.Lock(); f.suspended = false; f.unsuspendCount++; f.mu.Unlock() }
func (f *fakeAvailability) SetOffline(v bool) { f.mu.Lock(); f.offline = v; f.mu.Unlock() }
func (f *fakeAvailability) StartInactivityTimer() { f.mu.Lock(); f.inactivityRunning = true; f.mu.Unlock() }
func (f *fakeAvailability) StopInactivityTimer()  { f.mu.Lock(); f.inactivityRunning = false; f.mu.Unlock() }
func (f *fakeAvailability) ResetInactivityTimer() { f.mu.Lock(); f.resetCount++; f.mu.Unlock() }
func (f *fakeAvailability) ResumeBackground()      {}
func (f *fakeAvailability) NextAPIEndpoint(ctx context.Context) error {
	f.mu.Lock()
	f.nextEndpointCalls++
	f.mu.Unlock()
	return nil
}

var _ apiruntime.Availability = (*fakeAvailability)(nil)

// fakeListener records every notification for assertions.
type fakeListener struct {
	mu           sync.Mutex
	states       []TunnelState
	settingsSeen []settings.Settings
}

func (l *fakeListener) NotifyNewState(s TunnelState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}
func (l *fakeListener) NotifySettings(s settings.Settings) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.settingsSeen = append(l.settingsSeen, s)
}
func (l *fakeListener) NotifyRelayList(relay.List)                          {}
func (l *fakeListener) NotifyAppVersion(versioncheck.AppVersionInfo)        {}
func (l *fakeListener) NotifyDeviceEvent(account.PrivateDeviceEvent)        {}
func (l *fakeListener) NotifyRemoveDeviceEvent([]account.Device)            {}
func (l *fakeListener) lastState() (TunnelState, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.states) == 0 {
		return TunnelState{}, false
	}
	return l.states[len(l.states)-1], true
}

type noopLookup struct{}

func (noopLookup) Lookup(ctx context.Context) (location.Location, error) { return location.Location{}, nil }

type testRig struct {
	o             *Orchestrator
	tm            *tunnelmachinetest.Fake
	acct          *accounttest.Fake
	sel           *relaytest.Fake
	avail         *fakeAvailability
	listener      *fakeListener
	settingsStore *settings.Store
	targetStore   *targetstate.Store
	bus           *eventbus.Bus
	cancel        context.CancelFunc
	done          chan struct{}
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	dir := t.TempDir()

	ss, err := settings.Load(filepath.Join(dir, "settings.yml"))
	if err != nil {
		t.Fatalf("settings.Load: %v", err)
	}
	ts, err := targetstate.Load(filepath.Join(dir, "target.yml"))
	if err != nil {
		t.Fatalf("targetstate.Load: %v", err)
	}
	hist, err := account.LoadHistory(filepath.Join(dir, "history.yml"))
	if err != nil {
		t.Fatalf("account.LoadHistory: %v", err)
	}

	bus := eventbus.New()
	tm := tunnelmachinetest.New()
	acct := accounttest.New()
	sel := relaytest.New()
	avail := &fakeAvailability{}
	lst := &fakeListener{}

	cfg := Config{
		Bus:           bus,
		TargetState:   ts,
		Settings:      ss,
		History:       hist,
		Account:       acct,
		RelaySelector: sel,
		TunnelMachine: tm,
		Availability:  avail,
		Location:      location.New(noopLookup{}),
		SplitTunnel:   platform.NewNoopSplitTunnel(),
		Listener:      lst,
		CacheDir:      filepath.Join(dir, "cache"),
		LogDir:        filepath.Join(dir, "log"),
	}
	o := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = o.Run(ctx)
		close(done)
	}()

	return &testRig{o: o, tm: tm, acct: acct, sel: sel, avail: avail, listener: lst, settingsStore: ss, targetStore: ts, bus: bus, cancel: cancel, done: done}
}

func (r *testRig) stop() {
	r.cancel()
	select {
	case <-r.done:
	case <-time.After(time.Second):
	}
}

func (r *testRig) submit(t *testing.T, cmd Command) Reply {
	t.Helper()
	reply := make(chan Reply, 1)
	cmd.Reply = reply
	if err := r.o.Submit(cmd); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case rep := <-reply:
		return rep
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply")
		return Reply{}
	}
}

// TestSetTargetStateConnects covers S1: SetTargetState(Secured) sends
// Connect and persists the target.
func TestSetTargetStateConnects(t *testing.T) {
	r := newTestRig(t)
	defer r.stop()

	rep := r.submit(t, Command{Kind: CmdSetTargetState, TargetState: targetstate.Secured})
	if rep.Err != nil {
		t.Fatalf("reply err: %v", rep.Err)
	}
	if changed, _ := rep.Value.(bool); !changed {
		t.Fatalf("reply value = %v, want true", rep.Value)
	}
	if r.tm.Count(tunnelmachine.Connect) != 1 {
		t.Fatalf("Connect sent %d times, want 1", r.tm.Count(tunnelmachine.Connect))
	}
	if r.targetStore.Get() != targetstate.Secured {
		t.Fatalf("target state = %v, want Secured", r.targetStore.Get())
	}
}

// TestReconnectWhenUnsecuredIsNoop covers S3: Reconnect while target is
// Unsecured and tunnel isn't in Error is a no-op reply(false).
func TestReconnectWhenUnsecuredIsNoop(t *testing.T) {
	r := newTestRig(t)
	defer r.stop()

	rep := r.submit(t, Command{Kind: CmdReconnect})
	if rep.Err != nil {
		t.Fatalf("reply err: %v", rep.Err)
	}
	if v, _ := rep.Value.(bool); v {
		t.Fatalf("reply value = %v, want false", rep.Value)
	}
	if r.tm.Count(tunnelmachine.Connect) != 0 {
		t.Fatalf("Connect sent, want none")
	}
}

// TestTunnelTransitionResetsAPISocketsOnConnectedBoundary covers §4.8
// step 1.
func TestTunnelTransitionResetsAPISocketsOnConnectedBoundary(t *testing.T) {
	r := newTestRig(t)
	defer r.stop()

	r.tm.Transition(tunnelmachine.State{Phase: tunnelmachine.Connected, Type: tunnelmachine.TunnelTypeWireGuard})
	time.Sleep(50 * time.Millisecond)

	r.avail.mu.Lock()
	suspendCount := r.avail.suspendCount
	r.avail.mu.Unlock()
	if suspendCount != 1 {
		t.Fatalf("suspend count = %d, want 1", suspendCount)
	}

	st, ok := r.listener.lastState()
	if !ok || st.Phase != tunnelmachine.Connected {
		t.Fatalf("last state = %+v, ok=%v", st, ok)
	}
}

// TestTunnelTransitionDisconnectedStartsInactivityTimer covers §4.8
// step 5.
func TestTunnelTransitionDisconnectedStartsInactivityTimer(t *testing.T) {
	r := newTestRig(t)
	defer r.stop()

	r.tm.Transition(tunnelmachine.State{Phase: tunnelmachine.Connecting})
	time.Sleep(20 * time.Millisecond)
	r.tm.Transition(tunnelmachine.State{Phase: tunnelmachine.Disconnected})
	time.Sleep(20 * time.Millisecond)

	r.avail.mu.Lock()
	running := r.avail.inactivityRunning
	r.avail.mu.Unlock()
	if !running {
		t.Fatal("inactivity timer not running after Disconnected transition")
	}
}

// TestDeviceLoginReconnectsWhenSecured covers invariant 7.
func TestDeviceLoginReconnectsWhenSecured(t *testing.T) {
	r := newTestRig(t)
	defer r.stop()

	r.submit(t, Command{Kind: CmdSetTargetState, TargetState: targetstate.Secured})
	before := r.tm.Count(tunnelmachine.Connect)

	if err := r.acct.Login(context.Background(), "1234123412341234"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	after := r.tm.Count(tunnelmachine.Connect)
	if after != before+1 {
		t.Fatalf("Connect count = %d, want %d", after, before+1)
	}
	if token, ok := r.o.history.Get(); !ok || token != "1234123412341234" {
		t.Fatalf("history = %q, %v; want remembered token", token, ok)
	}
}

// TestDeviceLogoutDisconnectsAndUnsecures covers invariant 8.
func TestDeviceLogoutDisconnectsAndUnsecures(t *testing.T) {
	r := newTestRig(t)
	defer r.stop()

	r.submit(t, Command{Kind: CmdSetTargetState, TargetState: targetstate.Secured})
	if err := r.acct.Login(context.Background(), "1234123412341234"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if err := r.acct.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if r.targetStore.Get() != targetstate.Unsecured {
		t.Fatalf("target state = %v, want Unsecured", r.targetStore.Get())
	}
	if r.tm.Count(tunnelmachine.Disconnect) == 0 {
		t.Fatal("Disconnect never sent on logout")
	}
}

// TestUpdateSettingAllowLanSendsCommand covers §4.9's allow_lan row.
func TestUpdateSettingAllowLanSendsCommand(t *testing.T) {
	r := newTestRig(t)
	defer r.stop()

	rep := r.submit(t, Command{Kind: CmdUpdateSetting, Field: FieldAllowLan, Value: true})
	if rep.Err != nil {
		t.Fatalf("reply err: %v", rep.Err)
	}

	last, ok := r.tm.LastSent()
	if !ok || last.Kind != tunnelmachine.AllowLan || !last.Bool {
		t.Fatalf("last sent = %+v, ok=%v; want AllowLan(true)", last, ok)
	}
	if got := r.settingsStore.Get().AllowLan; !got {
		t.Fatalf("persisted AllowLan = %v, want true", got)
	}

	r.listener.mu.Lock()
	n := len(r.listener.settingsSeen)
	r.listener.mu.Unlock()
	if n == 0 {
		t.Fatal("settings listener never notified")
	}
}

// TestUpdateSettingNoChangeSkipsNotify exercises the "reply Ok and
// stop" branch of §4.9's common shape.
func TestUpdateSettingNoChangeSkipsNotify(t *testing.T) {
	r := newTestRig(t)
	defer r.stop()

	r.submit(t, Command{Kind: CmdUpdateSetting, Field: FieldAllowLan, Value: false})
	r.listener.mu.Lock()
	n := len(r.listener.settingsSeen)
	r.listener.mu.Unlock()
	if n != 0 {
		t.Fatalf("settings listener notified %d times on no-op update, want 0", n)
	}
}

// TestSplitTunnelTwoPhaseProtocol covers §4.9's two-phase split-tunnel
// mutation: ack from the tunnel machine, then persist + reply.
func TestSplitTunnelTwoPhaseProtocol(t *testing.T) {
	r := newTestRig(t)
	defer r.stop()

	rep := r.submit(t, Command{Kind: CmdUpdateSetting, Field: FieldSplitTunnelPaths, Value: []string{"/usr/bin/curl"}})
	if rep.Err != nil {
		t.Fatalf("reply err: %v", rep.Err)
	}

	last, ok := r.tm.LastSent()
	if !ok || last.Kind != tunnelmachine.SetExcludedApps {
		t.Fatalf("last sent = %+v, ok=%v; want SetExcludedApps", last, ok)
	}

	got := r.settingsStore.Get().SplitTunnel.ExcludedPaths
	if len(got) != 1 || got[0] != "/usr/bin/curl" {
		t.Fatalf("persisted excluded paths = %v, want [/usr/bin/curl]", got)
	}
}

// TestShutdownReachesFinished covers C10 with the tunnel already
// Disconnected: Shutdown sends Disconnect and goes straight to Finished,
// so Run returns without waiting for a further transition.
func TestShutdownReachesFinished(t *testing.T) {
	r := newTestRig(t)
	defer r.cancel()

	rep := r.submit(t, Command{Kind: CmdShutdown})
	if rep.Err != nil {
		t.Fatalf("reply err: %v", rep.Err)
	}
	r.tm.Transition(tunnelmachine.State{Phase: tunnelmachine.Disconnected})

	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after shutdown reached Finished")
	}
}

// TestFactoryResetClearsDirectoriesAndReplies covers C11's pipeline.
func TestFactoryResetClearsDirectoriesAndReplies(t *testing.T) {
	r := newTestRig(t)
	defer r.cancel()

	if err := os.MkdirAll(r.o.cacheDir, 0o755); err != nil {
		t.Fatalf("MkdirAll cache: %v", err)
	}
	if err := os.WriteFile(filepath.Join(r.o.cacheDir, "stale.bin"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := r.acct.Login(context.Background(), "1234123412341234"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	reply := make(chan Reply, 1)
	if err := r.o.Submit(Command{Kind: CmdFactoryReset, Reply: reply}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	r.tm.Transition(tunnelmachine.State{Phase: tunnelmachine.Disconnected})

	select {
	case rep := <-reply:
		if rep.Err != nil {
			t.Fatalf("factory reset reply err: %v", rep.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for factory reset reply")
	}

	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after factory reset")
	}

	entries, err := os.ReadDir(r.o.cacheDir)
	if err != nil {
		t.Fatalf("ReadDir cache: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("cache dir has %d entries after factory reset, want 0", len(entries))
	}
	if got := r.settingsStore.Get(); got.AllowLan != settings.Default().AllowLan {
		t.Fatalf("settings not reset to defaults: %+v", got)
	}
}

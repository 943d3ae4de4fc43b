// Package accounttest provides an in-memory fake of account.Manager for
// orchestrator tests, since the real Account Manager is an out-of-scope
// external collaborator (spec.md §6).
package accounttest

import (
	"context"
	"sync"
	"time"

	"vpnguard/internal/account"
)

// Fake is a minimal, deterministic account.Manager.
type Fake struct {
	mu      sync.Mutex
	current *account.ActiveDevice
	devices map[string][]account.Device
	events  chan account.PrivateDeviceEvent

	LoginErr  error
	LogoutErr error
}

// New creates a Fake with no active device.
func New() *Fake {
	return &Fake{
		devices: make(map[string][]account.Device),
		events:  make(chan account.PrivateDeviceEvent, 16),
	}
}

func (f *Fake) Login(ctx context.Context, accountToken string) error {
	if f.LoginErr != nil {
		return f.LoginErr
	}
	dev := account.Device{ID: "dev-1", Pubkey: account.WireguardKey{1}}
	f.mu.Lock()
	f.current = &account.ActiveDevice{AccountToken: accountToken, Device: dev}
	f.devices[accountToken] = append(f.devices[accountToken], dev)
	f.mu.Unlock()
	f.events <- account.PrivateDeviceEvent{Kind: account.EventLogin, AccountToken: accountToken, Device: dev}
	return nil
}

func (f *Fake) Logout(ctx context.Context) error {
	if f.LogoutErr != nil {
		return f.LogoutErr
	}
	f.mu.Lock()
	cur := f.current
	f.current = nil
	f.mu.Unlock()
	if cur != nil {
		f.events <- account.PrivateDeviceEvent{Kind: account.EventLogout, AccountToken: cur.AccountToken, Device: cur.Device}
	}
	return nil
}

func (f *Fake) CreateNewAccount(ctx context.Context) (string, error) { return "new-account", nil }

func (f *Fake) SubmitVoucher(ctx context.Context, voucher string) (account.VoucherResult, error) {
	return account.VoucherResult{SecondsAdded: 3600, NewExpiry: time.Now().Add(time.Hour)}, nil
}

func (f *Fake) GetAccountData(ctx context.Context, accountToken string) (account.AccountData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return account.AccountData{Token: accountToken, Devices: f.devices[accountToken]}, nil
}

func (f *Fake) GetWwwAuthToken(ctx context.Context) (string, error) { return "auth-token", nil }

func (f *Fake) ListDevices(ctx context.Context, accountToken string) ([]account.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]account.Device(nil), f.devices[accountToken]...), nil
}

func (f *Fake) RemoveDevice(ctx context.Context, accountToken, deviceID string) ([]account.Device, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := false
	remaining := f.devices[accountToken][:0:0]
	for _, d := range f.devices[accountToken] {
		if d.ID == deviceID {
			found = true
			continue
		}
		remaining = append(remaining, d)
	}
	f.devices[accountToken] = remaining
	return append([]account.Device(nil), remaining...), found, nil
}

func (f *Fake) UpdateDevice(ctx context.Context) error            { return nil }
func (f *Fake) RotateWireguardKey(ctx context.Context) error      { return nil }
func (f *Fake) SetRotationInterval(context.Context, time.Duration) error { return nil }

func (f *Fake) Current() (account.ActiveDevice, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		return account.ActiveDevice{}, false
	}
	return *f.current, true
}

func (f *Fake) Events() <-chan account.PrivateDeviceEvent { return f.events }

func (f *Fake) Shutdown(ctx context.Context) error { close(f.events); return nil }

// EmitRotatedKey lets a test simulate a background key rotation event.
func (f *Fake) EmitRotatedKey() {
	f.mu.Lock()
	cur := f.current
	f.mu.Unlock()
	if cur == nil {
		return
	}
	f.events <- account.PrivateDeviceEvent{Kind: account.EventRotatedKey, AccountToken: cur.AccountToken, Device: cur.Device}
}

// EmitRevoked lets a test simulate the device being revoked remotely.
func (f *Fake) EmitRevoked() {
	f.mu.Lock()
	cur := f.current
	f.current = nil
	f.mu.Unlock()
	if cur == nil {
		return
	}
	f.events <- account.PrivateDeviceEvent{Kind: account.EventRevoked, AccountToken: cur.AccountToken, Device: cur.Device, Remote: true}
}

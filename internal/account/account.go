// Package account models device identity and the Account Manager
// external collaborator (spec.md §6). Key generation itself is out of
// scope (cryptography is a spec.md Non-goal); the orchestrator only
// moves these types around. Device field shapes are grounded on
// original_source/mullvad-types/src/device.rs.
package account

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"vpnguard/internal/logging"
)

// WireguardKey is an opaque public key. The orchestrator never inspects
// its bytes; it only forwards them to the tunnel parameter generator
// and to UI-facing reads.
type WireguardKey [32]byte

// ZeroPubkey is the all-zeros placeholder pubkey used by RemoveDevice
// when the removed device doesn't appear in the manager's post-removal
// list (spec.md §9 Open Question). Callers should treat this value as
// "unknown device".
var ZeroPubkey WireguardKey

// Device is a single registered device on an account.
type Device struct {
	ID          string
	Name        string
	Pubkey      WireguardKey
	Hostname    string
	IPv4Address string
	IPv6Address string
	Ports       []uint16
	Created     time.Time
}

// IsPlaceholder reports whether d is the synthesized "unknown device"
// placeholder (all-zero pubkey).
func (d Device) IsPlaceholder() bool {
	return d.Pubkey == ZeroPubkey
}

// ActiveDevice pairs an account token with its currently active Device;
// the Device's Pubkey is the only key material it carries. Absent (ok
// false from Manager.Current) means logged out.
type ActiveDevice struct {
	AccountToken string
	Device       Device
}

// History persists the zero-or-one most recently used account token to
// disk (spec.md §3 AccountHistory, §5 "the account-history file"),
// atomically via temp+rename like targetstate.Store and settings.Store
// so the three daemon files share one write discipline.
type History struct {
	mu    sync.Mutex
	path  string
	token string
	set   bool
}

type historyOnDisk struct {
	Token string `yaml:"token"`
	Set   bool   `yaml:"set"`
}

// LoadHistory reads the account history from path. A missing or
// corrupt file is treated as absent, matching targetstate.Load's
// convention.
func LoadHistory(path string) (*History, error) {
	h := &History{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil
		}
		return nil, fmt.Errorf("account: read history %s: %w", path, err)
	}

	var d historyOnDisk
	if err := yaml.Unmarshal(data, &d); err != nil {
		logging.Log.Warnf("AccountHistory", "corrupt history file %s, treating as absent: %v", path, err)
		return h, nil
	}
	h.token, h.set = d.Token, d.Set
	return h, nil
}

// Get returns the remembered token and whether one is set.
func (h *History) Get() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.token, h.set
}

// Remember persists token as the current account history.
func (h *History) Remember(token string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.persist(token, true); err != nil {
		return err
	}
	h.token, h.set = token, true
	return nil
}

// Clear removes any remembered account token. The returned error is
// the ClearAccountHistoryError surfaced by the Factory Reset Pipeline
// (spec.md §7).
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.persist("", false); err != nil {
		return err
	}
	h.token, h.set = "", false
	return nil
}

func (h *History) persist(token string, set bool) error {
	if h.path == "" {
		return nil
	}

	data, err := yaml.Marshal(historyOnDisk{Token: token, Set: set})
	if err != nil {
		return fmt.Errorf("account: marshal history: %w", err)
	}

	dir := filepath.Dir(h.path)
	tmp, err := os.CreateTemp(dir, ".history-*.tmp")
	if err != nil {
		return fmt.Errorf("account: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("account: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("account: close temp: %w", err)
	}
	if err := os.Rename(tmpPath, h.path); err != nil {
		return fmt.Errorf("account: rename into place: %w", err)
	}
	return nil
}

// PrivateDeviceEventKind identifies the variant of a PrivateDeviceEvent.
type PrivateDeviceEventKind int

const (
	EventLogin PrivateDeviceEventKind = iota
	EventLogout
	EventRevoked
	EventRotatedKey
	EventUpdated
)

// PrivateDeviceEvent is emitted by the Account Manager on login/logout/
// key-rotation/revocation (spec.md §6).
type PrivateDeviceEvent struct {
	Kind         PrivateDeviceEventKind
	AccountToken string
	Device       Device
	// Remote reports whether the event was observed from a background
	// poll against the API (true) versus a direct response to a
	// command issued by this daemon (false). See scenario S2.
	Remote bool
}

// AccountData is the subset of account metadata the Command Dispatcher
// surfaces via GetAccountData.
type AccountData struct {
	Token   string
	Expiry  time.Time
	Devices []Device
}

// VoucherResult is the reply to SubmitVoucher.
type VoucherResult struct {
	SecondsAdded int64
	NewExpiry    time.Time
}

// Manager is the Account Manager external collaborator contract
// (spec.md §6): async login/logout/data/validate/rotate, emitting
// PrivateDeviceEvents. The orchestrator never implements this itself;
// it is provided by the out-of-scope account/device persistence layer.
type Manager interface {
	Login(ctx context.Context, accountToken string) error
	Logout(ctx context.Context) error
	CreateNewAccount(ctx context.Context) (string, error)
	SubmitVoucher(ctx context.Context, voucher string) (VoucherResult, error)
	GetAccountData(ctx context.Context, accountToken string) (AccountData, error)
	GetWwwAuthToken(ctx context.Context) (string, error)
	ListDevices(ctx context.Context, accountToken string) ([]Device, error)
	// RemoveDevice removes deviceID from accountToken's device list and
	// returns the post-removal list plus found, reporting whether
	// deviceID was present in the manager's own pre-removal bookkeeping.
	// found is normally true; false is the sync-anomaly case spec.md §9
	// covers with the placeholder-device convention.
	RemoveDevice(ctx context.Context, accountToken, deviceID string) (remaining []Device, found bool, err error)
	UpdateDevice(ctx context.Context) error
	RotateWireguardKey(ctx context.Context) error
	SetRotationInterval(ctx context.Context, interval time.Duration) error

	// Current returns the active device, if any.
	Current() (ActiveDevice, bool)
	// Events returns a channel of PrivateDeviceEvents, closed when the
	// manager shuts down.
	Events() <-chan PrivateDeviceEvent

	Shutdown(ctx context.Context) error
}

// Package settings owns the Settings aggregate (spec.md §3): every
// user-configurable field the daemon persists, its atomic load/save
// cycle, and the integer-keyed migration ladder. Grounded on the
// teacher's internal/core/config.go (YAML load/save, RWMutex-guarded
// in-memory copy) and config_migrate.go (version-keyed migration
// chain applied to a raw map before typed decode).
package settings

import (
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"vpnguard/internal/logging"
)

// DNSOptions controls DNS resolution while the tunnel is up.
type DNSOptions struct {
	DefaultOptions  bool     `yaml:"default_options"`
	CustomServers   []string `yaml:"custom_servers,omitempty"`
	BlockAds        bool     `yaml:"block_ads"`
	BlockTrackers   bool     `yaml:"block_trackers"`
	BlockMalware    bool     `yaml:"block_malware"`
	BlockAdultCont  bool     `yaml:"block_adult_content"`
	BlockGambling   bool     `yaml:"block_gambling"`
}

// WireguardOptions holds WireGuard-specific tunnel parameters.
type WireguardOptions struct {
	MTU                  int `yaml:"mtu,omitempty"`
	RotationIntervalDays int `yaml:"rotation_interval_days"`
	UseWireguardNT       bool `yaml:"use_wireguard_nt"`
}

// OpenVPNOptions holds OpenVPN-specific tunnel parameters.
type OpenVPNOptions struct {
	Mssfix int `yaml:"mssfix,omitempty"`
}

// TunnelOptions bundles the per-protocol tunnel option sets.
type TunnelOptions struct {
	Wireguard WireguardOptions `yaml:"wireguard"`
	OpenVPN   OpenVPNOptions   `yaml:"openvpn"`
}

// BridgeState controls whether the bridge (proxy) mode is used for
// OpenVPN relay selection.
type BridgeState int

const (
	BridgeAuto BridgeState = iota
	BridgeOn
	BridgeOff
)

// ObfuscationMode controls WireGuard traffic obfuscation.
type ObfuscationMode int

const (
	ObfuscationAuto ObfuscationMode = iota
	ObfuscationOff
	ObfuscationUdp2Tcp
)

// SplitTunnelSettings is the two-phase split-tunnel configuration: the
// full app path set, and whether exclusion is currently enforced.
type SplitTunnelSettings struct {
	EnableExclusions bool     `yaml:"enable_exclusions"`
	ExcludedPaths    []string `yaml:"excluded_paths,omitempty"`
}

// RelayConstraints narrows relay selection (location/protocol/port,
// represented opaquely here since the selection algorithm is out of
// scope — only the bytes the selector consumes are owned here).
type RelayConstraints struct {
	Location string `yaml:"location,omitempty"`
	Protocol string `yaml:"protocol,omitempty"` // "", "wireguard", "openvpn"
	Port     int    `yaml:"port,omitempty"`
}

// Settings is the full persisted daemon configuration (spec.md §3).
type Settings struct {
	Version int `yaml:"version"`

	AllowLan               bool `yaml:"allow_lan"`
	BlockWhenDisconnected  bool `yaml:"block_when_disconnected"`
	AutoConnect            bool `yaml:"auto_connect"`
	EnableIPv6             bool `yaml:"enable_ipv6"`
	ShowBetaReleases       bool `yaml:"show_beta_releases"`

	DNS           DNSOptions          `yaml:"dns_options"`
	Tunnel        TunnelOptions       `yaml:"tunnel_options"`
	Bridge        BridgeState         `yaml:"bridge_state"`
	Obfuscation   ObfuscationMode     `yaml:"obfuscation_mode"`
	SplitTunnel   SplitTunnelSettings `yaml:"split_tunnel"`
	RelayConstraints RelayConstraints `yaml:"relay_constraints"`
}

// Default returns the baseline Settings a fresh install starts from.
func Default() Settings {
	return Settings{
		Version:               CurrentVersion,
		BlockWhenDisconnected: false,
		EnableIPv6:            true,
		DNS: DNSOptions{
			DefaultOptions: true,
		},
		Tunnel: TunnelOptions{
			Wireguard: WireguardOptions{RotationIntervalDays: 7},
		},
		Bridge:      BridgeAuto,
		Obfuscation: ObfuscationAuto,
	}
}

// Store persists Settings to disk and serves the in-memory copy
// everyone else reads, guarded by a single RWMutex like the teacher's
// ConfigManager.
type Store struct {
	mu   sync.RWMutex
	path string
	cur  Settings
}

// Load reads Settings from path, creating a default file if absent,
// and running it through the migration ladder otherwise.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Log.Infof("Settings", "no settings file at %s, writing defaults", path)
			s.cur = Default()
			if err := s.persist(); err != nil {
				return nil, fmt.Errorf("write default settings: %w", err)
			}
			return s, nil
		}
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	newVersion, migrated, err := Migrate(raw)
	if err != nil {
		return nil, fmt.Errorf("migrate settings: %w", err)
	}

	remarshaled, err := yaml.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("remarshal migrated settings: %w", err)
	}

	cur := Default()
	var decoded Settings
	if err := yaml.Unmarshal(remarshaled, &decoded); err != nil {
		return nil, fmt.Errorf("decode migrated settings: %w", err)
	}
	if err := mergo.Merge(&cur, decoded, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("apply settings defaults: %w", err)
	}
	cur.Version = newVersion
	s.cur = cur

	if migrated {
		logging.Log.Infof("Settings", "migrated settings to version %d", newVersion)
		if err := s.persist(); err != nil {
			return nil, fmt.Errorf("persist migrated settings: %w", err)
		}
	}

	return s, nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update applies mutate to a copy of the current settings and persists
// the result if mutate changed anything, reporting changed like the
// teacher's Ok(changed bool) setter convention the orchestrator's
// Settings Change Handler depends on (spec.md §4.9).
func (s *Store) Update(mutate func(*Settings)) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur
	mutate(&next)
	if reflect.DeepEqual(next, s.cur) {
		return false, nil
	}

	prev := s.cur
	s.cur = next
	if err := s.persistLocked(); err != nil {
		s.cur = prev
		return false, err
	}
	return true, nil
}

func (s *Store) persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	data, err := yaml.Marshal(&s.cur)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "settings-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp settings file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename settings file: %w", err)
	}
	return nil
}

// ValidExcludedPath reports whether p looks like an absolute
// executable path rather than garbage, a minimal sanity check before
// handing a set to the split-tunnel driver.
func ValidExcludedPath(p string) bool {
	return filepath.IsAbs(p)
}

// ParseCustomDNS validates a list of user-entered DNS server addresses.
func ParseCustomDNS(servers []string) ([]netip.Addr, error) {
	out := make([]netip.Addr, 0, len(servers))
	for _, s := range servers {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid DNS server %q: %w", s, err)
		}
		out = append(out, addr)
	}
	return out, nil
}

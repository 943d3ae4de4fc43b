package settings

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadMissingWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := store.Get()
	if got.Version != CurrentVersion {
		t.Fatalf("Version = %d, want %d", got.Version, CurrentVersion)
	}
	if !got.EnableIPv6 {
		t.Fatal("expected default EnableIPv6 = true")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reflect.DeepEqual(reloaded.Get(), got) {
		t.Fatalf("reloaded settings differ from written defaults")
	}
}

func TestUpdatePersistsAndReportsChanged(t *testing.T) {
	dir := t.TempDir()
	store, err := Load(filepath.Join(dir, "settings.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	changed, err := store.Update(func(s *Settings) { s.AllowLan = true })
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !changed {
		t.Fatal("expected changed = true for a real mutation")
	}

	changed, err = store.Update(func(s *Settings) { s.AllowLan = true })
	if err != nil {
		t.Fatalf("Update (no-op): %v", err)
	}
	if changed {
		t.Fatal("expected changed = false for an identical mutation")
	}

	reloaded, err := Load(filepath.Join(dir, "settings.yaml"))
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.Get().AllowLan {
		t.Fatal("AllowLan did not survive reload")
	}
}

func TestUpdateSliceField(t *testing.T) {
	dir := t.TempDir()
	store, err := Load(filepath.Join(dir, "settings.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	paths := []string{"/usr/bin/foo", "/usr/bin/bar"}
	changed, err := store.Update(func(s *Settings) {
		s.SplitTunnel.ExcludedPaths = paths
		s.SplitTunnel.EnableExclusions = true
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !changed {
		t.Fatal("expected changed = true")
	}
	if got := store.Get().SplitTunnel.ExcludedPaths; len(got) != 2 {
		t.Fatalf("ExcludedPaths = %v, want 2 entries", got)
	}
}

func TestParseCustomDNS(t *testing.T) {
	if _, err := ParseCustomDNS([]string{"1.1.1.1", "2606:4700:4700::1111"}); err != nil {
		t.Fatalf("ParseCustomDNS: %v", err)
	}
	if _, err := ParseCustomDNS([]string{"not-an-ip"}); err == nil {
		t.Fatal("expected error for invalid DNS server")
	}
}

func TestMigrateStampsVersion(t *testing.T) {
	raw := map[string]any{}
	version, migrated, err := Migrate(raw)
	if err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if !migrated {
		t.Fatal("expected migrated = true from unversioned start")
	}
	if version != CurrentVersion {
		t.Fatalf("version = %d, want %d", version, CurrentVersion)
	}
}

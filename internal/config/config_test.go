package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Registry.LockTimeout != 10*time.Second {
		t.Errorf("expected 10s lock timeout; got %v", cfg.Registry.LockTimeout)
	}
	if cfg.Chains.BaseListenPort != 51820 {
		t.Errorf("expected base port 51820; got %d", cfg.Chains.BaseListenPort)
	}
	if cfg.Cost.WarnThresholds["aws"] != 50.00 {
		t.Errorf("expected aws warn threshold 50; got %v", cfg.Cost.WarnThresholds["aws"])
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxygen.yaml")
	content := `
state_dir: /var/lib/proxygen
registry:
  lock_timeout: 3s
chains:
  max_hops: 4
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir != "/var/lib/proxygen" {
		t.Errorf("state_dir not applied: %s", cfg.StateDir)
	}
	if cfg.Registry.LockTimeout != 3*time.Second {
		t.Errorf("lock_timeout not applied: %v", cfg.Registry.LockTimeout)
	}
	if cfg.Chains.MaxHops != 4 {
		t.Errorf("max_hops not applied: %d", cfg.Chains.MaxHops)
	}
	// untouched fields keep their defaults
	if cfg.Chains.BaseListenPort != 51820 {
		t.Errorf("base_listen_port default lost: %d", cfg.Chains.BaseListenPort)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxygen.yaml")
	if err := os.WriteFile(path, []byte("state_dri: /tmp\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Errorf("expected error for unknown field")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxygen.yaml")
	if err := os.WriteFile(path, []byte("registry:\n  lock_timeout: -1s\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Errorf("expected error for negative lock timeout")
	}

	if err := os.WriteFile(path, []byte("cost:\n  warn_thresholds:\n    gcp: 10\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Errorf("expected error for unknown provider in thresholds")
	}
}

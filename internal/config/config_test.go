package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/quirelabs/quire/internal/executor"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.History.MaxEntries != executor.DefaultMaxHistory {
		t.Errorf("MaxEntries = %d, want %d", cfg.History.MaxEntries, executor.DefaultMaxHistory)
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Level = %q, want info", cfg.Logger.Level)
	}
	if cfg.Compute.ServerURL != "" {
		t.Errorf("ServerURL = %q, want empty", cfg.Compute.ServerURL)
	}
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.History.MaxEntries != executor.DefaultMaxHistory {
		t.Errorf("missing file changed defaults: %+v", cfg)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[logger]
level = "debug"

[history]
max_entries = 25

[compute]
server_url = "ws://localhost:9000/kernel"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logger.Level)
	}
	if cfg.History.MaxEntries != 25 {
		t.Errorf("MaxEntries = %d, want 25", cfg.History.MaxEntries)
	}
	if cfg.Compute.ServerURL != "ws://localhost:9000/kernel" {
		t.Errorf("ServerURL = %q", cfg.Compute.ServerURL)
	}
}

func TestValidateResetsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[history]\nmax_entries = -5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.History.MaxEntries != executor.DefaultMaxHistory {
		t.Errorf("MaxEntries = %d, want default after validation", cfg.History.MaxEntries)
	}
}

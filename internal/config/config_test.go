package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"fieldbook/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatalf("expected missing config to report exists=false")
	}
	if resolved != path {
		t.Fatalf("expected resolved path %q, got %q", path, resolved)
	}
	if cfg.Clustering.MaxGapMinutes != 45 {
		t.Fatalf("unexpected default gap: %d", cfg.Clustering.MaxGapMinutes)
	}
	if cfg.Clustering.RadiusKM != 2.0 {
		t.Fatalf("unexpected default radius: %f", cfg.Clustering.RadiusKM)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected default log format: %q", cfg.Logging.Format)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
log_dir = "` + filepath.Join(dir, "logs") + `"

[clustering]
max_gap_minutes = 90
radius_km = 5.5

[matching]
buffer_minutes = 15

[identify]
high_confidence = 0.9

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to be found")
	}
	if cfg.Clustering.MaxGapMinutes != 90 || cfg.Clustering.RadiusKM != 5.5 {
		t.Fatalf("clustering overrides not applied: %+v", cfg.Clustering)
	}
	if cfg.Matching.BufferMinutes != 15 {
		t.Fatalf("matching override not applied: %+v", cfg.Matching)
	}
	if cfg.Identify.HighConfidence != 0.9 {
		t.Fatalf("identify override not applied: %+v", cfg.Identify)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging overrides not applied: %+v", cfg.Logging)
	}
}

func TestLoadRejectsInvalidThresholds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[clustering]
max_gap_minutes = 0
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for zero gap threshold")
	}
}

func TestEnvOverridesApply(t *testing.T) {
	t.Setenv("FIELDBOOK_NTFY_TOPIC", "https://ntfy.sh/env-topic")
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/env-topic" {
		t.Fatalf("env override not applied: %q", cfg.Notifications.NtfyTopic)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist", dir)
		}
	}
}

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.App.Name != "cargoledger" || cfg.Database.Driver != "sqlite" {
		t.Fatalf("Load() = %+v", cfg)
	}
	if cfg.Ingest.BatchSize != 1000 || cfg.Ingest.RetryInitial != 200*time.Millisecond {
		t.Fatalf("Load() ingest = %+v", cfg.Ingest)
	}
	if cfg.Ingest.OrphanPolicy != "null" {
		t.Fatalf("Load() orphan policy = %q, want null", cfg.Ingest.OrphanPolicy)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "database:\n  dsn: " + filepath.Join(dir, "x.sqlite") + "\ningest:\n  batch_size: 50\n  orphan_policy: delete\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CL_NATS_URL", "nats://127.0.0.1:4222")

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ingest.BatchSize != 50 || cfg.Ingest.OrphanPolicy != "delete" {
		t.Fatalf("Load() ingest = %+v", cfg.Ingest)
	}
	if cfg.NATS.URL != "nats://127.0.0.1:4222" {
		t.Fatalf("Load() nats url = %q", cfg.NATS.URL)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("ingest:\n  orphan_policy: purge\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(context.Background(), path); err == nil {
		t.Fatalf("Load() expected error for invalid orphan policy")
	}
	if _, err := Load(context.Background(), filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("Load() expected error for explicit missing file")
	}
}

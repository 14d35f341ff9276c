package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "database:\n  host: localhost\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}

	if cfg.PLC.Address != "192.168.0.1" {
		t.Errorf("PLC.Address=%q, want default 192.168.0.1", cfg.PLC.Address)
	}
	if cfg.PLC.Rack != 0 || cfg.PLC.Slot != 1 {
		t.Errorf("rack/slot=%d/%d, want 0/1", cfg.PLC.Rack, cfg.PLC.Slot)
	}
	if cfg.Register.Block != 5 || cfg.Register.Offset != 124 || cfg.Register.Length != 4 {
		t.Errorf("register=%+v, want DB5 offset 124 length 4", cfg.Register)
	}
	if cfg.Monitor.Interval != time.Second {
		t.Errorf("Monitor.Interval=%v, want 1s", cfg.Monitor.Interval)
	}
	if cfg.Monitor.MaxRetries != 3 {
		t.Errorf("Monitor.MaxRetries=%d, want 3", cfg.Monitor.MaxRetries)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
plc:
  address: 10.0.0.42
  slot: 2
register:
  block: 7
  offset: 20
monitor:
  interval: 250ms
  min_value: -500.0
  max_value: 500.0
database:
  host: db
  port: 5432
  database: encoderd
  user: enc
  password: secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}

	if cfg.PLC.Address != "10.0.0.42" || cfg.PLC.Slot != 2 {
		t.Errorf("plc=%+v", cfg.PLC)
	}
	if cfg.Register.Block != 7 || cfg.Register.Offset != 20 {
		t.Errorf("register=%+v, want block 7 offset 20", cfg.Register)
	}
	if cfg.Register.Length != 4 {
		t.Errorf("register length default lost: %d", cfg.Register.Length)
	}
	if cfg.Monitor.Interval != 250*time.Millisecond {
		t.Errorf("interval=%v", cfg.Monitor.Interval)
	}
	if cfg.Monitor.MinValue == nil || *cfg.Monitor.MinValue != -500.0 {
		t.Errorf("min_value=%v, want -500", cfg.Monitor.MinValue)
	}

	want := "postgres://enc:secret@db:5432/encoderd?sslmode=disable"
	if got := cfg.Database.DSN(); got != want {
		t.Errorf("DSN=%q, want %q", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

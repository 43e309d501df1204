package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config file failed: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfigFile(t, `
inverter:
  host: 192.168.0.11
  port: 8899
  connect_timeout: 5s
  timeout: 1500ms
  retries: 5
watch:
  interval: 1m
log:
  level: DEBUG
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Inverter.Host != "192.168.0.11" || cfg.Inverter.Port != 8899 {
		t.Errorf("inverter address %s:%d", cfg.Inverter.Host, cfg.Inverter.Port)
	}
	if cfg.Inverter.ConnectTimeout != 5*time.Second {
		t.Errorf("connect timeout %s", cfg.Inverter.ConnectTimeout)
	}
	if cfg.Inverter.Timeout != 1500*time.Millisecond {
		t.Errorf("timeout %s", cfg.Inverter.Timeout)
	}
	if cfg.Inverter.Retries != 5 {
		t.Errorf("retries %d", cfg.Inverter.Retries)
	}
	if cfg.Watch.Interval != time.Minute {
		t.Errorf("watch interval %s", cfg.Watch.Interval)
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("log level %q", cfg.Log.Level)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
inverter:
  host: inverter.local
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Inverter.Host != "inverter.local" {
		t.Errorf("host %q", cfg.Inverter.Host)
	}
	if cfg.Inverter.Port != 8899 {
		t.Errorf("default port %d, expected 8899", cfg.Inverter.Port)
	}
	if cfg.Inverter.Timeout != 2*time.Second {
		t.Errorf("default timeout %s, expected 2s", cfg.Inverter.Timeout)
	}
	if cfg.Inverter.Retries != 3 {
		t.Errorf("default retries %d, expected 3", cfg.Inverter.Retries)
	}
	if cfg.Log.Level != "INFO" {
		t.Errorf("default log level %q, expected INFO", cfg.Log.Level)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load of a missing explicit file succeeded")
	}
}

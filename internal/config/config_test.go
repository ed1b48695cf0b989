package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" || cfg.LogLevel != "info" || cfg.DBPath != "pid_tuner.db" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	want := Link{BaudRate: 9600, ReadTimeout: 100 * time.Millisecond, StartupGrace: 2 * time.Second, TickInterval: 200 * time.Millisecond}
	if cfg.Link != want {
		t.Fatalf("link = %+v, want %+v", cfg.Link, want)
	}
	if cfg.Window.Capacity != 200 || cfg.Diagnostics.Capacity != 50 {
		t.Fatalf("capacities = %d/%d", cfg.Window.Capacity, cfg.Diagnostics.Capacity)
	}
	if !reflect.DeepEqual(cfg.Protocol.ReservedKeys, []string{"Input", "Output"}) {
		t.Fatalf("reserved = %v", cfg.Protocol.ReservedKeys)
	}
	if !cfg.UsesDevSigningKey() || cfg.Auth.TokenTTL != time.Hour {
		t.Fatalf("auth = %+v", cfg.Auth)
	}
}

func TestLoad_FileValues(t *testing.T) {
	dir := writeConfig(t, `
port: "9090"
log:
  level: DEBUG
db:
  path: /tmp/pid.db
auth:
  signing_key: s3cret
  token_ttl: 30m
link:
  port: /dev/ttyUSB0
  baud_rate: 115200
  read_timeout: 50ms
  startup_grace: 1s
  tick_interval: 100ms
window:
  capacity: 500
protocol:
  reserved_keys: [Input, Output, Temp]
diagnostics:
  capacity: 10
`)
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.LogLevel != "debug" || cfg.DBPath != "/tmp/pid.db" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Auth.SigningKey != "s3cret" || cfg.Auth.TokenTTL != 30*time.Minute || cfg.UsesDevSigningKey() {
		t.Fatalf("auth = %+v", cfg.Auth)
	}
	want := Link{Port: "/dev/ttyUSB0", BaudRate: 115200, ReadTimeout: 50 * time.Millisecond, StartupGrace: time.Second, TickInterval: 100 * time.Millisecond}
	if cfg.Link != want {
		t.Fatalf("link = %+v", cfg.Link)
	}
	if cfg.Window.Capacity != 500 || cfg.Diagnostics.Capacity != 10 {
		t.Fatalf("capacities = %d/%d", cfg.Window.Capacity, cfg.Diagnostics.Capacity)
	}
	if !reflect.DeepEqual(cfg.Protocol.ReservedKeys, []string{"Input", "Output", "Temp"}) {
		t.Fatalf("reserved = %v", cfg.Protocol.ReservedKeys)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := writeConfig(t, "link:\n  port: /dev/ttyUSB0\n")
	t.Setenv("PID_TUNER_LINK_PORT", "sim://pid")
	t.Setenv("PID_TUNER_WINDOW_CAPACITY", "42")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Link.Port != "sim://pid" || cfg.Window.Capacity != 42 {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := writeConfig(t, "port: [unterminated\n")
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestFromViper_Validation(t *testing.T) {
	cases := []struct {
		name string
		key  string
		val  any
		msg  string
	}{
		{"zero capacity", "window.capacity", 0, "window.capacity"},
		{"negative capacity", "window.capacity", -3, "window.capacity"},
		{"read timeout above tick", "link.read_timeout", time.Second, "exceeds link.tick_interval"},
		{"zero read timeout", "link.read_timeout", 0, "link.read_timeout"},
		{"bad level", "log.level", "verbose", "log.level"},
		{"negative grace", "link.startup_grace", -time.Second, "link.startup_grace"},
		{"empty key", "auth.signing_key", "", "auth.signing_key"},
		{"zero baud", "link.baud_rate", 0, "link.baud_rate"},
		{"empty db", "db.path", "", "db.path"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.Set(tc.key, tc.val)

			_, err := FromViper(v)
			if err == nil || !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("expected error mentioning %q, got %v", tc.msg, err)
			}
		})
	}
}

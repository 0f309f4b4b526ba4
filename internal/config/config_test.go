package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hanchayi/web-server/internal/logger"
	"github.com/hanchayi/web-server/internal/threadpool"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

func TestLoadFileYAML(t *testing.T) {
	content := `
server:
  addr: 0.0.0.0:8000
  root: www
  max_requests: 2
  sleep_delay: 1s
  read_timeout: 3s
pool:
  workers: 8
  panic_policy: respawn
admin:
  enabled: true
  addr: 127.0.0.1:9999
log:
  level: debug
`
	cfg, err := LoadFile(writeFile(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Addr != "0.0.0.0:8000" {
		t.Errorf("expected addr '0.0.0.0:8000', got '%s'", cfg.Server.Addr)
	}
	if cfg.Pool.Workers != 8 {
		t.Errorf("expected workers 8, got %d", cfg.Pool.Workers)
	}
	if !cfg.Admin.Enabled {
		t.Error("expected admin to be enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	rt, err := cfg.ToRuntime()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}
	if rt.Server.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", rt.Server.Workers)
	}
	if rt.Server.PanicPolicy != threadpool.PanicPolicyRespawn {
		t.Errorf("expected respawn policy, got %s", rt.Server.PanicPolicy)
	}
	if rt.Server.MaxRequests != 2 {
		t.Errorf("expected max_requests 2, got %d", rt.Server.MaxRequests)
	}
	if rt.Server.SleepDelay != time.Second {
		t.Errorf("expected sleep delay 1s, got %v", rt.Server.SleepDelay)
	}
	if rt.Server.ReadTimeout != 3*time.Second {
		t.Errorf("expected read timeout 3s, got %v", rt.Server.ReadTimeout)
	}
	if rt.AdminAddr != "127.0.0.1:9999" {
		t.Errorf("expected admin addr 127.0.0.1:9999, got %s", rt.AdminAddr)
	}
	if rt.LogLevel != logger.LevelDebug {
		t.Errorf("expected DEBUG, got %s", rt.LogLevel)
	}
}

func TestLoadFileJSON(t *testing.T) {
	content := `{
  "server": {"root": "site"},
  "pool": {"workers": 2},
  "admin": {"enabled": true}
}`
	cfg, err := LoadFile(writeFile(t, "config.json", content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	rt, err := cfg.ToRuntime()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}
	if rt.Server.Root != "site" {
		t.Errorf("expected root 'site', got '%s'", rt.Server.Root)
	}
	if rt.Server.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", rt.Server.Workers)
	}
	if rt.AdminAddr != DefaultAdminAddr {
		t.Errorf("expected default admin addr, got %s", rt.AdminAddr)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadFile(writeFile(t, "config.toml", "x = 1")); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := LoadFile(writeFile(t, "bad.yaml", "server: [unclosed")); err == nil {
		t.Error("expected error for invalid YAML")
	}
	if _, err := LoadFile(writeFile(t, "bad.json", "{")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestToRuntimeDefaults(t *testing.T) {
	cfg := &FileConfig{}
	rt, err := cfg.ToRuntime()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rt.Server.Addr != "127.0.0.1:7878" {
		t.Errorf("expected default addr, got %s", rt.Server.Addr)
	}
	if rt.Server.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", rt.Server.Workers)
	}
	if rt.Server.SleepDelay != 5*time.Second {
		t.Errorf("expected 5s sleep delay, got %v", rt.Server.SleepDelay)
	}
	if rt.AdminAddr != "" {
		t.Errorf("expected admin disabled, got %s", rt.AdminAddr)
	}
	if rt.LogLevel != logger.LevelInfo {
		t.Errorf("expected INFO, got %s", rt.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*FileConfig)
		wantErr bool
	}{
		{"valid empty", func(c *FileConfig) {}, false},
		{"negative workers", func(c *FileConfig) { c.Pool.Workers = -1 }, true},
		{"unknown panic policy", func(c *FileConfig) { c.Pool.PanicPolicy = "ignore" }, true},
		{"negative max requests", func(c *FileConfig) { c.Server.MaxRequests = -2 }, true},
		{"bad log level", func(c *FileConfig) { c.Log.Level = "loud" }, true},
		{"bad sleep delay", func(c *FileConfig) { c.Server.SleepDelay = "soon" }, true},
		{"negative read timeout", func(c *FileConfig) { c.Server.ReadTimeout = "-1s" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &FileConfig{}
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

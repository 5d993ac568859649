package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Verify default server config
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.SendBufferSize != 64 {
		t.Errorf("Server.SendBufferSize = %d, want 64", cfg.Server.SendBufferSize)
	}
	if cfg.Server.PongTimeoutSeconds <= cfg.Server.PingIntervalSeconds {
		t.Error("default pong timeout must exceed ping interval")
	}

	// Verify default debate config
	if cfg.Debate.ConstructiveSeconds != 240 {
		t.Errorf("Debate.ConstructiveSeconds = %d, want 240", cfg.Debate.ConstructiveSeconds)
	}
	if cfg.Debate.CrossfireSeconds != 180 {
		t.Errorf("Debate.CrossfireSeconds = %d, want 180", cfg.Debate.CrossfireSeconds)
	}
	if cfg.Debate.FinalFocusSeconds != 120 {
		t.Errorf("Debate.FinalFocusSeconds = %d, want 120", cfg.Debate.FinalFocusSeconds)
	}
	if cfg.Debate.MaxSpeechLength != 4096 {
		t.Errorf("Debate.MaxSpeechLength = %d, want 4096", cfg.Debate.MaxSpeechLength)
	}

	// Verify default store config
	if cfg.Store.Backend != "memory" {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, "memory")
	}
	if cfg.Store.Redis.Addr != "localhost:6379" {
		t.Errorf("Store.Redis.Addr = %q, want %q", cfg.Store.Redis.Addr, "localhost:6379")
	}

	// Verify default relay config
	if cfg.Relay.MaxFrameBytes != 1<<20 {
		t.Errorf("Relay.MaxFrameBytes = %d, want %d", cfg.Relay.MaxFrameBytes, 1<<20)
	}

	// Verify AI is off by default
	if cfg.AI.Enabled {
		t.Error("AI.Enabled should be false by default")
	}

	// Verify default logging config
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestDefaultPassesValidation(t *testing.T) {
	if errs := Default().Validate(); len(errs) > 0 {
		t.Errorf("Default() config has %d validation errors: %v", len(errs), ValidationErrors(errs))
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()

	if got := cfg.Server.ShutdownTimeout(); got != 15*time.Second {
		t.Errorf("ShutdownTimeout() = %v, want 15s", got)
	}
	if got := cfg.Server.PingInterval(); got != 30*time.Second {
		t.Errorf("PingInterval() = %v, want 30s", got)
	}
	if got := cfg.Debate.TickInterval(); got != time.Second {
		t.Errorf("TickInterval() = %v, want 1s", got)
	}
	if got := cfg.Store.Redis.TTL(); got != 72*time.Hour {
		t.Errorf("Redis TTL() = %v, want 72h", got)
	}
	if got := cfg.AI.Timeout(); got != 60*time.Second {
		t.Errorf("AI Timeout() = %v, want 60s", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
debate:
  rebuttal_seconds: 300
store:
  backend: redis
  redis:
    addr: "redis.internal:6379"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	SetDefaults()
	viper.SetConfigFile(configPath)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig failed: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Debate.RebuttalSeconds != 300 {
		t.Errorf("Debate.RebuttalSeconds = %d, want 300", cfg.Debate.RebuttalSeconds)
	}
	if cfg.Store.Backend != "redis" {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, "redis")
	}
	if cfg.Store.Redis.Addr != "redis.internal:6379" {
		t.Errorf("Store.Redis.Addr = %q, want %q", cfg.Store.Redis.Addr, "redis.internal:6379")
	}

	// Unset keys fall back to defaults
	if cfg.Debate.ConstructiveSeconds != 240 {
		t.Errorf("Debate.ConstructiveSeconds = %d, want default 240", cfg.Debate.ConstructiveSeconds)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	SetDefaults()
	viper.Set("server.port", 0)
	viper.Set("store.backend", "etcd")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() accepted an invalid config")
	}

	if !strings.Contains(err.Error(), "server.port") {
		t.Errorf("error %q does not mention server.port", err.Error())
	}
	if !strings.Contains(err.Error(), "store.backend") {
		t.Errorf("error %q does not mention store.backend", err.Error())
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("uses XDG_CONFIG_HOME when set", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		if got := ConfigDir(); got != filepath.Join("/tmp/xdg", "rostra") {
			t.Errorf("ConfigDir() = %q, want %q", got, "/tmp/xdg/rostra")
		}
	})

	t.Run("falls back to ~/.config", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("no home directory")
		}
		if got := ConfigDir(); got != filepath.Join(home, ".config", "rostra") {
			t.Errorf("ConfigDir() = %q, want under ~/.config", got)
		}
	})
}

func TestIsValidStoreBackend(t *testing.T) {
	tests := []struct {
		backend string
		want    bool
	}{
		{"memory", true},
		{"redis", true},
		{"postgres", true},
		{"etcd", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			if got := IsValidStoreBackend(tt.backend); got != tt.want {
				t.Errorf("IsValidStoreBackend(%q) = %v, want %v", tt.backend, got, tt.want)
			}
		})
	}
}

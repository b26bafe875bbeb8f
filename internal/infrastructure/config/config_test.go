package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
controller:
  id: "bench-1"
database:
  path: "/tmp/test.db"
imouse:
  base_url: "http://10.0.0.5"
  port: 9912
humanization:
  skip_probability: 0.25
automation_defaults:
  platform: instagram
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Controller.ID != "bench-1" {
		t.Errorf("Controller.ID = %q, want %q", cfg.Controller.ID, "bench-1")
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if got := cfg.IMouseAddress(); got != "http://10.0.0.5:9912" {
		t.Errorf("IMouseAddress() = %q, want %q", got, "http://10.0.0.5:9912")
	}
	if cfg.Humanization.SkipProbability != 0.25 {
		t.Errorf("SkipProbability = %v, want 0.25", cfg.Humanization.SkipProbability)
	}
	// Unset keys keep their defaults.
	if cfg.Humanization.DelayJitterMin != 0.8 {
		t.Errorf("DelayJitterMin = %v, want 0.8", cfg.Humanization.DelayJitterMin)
	}
	if cfg.AutomationDefaults.Platform != "instagram" {
		t.Errorf("Platform = %q, want instagram", cfg.AutomationDefaults.Platform)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.IMouse.Port != 9911 {
		t.Errorf("IMouse.Port = %d, want 9911", cfg.IMouse.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
controller:
  id: ""
`)

	if _, err := Load(path); err == nil {
		t.Error("Load() expected validation error for empty controller.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing controller ID", mutate: func(c *Config) { c.Controller.ID = "" }, wantErr: true},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "invalid QoS", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "invalid port low", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "invalid port high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "invalid imouse port", mutate: func(c *Config) { c.IMouse.Port = -1 }, wantErr: true},
		{name: "jitter inverted", mutate: func(c *Config) { c.Humanization.DelayJitterMax = 0.5 }, wantErr: true},
		{name: "skip probability above one", mutate: func(c *Config) { c.Humanization.SkipProbability = 1.5 }, wantErr: true},
		{name: "unknown platform", mutate: func(c *Config) { c.AutomationDefaults.Platform = "myspace" }, wantErr: true},
		{name: "empty JWT secret allowed", mutate: func(c *Config) { c.Security.JWT.Secret = "" }},
		{name: "JWT secret too short", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: true},
		{
			name:   "JWT secret long enough",
			mutate: func(c *Config) { c.Security.JWT.Secret = "test-secret-key-at-least-32-chars!" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("OTG_DATABASE_PATH", "/custom/path.db")
	t.Setenv("OTG_MQTT_HOST", "mqtt.example.com")
	t.Setenv("OTG_MQTT_USERNAME", "testuser")
	t.Setenv("OTG_API_PORT", "9090")
	t.Setenv("OTG_IMOUSE_PORT", "not-a-number")
	t.Setenv("OPENAI_API_KEY", "legacy-key")
	t.Setenv("OTG_VISION_API_KEY", "vision-key")
	t.Setenv("OTG_SKIP_PROBABILITY", "0.3")
	t.Setenv("OTG_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port = %d, want 9090", cfg.API.Port)
	}
	if cfg.IMouse.Port != 9911 {
		t.Errorf("IMouse.Port = %d, want default 9911 for malformed override", cfg.IMouse.Port)
	}
	if cfg.Vision.APIKey != "vision-key" {
		t.Errorf("Vision.APIKey = %q, want OTG_VISION_API_KEY to win", cfg.Vision.APIKey)
	}
	if cfg.Humanization.SkipProbability != 0.3 {
		t.Errorf("SkipProbability = %v, want 0.3", cfg.Humanization.SkipProbability)
	}
	if cfg.Security.JWT.Secret != "jwt-secret" {
		t.Errorf("Security.JWT.Secret = %q, want %q", cfg.Security.JWT.Secret, "jwt-secret")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Controller.ID == "" {
		t.Error("defaultConfig should have non-empty Controller.ID")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.AutomationDefaults.PostIntervalSeconds != 10 {
		t.Errorf("PostIntervalSeconds = %v, want 10", cfg.AutomationDefaults.PostIntervalSeconds)
	}
	if cfg.AutomationDefaults.ScrollDelaySeconds != 3 {
		t.Errorf("ScrollDelaySeconds = %v, want 3", cfg.AutomationDefaults.ScrollDelaySeconds)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate, got %v", err)
	}
}

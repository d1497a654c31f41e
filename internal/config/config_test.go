package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Sampling.Rate != 3 {
		t.Errorf("Rate = %d, want 3", cfg.Sampling.Rate)
	}
	if cfg.Sampling.Floor != 200*time.Millisecond {
		t.Errorf("Floor = %v, want 200ms", cfg.Sampling.Floor)
	}
	if cfg.Encoder.Width != 320 || cfg.Encoder.Height != 240 {
		t.Errorf("Encoder size = %dx%d, want 320x240", cfg.Encoder.Width, cfg.Encoder.Height)
	}
	if cfg.Encoder.Quality != 60 {
		t.Errorf("Quality = %d, want 60", cfg.Encoder.Quality)
	}
	if cfg.Classifier.APIBase != "http://localhost:8080" {
		t.Errorf("APIBase = %s, want http://localhost:8080", cfg.Classifier.APIBase)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "livesampler.yaml")
	data := `
device:
  backend: mock
  id: /dev/video2
sampling:
  rate: 5
  floor: 250ms
  period: 100ms
classifier:
  api_base: http://classifier:9000
  transport: ws
encoder:
  format: png
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Device.Backend != "mock" || cfg.Device.ID != "/dev/video2" {
		t.Errorf("Device = %+v", cfg.Device)
	}
	if cfg.Sampling.Rate != 5 {
		t.Errorf("Rate = %d, want 5", cfg.Sampling.Rate)
	}
	if cfg.Sampling.Floor != 250*time.Millisecond {
		t.Errorf("Floor = %v, want 250ms", cfg.Sampling.Floor)
	}
	if cfg.Sampling.Period != 100*time.Millisecond {
		t.Errorf("Period = %v, want 100ms", cfg.Sampling.Period)
	}
	if cfg.Classifier.Transport != TransportWebsocket {
		t.Errorf("Transport = %s, want ws", cfg.Classifier.Transport)
	}
	// Untouched keys keep their defaults
	if cfg.Sampling.MaxRate != DefaultMaxRate {
		t.Errorf("MaxRate = %d, want %d", cfg.Sampling.MaxRate, DefaultMaxRate)
	}
	if cfg.Encoder.Quality != DefaultQuality {
		t.Errorf("Quality = %d, want %d", cfg.Encoder.Quality, DefaultQuality)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("API_BASE", "http://env-host:8080")
	t.Setenv("SAMPLE_RATE", "7")
	t.Setenv("SAMPLE_FLOOR_MS", "300")
	t.Setenv("DEVICE_BACKEND", "mock")
	t.Setenv("WEB_PORT", "9999")
	t.Setenv("AUTOSTART", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Classifier.APIBase != "http://env-host:8080" {
		t.Errorf("APIBase = %s", cfg.Classifier.APIBase)
	}
	if cfg.Sampling.Rate != 7 {
		t.Errorf("Rate = %d, want 7", cfg.Sampling.Rate)
	}
	if cfg.Sampling.Floor != 300*time.Millisecond {
		t.Errorf("Floor = %v, want 300ms", cfg.Sampling.Floor)
	}
	if cfg.Device.Backend != "mock" {
		t.Errorf("Backend = %s, want mock", cfg.Device.Backend)
	}
	if cfg.Web.Port != "9999" {
		t.Errorf("Port = %s, want 9999", cfg.Web.Port)
	}
	if !cfg.Sampling.Autostart {
		t.Error("Autostart should be set from AUTOSTART")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"rate above range", func(c *Config) { c.Sampling.Rate = 9 }, "sampling.rate"},
		{"rate below range", func(c *Config) { c.Sampling.Rate = 0 }, "sampling.rate"},
		{"inverted range", func(c *Config) { c.Sampling.MaxRate = 0 }, "max_rate"},
		{"zero floor", func(c *Config) { c.Sampling.Floor = 0 }, "sampling.floor"},
		{"negative floor", func(c *Config) { c.Sampling.Floor = -time.Millisecond }, "sampling.floor"},
		{"zero period", func(c *Config) { c.Sampling.Period = 0 }, "period"},
		{"bad quality", func(c *Config) { c.Encoder.Quality = 0 }, "quality"},
		{"bad format", func(c *Config) { c.Encoder.Format = "gif" }, "format"},
		{"bad transport", func(c *Config) { c.Classifier.Transport = "grpc" }, "transport"},
		{"bad backend", func(c *Config) { c.Device.Backend = "v4l" }, "backend"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q should mention %q", err, tc.want)
			}
		})
	}
}

// Package config provides configuration loading for go-livesampler commands.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file, then environment variables (a .env file in the working directory is
// loaded first if present).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultAPIBase    = "http://localhost:8080"
	DefaultWebPort    = "8090"
	DefaultRate       = 3
	DefaultMinRate    = 1
	DefaultMaxRate    = 8
	DefaultFloor      = 200 * time.Millisecond
	DefaultPeriod     = time.Second
	DefaultDeviceID   = "0"
	DefaultCaptureW   = 640
	DefaultCaptureH   = 480
	DefaultEncodeW    = 320
	DefaultEncodeH    = 240
	DefaultQuality    = 60
	DefaultFormat     = "jpeg"
	DefaultTransport  = TransportHTTP
	DefaultReqTimeout = 10 * time.Second
)

// Classifier transports.
const (
	TransportHTTP      = "http"
	TransportWebsocket = "ws"
)

// DeviceConfig describes the capture device and the constraints it is opened with.
type DeviceConfig struct {
	Backend string `yaml:"backend"` // "webcam" or "mock"
	ID      string `yaml:"id"`      // camera index or device path
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	FPS     int    `yaml:"fps"`
}

// EncoderConfig describes the payload sent per tick.
type EncoderConfig struct {
	Format  string `yaml:"format"` // "jpeg" or "png"
	Quality int    `yaml:"quality"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
}

// SamplingConfig controls the rate-to-interval schedule.
type SamplingConfig struct {
	Rate    int           `yaml:"rate"`
	MinRate int           `yaml:"min_rate"`
	MaxRate int           `yaml:"max_rate"`
	Floor   time.Duration `yaml:"floor"`
	Period  time.Duration `yaml:"period"`

	// Autostart opens the device and starts sampling at launch.
	Autostart bool `yaml:"autostart"`
}

// ClassifierConfig points at the remote classification endpoint.
type ClassifierConfig struct {
	APIBase   string        `yaml:"api_base"`
	Transport string        `yaml:"transport"`
	Timeout   time.Duration `yaml:"timeout"`
}

// WebConfig configures the operator surface.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	DebugTicks bool   `yaml:"debug_ticks"`
}

// Config is the top-level structure for livesampler.yaml.
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	Encoder    EncoderConfig    `yaml:"encoder"`
	Sampling   SamplingConfig   `yaml:"sampling"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Web        WebConfig        `yaml:"web"`
	Log        LogConfig        `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Device: DeviceConfig{
			Backend: "webcam",
			ID:      DefaultDeviceID,
			Width:   DefaultCaptureW,
			Height:  DefaultCaptureH,
		},
		Encoder: EncoderConfig{
			Format:  DefaultFormat,
			Quality: DefaultQuality,
			Width:   DefaultEncodeW,
			Height:  DefaultEncodeH,
		},
		Sampling: SamplingConfig{
			Rate:    DefaultRate,
			MinRate: DefaultMinRate,
			MaxRate: DefaultMaxRate,
			Floor:   DefaultFloor,
			Period:  DefaultPeriod,
		},
		Classifier: ClassifierConfig{
			APIBase:   DefaultAPIBase,
			Transport: DefaultTransport,
			Timeout:   DefaultReqTimeout,
		},
		Web: WebConfig{
			Enabled: true,
			Port:    DefaultWebPort,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load resolves the configuration. An empty path skips the YAML layer;
// a missing file at a non-empty path is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables on top of the current values.
func (c *Config) ApplyEnv() {
	c.Classifier.APIBase = getEnv("API_BASE", c.Classifier.APIBase)
	c.Classifier.Transport = getEnv("TRANSPORT", c.Classifier.Transport)
	c.Device.Backend = getEnv("DEVICE_BACKEND", c.Device.Backend)
	c.Device.ID = getEnv("DEVICE_ID", c.Device.ID)
	c.Sampling.Rate = getEnvAsInt("SAMPLE_RATE", c.Sampling.Rate)
	if ms := getEnvAsInt("SAMPLE_FLOOR_MS", -1); ms >= 0 {
		c.Sampling.Floor = time.Duration(ms) * time.Millisecond
	}
	c.Sampling.Autostart = getEnvAsBool("AUTOSTART", c.Sampling.Autostart)
	c.Web.Port = getEnv("WEB_PORT", c.Web.Port)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var problems []string

	s := c.Sampling
	if s.MinRate < 1 {
		problems = append(problems, "sampling.min_rate must be at least 1")
	}
	if s.MaxRate < s.MinRate {
		problems = append(problems, "sampling.max_rate must be >= sampling.min_rate")
	}
	if s.Rate < s.MinRate || s.Rate > s.MaxRate {
		problems = append(problems, fmt.Sprintf("sampling.rate must be between %d and %d", s.MinRate, s.MaxRate))
	}
	if s.Floor <= 0 {
		problems = append(problems, "sampling.floor must be positive")
	}
	if s.Period <= 0 {
		problems = append(problems, "sampling.period must be positive")
	}

	if c.Encoder.Quality < 1 || c.Encoder.Quality > 100 {
		problems = append(problems, "encoder.quality must be between 1 and 100")
	}
	switch c.Encoder.Format {
	case "jpeg", "png":
	default:
		problems = append(problems, "encoder.format must be jpeg or png")
	}

	switch c.Classifier.Transport {
	case TransportHTTP, TransportWebsocket:
	default:
		problems = append(problems, "classifier.transport must be http or ws")
	}
	if c.Classifier.APIBase == "" {
		problems = append(problems, "classifier.api_base is required")
	}

	switch c.Device.Backend {
	case "webcam", "mock":
	default:
		problems = append(problems, "device.backend must be webcam or mock")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

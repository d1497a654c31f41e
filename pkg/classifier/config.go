package classifier

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds transport configuration.
type Config struct {
	// BaseURL of the classification service, e.g. "http://localhost:8080".
	BaseURL string

	// FramePath is the HTTP endpoint for live frames.
	FramePath string

	// StreamPath is the websocket endpoint for live frames.
	StreamPath string

	// Timeout bounds a single classification round trip.
	Timeout time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Option is a functional option for configuring classifiers.
type Option func(*Config)

// WithBaseURL sets the service base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithFramePath sets the HTTP frame endpoint path.
func WithFramePath(path string) Option {
	return func(c *Config) { c.FramePath = path }
}

// WithStreamPath sets the websocket endpoint path.
func WithStreamPath(path string) Option {
	return func(c *Config) { c.StreamPath = path }
}

// WithTimeout sets the per-frame timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for a local classification service.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:8080",
		FramePath:  "/classify/webcam-frame",
		StreamPath: "/ws/classify",
		Timeout:    10 * time.Second,
		Logger:     slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

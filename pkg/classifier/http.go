package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-livesampler/internal/httpc"
	"github.com/teslashibe/go-livesampler/pkg/encoder"
)

// maxErrorBody caps how much of an error reply is kept in APIError.Message.
const maxErrorBody = 512

// HTTPClient posts frames as JSON.
type HTTPClient struct {
	url    string
	http   *http.Client
	logger *slog.Logger
	closed atomic.Bool
}

// NewHTTPClient creates an HTTP classifier.
func NewHTTPClient(opts ...Option) (*HTTPClient, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("classifier: base URL required")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpc.NewClient(cfg.Timeout)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPClient{
		url:    strings.TrimSuffix(cfg.BaseURL, "/") + cfg.FramePath,
		http:   hc,
		logger: logger.With("component", "classifier.http"),
	}, nil
}

// Name returns "http".
func (c *HTTPClient) Name() string {
	return TransportHTTP
}

// URL returns the frame endpoint.
func (c *HTTPClient) URL() string {
	return c.url
}

// Classify posts f and decodes the verdict.
func (c *HTTPClient) Classify(ctx context.Context, f *encoder.Frame) (*Result, error) {
	if c.closed.Load() {
		return nil, wrapError(TransportHTTP, ErrClosed)
	}
	if f == nil {
		return nil, wrapError(TransportHTTP, ErrNilFrame)
	}
	start := time.Now()

	req, err := httpc.NewJSONRequest(ctx, http.MethodPost, c.url, NewFrameRequest(f))
	if err != nil {
		return nil, wrapError(TransportHTTP, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, wrapError(TransportHTTP, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, wrapError(TransportHTTP, parseError(resp))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, wrapError(TransportHTTP, fmt.Errorf("decode response: %w", err))
	}
	result.LatencyMs = time.Since(start).Milliseconds()

	c.logger.Debug("frame classified",
		"label", result.Label,
		"confidence", result.Confidence,
		"bytes", f.Size(),
		"latency_ms", result.LatencyMs,
	)
	return &result, nil
}

// Close marks the client closed and drops idle connections.
func (c *HTTPClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.http.CloseIdleConnections()
	return nil
}

func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	// Services may reply {"error": "..."} or {"message": "..."}
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	message := strings.TrimSpace(string(body))
	if json.Unmarshal(body, &errResp) == nil {
		switch {
		case errResp.Error != "":
			message = errResp.Error
		case errResp.Message != "":
			message = errResp.Message
		}
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}

var _ Classifier = (*HTTPClient)(nil)

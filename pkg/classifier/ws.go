package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-livesampler/pkg/encoder"
)

// WSClient classifies frames over a persistent websocket. Each frame is one
// text message carrying the same JSON body as the HTTP transport; the
// service answers each with one JSON message.
//
// The connection is dialed on first use and re-dialed after any failure.
type WSClient struct {
	url     string
	timeout time.Duration
	dialer  *websocket.Dialer
	logger  *slog.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// wsReply is either a Result or an error message.
type wsReply struct {
	Result
	Error  string `json:"error,omitempty"`
	Status int    `json:"status,omitempty"`
}

// NewWSClient creates a websocket classifier.
func NewWSClient(opts ...Option) (*WSClient, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	u, err := streamURL(cfg.BaseURL, cfg.StreamPath)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &WSClient{
		url:     u,
		timeout: cfg.Timeout,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.Timeout,
		},
		logger: logger.With("component", "classifier.ws"),
	}, nil
}

// streamURL maps an http(s) base URL to the ws(s) stream endpoint.
func streamURL(base, path string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(base, "/"))
	if err != nil {
		return "", fmt.Errorf("classifier: parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("classifier: unsupported scheme %q", u.Scheme)
	}
	u.Path += path
	return u.String(), nil
}

// Name returns "ws".
func (c *WSClient) Name() string {
	return TransportWebsocket
}

// URL returns the stream endpoint.
func (c *WSClient) URL() string {
	return c.url
}

// Classify sends f and waits for the matching reply.
func (c *WSClient) Classify(ctx context.Context, f *encoder.Frame) (*Result, error) {
	if f == nil {
		return nil, wrapError(TransportWebsocket, ErrNilFrame)
	}
	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, wrapError(TransportWebsocket, ErrClosed)
	}

	conn, err := c.connect(ctx)
	if err != nil {
		return nil, wrapError(TransportWebsocket, err)
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)

	// Unblock the read if ctx is cancelled first.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := conn.WriteJSON(NewFrameRequest(f)); err != nil {
		c.drop()
		return nil, wrapError(TransportWebsocket, fmt.Errorf("write frame: %w", err))
	}

	var reply wsReply
	if err := conn.ReadJSON(&reply); err != nil {
		c.drop()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, wrapError(TransportWebsocket, ctxErr)
		}
		return nil, wrapError(TransportWebsocket, fmt.Errorf("read reply: %w", err))
	}

	if reply.Error != "" {
		status := reply.Status
		if status == 0 {
			status = 500
		}
		return nil, wrapError(TransportWebsocket, &APIError{StatusCode: status, Message: reply.Error})
	}

	result := reply.Result
	result.LatencyMs = time.Since(start).Milliseconds()
	return &result, nil
}

// connect returns the open connection, dialing if needed. Callers hold c.mu.
func (c *WSClient) connect(ctx context.Context) (*websocket.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.logger.Info("connected to classifier", "url", c.url)
	c.conn = conn
	return conn, nil
}

// drop discards a broken connection. Callers hold c.mu.
func (c *WSClient) drop() {
	if c.conn == nil {
		return
	}
	c.conn.Close()
	c.conn = nil
	c.logger.Warn("classifier connection dropped, will redial")
}

// Connected reports whether a connection is currently open.
func (c *WSClient) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close sends a close frame and shuts the connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}

var _ Classifier = (*WSClient)(nil)


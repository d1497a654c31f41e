// Package web provides the operator surface for a capture session: a small
// REST API for commands and reads plus websocket feeds for live status and
// preview frames.
package web

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-livesampler/pkg/classifier"
	"github.com/teslashibe/go-livesampler/pkg/device"
	"github.com/teslashibe/go-livesampler/pkg/hub"
	"github.com/teslashibe/go-livesampler/pkg/session"
	"github.com/teslashibe/go-livesampler/pkg/sink"
)

// Controller is the session surface the server drives.
type Controller interface {
	Start(ctx context.Context, c device.Constraints) error
	Stop() error
	SetRate(n int) error
	Status() session.Status
	LatestResult() *classifier.Result
	LatestError() *sink.ErrorState
}

// Config configures the server.
type Config struct {
	Port string

	// Constraints are used when a start request has no body.
	Constraints device.Constraints

	Logger *slog.Logger
}

// Server is the web operator server
type Server struct {
	app    *fiber.App
	port   string
	ctrl   Controller
	logger *slog.Logger

	defaults device.Constraints

	// Hubs for websocket broadcast
	statusHub  *hub.Hub
	previewHub *hub.Hub

	mu     sync.Mutex
	cancel context.CancelFunc

	// Seq of the newest status handed to the hub
	pubMu   sync.Mutex
	lastSeq uint64
	seeded  bool
}

// NewServer creates a new web server for ctrl
func NewServer(ctrl Controller, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		port:       cfg.Port,
		ctrl:       ctrl,
		logger:     logger.With("component", "web"),
		defaults:   cfg.Constraints.WithDefaults(),
		statusHub:  hub.New("status", hub.WithReplay(), hub.WithLogger(logger)),
		previewHub: hub.New("preview", hub.WithLogger(logger)),
	}

	app := fiber.New(fiber.Config{
		AppName:               "livesampler",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/presets", s.handlePresets)
	api.Get("/session", s.handleStatus)
	api.Post("/session/start", s.handleStart)
	api.Post("/session/stop", s.handleStop)
	api.Put("/session/rate", s.handleSetRate)
	api.Get("/session/result", s.handleResult)
	api.Get("/session/error", s.handleError)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/status", websocket.New(s.handleHubWS(s.statusHub)))
	app.Get("/ws/preview", websocket.New(s.handleHubWS(s.previewHub)))

	s.app = app
	return s
}

// Start runs the hubs and serves until Shutdown.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go s.statusHub.Run(ctx)
	go s.previewHub.Run(ctx)

	// Seed the replay slot so the first client gets a status immediately.
	s.PublishStatus(s.ctrl.Status())

	s.logger.Info("web server listening", "url", "http://localhost:"+s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("web server error", "error", err)
		}
	}()
}

// PublishStatus pushes a status snapshot to /ws/status clients. Snapshots
// older than the last one published are dropped, so viewers never settle
// on a stale state.
func (s *Server) PublishStatus(st session.Status) {
	s.publishStatus(st)
}

func (s *Server) publishStatus(st session.Status) bool {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	if s.seeded && st.Seq < s.lastSeq {
		return false
	}
	s.seeded = true
	s.lastSeq = st.Seq

	// Enqueued under pubMu so the hub sees snapshots in Seq order.
	if err := s.statusHub.BroadcastJSON(st); err != nil {
		s.logger.Warn("encode status", "error", err)
	}
	return true
}

// PublishFrame pushes an encoded frame to /ws/preview clients.
func (s *Server) PublishFrame(data []byte) {
	if s.previewHub.ClientCount() == 0 {
		return
	}
	s.previewHub.BroadcastBinary(data)
}

// StatusHub returns the status hub
func (s *Server) StatusHub() *hub.Hub {
	return s.statusHub
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	return s.app.Shutdown()
}

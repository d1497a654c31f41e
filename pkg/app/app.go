// Package app wires configuration, capture device, encoder, classifier,
// capture session and the web operator surface into one process.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-livesampler/internal/config"
	"github.com/teslashibe/go-livesampler/internal/debug"
	"github.com/teslashibe/go-livesampler/pkg/classifier"
	"github.com/teslashibe/go-livesampler/pkg/device"
	"github.com/teslashibe/go-livesampler/pkg/device/webcam"
	"github.com/teslashibe/go-livesampler/pkg/encoder"
	"github.com/teslashibe/go-livesampler/pkg/sampler"
	"github.com/teslashibe/go-livesampler/pkg/session"
	"github.com/teslashibe/go-livesampler/pkg/web"
)

// Device backends.
const (
	BackendWebcam = "webcam"
	BackendMock   = "mock"
)

// App is the livesampler orchestrator.
// It owns every component and their lifecycle.
type App struct {
	config config.Config
	logger *slog.Logger

	device     device.Device
	encoder    *encoder.Encoder
	classifier classifier.Classifier
	session    *session.Session

	// Web operator surface, nil when disabled
	webServer *web.Server
}

// New creates an application for cfg. The configuration is validated but
// nothing is started.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		config: cfg,
		logger: logger,
	}, nil
}

// Init builds all components.
// Call this after New() and before Run().
func (a *App) Init() error {
	a.logger.Info("livesampler initializing",
		"device", a.config.Device.Backend,
		"classifier", a.config.Classifier.APIBase,
		"transport", a.config.Classifier.Transport,
		"rate", a.config.Sampling.Rate,
	)

	dev, err := NewDevice(a.config.Device.Backend, a.logger)
	if err != nil {
		return fmt.Errorf("device: %w", err)
	}
	a.device = dev

	a.encoder, err = encoder.New(encoder.Config{
		Format:  encoder.Format(a.config.Encoder.Format),
		Quality: a.config.Encoder.Quality,
		Width:   a.config.Encoder.Width,
		Height:  a.config.Encoder.Height,
	})
	if err != nil {
		return fmt.Errorf("encoder: %w", err)
	}

	a.classifier, err = classifier.New(a.config.Classifier.Transport,
		classifier.WithBaseURL(a.config.Classifier.APIBase),
		classifier.WithTimeout(a.config.Classifier.Timeout),
		classifier.WithLogger(a.logger),
	)
	if err != nil {
		return fmt.Errorf("classifier: %w", err)
	}

	a.session, err = session.New(a.device, a.encoder, a.classifier,
		session.WithLogger(a.logger),
		session.WithSchedule(a.schedule()),
		session.WithRate(a.config.Sampling.Rate),
		session.WithDispatchTimeout(a.config.Classifier.Timeout),
		session.WithFrameObserver(a.publishFrame),
	)
	if err != nil {
		a.classifier.Close()
		return fmt.Errorf("session: %w", err)
	}

	if a.config.Web.Enabled {
		a.webServer = web.NewServer(a.session, web.Config{
			Port:        a.config.Web.Port,
			Constraints: a.constraints(),
			Logger:      a.logger,
		})
		a.session.OnUpdate(a.webServer.PublishStatus)
	}

	debug.Log(a.logger, "components ready",
		"schedule_period", a.config.Sampling.Period,
		"schedule_floor", a.config.Sampling.Floor,
		"interval", a.session.Interval(),
	)
	return nil
}

// Run starts the web surface (and sampling, with autostart) and blocks
// until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.session == nil {
		return fmt.Errorf("app: Run called before Init")
	}

	if a.webServer != nil {
		a.webServer.StartAsync()
	}

	if a.config.Sampling.Autostart {
		if err := a.session.Start(ctx, a.constraints()); err != nil {
			// The operator can retry from the web surface.
			a.logger.Warn("autostart failed", "error", err)
		} else {
			a.logger.Info("sampling started",
				"session_id", a.session.ID(),
				"interval", a.session.Interval(),
			)
		}
	}

	<-ctx.Done()
	return nil
}

// Session returns the capture session. It is nil before Init.
func (a *App) Session() *session.Session {
	return a.session
}

// Shutdown stops sampling, releases the device and closes transports.
func (a *App) Shutdown() {
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.logger.Warn("session close", "error", err)
		}
	}
	if a.classifier != nil {
		a.classifier.Close()
	}
	if a.webServer != nil {
		a.webServer.Shutdown()
	}
	a.logger.Info("livesampler stopped")
}

func (a *App) schedule() sampler.Schedule {
	s := a.config.Sampling
	return sampler.Schedule{
		Period:  s.Period,
		Floor:   s.Floor,
		MinRate: s.MinRate,
		MaxRate: s.MaxRate,
	}
}

func (a *App) constraints() device.Constraints {
	d := a.config.Device
	return device.Constraints{
		DeviceID: d.ID,
		Width:    d.Width,
		Height:   d.Height,
		FPS:      d.FPS,
	}.WithDefaults()
}

// publishFrame feeds accepted frames to the preview websocket.
func (a *App) publishFrame(f *encoder.Frame) {
	if a.webServer != nil {
		a.webServer.PublishFrame(f.Data)
	}
}

// NewDevice creates the capture device for backend.
func NewDevice(backend string, logger *slog.Logger) (device.Device, error) {
	switch backend {
	case BackendMock:
		return device.NewMock(logger), nil
	case BackendWebcam, "":
		return webcam.New(logger), nil
	default:
		return nil, fmt.Errorf("unsupported device backend: %s", backend)
	}
}

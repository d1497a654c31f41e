package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-livesampler/pkg/device"
	"github.com/teslashibe/go-livesampler/pkg/hub"
	"github.com/teslashibe/go-livesampler/pkg/sampler"
	"github.com/teslashibe/go-livesampler/pkg/session"
)

// RateRequest is the body of PUT /api/session/rate
type RateRequest struct {
	Rate *int `json:"rate"`
}

// StartRequest is the optional body of POST /api/session/start. Preset is
// applied first; explicit fields win over it.
type StartRequest struct {
	Preset string `json:"preset,omitempty"`
	device.Constraints
}

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"hubs":   []hub.Stats{s.statusHub.Stats(), s.previewHub.Stats()},
	})
}

// handleStatus returns the session status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Status())
}

// handleStart starts sampling. An optional JSON body overrides the default
// device constraints field by field.
func (s *Server) handleStart(c *fiber.Ctx) error {
	cons, err := s.parseStart(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid constraints: " + err.Error(),
		})
	}

	if err := s.ctrl.Start(c.UserContext(), cons); err != nil {
		var derr *session.DeviceError
		switch {
		case errors.As(err, &derr):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": err.Error(),
				"kind":  "device",
			})
		case errors.Is(err, session.ErrClosed):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
	}
	return c.JSON(s.ctrl.Status())
}

func (s *Server) parseStart(c *fiber.Ctx) (device.Constraints, error) {
	if len(c.Body()) == 0 {
		return s.defaults, nil
	}

	req := StartRequest{Constraints: s.defaults}
	if err := c.BodyParser(&req); err != nil {
		return device.Constraints{}, err
	}
	if req.Preset == "" {
		return req.Constraints, nil
	}

	base, err := s.defaults.WithPreset(req.Preset)
	if err != nil {
		return device.Constraints{}, err
	}
	// Parse again on top of the preset so explicit fields win.
	req = StartRequest{Constraints: base}
	if err := c.BodyParser(&req); err != nil {
		return device.Constraints{}, err
	}
	return req.Constraints, nil
}

// handlePresets lists the capture presets
func (s *Server) handlePresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"presets": device.Presets(),
		"names":   device.PresetNames(),
		"default": s.defaults,
	})
}

// handleStop stops sampling
func (s *Server) handleStop(c *fiber.Ctx) error {
	if err := s.ctrl.Stop(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(s.ctrl.Status())
}

// handleSetRate changes the sampling rate
func (s *Server) handleSetRate(c *fiber.Ctx) error {
	var req RateRequest
	if err := c.BodyParser(&req); err != nil || req.Rate == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": `body must be {"rate": n}`,
		})
	}

	if err := s.ctrl.SetRate(*req.Rate); err != nil {
		status := fiber.StatusInternalServerError
		if errors.Is(err, sampler.ErrRateOutOfRange) {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(s.ctrl.Status())
}

// handleResult returns the latest result, or 204 if there is none
func (s *Server) handleResult(c *fiber.Ctx) error {
	r := s.ctrl.LatestResult()
	if r == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(r)
}

// handleError returns the latest error, or 204 if there is none
func (s *Server) handleError(c *fiber.Ctx) error {
	e := s.ctrl.LatestError()
	if e == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(e)
}

// handleHubWS attaches a websocket connection to h until it closes
func (s *Server) handleHubWS(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		client := hub.NewClient(h, conn)
		if client == nil {
			conn.Close()
			return
		}
		client.Run()
	}
}

var _ Controller = (*session.Session)(nil)

package device

import (
	"context"
	"image"
	"image/color"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Mock is a synthetic device for tests and -mock runs.
// Each snapshot is a gradient with a vertical bar that moves one step per
// frame, so consecutive frames differ.
type Mock struct {
	logger *slog.Logger

	// OpenErr, when set, is returned by Open.
	OpenErr error

	// SnapshotFunc, when set, replaces the synthetic frame generator.
	SnapshotFunc func(n int64) (image.Image, error)

	// ReleaseErr, when set, is returned by the first Release of each handle.
	// The handle is still marked released.
	ReleaseErr error

	mu   sync.Mutex
	open *mockHandle

	opens     atomic.Int64
	releases  atomic.Int64
	snapshots atomic.Int64
}

// MockOption configures a Mock.
type MockOption func(*Mock)

// WithOpenError makes every Open fail with err.
func WithOpenError(err error) MockOption {
	return func(m *Mock) { m.OpenErr = err }
}

// WithSnapshotFunc overrides frame generation.
func WithSnapshotFunc(fn func(n int64) (image.Image, error)) MockOption {
	return func(m *Mock) { m.SnapshotFunc = fn }
}

// NewMock creates a mock device.
func NewMock(logger *slog.Logger, opts ...MockOption) *Mock {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mock{logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open returns a new handle unless OpenErr is set.
func (m *Mock) Open(ctx context.Context, c Constraints) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}

	c = c.WithDefaults()
	h := &mockHandle{dev: m, width: c.Width, height: c.Height}

	m.mu.Lock()
	m.open = h
	m.mu.Unlock()
	m.opens.Add(1)

	m.logger.Info("mock device opened", "device_id", c.DeviceID, "width", c.Width, "height", c.Height)
	return h, nil
}

// Name returns "mock".
func (m *Mock) Name() string {
	return "mock"
}

// Stats returns device counters.
func (m *Mock) Stats() Stats {
	m.mu.Lock()
	open := m.open != nil && !m.open.released.Load()
	m.mu.Unlock()

	return Stats{
		Opens:     m.opens.Load(),
		Releases:  m.releases.Load(),
		Snapshots: m.snapshots.Load(),
		Open:      open,
		Backend:   "mock",
	}
}

// Opens returns how many handles were opened.
func (m *Mock) Opens() int64 { return m.opens.Load() }

// Releases returns how many handles were released.
func (m *Mock) Releases() int64 { return m.releases.Load() }

// Snapshots returns how many frames were taken.
func (m *Mock) Snapshots() int64 { return m.snapshots.Load() }

type mockHandle struct {
	dev      *Mock
	width    int
	height   int
	released atomic.Bool
	frame    atomic.Int64
}

func (h *mockHandle) Snapshot() (image.Image, error) {
	if h.released.Load() {
		return nil, ErrReleased
	}
	n := h.frame.Add(1)
	h.dev.snapshots.Add(1)

	if h.dev.SnapshotFunc != nil {
		return h.dev.SnapshotFunc(n)
	}
	return syntheticFrame(h.width, h.height, n), nil
}

func (h *mockHandle) Release() error {
	if !h.released.CompareAndSwap(false, true) {
		return ErrReleased
	}
	h.dev.releases.Add(1)
	h.dev.logger.Info("mock device released")
	return h.dev.ReleaseErr
}

func syntheticFrame(w, h int, n int64) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	bar := int(n*8) % w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 96, 255}
			if x >= bar && x < bar+8 {
				c = color.RGBA{255, 255, 255, 255}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

var _ Device = (*Mock)(nil)

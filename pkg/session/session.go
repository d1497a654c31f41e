// Package session owns a live sampling run: it acquires the capture device,
// drives the sampler, and pushes each sampled frame through the encoder and
// the single-flight dispatch gate to the classifier.
//
// Lifecycle commands (Start, Stop, Close) are serialized. Reads (State,
// Status, LatestResult, ...) never block on I/O and have no side effects.
//
// A dispatch that is in flight when the session stops is allowed to finish,
// but its outcome is discarded: every run carries an epoch, and results are
// recorded only while the session is still Active in the epoch that produced
// them.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-livesampler/internal/debug"
	"github.com/teslashibe/go-livesampler/pkg/classifier"
	"github.com/teslashibe/go-livesampler/pkg/device"
	"github.com/teslashibe/go-livesampler/pkg/encoder"
	"github.com/teslashibe/go-livesampler/pkg/gate"
	"github.com/teslashibe/go-livesampler/pkg/sampler"
	"github.com/teslashibe/go-livesampler/pkg/sink"
)

// closeDrainTimeout bounds how long Close waits for a cancelled dispatch.
const closeDrainTimeout = 5 * time.Second

// Session is a capture session. Create one with New.
type Session struct {
	dev      device.Device
	enc      *encoder.Encoder
	cls      classifier.Classifier
	schedule sampler.Schedule
	timeout  time.Duration
	logger   *slog.Logger
	onFrame  func(*encoder.Frame)

	gate    *gate.Gate
	sink    *sink.Sink
	sampler *sampler.Sampler

	baseCtx context.Context
	cancel  context.CancelFunc

	// lifecycle serializes Start, Stop, Close and device-loss aborts.
	lifecycle sync.Mutex

	mu        sync.RWMutex
	state     State
	handle    device.Handle
	epoch     uint64
	id        string
	rate      int
	startedAt time.Time
	closed    bool
	onUpdate  func(Status)

	// Updates are delivered in order by one notifier goroutine. A pending
	// signal in changed coalesces bursts into one fresh snapshot.
	version  atomic.Uint64
	changed  chan struct{}
	quit     chan struct{}
	notified chan struct{}
}

// New creates an idle session.
func New(dev device.Device, enc *encoder.Encoder, cls classifier.Classifier, opts ...Option) (*Session, error) {
	if dev == nil || enc == nil || cls == nil {
		return nil, errors.New("session: device, encoder and classifier are required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.schedule.Validate(o.rate); err != nil {
		return nil, fmt.Errorf("session: initial rate: %w", err)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		dev:      dev,
		enc:      enc,
		cls:      cls,
		schedule: o.schedule,
		timeout:  o.timeout,
		onFrame:  o.onFrame,
		logger:   o.logger.With("component", "session"),
		gate:     gate.New(),
		sink:     sink.New(),
		baseCtx:  ctx,
		cancel:   cancel,
		rate:     o.rate,
		changed:  make(chan struct{}, 1),
		quit:     make(chan struct{}),
		notified: make(chan struct{}),
	}
	s.sampler = sampler.New(o.schedule.Interval(o.rate), s.tick)
	go s.notifyLoop()
	return s, nil
}

// Start acquires the device and begins sampling. Starting an active session
// is a no-op. If the device cannot be acquired the session stays Idle, the
// failure is recorded as the latest error and returned as *DeviceError.
func (s *Session) Start(ctx context.Context, c device.Constraints) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.RLock()
	closed, state := s.closed, s.state
	s.mu.RUnlock()

	if closed {
		return ErrClosed
	}
	if state == Active {
		return nil
	}

	s.sink.ResetError()

	h, err := s.dev.Open(ctx, c)
	if err != nil {
		derr := &DeviceError{Op: "open", Err: err}
		s.sink.RecordError(sink.KindDevice, derr)
		s.logger.Error("device acquisition failed", "device", s.dev.Name(), "error", err)
		s.notify()
		return derr
	}

	s.mu.Lock()
	s.handle = h
	s.state = Active
	s.epoch++
	s.id = uuid.NewString()
	s.startedAt = time.Now()
	interval := s.schedule.Interval(s.rate)
	id, rate := s.id, s.rate
	s.sampler.SetInterval(interval)
	s.sampler.Start()
	s.mu.Unlock()

	s.logger.Info("session started",
		"session_id", id,
		"device", s.dev.Name(),
		"rate", rate,
		"interval", interval,
	)
	s.notify()
	return nil
}

// Stop halts sampling and releases the device. Stopping an idle session is
// a no-op. An outstanding dispatch keeps running; its result is discarded.
func (s *Session) Stop() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.stopLocked("stop")
	return nil
}

// stopLocked tears down an active run. Callers hold s.lifecycle.
func (s *Session) stopLocked(reason string) {
	s.mu.RLock()
	active := s.state == Active
	s.mu.RUnlock()
	if !active {
		return
	}

	// No tick runs after this returns.
	s.sampler.Stop()

	s.mu.Lock()
	h := s.handle
	id := s.id
	s.handle = nil
	s.state = Idle
	s.epoch++
	s.mu.Unlock()

	if h != nil {
		if err := h.Release(); err != nil {
			s.logger.Warn("device release failed", "session_id", id, "error", err)
		}
	}

	s.logger.Info("session stopped", "session_id", id, "reason", reason, "in_flight", s.gate.Busy())
	s.notify()
}

// abort stops the run identified by epoch after a fatal device error.
func (s *Session) abort(epoch uint64, err error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.RLock()
	current := s.state == Active && s.epoch == epoch
	s.mu.RUnlock()
	if !current {
		return
	}

	s.sink.RecordError(sink.KindDevice, &DeviceError{Op: "snapshot", Err: err})
	s.logger.Error("device lost, stopping session", "error", err)
	s.stopLocked("device lost")
}

// SetRate changes the sampling rate. Out-of-range rates are rejected and
// leave the current rate unchanged. On an active session the next tick
// fires one new interval from now.
func (s *Session) SetRate(n int) error {
	if err := s.schedule.Validate(n); err != nil {
		return err
	}
	interval := s.schedule.Interval(n)

	s.mu.Lock()
	s.rate = n
	s.sampler.SetInterval(interval)
	s.mu.Unlock()

	s.logger.Info("rate changed", "rate", n, "interval", interval)
	s.notify()
	return nil
}

// Close stops the session, cancels any outstanding dispatch and waits for
// it to return. The session cannot be started again.
func (s *Session) Close() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.stopLocked("close")
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), closeDrainTimeout)
	defer cancel()
	err := s.gate.Wait(ctx)

	// Flush the final update, then stop the notifier.
	close(s.quit)
	<-s.notified

	if err != nil {
		return fmt.Errorf("session: waiting for in-flight dispatch: %w", err)
	}
	return nil
}

// tick runs on the sampler goroutine.
func (s *Session) tick(seq uint64) {
	// Drop before capturing: a busy gate costs nothing.
	if s.gate.Busy() {
		s.gate.Drop()
		debug.TickLog(s.logger, "tick dropped", "seq", seq)
		return
	}

	s.mu.RLock()
	if s.state != Active || s.handle == nil {
		s.mu.RUnlock()
		return
	}
	h, epoch, id := s.handle, s.epoch, s.id
	s.mu.RUnlock()

	img, err := h.Snapshot()
	if err != nil {
		if errors.Is(err, device.ErrDeviceLost) {
			// Stop waits for this tick, so the abort must not run inline.
			go s.abort(epoch, err)
			return
		}
		s.gate.Drop()
		s.sink.RecordError(sink.KindDevice, &DeviceError{Op: "snapshot", Err: err})
		s.logger.Warn("snapshot failed", "session_id", id, "error", err)
		s.notify()
		return
	}
	s.sink.ClearError(sink.KindDevice)

	frame, err := s.enc.Encode(img)
	if err != nil {
		s.gate.Drop()
		s.sink.RecordError(sink.KindEncode, err)
		s.logger.Warn("encode failed", "session_id", id, "error", err)
		s.notify()
		return
	}
	if s.sink.ClearError(sink.KindEncode) {
		s.notify()
	}

	dispatchID := uuid.NewString()
	outcome := s.gate.TryDispatch(s.baseCtx, func(ctx context.Context) {
		s.dispatch(ctx, epoch, dispatchID, frame)
	})
	if outcome == gate.Accepted && s.onFrame != nil {
		s.onFrame(frame)
	}
	debug.TickLog(s.logger, "tick",
		"seq", seq,
		"outcome", outcome,
		"dispatch_id", dispatchID,
		"bytes", frame.Size(),
	)
}

// dispatch runs on a gate goroutine.
func (s *Session) dispatch(ctx context.Context, epoch uint64, dispatchID string, frame *encoder.Frame) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.cls.Classify(ctx, frame)

	// Hold the read lock while recording so Stop cannot flip state between
	// the check and the write.
	s.mu.RLock()
	current := s.state == Active && s.epoch == epoch
	if current {
		if err != nil {
			s.sink.RecordError(sink.KindDispatch, err)
		} else {
			if res.Source == "" {
				res.Source = classifier.OriginWebcam
			}
			s.sink.Record(*res)
			s.sink.ClearError(sink.KindDispatch)
		}
	}
	s.mu.RUnlock()

	if !current {
		debug.TickLog(s.logger, "discarding stale dispatch outcome", "dispatch_id", dispatchID)
		return
	}
	if err != nil {
		s.logger.Warn("dispatch failed", "dispatch_id", dispatchID, "error", err)
	} else {
		debug.TickLog(s.logger, "dispatch completed",
			"dispatch_id", dispatchID,
			"label", res.Label,
			"confidence", res.Confidence,
			"latency_ms", res.LatencyMs,
		)
	}
	s.notify()
}

// OnUpdate registers a callback fired after every state, rate, result or
// error change. Calls come from a single goroutine, in order; a burst of
// changes may be folded into one call carrying the latest snapshot. fn must
// not call Start, Stop or Close.
func (s *Session) OnUpdate(fn func(Status)) {
	s.mu.Lock()
	s.onUpdate = fn
	s.mu.Unlock()
}

func (s *Session) notify() {
	s.version.Add(1)
	select {
	case s.changed <- struct{}{}:
	default:
		// A delivery is already pending and will read the new state.
	}
}

func (s *Session) notifyLoop() {
	defer close(s.notified)
	for {
		select {
		case <-s.changed:
			s.deliver()
		case <-s.quit:
			select {
			case <-s.changed:
				s.deliver()
			default:
			}
			return
		}
	}
}

func (s *Session) deliver() {
	s.mu.RLock()
	fn := s.onUpdate
	s.mu.RUnlock()
	if fn != nil {
		fn(s.Status())
	}
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ID returns the current run's identifier, or "" before the first Start.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// Rate returns the current sampling rate.
func (s *Session) Rate() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rate
}

// Interval returns the tick interval for the current rate.
func (s *Session) Interval() time.Duration {
	return s.schedule.Interval(s.Rate())
}

// Schedule returns the rate-to-interval schedule.
func (s *Session) Schedule() sampler.Schedule {
	return s.schedule
}

// InFlight reports whether a dispatch is outstanding.
func (s *Session) InFlight() bool {
	return s.gate.Busy()
}

// LatestResult returns the most recent recorded result, or nil.
func (s *Session) LatestResult() *classifier.Result {
	return s.sink.Result()
}

// LatestError returns the most recent recorded error, or nil.
func (s *Session) LatestError() *sink.ErrorState {
	return s.sink.Error()
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	// Read the version before any state so a snapshot never claims a
	// newer Seq than the state it carries.
	seq := s.version.Load()

	s.mu.RLock()
	st := Status{
		Seq:       seq,
		SessionID: s.id,
		State:     s.state,
		Rate:      s.rate,
	}
	if s.state == Active {
		t := s.startedAt
		st.StartedAt = &t
	}
	s.mu.RUnlock()

	st.IntervalMs = s.schedule.Interval(st.Rate).Milliseconds()
	st.InFlight = s.gate.Busy()
	st.Device = s.dev.Name()
	st.Classifier = s.cls.Name()
	st.Ticks = s.sampler.Ticks()
	st.Dispatch = s.gate.Stats()
	st.Result, st.Error = s.sink.Read()
	return st
}

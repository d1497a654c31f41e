package session

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-livesampler/pkg/encoder"
	"github.com/teslashibe/go-livesampler/pkg/sampler"
)

// DefaultDispatchTimeout bounds one classification round trip.
const DefaultDispatchTimeout = 10 * time.Second

// DefaultRate is the initial sampling rate.
const DefaultRate = 3

type options struct {
	logger   *slog.Logger
	schedule sampler.Schedule
	rate     int
	timeout  time.Duration
	onFrame  func(*encoder.Frame)
}

// Option configures a Session.
type Option func(*options)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSchedule sets the rate-to-interval schedule.
func WithSchedule(s sampler.Schedule) Option {
	return func(o *options) { o.schedule = s }
}

// WithRate sets the initial rate. It must be valid for the schedule.
func WithRate(n int) Option {
	return func(o *options) { o.rate = n }
}

// WithDispatchTimeout bounds each classification call.
func WithDispatchTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithFrameObserver registers fn to receive every frame accepted for
// dispatch. It runs on the sampler goroutine and must not block.
func WithFrameObserver(fn func(*encoder.Frame)) Option {
	return func(o *options) { o.onFrame = fn }
}

func defaultOptions() options {
	return options{
		logger:   slog.Default(),
		schedule: sampler.DefaultSchedule(),
		rate:     DefaultRate,
		timeout:  DefaultDispatchTimeout,
	}
}

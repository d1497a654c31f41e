package sampler

import (
	"errors"
	"fmt"
	"time"
)

// ErrRateOutOfRange is returned for rates outside the schedule's range.
var ErrRateOutOfRange = errors.New("sampler: rate out of range")

// Schedule maps a user-facing rate to a tick interval:
//
//	Interval(rate) = max(Floor, Period/rate)
//
// With the default Period of one second, rate is frames per second.
type Schedule struct {
	Period  time.Duration
	Floor   time.Duration
	MinRate int
	MaxRate int
}

// DefaultSchedule is 1..8 frames per second, never faster than one tick
// every 200ms.
func DefaultSchedule() Schedule {
	return Schedule{
		Period:  time.Second,
		Floor:   200 * time.Millisecond,
		MinRate: 1,
		MaxRate: 8,
	}
}

// LegacySchedule reproduces the 100ms period used by the browser client,
// under which every rate in 1..8 resolves to the 200ms floor.
func LegacySchedule() Schedule {
	s := DefaultSchedule()
	s.Period = 100 * time.Millisecond
	return s
}

// Interval returns the tick interval for rate. Rates below 1 are treated as 1.
func (s Schedule) Interval(rate int) time.Duration {
	if rate < 1 {
		rate = 1
	}
	d := s.Period / time.Duration(rate)
	if d < s.Floor {
		d = s.Floor
	}
	return d
}

// Validate reports whether rate is inside [MinRate, MaxRate].
func (s Schedule) Validate(rate int) error {
	if rate < s.MinRate || rate > s.MaxRate {
		return fmt.Errorf("%w: %d not in %d..%d", ErrRateOutOfRange, rate, s.MinRate, s.MaxRate)
	}
	return nil
}

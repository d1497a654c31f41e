// Package sampler produces periodic ticks at an adjustable interval.
//
// A Sampler owns a single goroutine that calls the tick function
// sequentially. Stop is synchronous: once it returns, no tick is running
// and none will run until the sampler is started again.
package sampler

import (
	"sync"
	"sync/atomic"
	"time"
)

// TickFunc is called once per tick with a sequence number starting at 1
// for each run.
type TickFunc func(seq uint64)

// Sampler is a restartable, cancellable ticker.
type Sampler struct {
	onTick TickFunc

	mu       sync.Mutex
	interval time.Duration
	running  bool
	reset    chan struct{}
	stop     chan struct{}
	done     chan struct{}

	ticks atomic.Uint64
}

// New creates a stopped sampler.
func New(interval time.Duration, onTick TickFunc) *Sampler {
	return &Sampler{
		interval: interval,
		onTick:   onTick,
	}
}

// Start begins ticking. The first tick fires one interval from now.
// Calling Start on a running sampler is a no-op.
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.reset = make(chan struct{}, 1)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(positive(s.interval), s.reset, s.stop, s.done)
}

// SetInterval changes the interval. On a running sampler the next tick
// fires one new interval from now; ticks already delivered are unaffected.
func (s *Sampler) SetInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.interval = d
	if !s.running {
		return
	}
	select {
	case s.reset <- struct{}{}:
	default:
	}
}

// Interval returns the current interval.
func (s *Sampler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Running reports whether the sampler is ticking.
func (s *Sampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop halts ticking and waits for an in-progress tick to return.
// It must not be called from inside the tick function.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	close(stop)
	s.mu.Unlock()

	<-done
}

// Ticks returns the number of ticks delivered since the sampler was created.
func (s *Sampler) Ticks() uint64 {
	return s.ticks.Load()
}

func (s *Sampler) loop(interval time.Duration, reset, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-stop:
			return
		case <-reset:
			ticker.Reset(positive(s.Interval()))
		case <-ticker.C:
			// stop and a tick can be ready together
			select {
			case <-stop:
				return
			default:
			}
			seq++
			s.ticks.Add(1)
			s.onTick(seq)
		}
	}
}

// positive guards time.NewTicker and Reset, which panic on non-positive intervals.
func positive(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Millisecond
	}
	return d
}

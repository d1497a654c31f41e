// Package sink holds the most recent classification result and the most
// recent error. Both are last-value slots: nothing is retained beyond the
// latest write, and the two slots are independent.
package sink

import (
	"sync"
	"time"

	"github.com/teslashibe/go-livesampler/pkg/classifier"
)

// ErrorKind identifies the pipeline step that failed.
type ErrorKind string

const (
	KindDevice   ErrorKind = "device"
	KindEncode   ErrorKind = "encode"
	KindDispatch ErrorKind = "dispatch"
)

// ErrorState is the latest failure.
type ErrorState struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`

	Err error `json:"-"`
}

// Error implements the error interface.
func (e *ErrorState) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Unwrap returns the recorded error.
func (e *ErrorState) Unwrap() error {
	return e.Err
}

// Sink is safe for concurrent use. Read returns copies.
type Sink struct {
	mu     sync.RWMutex
	result *classifier.Result
	err    *ErrorState

	now func() time.Time
}

// New creates an empty sink.
func New() *Sink {
	return &Sink{now: time.Now}
}

// Record replaces the result slot. The error slot is left untouched.
func (s *Sink) Record(r classifier.Result) {
	s.mu.Lock()
	s.result = &r
	s.mu.Unlock()
}

// RecordError replaces the error slot. A nil err is ignored.
func (s *Sink) RecordError(kind ErrorKind, err error) {
	if err == nil {
		return
	}
	st := &ErrorState{
		Kind:    kind,
		Message: err.Error(),
		At:      s.now(),
		Err:     err,
	}
	s.mu.Lock()
	s.err = st
	s.mu.Unlock()
}

// ClearError empties the error slot if it holds an error of the given kind.
// It reports whether anything was cleared.
func (s *Sink) ClearError(kind ErrorKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err == nil || s.err.Kind != kind {
		return false
	}
	s.err = nil
	return true
}

// ResetError empties the error slot regardless of kind.
func (s *Sink) ResetError() {
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
}

// Result returns the latest result, or nil.
func (s *Sink) Result() *classifier.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return nil
	}
	r := *s.result
	return &r
}

// Error returns the latest error, or nil.
func (s *Sink) Error() *ErrorState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err == nil {
		return nil
	}
	e := *s.err
	return &e
}

// Read returns both slots from one consistent snapshot.
func (s *Sink) Read() (*classifier.Result, *ErrorState) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r *classifier.Result
	if s.result != nil {
		c := *s.result
		r = &c
	}
	var e *ErrorState
	if s.err != nil {
		c := *s.err
		e = &c
	}
	return r, e
}

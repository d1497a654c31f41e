package session

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-livesampler/pkg/classifier"
	"github.com/teslashibe/go-livesampler/pkg/gate"
	"github.com/teslashibe/go-livesampler/pkg/sink"
)

// State is the session lifecycle state.
type State int

const (
	Idle State = iota
	Active
)

// String returns "idle" or "active".
func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "idle"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "active":
		*s = Active
	case "idle":
		*s = Idle
	default:
		return fmt.Errorf("session: unknown state %q", b)
	}
	return nil
}

// Status is a read-only snapshot of the session. Seq grows with every
// change; a snapshot with a higher Seq is never older.
type Status struct {
	Seq        uint64     `json:"seq"`
	SessionID  string     `json:"session_id,omitempty"`
	State      State      `json:"state"`
	Rate       int        `json:"rate"`
	IntervalMs int64      `json:"interval_ms"`
	InFlight   bool       `json:"in_flight"`
	Device     string     `json:"device"`
	Classifier string     `json:"classifier"`
	StartedAt  *time.Time `json:"started_at,omitempty"`

	Ticks    uint64     `json:"ticks"`
	Dispatch gate.Stats `json:"dispatch"`

	Result *classifier.Result `json:"result,omitempty"`
	Error  *sink.ErrorState   `json:"error,omitempty"`
}

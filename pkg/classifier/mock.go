package classifier

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-livesampler/pkg/encoder"
)

// Mock implements Classifier for testing and -mock runs.
type Mock struct {
	// ClassifyFunc is called when Classify is invoked.
	ClassifyFunc func(ctx context.Context, f *encoder.Frame) (*Result, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a Classify invocation.
type MockCall struct {
	FileName string
	Bytes    int
	Time     time.Time
}

// NewMock creates a mock that labels every frame "saudavel" with 0.9
// confidence.
func NewMock() *Mock {
	return &Mock{
		ClassifyFunc: func(ctx context.Context, f *encoder.Frame) (*Result, error) {
			return &Result{
				Label:        "saudavel",
				Confidence:   0.9,
				ModelVersion: "mock-1",
				Timestamp:    time.Now().UTC().Format(time.RFC3339),
				Source:       OriginWebcam,
			}, nil
		},
	}
}

// Classify calls ClassifyFunc and records the call.
func (m *Mock) Classify(ctx context.Context, f *encoder.Frame) (*Result, error) {
	if f == nil {
		return nil, wrapError("mock", ErrNilFrame)
	}
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{FileName: f.Filename(), Bytes: f.Size(), Time: time.Now()})
	m.mu.Unlock()

	if m.ClassifyFunc == nil {
		return nil, wrapError("mock", ErrClosed)
	}
	return m.ClassifyFunc(ctx, f)
}

// Name returns "mock".
func (m *Mock) Name() string {
	return "mock"
}

// Close calls CloseFunc if set.
func (m *Mock) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns a copy of the recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Classify calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ Classifier = (*Mock)(nil)

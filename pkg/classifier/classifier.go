// Package classifier sends encoded frames to the remote classification
// service and decodes its verdicts.
//
// Two transports are provided: HTTPClient posts one JSON request per frame,
// WSClient keeps a websocket open and exchanges one message pair per frame.
// Neither retries; a failed frame is superseded by the next tick's frame.
package classifier

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-livesampler/pkg/encoder"
)

// Origin tags reported in Result.Source.
const (
	OriginWebcam = "webcam"
	OriginUpload = "upload"
)

// Result is the classifier's verdict for one frame.
type Result struct {
	Label        string  `json:"predictedLabel"`
	Confidence   float64 `json:"confidence"`
	ModelVersion string  `json:"modelVersion"`
	Timestamp    string  `json:"timestamp"`
	Source       string  `json:"source"`

	// LatencyMs is measured locally and never sent by the service.
	LatencyMs int64 `json:"latencyMs,omitempty"`
}

// Live reports whether the result came from a live sample.
func (r *Result) Live() bool {
	return r.Source == OriginWebcam
}

// FrameRequest is the body sent per frame.
type FrameRequest struct {
	ImageBase64 string `json:"imageBase64"`
	FileName    string `json:"fileName"`
}

// NewFrameRequest builds the request body for f.
func NewFrameRequest(f *encoder.Frame) FrameRequest {
	return FrameRequest{
		ImageBase64: f.Base64(),
		FileName:    f.Filename(),
	}
}

// Classifier classifies encoded frames.
type Classifier interface {
	// Classify sends f and waits for the verdict. Failures are returned as
	// *DispatchError.
	Classify(ctx context.Context, f *encoder.Frame) (*Result, error)

	// Name returns the transport name ("http", "ws", "mock").
	Name() string

	// Close releases transport resources.
	Close() error
}

// Transport names.
const (
	TransportHTTP      = "http"
	TransportWebsocket = "ws"
)

// New creates a classifier for the named transport.
func New(transport string, opts ...Option) (Classifier, error) {
	switch transport {
	case TransportHTTP, "":
		return NewHTTPClient(opts...)
	case TransportWebsocket:
		return NewWSClient(opts...)
	default:
		return nil, fmt.Errorf("classifier: unsupported transport %q", transport)
	}
}

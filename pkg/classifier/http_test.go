package classifier

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/teslashibe/go-livesampler/pkg/encoder"
)

func testFrame(t *testing.T) *encoder.Frame {
	t.Helper()
	enc, err := encoder.New(encoder.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	f, err := enc.Encode(image.NewRGBA(image.Rect(0, 0, 64, 48)))
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestHTTPClientClassify(t *testing.T) {
	frame := testFrame(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify/webcam-frame" {
			t.Errorf("Expected /classify/webcam-frame, got %s", r.URL.Path)
		}
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected application/json, got %s", ct)
		}

		var req FrameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.FileName != "frame.jpg" {
			t.Errorf("Expected frame.jpg, got %s", req.FileName)
		}
		data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			t.Errorf("imageBase64 is not base64: %v", err)
		}
		if len(data) != frame.Size() {
			t.Errorf("Expected %d bytes, got %d", frame.Size(), len(data))
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"predictedLabel":"doente","confidence":0.82,"modelVersion":"v3","timestamp":"2025-01-01T00:00:00Z","source":"webcam"}`))
	}))
	defer server.Close()

	client, err := NewHTTPClient(WithBaseURL(server.URL + "/"))
	if err != nil {
		t.Fatalf("NewHTTPClient failed: %v", err)
	}
	defer client.Close()

	res, err := client.Classify(context.Background(), frame)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if res.Label != "doente" {
		t.Errorf("Expected doente, got %s", res.Label)
	}
	if res.Confidence != 0.82 {
		t.Errorf("Expected 0.82, got %f", res.Confidence)
	}
	if res.ModelVersion != "v3" || !res.Live() {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestHTTPClientNonSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"model loading"}`))
	}))
	defer server.Close()

	client, _ := NewHTTPClient(WithBaseURL(server.URL))
	_, err := client.Classify(context.Background(), testFrame(t))
	if err == nil {
		t.Fatal("Expected error")
	}

	var dispErr *DispatchError
	if !errors.As(err, &dispErr) {
		t.Fatalf("Expected *DispatchError, got %T", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != 503 || !apiErr.IsServerError() {
		t.Errorf("Expected 503, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "model loading" {
		t.Errorf("Expected 'model loading', got %q", apiErr.Message)
	}
}

func TestHTTPClientBadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client, _ := NewHTTPClient(WithBaseURL(server.URL))
	_, err := client.Classify(context.Background(), testFrame(t))

	var dispErr *DispatchError
	if !errors.As(err, &dispErr) {
		t.Fatalf("Expected *DispatchError, got %v", err)
	}
}

func TestHTTPClientTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client, _ := NewHTTPClient(WithBaseURL(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Classify(ctx, testFrame(t))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestHTTPClientClosed(t *testing.T) {
	client, _ := NewHTTPClient()
	client.Close()

	if _, err := client.Classify(context.Background(), testFrame(t)); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
}

func TestHTTPClientNilFrame(t *testing.T) {
	client, _ := NewHTTPClient()
	if _, err := client.Classify(context.Background(), nil); !errors.Is(err, ErrNilFrame) {
		t.Errorf("Expected ErrNilFrame, got %v", err)
	}
}

func TestNewByTransport(t *testing.T) {
	tests := []struct {
		transport string
		want      string
		wantErr   bool
	}{
		{"http", "http", false},
		{"", "http", false},
		{"ws", "ws", false},
		{"grpc", "", true},
	}

	for _, tc := range tests {
		c, err := New(tc.transport)
		if tc.wantErr {
			if err == nil {
				t.Errorf("New(%q) should fail", tc.transport)
			}
			continue
		}
		if err != nil {
			t.Errorf("New(%q) failed: %v", tc.transport, err)
			continue
		}
		if c.Name() != tc.want {
			t.Errorf("New(%q).Name() = %s, want %s", tc.transport, c.Name(), tc.want)
		}
	}
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{StatusCode: 500}
	if err.Error() != "webcam frame failed: 500" {
		t.Errorf("got %q", err.Error())
	}
}

func TestMock(t *testing.T) {
	m := NewMock()
	res, err := m.Classify(context.Background(), testFrame(t))
	if err != nil {
		t.Fatal(err)
	}
	if res.Source != OriginWebcam {
		t.Errorf("Expected webcam source, got %s", res.Source)
	}
	calls := m.Calls()
	if len(calls) != 1 || calls[0].FileName != "frame.jpg" {
		t.Errorf("unexpected calls %+v", calls)
	}
}

package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-livesampler/internal/log"
	"github.com/teslashibe/go-livesampler/pkg/classifier"
	"github.com/teslashibe/go-livesampler/pkg/device"
	"github.com/teslashibe/go-livesampler/pkg/encoder"
	"github.com/teslashibe/go-livesampler/pkg/sampler"
	"github.com/teslashibe/go-livesampler/pkg/session"
)

func newTestServer(t *testing.T, dev device.Device) (*Server, *session.Session) {
	t.Helper()
	enc, _ := encoder.New(encoder.DefaultConfig())
	sess, err := session.New(dev, enc, classifier.NewMock(),
		session.WithLogger(log.Discard()),
		session.WithSchedule(sampler.Schedule{Period: 20 * time.Millisecond, Floor: 20 * time.Millisecond, MinRate: 1, MaxRate: 8}),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sess.Close() })

	s := NewServer(sess, Config{Port: "0", Logger: log.Discard()})
	return s, sess
}

func do(t *testing.T, s *Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.app.Test(req, 2000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, data
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, device.NewMock(log.Discard()))

	resp, body := do(t, s, "GET", "/api/health", "")
	if resp.StatusCode != 200 {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), `"ok"`) || !strings.Contains(string(body), `"name":"status"`) {
		t.Errorf("body = %s", body)
	}
}

func TestStartStop(t *testing.T) {
	dev := device.NewMock(log.Discard())
	s, sess := newTestServer(t, dev)

	resp, body := do(t, s, "POST", "/api/session/start", "")
	if resp.StatusCode != 200 {
		t.Fatalf("start: status = %d, body = %s", resp.StatusCode, body)
	}
	var st session.Status
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.State != session.Active || st.SessionID == "" {
		t.Errorf("status after start = %+v", st)
	}

	resp, body = do(t, s, "GET", "/api/session", "")
	if resp.StatusCode != 200 || !strings.Contains(string(body), `"state":"active"`) {
		t.Errorf("GET /api/session = %d %s", resp.StatusCode, body)
	}

	resp, _ = do(t, s, "POST", "/api/session/stop", "")
	if resp.StatusCode != 200 {
		t.Errorf("stop: status = %d", resp.StatusCode)
	}
	if sess.State() != session.Idle {
		t.Errorf("State = %s, want idle", sess.State())
	}
	if dev.Releases() != 1 {
		t.Errorf("Releases = %d, want 1", dev.Releases())
	}

	// Stop again is a no-op
	resp, _ = do(t, s, "POST", "/api/session/stop", "")
	if resp.StatusCode != 200 {
		t.Errorf("second stop: status = %d", resp.StatusCode)
	}
}

func TestStartWithConstraints(t *testing.T) {
	var got device.Constraints
	dev := &recordingDevice{Mock: device.NewMock(log.Discard()), got: &got}
	s, _ := newTestServer(t, dev)

	resp, body := do(t, s, "POST", "/api/session/start", `{"device_id":"/dev/video2","width":320}`)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if got.DeviceID != "/dev/video2" || got.Width != 320 || got.Height != 480 {
		t.Errorf("constraints = %+v", got)
	}
}

func TestStartWithPreset(t *testing.T) {
	var got device.Constraints
	dev := &recordingDevice{Mock: device.NewMock(log.Discard()), got: &got}
	s, _ := newTestServer(t, dev)

	resp, body := do(t, s, "POST", "/api/session/start", `{"preset":"720p","fps":10}`)
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, body = %s", resp.StatusCode, body)
	}
	if got.DeviceID != "0" || got.Width != 1280 || got.Height != 720 || got.FPS != 10 {
		t.Errorf("constraints = %+v", got)
	}
}

func TestStartUnknownPreset(t *testing.T) {
	dev := device.NewMock(log.Discard())
	s, _ := newTestServer(t, dev)

	resp, _ := do(t, s, "POST", "/api/session/start", `{"preset":"8k"}`)
	if resp.StatusCode != 400 {
		t.Errorf("Status = %d, want 400", resp.StatusCode)
	}
	if dev.Opens() != 0 {
		t.Errorf("Opens = %d, want 0", dev.Opens())
	}
}

func TestPresets(t *testing.T) {
	s, _ := newTestServer(t, device.NewMock(log.Discard()))

	resp, body := do(t, s, "GET", "/api/presets", "")
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for _, name := range device.PresetNames() {
		if !strings.Contains(string(body), `"`+name+`"`) {
			t.Errorf("presets body missing %q: %s", name, body)
		}
	}
}

func TestStartDeviceError(t *testing.T) {
	s, _ := newTestServer(t, device.NewMock(log.Discard(), device.WithOpenError(device.ErrUnavailable)))

	resp, body := do(t, s, "POST", "/api/session/start", "")
	if resp.StatusCode != 503 {
		t.Errorf("Status = %d, want 503", resp.StatusCode)
	}
	if !strings.Contains(string(body), `"kind":"device"`) {
		t.Errorf("body = %s", body)
	}

	resp, body = do(t, s, "GET", "/api/session/error", "")
	if resp.StatusCode != 200 || !strings.Contains(string(body), `"kind":"device"`) {
		t.Errorf("GET /api/session/error = %d %s", resp.StatusCode, body)
	}
}

func TestSetRate(t *testing.T) {
	s, sess := newTestServer(t, device.NewMock(log.Discard()))

	tests := []struct {
		body string
		want int
	}{
		{`{"rate":5}`, 200},
		{`{"rate":9}`, 400},
		{`{"rate":0}`, 400},
		{`{}`, 400},
		{`not json`, 400},
	}

	for _, tc := range tests {
		resp, body := do(t, s, "PUT", "/api/session/rate", tc.body)
		if resp.StatusCode != tc.want {
			t.Errorf("PUT %s: status = %d, want %d (%s)", tc.body, resp.StatusCode, tc.want, body)
		}
	}

	if sess.Rate() != 5 {
		t.Errorf("Rate = %d, want 5", sess.Rate())
	}
}

func TestResultAndErrorEmpty(t *testing.T) {
	s, _ := newTestServer(t, device.NewMock(log.Discard()))

	for _, path := range []string{"/api/session/result", "/api/session/error"} {
		resp, _ := do(t, s, "GET", path, "")
		if resp.StatusCode != 204 {
			t.Errorf("GET %s = %d, want 204", path, resp.StatusCode)
		}
	}
}

func TestResultAfterSampling(t *testing.T) {
	s, sess := newTestServer(t, device.NewMock(log.Discard()))

	do(t, s, "POST", "/api/session/start", "")
	deadline := time.Now().Add(2 * time.Second)
	for sess.LatestResult() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	resp, body := do(t, s, "GET", "/api/session/result", "")
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var r classifier.Result
	if err := json.Unmarshal(body, &r); err != nil {
		t.Fatal(err)
	}
	if r.Label != "saudavel" || r.Source != "webcam" {
		t.Errorf("result = %+v", r)
	}
	if !strings.Contains(string(body), `"predictedLabel"`) {
		t.Errorf("body should use predictedLabel, got %s", body)
	}
}

func TestWSRequiresUpgrade(t *testing.T) {
	s, _ := newTestServer(t, device.NewMock(log.Discard()))

	resp, _ := do(t, s, "GET", "/ws/status", "")
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Errorf("Status = %d, want 426", resp.StatusCode)
	}
}

func TestStatusWebSocket(t *testing.T) {
	s, sess := newTestServer(t, device.NewMock(log.Discard()))
	s.port = "18091"
	sess.OnUpdate(s.PublishStatus)

	go s.Start()
	defer s.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18091/ws/status", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	// The replayed status arrives first
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var st session.Status
	if err := ws.ReadJSON(&st); err != nil {
		t.Fatalf("read replayed status: %v", err)
	}
	if st.State != session.Idle {
		t.Errorf("replayed state = %s, want idle", st.State)
	}

	if err := sess.Start(context.Background(), device.DefaultConstraints()); err != nil {
		t.Fatal(err)
	}

	// Updates are asynchronous; read until an active status shows up
	for {
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := ws.ReadJSON(&st); err != nil {
			t.Fatalf("no active status received: %v", err)
		}
		if st.State == session.Active {
			break
		}
	}
	if s.StatusHub().ClientCount() != 1 {
		t.Errorf("ClientCount = %d, want 1", s.StatusHub().ClientCount())
	}

	// Active updates keep flowing; after Stop the feed must settle on idle
	sess.Stop()
	for {
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := ws.ReadJSON(&st); err != nil {
			t.Fatalf("no idle status received: %v", err)
		}
		if st.State == session.Idle {
			break
		}
	}
	ws.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	var late session.Status
	if err := ws.ReadJSON(&late); err == nil && late.State != session.Idle {
		t.Errorf("unexpected status after stop: state=%s seq=%d (idle seq %d)", late.State, late.Seq, st.Seq)
	}

	// A late viewer is replayed the final state
	ws2, _, err := websocket.DefaultDialer.Dial("ws://localhost:18091/ws/status", nil)
	if err != nil {
		t.Fatalf("second dial: %v", err)
	}
	defer ws2.Close()
	ws2.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := ws2.ReadJSON(&st); err != nil {
		t.Fatalf("read replay: %v", err)
	}
	if st.State != session.Idle {
		t.Errorf("replayed state after stop = %s, want idle", st.State)
	}
}

func TestPublishStatusDropsStale(t *testing.T) {
	s, _ := newTestServer(t, device.NewMock(log.Discard()))

	steps := []struct {
		seq  uint64
		want bool
	}{
		{5, true},
		{3, false},
		{5, true},
		{6, true},
		{4, false},
	}
	for _, step := range steps {
		if got := s.publishStatus(session.Status{Seq: step.seq}); got != step.want {
			t.Errorf("publish seq %d = %v, want %v", step.seq, got, step.want)
		}
	}
}

// recordingDevice captures the constraints passed to Open.
type recordingDevice struct {
	*device.Mock
	got *device.Constraints
}

func (d *recordingDevice) Open(ctx context.Context, c device.Constraints) (device.Handle, error) {
	*d.got = c
	return d.Mock.Open(ctx, c)
}

package httpc

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClientTimeout(t *testing.T) {
	if got := NewClient(0).Timeout; got != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", got, DefaultTimeout)
	}
	if got := NewClient(3 * time.Second).Timeout; got != 3*time.Second {
		t.Errorf("Timeout = %v, want 3s", got)
	}
}

func TestNewJSONRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %s", r.Header.Get("Content-Type"))
		}
		data, _ := io.ReadAll(r.Body)
		var got map[string]string
		if err := json.Unmarshal(data, &got); err != nil || got["fileName"] != "frame.jpg" {
			t.Errorf("body = %s", data)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	req, err := NewJSONRequest(context.Background(), http.MethodPost, srv.URL, map[string]string{"fileName": "frame.jpg"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := NewClient(time.Second).Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Status = %d, want 204", resp.StatusCode)
	}
}

func TestNewJSONRequestMarshalError(t *testing.T) {
	if _, err := NewJSONRequest(context.Background(), http.MethodPost, "http://x", make(chan int)); err == nil {
		t.Error("expected marshal error")
	}
}

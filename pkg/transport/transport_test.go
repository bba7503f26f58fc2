package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/certify/pkg/config"
	"mercator-hq/certify/pkg/telemetry/logging"
)

func testClientConfig() config.ClientConfig {
	return config.ClientConfig{
		MaxRetries:         2,
		RetryBackoff:       time.Millisecond,
		BreakerMaxFailures: 10,
		BreakerTimeout:     time.Second,
	}
}

func TestPostJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		var in map[string]any
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"echo": in["value"]})
	}))
	defer srv.Close()

	c := NewClient("test", testClientConfig(), time.Second, logging.Discard())

	var out struct {
		Echo string `json:"echo"`
	}
	if err := c.PostJSON(context.Background(), srv.URL, map[string]string{"value": "hi"}, &out); err != nil {
		t.Fatalf("PostJSON() error = %v, want nil", err)
	}
	if out.Echo != "hi" {
		t.Errorf("Echo = %q, want %q", out.Echo, "hi")
	}
}

func TestPostJSON_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient("test", testClientConfig(), time.Second, logging.Discard())
	if err := c.PostJSON(context.Background(), srv.URL, struct{}{}, nil); err != nil {
		t.Fatalf("PostJSON() error = %v, want nil", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestPostJSON_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad input", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient("test", testClientConfig(), time.Second, logging.Discard())
	err := c.PostJSON(context.Background(), srv.URL, struct{}{}, nil)

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("PostJSON() error = %v, want *StatusError", err)
	}
	if se.Code != http.StatusBadRequest {
		t.Errorf("Code = %d, want 400", se.Code)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestPostJSON_BreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testClientConfig()
	cfg.MaxRetries = 0
	cfg.BreakerMaxFailures = 2
	cfg.BreakerTimeout = time.Minute
	var logs bytes.Buffer
	c := NewClient("opa", cfg, time.Second, slog.New(slog.NewTextHandler(&logs, nil)))

	for i := 0; i < 2; i++ {
		if err := c.PostJSON(context.Background(), srv.URL, struct{}{}, nil); err == nil {
			t.Fatalf("call %d: PostJSON() error = nil, want error", i)
		}
	}

	err := c.PostJSON(context.Background(), srv.URL, struct{}{}, nil)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("PostJSON() error = %v, want ErrCircuitOpen", err)
	}
	if c.BreakerState() != "open" {
		t.Errorf("BreakerState() = %q, want open", c.BreakerState())
	}
	if !strings.Contains(logs.String(), "breaker=open") {
		t.Errorf("logs = %q, want the failure logged with breaker=open", logs.String())
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"server error", &StatusError{Code: 502}, true},
		{"rate limited", &StatusError{Code: 429}, true},
		{"not found", &StatusError{Code: 404}, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"open breaker", ErrCircuitOpen, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

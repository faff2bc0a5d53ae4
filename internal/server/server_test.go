package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func TestHealthHandlers(t *testing.T) {
	tests := []struct {
		name      string
		phase     string
		handler   func(HealthChecker, *zap.Logger) http.HandlerFunc
		wantCode  int
		wantState string
	}{
		{"live while starting", PhaseStarting, LivenessHandler, http.StatusOK, "alive"},
		{"not live after failure", PhaseFailed, LivenessHandler, http.StatusServiceUnavailable, "not alive"},
		{"ready while encoding", PhaseEncoding, ReadinessHandler, http.StatusOK, "ready"},
		{"not ready when done", PhaseDone, ReadinessHandler, http.StatusServiceUnavailable, "not ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := NewJobStatus("geo:ships")
			status.SetPhase(tt.phase)

			rec := httptest.NewRecorder()
			tt.handler(status, zap.NewNop())(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %s", ct)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error = %v", err)
			}
			if resp.Status != tt.wantState {
				t.Errorf("status = %s, want %s", resp.Status, tt.wantState)
			}
		})
	}
}

func TestJobStatus_Status(t *testing.T) {
	status := NewJobStatus("geo:ships")
	status.now = func() time.Time { return status.started.Add(1500 * time.Millisecond) }
	status.SetPhase(PhaseEncoding)

	got := status.Status()
	if got["type_name"] != "geo:ships" || got["phase"] != PhaseEncoding || got["elapsed"] != "1.5s" {
		t.Errorf("Status() = %v", got)
	}
}

func TestServer_ServesMetricsAndHealth(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "geobin_test_total", Help: "test"})
	registry.MustRegister(counter)
	counter.Inc()

	status := NewJobStatus("ships")
	status.SetPhase(PhaseEncoding)

	srv, err := NewServer("127.0.0.1:0", status, registry, zap.NewNop())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	srv.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	}()

	for path, want := range map[string]string{
		"/metrics":      "geobin_test_total 1",
		"/health/ready": `"phase":"encoding"`,
		"/health/live":  `"status":"alive"`,
	} {
		resp, err := http.Get("http://" + srv.Addr() + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d", path, resp.StatusCode)
		}
		if !strings.Contains(string(body), want) {
			t.Errorf("GET %s body = %s, want %s", path, body, want)
		}
	}
}

func TestNewServer_BadAddress(t *testing.T) {
	if _, err := NewServer("not-an-address", NewJobStatus("x"), prometheus.NewRegistry(), nil); err == nil {
		t.Error("expected error for bad address")
	}
}

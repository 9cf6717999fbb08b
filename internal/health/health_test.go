package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTrackerObserve(t *testing.T) {
	tr := NewTracker()
	tr.Observe("elevenlabs", 100*time.Millisecond, nil)
	tr.Observe("elevenlabs", 300*time.Millisecond, nil)
	tr.Observe("elevenlabs", 200*time.Millisecond, errors.New("timeout"))

	snap := tr.Snapshot()
	s, ok := snap["elevenlabs"]
	if !ok {
		t.Fatal("no stats for elevenlabs")
	}
	if s.Successes != 2 || s.Failures != 1 {
		t.Fatalf("successes=%d failures=%d, want 2/1", s.Successes, s.Failures)
	}
	if s.ConsecutiveErrors != 1 {
		t.Fatalf("ConsecutiveErrors = %d, want 1", s.ConsecutiveErrors)
	}
	if s.AvgLatency != 200*time.Millisecond {
		t.Fatalf("AvgLatency = %v, want 200ms", s.AvgLatency)
	}
	if s.LastError != "timeout" {
		t.Fatalf("LastError = %q, want timeout", s.LastError)
	}
}

func TestTrackerSuccessClearsConsecutiveErrors(t *testing.T) {
	tr := NewTracker()
	tr.Observe("coqui", time.Millisecond, errors.New("down"))
	tr.Observe("coqui", time.Millisecond, errors.New("down"))
	tr.Observe("coqui", time.Millisecond, nil)

	if got := tr.Snapshot()["coqui"].ConsecutiveErrors; got != 0 {
		t.Fatalf("ConsecutiveErrors = %d, want 0", got)
	}
}

func TestSuccessRateEmptyTracker(t *testing.T) {
	var s ProviderStats
	if got := s.SuccessRate(); got != 1 {
		t.Fatalf("SuccessRate() on empty stats = %v, want 1", got)
	}
}

func TestHealthzAlwaysOK(t *testing.T) {
	h := NewHandler(nil)
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", rec.Code)
	}
}

func TestReadyzReportsFailures(t *testing.T) {
	h := NewHandler(nil,
		Check{Name: "database", Probe: func(context.Context) error { return nil }},
		Check{Name: "cache", Probe: func(context.Context) error { return errors.New("unreachable") }},
	)
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status = %d, want 503", rec.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Status != "fail" {
		t.Fatalf("status = %q, want fail", body.Status)
	}
	if body.Checks["database"] != "ok" {
		t.Fatalf("database check = %q, want ok", body.Checks["database"])
	}
}

func TestReadyzIncludesProviderSnapshot(t *testing.T) {
	tr := NewTracker()
	tr.Observe("openai-tts-1", 50*time.Millisecond, nil)

	h := NewHandler(tr)
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz status = %d, want 200", rec.Code)
	}

	var body struct {
		Providers map[string]struct {
			Calls int64 `json:"calls"`
		} `json:"providers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Providers["openai-tts-1"].Calls != 1 {
		t.Fatalf("provider calls = %d, want 1", body.Providers["openai-tts-1"].Calls)
	}
}

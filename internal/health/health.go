package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds how long a single readiness check may run.
const probeTimeout = 5 * time.Second

// Check is a named readiness probe. Probe returns nil when the dependency is
// reachable and an error describing the failure otherwise.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type probeResponse struct {
	Status    string                   `json:"status"`
	Checks    map[string]string        `json:"checks,omitempty"`
	Providers map[string]providerState `json:"providers,omitempty"`
}

type providerState struct {
	SuccessRate       float64 `json:"successRate"`
	Calls             int64   `json:"calls"`
	ConsecutiveErrors int64   `json:"consecutiveErrors"`
	AvgLatencyMS      int64   `json:"avgLatencyMs"`
}

// Handler serves /healthz and /readyz. Readiness evaluates each registered
// [Check] and includes the provider tracker's snapshot in the response body
// for operators; provider degradation does not fail readiness on its own
// since the fallback ladder keeps calls serviceable.
type Handler struct {
	checks  []Check
	tracker *Tracker
}

// NewHandler creates a probe handler. tracker may be nil.
func NewHandler(tracker *Tracker, checks ...Check) *Handler {
	c := make([]Check, len(checks))
	copy(c, checks)
	return &Handler{checks: c, tracker: tracker}
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /readyz", h.readyz)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, probeResponse{Status: "ok"})
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	resp := probeResponse{
		Status: "ok",
		Checks: make(map[string]string, len(h.checks)),
	}
	status := http.StatusOK

	for _, c := range h.checks {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := c.Probe(ctx)
		cancel()

		if err != nil {
			resp.Checks[c.Name] = "fail: " + err.Error()
			resp.Status = "fail"
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks[c.Name] = "ok"
		}
	}

	if h.tracker != nil {
		snap := h.tracker.Snapshot()
		resp.Providers = make(map[string]providerState, len(snap))
		for name, s := range snap {
			resp.Providers[name] = providerState{
				SuccessRate:       s.SuccessRate(),
				Calls:             s.Total(),
				ConsecutiveErrors: s.ConsecutiveErrors,
				AvgLatencyMS:      s.AvgLatency.Milliseconds(),
			}
		}
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}

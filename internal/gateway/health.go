package gateway

import (
	"context"
	"net/http"

	"github.com/searchlens-ai/query-assistant/internal/events"
)

// ServiceStatus is the per-dependency health breakdown entry.
type ServiceStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the aggregated health payload.
type HealthResponse struct {
	Status   string                   `json:"status"`
	Message  string                   `json:"message,omitempty"`
	Services map[string]ServiceStatus `json:"services"`
}

// HealthHandler aggregates gateway liveness with a synchronous probe
// of the upstream's health endpoint, bounded by the health tier budget.
type HealthHandler struct {
	backendURL string
	policy     *TimeoutPolicy
	client     *http.Client
	natsClient *events.Client
}

// NewHealthHandler creates a health handler. natsClient may be nil when
// the event bus is not configured.
func NewHealthHandler(backendURL string, policy *TimeoutPolicy, natsClient *events.Client) *HealthHandler {
	return &HealthHandler{
		backendURL: backendURL,
		policy:     policy,
		client: &http.Client{
			Timeout: policy.Total(TierHealth),
		},
		natsClient: natsClient,
	}
}

// Health handles GET /api/health and GET /api/healthz. The top-level
// status is healthy, unhealthy when a dependency reports trouble, or
// error when the backend probe itself could not run.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "healthy",
		Services: map[string]ServiceStatus{
			"gateway": {Status: "ok"},
		},
	}

	backend, probeRan := h.probeBackend(r.Context())
	resp.Services["backend"] = backend
	switch {
	case !probeRan:
		resp.Status = "error"
		resp.Message = "backend health check could not run"
	case backend.Status != "ok":
		resp.Status = "unhealthy"
		resp.Message = "backend health check failed"
	}

	if h.natsClient != nil {
		if h.natsClient.IsConnected() {
			resp.Services["nats"] = ServiceStatus{Status: "ok"}
		} else {
			resp.Services["nats"] = ServiceStatus{Status: "error", Message: "not connected"}
			resp.Status = "unhealthy"
		}
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// probeBackend checks the upstream health endpoint. The second return
// is false when the probe could not be built or dispatched at all, as
// opposed to the backend answering badly.
func (h *HealthHandler) probeBackend(ctx context.Context) (ServiceStatus, bool) {
	probeCtx, cancel := context.WithTimeout(ctx, h.policy.Total(TierHealth))
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, h.backendURL+"/api/health", nil)
	if err != nil {
		return ServiceStatus{Status: "error", Message: "failed to build probe request"}, false
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return ServiceStatus{Status: "error", Message: "backend unreachable"}, true
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ServiceStatus{Status: "error", Message: http.StatusText(resp.StatusCode)}, true
	}
	return ServiceStatus{Status: "ok"}, true
}

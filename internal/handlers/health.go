package handlers

import (
	"net/http"
	"time"
)

func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}

	code := http.StatusOK
	if err := h.health.Health(r.Context()); err != nil {
		status["status"] = "unhealthy"
		status["storage_status"] = "unhealthy"
		status["storage_error"] = err.Error()
		code = http.StatusServiceUnavailable
	} else {
		status["storage_status"] = "healthy"
	}

	// An open breaker means provider round trips are failing fast, stored
	// tokens are still served.
	if h.breaker != nil {
		status["provider_breaker"] = h.breaker.Stats()
		if h.breaker.IsOpen() && code == http.StatusOK {
			status["status"] = "degraded"
		}
	}

	h.sendJSON(w, code, status)
}

package http

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Pinger checks the database connection.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	DB  Pinger
	Log *zap.Logger
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

// Ready reports 503 when the database does not answer within two seconds.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.PingContext(ctx); err != nil {
		h.Log.Warn("readiness check failed", zap.Error(err))
		writeMessage(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeMessage(w, http.StatusOK, "ready")
}

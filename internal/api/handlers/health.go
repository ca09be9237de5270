package handlers

import (
	"delivery-batch-service/internal/api/dto"
	"net/http"
	"time"
)

// Health provides a minimal liveness check endpoint.
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, dto.HealthResponse{Status: "ok", Time: time.Now().UTC()})
}

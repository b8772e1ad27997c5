package handler

import (
	"encoding/json"
	"net/http"
)

// healthBody is the standard response envelope for the health endpoint
type healthBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Paused  bool   `json:"paused"`
}

// HandleHealth handles GET /health
func (h *WebhookHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(healthBody{
		Code:    200,
		Message: "Chatwoot bridge is running",
		Paused:  h.connector.IsPaused(),
	})
}

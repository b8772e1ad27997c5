// Package handler implements HTTP request handlers
// Following Hexagonal Architecture: Adapters translate HTTP to domain logic
package handler

import (
	"context"
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"woot-bridge/internal/core/services"
)

// WebhookHandler receives Chatwoot webhook deliveries on the token-scoped
// route and detaches processing into a goroutine: the HTTP response is
// always {"status":"ok"} and never reflects processing outcome.
type WebhookHandler struct {
	connector *services.Connector
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(connector *services.Connector) *WebhookHandler {
	return &WebhookHandler{
		connector: connector,
	}
}

// Register mounts the connector routes on the router
func (h *WebhookHandler) Register(r *mux.Router) {
	r.HandleFunc(services.RoutePrefix+"/webhook/{token}", h.HandleEvent).
		Methods(http.MethodPost)
	r.HandleFunc("/health", h.HandleHealth).
		Methods(http.MethodGet)
}

// HandleEvent handles POST /chatwoot/webhook/{token}
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	// The route only exists for the per-instance random token; anything
	// else is indistinguishable from an unknown path
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.connector.SecurityToken())) != 1 {
		slog.Warn("Webhook received with invalid security token")
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("Failed to read webhook body", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Ack immediately (fire & forget): Chatwoot expects a fast 200 and
	// retries slow endpoints
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))

	// Background context: the request context is cancelled as soon as the
	// ack above is flushed
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("PANIC in webhook processing goroutine",
					"panic", rec,
				)
			}
		}()
		h.connector.ProcessWebhook(context.Background(), body)
	}()

	slog.Debug("Webhook received and queued for processing",
		"content_length", len(body),
	)
}

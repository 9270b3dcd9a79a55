package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/qj0r9j0vc2/chat-relay/internal/adapter/dto"
	"github.com/qj0r9j0vc2/chat-relay/internal/adapter/handler/middleware"
	"github.com/qj0r9j0vc2/chat-relay/internal/domain/entity"
	"github.com/qj0r9j0vc2/chat-relay/internal/usecase/event"
)

// Submitter enqueues an event for asynchronous processing.
type Submitter interface {
	Submit(ev *entity.InboundEvent) bool
}

// EventsHandler receives the platform's webhook deliveries.
// NOTE: Signature verification is handled by middleware.SlackAuth middleware.
type EventsHandler struct {
	pool   Submitter
	logger event.Logger
}

// NewEventsHandler creates a new events webhook handler.
func NewEventsHandler(pool Submitter, logger event.Logger) *EventsHandler {
	return &EventsHandler{
		pool:   pool,
		logger: logger,
	}
}

// ServeHTTP handles POST /webhook/events.
//
// The platform retries deliveries that are not acknowledged within a few
// seconds, so the handler enqueues and returns 200 immediately. Processing
// happens on the worker pool.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	payload, err := dto.DecodeWebhookPayload(body)
	if err != nil {
		h.logger.Error("failed to parse webhook payload",
			"error", err,
			"request_id", middleware.GetRequestID(r.Context()),
		)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// URL-verification handshake: echo the challenge back.
	if payload.IsChallenge() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"challenge": payload.Challenge})
		return
	}

	if payload.IsDispatchable() {
		ev, err := payload.Normalize()
		if err != nil {
			h.logger.Warn("failed to normalize event, acknowledging anyway",
				"error", err,
				"deliveryID", payload.EventID,
			)
		} else {
			h.pool.Submit(ev)
		}
	}

	// Acknowledge regardless of outcome. Returning an error here would only
	// trigger a redelivery of a payload we already cannot use.
	w.WriteHeader(http.StatusOK)
}

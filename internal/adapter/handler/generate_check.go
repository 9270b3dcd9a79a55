package handler

import (
	"encoding/json"
	"net/http"

	"github.com/qj0r9j0vc2/chat-relay/internal/usecase/event"
)

// GenerateCheckHandler exposes the generation backend for smoke testing
// without going through the chat platform. Not meant for production traffic;
// the router only mounts it when enabled in config.
type GenerateCheckHandler struct {
	generator event.Generator
	logger    event.Logger
}

// NewGenerateCheckHandler creates a new generation smoke-check handler.
func NewGenerateCheckHandler(generator event.Generator, logger event.Logger) *GenerateCheckHandler {
	return &GenerateCheckHandler{
		generator: generator,
		logger:    logger,
	}
}

type generateCheckRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type generateCheckResponse struct {
	Reply string `json:"reply"`
}

// ServeHTTP handles /generate-check. GET runs a fixed prompt; POST accepts
// {"user_id", "text"} for an arbitrary one.
func (h *GenerateCheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req generateCheckRequest

	switch r.Method {
	case http.MethodGet:
		req.Text = "Hi"
	case http.MethodPost:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid payload", http.StatusBadRequest)
			return
		}
		if req.Text == "" {
			http.Error(w, "text is required", http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if req.UserID == "" {
		req.UserID = "smoke-check"
	}

	reply, err := h.generator.Reply(r.Context(), req.UserID, req.Text)
	if err != nil {
		h.logger.Error("generation smoke check failed", "error", err)
		http.Error(w, "generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(generateCheckResponse{Reply: reply})
}

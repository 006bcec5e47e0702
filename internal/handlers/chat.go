package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"dashbot-backend/internal/models"
	"dashbot-backend/internal/session"
)

// ChatHandler exposes the live streaming engine: send/stop/new, the derived
// conversation state, session activation, and history pagination controls.
type ChatHandler struct {
	engines *session.Registry
}

func NewChatHandler(engines *session.Registry) *ChatHandler {
	return &ChatHandler{engines: engines}
}

func (h *ChatHandler) engine(w http.ResponseWriter, r *http.Request) (*session.Engine, bool) {
	id := clientID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "X-Client-ID header is required", r))
		return nil, false
	}
	return h.engines.Get(id), true
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	var req models.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Message is required", r))
		return
	}

	if err := eng.SendMessage(r.Context(), req); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("AI_ERROR", "Failed to start the exchange", r))
		return
	}

	writeJSON(w, http.StatusAccepted, eng.Snapshot())
}

func (h *ChatHandler) Stop(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	eng.DiscardStream()
	writeJSON(w, http.StatusOK, eng.Snapshot())
}

func (h *ChatHandler) New(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	eng.NewSession()
	writeJSON(w, http.StatusOK, eng.Snapshot())
}

func (h *ChatHandler) State(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, eng.Snapshot())
}

func (h *ChatHandler) Activate(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	if err := eng.ActivateSession(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load session", r))
		return
	}

	writeJSON(w, http.StatusOK, eng.Snapshot())
}

func (h *ChatHandler) LoadOlder(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	if err := eng.LoadOlder(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch older messages", r))
		return
	}

	h.writePagination(w, eng)
}

func (h *ChatHandler) LoadAll(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engine(w, r)
	if !ok {
		return
	}

	if err := eng.LoadAll(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to fetch remaining messages", r))
		return
	}

	h.writePagination(w, eng)
}

func (h *ChatHandler) writePagination(w http.ResponseWriter, eng *session.Engine) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"has_more":  eng.HasMoreMessages(),
		"remaining": eng.RemainingMessages(),
	})
}

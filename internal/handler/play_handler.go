package handler

import (
	"errors"
	"net/http"

	"github.com/freeeve/impetus/api/internal/auth"
	"github.com/freeeve/impetus/api/internal/service"
	"github.com/freeeve/impetus/api/pkg/impetus"
)

// PlayHandler handles live play endpoints: state, options, and action
// submission.
type PlayHandler struct {
	playSvc *service.PlayService
}

// NewPlayHandler creates a PlayHandler.
func NewPlayHandler(playSvc *service.PlayService) *PlayHandler {
	return &PlayHandler{playSvc: playSvc}
}

// GetState handles GET /api/v1/games/{id}/state
func (h *PlayHandler) GetState(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	state, err := h.playSvc.GetSnapshot(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveTurn) {
			writeError(w, http.StatusNotFound, "no active game state")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(state)
}

// GetOptions handles GET /api/v1/games/{id}/options
func (h *PlayHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	opts, err := h.playSvc.GetOptions(r.Context(), gameID, userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrNoActiveTurn) {
			status = http.StatusNotFound
		} else if errors.Is(err, service.ErrNotInGame) {
			status = http.StatusForbidden
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// GetWaiting handles GET /api/v1/games/{id}/waiting
func (h *PlayHandler) GetWaiting(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")

	waiting, err := h.playSvc.WaitingOn(gameID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveTurn) {
			writeError(w, http.StatusNotFound, "no active turn")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if waiting == nil {
		waiting = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"waiting_on":    waiting,
		"waiting_count": len(waiting),
	})
}

// SubmitAction handles POST /api/v1/games/{id}/actions
func (h *PlayHandler) SubmitAction(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("id")
	userID := auth.UserIDFromContext(r.Context())

	var action impetus.Action
	if err := decodeJSON(r, &action); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.playSvc.SubmitAction(r.Context(), gameID, userID, action); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, service.ErrGameNotFound):
			status = http.StatusNotFound
		case errors.Is(err, service.ErrNotInGame):
			status = http.StatusForbidden
		case errors.Is(err, impetus.ErrAlreadySubmitted):
			status = http.StatusConflict
		case errors.Is(err, service.ErrInvalidAction):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, service.ErrGameNotActive),
			errors.Is(err, service.ErrNoActiveTurn),
			errors.Is(err, impetus.ErrActionNotNeeded):
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "submitted"})
}

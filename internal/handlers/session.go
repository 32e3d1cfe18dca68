package handlers

import (
	"net/http"
	"strconv"

	"coursecast-backend/internal/middleware"
	"coursecast-backend/internal/repository"
)

type SessionHandler struct {
	sessionRepo *repository.SessionRepo
}

func NewSessionHandler(sessionRepo *repository.SessionRepo) *SessionHandler {
	return &SessionHandler{sessionRepo: sessionRepo}
}

// List returns the owner's recent workflow runs, newest first.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sessions, err := h.sessionRepo.ListByOwner(r.Context(), ownerID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to list workflow sessions", r))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

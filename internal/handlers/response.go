package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"coursecast-backend/internal/draft"
	"coursecast-backend/internal/models"
	"coursecast-backend/internal/remote"
	"coursecast-backend/internal/workflow"
)

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}

// handleWorkflowError maps workflow, draft and remote errors onto the
// response envelope. Remote failures surface as 502 with the uniform
// operation-failed message; nothing from the upstream transport leaks.
func handleWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *workflow.ValidationError
	var remoteErr *remote.Error

	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", validationErr.Error(), r))
	case errors.Is(err, draft.ErrEditNotAllowed):
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", err.Error(), r))
	case errors.Is(err, draft.ErrEditInFlight):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", err.Error(), r))
	case errors.Is(err, draft.ErrPartNotFound):
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", err.Error(), r))
	case errors.Is(err, draft.ErrInvalidVideoIndex):
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
	case errors.Is(err, workflow.ErrNoActiveDraft),
		errors.Is(err, workflow.ErrNotPreviewing),
		errors.Is(err, workflow.ErrNotEnhancing),
		errors.Is(err, workflow.ErrDraftNotReady):
		writeJSON(w, http.StatusConflict, errorResp("CONFLICT", err.Error(), r))
	case errors.As(err, &remoteErr):
		writeJSON(w, http.StatusBadGateway, errorResp("REMOTE_ERROR", remoteErr.Error(), r))
	default:
		writeJSON(w, http.StatusBadGateway, errorResp("REMOTE_ERROR", err.Error(), r))
	}
}

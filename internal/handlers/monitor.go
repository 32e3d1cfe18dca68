package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"coursecast-backend/internal/middleware"
	"coursecast-backend/internal/scheduler"
)

type MonitorHandler struct {
	monitor *scheduler.Monitor
}

func NewMonitorHandler(monitor *scheduler.Monitor) *MonitorHandler {
	return &MonitorHandler{monitor: monitor}
}

// ListScheduled serves the monitoring panel. It never fails: remote errors
// degrade to the last cached listing.
func (h *MonitorHandler) ListScheduled(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	classID := r.URL.Query().Get("class_id")
	forceRefresh := r.URL.Query().Get("refresh") == "true"

	items := h.monitor.List(r.Context(), ownerID, classID, forceRefresh)
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *MonitorHandler) SendNow(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	contentID := chi.URLParam(r, "contentID")
	partNumber := chi.URLParam(r, "partNumber")

	notified, items, err := h.monitor.SendNow(r.Context(), ownerID, contentID, partNumber)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notified_count": notified,
		"items":          items,
	})
}

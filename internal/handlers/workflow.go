package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"coursecast-backend/internal/middleware"
	"coursecast-backend/internal/models"
	"coursecast-backend/internal/remote"
	"coursecast-backend/internal/workflow"
)

// multipart memory threshold; larger files spill to temp storage
const maxMultipartMemory = 8 * 1024 * 1024

type WorkflowHandler struct {
	orch *workflow.Orchestrator
}

func NewWorkflowHandler(orch *workflow.Orchestrator) *WorkflowHandler {
	return &WorkflowHandler{orch: orch}
}

// Submit accepts either multipart form data with a source file, or a JSON
// body for topic-based submissions.
func (h *WorkflowHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())

	in, err := h.parseSubmit(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
		return
	}

	contentID, err := h.orch.Submit(r.Context(), ownerID, *in)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"content_id": contentID,
		"state":      workflow.StateEnhancing,
	})
}

func (h *WorkflowHandler) parseSubmit(r *http.Request) (*workflow.SubmitInput, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, err
		}

		in := &workflow.SubmitInput{
			ClassID:      r.FormValue("class_id"),
			Subject:      r.FormValue("subject"),
			Instructions: r.FormValue("instructions"),
			Language:     r.FormValue("language"),
			TopicName:    r.FormValue("topic_name"),
		}
		in.NumParts, _ = strconv.Atoi(r.FormValue("num_parts"))

		file, header, err := r.FormFile("file")
		if err == nil {
			defer file.Close()
			data, err := io.ReadAll(file)
			if err != nil {
				return nil, err
			}
			in.Payload = data
			in.FileName = header.Filename
			in.ContentType = header.Header.Get("Content-Type")
		}
		return in, nil
	}

	var body struct {
		ClassID      string `json:"class_id"`
		Subject      string `json:"subject"`
		NumParts     int    `json:"num_parts"`
		Instructions string `json:"instructions"`
		Language     string `json:"language"`
		TopicName    string `json:"topic_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil, err
	}
	return &workflow.SubmitInput{
		ClassID:      body.ClassID,
		Subject:      body.Subject,
		NumParts:     body.NumParts,
		Instructions: body.Instructions,
		Language:     body.Language,
		TopicName:    body.TopicName,
	}, nil
}

func (h *WorkflowHandler) State(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	writeJSON(w, http.StatusOK, h.orch.Snapshot(ownerID))
}

func (h *WorkflowHandler) Preview(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())

	item, err := h.orch.Preview(ownerID)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *WorkflowHandler) ResumePolling(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())

	if err := h.orch.ResumePolling(ownerID); err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, h.orch.Snapshot(ownerID))
}

func (h *WorkflowHandler) EditPart(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	partNumber := chi.URLParam(r, "partNumber")

	var update remote.PartUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	item, err := h.orch.EditPart(r.Context(), ownerID, partNumber, &update)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *WorkflowHandler) RemoveVideoLink(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	partNumber := chi.URLParam(r, "partNumber")

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid video link index", r))
		return
	}

	item, err := h.orch.RemoveVideoLink(r.Context(), ownerID, partNumber, index)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *WorkflowHandler) OverrideSlot(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())

	partIndex, err := strconv.Atoi(chi.URLParam(r, "partIndex"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid part index", r))
		return
	}

	var body struct {
		Date string `json:"date"`
		Time string `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if err := h.orch.OverrideSlot(ownerID, partIndex, body.Date, body.Time); err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Override staged"})
}

// Timeline renders the delivery timeline for the active draft without
// committing anything.
func (h *WorkflowHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())

	cfg, err := scheduleConfigFromQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", err.Error(), r))
		return
	}

	slots, err := h.orch.Timeline(ownerID, cfg)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"slots": slots})
}

func (h *WorkflowHandler) ConfirmSchedule(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())

	var cfg models.ScheduleConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	slots, err := h.orch.ConfirmSchedule(r.Context(), ownerID, cfg)
	if err != nil {
		handleWorkflowError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"slots": slots,
		"state": workflow.StateIdle,
	})
}

func (h *WorkflowHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ownerID := middleware.GetOwnerID(r.Context())
	h.orch.Clear(ownerID)
	writeJSON(w, http.StatusOK, map[string]string{"state": string(workflow.StateIdle)})
}

func scheduleConfigFromQuery(r *http.Request) (models.ScheduleConfig, error) {
	q := r.URL.Query()
	cfg := models.ScheduleConfig{
		StartDate:    q.Get("start_date"),
		DeliveryTime: q.Get("delivery_time"),
	}
	if v := q.Get("interval_days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, err
		}
		cfg.IntervalDays = n
	}

	hasCustom := cfg.DeliveryTime != "" || cfg.IntervalDays != 0
	switch q.Get("use_default") {
	case "true":
		// The default schedule fixes delivery time and interval; combining
		// it with custom values is a contradiction, not a preference.
		if hasCustom {
			return cfg, errors.New("use_default excludes delivery_time and interval_days")
		}
		cfg.UseDefaultSchedule = true
	case "false":
	case "":
		cfg.UseDefaultSchedule = !hasCustom
	default:
		return cfg, errors.New("use_default must be \"true\" or \"false\"")
	}
	return cfg, nil
}

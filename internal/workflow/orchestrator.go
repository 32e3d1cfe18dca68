package workflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"coursecast-backend/internal/draft"
	"coursecast-backend/internal/events"
	"coursecast-backend/internal/models"
	"coursecast-backend/internal/poller"
	"coursecast-backend/internal/remote"
	"coursecast-backend/internal/scheduler"
)

// State names the wizard's position in the upload → enhance → preview →
// schedule lifecycle. Monitoring is not a state: the scheduled-content panel
// is a parallel, always-available view.
type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StateEnhancing  State = "enhancing"
	StatePreviewing State = "previewing"
	StateScheduled  State = "scheduled"
)

var (
	ErrNoActiveDraft = errors.New("no active content draft")
	ErrNotPreviewing = errors.New("workflow is not in the preview step")
	ErrNotEnhancing  = errors.New("workflow has no enhancement in progress")
	ErrDraftNotReady = errors.New("draft is not ready for scheduling")
)

// ValidationError marks input problems detected before any remote call.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func errValidation(format string, args ...interface{}) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Source material limits checked locally before upload.
const maxPayloadBytes = 25 * 1024 * 1024

var allowedSourceExts = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".docx": true,
}

// SubmitInput is one upload request: either raw source material (Payload,
// optionally with a FileName) or a named topic the remote service fetches
// source for on its own.
type SubmitInput struct {
	ClassID      string
	Subject      string
	NumParts     int
	Instructions string
	Language     string
	FileName     string
	ContentType  string
	Payload      []byte
	TopicName    string
}

func (in *SubmitInput) validate() error {
	if in.ClassID == "" {
		return errValidation("class is required")
	}
	if in.Subject == "" {
		return errValidation("subject is required")
	}
	if in.NumParts < 2 {
		return errValidation("content must have at least 2 parts")
	}
	if len(in.Payload) == 0 && in.TopicName == "" {
		return errValidation("either source material or a topic name is required")
	}
	if len(in.Payload) > 0 && in.TopicName != "" {
		return errValidation("provide source material or a topic name, not both")
	}
	if len(in.Payload) > maxPayloadBytes {
		return errValidation("source material exceeds the %dMB limit", maxPayloadBytes/(1024*1024))
	}
	if in.FileName != "" {
		ext := strings.ToLower(filepath.Ext(in.FileName))
		if !allowedSourceExts[ext] {
			return errValidation("unsupported file type %q", ext)
		}
	}
	return nil
}

// Status is a point-in-time snapshot of one owner's workflow.
type Status struct {
	State     State  `json:"state"`
	ContentID string `json:"content_id,omitempty"`
	TimedOut  bool   `json:"timed_out"`
}

// sessionStore persists workflow runs; transitions are recorded best-effort.
type sessionStore interface {
	Create(ctx context.Context, s *models.WorkflowSession) error
	UpdateState(ctx context.Context, id uuid.UUID, state string, contentID, errMsg *string) error
	UpdateTimeline(ctx context.Context, id uuid.UUID, timeline json.RawMessage) error
}

// Orchestrator hosts one workflow per owner. Each workflow is strictly
// single-item: submitting supersedes whatever was in flight.
type Orchestrator struct {
	svc         remote.ContentService
	pub         events.Publisher
	store       sessionStore // may be nil
	monitor     *scheduler.Monitor
	pollCfg     poller.Config
	inlineLimit int64

	mu    sync.Mutex
	flows map[uuid.UUID]*flow
}

// flow is the per-owner state machine. gen invalidates poller callbacks that
// outlive a clear or a superseding upload.
type flow struct {
	mu        sync.Mutex
	ownerID   uuid.UUID
	state     State
	contentID string
	timedOut  bool
	draft     *draft.Draft
	overrides scheduler.OverrideSet
	poll      *poller.Poller
	gen       uint64
	sessionID uuid.UUID
}

func NewOrchestrator(svc remote.ContentService, pub events.Publisher, store sessionStore, monitor *scheduler.Monitor, pollCfg poller.Config, inlineLimit int64) *Orchestrator {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if inlineLimit <= 0 {
		inlineLimit = 512 * 1024
	}
	return &Orchestrator{
		svc:         svc,
		pub:         pub,
		store:       store,
		monitor:     monitor,
		pollCfg:     pollCfg,
		inlineLimit: inlineLimit,
		flows:       make(map[uuid.UUID]*flow),
	}
}

func (o *Orchestrator) flowFor(ownerID uuid.UUID) *flow {
	o.mu.Lock()
	defer o.mu.Unlock()
	f, ok := o.flows[ownerID]
	if !ok {
		f = &flow{
			ownerID:   ownerID,
			state:     StateIdle,
			overrides: scheduler.OverrideSet{},
			poll:      poller.New(o.svc, o.pub, o.pollCfg),
		}
		o.flows[ownerID] = f
	}
	return f
}

// Submit validates the input, uploads the source material, and issues the
// processing request. Small payloads ride inline; large ones are staged to a
// one-time write location first, and the processing request carries the
// reference instead. Any prior in-flight run is superseded.
func (o *Orchestrator) Submit(ctx context.Context, ownerID uuid.UUID, in SubmitInput) (string, error) {
	if err := in.validate(); err != nil {
		return "", err
	}

	f := o.flowFor(ownerID)
	f.mu.Lock()
	defer f.mu.Unlock()

	// Supersede: stale poll callbacks from the prior run must not touch the
	// new one.
	f.gen++
	f.poll.Cancel()
	f.draft = nil
	f.contentID = ""
	f.timedOut = false
	f.overrides = scheduler.OverrideSet{}

	o.setState(f, StateUploading)
	f.sessionID = o.createSession(ctx, ownerID, in)

	req := &remote.SubmitRequest{
		OwnerID:      ownerID,
		ClassID:      in.ClassID,
		Subject:      in.Subject,
		NumParts:     in.NumParts,
		Instructions: in.Instructions,
		Language:     in.Language,
		TopicName:    in.TopicName,
	}

	if len(in.Payload) > 0 {
		if int64(len(in.Payload)) > o.inlineLimit {
			loc, err := o.svc.GetUploadLocation(ctx, ownerID, in.FileName, int64(len(in.Payload)))
			if err != nil {
				o.recordFailure(ctx, f, err)
				return "", err
			}
			if err := o.svc.UploadToLocation(ctx, loc.WriteURL, in.Payload, in.ContentType); err != nil {
				o.recordFailure(ctx, f, err)
				return "", err
			}
			req.Reference = loc.Reference
		} else {
			req.InlinePayload = base64.StdEncoding.EncodeToString(in.Payload)
		}
	}

	contentID, err := o.svc.SubmitContent(ctx, req)
	if err != nil {
		// Stay in uploading: the caller may retry the same submission.
		o.recordFailure(ctx, f, err)
		return "", err
	}

	f.contentID = contentID
	o.setState(f, StateEnhancing)
	o.startPollingLocked(f)
	return contentID, nil
}

// startPollingLocked begins (or restarts) the enhancement poll for the
// current content id. Caller holds f.mu.
func (o *Orchestrator) startPollingLocked(f *flow) {
	gen := f.gen
	ownerID := f.ownerID
	contentID := f.contentID

	f.poll.Start(ownerID, contentID,
		func(item *models.ContentItem) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.gen != gen {
				return
			}
			f.draft = draft.New(o.svc, item)
			o.setState(f, StatePreviewing)
		},
		func(attempts int) {
			f.mu.Lock()
			defer f.mu.Unlock()
			if f.gen != gen {
				return
			}
			// Taking longer than expected is not a failure: the content id
			// is retained and polling can be resumed.
			f.timedOut = true
			log.Printf("enhancement poll for %s timed out after %d attempts", contentID, attempts)
		},
	)
}

// ResumePolling restarts the enhancement poll after a timeout.
func (o *Orchestrator) ResumePolling(ownerID uuid.UUID) error {
	f := o.flowFor(ownerID)
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateEnhancing || f.contentID == "" {
		return ErrNotEnhancing
	}
	f.gen++
	f.timedOut = false
	o.startPollingLocked(f)
	return nil
}

// Snapshot reports the workflow's current position.
func (o *Orchestrator) Snapshot(ownerID uuid.UUID) Status {
	f := o.flowFor(ownerID)
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{State: f.state, ContentID: f.contentID, TimedOut: f.timedOut}
}

// Preview returns the current draft snapshot.
func (o *Orchestrator) Preview(ownerID uuid.UUID) (*models.ContentItem, error) {
	f := o.flowFor(ownerID)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.draft == nil {
		return nil, ErrNoActiveDraft
	}
	return f.draft.Item(), nil
}

// EditPart applies a partial edit to one part and returns the re-fetched
// authoritative draft.
func (o *Orchestrator) EditPart(ctx context.Context, ownerID uuid.UUID, partNumber string, update *remote.PartUpdate) (*models.ContentItem, error) {
	f := o.flowFor(ownerID)
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StatePreviewing || f.draft == nil {
		return nil, ErrNotPreviewing
	}
	if err := f.draft.ApplyEdit(ctx, partNumber, update); err != nil {
		return nil, err
	}
	return f.draft.Item(), nil
}

// RemoveVideoLink drops one video link from a part by index.
func (o *Orchestrator) RemoveVideoLink(ctx context.Context, ownerID uuid.UUID, partNumber string, index int) (*models.ContentItem, error) {
	f := o.flowFor(ownerID)
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StatePreviewing || f.draft == nil {
		return nil, ErrNotPreviewing
	}
	if err := f.draft.RemoveVideoLink(ctx, partNumber, index); err != nil {
		return nil, err
	}
	return f.draft.Item(), nil
}

// OverrideSlot stages a local per-part schedule override. Overrides are
// preview-only; they shape timeline renders until submitted or cleared and
// are never sent to the remote service.
func (o *Orchestrator) OverrideSlot(ownerID uuid.UUID, partIndex int, date, timeOfDay string) error {
	f := o.flowFor(ownerID)
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StatePreviewing || f.draft == nil {
		return ErrNotPreviewing
	}
	if err := f.overrides.Set(partIndex, date, timeOfDay); err != nil {
		return errValidation("%v", err)
	}
	return nil
}

// Timeline renders the delivery timeline for the active draft under the
// given config, with staged overrides applied.
func (o *Orchestrator) Timeline(ownerID uuid.UUID, cfg models.ScheduleConfig) ([]models.DeliverySlot, error) {
	f := o.flowFor(ownerID)
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StatePreviewing || f.draft == nil {
		return nil, ErrNotPreviewing
	}
	return o.renderTimelineLocked(f, cfg)
}

func (o *Orchestrator) renderTimelineLocked(f *flow, cfg models.ScheduleConfig) ([]models.DeliverySlot, error) {
	item := f.draft.Item()
	slots, err := scheduler.ComputeTimeline(cfg, item.TotalParts)
	if err != nil {
		return nil, errValidation("%v", err)
	}
	for i := range slots {
		if i < len(item.Parts) {
			slots[i].PartNumber = item.Parts[i].PartNumber
		}
	}
	return f.overrides.Apply(slots), nil
}

// ConfirmSchedule validates the config locally, issues the remote schedule
// call, refreshes the scheduled-content list, and resets the workflow to
// idle for a fresh upload. On failure the workflow stays in preview.
func (o *Orchestrator) ConfirmSchedule(ctx context.Context, ownerID uuid.UUID, cfg models.ScheduleConfig) ([]models.DeliverySlot, error) {
	f := o.flowFor(ownerID)
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StatePreviewing || f.draft == nil {
		return nil, ErrNotPreviewing
	}
	item := f.draft.Item()
	if !item.IsReadyForScheduling {
		return nil, ErrDraftNotReady
	}
	if err := scheduler.ValidateConfig(cfg, time.Now()); err != nil {
		// Rejected locally; no remote call is made.
		return nil, errValidation("%v", err)
	}

	display, err := o.renderTimelineLocked(f, cfg)
	if err != nil {
		return nil, err
	}

	req := &remote.ScheduleRequest{
		ContentID:    item.ContentID,
		StartDate:    cfg.StartDate,
		ClassID:      item.ClassID,
		DeliveryTime: cfg.DeliveryTime,
		IntervalDays: cfg.IntervalDays,
	}
	if cfg.UseDefaultSchedule {
		req.DeliveryTime = scheduler.DefaultDeliveryTime
		req.IntervalDays = scheduler.DefaultIntervalDays
	}

	if err := o.svc.ScheduleDelivery(ctx, req); err != nil {
		o.recordFailure(ctx, f, err)
		return nil, err
	}

	o.setState(f, StateScheduled)
	o.persistTimeline(ctx, f, display)

	if o.monitor != nil {
		o.monitor.List(ctx, ownerID, "", true)
	}

	// Fresh upload slot: the scheduled item now lives in the monitoring
	// panel, not in the wizard.
	o.resetLocked(f)
	return display, nil
}

// Clear discards all local draft state without contacting the remote
// service. Allowed from any state.
func (o *Orchestrator) Clear(ownerID uuid.UUID) {
	f := o.flowFor(ownerID)
	f.mu.Lock()
	defer f.mu.Unlock()
	o.resetLocked(f)
}

// resetLocked returns the flow to idle and invalidates in-flight timers.
// Caller holds f.mu.
func (o *Orchestrator) resetLocked(f *flow) {
	f.gen++
	f.poll.Cancel()
	f.draft = nil
	f.contentID = ""
	f.timedOut = false
	f.overrides = scheduler.OverrideSet{}
	o.setState(f, StateIdle)
	f.sessionID = uuid.Nil
}

// setState transitions the flow and announces the change. Caller holds f.mu.
func (o *Orchestrator) setState(f *flow, s State) {
	f.state = s
	o.pub.Publish(context.Background(), f.ownerID, models.WSMessage{
		Type:    "workflow_state",
		Payload: models.WorkflowStateChange{State: string(s), ContentID: f.contentID},
	})
	o.persistState(f)
}

func (o *Orchestrator) createSession(ctx context.Context, ownerID uuid.UUID, in SubmitInput) uuid.UUID {
	if o.store == nil {
		return uuid.Nil
	}
	s := &models.WorkflowSession{
		OwnerID:    ownerID,
		ClassID:    in.ClassID,
		Subject:    in.Subject,
		TotalParts: in.NumParts,
		State:      string(StateUploading),
	}
	if err := o.store.Create(ctx, s); err != nil {
		log.Printf("failed to record workflow session for owner %s: %v", ownerID, err)
		return uuid.Nil
	}
	return s.ID
}

func (o *Orchestrator) persistState(f *flow) {
	if o.store == nil || f.sessionID == uuid.Nil {
		return
	}
	var contentID *string
	if f.contentID != "" {
		id := f.contentID
		contentID = &id
	}
	if err := o.store.UpdateState(context.Background(), f.sessionID, string(f.state), contentID, nil); err != nil {
		log.Printf("failed to update workflow session %s: %v", f.sessionID, err)
	}
}

func (o *Orchestrator) recordFailure(ctx context.Context, f *flow, cause error) {
	o.pub.Publish(ctx, f.ownerID, models.WSMessage{
		Type: "workflow_error",
		Payload: models.WorkflowErrorEvent{
			State:        string(f.state),
			ErrorCode:    "OPERATION_FAILED",
			ErrorMessage: cause.Error(),
		},
	})
	if o.store == nil || f.sessionID == uuid.Nil {
		return
	}
	msg := cause.Error()
	var contentID *string
	if f.contentID != "" {
		id := f.contentID
		contentID = &id
	}
	if err := o.store.UpdateState(context.Background(), f.sessionID, string(f.state), contentID, &msg); err != nil {
		log.Printf("failed to record workflow failure on session %s: %v", f.sessionID, err)
	}
}

func (o *Orchestrator) persistTimeline(ctx context.Context, f *flow, slots []models.DeliverySlot) {
	if o.store == nil || f.sessionID == uuid.Nil {
		return
	}
	data, err := json.Marshal(slots)
	if err != nil {
		return
	}
	if err := o.store.UpdateTimeline(ctx, f.sessionID, data); err != nil {
		log.Printf("failed to cache timeline on session %s: %v", f.sessionID, err)
	}
}

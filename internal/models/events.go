package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Progress sources. Only poll progress may ever reach 100; animation frames
// are cosmetic and stay below it.
const (
	ProgressSourcePoll      = "poll"
	ProgressSourceAnimation = "animation"
)

type EnhancementProgress struct {
	ContentID string `json:"content_id"`
	Attempt   int    `json:"attempt"`
	Progress  int    `json:"progress"`
	Source    string `json:"source"`
}

type EnhancementReady struct {
	ContentID string `json:"content_id"`
	Attempts  int    `json:"attempts"`
}

type EnhancementTimeout struct {
	ContentID string `json:"content_id"`
	Attempts  int    `json:"attempts"`
	Message   string `json:"message"`
}

type WorkflowStateChange struct {
	State     string `json:"state"`
	ContentID string `json:"content_id,omitempty"`
}

type WorkflowErrorEvent struct {
	State        string `json:"state"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// WorkflowSession is the persisted record of one upload-through-schedule run,
// kept so past runs and their outcomes stay listable after the in-memory
// workflow resets.
type WorkflowSession struct {
	ID           uuid.UUID       `json:"id"`
	OwnerID      uuid.UUID       `json:"owner_id"`
	ContentID    *string         `json:"content_id"`
	ClassID      string          `json:"class_id"`
	Subject      string          `json:"subject"`
	TotalParts   int             `json:"total_parts"`
	State        string          `json:"state"`
	TimelineJSON json.RawMessage `json:"timeline,omitempty"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}

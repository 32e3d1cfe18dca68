package models

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Content lifecycle states as reported by the remote content service.
const (
	StatusUploading  = "uploading"
	StatusEnhancing  = "enhancing"
	StatusPreview    = "preview"
	StatusScheduled  = "scheduled"
	StatusDelivering = "delivering"
	StatusCompleted  = "completed"
)

// Per-part delivery states.
const (
	DeliveryScheduled = "scheduled"
	DeliveryDelivered = "delivered"
)

// ContentItem is a multi-part teaching unit owned by the remote content
// service. The contentId is assigned remotely on upload acceptance; subject
// and classId are immutable after upload.
type ContentItem struct {
	ContentID            string        `json:"content_id"`
	OwnerID              uuid.UUID     `json:"owner_id"`
	Subject              string        `json:"subject"`
	ClassID              string        `json:"class_id"`
	Status               string        `json:"status"`
	TotalParts           int           `json:"total_parts"`
	Parts                []ContentPart `json:"parts"`
	IsReadyForScheduling bool          `json:"is_ready_for_scheduling"`
	CanEdit              bool          `json:"can_edit"`
	CreatedAt            time.Time     `json:"created_at"`
}

// AllPartsDelivered reports whether every part has been delivered. The item
// reaches its terminal "completed" status once this holds.
func (c *ContentItem) AllPartsDelivered() bool {
	if len(c.Parts) == 0 {
		return false
	}
	for _, p := range c.Parts {
		if p.DeliveryStatus != DeliveryDelivered {
			return false
		}
	}
	return true
}

// Part looks up a part by its label. Part numbers are stable labels, not
// slice indexes.
func (c *ContentItem) Part(partNumber string) *ContentPart {
	for i := range c.Parts {
		if c.Parts[i].PartNumber == partNumber {
			return &c.Parts[i]
		}
	}
	return nil
}

type ContentPart struct {
	PartNumber         string             `json:"part_number"`
	Summary            string             `json:"summary"`
	EnhancedContent    string             `json:"enhanced_content"`
	VideoLinks         []VideoLink        `json:"video_links"`
	PracticeQuestions  []PracticeQuestion `json:"practice_questions"`
	EstimatedStudyTime int                `json:"estimated_study_time"`
	ScheduledDate      *time.Time         `json:"scheduled_date,omitempty"`
	DeliveryStatus     string             `json:"delivery_status,omitempty"`
}

type VideoLink struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Duration int    `json:"duration"`
}

// answerDelimiter splits plain-string practice questions into question and
// answer halves. The remote service emits both this legacy string form and
// the structured object form.
const answerDelimiter = "answer:"

// AnswerPlaceholder is substituted when a plain-string question carries no
// recognizable answer.
const AnswerPlaceholder = "Answer not provided"

// PracticeQuestion is the normalized question/answer pair. The wire format is
// a tagged variant: either a plain string (possibly containing "Answer:") or
// an object with explicit fields. Both decode into this one shape.
type PracticeQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (q *PracticeQuestion) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*q = ParsePlainQuestion(s)
		return nil
	}

	var obj struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return err
	}
	if obj.Answer == "" {
		obj.Answer = AnswerPlaceholder
	}
	q.Question = obj.Question
	q.Answer = obj.Answer
	return nil
}

// ParsePlainQuestion splits a legacy plain-string question on the embedded
// answer delimiter (case-insensitive). Without a delimiter the whole string
// is the question and the answer falls back to the placeholder.
func ParsePlainQuestion(s string) PracticeQuestion {
	lower := strings.ToLower(s)
	idx := strings.Index(lower, answerDelimiter)
	if idx < 0 {
		return PracticeQuestion{
			Question: strings.TrimSpace(s),
			Answer:   AnswerPlaceholder,
		}
	}

	question := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s[:idx]), "[("))
	answer := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s[idx+len(answerDelimiter):]), "])"))
	if question == "" || answer == "" {
		return PracticeQuestion{
			Question: strings.TrimSpace(s),
			Answer:   AnswerPlaceholder,
		}
	}

	return PracticeQuestion{Question: question, Answer: answer}
}

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"coursecast-backend/internal/models"
)

// ContentService is the external service that stores, enhances, and delivers
// content items. Enhancement itself is opaque; this interface is the full
// contract the workflow depends on.
type ContentService interface {
	GetUploadLocation(ctx context.Context, ownerID uuid.UUID, fileName string, fileSize int64) (*UploadLocation, error)
	UploadToLocation(ctx context.Context, writeURL string, data []byte, contentType string) error
	SubmitContent(ctx context.Context, req *SubmitRequest) (string, error)
	GetPreview(ctx context.Context, contentID string) (*models.ContentItem, error)
	UpdatePart(ctx context.Context, contentID, partNumber string, update *PartUpdate) error
	ScheduleDelivery(ctx context.Context, req *ScheduleRequest) error
	ListScheduled(ctx context.Context, ownerID uuid.UUID, classID string) ([]models.ContentItem, error)
	SendPartNow(ctx context.Context, contentID, partNumber string, ownerID uuid.UUID) (int, error)
}

// UploadLocation is a one-time write target for payloads too large to inline
// into the processing request.
type UploadLocation struct {
	WriteURL  string `json:"write_url"`
	Reference string `json:"reference"`
	ExpiresIn int    `json:"expires_in"`
}

// SubmitRequest carries exactly one of InlinePayload, Reference, or
// TopicName.
type SubmitRequest struct {
	OwnerID       uuid.UUID `json:"owner_id"`
	ClassID       string    `json:"class_id"`
	Subject       string    `json:"subject"`
	NumParts      int       `json:"num_parts"`
	Instructions  string    `json:"instructions,omitempty"`
	Language      string    `json:"language,omitempty"`
	InlinePayload string    `json:"inline_payload,omitempty"` // base64
	Reference     string    `json:"reference,omitempty"`
	TopicName     string    `json:"topic_name,omitempty"`
}

// PartUpdate is a partial update; nil fields are left untouched remotely.
// The response body is never trusted — callers must re-fetch the preview.
type PartUpdate struct {
	EnhancedContent *string             `json:"enhanced_content,omitempty"`
	VideoLinks      *[]models.VideoLink `json:"video_links,omitempty"`
}

type ScheduleRequest struct {
	ContentID    string `json:"content_id"`
	StartDate    string `json:"start_date"`
	ClassID      string `json:"class_id"`
	DeliveryTime string `json:"delivery_time,omitempty"`
	IntervalDays int    `json:"interval_days,omitempty"`
}

// Error covers both transport failures and application-level error payloads.
// Callers treat them uniformly: operation failed, reason: <message>.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("operation failed, reason: %s", e.Message)
}

// Client talks to the remote content service over its REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) GetUploadLocation(ctx context.Context, ownerID uuid.UUID, fileName string, fileSize int64) (*UploadLocation, error) {
	body := map[string]interface{}{
		"owner_id":  ownerID,
		"file_name": fileName,
		"file_size": fileSize,
	}

	loc := &UploadLocation{}
	if err := c.do(ctx, http.MethodPost, "/v1/content/upload-location", body, loc); err != nil {
		return nil, err
	}
	if loc.WriteURL == "" || loc.Reference == "" {
		return nil, &Error{Status: http.StatusBadGateway, Code: "REMOTE_ERROR", Message: "upload location response missing write target"}
	}
	return loc, nil
}

// UploadToLocation transfers a staged payload to a previously acquired write
// target. The target URL is absolute and pre-authorized; no API key is sent.
func (c *Client) UploadToLocation(ctx context.Context, writeURL string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, writeURL, bytes.NewReader(data))
	if err != nil {
		return &Error{Code: "TRANSPORT_ERROR", Message: err.Error()}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Code: "TRANSPORT_ERROR", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) SubmitContent(ctx context.Context, req *SubmitRequest) (string, error) {
	var out struct {
		ContentID string `json:"content_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/content/submit", req, &out); err != nil {
		return "", err
	}
	if out.ContentID == "" {
		return "", &Error{Status: http.StatusBadGateway, Code: "REMOTE_ERROR", Message: "submission accepted without a content id"}
	}
	return out.ContentID, nil
}

func (c *Client) GetPreview(ctx context.Context, contentID string) (*models.ContentItem, error) {
	item := &models.ContentItem{}
	path := "/v1/content/" + url.PathEscape(contentID) + "/preview"
	if err := c.do(ctx, http.MethodGet, path, nil, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (c *Client) UpdatePart(ctx context.Context, contentID, partNumber string, update *PartUpdate) error {
	path := "/v1/content/" + url.PathEscape(contentID) + "/parts/" + url.PathEscape(partNumber)
	return c.do(ctx, http.MethodPatch, path, update, nil)
}

func (c *Client) ScheduleDelivery(ctx context.Context, req *ScheduleRequest) error {
	path := "/v1/content/" + url.PathEscape(req.ContentID) + "/schedule"
	return c.do(ctx, http.MethodPost, path, req, nil)
}

func (c *Client) ListScheduled(ctx context.Context, ownerID uuid.UUID, classID string) ([]models.ContentItem, error) {
	path := "/v1/content/scheduled?owner_id=" + url.QueryEscape(ownerID.String())
	if classID != "" {
		path += "&class_id=" + url.QueryEscape(classID)
	}

	var out struct {
		Items []models.ContentItem `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (c *Client) SendPartNow(ctx context.Context, contentID, partNumber string, ownerID uuid.UUID) (int, error) {
	path := "/v1/content/" + url.PathEscape(contentID) + "/parts/" + url.PathEscape(partNumber) + "/send-now"
	body := map[string]interface{}{"owner_id": ownerID}

	var out struct {
		NotifiedCount int `json:"notified_count"`
	}
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return 0, err
	}
	return out.NotifiedCount, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Code: "TRANSPORT_ERROR", Message: err.Error()}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Code: "TRANSPORT_ERROR", Message: err.Error()}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Code: "TRANSPORT_ERROR", Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Status: resp.StatusCode, Code: "REMOTE_ERROR", Message: "malformed response: " + err.Error()}
	}
	return nil
}

// decodeError extracts the application error payload when present. The
// service answers with either {"error":{"code","message"}} or a flat
// {"error":"..."} / {"message":"..."} body.
func decodeError(resp *http.Response) *Error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	var nested struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &nested); err == nil && nested.Error.Message != "" {
		code := nested.Error.Code
		if code == "" {
			code = "REMOTE_ERROR"
		}
		return &Error{Status: resp.StatusCode, Code: code, Message: nested.Error.Message}
	}

	var flat struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &flat); err == nil {
		msg := flat.Error
		if msg == "" {
			msg = flat.Message
		}
		if msg != "" {
			return &Error{Status: resp.StatusCode, Code: "REMOTE_ERROR", Message: msg}
		}
	}

	return &Error{Status: resp.StatusCode, Code: "REMOTE_ERROR", Message: resp.Status}
}

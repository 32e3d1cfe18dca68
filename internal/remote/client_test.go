package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestSubmitContent(t *testing.T) {
	var gotBody SubmitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/content/submit" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]string{"content_id": "CNT-20260824-001"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key")
	contentID, err := c.SubmitContent(context.Background(), &SubmitRequest{
		OwnerID:       uuid.New(),
		ClassID:       "class-7b",
		Subject:       "Biology",
		NumParts:      3,
		InlinePayload: "aGVsbG8=",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if contentID != "CNT-20260824-001" {
		t.Errorf("expected content id, got %q", contentID)
	}
	if gotBody.ClassID != "class-7b" || gotBody.NumParts != 3 {
		t.Errorf("request body not forwarded: %+v", gotBody)
	}
}

func TestSubmitContent_MissingContentID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.SubmitContent(context.Background(), &SubmitRequest{TopicName: "Photosynthesis"})
	if err == nil {
		t.Fatal("expected error for acceptance without content id")
	}
}

func TestErrorDecoding(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{
			"nested envelope",
			http.StatusConflict,
			`{"error":{"code":"ALREADY_SCHEDULED","message":"content is already scheduled"}}`,
			"content is already scheduled",
		},
		{
			"flat error field",
			http.StatusBadRequest,
			`{"error":"invalid due date"}`,
			"invalid due date",
		},
		{
			"flat message field",
			http.StatusNotFound,
			`{"message":"content not found"}`,
			"content not found",
		},
		{
			"unparseable body falls back to status",
			http.StatusBadGateway,
			`<html>bad gateway</html>`,
			"502 Bad Gateway",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, "")
			_, err := c.GetPreview(context.Background(), "CNT-1")
			if err == nil {
				t.Fatal("expected error")
			}

			var remoteErr *Error
			if !errors.As(err, &remoteErr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if remoteErr.Status != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, remoteErr.Status)
			}
			// Uniform caller-facing message regardless of failure shape.
			want := "operation failed, reason: " + tc.message
			if err.Error() != want {
				t.Errorf("expected %q, got %q", want, err.Error())
			}
		})
	}
}

func TestTransportErrorIsUniform(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "") // nothing listens here
	_, err := c.GetPreview(context.Background(), "CNT-1")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !strings.HasPrefix(err.Error(), "operation failed, reason: ") {
		t.Errorf("transport errors must share the uniform message, got %q", err.Error())
	}
}

func TestSendPartNow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/parts/2/send-now") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]int{"notified_count": 31})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	notified, err := c.SendPartNow(context.Background(), "CNT-1", "2", uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notified != 31 {
		t.Errorf("expected 31, got %d", notified)
	}
}

func TestGetUploadLocation_RejectsIncompleteResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"reference": "staging/abc"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.GetUploadLocation(context.Background(), uuid.New(), "notes.pdf", 1024)
	if err == nil {
		t.Fatal("expected error for response without a write URL")
	}
}

func TestUploadToLocation_NoAPIKeyLeaks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if auth := r.Header.Get("Authorization"); auth != "" {
			t.Errorf("staged upload must not carry the API key, got %q", auth)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient("http://unused", "secret-key")
	if err := c.UploadToLocation(context.Background(), srv.URL, []byte("data"), "application/pdf"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

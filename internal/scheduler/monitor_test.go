package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"coursecast-backend/internal/models"
)

type fakeLister struct {
	items     []models.ContentItem
	err       error
	listCalls int
	sendCalls int
	sendErr   error
	notified  int
}

func (f *fakeLister) ListScheduled(ctx context.Context, ownerID uuid.UUID, classID string) ([]models.ContentItem, error) {
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func (f *fakeLister) SendPartNow(ctx context.Context, contentID, partNumber string, ownerID uuid.UUID) (int, error) {
	f.sendCalls++
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	return f.notified, nil
}

func TestMonitorList_DegradesToCachedOnFailure(t *testing.T) {
	ownerID := uuid.New()
	svc := &fakeLister{items: []models.ContentItem{{ContentID: "CNT-1"}}}
	m := NewMonitor(svc, nil, time.Minute)

	items := m.List(context.Background(), ownerID, "", true)
	if len(items) != 1 || items[0].ContentID != "CNT-1" {
		t.Fatalf("expected fresh listing, got %+v", items)
	}

	svc.err = errors.New("upstream down")
	items = m.List(context.Background(), ownerID, "", true)
	if len(items) != 1 || items[0].ContentID != "CNT-1" {
		t.Errorf("expected stale listing on failure, got %+v", items)
	}
}

func TestMonitorList_EmptyWhenNothingCached(t *testing.T) {
	svc := &fakeLister{err: errors.New("upstream down")}
	m := NewMonitor(svc, nil, time.Minute)

	items := m.List(context.Background(), uuid.New(), "", true)
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil listing, got %#v", items)
	}
}

func TestMonitorList_ClassScopedCaches(t *testing.T) {
	ownerID := uuid.New()
	svc := &fakeLister{items: []models.ContentItem{{ContentID: "CNT-1", ClassID: "class-a"}}}
	m := NewMonitor(svc, nil, time.Minute)

	m.List(context.Background(), ownerID, "class-a", true)
	svc.items = []models.ContentItem{{ContentID: "CNT-2"}}
	m.List(context.Background(), ownerID, "", true)

	svc.err = errors.New("upstream down")
	scoped := m.List(context.Background(), ownerID, "class-a", true)
	if len(scoped) != 1 || scoped[0].ContentID != "CNT-1" {
		t.Errorf("class-scoped cache was clobbered: %+v", scoped)
	}
}

func TestMonitorSendNow(t *testing.T) {
	ownerID := uuid.New()
	svc := &fakeLister{notified: 28, items: []models.ContentItem{{ContentID: "CNT-1"}}}
	m := NewMonitor(svc, nil, time.Minute)

	notified, items, err := m.SendNow(context.Background(), ownerID, "CNT-1", "2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if notified != 28 {
		t.Errorf("expected 28 notified, got %d", notified)
	}
	if len(items) != 1 {
		t.Errorf("expected refreshed listing, got %+v", items)
	}
	if svc.listCalls == 0 {
		t.Error("SendNow must force a list refresh")
	}
}

func TestMonitorSendNow_FailsLoudly(t *testing.T) {
	svc := &fakeLister{sendErr: errors.New("part already delivered")}
	m := NewMonitor(svc, nil, time.Minute)

	_, _, err := m.SendNow(context.Background(), uuid.New(), "CNT-1", "2")
	if err == nil {
		t.Fatal("expected error from failed send")
	}
	if svc.listCalls != 0 {
		t.Error("failed send must not refresh the listing")
	}
}

package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"coursecast-backend/internal/models"
)

type fakeFetcher struct {
	mu         sync.Mutex
	calls      int
	readyAfter int // item becomes ready on this call; 0 means never
	errUntil   int // calls up to this count fail
	item       *models.ContentItem
}

func (f *fakeFetcher) GetPreview(ctx context.Context, contentID string) (*models.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.errUntil {
		return nil, errors.New("temporarily unavailable")
	}
	if f.readyAfter > 0 && f.calls >= f.readyAfter {
		item := *f.item
		item.IsReadyForScheduling = true
		return &item, nil
	}
	item := *f.item
	return &item, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []models.WSMessage
}

func (r *recordingPublisher) Publish(ctx context.Context, ownerID uuid.UUID, msg models.WSMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recordingPublisher) byType(msgType string) []models.WSMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.WSMessage
	for _, m := range r.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

func fastConfig(maxAttempts int) Config {
	return Config{
		Delay:         time.Millisecond,
		MaxAttempts:   maxAttempts,
		AnimationTick: 0, // no cosmetic frames in tests
	}
}

func TestPoller_ReadyReportsExactly100(t *testing.T) {
	fetcher := &fakeFetcher{readyAfter: 3, item: &models.ContentItem{ContentID: "CNT-1"}}
	pub := &recordingPublisher{}
	p := New(fetcher, pub, fastConfig(30))

	readyCh := make(chan *models.ContentItem, 1)
	p.Start(uuid.New(), "CNT-1",
		func(item *models.ContentItem) { readyCh <- item },
		func(int) { t.Error("unexpected timeout") },
	)

	select {
	case item := <-readyCh:
		if !item.IsReadyForScheduling {
			t.Error("delivered item must be ready for scheduling")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller never reported ready")
	}

	var hundreds int
	for _, m := range pub.byType("enhancement_progress") {
		prog := m.Payload.(models.EnhancementProgress)
		if prog.Progress == 100 {
			hundreds++
		}
		if prog.Progress > 100 {
			t.Errorf("progress above 100: %d", prog.Progress)
		}
	}
	if hundreds != 1 {
		t.Errorf("expected exactly one 100%% report, got %d", hundreds)
	}
	if len(pub.byType("enhancement_ready")) != 1 {
		t.Error("expected one enhancement_ready event")
	}
}

func TestPoller_ProgressNeverReaches100BeforeReady(t *testing.T) {
	fetcher := &fakeFetcher{item: &models.ContentItem{ContentID: "CNT-1"}}
	pub := &recordingPublisher{}
	p := New(fetcher, pub, fastConfig(30))

	timeoutCh := make(chan int, 1)
	p.Start(uuid.New(), "CNT-1",
		func(*models.ContentItem) { t.Error("unexpected ready") },
		func(attempts int) { timeoutCh <- attempts },
	)

	select {
	case <-timeoutCh:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never timed out")
	}

	for _, m := range pub.byType("enhancement_progress") {
		prog := m.Payload.(models.EnhancementProgress)
		if prog.Progress >= 100 {
			t.Errorf("attempt %d reported %d%%; completion may only come from the ready signal", prog.Attempt, prog.Progress)
		}
	}
}

func TestPoller_TimeoutAfterMaxAttempts(t *testing.T) {
	fetcher := &fakeFetcher{item: &models.ContentItem{ContentID: "CNT-1"}}
	pub := &recordingPublisher{}
	p := New(fetcher, pub, fastConfig(5))

	timeoutCh := make(chan int, 1)
	p.Start(uuid.New(), "CNT-1",
		func(*models.ContentItem) { t.Error("unexpected ready") },
		func(attempts int) { timeoutCh <- attempts },
	)

	var attempts int
	select {
	case attempts = <-timeoutCh:
	case <-time.After(2 * time.Second):
		t.Fatal("poller never timed out")
	}

	if attempts != 5 {
		t.Errorf("expected 5 attempts, got %d", attempts)
	}

	// Allow any stray goroutine work to settle, then confirm no further calls.
	time.Sleep(20 * time.Millisecond)
	if calls := fetcher.callCount(); calls != 5 {
		t.Errorf("expected exactly 5 fetches, got %d", calls)
	}
	if len(pub.byType("enhancement_timeout")) != 1 {
		t.Error("expected one enhancement_timeout event")
	}
}

func TestPoller_TransientErrorsCountTowardCap(t *testing.T) {
	fetcher := &fakeFetcher{errUntil: 100, item: &models.ContentItem{ContentID: "CNT-1"}}
	pub := &recordingPublisher{}
	p := New(fetcher, pub, fastConfig(4))

	timeoutCh := make(chan int, 1)
	p.Start(uuid.New(), "CNT-1",
		func(*models.ContentItem) { t.Error("unexpected ready") },
		func(attempts int) { timeoutCh <- attempts },
	)

	select {
	case attempts := <-timeoutCh:
		if attempts != 4 {
			t.Errorf("errors must count toward the cap; expected 4 attempts, got %d", attempts)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller never timed out")
	}

	// Failed attempts produce no progress reports.
	if n := len(pub.byType("enhancement_progress")); n != 0 {
		t.Errorf("expected no progress events for failed attempts, got %d", n)
	}
}

func TestPoller_CancelDropsCallbacks(t *testing.T) {
	fetcher := &fakeFetcher{readyAfter: 50, item: &models.ContentItem{ContentID: "CNT-1"}}
	p := New(fetcher, &recordingPublisher{}, fastConfig(100))

	p.Start(uuid.New(), "CNT-1",
		func(*models.ContentItem) { t.Error("callback fired after cancel") },
		func(int) { t.Error("timeout fired after cancel") },
	)
	p.Cancel()

	time.Sleep(50 * time.Millisecond)
}

func TestPoller_StartSupersedesPriorSequence(t *testing.T) {
	fetcher := &fakeFetcher{readyAfter: 2, item: &models.ContentItem{ContentID: "CNT-1"}}
	p := New(fetcher, &recordingPublisher{}, fastConfig(30))

	p.Start(uuid.New(), "CNT-1",
		func(*models.ContentItem) { t.Error("superseded callback fired") },
		func(int) { t.Error("superseded timeout fired") },
	)

	readyCh := make(chan struct{}, 1)
	p.Start(uuid.New(), "CNT-1",
		func(*models.ContentItem) { readyCh <- struct{}{} },
		func(int) { t.Error("unexpected timeout") },
	)

	select {
	case <-readyCh:
	case <-time.After(2 * time.Second):
		t.Fatal("replacement sequence never completed")
	}
}

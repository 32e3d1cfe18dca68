package poller

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"coursecast-backend/internal/events"
	"coursecast-backend/internal/models"
)

// PreviewFetcher is the slice of the remote contract the poller needs.
type PreviewFetcher interface {
	GetPreview(ctx context.Context, contentID string) (*models.ContentItem, error)
}

type Config struct {
	Delay         time.Duration // between poll attempts
	MaxAttempts   int
	AnimationTick time.Duration // cosmetic progress frame rate; 0 disables
}

func DefaultConfig() Config {
	return Config{
		Delay:         6 * time.Second,
		MaxAttempts:   30,
		AnimationTick: time.Second,
	}
}

// animationCap keeps cosmetic frames strictly below real completion. Only an
// observed is_ready_for_scheduling signals completion.
const animationCap = 95

// Poller repeatedly fetches the preview of one content item until enhancement
// completes or the attempt cap is hit. A single poll sequence is active at a
// time; starting a new one cancels the prior sequence and invalidates its
// pending callbacks via a generation counter.
type Poller struct {
	fetch PreviewFetcher
	pub   events.Publisher
	cfg   Config

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
}

func New(fetch PreviewFetcher, pub events.Publisher, cfg Config) *Poller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 30
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 6 * time.Second
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	return &Poller{fetch: fetch, pub: pub, cfg: cfg}
}

// Start begins polling for contentID. onReady receives the completed draft;
// onTimeout fires once the attempt cap is exceeded. Either callback is
// dropped if the sequence has been superseded or canceled in the meantime.
// Returns the generation tag of the new sequence.
func (p *Poller) Start(ownerID uuid.UUID, contentID string, onReady func(*models.ContentItem), onTimeout func(attempts int)) uint64 {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.generation++
	gen := p.generation
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	go p.poll(ctx, gen, ownerID, contentID, onReady, onTimeout)
	if p.cfg.AnimationTick > 0 {
		go p.animate(ctx, ownerID, contentID)
	}
	return gen
}

// Cancel stops the active sequence and marks its callbacks stale.
func (p *Poller) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.generation++
}

func (p *Poller) current(gen uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation == gen
}

func (p *Poller) poll(ctx context.Context, gen uint64, ownerID uuid.UUID, contentID string, onReady func(*models.ContentItem), onTimeout func(int)) {
	attempts := 0

	for {
		if ctx.Err() != nil {
			return
		}

		item, err := p.fetch.GetPreview(ctx, contentID)
		if err == nil && item.IsReadyForScheduling {
			if !p.current(gen) {
				return
			}
			p.pub.Publish(ctx, ownerID, models.WSMessage{
				Type: "enhancement_progress",
				Payload: models.EnhancementProgress{
					ContentID: contentID,
					Attempt:   attempts,
					Progress:  100,
					Source:    models.ProgressSourcePoll,
				},
			})
			p.pub.Publish(ctx, ownerID, models.WSMessage{
				Type:    "enhancement_ready",
				Payload: models.EnhancementReady{ContentID: contentID, Attempts: attempts},
			})
			onReady(item)
			return
		}

		attempts++

		if err != nil {
			// Transient: no progress report, but the attempt still counts
			// toward the cap so errors cannot extend the total wait.
			log.Printf("poll %s attempt %d failed: %v", contentID, attempts, err)
		} else {
			progress := 20 + attempts*4
			if progress > animationCap {
				progress = animationCap
			}
			p.pub.Publish(ctx, ownerID, models.WSMessage{
				Type: "enhancement_progress",
				Payload: models.EnhancementProgress{
					ContentID: contentID,
					Attempt:   attempts,
					Progress:  progress,
					Source:    models.ProgressSourcePoll,
				},
			})
		}

		if attempts >= p.cfg.MaxAttempts {
			if !p.current(gen) {
				return
			}
			p.pub.Publish(ctx, ownerID, models.WSMessage{
				Type: "enhancement_timeout",
				Payload: models.EnhancementTimeout{
					ContentID: contentID,
					Attempts:  attempts,
					Message:   "enhancement is taking longer than expected",
				},
			})
			onTimeout(attempts)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.Delay):
		}
	}
}

// animate emits a deterministic easing curve on a fixed schedule so the UI
// moves between poll responses. Frames are informational only and never reach
// the cap.
func (p *Poller) animate(ctx context.Context, ownerID uuid.UUID, contentID string) {
	ticker := time.NewTicker(p.cfg.AnimationTick)
	defer ticker.Stop()

	value := 5.0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			value += (animationCap - value) * 0.12
			frame := int(value)
			if frame >= animationCap {
				frame = animationCap - 1
			}
			p.pub.Publish(ctx, ownerID, models.WSMessage{
				Type: "enhancement_progress",
				Payload: models.EnhancementProgress{
					ContentID: contentID,
					Progress:  frame,
					Source:    models.ProgressSourceAnimation,
				},
			})
		}
	}
}

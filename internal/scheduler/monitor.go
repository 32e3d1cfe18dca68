package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"coursecast-backend/internal/models"
)

// remoteLister is the slice of the remote contract the monitor needs.
type remoteLister interface {
	ListScheduled(ctx context.Context, ownerID uuid.UUID, classID string) ([]models.ContentItem, error)
	SendPartNow(ctx context.Context, contentID, partNumber string, ownerID uuid.UUID) (int, error)
}

const activeOwnersKey = "monitor:active_owners"

// Monitor backs the always-available scheduled-content panel. It lists
// previously scheduled content independently of the wizard state, caches
// listings per (owner, class), and exposes per-part immediate send. List
// failures degrade to the cached result instead of interrupting the caller;
// mutating calls (SendNow) always fail loudly.
type Monitor struct {
	svc   remoteLister
	cache *redis.Client // optional
	ttl   time.Duration
	cron  *cron.Cron

	mu       sync.RWMutex
	lastGood map[string][]models.ContentItem
}

func NewMonitor(svc remoteLister, cache *redis.Client, ttl time.Duration) *Monitor {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Monitor{
		svc:      svc,
		cache:    cache,
		ttl:      ttl,
		lastGood: make(map[string][]models.ContentItem),
	}
}

func cacheKey(ownerID uuid.UUID, classID string) string {
	if classID == "" {
		classID = "all"
	}
	return fmt.Sprintf("scheduled:%s:%s", ownerID.String(), classID)
}

// List returns the scheduled content for an owner. Unless forceRefresh is
// set, a fresh cached listing is served without a remote call. On remote
// failure the last known good listing is returned (empty when none exists);
// the monitoring panel never interrupts the workflow.
func (m *Monitor) List(ctx context.Context, ownerID uuid.UUID, classID string, forceRefresh bool) []models.ContentItem {
	key := cacheKey(ownerID, classID)

	if !forceRefresh {
		if items, ok := m.cached(ctx, key); ok {
			return items
		}
	}

	items, err := m.svc.ListScheduled(ctx, ownerID, classID)
	if err != nil {
		log.Printf("scheduled list refresh failed for owner %s: %v", ownerID, err)
		if items, ok := m.cached(ctx, key); ok {
			return items
		}
		return []models.ContentItem{}
	}
	if items == nil {
		items = []models.ContentItem{}
	}

	m.store(ctx, key, ownerID, items)
	return items
}

// SendNow delivers one part immediately, bypassing its scheduled slot, then
// re-fetches the scheduled list so server-side effects (delivery status,
// notification counts) are absorbed rather than patched locally.
func (m *Monitor) SendNow(ctx context.Context, ownerID uuid.UUID, contentID, partNumber string) (int, []models.ContentItem, error) {
	notified, err := m.svc.SendPartNow(ctx, contentID, partNumber, ownerID)
	if err != nil {
		return 0, nil, err
	}
	return notified, m.List(ctx, ownerID, "", true), nil
}

// StartAutoRefresh keeps listings warm for owners seen since startup. The
// schedule spec uses cron syntax, e.g. "@every 5m".
func (m *Monitor) StartAutoRefresh(spec string) error {
	if m.cron != nil {
		return nil
	}
	c := cron.New()
	_, err := c.AddFunc(spec, m.refreshActiveOwners)
	if err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", spec, err)
	}
	c.Start()
	m.cron = c
	return nil
}

func (m *Monitor) StopAutoRefresh() {
	if m.cron != nil {
		m.cron.Stop()
		m.cron = nil
	}
}

func (m *Monitor) refreshActiveOwners() {
	if m.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	ids, err := m.cache.SMembers(ctx, activeOwnersKey).Result()
	if err != nil {
		log.Printf("monitor auto-refresh: failed to read active owners: %v", err)
		return
	}
	for _, raw := range ids {
		ownerID, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		m.List(ctx, ownerID, "", true)
	}
}

func (m *Monitor) cached(ctx context.Context, key string) ([]models.ContentItem, bool) {
	if m.cache != nil {
		data, err := m.cache.Get(ctx, key).Bytes()
		if err == nil {
			var items []models.ContentItem
			if json.Unmarshal(data, &items) == nil {
				return items, true
			}
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	items, ok := m.lastGood[key]
	return items, ok
}

func (m *Monitor) store(ctx context.Context, key string, ownerID uuid.UUID, items []models.ContentItem) {
	m.mu.Lock()
	m.lastGood[key] = items
	m.mu.Unlock()

	if m.cache == nil {
		return
	}
	data, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := m.cache.Set(ctx, key, data, m.ttl).Err(); err != nil {
		log.Printf("monitor cache write failed for %s: %v", key, err)
	}
	m.cache.SAdd(ctx, activeOwnersKey, ownerID.String())
}

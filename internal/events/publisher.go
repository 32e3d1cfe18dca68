package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"coursecast-backend/internal/models"
)

// Publisher fans workflow events out to a single owner's connected clients.
type Publisher interface {
	Publish(ctx context.Context, ownerID uuid.UUID, msg models.WSMessage)
}

// RedisPublisher pushes events through Redis pub/sub; the WebSocket hub
// subscribes per owner on the other side.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, ownerID uuid.UUID, msg models.WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	p.client.Publish(ctx, ChannelFor(ownerID), string(data))
}

// ChannelFor names the per-owner pub/sub channel.
func ChannelFor(ownerID uuid.UUID) string {
	return fmt.Sprintf("owner_updates:%s", ownerID.String())
}

// NopPublisher discards events. Used when no fan-out backend is wired and in
// tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, uuid.UUID, models.WSMessage) {}

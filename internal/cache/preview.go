// Package cache keeps the per-conversation "last message" preview in Redis
// for fast conversation-list reads.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quiltchat/message-service/internal/domain"
)

const previewTTL = 24 * time.Hour

type PreviewCache struct {
	rdb    *redis.Client
	prefix string
}

func NewPreviewCache(rdb *redis.Client, prefix string) *PreviewCache {
	if prefix == "" {
		prefix = "chat"
	}
	return &PreviewCache{rdb: rdb, prefix: prefix}
}

func (c *PreviewCache) key(convID string) string {
	return c.prefix + ":conv:" + convID + ":preview"
}

func (c *PreviewCache) SetPreview(ctx context.Context, convID string, p *domain.MessagePreview) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(convID), b, previewTTL).Err()
}

// GetPreview returns (nil, nil) on a cache miss.
func (c *PreviewCache) GetPreview(ctx context.Context, convID string) (*domain.MessagePreview, error) {
	b, err := c.rdb.Get(ctx, c.key(convID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p domain.MessagePreview
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

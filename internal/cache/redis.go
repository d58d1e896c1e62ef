// Package cache wraps Redis for listing-item read caching and bid-event
// pub/sub fanout.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/forlotto/particl-market/internal/models"
)

const (
	listingKeyPrefix   = "listing:"
	eventChannelPrefix = "bid_events:"

	listingTTL = 30 * time.Second
)

// Cache wraps the Redis client with marketplace-specific operations.
type Cache struct {
	client *redis.Client
	log    *zap.Logger
}

// New creates a Cache and verifies connectivity.
func New(addr, password string, db int, log *zap.Logger) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{client: rdb, log: log}, nil
}

// GetListingItem returns a cached listing item, or false on a miss. Cache
// errors are treated as misses so Redis outages never fail a lookup.
func (c *Cache) GetListingItem(ctx context.Context, hash string) (*models.ListingItem, bool) {
	payload, err := c.client.Get(ctx, listingKeyPrefix+hash).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("listing cache read failed", zap.String("hash", hash), zap.Error(err))
		}
		return nil, false
	}

	var item models.ListingItem
	if err := json.Unmarshal(payload, &item); err != nil {
		c.log.Warn("listing cache entry corrupt", zap.String("hash", hash), zap.Error(err))
		return nil, false
	}
	return &item, true
}

// SetListingItem caches a listing item with a short TTL.
func (c *Cache) SetListingItem(ctx context.Context, item *models.ListingItem) {
	payload, err := json.Marshal(item)
	if err != nil {
		c.log.Warn("failed to marshal listing item", zap.String("hash", item.Hash), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, listingKeyPrefix+item.Hash, payload, listingTTL).Err(); err != nil {
		c.log.Warn("listing cache write failed", zap.String("hash", item.Hash), zap.Error(err))
	}
}

// InvalidateListingItem drops the cached entry for a listing item, e.g.
// after one of its bids changed status.
func (c *Cache) InvalidateListingItem(ctx context.Context, hash string) {
	if err := c.client.Del(ctx, listingKeyPrefix+hash).Err(); err != nil {
		c.log.Warn("listing cache invalidation failed", zap.String("hash", hash), zap.Error(err))
	}
}

// PublishBidEvent publishes a bid status event to the item's pub/sub
// channel for real-time broadcast.
func (c *Cache) PublishBidEvent(ctx context.Context, event *models.BidStatusEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return c.client.Publish(ctx, eventChannelPrefix+event.ItemHash, payload).Err()
}

// Message is a bid event received over pub/sub.
type Message struct {
	ItemHash string
	Payload  []byte
}

// ListenBidEvents pattern-subscribes to every bid-event channel and
// forwards messages until the context is cancelled. Blocking; run in a
// goroutine.
func (c *Cache) ListenBidEvents(ctx context.Context, out chan<- *Message) error {
	pubsub := c.client.PSubscribe(ctx, eventChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			out <- &Message{
				ItemHash: strings.TrimPrefix(msg.Channel, eventChannelPrefix),
				Payload:  []byte(msg.Payload),
			}
		}
	}
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

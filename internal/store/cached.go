package store

import (
	"context"

	"github.com/forlotto/particl-market/internal/cache"
	"github.com/forlotto/particl-market/internal/models"
)

// CachedStore fronts the Postgres store with the Redis listing cache. Bid
// updates go straight to Postgres and invalidate the listing entry so the
// next lookup sees the new status.
type CachedStore struct {
	pg    *Postgres
	cache *cache.Cache
}

// NewCachedStore wraps a Postgres store with the cache.
func NewCachedStore(pg *Postgres, c *cache.Cache) *CachedStore {
	return &CachedStore{pg: pg, cache: c}
}

// FindListingItemByHash tries the cache first and falls back to Postgres.
func (s *CachedStore) FindListingItemByHash(ctx context.Context, hash string) (*models.ListingItem, error) {
	if item, ok := s.cache.GetListingItem(ctx, hash); ok {
		return item, nil
	}

	item, err := s.pg.FindListingItemByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	s.cache.SetListingItem(ctx, item)
	return item, nil
}

// UpdateBidStatus delegates to Postgres and invalidates the listing's
// cached entry on success.
func (s *CachedStore) UpdateBidStatus(ctx context.Context, bidID int64, update models.BidStatusUpdate) (*models.Bid, error) {
	bid, err := s.pg.UpdateBidStatus(ctx, bidID, update)
	if err != nil {
		return nil, err
	}
	s.cache.InvalidateListingItem(ctx, bid.ListingItemHash)
	return bid, nil
}

// InsertOrder delegates to Postgres.
func (s *CachedStore) InsertOrder(ctx context.Context, record *models.OrderCreateRecord) (*models.Order, error) {
	return s.pg.InsertOrder(ctx, record)
}

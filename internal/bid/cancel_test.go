package bid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/forlotto/particl-market/internal/models"
	"github.com/forlotto/particl-market/internal/protocol"
)

// fakeStore implements ListingItemFinder and BidUpdater, recording every
// update call.
type fakeStore struct {
	item      *models.ListingItem
	findErr   error
	updateErr error

	updateCalls int
	lastBidID   int64
	lastUpdate  models.BidStatusUpdate
}

func (f *fakeStore) FindListingItemByHash(ctx context.Context, hash string) (*models.ListingItem, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if f.item == nil || f.item.Hash != hash {
		return nil, models.ErrListingItemNotFound
	}
	return f.item, nil
}

func (f *fakeStore) UpdateBidStatus(ctx context.Context, bidID int64, update models.BidStatusUpdate) (*models.Bid, error) {
	f.updateCalls++
	f.lastBidID = bidID
	f.lastUpdate = update
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	updated := f.item.Bids[0]
	updated.Status = update.Status
	updated.UpdatedAt = time.Now()
	return &updated, nil
}

func listingWithBid(status string) *models.ListingItem {
	return &models.ListingItem{
		ID:   12,
		Hash: "abc123",
		Bids: []models.Bid{{
			ID:              7,
			ListingItemID:   12,
			ListingItemHash: "abc123",
			Status:          status,
		}},
	}
}

func cancelMsg(hash string) *protocol.CancelBidMessage {
	return &protocol.CancelBidMessage{ItemHash: hash}
}

func TestCancelActiveBid(t *testing.T) {
	store := &fakeStore{item: listingWithBid(models.BidStatusActive)}
	h := NewCancelHandler(store, store, zaptest.NewLogger(t))

	updated, err := h.Cancel(context.Background(), cancelMsg("abc123"))
	require.NoError(t, err)

	assert.Equal(t, int64(7), updated.ID)
	assert.Equal(t, models.BidStatusCancelled, updated.Status)
	assert.Equal(t, 1, store.updateCalls)
	assert.Equal(t, int64(7), store.lastBidID)
	assert.Equal(t, int64(12), store.lastUpdate.ListingItemID)
	assert.Equal(t, models.BidStatusActive, store.lastUpdate.Expected)
}

func TestCancelAlreadyCancelledBid(t *testing.T) {
	store := &fakeStore{item: listingWithBid(models.BidStatusCancelled)}
	h := NewCancelHandler(store, store, zaptest.NewLogger(t))

	updated, err := h.Cancel(context.Background(), cancelMsg("abc123"))
	require.Error(t, err)
	assert.Nil(t, updated)
	assert.Zero(t, store.updateCalls)

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, int64(7), invalid.BidID)
	assert.Equal(t, models.BidStatusCancelled, invalid.Status)
	assert.Contains(t, err.Error(), models.BidStatusCancelled)
}

func TestCancelEscrowedBid(t *testing.T) {
	store := &fakeStore{item: listingWithBid(models.BidStatusEscrowLocked)}
	h := NewCancelHandler(store, store, zaptest.NewLogger(t))

	_, err := h.Cancel(context.Background(), cancelMsg("abc123"))

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, models.BidStatusEscrowLocked, invalid.Status)
	assert.Zero(t, store.updateCalls)
}

func TestCancelListingNotFound(t *testing.T) {
	store := &fakeStore{}
	h := NewCancelHandler(store, store, zaptest.NewLogger(t))

	_, err := h.Cancel(context.Background(), cancelMsg("zzz"))
	require.Error(t, err)
	assert.Zero(t, store.updateCalls)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "zzz", notFound.ItemHash)
	assert.Contains(t, err.Error(), "zzz")
}

func TestCancelListingWithoutBids(t *testing.T) {
	store := &fakeStore{item: &models.ListingItem{ID: 12, Hash: "abc123"}}
	h := NewCancelHandler(store, store, zaptest.NewLogger(t))

	_, err := h.Cancel(context.Background(), cancelMsg("abc123"))
	require.Error(t, err)
	assert.Zero(t, store.updateCalls)

	var noBid *NoBidError
	require.ErrorAs(t, err, &noBid)
	assert.Equal(t, "abc123", noBid.ItemHash)
}

func TestCancelLookupFailure(t *testing.T) {
	store := &fakeStore{findErr: errors.New("connection refused")}
	h := NewCancelHandler(store, store, zaptest.NewLogger(t))

	_, err := h.Cancel(context.Background(), cancelMsg("abc123"))
	require.Error(t, err)
	assert.Zero(t, store.updateCalls)

	var notFound *NotFoundError
	assert.False(t, errors.As(err, &notFound))
}

func TestCancelUpdateFailurePropagates(t *testing.T) {
	store := &fakeStore{
		item:      listingWithBid(models.BidStatusActive),
		updateErr: models.ErrBidConflict,
	}
	h := NewCancelHandler(store, store, zaptest.NewLogger(t))

	_, err := h.Cancel(context.Background(), cancelMsg("abc123"))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrBidConflict)
	assert.Equal(t, 1, store.updateCalls)
}

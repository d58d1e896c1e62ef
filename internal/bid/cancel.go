// Package bid handles bid lifecycle transitions driven by marketplace
// protocol messages.
package bid

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/forlotto/particl-market/internal/models"
	"github.com/forlotto/particl-market/internal/protocol"
)

// ListingItemFinder resolves listing items by their content hash.
type ListingItemFinder interface {
	FindListingItemByHash(ctx context.Context, hash string) (*models.ListingItem, error)
}

// BidUpdater applies bid status updates. Implementations must make the
// update an atomic read-modify-write (see models.BidStatusUpdate.Expected);
// the handler's own status check is necessary but not sufficient when two
// cancellations race.
type BidUpdater interface {
	UpdateBidStatus(ctx context.Context, bidID int64, update models.BidStatusUpdate) (*models.Bid, error)
}

// NotFoundError is returned when the referenced listing item does not exist.
type NotFoundError struct {
	ItemHash string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("listing item with hash %s was not found", e.ItemHash)
}

// NoBidError is returned when the listing item exists but has no bid to
// transition.
type NoBidError struct {
	ItemHash string
}

func (e *NoBidError) Error() string {
	return fmt.Sprintf("no bid found for listing item hash %s", e.ItemHash)
}

// InvalidTransitionError is returned when the bid's current status does not
// permit the requested transition. Status is included so callers can tell
// "already cancelled" apart from "escrowed" or "not yet active".
type InvalidTransitionError struct {
	BidID  int64
	Status string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("bid %d can not be cancelled from status %s", e.BidID, e.Status)
}

// CancelHandler processes MPA_CANCEL messages: resolve the listing item,
// pick the bid under negotiation and apply the ACTIVE -> CANCELLED
// transition, or reject.
type CancelHandler struct {
	items ListingItemFinder
	bids  BidUpdater
	log   *zap.Logger
}

// NewCancelHandler creates a CancelHandler using the given collaborators.
func NewCancelHandler(items ListingItemFinder, bids BidUpdater, log *zap.Logger) *CancelHandler {
	return &CancelHandler{
		items: items,
		bids:  bids,
		log:   log,
	}
}

// Cancel applies a cancellation message and returns the updated bid.
//
// Exactly one status update is issued when the bid is ACTIVE; every
// rejection path returns before any write. A repeated cancellation of an
// already-CANCELLED bid is rejected, not treated as success, so redelivered
// messages are never mistaken for new transitions.
func (h *CancelHandler) Cancel(ctx context.Context, msg *protocol.CancelBidMessage) (*models.Bid, error) {
	item, err := h.items.FindListingItemByHash(ctx, msg.ItemHash)
	if err != nil {
		if errors.Is(err, models.ErrListingItemNotFound) {
			h.log.Warn("listing item not found for cancel bid", zap.String("hash", msg.ItemHash))
			return nil, &NotFoundError{ItemHash: msg.ItemHash}
		}
		return nil, fmt.Errorf("find listing item %s: %w", msg.ItemHash, err)
	}

	if len(item.Bids) == 0 {
		h.log.Warn("no bid for listing item", zap.String("hash", msg.ItemHash))
		return nil, &NoBidError{ItemHash: msg.ItemHash}
	}

	// The store returns bids newest first; the head is the bid under
	// negotiation (one open bid per listing item).
	current := item.Bids[0]

	switch current.Status {
	case models.BidStatusActive:
		updated, err := h.bids.UpdateBidStatus(ctx, current.ID, models.BidStatusUpdate{
			ListingItemID: current.ListingItemID,
			Status:        models.BidStatusCancelled,
			Expected:      models.BidStatusActive,
		})
		if err != nil {
			return nil, fmt.Errorf("cancel bid %d: %w", current.ID, err)
		}
		h.log.Info("bid cancelled",
			zap.Int64("bid_id", updated.ID),
			zap.String("item_hash", msg.ItemHash))
		return updated, nil
	default:
		// Any other status, known or not, is terminal for this handler.
		return nil, &InvalidTransitionError{BidID: current.ID, Status: current.Status}
	}
}

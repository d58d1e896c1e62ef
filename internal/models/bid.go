package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bid statuses shared across the marketplace protocol. Only a subset is
// acted on by this service; the rest belong to the escrow flow and are
// terminal as far as cancellation is concerned.
const (
	BidStatusBidded       = "BIDDED"
	BidStatusActive       = "ACTIVE"
	BidStatusAccepted     = "ACCEPTED"
	BidStatusRejected     = "REJECTED"
	BidStatusCancelled    = "CANCELLED"
	BidStatusEscrowLocked = "ESCROW_LOCKED"
)

// Bid is a buyer's offer against a listing item. ListingItemHash is a
// frozen copy of the listing's content hash taken when the bid was made,
// so later mutations of the listing never change what was bid on.
type Bid struct {
	ID              int64           `json:"id"`
	ListingItemID   int64           `json:"listing_item_id"`
	ListingItemHash string          `json:"listing_item_hash"`
	Bidder          string          `json:"bidder"`
	Amount          decimal.Decimal `json:"amount"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// BidStatusUpdate is the write request handed to the bid store. Expected,
// when non-empty, is the status the bid must still hold for the update to
// apply; the store enforces it as an atomic compare-and-swap so concurrent
// transitions of the same bid cannot both succeed.
type BidStatusUpdate struct {
	ListingItemID int64
	Status        string
	Expected      string
}

package models

import "time"

// ListingItem represents a marketplace listing, identified by the content
// hash both parties derive from the published listing message. A listing
// item is the aggregate root for the bids made against it.
type ListingItem struct {
	ID        int64     `json:"id"`
	Hash      string    `json:"hash"`
	Seller    string    `json:"seller"`
	Bids      []Bid     `json:"bids,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

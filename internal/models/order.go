package models

import "time"

// Order statuses
const (
	OrderStatusAwaitingEscrow = "AWAITING_ESCROW"
	OrderStatusProcessing     = "PROCESSING"
	OrderStatusShipping       = "SHIPPING"
	OrderStatusComplete       = "COMPLETE"
)

// Order item statuses. Every order item starts out as BIDDED, whatever the
// source bid's status was at assembly time.
const (
	OrderItemStatusBidded         = "BIDDED"
	OrderItemStatusAwaitingEscrow = "AWAITING_ESCROW"
	OrderItemStatusEscrowLocked   = "ESCROW_LOCKED"
	OrderItemStatusShipping       = "SHIPPING"
	OrderItemStatusComplete       = "COMPLETE"
)

// OrderItem is the per-bid line entry within an order. BidID and ItemHash
// are copied from the source bid at assembly time and never re-resolved,
// which freezes the provenance of the line even if the bid or listing
// changes afterwards.
type OrderItem struct {
	BidID    int64  `json:"bid_id"`
	ItemHash string `json:"item_hash"`
	Status   string `json:"status"`
}

// OrderCreateRecord is the immutable agreement between buyer and seller
// produced by the order assembler. Hash is the canonical content hash over
// the other fields; once assigned the record must not change.
type OrderCreateRecord struct {
	AddressID   int64       `json:"address_id"`
	Buyer       string      `json:"buyer"`
	Seller      string      `json:"seller"`
	OrderItems  []OrderItem `json:"order_items"`
	Status      string      `json:"status"`
	GeneratedAt int64       `json:"generated_at"`
	Hash        string      `json:"hash"`
}

// Order is a persisted order record.
type Order struct {
	ID          int64       `json:"id"`
	Hash        string      `json:"hash"`
	AddressID   int64       `json:"address_id"`
	Buyer       string      `json:"buyer"`
	Seller      string      `json:"seller"`
	OrderItems  []OrderItem `json:"order_items"`
	Status      string      `json:"status"`
	GeneratedAt int64       `json:"generated_at"`
	CreatedAt   time.Time   `json:"created_at"`
}

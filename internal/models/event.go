package models

import "time"

// BidStatusEvent is published when a bid changes status. It is sent to:
// 1. Redis Pub/Sub (for real-time broadcast to connected watchers)
// 2. NATS JetStream (for archival consumers)
type BidStatusEvent struct {
	EventID   string    `json:"event_id"`
	ItemHash  string    `json:"item_hash"`
	BidID     int64     `json:"bid_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

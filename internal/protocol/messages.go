// Package protocol defines the typed view of inbound marketplace messages.
// Wire parsing, signing and delivery belong to the transport layer; this
// package only names the actions and normalizes envelopes into the internal
// messages the handlers consume.
package protocol

import (
	"errors"
	"fmt"
)

// Marketplace action types carried in the message envelope.
const (
	ActionBid       = "MPA_BID"
	ActionAcceptBid = "MPA_ACCEPT"
	ActionRejectBid = "MPA_REJECT"
	ActionCancelBid = "MPA_CANCEL"
)

// ActionMessage is the inbound message envelope after transport decoding.
// Item carries the content hash of the listing item the action refers to.
type ActionMessage struct {
	Action string `json:"action"`
	Item   string `json:"item"`
}

// CancelBidMessage is the normalized form of an MPA_CANCEL envelope.
type CancelBidMessage struct {
	ItemHash string
}

// NewCancelBidMessage normalizes an envelope into a CancelBidMessage,
// rejecting envelopes that do not carry a cancel action or an item hash.
func NewCancelBidMessage(msg ActionMessage) (*CancelBidMessage, error) {
	if msg.Action != ActionCancelBid {
		return nil, fmt.Errorf("protocol: expected %s action, got %q", ActionCancelBid, msg.Action)
	}
	if msg.Item == "" {
		return nil, errors.New("protocol: cancel bid message has no item hash")
	}
	return &CancelBidMessage{ItemHash: msg.Item}, nil
}

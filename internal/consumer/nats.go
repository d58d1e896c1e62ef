// Package consumer receives marketplace protocol messages over NATS and
// dispatches them to the handlers.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/forlotto/particl-market/internal/models"
	"github.com/forlotto/particl-market/internal/protocol"
)

// Subject the upstream transport publishes decoded envelopes on, one token
// per listing hash.
const inboundSubject = "market.messages.*"

// Canceller applies bid cancellation messages.
type Canceller interface {
	Cancel(ctx context.Context, msg *protocol.CancelBidMessage) (*models.Bid, error)
}

// EventPublisher fans a bid status event out to live watchers.
type EventPublisher interface {
	PublishBidEvent(ctx context.Context, event *models.BidStatusEvent) error
}

// Consumer subscribes to inbound protocol messages, applies them and
// publishes the resulting bid status events to JetStream for archival and
// to the live event publisher.
type Consumer struct {
	conn      *nats.Conn
	js        jetstream.JetStream
	sub       *nats.Subscription
	canceller Canceller
	events    EventPublisher
	log       *zap.Logger
}

// New creates a Consumer and ensures the archival stream exists.
func New(conn *nats.Conn, canceller Canceller, events EventPublisher, log *zap.Logger) (*Consumer, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        "BID_EVENTS",
		Description: "Stream for bid status events archival",
		Subjects:    []string{"bid.events.*"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}

	return &Consumer{
		conn:      conn,
		js:        js,
		canceller: canceller,
		events:    events,
		log:       log,
	}, nil
}

// Start subscribes to inbound protocol messages and blocks until the
// context is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	sub, err := c.conn.Subscribe(inboundSubject, func(msg *nats.Msg) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	c.sub = sub
	c.log.Info("subscribed to protocol messages", zap.String("subject", inboundSubject))

	<-ctx.Done()
	return nil
}

// handleMessage processes a single protocol envelope.
func (c *Consumer) handleMessage(ctx context.Context, msg *nats.Msg) {
	var envelope protocol.ActionMessage
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.log.Warn("failed to decode protocol message", zap.Error(err))
		return
	}

	switch envelope.Action {
	case protocol.ActionCancelBid:
		c.handleCancelBid(ctx, envelope)
	default:
		// Other actions are processed elsewhere in the marketplace.
		c.log.Debug("skipping unhandled action", zap.String("action", envelope.Action))
	}
}

func (c *Consumer) handleCancelBid(ctx context.Context, envelope protocol.ActionMessage) {
	cancelMsg, err := protocol.NewCancelBidMessage(envelope)
	if err != nil {
		c.log.Warn("malformed cancel bid message", zap.Error(err))
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	bid, err := c.canceller.Cancel(opCtx, cancelMsg)
	if err != nil {
		// The caller decides nothing here; a rejection is final for this
		// delivery and redelivery would fail identically.
		c.log.Warn("bid cancellation rejected",
			zap.String("item_hash", cancelMsg.ItemHash),
			zap.Error(err))
		return
	}

	event := &models.BidStatusEvent{
		EventID:   uuid.New().String(),
		ItemHash:  bid.ListingItemHash,
		BidID:     bid.ID,
		Status:    bid.Status,
		Timestamp: time.Now().UTC(),
	}
	c.publishEvent(opCtx, event)
}

// publishEvent sends the event to JetStream for archival and to the live
// publisher. Neither failure undoes the transition; both are logged.
func (c *Consumer) publishEvent(ctx context.Context, event *models.BidStatusEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.log.Error("failed to marshal bid event", zap.Error(err))
		return
	}

	subject := fmt.Sprintf("bid.events.%s", event.ItemHash)
	if ack, err := c.js.Publish(ctx, subject, payload); err != nil {
		c.log.Warn("failed to publish bid event to JetStream", zap.Error(err))
	} else {
		c.log.Debug("bid event archived",
			zap.String("subject", subject),
			zap.Uint64("seq", ack.Sequence))
	}

	if err := c.events.PublishBidEvent(ctx, event); err != nil {
		c.log.Warn("failed to publish bid event for broadcast", zap.Error(err))
	}
}

// Close unsubscribes and closes the NATS connection.
func (c *Consumer) Close() error {
	if c.sub != nil {
		c.sub.Unsubscribe()
	}
	c.conn.Close()
	return nil
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/brickbid/brickbid/internal/domain/stats"
	pkgevents "github.com/brickbid/brickbid/pkg/events"
)

const statsQueue = "account_stats_events"

// StatsConsumer consumes bid.placed and listing.settled events and updates
// account statistics. The service layer is idempotent, so a message may be
// redelivered after a Nack without double counting.
type StatsConsumer struct {
	conn    *amqp.Connection
	service *stats.Service
	logger  *slog.Logger
}

// NewStatsConsumer creates a new stats consumer
func NewStatsConsumer(conn *amqp.Connection, service *stats.Service, logger *slog.Logger) *StatsConsumer {
	return &StatsConsumer{
		conn:    conn,
		service: service,
		logger:  logger,
	}
}

// Run starts the consumer loop
func (c *StatsConsumer) Run(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if setupErr := c.setupQueue(ch); setupErr != nil {
		return fmt.Errorf("failed to setup queue: %w", setupErr)
	}

	msgs, err := ch.Consume(
		statsQueue, // queue
		"",         // consumer tag
		false,      // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	c.logger.Info("Waiting for messages...")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("channel closed")
			}
			c.handleDelivery(ctx, d)
		}
	}
}

func (c *StatsConsumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	c.logger.Info("Received message", "routing_key", d.RoutingKey)

	err := c.process(ctx, d.RoutingKey, d.Body)
	if err != nil {
		c.logger.Error("Failed to process event", "routing_key", d.RoutingKey, "error", err)
		// Requeue so a transient failure gets retried
		if nackErr := d.Nack(false, true); nackErr != nil {
			c.logger.Error("Failed to Nack message", "error", nackErr)
		}
		return
	}

	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error("Failed to Ack message", "error", ackErr)
	}
}

func (c *StatsConsumer) process(ctx context.Context, routingKey string, body []byte) error {
	switch pkgevents.EventType(routingKey) {
	case pkgevents.EventTypeBidPlaced:
		var event pkgevents.BidPlaced
		if err := json.Unmarshal(body, &event); err != nil {
			return fmt.Errorf("failed to unmarshal bid.placed: %w", err)
		}
		// The bid ID doubles as the idempotency key; every accepted bid
		// produces exactly one event.
		return c.service.ProcessBidPlaced(ctx, stats.BidPlacedEvent{
			EventID:   event.BidID,
			BidderID:  event.BidderID,
			Amount:    event.Amount,
			Timestamp: event.PlacedAt,
		})

	case pkgevents.EventTypeListingSettled:
		var event pkgevents.ListingSettled
		if err := json.Unmarshal(body, &event); err != nil {
			return fmt.Errorf("failed to unmarshal listing.settled: %w", err)
		}
		return c.service.ProcessListingSettled(ctx, stats.ListingSettledEvent{
			EventID:   event.EventID,
			BuyerID:   event.BuyerID,
			Amount:    event.Amount,
			Timestamp: event.SettledAt,
		})

	default:
		// Other event types bound to this queue are not stats-relevant
		c.logger.Warn("Ignoring unexpected routing key", "routing_key", routingKey)
		return nil
	}
}

func (c *StatsConsumer) setupQueue(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		pkgevents.Exchange, // name
		"topic",            // type
		true,               // durable
		false,              // auto-deleted
		false,              // internal
		false,              // no-wait
		nil,                // args
	)
	if err != nil {
		return err
	}

	q, err := ch.QueueDeclare(
		statsQueue, // name
		true,       // durable
		false,      // delete when unused
		false,      // exclusive
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return err
	}

	for _, key := range []pkgevents.EventType{pkgevents.EventTypeBidPlaced, pkgevents.EventTypeListingSettled} {
		if err := ch.QueueBind(q.Name, key.String(), pkgevents.Exchange, false, nil); err != nil {
			return err
		}
	}

	return nil
}

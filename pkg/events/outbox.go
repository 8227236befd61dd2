package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/brickbid/brickbid/pkg/database"
)

// OutboxStatus defines the status of an event in the outbox
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusPublished  OutboxStatus = "published"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxEvent is a domain event stored in the same transaction as the state
// change it describes, awaiting publication to the broker.
type OutboxEvent struct {
	ID          uuid.UUID    `db:"id"`
	EventType   EventType    `db:"event_type"`
	Payload     []byte       `db:"payload"`
	Status      OutboxStatus `db:"status"`
	CreatedAt   time.Time    `db:"created_at"`
	ProcessedAt *time.Time   `db:"processed_at"`
}

// OutboxRepository defines the interface for interacting with the outbox table
type OutboxRepository interface {
	GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*OutboxEvent, error)
	UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status OutboxStatus) error
}

// EventPublisher defines the interface for publishing events to a broker
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// OutboxRelay moves pending outbox rows onto the broker. Each tick claims a
// batch with FOR UPDATE SKIP LOCKED, publishes every row, and marks them
// published inside the same transaction, so multiple relay instances can run
// side by side without double delivery.
type OutboxRelay struct {
	repo      OutboxRepository
	publisher EventPublisher
	txManager database.TransactionManager
	batchSize int
	interval  time.Duration
	exchange  string
	logger    *slog.Logger
}

func NewOutboxRelay(
	repo OutboxRepository,
	publisher EventPublisher,
	txManager database.TransactionManager,
	batchSize int,
	interval time.Duration,
	exchange string,
	logger *slog.Logger,
) *OutboxRelay {
	return &OutboxRelay{
		repo:      repo,
		publisher: publisher,
		txManager: txManager,
		batchSize: batchSize,
		interval:  interval,
		exchange:  exchange,
		logger:    logger.With("component", "outbox_relay"),
	}
}

// Run polls until ctx is cancelled. A tick drains repeatedly so a backlog
// larger than one batch clears without waiting for the next interval.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *OutboxRelay) drain(ctx context.Context) {
	for {
		published, err := r.relayBatch(ctx)
		if err != nil {
			r.logger.Error("outbox batch failed", "error", err)
			return
		}
		if published < r.batchSize {
			return
		}
	}
}

// relayBatch publishes one batch and reports how many rows it handled. A
// publish failure rolls the whole batch back; the rows stay pending and are
// retried on the next tick.
func (r *OutboxRelay) relayBatch(ctx context.Context) (int, error) {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	pending, err := r.repo.GetPendingEvents(ctx, tx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch pending events: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	for _, event := range pending {
		if err := r.publisher.Publish(ctx, r.exchange, event.EventType.String(), event.Payload); err != nil {
			return 0, fmt.Errorf("publish event %s: %w", event.ID, err)
		}
		if err := r.repo.UpdateEventStatus(ctx, tx, event.ID, OutboxStatusPublished); err != nil {
			return 0, fmt.Errorf("mark event %s published: %w", event.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit batch: %w", err)
	}

	r.logger.Info("published outbox events", "count", len(pending))
	return len(pending), nil
}

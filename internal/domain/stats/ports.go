package stats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for account stats persistence
type Repository interface {
	// IncrementBidStats upserts the bid counters for an account
	IncrementBidStats(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, lastBidAt time.Time) error

	// IncrementWinStats upserts the settlement counters for an account
	IncrementWinStats(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error

	// GetAccountStats retrieves the stats for an account.
	// Returns (nil, nil) when the account has no recorded activity.
	GetAccountStats(ctx context.Context, accountID uuid.UUID) (*AccountStats, error)

	// IsEventProcessed reports whether the event was already applied
	IsEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (bool, error)

	// MarkEventProcessed records the event so redeliveries become no-ops
	MarkEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) error
}

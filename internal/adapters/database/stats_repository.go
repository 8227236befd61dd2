package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brickbid/brickbid/internal/domain/stats"
)

// PostgresStatsRepository implements stats.Repository using pgx
type PostgresStatsRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresStatsRepository creates a new PostgreSQL stats repository
func NewPostgresStatsRepository(pool *pgxpool.Pool) *PostgresStatsRepository {
	return &PostgresStatsRepository{pool: pool}
}

// IncrementBidStats upserts the bid counters for an account
func (r *PostgresStatsRepository) IncrementBidStats(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64, lastBidAt time.Time) error {
	query := `
		INSERT INTO account_stats (account_id, bids_placed, total_amount_bid, last_bid_at, created_at, updated_at)
		VALUES ($1, 1, $2, $3, NOW(), NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			bids_placed = account_stats.bids_placed + 1,
			total_amount_bid = account_stats.total_amount_bid + EXCLUDED.total_amount_bid,
			last_bid_at = EXCLUDED.last_bid_at,
			updated_at = NOW()
	`
	_, err := tx.Exec(ctx, query, accountID, amount, lastBidAt)
	if err != nil {
		return fmt.Errorf("failed to increment bid stats: %w", err)
	}
	return nil
}

// IncrementWinStats upserts the settlement counters for an account
func (r *PostgresStatsRepository) IncrementWinStats(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error {
	query := `
		INSERT INTO account_stats (account_id, listings_won, total_spent, created_at, updated_at)
		VALUES ($1, 1, $2, NOW(), NOW())
		ON CONFLICT (account_id) DO UPDATE SET
			listings_won = account_stats.listings_won + 1,
			total_spent = account_stats.total_spent + EXCLUDED.total_spent,
			updated_at = NOW()
	`
	_, err := tx.Exec(ctx, query, accountID, amount)
	if err != nil {
		return fmt.Errorf("failed to increment win stats: %w", err)
	}
	return nil
}

// GetAccountStats retrieves the stats for an account.
// Returns (nil, nil) when the account has no recorded activity.
func (r *PostgresStatsRepository) GetAccountStats(ctx context.Context, accountID uuid.UUID) (*stats.AccountStats, error) {
	query := `
		SELECT account_id, bids_placed, total_amount_bid, listings_won, total_spent, last_bid_at, created_at, updated_at
		FROM account_stats
		WHERE account_id = $1
	`
	var accountStats stats.AccountStats
	err := r.pool.QueryRow(ctx, query, accountID).Scan(
		&accountStats.AccountID,
		&accountStats.BidsPlaced,
		&accountStats.TotalAmountBid,
		&accountStats.ListingsWon,
		&accountStats.TotalSpent,
		&accountStats.LastBidAt,
		&accountStats.CreatedAt,
		&accountStats.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account stats: %w", err)
	}
	return &accountStats, nil
}

// IsEventProcessed reports whether the event was already applied
func (r *PostgresStatsRepository) IsEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) (bool, error) {
	query := `SELECT 1 FROM processed_events WHERE event_id = $1`
	var exists int
	err := tx.QueryRow(ctx, query, eventID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return true, nil
}

// MarkEventProcessed records the event so redeliveries become no-ops
func (r *PostgresStatsRepository) MarkEventProcessed(ctx context.Context, tx pgx.Tx, eventID uuid.UUID) error {
	query := `INSERT INTO processed_events (event_id) VALUES ($1)`
	_, err := tx.Exec(ctx, query, eventID)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

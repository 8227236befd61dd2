package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brickbid/brickbid/internal/domain/auction"
)

// PostgresBidRepository implements auction.BidRepository using pgx
type PostgresBidRepository struct {
	pool *pgxpool.Pool // Keep pool for read-only operations
}

// NewPostgresBidRepository creates a new PostgreSQL bid repository
func NewPostgresBidRepository(pool *pgxpool.Pool) *PostgresBidRepository {
	return &PostgresBidRepository{pool: pool}
}

// SaveBid saves a bid within the caller's transaction
func (r *PostgresBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *auction.Bid) error {
	query := `
		INSERT INTO bids (id, listing_id, bidder_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := tx.Exec(ctx, query,
		bid.ID,
		bid.ListingID,
		bid.BidderID,
		bid.Amount,
		bid.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}
	return nil
}

// GetBidByID retrieves a bid by its ID
func (r *PostgresBidRepository) GetBidByID(ctx context.Context, bidID uuid.UUID) (*auction.Bid, error) {
	query := `
		SELECT id, listing_id, bidder_id, amount, created_at
		FROM bids
		WHERE id = $1
	`
	var bid auction.Bid
	err := r.pool.QueryRow(ctx, query, bidID).Scan(
		&bid.ID,
		&bid.ListingID,
		&bid.BidderID,
		&bid.Amount,
		&bid.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return &bid, nil
}

// GetBidsByListingID retrieves all bids for a listing, newest first
func (r *PostgresBidRepository) GetBidsByListingID(ctx context.Context, listingID uuid.UUID) ([]*auction.Bid, error) {
	query := `
		SELECT id, listing_id, bidder_id, amount, created_at
		FROM bids
		WHERE listing_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	return scanBids(rows)
}

// GetBidsByBidderID retrieves all bids placed by an account, newest first
func (r *PostgresBidRepository) GetBidsByBidderID(ctx context.Context, bidderID uuid.UUID) ([]*auction.Bid, error) {
	query := `
		SELECT id, listing_id, bidder_id, amount, created_at
		FROM bids
		WHERE bidder_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, bidderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bids: %w", err)
	}
	defer rows.Close()

	return scanBids(rows)
}

func scanBids(rows pgx.Rows) ([]*auction.Bid, error) {
	var result []*auction.Bid
	for rows.Next() {
		var bid auction.Bid
		if err := rows.Scan(
			&bid.ID,
			&bid.ListingID,
			&bid.BidderID,
			&bid.Amount,
			&bid.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		result = append(result, &bid)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bids: %w", err)
	}

	return result, nil
}

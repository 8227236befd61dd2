package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brickbid/brickbid/internal/domain/listings"
	pkgdb "github.com/brickbid/brickbid/pkg/database"
)

const listingColumns = `id, name, description, photo_url, square_footage, year_built,
		google_maps_url, youtube_url, amount, initial_bid, bid_increment, bid_end_at,
		owner_id, is_active, highest_bid, highest_bidder_id, created_at, updated_at`

// PostgresListingRepository implements listings.Repository using pgx
type PostgresListingRepository struct {
	pool *pgxpool.Pool // Keep pool for non-transactional reads
}

// NewPostgresListingRepository creates a new PostgreSQL listing repository
func NewPostgresListingRepository(pool *pgxpool.Pool) *PostgresListingRepository {
	return &PostgresListingRepository{pool: pool}
}

// CreateListing inserts a new listing
func (r *PostgresListingRepository) CreateListing(ctx context.Context, listing *listings.Listing) error {
	query := `
		INSERT INTO listings (id, name, description, photo_url, square_footage, year_built,
			google_maps_url, youtube_url, amount, initial_bid, bid_increment, bid_end_at,
			owner_id, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := r.pool.Exec(ctx, query,
		listing.ID,
		listing.Name,
		listing.Description,
		listing.PhotoURL,
		listing.SquareFootage,
		listing.YearBuilt,
		listing.GoogleMapsURL,
		listing.YouTubeURL,
		listing.Amount,
		listing.InitialBid,
		listing.BidIncrement,
		listing.BidEndAt,
		listing.OwnerID,
		listing.IsActive,
		listing.CreatedAt,
		listing.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

// GetListingByID retrieves a listing by its ID (non-transactional read)
func (r *PostgresListingRepository) GetListingByID(ctx context.Context, listingID uuid.UUID) (*listings.Listing, error) {
	return r.getListingByID(ctx, r.pool, listingID, false)
}

// GetListingByIDForUpdate retrieves a listing and locks its row for the
// duration of the transaction. Concurrent bids and settlements on the same
// listing serialize here.
func (r *PostgresListingRepository) GetListingByIDForUpdate(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*listings.Listing, error) {
	return r.getListingByID(ctx, tx, listingID, true)
}

// getListingByID is the internal implementation that works with any DBTX
func (r *PostgresListingRepository) getListingByID(ctx context.Context, db pkgdb.DBTX, listingID uuid.UUID, forUpdate bool) (*listings.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var listing listings.Listing
	err := db.QueryRow(ctx, query, listingID).Scan(
		&listing.ID,
		&listing.Name,
		&listing.Description,
		&listing.PhotoURL,
		&listing.SquareFootage,
		&listing.YearBuilt,
		&listing.GoogleMapsURL,
		&listing.YouTubeURL,
		&listing.Amount,
		&listing.InitialBid,
		&listing.BidIncrement,
		&listing.BidEndAt,
		&listing.OwnerID,
		&listing.IsActive,
		&listing.HighestBid,
		&listing.HighestBidderID,
		&listing.CreatedAt,
		&listing.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}

// UpdateHighestBid caches the new highest bid. The WHERE clause keeps the
// update conditional on the highest bid the caller read, so a write that
// lost a race affects zero rows instead of silently clobbering a higher bid.
func (r *PostgresListingRepository) UpdateHighestBid(ctx context.Context, tx pgx.Tx, listingID uuid.UUID, amount int64, bidderID uuid.UUID, expectedHighest *int64) error {
	query := `
		UPDATE listings
		SET highest_bid = $1, highest_bidder_id = $2, updated_at = NOW()
		WHERE id = $3 AND highest_bid IS NOT DISTINCT FROM $4
	`
	result, err := tx.Exec(ctx, query, amount, bidderID, listingID, expectedHighest)
	if err != nil {
		return fmt.Errorf("failed to update highest bid: %w", err)
	}

	if result.RowsAffected() == 0 {
		return listings.ErrHighestBidConflict
	}

	return nil
}

// MarkSettled reassigns ownership to the buyer and deactivates the listing.
// Guarded on is_active so a repeated settle affects zero rows.
func (r *PostgresListingRepository) MarkSettled(ctx context.Context, tx pgx.Tx, listingID, buyerID uuid.UUID) error {
	query := `
		UPDATE listings
		SET owner_id = $1, is_active = FALSE, updated_at = NOW()
		WHERE id = $2 AND is_active = TRUE
	`
	result, err := tx.Exec(ctx, query, buyerID, listingID)
	if err != nil {
		return fmt.Errorf("failed to mark listing settled: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("listing %s is not active", listingID)
	}

	return nil
}

// MarkArchived deactivates a listing without changing ownership
func (r *PostgresListingRepository) MarkArchived(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) error {
	query := `
		UPDATE listings
		SET is_active = FALSE, updated_at = NOW()
		WHERE id = $1 AND is_active = TRUE
	`
	result, err := tx.Exec(ctx, query, listingID)
	if err != nil {
		return fmt.Errorf("failed to mark listing archived: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("listing %s is not active", listingID)
	}

	return nil
}

// ListListings retrieves active listings with sorting, search and pagination
func (r *PostgresListingRepository) ListListings(ctx context.Context, q listings.ListQuery) ([]*listings.Listing, error) {
	orderBy := ""
	switch q.Sort {
	case listings.SortEndingSoon:
		orderBy = "bid_end_at ASC"
	case listings.SortPriceDesc:
		orderBy = "amount DESC"
	case listings.SortPriceAsc:
		orderBy = "amount ASC"
	default:
		orderBy = "created_at DESC"
	}

	query := `SELECT ` + listingColumns + ` FROM listings WHERE is_active = TRUE`
	args := []any{}

	if q.Search != "" {
		query += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+q.Search+"%")
	}

	query += " ORDER BY " + orderBy
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, q.Limit, q.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

// ListListingsByOwnerID retrieves all listings owned by an account, active or
// not, newest first.
func (r *PostgresListingRepository) ListListingsByOwnerID(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*listings.Listing, error) {
	query := `SELECT ` + listingColumns + `
		FROM listings
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query owner listings: %w", err)
	}
	defer rows.Close()

	return scanListings(rows)
}

func scanListings(rows pgx.Rows) ([]*listings.Listing, error) {
	var result []*listings.Listing
	for rows.Next() {
		var listing listings.Listing
		if err := rows.Scan(
			&listing.ID,
			&listing.Name,
			&listing.Description,
			&listing.PhotoURL,
			&listing.SquareFootage,
			&listing.YearBuilt,
			&listing.GoogleMapsURL,
			&listing.YouTubeURL,
			&listing.Amount,
			&listing.InitialBid,
			&listing.BidIncrement,
			&listing.BidEndAt,
			&listing.OwnerID,
			&listing.IsActive,
			&listing.HighestBid,
			&listing.HighestBidderID,
			&listing.CreatedAt,
			&listing.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		result = append(result, &listing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}

	return result, nil
}

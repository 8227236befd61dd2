package listings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListQuery describes a listing feed request.
type ListQuery struct {
	Sort   SortOrder
	Search string
	Limit  int
	Offset int
}

// Repository defines the interface for listing persistence
type Repository interface {
	// CreateListing creates a new listing
	CreateListing(ctx context.Context, listing *Listing) error

	// GetListingByID retrieves a listing by its ID
	GetListingByID(ctx context.Context, listingID uuid.UUID) (*Listing, error)

	// GetListingByIDForUpdate retrieves a listing and locks its row.
	// Must be called within a transaction; serializes bid acceptance and settlement.
	GetListingByIDForUpdate(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*Listing, error)

	// UpdateHighestBid conditionally updates the cached highest bid within a
	// transaction. The update only applies while the stored highest bid still
	// equals expectedHighest; returns ErrHighestBidConflict otherwise.
	UpdateHighestBid(ctx context.Context, tx pgx.Tx, listingID uuid.UUID, amount int64, bidderID uuid.UUID, expectedHighest *int64) error

	// MarkSettled reassigns ownership to the buyer and deactivates the listing
	// within a transaction.
	MarkSettled(ctx context.Context, tx pgx.Tx, listingID, buyerID uuid.UUID) error

	// MarkArchived deactivates a listing without changing ownership, within a
	// transaction.
	MarkArchived(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) error

	// ListListings retrieves active listings with sorting, search and pagination
	ListListings(ctx context.Context, query ListQuery) ([]*Listing, error)

	// ListListingsByOwnerID retrieves all listings owned by an account
	ListListingsByOwnerID(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Listing, error)
}

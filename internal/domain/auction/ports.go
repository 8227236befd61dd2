package auction

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/brickbid/brickbid/internal/domain/accounts"
	"github.com/brickbid/brickbid/internal/domain/listings"
	"github.com/brickbid/brickbid/pkg/events"
)

// BidRepository defines the interface for bid persistence
type BidRepository interface {
	// SaveBid saves a bid within a transaction
	SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// GetBidsByListingID retrieves all bids for a listing, newest first
	GetBidsByListingID(ctx context.Context, listingID uuid.UUID) ([]*Bid, error)

	// GetBidsByBidderID retrieves all bids placed by an account, newest first
	GetBidsByBidderID(ctx context.Context, bidderID uuid.UUID) ([]*Bid, error)
}

// ListingRepository is the slice of listing persistence the engine mutates.
// All methods take a transaction; the engine owns the transaction boundary.
type ListingRepository interface {
	// GetListingByIDForUpdate locks the listing row for the duration of the
	// transaction so concurrent bids and settlements serialize on it.
	GetListingByIDForUpdate(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*listings.Listing, error)

	// UpdateHighestBid conditionally caches the new highest bid; fails with
	// listings.ErrHighestBidConflict if the stored value no longer matches
	// expectedHighest.
	UpdateHighestBid(ctx context.Context, tx pgx.Tx, listingID uuid.UUID, amount int64, bidderID uuid.UUID, expectedHighest *int64) error

	// MarkSettled reassigns ownership and deactivates the listing
	MarkSettled(ctx context.Context, tx pgx.Tx, listingID, buyerID uuid.UUID) error

	// MarkArchived deactivates the listing without changing ownership
	MarkArchived(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) error
}

// AccountRepository is the slice of account persistence the engine needs for
// settlement.
type AccountRepository interface {
	// GetAccountByIDForUpdate locks the account row so concurrent settlements
	// cannot double-spend the balance.
	GetAccountByIDForUpdate(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*accounts.Account, error)

	// DebitCoins subtracts amount from the account balance. The update is
	// guarded so the balance can never go negative.
	DebitCoins(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error
}

// OutboxRepository persists domain events in the engine's transactions.
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}

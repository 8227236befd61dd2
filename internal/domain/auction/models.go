package auction

import (
	"time"

	"github.com/google/uuid"

	"github.com/brickbid/brickbid/internal/domain/listings"
)

// Bid is an immutable, timestamped offer against a listing. Bids are never
// edited or removed; the standing price is always recoverable from the history.
type Bid struct {
	ID        uuid.UUID `db:"id"`
	ListingID uuid.UUID `db:"listing_id"`
	BidderID  uuid.UUID `db:"bidder_id"`
	Amount    int64     `db:"amount"`
	CreatedAt time.Time `db:"created_at"`
}

// PlaceBidCommand represents the command to place a bid
type PlaceBidCommand struct {
	ListingID uuid.UUID
	BidderID  uuid.UUID
	Amount    int64
	// ExpectedPrice, when set, is the current price the bidder saw. A mismatch
	// at acceptance time means a concurrent bid won the race; the bid is
	// rejected with ErrBidConflict instead of silently outbidding.
	ExpectedPrice *int64
}

// PlaceBidResult carries the accepted bid and the listing snapshot after the
// update.
type PlaceBidResult struct {
	Bid     *Bid
	Listing *listings.Listing
}

// SettleCommand represents the command to pay for a won listing
type SettleCommand struct {
	ListingID uuid.UUID
	PayerID   uuid.UUID
}

// ArchiveCommand represents the command to close out an ended listing that
// drew no bids
type ArchiveCommand struct {
	ListingID uuid.UUID
	OwnerID   uuid.UUID
}

package stats

import (
	"time"

	"github.com/google/uuid"
)

// AccountStats is the bidding activity summary for one account, maintained
// asynchronously from the event stream.
type AccountStats struct {
	AccountID      uuid.UUID  `db:"account_id"`
	BidsPlaced     int64      `db:"bids_placed"`
	TotalAmountBid int64      `db:"total_amount_bid"`
	ListingsWon    int64      `db:"listings_won"`
	TotalSpent     int64      `db:"total_spent"`
	LastBidAt      *time.Time `db:"last_bid_at"`
	CreatedAt      time.Time  `db:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"`
}

// BidPlacedEvent is the consumer-side view of a bid.placed message.
type BidPlacedEvent struct {
	EventID   uuid.UUID
	BidderID  uuid.UUID
	Amount    int64
	Timestamp time.Time
}

// ListingSettledEvent is the consumer-side view of a listing.settled message.
type ListingSettledEvent struct {
	EventID   uuid.UUID
	BuyerID   uuid.UUID
	Amount    int64
	Timestamp time.Time
}

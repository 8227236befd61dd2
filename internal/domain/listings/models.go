package listings

import (
	"time"

	"github.com/google/uuid"
)

// Listing represents a property open for bidding.
type Listing struct {
	ID              uuid.UUID  `db:"id"`
	Name            string     `db:"name"`
	Description     string     `db:"description"`
	PhotoURL        string     `db:"photo_url"`
	SquareFootage   *int64     `db:"square_footage"`
	YearBuilt       *int       `db:"year_built"`
	GoogleMapsURL   *string    `db:"google_maps_url"`
	YouTubeURL      *string    `db:"youtube_url"`
	Amount          int64      `db:"amount"` // price due on settlement
	InitialBid      int64      `db:"initial_bid"`
	BidIncrement    int64      `db:"bid_increment"`
	BidEndAt        time.Time  `db:"bid_end_at"`
	OwnerID         uuid.UUID  `db:"owner_id"`
	IsActive        bool       `db:"is_active"`
	HighestBid      *int64     `db:"highest_bid"`
	HighestBidderID *uuid.UUID `db:"highest_bidder_id"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// State of a listing in the auction lifecycle. The ended states are never
// persisted; they are derived from the clock on every read.
type State string

const (
	// StateOpen: bidding is still possible.
	StateOpen State = "open"
	// StateEndedUnsettled: bidding closed with a highest bidder who has not paid yet.
	StateEndedUnsettled State = "ended_unsettled"
	// StateEndedNoBids: bidding closed without a single bid. Terminal except for archiving.
	StateEndedNoBids State = "ended_no_bids"
	// StateSettled: the winner paid, or the owner archived the listing.
	StateSettled State = "settled"
)

// StateAt derives the listing state at the given instant.
func (l *Listing) StateAt(now time.Time) State {
	if !l.IsActive {
		return StateSettled
	}
	if now.Before(l.BidEndAt) {
		return StateOpen
	}
	if l.HighestBidderID == nil {
		return StateEndedNoBids
	}
	return StateEndedUnsettled
}

// CurrentPrice is the standing price: the highest accepted bid, or the
// initial bid before anyone has bid.
func (l *Listing) CurrentPrice() int64 {
	if l.HighestBid != nil {
		return *l.HighestBid
	}
	return l.InitialBid
}

// MinimumNextBid is the smallest amount the next bid may carry.
func (l *Listing) MinimumNextBid() int64 {
	if l.HighestBid != nil {
		return *l.HighestBid + l.BidIncrement
	}
	return l.InitialBid
}

// TimeRemaining until bidding closes; zero once the deadline has passed.
// Advisory only, never used to decide settlement eligibility.
func (l *Listing) TimeRemaining(now time.Time) time.Duration {
	remaining := l.BidEndAt.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsOwnedBy reports whether the given account owns this listing.
func (l *Listing) IsOwnedBy(accountID uuid.UUID) bool {
	return l.OwnerID == accountID
}

// SortOrder for listing feeds.
type SortOrder string

const (
	SortNewest     SortOrder = "newest"
	SortEndingSoon SortOrder = "ending_soon"
	SortPriceDesc  SortOrder = "price_desc"
	SortPriceAsc   SortOrder = "price_asc"
)

// IsValid checks if the sort order is one of the supported values.
func (s SortOrder) IsValid() bool {
	switch s {
	case SortNewest, SortEndingSoon, SortPriceDesc, SortPriceAsc:
		return true
	default:
		return false
	}
}

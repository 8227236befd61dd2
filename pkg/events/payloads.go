package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event
type EventType string

const (
	EventTypeAccountCreated  EventType = "account.created"
	EventTypeBidPlaced       EventType = "bid.placed"
	EventTypeListingSettled  EventType = "listing.settled"
	EventTypeListingArchived EventType = "listing.archived"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// IsValid checks if the event type is valid
func (e EventType) IsValid() bool {
	switch e {
	case EventTypeAccountCreated, EventTypeBidPlaced, EventTypeListingSettled, EventTypeListingArchived:
		return true
	default:
		return false
	}
}

// AccountCreated is emitted when a wallet signs in for the first time.
type AccountCreated struct {
	AccountID     uuid.UUID `json:"account_id"`
	WalletAddress string    `json:"wallet_address"`
	BonusCoins    int64     `json:"bonus_coins"`
	CreatedAt     time.Time `json:"created_at"`
}

// BidPlaced is emitted for every accepted bid.
type BidPlaced struct {
	BidID     uuid.UUID `json:"bid_id"`
	ListingID uuid.UUID `json:"listing_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
}

// ListingSettled is emitted when the winning bidder pays and takes ownership.
type ListingSettled struct {
	EventID   uuid.UUID `json:"event_id"`
	ListingID uuid.UUID `json:"listing_id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	Amount    int64     `json:"amount"`
	SettledAt time.Time `json:"settled_at"`
}

// ListingArchived is emitted when the owner closes out an ended listing
// that drew no bids.
type ListingArchived struct {
	EventID    uuid.UUID `json:"event_id"`
	ListingID  uuid.UUID `json:"listing_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	ArchivedAt time.Time `json:"archived_at"`
}

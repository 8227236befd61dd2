package auction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/brickbid/brickbid/internal/domain/listings"
	"github.com/brickbid/brickbid/pkg/database"
	"github.com/brickbid/brickbid/pkg/events"
)

// Validation errors. Each names the precondition that failed so callers can
// surface the specific reason and decide whether a retry makes sense.
var (
	ErrListingNotFound     = errors.New("listing not found")
	ErrAuctionInactive     = errors.New("listing is no longer active")
	ErrAuctionEnded        = errors.New("bidding has ended for this listing")
	ErrAuctionNotEnded     = errors.New("bidding has not ended yet")
	ErrOwnerCannotBid      = errors.New("owner cannot bid on their own listing")
	ErrBidTooLow           = errors.New("bid amount is below the minimum next bid")
	ErrBidConflict         = errors.New("a concurrent bid was accepted first")
	ErrNotHighestBidder    = errors.New("only the highest bidder can settle")
	ErrInsufficientBalance = errors.New("insufficient coin balance")
	ErrNotOwner            = errors.New("only the owner can archive a listing")
	ErrListingHasBids      = errors.New("listing has bids and awaits settlement")
)

// BidTooLowError reports a rejected bid together with the minimum the listing
// currently accepts, so the caller can resubmit without another read.
type BidTooLowError struct {
	Minimum int64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid amount is below the minimum next bid of %d", e.Minimum)
}

func (e *BidTooLowError) Unwrap() error { return ErrBidTooLow }

// validateBidAmount checks the bid against the minimum legal next bid
func validateBidAmount(amount, minimum int64) error {
	if amount < minimum {
		return &BidTooLowError{Minimum: minimum}
	}
	return nil
}

// validateAuctionOpen checks that bidding is still possible at the given instant
func validateAuctionOpen(listing *listings.Listing, now time.Time) error {
	if !listing.IsActive {
		return ErrAuctionInactive
	}
	// The deadline itself is past the window: bids must land strictly before it.
	if !now.Before(listing.BidEndAt) {
		return ErrAuctionEnded
	}
	return nil
}

// Service implements the auction engine: bid acceptance, settlement and
// archiving. Every operation runs inside a single transaction with the
// listing row locked, so the read-check-write sequence cannot interleave with
// a concurrent caller's.
type Service struct {
	txManager   database.TransactionManager
	bidRepo     BidRepository
	listingRepo ListingRepository
	accountRepo AccountRepository
	outboxRepo  OutboxRepository
	now         func() time.Time
}

// NewService creates a new auction engine
func NewService(
	txManager database.TransactionManager,
	bidRepo BidRepository,
	listingRepo ListingRepository,
	accountRepo AccountRepository,
	outboxRepo OutboxRepository,
) *Service {
	return &Service{
		txManager:   txManager,
		bidRepo:     bidRepo,
		listingRepo: listingRepo,
		accountRepo: accountRepo,
		outboxRepo:  outboxRepo,
		now:         time.Now,
	}
}

// PlaceBid validates and accepts a bid. The bid record, the cached highest
// bid and the bid.placed event are written in one transaction.
func (s *Service) PlaceBid(ctx context.Context, cmd PlaceBidCommand) (*PlaceBidResult, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	listing, err := s.listingRepo.GetListingByIDForUpdate(ctx, tx, cmd.ListingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}

	now := s.now()
	if valErr := validateAuctionOpen(listing, now); valErr != nil {
		return nil, valErr
	}

	if listing.IsOwnedBy(cmd.BidderID) {
		return nil, ErrOwnerCannotBid
	}

	// The bidder saw a price before submitting. If it moved in the meantime a
	// concurrent bid won; reject so the caller can refresh and resubmit.
	if cmd.ExpectedPrice != nil && *cmd.ExpectedPrice != listing.CurrentPrice() {
		return nil, ErrBidConflict
	}

	if valErr := validateBidAmount(cmd.Amount, listing.MinimumNextBid()); valErr != nil {
		return nil, valErr
	}

	bid := &Bid{
		ID:        uuid.New(),
		ListingID: cmd.ListingID,
		BidderID:  cmd.BidderID,
		Amount:    cmd.Amount,
		CreatedAt: now,
	}

	if saveErr := s.bidRepo.SaveBid(ctx, tx, bid); saveErr != nil {
		return nil, fmt.Errorf("failed to save bid: %w", saveErr)
	}

	// Conditional on the highest bid we just read; with the row lock held this
	// can only fail if the lock was bypassed, but the guard keeps the cached
	// price honest even then.
	err = s.listingRepo.UpdateHighestBid(ctx, tx, cmd.ListingID, cmd.Amount, cmd.BidderID, listing.HighestBid)
	if err != nil {
		if errors.Is(err, listings.ErrHighestBidConflict) {
			return nil, ErrBidConflict
		}
		return nil, fmt.Errorf("failed to update highest bid: %w", err)
	}

	payload, err := json.Marshal(events.BidPlaced{
		BidID:     bid.ID,
		ListingID: bid.ListingID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		PlacedAt:  bid.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: events.EventTypeBidPlaced,
		Payload:   payload,
		Status:    events.OutboxStatusPending,
		CreatedAt: now,
	}
	if saveErr := s.outboxRepo.SaveEvent(ctx, tx, outboxEvent); saveErr != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", saveErr)
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	amount := bid.Amount
	listing.HighestBid = &amount
	listing.HighestBidderID = &bid.BidderID
	listing.UpdatedAt = now

	return &PlaceBidResult{Bid: bid, Listing: listing}, nil
}

// Settle charges the winning bidder and transfers ownership. The balance
// debit and the ownership transfer are one atomic unit: a fault in either
// rolls both back, so the account can never be charged without receiving the
// listing.
func (s *Service) Settle(ctx context.Context, cmd SettleCommand) (*listings.Listing, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	listing, err := s.listingRepo.GetListingByIDForUpdate(ctx, tx, cmd.ListingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}

	now := s.now()
	// A second settle attempt finds the listing inactive and stops here, so a
	// double charge is impossible.
	if !listing.IsActive {
		return nil, ErrAuctionInactive
	}
	if now.Before(listing.BidEndAt) {
		return nil, ErrAuctionNotEnded
	}
	if listing.HighestBidderID == nil || *listing.HighestBidderID != cmd.PayerID {
		return nil, ErrNotHighestBidder
	}

	payer, err := s.accountRepo.GetAccountByIDForUpdate(ctx, tx, cmd.PayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payer account: %w", err)
	}
	if payer.Coins < listing.Amount {
		return nil, ErrInsufficientBalance
	}

	if debitErr := s.accountRepo.DebitCoins(ctx, tx, cmd.PayerID, listing.Amount); debitErr != nil {
		return nil, fmt.Errorf("failed to debit coins: %w", debitErr)
	}

	if settleErr := s.listingRepo.MarkSettled(ctx, tx, cmd.ListingID, cmd.PayerID); settleErr != nil {
		return nil, fmt.Errorf("failed to mark listing settled: %w", settleErr)
	}

	payload, err := json.Marshal(events.ListingSettled{
		EventID:   uuid.New(),
		ListingID: cmd.ListingID,
		BuyerID:   cmd.PayerID,
		Amount:    listing.Amount,
		SettledAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: events.EventTypeListingSettled,
		Payload:   payload,
		Status:    events.OutboxStatusPending,
		CreatedAt: now,
	}
	if saveErr := s.outboxRepo.SaveEvent(ctx, tx, outboxEvent); saveErr != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", saveErr)
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	listing.OwnerID = cmd.PayerID
	listing.IsActive = false
	listing.UpdatedAt = now

	return listing, nil
}

// Archive closes out an ended listing that drew no bids. Only the owner may
// archive, and only once bidding has ended without a highest bidder.
func (s *Service) Archive(ctx context.Context, cmd ArchiveCommand) (*listings.Listing, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	listing, err := s.listingRepo.GetListingByIDForUpdate(ctx, tx, cmd.ListingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to load listing: %w", err)
	}

	now := s.now()
	if !listing.IsActive {
		return nil, ErrAuctionInactive
	}
	if !listing.IsOwnedBy(cmd.OwnerID) {
		return nil, ErrNotOwner
	}
	if now.Before(listing.BidEndAt) {
		return nil, ErrAuctionNotEnded
	}
	if listing.HighestBidderID != nil {
		return nil, ErrListingHasBids
	}

	if archiveErr := s.listingRepo.MarkArchived(ctx, tx, cmd.ListingID); archiveErr != nil {
		return nil, fmt.Errorf("failed to mark listing archived: %w", archiveErr)
	}

	payload, err := json.Marshal(events.ListingArchived{
		EventID:    uuid.New(),
		ListingID:  cmd.ListingID,
		OwnerID:    cmd.OwnerID,
		ArchivedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: events.EventTypeListingArchived,
		Payload:   payload,
		Status:    events.OutboxStatusPending,
		CreatedAt: now,
	}
	if saveErr := s.outboxRepo.SaveEvent(ctx, tx, outboxEvent); saveErr != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", saveErr)
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", commitErr)
	}

	listing.IsActive = false
	listing.UpdatedAt = now

	return listing, nil
}

// ListBids retrieves the bid history for a listing, newest first
func (s *Service) ListBids(ctx context.Context, listingID uuid.UUID) ([]*Bid, error) {
	bids, err := s.bidRepo.GetBidsByListingID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return bids, nil
}

// ListAccountBids retrieves all bids placed by an account, newest first
func (s *Service) ListAccountBids(ctx context.Context, bidderID uuid.UUID) ([]*Bid, error) {
	bids, err := s.bidRepo.GetBidsByBidderID(ctx, bidderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list account bids: %w", err)
	}
	return bids, nil
}

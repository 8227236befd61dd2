package stats

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/brickbid/brickbid/pkg/database"
)

// Service maintains per-account bidding statistics from the event stream.
// Processing is idempotent: each event is applied at most once, so the broker
// may redeliver freely.
type Service struct {
	repo      Repository
	txManager database.TransactionManager
}

// NewService creates a new stats service
func NewService(repo Repository, txManager database.TransactionManager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// ProcessBidPlaced applies a bid.placed event to the bidder's stats
func (s *Service) ProcessBidPlaced(ctx context.Context, event BidPlacedEvent) error {
	return s.applyOnce(ctx, event.EventID, func(tx pgx.Tx) error {
		return s.repo.IncrementBidStats(ctx, tx, event.BidderID, event.Amount, event.Timestamp)
	})
}

// ProcessListingSettled applies a listing.settled event to the buyer's stats
func (s *Service) ProcessListingSettled(ctx context.Context, event ListingSettledEvent) error {
	return s.applyOnce(ctx, event.EventID, func(tx pgx.Tx) error {
		return s.repo.IncrementWinStats(ctx, tx, event.BuyerID, event.Amount)
	})
}

// applyOnce runs the update inside a transaction guarded by the processed
// events ledger. A redelivered event finds its ID in the ledger and commits
// nothing.
func (s *Service) applyOnce(ctx context.Context, eventID uuid.UUID, apply func(pgx.Tx) error) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	isProcessed, err := s.repo.IsEventProcessed(ctx, tx, eventID)
	if err != nil {
		return fmt.Errorf("failed to check idempotency: %w", err)
	}
	if isProcessed {
		return nil
	}

	if err := apply(tx); err != nil {
		return fmt.Errorf("failed to apply event: %w", err)
	}

	if err := s.repo.MarkEventProcessed(ctx, tx, eventID); err != nil {
		return fmt.Errorf("failed to mark event as processed: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetAccountStats retrieves the stats for an account. Accounts with no
// activity yet get a zero-valued summary.
func (s *Service) GetAccountStats(ctx context.Context, accountID uuid.UUID) (*AccountStats, error) {
	accountStats, err := s.repo.GetAccountStats(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account stats: %w", err)
	}
	if accountStats == nil {
		return &AccountStats{AccountID: accountID}, nil
	}
	return accountStats, nil
}

package auction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/brickbid/brickbid/internal/domain/accounts"
	"github.com/brickbid/brickbid/internal/domain/listings"
	"github.com/brickbid/brickbid/pkg/events"
)

// TestValidateBidAmount tests the bid amount validation logic
func TestValidateBidAmount(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		minimum int64
		wantErr error
	}{
		{
			name:    "valid bid - exactly the minimum",
			amount:  1100,
			minimum: 1100,
			wantErr: nil,
		},
		{
			name:    "valid bid - above the minimum",
			amount:  1200,
			minimum: 1100,
			wantErr: nil,
		},
		{
			name:    "invalid bid - one below the minimum",
			amount:  1099,
			minimum: 1100,
			wantErr: ErrBidTooLow,
		},
		{
			name:    "invalid bid - partial increment",
			amount:  1050,
			minimum: 1100,
			wantErr: ErrBidTooLow,
		},
		{
			name:    "valid bid - first bid at the initial price",
			amount:  1000,
			minimum: 1000,
			wantErr: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateBidAmount(tt.amount, tt.minimum)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateBidAmount_ReportsMinimum(t *testing.T) {
	err := validateBidAmount(1050, 1100)

	var tooLow *BidTooLowError
	if assert.ErrorAs(t, err, &tooLow) {
		assert.Equal(t, int64(1100), tooLow.Minimum)
	}
}

// TestValidateAuctionOpen tests the activity and deadline validation logic
func TestValidateAuctionOpen(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		isActive bool
		bidEndAt time.Time
		wantErr  error
	}{
		{
			name:     "valid - active listing ending tomorrow",
			isActive: true,
			bidEndAt: now.Add(24 * time.Hour),
			wantErr:  nil,
		},
		{
			name:     "invalid - inactive listing",
			isActive: false,
			bidEndAt: now.Add(24 * time.Hour),
			wantErr:  ErrAuctionInactive,
		},
		{
			name:     "invalid - deadline an hour ago",
			isActive: true,
			bidEndAt: now.Add(-1 * time.Hour),
			wantErr:  ErrAuctionEnded,
		},
		{
			name:     "invalid - exactly at the deadline",
			isActive: true,
			bidEndAt: now,
			wantErr:  ErrAuctionEnded,
		},
		{
			name:     "invalid - inactive and ended reports inactive first",
			isActive: false,
			bidEndAt: now.Add(-1 * time.Hour),
			wantErr:  ErrAuctionInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing := &listings.Listing{
				IsActive: tt.isActive,
				BidEndAt: tt.bidEndAt,
			}
			err := validateAuctionOpen(listing, now)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// stubTx satisfies pgx.Tx for precondition tests. Only Commit and Rollback
// are reachable; everything else panics via the nil embedded interface.
type stubTx struct {
	pgx.Tx
	committed bool
}

func (t *stubTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *stubTx) Rollback(ctx context.Context) error {
	return nil
}

type stubTxManager struct {
	tx *stubTx
}

func (m *stubTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return m.tx, nil
}

type MockBidRepository struct {
	mock.Mock
}

func (m *MockBidRepository) SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error {
	args := m.Called(ctx, tx, bid)
	return args.Error(0)
}

func (m *MockBidRepository) GetBidsByListingID(ctx context.Context, listingID uuid.UUID) ([]*Bid, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Bid), args.Error(1)
}

func (m *MockBidRepository) GetBidsByBidderID(ctx context.Context, bidderID uuid.UUID) ([]*Bid, error) {
	args := m.Called(ctx, bidderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Bid), args.Error(1)
}

type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) GetListingByIDForUpdate(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) (*listings.Listing, error) {
	args := m.Called(ctx, tx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listings.Listing), args.Error(1)
}

func (m *MockListingRepository) UpdateHighestBid(ctx context.Context, tx pgx.Tx, listingID uuid.UUID, amount int64, bidderID uuid.UUID, expectedHighest *int64) error {
	args := m.Called(ctx, tx, listingID, amount, bidderID, expectedHighest)
	return args.Error(0)
}

func (m *MockListingRepository) MarkSettled(ctx context.Context, tx pgx.Tx, listingID, buyerID uuid.UUID) error {
	args := m.Called(ctx, tx, listingID, buyerID)
	return args.Error(0)
}

func (m *MockListingRepository) MarkArchived(ctx context.Context, tx pgx.Tx, listingID uuid.UUID) error {
	args := m.Called(ctx, tx, listingID)
	return args.Error(0)
}

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetAccountByIDForUpdate(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*accounts.Account, error) {
	args := m.Called(ctx, tx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*accounts.Account), args.Error(1)
}

func (m *MockAccountRepository) DebitCoins(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error {
	args := m.Called(ctx, tx, accountID, amount)
	return args.Error(0)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

type serviceMocks struct {
	tx          *stubTx
	bidRepo     *MockBidRepository
	listingRepo *MockListingRepository
	accountRepo *MockAccountRepository
	outboxRepo  *MockOutboxRepository
}

func newTestService(now time.Time) (*Service, *serviceMocks) {
	m := &serviceMocks{
		tx:          &stubTx{},
		bidRepo:     new(MockBidRepository),
		listingRepo: new(MockListingRepository),
		accountRepo: new(MockAccountRepository),
		outboxRepo:  new(MockOutboxRepository),
	}
	svc := NewService(&stubTxManager{tx: m.tx}, m.bidRepo, m.listingRepo, m.accountRepo, m.outboxRepo)
	svc.now = func() time.Time { return now }
	return svc, m
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestService_PlaceBid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	listingID := uuid.New()
	ownerID := uuid.New()
	bidderID := uuid.New()
	rivalID := uuid.New()

	openListing := func() *listings.Listing {
		return &listings.Listing{
			ID:           listingID,
			OwnerID:      ownerID,
			Amount:       50000,
			InitialBid:   1000,
			BidIncrement: 100,
			BidEndAt:     now.Add(24 * time.Hour),
			IsActive:     true,
		}
	}

	tests := []struct {
		name      string
		cmd       PlaceBidCommand
		setupMock func(*serviceMocks)
		wantErr   error
		check     func(*testing.T, *PlaceBidResult, *serviceMocks)
	}{
		{
			name: "accepts first bid at the initial price",
			cmd:  PlaceBidCommand{ListingID: listingID, BidderID: bidderID, Amount: 1000},
			setupMock: func(m *serviceMocks) {
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(openListing(), nil)
				m.bidRepo.On("SaveBid", mock.Anything, m.tx, mock.AnythingOfType("*auction.Bid")).Return(nil)
				m.listingRepo.On("UpdateHighestBid", mock.Anything, m.tx, listingID, int64(1000), bidderID, (*int64)(nil)).Return(nil)
				m.outboxRepo.On("SaveEvent", mock.Anything, m.tx, mock.AnythingOfType("*events.OutboxEvent")).Return(nil)
			},
			check: func(t *testing.T, res *PlaceBidResult, m *serviceMocks) {
				assert.True(t, m.tx.committed)
				assert.Equal(t, int64(1000), res.Bid.Amount)
				assert.Equal(t, int64(1000), *res.Listing.HighestBid)
				assert.Equal(t, bidderID, *res.Listing.HighestBidderID)
			},
		},
		{
			name: "rejects bid below the full increment",
			cmd:  PlaceBidCommand{ListingID: listingID, BidderID: rivalID, Amount: 1050},
			setupMock: func(m *serviceMocks) {
				listing := openListing()
				listing.HighestBid = int64Ptr(1000)
				listing.HighestBidderID = &bidderID
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(listing, nil)
			},
			wantErr: ErrBidTooLow,
		},
		{
			name: "accepts bid above the minimum next bid",
			cmd:  PlaceBidCommand{ListingID: listingID, BidderID: rivalID, Amount: 1200},
			setupMock: func(m *serviceMocks) {
				listing := openListing()
				listing.HighestBid = int64Ptr(1000)
				listing.HighestBidderID = &bidderID
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(listing, nil)
				m.bidRepo.On("SaveBid", mock.Anything, m.tx, mock.AnythingOfType("*auction.Bid")).Return(nil)
				m.listingRepo.On("UpdateHighestBid", mock.Anything, m.tx, listingID, int64(1200), rivalID, int64Ptr(1000)).Return(nil)
				m.outboxRepo.On("SaveEvent", mock.Anything, m.tx, mock.AnythingOfType("*events.OutboxEvent")).Return(nil)
			},
			check: func(t *testing.T, res *PlaceBidResult, m *serviceMocks) {
				assert.Equal(t, int64(1200), *res.Listing.HighestBid)
				assert.Equal(t, rivalID, *res.Listing.HighestBidderID)
			},
		},
		{
			name: "rejects bid after the deadline",
			cmd:  PlaceBidCommand{ListingID: listingID, BidderID: rivalID, Amount: 5000},
			setupMock: func(m *serviceMocks) {
				listing := openListing()
				listing.BidEndAt = now.Add(-1 * time.Minute)
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(listing, nil)
			},
			wantErr: ErrAuctionEnded,
		},
		{
			name: "rejects bid on an inactive listing",
			cmd:  PlaceBidCommand{ListingID: listingID, BidderID: rivalID, Amount: 5000},
			setupMock: func(m *serviceMocks) {
				listing := openListing()
				listing.IsActive = false
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(listing, nil)
			},
			wantErr: ErrAuctionInactive,
		},
		{
			name: "rejects owner bidding on their own listing",
			cmd:  PlaceBidCommand{ListingID: listingID, BidderID: ownerID, Amount: 1000},
			setupMock: func(m *serviceMocks) {
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(openListing(), nil)
			},
			wantErr: ErrOwnerCannotBid,
		},
		{
			name: "rejects bid when the observed price is stale",
			cmd:  PlaceBidCommand{ListingID: listingID, BidderID: rivalID, Amount: 1400, ExpectedPrice: int64Ptr(1000)},
			setupMock: func(m *serviceMocks) {
				listing := openListing()
				listing.HighestBid = int64Ptr(1300)
				listing.HighestBidderID = &bidderID
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(listing, nil)
			},
			wantErr: ErrBidConflict,
		},
		{
			name: "accepts bid when the observed price still matches",
			cmd:  PlaceBidCommand{ListingID: listingID, BidderID: rivalID, Amount: 1400, ExpectedPrice: int64Ptr(1300)},
			setupMock: func(m *serviceMocks) {
				listing := openListing()
				listing.HighestBid = int64Ptr(1300)
				listing.HighestBidderID = &bidderID
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(listing, nil)
				m.bidRepo.On("SaveBid", mock.Anything, m.tx, mock.AnythingOfType("*auction.Bid")).Return(nil)
				m.listingRepo.On("UpdateHighestBid", mock.Anything, m.tx, listingID, int64(1400), rivalID, int64Ptr(1300)).Return(nil)
				m.outboxRepo.On("SaveEvent", mock.Anything, m.tx, mock.AnythingOfType("*events.OutboxEvent")).Return(nil)
			},
		},
		{
			name: "maps a highest bid conflict from the repository",
			cmd:  PlaceBidCommand{ListingID: listingID, BidderID: rivalID, Amount: 1400},
			setupMock: func(m *serviceMocks) {
				listing := openListing()
				listing.HighestBid = int64Ptr(1300)
				listing.HighestBidderID = &bidderID
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(listing, nil)
				m.bidRepo.On("SaveBid", mock.Anything, m.tx, mock.AnythingOfType("*auction.Bid")).Return(nil)
				m.listingRepo.On("UpdateHighestBid", mock.Anything, m.tx, listingID, int64(1400), rivalID, int64Ptr(1300)).Return(listings.ErrHighestBidConflict)
			},
			wantErr: ErrBidConflict,
		},
		{
			name: "rejects bid on a missing listing",
			cmd:  PlaceBidCommand{ListingID: listingID, BidderID: rivalID, Amount: 1000},
			setupMock: func(m *serviceMocks) {
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(nil, pgx.ErrNoRows)
			},
			wantErr: ErrListingNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService(now)
			tt.setupMock(m)

			result, err := svc.PlaceBid(context.Background(), tt.cmd)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, result)
				assert.False(t, m.tx.committed, "failed bids must not commit")
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, result)
				if tt.check != nil {
					tt.check(t, result, m)
				}
			}

			m.bidRepo.AssertExpectations(t)
			m.listingRepo.AssertExpectations(t)
			m.outboxRepo.AssertExpectations(t)
		})
	}
}

func TestService_Settle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	listingID := uuid.New()
	ownerID := uuid.New()
	winnerID := uuid.New()
	loserID := uuid.New()

	endedListing := func() *listings.Listing {
		return &listings.Listing{
			ID:              listingID,
			OwnerID:         ownerID,
			Amount:          50000,
			InitialBid:      1000,
			BidIncrement:    100,
			BidEndAt:        now.Add(-1 * time.Hour),
			IsActive:        true,
			HighestBid:      int64Ptr(1200),
			HighestBidderID: &winnerID,
		}
	}

	tests := []struct {
		name      string
		cmd       SettleCommand
		setupMock func(*serviceMocks)
		wantErr   error
		check     func(*testing.T, *listings.Listing, *serviceMocks)
	}{
		{
			name: "winner settles an ended listing",
			cmd:  SettleCommand{ListingID: listingID, PayerID: winnerID},
			setupMock: func(m *serviceMocks) {
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(endedListing(), nil)
				m.accountRepo.On("GetAccountByIDForUpdate", mock.Anything, m.tx, winnerID).Return(&accounts.Account{ID: winnerID, Coins: 60000}, nil)
				m.accountRepo.On("DebitCoins", mock.Anything, m.tx, winnerID, int64(50000)).Return(nil)
				m.listingRepo.On("MarkSettled", mock.Anything, m.tx, listingID, winnerID).Return(nil)
				m.outboxRepo.On("SaveEvent", mock.Anything, m.tx, mock.AnythingOfType("*events.OutboxEvent")).Return(nil)
			},
			check: func(t *testing.T, listing *listings.Listing, m *serviceMocks) {
				assert.True(t, m.tx.committed)
				assert.Equal(t, winnerID, listing.OwnerID)
				assert.False(t, listing.IsActive)
			},
		},
		{
			name: "second settle finds the listing inactive",
			cmd:  SettleCommand{ListingID: listingID, PayerID: winnerID},
			setupMock: func(m *serviceMocks) {
				listing := endedListing()
				listing.IsActive = false
				listing.OwnerID = winnerID
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(listing, nil)
			},
			wantErr: ErrAuctionInactive,
		},
		{
			name: "cannot settle while bidding is open",
			cmd:  SettleCommand{ListingID: listingID, PayerID: winnerID},
			setupMock: func(m *serviceMocks) {
				listing := endedListing()
				listing.BidEndAt = now.Add(1 * time.Hour)
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(listing, nil)
			},
			wantErr: ErrAuctionNotEnded,
		},
		{
			name: "only the highest bidder can settle",
			cmd:  SettleCommand{ListingID: listingID, PayerID: loserID},
			setupMock: func(m *serviceMocks) {
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(endedListing(), nil)
			},
			wantErr: ErrNotHighestBidder,
		},
		{
			name: "cannot settle a listing that drew no bids",
			cmd:  SettleCommand{ListingID: listingID, PayerID: winnerID},
			setupMock: func(m *serviceMocks) {
				listing := endedListing()
				listing.HighestBid = nil
				listing.HighestBidderID = nil
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(listing, nil)
			},
			wantErr: ErrNotHighestBidder,
		},
		{
			name: "rejects settlement the payer cannot afford",
			cmd:  SettleCommand{ListingID: listingID, PayerID: winnerID},
			setupMock: func(m *serviceMocks) {
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(endedListing(), nil)
				m.accountRepo.On("GetAccountByIDForUpdate", mock.Anything, m.tx, winnerID).Return(&accounts.Account{ID: winnerID, Coins: 1500}, nil)
			},
			wantErr: ErrInsufficientBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService(now)
			tt.setupMock(m)

			listing, err := svc.Settle(context.Background(), tt.cmd)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, listing)
				assert.False(t, m.tx.committed, "failed settlements must not commit")
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, listing)
				if tt.check != nil {
					tt.check(t, listing, m)
				}
			}

			m.listingRepo.AssertExpectations(t)
			m.accountRepo.AssertExpectations(t)
			m.outboxRepo.AssertExpectations(t)
		})
	}
}

func TestService_Archive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	listingID := uuid.New()
	ownerID := uuid.New()
	strangerID := uuid.New()
	bidderID := uuid.New()

	endedNoBids := func() *listings.Listing {
		return &listings.Listing{
			ID:           listingID,
			OwnerID:      ownerID,
			Amount:       50000,
			InitialBid:   1000,
			BidIncrement: 100,
			BidEndAt:     now.Add(-1 * time.Hour),
			IsActive:     true,
		}
	}

	tests := []struct {
		name      string
		cmd       ArchiveCommand
		setupMock func(*serviceMocks)
		wantErr   error
	}{
		{
			name: "owner archives an ended listing without bids",
			cmd:  ArchiveCommand{ListingID: listingID, OwnerID: ownerID},
			setupMock: func(m *serviceMocks) {
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(endedNoBids(), nil)
				m.listingRepo.On("MarkArchived", mock.Anything, m.tx, listingID).Return(nil)
				m.outboxRepo.On("SaveEvent", mock.Anything, m.tx, mock.AnythingOfType("*events.OutboxEvent")).Return(nil)
			},
		},
		{
			name: "only the owner can archive",
			cmd:  ArchiveCommand{ListingID: listingID, OwnerID: strangerID},
			setupMock: func(m *serviceMocks) {
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(endedNoBids(), nil)
			},
			wantErr: ErrNotOwner,
		},
		{
			name: "cannot archive while bidding is open",
			cmd:  ArchiveCommand{ListingID: listingID, OwnerID: ownerID},
			setupMock: func(m *serviceMocks) {
				listing := endedNoBids()
				listing.BidEndAt = now.Add(1 * time.Hour)
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(listing, nil)
			},
			wantErr: ErrAuctionNotEnded,
		},
		{
			name: "cannot archive a listing with bids",
			cmd:  ArchiveCommand{ListingID: listingID, OwnerID: ownerID},
			setupMock: func(m *serviceMocks) {
				listing := endedNoBids()
				listing.HighestBid = int64Ptr(1200)
				listing.HighestBidderID = &bidderID
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(listing, nil)
			},
			wantErr: ErrListingHasBids,
		},
		{
			name: "cannot archive twice",
			cmd:  ArchiveCommand{ListingID: listingID, OwnerID: ownerID},
			setupMock: func(m *serviceMocks) {
				listing := endedNoBids()
				listing.IsActive = false
				m.listingRepo.On("GetListingByIDForUpdate", mock.Anything, m.tx, listingID).Return(listing, nil)
			},
			wantErr: ErrAuctionInactive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newTestService(now)
			tt.setupMock(m)

			listing, err := svc.Archive(context.Background(), tt.cmd)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, listing)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, listing)
				assert.False(t, listing.IsActive)
			}

			m.listingRepo.AssertExpectations(t)
			m.outboxRepo.AssertExpectations(t)
		})
	}
}

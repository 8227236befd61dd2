package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/brickbid/brickbid/internal/domain/accounts"
	"github.com/brickbid/brickbid/internal/domain/auction"
	"github.com/brickbid/brickbid/internal/domain/listings"
	"github.com/brickbid/brickbid/internal/domain/stats"
)

type challengeRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
}

type challengeResponse struct {
	Message string `json:"message"`
}

type loginRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
}

type loginResponse struct {
	Token       string          `json:"token"`
	TokenExpiry time.Time       `json:"token_expiry"`
	IsNew       bool            `json:"is_new"`
	Account     accountResponse `json:"account"`
}

type accountResponse struct {
	ID            uuid.UUID `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	FullName      *string   `json:"full_name,omitempty"`
	Email         *string   `json:"email,omitempty"`
	Coins         int64     `json:"coins"`
	CreatedAt     time.Time `json:"created_at"`
}

type updateProfileRequest struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
}

type createListingRequest struct {
	Name          string    `json:"name" binding:"required"`
	Description   string    `json:"description" binding:"required"`
	PhotoURL      string    `json:"photo_url" binding:"required"`
	SquareFootage *int64    `json:"square_footage"`
	YearBuilt     *int      `json:"year_built"`
	GoogleMapsURL *string   `json:"google_maps_url"`
	YouTubeURL    *string   `json:"youtube_url"`
	Amount        int64     `json:"amount" binding:"required"`
	InitialBid    int64     `json:"initial_bid" binding:"required"`
	BidIncrement  int64     `json:"bid_increment" binding:"required"`
	BidEndAt      time.Time `json:"bid_end_at" binding:"required"`
}

type listingResponse struct {
	ID              uuid.UUID      `json:"id"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	PhotoURL        string         `json:"photo_url"`
	SquareFootage   *int64         `json:"square_footage,omitempty"`
	YearBuilt       *int           `json:"year_built,omitempty"`
	GoogleMapsURL   *string        `json:"google_maps_url,omitempty"`
	YouTubeURL      *string        `json:"youtube_url,omitempty"`
	Amount          int64          `json:"amount"`
	InitialBid      int64          `json:"initial_bid"`
	BidIncrement    int64          `json:"bid_increment"`
	BidEndAt        time.Time      `json:"bid_end_at"`
	OwnerID         uuid.UUID      `json:"owner_id"`
	State           listings.State `json:"state"`
	CurrentPrice    int64          `json:"current_price"`
	MinimumNextBid  int64          `json:"minimum_next_bid"`
	TimeRemainingMS int64          `json:"time_remaining_ms"`
	HighestBid      *int64         `json:"highest_bid,omitempty"`
	HighestBidderID *uuid.UUID     `json:"highest_bidder_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

type placeBidRequest struct {
	Amount        int64  `json:"amount" binding:"required"`
	ExpectedPrice *int64 `json:"expected_price"`
}

type bidResponse struct {
	ID        uuid.UUID `json:"id"`
	ListingID uuid.UUID `json:"listing_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type placeBidResponse struct {
	Bid     bidResponse     `json:"bid"`
	Listing listingResponse `json:"listing"`
}

type statsResponse struct {
	AccountID      uuid.UUID  `json:"account_id"`
	BidsPlaced     int64      `json:"bids_placed"`
	TotalAmountBid int64      `json:"total_amount_bid"`
	ListingsWon    int64      `json:"listings_won"`
	TotalSpent     int64      `json:"total_spent"`
	LastBidAt      *time.Time `json:"last_bid_at,omitempty"`
}

func toAccountResponse(account *accounts.Account) accountResponse {
	return accountResponse{
		ID:            account.ID,
		WalletAddress: account.WalletAddress,
		FullName:      account.FullName,
		Email:         account.Email,
		Coins:         account.Coins,
		CreatedAt:     account.CreatedAt,
	}
}

func toListingResponse(listing *listings.Listing, now time.Time) listingResponse {
	return listingResponse{
		ID:              listing.ID,
		Name:            listing.Name,
		Description:     listing.Description,
		PhotoURL:        listing.PhotoURL,
		SquareFootage:   listing.SquareFootage,
		YearBuilt:       listing.YearBuilt,
		GoogleMapsURL:   listing.GoogleMapsURL,
		YouTubeURL:      listing.YouTubeURL,
		Amount:          listing.Amount,
		InitialBid:      listing.InitialBid,
		BidIncrement:    listing.BidIncrement,
		BidEndAt:        listing.BidEndAt,
		OwnerID:         listing.OwnerID,
		State:           listing.StateAt(now),
		CurrentPrice:    listing.CurrentPrice(),
		MinimumNextBid:  listing.MinimumNextBid(),
		TimeRemainingMS: listing.TimeRemaining(now).Milliseconds(),
		HighestBid:      listing.HighestBid,
		HighestBidderID: listing.HighestBidderID,
		CreatedAt:       listing.CreatedAt,
	}
}

func toListingResponses(items []*listings.Listing, now time.Time) []listingResponse {
	result := make([]listingResponse, 0, len(items))
	for _, listing := range items {
		result = append(result, toListingResponse(listing, now))
	}
	return result
}

func toBidResponse(bid *auction.Bid) bidResponse {
	return bidResponse{
		ID:        bid.ID,
		ListingID: bid.ListingID,
		BidderID:  bid.BidderID,
		Amount:    bid.Amount,
		CreatedAt: bid.CreatedAt,
	}
}

func toBidResponses(bids []*auction.Bid) []bidResponse {
	result := make([]bidResponse, 0, len(bids))
	for _, bid := range bids {
		result = append(result, toBidResponse(bid))
	}
	return result
}

func toStatsResponse(accountStats *stats.AccountStats) statsResponse {
	return statsResponse{
		AccountID:      accountStats.AccountID,
		BidsPlaced:     accountStats.BidsPlaced,
		TotalAmountBid: accountStats.TotalAmountBid,
		ListingsWon:    accountStats.ListingsWon,
		TotalSpent:     accountStats.TotalSpent,
		LastBidAt:      accountStats.LastBidAt,
	}
}

package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brickbid/brickbid/internal/domain/accounts"
	"github.com/brickbid/brickbid/internal/domain/auction"
	"github.com/brickbid/brickbid/internal/domain/listings"
	"github.com/brickbid/brickbid/internal/domain/stats"
	"github.com/brickbid/brickbid/pkg/auth"
)

// AccountService is the account surface the handler depends on
type AccountService interface {
	Challenge(ctx context.Context, walletAddress string) (string, error)
	Login(ctx context.Context, walletAddress, signature string) (*accounts.Session, error)
	GetProfile(ctx context.Context, accountID uuid.UUID) (*accounts.Account, error)
	UpdateProfile(ctx context.Context, accountID uuid.UUID, fullName, email *string) (*accounts.Account, error)
}

// ListingService is the listing surface the handler depends on
type ListingService interface {
	CreateListing(ctx context.Context, cmd listings.CreateListingCommand) (*listings.Listing, error)
	GetListing(ctx context.Context, listingID uuid.UUID) (*listings.Listing, error)
	ListListings(ctx context.Context, query listings.ListQuery) ([]*listings.Listing, error)
	ListOwnerListings(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*listings.Listing, error)
}

// AuctionService is the bidding surface the handler depends on
type AuctionService interface {
	PlaceBid(ctx context.Context, cmd auction.PlaceBidCommand) (*auction.PlaceBidResult, error)
	Settle(ctx context.Context, cmd auction.SettleCommand) (*listings.Listing, error)
	Archive(ctx context.Context, cmd auction.ArchiveCommand) (*listings.Listing, error)
	ListBids(ctx context.Context, listingID uuid.UUID) ([]*auction.Bid, error)
	ListAccountBids(ctx context.Context, bidderID uuid.UUID) ([]*auction.Bid, error)
}

// StatsService is the stats surface the handler depends on
type StatsService interface {
	GetAccountStats(ctx context.Context, accountID uuid.UUID) (*stats.AccountStats, error)
}

// Handler serves the HTTP API
type Handler struct {
	accountService AccountService
	listingService ListingService
	auctionService AuctionService
	statsService   StatsService
	logger         *slog.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	accountService AccountService,
	listingService ListingService,
	auctionService AuctionService,
	statsService StatsService,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		accountService: accountService,
		listingService: listingService,
		auctionService: auctionService,
		statsService:   statsService,
		logger:         logger,
	}
}

// Challenge handles POST /api/v1/auth/challenge
func (h *Handler) Challenge(c *gin.Context) {
	var req challengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.accountService.Challenge(c.Request.Context(), req.WalletAddress)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, challengeResponse{Message: message})
}

// Login handles POST /api/v1/auth/login
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.accountService.Login(c.Request.Context(), req.WalletAddress, req.Signature)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, loginResponse{
		Token:       session.Token,
		TokenExpiry: session.TokenExpiry,
		IsNew:       session.IsNew,
		Account:     toAccountResponse(session.Account),
	})
}

// GetProfile handles GET /api/v1/accounts/me
func (h *Handler) GetProfile(c *gin.Context) {
	accountID, ok := h.authenticatedAccountID(c)
	if !ok {
		return
	}

	account, err := h.accountService.GetProfile(c.Request.Context(), accountID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAccountResponse(account))
}

// UpdateProfile handles PATCH /api/v1/accounts/me
func (h *Handler) UpdateProfile(c *gin.Context) {
	accountID, ok := h.authenticatedAccountID(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	account, err := h.accountService.UpdateProfile(c.Request.Context(), accountID, req.FullName, req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toAccountResponse(account))
}

// GetAccountStats handles GET /api/v1/accounts/me/stats
func (h *Handler) GetAccountStats(c *gin.Context) {
	accountID, ok := h.authenticatedAccountID(c)
	if !ok {
		return
	}

	accountStats, err := h.statsService.GetAccountStats(c.Request.Context(), accountID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toStatsResponse(accountStats))
}

// ListAccountBids handles GET /api/v1/accounts/me/bids
func (h *Handler) ListAccountBids(c *gin.Context) {
	accountID, ok := h.authenticatedAccountID(c)
	if !ok {
		return
	}

	bids, err := h.auctionService.ListAccountBids(c.Request.Context(), accountID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bids": toBidResponses(bids)})
}

// ListAccountListings handles GET /api/v1/accounts/me/listings
func (h *Handler) ListAccountListings(c *gin.Context) {
	accountID, ok := h.authenticatedAccountID(c)
	if !ok {
		return
	}

	limit, offset := paginationParams(c)
	result, err := h.listingService.ListOwnerListings(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"listings": toListingResponses(result, time.Now())})
}

// ListListings handles GET /api/v1/listings
func (h *Handler) ListListings(c *gin.Context) {
	limit, offset := paginationParams(c)
	query := listings.ListQuery{
		Sort:   listings.SortOrder(c.Query("sort")),
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	}

	result, err := h.listingService.ListListings(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"listings": toListingResponses(result, time.Now())})
}

// CreateListing handles POST /api/v1/listings
func (h *Handler) CreateListing(c *gin.Context) {
	accountID, ok := h.authenticatedAccountID(c)
	if !ok {
		return
	}

	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), listings.CreateListingCommand{
		Name:          req.Name,
		Description:   req.Description,
		PhotoURL:      req.PhotoURL,
		SquareFootage: req.SquareFootage,
		YearBuilt:     req.YearBuilt,
		GoogleMapsURL: req.GoogleMapsURL,
		YouTubeURL:    req.YouTubeURL,
		Amount:        req.Amount,
		InitialBid:    req.InitialBid,
		BidIncrement:  req.BidIncrement,
		BidEndAt:      req.BidEndAt,
		OwnerID:       accountID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toListingResponse(listing, time.Now()))
}

// GetListing handles GET /api/v1/listings/:id
func (h *Handler) GetListing(c *gin.Context) {
	listingID, ok := h.listingIDParam(c)
	if !ok {
		return
	}

	listing, err := h.listingService.GetListing(c.Request.Context(), listingID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toListingResponse(listing, time.Now()))
}

// ListBids handles GET /api/v1/listings/:id/bids
func (h *Handler) ListBids(c *gin.Context) {
	listingID, ok := h.listingIDParam(c)
	if !ok {
		return
	}

	bids, err := h.auctionService.ListBids(c.Request.Context(), listingID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bids": toBidResponses(bids)})
}

// PlaceBid handles POST /api/v1/listings/:id/bids
func (h *Handler) PlaceBid(c *gin.Context) {
	accountID, ok := h.authenticatedAccountID(c)
	if !ok {
		return
	}
	listingID, ok := h.listingIDParam(c)
	if !ok {
		return
	}

	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.auctionService.PlaceBid(c.Request.Context(), auction.PlaceBidCommand{
		ListingID:     listingID,
		BidderID:      accountID,
		Amount:        req.Amount,
		ExpectedPrice: req.ExpectedPrice,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, placeBidResponse{
		Bid:     toBidResponse(result.Bid),
		Listing: toListingResponse(result.Listing, time.Now()),
	})
}

// Settle handles POST /api/v1/listings/:id/settle
func (h *Handler) Settle(c *gin.Context) {
	accountID, ok := h.authenticatedAccountID(c)
	if !ok {
		return
	}
	listingID, ok := h.listingIDParam(c)
	if !ok {
		return
	}

	listing, err := h.auctionService.Settle(c.Request.Context(), auction.SettleCommand{
		ListingID: listingID,
		PayerID:   accountID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toListingResponse(listing, time.Now()))
}

// Archive handles POST /api/v1/listings/:id/archive
func (h *Handler) Archive(c *gin.Context) {
	accountID, ok := h.authenticatedAccountID(c)
	if !ok {
		return
	}
	listingID, ok := h.listingIDParam(c)
	if !ok {
		return
	}

	listing, err := h.auctionService.Archive(c.Request.Context(), auction.ArchiveCommand{
		ListingID: listingID,
		OwnerID:   accountID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toListingResponse(listing, time.Now()))
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) authenticatedAccountID(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := auth.AccountID(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return uuid.Nil, false
	}
	accountID, err := uuid.Parse(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid account identity"})
		return uuid.Nil, false
	}
	return accountID, true
}

func (h *Handler) listingIDParam(c *gin.Context) (uuid.UUID, bool) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return uuid.Nil, false
	}
	return listingID, true
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

func paginationParams(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, auth.ErrInvalidAddress),
		errors.Is(err, listings.ErrMissingFields),
		errors.Is(err, listings.ErrInvalidAmount),
		errors.Is(err, listings.ErrInvalidInitialBid),
		errors.Is(err, listings.ErrInvalidBidIncrement),
		errors.Is(err, listings.ErrInvalidEndTime),
		errors.Is(err, listings.ErrInvalidSort):
		status = http.StatusBadRequest

	case errors.Is(err, accounts.ErrAuthFailed),
		errors.Is(err, accounts.ErrNonceNotFound):
		status = http.StatusUnauthorized

	case errors.Is(err, auction.ErrOwnerCannotBid),
		errors.Is(err, auction.ErrNotHighestBidder),
		errors.Is(err, auction.ErrNotOwner):
		status = http.StatusForbidden

	case errors.Is(err, listings.ErrListingNotFound),
		errors.Is(err, auction.ErrListingNotFound),
		errors.Is(err, accounts.ErrAccountNotFound):
		status = http.StatusNotFound

	case errors.Is(err, auction.ErrBidTooLow),
		errors.Is(err, auction.ErrInsufficientBalance):
		status = http.StatusUnprocessableEntity

	case errors.Is(err, auction.ErrAuctionEnded),
		errors.Is(err, auction.ErrAuctionNotEnded),
		errors.Is(err, auction.ErrAuctionInactive),
		errors.Is(err, auction.ErrListingHasBids),
		errors.Is(err, auction.ErrBidConflict),
		errors.Is(err, listings.ErrHighestBidConflict):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}

	var tooLow *auction.BidTooLowError
	if errors.As(err, &tooLow) {
		c.JSON(status, gin.H{"error": tooLow.Error(), "minimum_next_bid": tooLow.Minimum})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

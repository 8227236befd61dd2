package listings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service errors
var (
	ErrInvalidAmount       = fmt.Errorf("settlement amount must be greater than 0")
	ErrInvalidInitialBid   = fmt.Errorf("initial bid must be greater than 0")
	ErrInvalidBidIncrement = fmt.Errorf("bid increment must be greater than 0")
	ErrInvalidEndTime      = fmt.Errorf("bid end time must be in the future")
	ErrMissingFields       = fmt.Errorf("name, description and photo URL are required")
	ErrInvalidSort         = fmt.Errorf("invalid sort order")
	ErrListingNotFound     = fmt.Errorf("listing not found")
	ErrHighestBidConflict  = fmt.Errorf("highest bid changed concurrently")
)

// CreateListingCommand represents the command to create a new listing
type CreateListingCommand struct {
	Name          string
	Description   string
	PhotoURL      string
	SquareFootage *int64
	YearBuilt     *int
	GoogleMapsURL *string
	YouTubeURL    *string
	Amount        int64
	InitialBid    int64
	BidIncrement  int64
	BidEndAt      time.Time
	OwnerID       uuid.UUID
}

// Service implements the core business logic for listings
type Service struct {
	repo Repository
}

// NewService creates a new listing service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateListing creates a new listing open for bidding
func (s *Service) CreateListing(ctx context.Context, cmd CreateListingCommand) (*Listing, error) {
	if cmd.Name == "" || cmd.Description == "" || cmd.PhotoURL == "" {
		return nil, ErrMissingFields
	}
	if cmd.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if cmd.InitialBid <= 0 {
		return nil, ErrInvalidInitialBid
	}
	if cmd.BidIncrement <= 0 {
		return nil, ErrInvalidBidIncrement
	}
	if !cmd.BidEndAt.After(time.Now()) {
		return nil, ErrInvalidEndTime
	}

	now := time.Now()
	listing := &Listing{
		ID:            uuid.New(),
		Name:          cmd.Name,
		Description:   cmd.Description,
		PhotoURL:      cmd.PhotoURL,
		SquareFootage: cmd.SquareFootage,
		YearBuilt:     cmd.YearBuilt,
		GoogleMapsURL: cmd.GoogleMapsURL,
		YouTubeURL:    cmd.YouTubeURL,
		Amount:        cmd.Amount,
		InitialBid:    cmd.InitialBid,
		BidIncrement:  cmd.BidIncrement,
		BidEndAt:      cmd.BidEndAt,
		OwnerID:       cmd.OwnerID,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.CreateListing(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to create listing: %w", err)
	}

	return listing, nil
}

// GetListing retrieves a listing by ID
func (s *Service) GetListing(ctx context.Context, listingID uuid.UUID) (*Listing, error) {
	listing, err := s.repo.GetListingByID(ctx, listingID)
	if err != nil {
		return nil, ErrListingNotFound
	}
	return listing, nil
}

// ListListings retrieves the browse feed
func (s *Service) ListListings(ctx context.Context, query ListQuery) ([]*Listing, error) {
	if query.Sort == "" {
		query.Sort = SortNewest
	}
	if !query.Sort.IsValid() {
		return nil, fmt.Errorf("%w %q", ErrInvalidSort, query.Sort)
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}

	result, err := s.repo.ListListings(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	return result, nil
}

// ListOwnerListings retrieves all listings owned by an account
func (s *Service) ListOwnerListings(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*Listing, error) {
	if limit <= 0 {
		limit = 20
	}
	result, err := s.repo.ListListingsByOwnerID(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list owner listings: %w", err)
	}
	return result, nil
}

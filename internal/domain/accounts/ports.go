package accounts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/brickbid/brickbid/pkg/events"
)

// Repository defines the interface for account persistence
type Repository interface {
	// GetAccountByWallet retrieves an account by its lower-cased wallet address.
	// Returns (nil, nil) when the wallet has never been seen.
	GetAccountByWallet(ctx context.Context, walletAddress string) (*Account, error)

	// GetAccountByID retrieves an account by its ID
	GetAccountByID(ctx context.Context, accountID uuid.UUID) (*Account, error)

	// CreateAccount creates a new account within a transaction
	CreateAccount(ctx context.Context, tx pgx.Tx, account *Account) error

	// UpdateProfile updates the holder-mutable fields
	UpdateProfile(ctx context.Context, accountID uuid.UUID, fullName, email *string) (*Account, error)
}

// OutboxRepository persists domain events in the same transaction as the
// state change that produced them.
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
}

// NonceStore issues and consumes single-use login challenge nonces.
type NonceStore interface {
	// Save stores the nonce for a wallet address with a TTL, replacing any
	// previous nonce for the same address.
	Save(ctx context.Context, walletAddress, nonce string, ttl time.Duration) error

	// Consume retrieves and deletes the nonce for a wallet address.
	// Returns ErrNonceNotFound when none is pending or it has expired.
	Consume(ctx context.Context, walletAddress string) (string, error)
}

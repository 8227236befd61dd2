package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/brickbid/brickbid/pkg/auth"
	"github.com/brickbid/brickbid/pkg/database"
	"github.com/brickbid/brickbid/pkg/events"
)

var (
	ErrAuthFailed      = errors.New("wallet signature verification failed")
	ErrNonceNotFound   = errors.New("no pending challenge for this wallet")
	ErrAccountNotFound = errors.New("account not found")
)

const challengeTTL = 5 * time.Minute

// uniqueViolation is the Postgres error code for a unique constraint breach
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Service implements wallet-based authentication and profile management.
type Service struct {
	repo       Repository
	outboxRepo OutboxRepository
	nonces     NonceStore
	signer     *auth.Signer
	txManager  database.TransactionManager
}

// NewService creates a new account service
func NewService(
	repo Repository,
	outboxRepo OutboxRepository,
	nonces NonceStore,
	signer *auth.Signer,
	txManager database.TransactionManager,
) *Service {
	return &Service{
		repo:       repo,
		outboxRepo: outboxRepo,
		nonces:     nonces,
		signer:     signer,
		txManager:  txManager,
	}
}

// Challenge issues a single-use sign-in challenge for a wallet address.
func (s *Service) Challenge(ctx context.Context, walletAddress string) (string, error) {
	address, err := auth.NormalizeAddress(walletAddress)
	if err != nil {
		return "", err
	}

	nonce := uuid.NewString()
	if err := s.nonces.Save(ctx, address, nonce, challengeTTL); err != nil {
		return "", fmt.Errorf("failed to save challenge nonce: %w", err)
	}

	return auth.ChallengeMessage(address, nonce), nil
}

// Login verifies a signed challenge and returns a session. A previously-unseen
// wallet gets an account created with the new-account bonus, in the same
// transaction as the account.created outbox event.
func (s *Service) Login(ctx context.Context, walletAddress, signature string) (*Session, error) {
	address, err := auth.NormalizeAddress(walletAddress)
	if err != nil {
		return nil, err
	}

	nonce, err := s.nonces.Consume(ctx, address)
	if err != nil {
		if errors.Is(err, ErrNonceNotFound) {
			return nil, ErrNonceNotFound
		}
		return nil, fmt.Errorf("failed to consume challenge nonce: %w", err)
	}

	message := auth.ChallengeMessage(address, nonce)
	recovered, err := auth.RecoverAddress(message, signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if !strings.EqualFold(recovered, address) {
		return nil, ErrAuthFailed
	}

	account, err := s.repo.GetAccountByWallet(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	isNew := account == nil
	if isNew {
		account, err = s.createAccount(ctx, address)
		if isUniqueViolation(err) {
			// A concurrent first login inserted the row between the lookup
			// and our insert. The account exists now; use it.
			account, err = s.repo.GetAccountByWallet(ctx, address)
			if err != nil {
				return nil, fmt.Errorf("failed to look up account: %w", err)
			}
			if account == nil {
				return nil, fmt.Errorf("account missing after duplicate wallet insert")
			}
			isNew = false
		} else if err != nil {
			return nil, err
		}
	}

	token, expiry, err := s.signer.GenerateToken(account.ID, account.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}

	return &Session{
		Account:     account,
		Token:       token,
		TokenExpiry: expiry,
		IsNew:       isNew,
	}, nil
}

func (s *Service) createAccount(ctx context.Context, address string) (*Account, error) {
	now := time.Now()
	account := &Account{
		ID:            uuid.New(),
		WalletAddress: address,
		Coins:         NewAccountBonus,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := s.repo.CreateAccount(ctx, tx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	payload, err := json.Marshal(events.AccountCreated{
		AccountID:     account.ID,
		WalletAddress: account.WalletAddress,
		BonusCoins:    NewAccountBonus,
		CreatedAt:     account.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &events.OutboxEvent{
		ID:        uuid.New(),
		EventType: events.EventTypeAccountCreated,
		Payload:   payload,
		Status:    events.OutboxStatusPending,
		CreatedAt: now,
	}
	if err := s.outboxRepo.SaveEvent(ctx, tx, outboxEvent); err != nil {
		return nil, fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return account, nil
}

// GetProfile retrieves an account by ID
func (s *Service) GetProfile(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	account, err := s.repo.GetAccountByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

// UpdateProfile updates the holder-mutable fields. Nil fields are left unchanged.
func (s *Service) UpdateProfile(ctx context.Context, accountID uuid.UUID, fullName, email *string) (*Account, error) {
	account, err := s.repo.UpdateProfile(ctx, accountID, fullName, email)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	return account, nil
}

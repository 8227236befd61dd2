package accounts

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"regexp"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brickbid/brickbid/pkg/auth"
	"github.com/brickbid/brickbid/pkg/events"
)

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

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetAccountByWallet(ctx context.Context, walletAddress string) (*Account, error) {
	args := m.Called(ctx, walletAddress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockRepository) GetAccountByID(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

func (m *MockRepository) CreateAccount(ctx context.Context, tx pgx.Tx, account *Account) error {
	args := m.Called(ctx, tx, account)
	return args.Error(0)
}

func (m *MockRepository) UpdateProfile(ctx context.Context, accountID uuid.UUID, fullName, email *string) (*Account, error) {
	args := m.Called(ctx, accountID, fullName, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Account), args.Error(1)
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	args := m.Called(ctx, tx, event)
	return args.Error(0)
}

// memoryNonceStore is a single-use in-memory nonce store for tests
type memoryNonceStore struct {
	nonces map[string]string
}

func newMemoryNonceStore() *memoryNonceStore {
	return &memoryNonceStore{nonces: make(map[string]string)}
}

func (s *memoryNonceStore) Save(ctx context.Context, walletAddress, nonce string, ttl time.Duration) error {
	s.nonces[walletAddress] = nonce
	return nil
}

func (s *memoryNonceStore) Consume(ctx context.Context, walletAddress string) (string, error) {
	nonce, ok := s.nonces[walletAddress]
	if !ok {
		return "", ErrNonceNotFound
	}
	delete(s.nonces, walletAddress)
	return nonce, nil
}

func newTestSigner(t *testing.T) *auth.Signer {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})
	pubBytes, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	require.NoError(t, err)
	pubPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "PUBLIC KEY",
		Bytes: pubBytes,
	})

	signer, err := auth.NewSigner(privPEM, pubPEM, "brickbid-test", time.Hour)
	require.NoError(t, err)
	return signer
}

// newTestWallet generates a key pair and derives its wallet address
func newTestWallet(t *testing.T) (*secp256k1.PrivateKey, string) {
	t.Helper()

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	address, err := auth.RecoverAddress("derive", auth.SignMessage("derive", priv))
	require.NoError(t, err)
	return priv, address
}

func TestService_Challenge(t *testing.T) {
	nonces := newMemoryNonceStore()
	service := NewService(new(MockRepository), new(MockOutboxRepository), nonces, newTestSigner(t), &stubTxManager{tx: &stubTx{}})

	address := "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

	message, err := service.Challenge(context.Background(), address)
	require.NoError(t, err)

	assert.Contains(t, message, "Welcome to Real Estate Bidding Platform!")
	assert.Regexp(t, regexp.MustCompile(`Nonce: [0-9a-f-]{36}`), message)

	// The nonce is stored under the lower-cased address
	stored, ok := nonces.nonces["0xab5801a7d398351b8be11c439e05c5b3259aec9b"]
	assert.True(t, ok)
	assert.Contains(t, message, stored)
}

func TestService_Challenge_InvalidAddress(t *testing.T) {
	service := NewService(new(MockRepository), new(MockOutboxRepository), newMemoryNonceStore(), newTestSigner(t), &stubTxManager{tx: &stubTx{}})

	_, err := service.Challenge(context.Background(), "not-an-address")
	assert.ErrorIs(t, err, auth.ErrInvalidAddress)
}

func TestService_Login(t *testing.T) {
	priv, address := newTestWallet(t)

	t.Run("first login creates an account with the bonus", func(t *testing.T) {
		tx := &stubTx{}
		repo := new(MockRepository)
		outboxRepo := new(MockOutboxRepository)
		nonces := newMemoryNonceStore()
		service := NewService(repo, outboxRepo, nonces, newTestSigner(t), &stubTxManager{tx: tx})

		message, err := service.Challenge(context.Background(), address)
		require.NoError(t, err)
		signature := auth.SignMessage(message, priv)

		repo.On("GetAccountByWallet", mock.Anything, address).Return(nil, nil)
		repo.On("CreateAccount", mock.Anything, tx, mock.AnythingOfType("*accounts.Account")).Return(nil)
		outboxRepo.On("SaveEvent", mock.Anything, tx, mock.AnythingOfType("*events.OutboxEvent")).Return(nil)

		session, err := service.Login(context.Background(), address, signature)
		require.NoError(t, err)

		assert.True(t, session.IsNew)
		assert.Equal(t, NewAccountBonus, session.Account.Coins)
		assert.Equal(t, address, session.Account.WalletAddress)
		assert.NotEmpty(t, session.Token)
		assert.True(t, tx.committed)
		repo.AssertExpectations(t)
		outboxRepo.AssertExpectations(t)
	})

	t.Run("returning wallet logs into its existing account", func(t *testing.T) {
		repo := new(MockRepository)
		nonces := newMemoryNonceStore()
		service := NewService(repo, new(MockOutboxRepository), nonces, newTestSigner(t), &stubTxManager{tx: &stubTx{}})

		message, err := service.Challenge(context.Background(), address)
		require.NoError(t, err)
		signature := auth.SignMessage(message, priv)

		existing := &Account{ID: uuid.New(), WalletAddress: address, Coins: 1234}
		repo.On("GetAccountByWallet", mock.Anything, address).Return(existing, nil)

		session, err := service.Login(context.Background(), address, signature)
		require.NoError(t, err)

		assert.False(t, session.IsNew)
		assert.Equal(t, existing.ID, session.Account.ID)
		assert.Equal(t, int64(1234), session.Account.Coins)
	})

	t.Run("losing the first-login insert race reuses the winner's account", func(t *testing.T) {
		tx := &stubTx{}
		repo := new(MockRepository)
		outboxRepo := new(MockOutboxRepository)
		nonces := newMemoryNonceStore()
		service := NewService(repo, outboxRepo, nonces, newTestSigner(t), &stubTxManager{tx: tx})

		message, err := service.Challenge(context.Background(), address)
		require.NoError(t, err)
		signature := auth.SignMessage(message, priv)

		winner := &Account{ID: uuid.New(), WalletAddress: address, Coins: NewAccountBonus}
		repo.On("GetAccountByWallet", mock.Anything, address).Return(nil, nil).Once()
		repo.On("CreateAccount", mock.Anything, tx, mock.AnythingOfType("*accounts.Account")).
			Return(&pgconn.PgError{Code: "23505"})
		repo.On("GetAccountByWallet", mock.Anything, address).Return(winner, nil).Once()

		session, err := service.Login(context.Background(), address, signature)
		require.NoError(t, err)

		assert.False(t, session.IsNew)
		assert.Equal(t, winner.ID, session.Account.ID)
		repo.AssertExpectations(t)
	})

	t.Run("rejects a signature from a different key", func(t *testing.T) {
		nonces := newMemoryNonceStore()
		service := NewService(new(MockRepository), new(MockOutboxRepository), nonces, newTestSigner(t), &stubTxManager{tx: &stubTx{}})

		message, err := service.Challenge(context.Background(), address)
		require.NoError(t, err)

		otherKey, _ := newTestWallet(t)
		signature := auth.SignMessage(message, otherKey)

		_, err = service.Login(context.Background(), address, signature)
		assert.ErrorIs(t, err, ErrAuthFailed)
	})

	t.Run("rejects a login without a pending challenge", func(t *testing.T) {
		service := NewService(new(MockRepository), new(MockOutboxRepository), newMemoryNonceStore(), newTestSigner(t), &stubTxManager{tx: &stubTx{}})

		_, err := service.Login(context.Background(), address, auth.SignMessage("anything", priv))
		assert.ErrorIs(t, err, ErrNonceNotFound)
	})

	t.Run("a challenge cannot be replayed", func(t *testing.T) {
		repo := new(MockRepository)
		nonces := newMemoryNonceStore()
		service := NewService(repo, new(MockOutboxRepository), nonces, newTestSigner(t), &stubTxManager{tx: &stubTx{}})

		message, err := service.Challenge(context.Background(), address)
		require.NoError(t, err)
		signature := auth.SignMessage(message, priv)

		repo.On("GetAccountByWallet", mock.Anything, address).Return(&Account{ID: uuid.New(), WalletAddress: address}, nil)

		_, err = service.Login(context.Background(), address, signature)
		require.NoError(t, err)

		_, err = service.Login(context.Background(), address, signature)
		assert.ErrorIs(t, err, ErrNonceNotFound)
	})
}

func TestService_GetProfile_NotFound(t *testing.T) {
	repo := new(MockRepository)
	repo.On("GetAccountByID", mock.Anything, mock.Anything).Return(nil, nil)

	service := NewService(repo, new(MockOutboxRepository), newMemoryNonceStore(), newTestSigner(t), &stubTxManager{tx: &stubTx{}})

	_, err := service.GetProfile(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

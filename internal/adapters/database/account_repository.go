package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brickbid/brickbid/internal/domain/accounts"
	pkgdb "github.com/brickbid/brickbid/pkg/database"
)

const accountColumns = `id, wallet_address, full_name, email, coins, created_at, updated_at`

// PostgresAccountRepository implements accounts.Repository and the account
// slice of the auction engine using pgx.
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAccountRepository creates a new PostgreSQL account repository
func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// GetAccountByWallet retrieves an account by wallet address.
// Returns (nil, nil) when the wallet has never been seen.
func (r *PostgresAccountRepository) GetAccountByWallet(ctx context.Context, walletAddress string) (*accounts.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE wallet_address = $1`

	account, err := r.scanAccount(r.pool.QueryRow(ctx, query, walletAddress))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account by wallet: %w", err)
	}
	return account, nil
}

// GetAccountByID retrieves an account by its ID.
// Returns (nil, nil) when no account exists.
func (r *PostgresAccountRepository) GetAccountByID(ctx context.Context, accountID uuid.UUID) (*accounts.Account, error) {
	return r.getAccountByID(ctx, r.pool, accountID, false)
}

// GetAccountByIDForUpdate retrieves an account and locks its row so
// concurrent settlements cannot double-spend the balance.
func (r *PostgresAccountRepository) GetAccountByIDForUpdate(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*accounts.Account, error) {
	account, err := r.getAccountByID(ctx, tx, accountID, true)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, fmt.Errorf("account %s not found", accountID)
	}
	return account, nil
}

func (r *PostgresAccountRepository) getAccountByID(ctx context.Context, db pkgdb.DBTX, accountID uuid.UUID, forUpdate bool) (*accounts.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	account, err := r.scanAccount(db.QueryRow(ctx, query, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// CreateAccount creates a new account within a transaction
func (r *PostgresAccountRepository) CreateAccount(ctx context.Context, tx pgx.Tx, account *accounts.Account) error {
	query := `
		INSERT INTO accounts (id, wallet_address, full_name, email, coins, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query,
		account.ID,
		account.WalletAddress,
		account.FullName,
		account.Email,
		account.Coins,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// UpdateProfile updates the holder-mutable fields. Nil arguments leave the
// stored value unchanged. Returns (nil, nil) when no account exists.
func (r *PostgresAccountRepository) UpdateProfile(ctx context.Context, accountID uuid.UUID, fullName, email *string) (*accounts.Account, error) {
	query := `
		UPDATE accounts
		SET full_name = COALESCE($1, full_name),
			email = COALESCE($2, email),
			updated_at = NOW()
		WHERE id = $3
		RETURNING ` + accountColumns

	account, err := r.scanAccount(r.pool.QueryRow(ctx, query, fullName, email, accountID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return account, nil
}

// DebitCoins subtracts amount from the account balance within a transaction.
// The guard on coins keeps the balance from ever going negative even if the
// caller's balance check raced.
func (r *PostgresAccountRepository) DebitCoins(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, amount int64) error {
	query := `
		UPDATE accounts
		SET coins = coins - $1, updated_at = NOW()
		WHERE id = $2 AND coins >= $1
	`
	result, err := tx.Exec(ctx, query, amount, accountID)
	if err != nil {
		return fmt.Errorf("failed to debit coins: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %s has insufficient coins", accountID)
	}

	return nil
}

func (r *PostgresAccountRepository) scanAccount(row pgx.Row) (*accounts.Account, error) {
	var account accounts.Account
	err := row.Scan(
		&account.ID,
		&account.WalletAddress,
		&account.FullName,
		&account.Email,
		&account.Coins,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

package accounts

import (
	"time"

	"github.com/google/uuid"
)

// NewAccountBonus is the one-time coin grant for a previously-unseen wallet.
const NewAccountBonus int64 = 2000

// Account represents a wallet-backed user profile.
type Account struct {
	ID            uuid.UUID `db:"id"`
	WalletAddress string    `db:"wallet_address"` // lower-cased
	FullName      *string   `db:"full_name"`
	Email         *string   `db:"email"`
	Coins         int64     `db:"coins"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// Session is the result of a successful wallet sign-in.
type Session struct {
	Account     *Account
	Token       string
	TokenExpiry time.Time
	IsNew       bool
}

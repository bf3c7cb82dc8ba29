package vault

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// Client defines the per-vault handle the portal interacts with. It abstracts
// the live on-chain implementation so row controllers can be exercised against
// fakes.
type Client interface {
	// TokenMint returns the vault's underlying token mint.
	TokenMint() solana.PublicKey

	// LpSupply returns the outstanding LP share supply in base units.
	LpSupply(ctx context.Context) (uint64, error)

	// GetWithdrawableAmount returns the vault reserve currently available
	// for withdrawal, in base units.
	GetWithdrawableAmount(ctx context.Context) (uint64, error)

	// GetUserBalance returns the owner's LP share balance in base units.
	GetUserBalance(ctx context.Context, owner solana.PublicKey) (uint64, error)

	// BuildDepositTransaction builds an unsigned deposit transaction for the
	// owner, amount in base units.
	BuildDepositTransaction(ctx context.Context, owner solana.PublicKey, amount uint64) (*solana.Transaction, error)

	// BuildWithdrawTransaction builds an unsigned withdraw transaction for
	// the owner, amount in LP base units.
	BuildWithdrawTransaction(ctx context.Context, owner solana.PublicKey, amount uint64) (*solana.Transaction, error)

	// GetAffiliateInfo returns the partner account for an affiliate-scoped
	// vault handle.
	GetAffiliateInfo(ctx context.Context) (*AffiliateInfo, error)
}

package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/mercurial-finance/vault-portal/internal/logger"
)

var walletLogger = logger.GetForComponent("wallet")

var (
	ErrSigningFailed   = errors.New("transaction signing failed")
	ErrBroadcastFailed = errors.New("transaction broadcast failed")
)

// Signer is the connected-wallet contract the row controllers depend on. A nil
// Signer means no wallet is connected.
type Signer interface {
	// PublicKey returns the wallet's public identifier.
	PublicKey() solana.PublicKey
	// SignAndSend signs the transaction and broadcasts it, returning the
	// transaction signature.
	SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Keypair is a local keypair wallet backed by a solana-keygen file.
type Keypair struct {
	priv solana.PrivateKey
	rpc  *rpc.Client
}

// LoadKeypair reads a solana-keygen JSON keypair file.
func LoadKeypair(path string, rpcClient *rpc.Client) (*Keypair, error) {
	priv, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair from %s: %w", path, err)
	}

	walletLogger.Info().
		Str("publicKey", priv.PublicKey().String()).
		Msg("Wallet keypair loaded")

	return &Keypair{priv: priv, rpc: rpcClient}, nil
}

// PublicKey returns the wallet's public key.
func (k *Keypair) PublicKey() solana.PublicKey {
	return k.priv.PublicKey()
}

// SignAndSend signs the transaction with the wallet key and broadcasts it.
func (k *Keypair) SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	pub := k.priv.PublicKey()

	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(pub) {
			return &k.priv
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %w", ErrSigningFailed, err)
	}

	sig, err := k.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%w: %w", ErrBroadcastFailed, err)
	}

	walletLogger.Info().
		Str("signature", sig.String()).
		Msg("Transaction broadcast")
	return sig, nil
}

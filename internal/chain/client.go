package chain

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/mercurial-finance/vault-portal/internal/logger"
)

var chainLogger = logger.GetForComponent("chain_client")

var (
	ErrInvalidEndpoint    = errors.New("RPC endpoint cannot be empty")
	ErrTransactionFailed  = errors.New("transaction failed on chain")
	ErrConfirmationFailed = errors.New("transaction confirmation failed")
)

// confirmPollInterval is how often signature statuses are polled while waiting
// for a transaction to land.
const confirmPollInterval = 2 * time.Second

// BalanceFetcher reads one kind of user balance for an owner. The vault row
// controller is parameterized with the fetcher matching its token kind.
type BalanceFetcher interface {
	Balance(ctx context.Context, owner solana.PublicKey) (uint64, error)
}

// Confirmer waits for a submitted transaction to be confirmed.
type Confirmer interface {
	ConfirmTransaction(ctx context.Context, sig solana.Signature) error
}

// Client wraps a Solana JSON-RPC client with the portal's account balance and
// confirmation queries.
type Client struct {
	rpc *rpc.Client
}

// NewClient creates a chain client for the given RPC endpoint.
func NewClient(endpoint string) (*Client, error) {
	if endpoint == "" {
		return nil, ErrInvalidEndpoint
	}
	return &Client{rpc: rpc.New(endpoint)}, nil
}

// RPC exposes the underlying RPC client for collaborators that build
// transactions directly.
func (c *Client) RPC() *rpc.Client {
	return c.rpc
}

// NativeBalance returns the owner's lamport balance.
func (c *Client) NativeBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	out, err := c.rpc.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch native balance: %w", err)
	}
	return out.Value, nil
}

// TokenBalance returns the owner's balance of the given mint, read from the
// associated token account. A missing account is a zero balance, not an error.
func (c *Client) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, fmt.Errorf("failed to derive associated token address: %w", err)
	}

	out, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to fetch token balance: %w", err)
	}
	if out.Value == nil {
		return 0, nil
	}

	amount, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token balance amount %q: %w", out.Value.Amount, err)
	}
	return amount, nil
}

// ConfirmTransaction polls the signature status until the transaction is
// confirmed or finalized. A transaction error on chain is returned as
// ErrTransactionFailed. Timeout behavior is left to the caller's context.
func (c *Client) ConfirmTransaction(ctx context.Context, sig solana.Signature) error {
	for {
		out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrConfirmationFailed, err)
		}

		if len(out.Value) > 0 && out.Value[0] != nil {
			status := out.Value[0]
			if status.Err != nil {
				return fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				chainLogger.Debug().
					Str("signature", sig.String()).
					Str("status", string(status.ConfirmationStatus)).
					Msg("Transaction confirmed")
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrConfirmationFailed, ctx.Err())
		case <-time.After(confirmPollInterval):
		}
	}
}

// nativeFetcher reads the plain lamport balance.
type nativeFetcher struct {
	client *Client
}

func (f nativeFetcher) Balance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	return f.client.NativeBalance(ctx, owner)
}

// tokenFetcher reads an SPL token balance for a fixed mint.
type tokenFetcher struct {
	client *Client
	mint   solana.PublicKey
}

func (f tokenFetcher) Balance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	return f.client.TokenBalance(ctx, owner, f.mint)
}

// FetcherForMint selects the balance fetch strategy for a token: the native
// lamport balance for wrapped SOL, the associated token account otherwise.
func (c *Client) FetcherForMint(mint solana.PublicKey) BalanceFetcher {
	if mint.Equals(solana.SolMint) {
		return nativeFetcher{client: c}
	}
	return tokenFetcher{client: c, mint: mint}
}

package vault

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/mercurial-finance/vault-portal/internal/logger"
)

var vaultLogger = logger.GetForComponent("vault_client")

var (
	// ProgramID is the yield vault program.
	ProgramID = solana.MustPublicKeyFromBase58("24Uqj9JCLxUeoC3hGfh5W3s9FM9uCHDS2SG3LYwBpyTi")
	// AffiliateProgramID is the partner fee-sharing program.
	AffiliateProgramID = solana.MustPublicKeyFromBase58("GacY9YuN16HNRTy7ZWwULPccwvfFSBeNLuAQP7u4WWXv")
	// BaseKey seeds the vault PDA derivation.
	BaseKey = solana.MustPublicKeyFromBase58("HWzXGcGHy4tcpYfaRDCyLNzXqBTv3E6BttpCH2vJxArv")
)

var (
	ErrNilRPCClient    = errors.New("RPC client cannot be nil")
	ErrAccountNotFound = errors.New("vault account not found")
	ErrNoAffiliate     = errors.New("vault handle has no affiliate partner")
	ErrInvalidAmount   = errors.New("amount must be positive")
)

// LiveClient is the on-chain implementation of the vault Client contract. One
// LiveClient is scoped to a single vault (one token mint).
type LiveClient struct {
	rpc *rpc.Client

	tokenMint  solana.PublicKey
	vaultPDA   solana.PublicKey
	tokenVault solana.PublicKey
	lpMint     solana.PublicKey

	partner solana.PublicKey
}

// Option customizes a LiveClient.
type Option func(*LiveClient)

// WithAffiliate scopes the handle to a partner for affiliate fee accounting.
func WithAffiliate(partner solana.PublicKey) Option {
	return func(c *LiveClient) {
		c.partner = partner
	}
}

// NewLiveClient derives the vault addresses for the token mint and verifies
// the vault account exists on chain.
func NewLiveClient(ctx context.Context, rpcClient *rpc.Client, tokenMint solana.PublicKey, opts ...Option) (*LiveClient, error) {
	if rpcClient == nil {
		return nil, ErrNilRPCClient
	}

	vaultPDA, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("vault"), tokenMint.Bytes(), BaseKey.Bytes()},
		ProgramID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault address: %w", err)
	}

	client := &LiveClient{
		rpc:       rpcClient,
		tokenMint: tokenMint,
		vaultPDA:  vaultPDA,
	}
	for _, opt := range opts {
		opt(client)
	}

	state, err := client.fetchState(ctx)
	if err != nil {
		return nil, err
	}
	client.tokenVault = state.TokenVault
	client.lpMint = state.LpMint

	vaultLogger.Debug().
		Str("tokenMint", tokenMint.String()).
		Str("vault", vaultPDA.String()).
		Str("lpMint", state.LpMint.String()).
		Msg("Vault client initialized")
	return client, nil
}

// TokenMint returns the vault's underlying token mint.
func (c *LiveClient) TokenMint() solana.PublicKey {
	return c.tokenMint
}

// Vault returns the vault account address.
func (c *LiveClient) Vault() solana.PublicKey {
	return c.vaultPDA
}

// fetchState reads and decodes the vault state account.
func (c *LiveClient) fetchState(ctx context.Context) (*State, error) {
	out, err := c.rpc.GetAccountInfo(ctx, c.vaultPDA)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, c.vaultPDA)
		}
		return nil, fmt.Errorf("failed to fetch vault account: %w", err)
	}
	if out.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, c.vaultPDA)
	}

	return decodeState(out.Value.Data.GetBinary())
}

// GetWithdrawableAmount returns the vault's unlocked reserve at the current
// time.
func (c *LiveClient) GetWithdrawableAmount(ctx context.Context) (uint64, error) {
	state, err := c.fetchState(ctx)
	if err != nil {
		return 0, err
	}
	return state.WithdrawableAmount(time.Now()), nil
}

// LpSupply returns the outstanding LP share supply.
func (c *LiveClient) LpSupply(ctx context.Context) (uint64, error) {
	out, err := c.rpc.GetTokenSupply(ctx, c.lpMint, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch LP supply: %w", err)
	}
	if out.Value == nil {
		return 0, nil
	}

	supply, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid LP supply %q: %w", out.Value.Amount, err)
	}
	return supply, nil
}

// GetUserBalance returns the owner's LP share balance. A missing LP token
// account is a zero balance.
func (c *LiveClient) GetUserBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	userLP, _, err := solana.FindAssociatedTokenAddress(owner, c.lpMint)
	if err != nil {
		return 0, fmt.Errorf("failed to derive LP token address: %w", err)
	}

	out, err := c.rpc.GetTokenAccountBalance(ctx, userLP, rpc.CommitmentConfirmed)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to fetch LP balance: %w", err)
	}
	if out.Value == nil {
		return 0, nil
	}

	balance, err := strconv.ParseUint(out.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid LP balance %q: %w", out.Value.Amount, err)
	}
	return balance, nil
}

// BuildDepositTransaction builds an unsigned deposit of `amount` base units,
// owner paying the fee.
func (c *LiveClient) BuildDepositTransaction(ctx context.Context, owner solana.PublicKey, amount uint64) (*solana.Transaction, error) {
	return c.buildUserTransaction(ctx, owner, amount, "deposit")
}

// BuildWithdrawTransaction builds an unsigned withdraw burning `amount` LP
// base units, owner paying the fee.
func (c *LiveClient) BuildWithdrawTransaction(ctx context.Context, owner solana.PublicKey, amount uint64) (*solana.Transaction, error) {
	return c.buildUserTransaction(ctx, owner, amount, "withdraw")
}

// buildUserTransaction assembles the deposit/withdraw instruction. Both share
// the same account list; the instruction name selects the discriminator and
// the second argument is the minimum-out bound, left at 0 for the demo flow.
func (c *LiveClient) buildUserTransaction(ctx context.Context, owner solana.PublicKey, amount uint64, instruction string) (*solana.Transaction, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	userToken, _, err := solana.FindAssociatedTokenAddress(owner, c.tokenMint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive user token address: %w", err)
	}
	userLP, _, err := solana.FindAssociatedTokenAddress(owner, c.lpMint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive user LP address: %w", err)
	}

	var instructions []solana.Instruction

	// First-time depositors have no LP token account yet.
	exists, err := c.accountExists(ctx, userLP)
	if err != nil {
		return nil, err
	}
	if !exists {
		createLP := associatedtokenaccount.NewCreateInstruction(owner, owner, c.lpMint).Build()
		instructions = append(instructions, createLP)
	}

	data, err := encodeInstructionData(instruction, amount, 0)
	if err != nil {
		return nil, err
	}

	accounts := solana.AccountMetaSlice{
		solana.NewAccountMeta(c.vaultPDA, true, false),
		solana.NewAccountMeta(c.tokenVault, true, false),
		solana.NewAccountMeta(c.lpMint, true, false),
		solana.NewAccountMeta(userToken, true, false),
		solana.NewAccountMeta(userLP, true, false),
		solana.NewAccountMeta(owner, false, true),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
	}
	instructions = append(instructions, solana.NewInstruction(ProgramID, accounts, data))

	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recent blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(owner),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s transaction: %w", instruction, err)
	}
	return tx, nil
}

// GetAffiliateInfo fetches and decodes the partner account for an
// affiliate-scoped handle.
func (c *LiveClient) GetAffiliateInfo(ctx context.Context) (*AffiliateInfo, error) {
	if c.partner.IsZero() {
		return nil, ErrNoAffiliate
	}

	partnerPDA, _, err := solana.FindProgramAddress(
		[][]byte{c.vaultPDA.Bytes(), c.partner.Bytes()},
		AffiliateProgramID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to derive partner address: %w", err)
	}

	out, err := c.rpc.GetAccountInfo(ctx, partnerPDA)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: partner %s", ErrAccountNotFound, partnerPDA)
		}
		return nil, fmt.Errorf("failed to fetch partner account: %w", err)
	}
	if out.Value == nil {
		return nil, fmt.Errorf("%w: partner %s", ErrAccountNotFound, partnerPDA)
	}

	return decodeAffiliateInfo(out.Value.Data.GetBinary())
}

func (c *LiveClient) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	out, err := c.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check account %s: %w", account, err)
	}
	return out.Value != nil, nil
}

// anchorDiscriminator returns the 8-byte anchor instruction discriminator.
func anchorDiscriminator(name string) []byte {
	hash := sha256.Sum256([]byte("global:" + name))
	return hash[:8]
}

// encodeInstructionData encodes discriminator + amount + minimum-out, both
// u64 little-endian.
func encodeInstructionData(name string, amount, minimumOut uint64) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)

	if err := enc.WriteBytes(anchorDiscriminator(name), false); err != nil {
		return nil, fmt.Errorf("failed to encode instruction data: %w", err)
	}
	if err := enc.WriteUint64(amount, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to encode instruction data: %w", err)
	}
	if err := enc.WriteUint64(minimumOut, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("failed to encode instruction data: %w", err)
	}
	return buf.Bytes(), nil
}

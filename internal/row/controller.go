package row

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/mercurial-finance/vault-portal/internal/chain"
	"github.com/mercurial-finance/vault-portal/internal/display"
	"github.com/mercurial-finance/vault-portal/internal/logger"
	"github.com/mercurial-finance/vault-portal/internal/notify"
	"github.com/mercurial-finance/vault-portal/internal/types"
	"github.com/mercurial-finance/vault-portal/internal/vault"
	"github.com/mercurial-finance/vault-portal/internal/wallet"
)

// solGasReserve is kept out of a max native-asset deposit so the transaction
// can pay its own fee.
const solGasReserve = 0.005

var (
	ErrInvalidInput       = errors.New("amount must be a positive number")
	ErrWalletNotConnected = errors.New("wallet is not connected")
	ErrActionInFlight     = errors.New("another deposit or withdraw is in flight")
)

// StateSource provides the keeper's per-vault state snapshot.
type StateSource interface {
	VaultState(ctx context.Context, tokenAddress string) (*types.VaultStateAPI, error)
}

// Config holds the collaborators for one vault row.
type Config struct {
	Vault    vault.Client
	Keeper   StateSource
	Balances chain.BalanceFetcher
	Chain    chain.Confirmer
	Signer   wallet.Signer // nil when no wallet is connected
	Notifier notify.Notifier
	Token    types.TokenInfo
	Info     types.VaultInfo
}

// Controller drives one vault row: it fetches vault and user state from the
// external collaborators, holds the row's transient interaction state, and
// runs the deposit/withdraw sequences. Each controller owns its state
// exclusively; nothing is shared across rows.
type Controller struct {
	log      zerolog.Logger
	vault    vault.Client
	keeper   StateSource
	balances chain.BalanceFetcher
	chain    chain.Confirmer
	signer   wallet.Signer
	notifier notify.Notifier
	token    types.TokenInfo

	mu         sync.Mutex
	generation uint64
	closed     bool

	loading       bool
	expanded      bool
	depositInput  string
	withdrawInput string

	info         types.VaultInfo
	withdrawable uint64
	lpSupply     uint64
	vaultReserve uint64
	userLP       uint64
	userToken    uint64
}

// Snapshot is a point-in-time copy of the row for rendering.
type Snapshot struct {
	Token         types.TokenInfo `json:"token"`
	Info          types.VaultInfo `json:"info"`
	Display       display.State   `json:"display"`
	Loading       bool            `json:"loading"`
	Expanded      bool            `json:"expanded"`
	DepositInput  string          `json:"deposit_input"`
	WithdrawInput string          `json:"withdraw_input"`
}

// NewController creates a row controller. All collaborators except Signer are
// required.
func NewController(cfg Config) (*Controller, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("row controller configuration validation failed: %w", err)
	}

	return &Controller{
		log:      logger.GetForComponent("vault_row").With().Str("token", cfg.Token.Symbol).Logger(),
		vault:    cfg.Vault,
		keeper:   cfg.Keeper,
		balances: cfg.Balances,
		chain:    cfg.Chain,
		signer:   cfg.Signer,
		notifier: cfg.Notifier,
		token:    cfg.Token,
		info:     cfg.Info,
	}, nil
}

func validateConfig(cfg Config) error {
	if cfg.Vault == nil {
		return errors.New("vault client cannot be nil")
	}
	if cfg.Keeper == nil {
		return errors.New("keeper source cannot be nil")
	}
	if cfg.Balances == nil {
		return errors.New("balance fetcher cannot be nil")
	}
	if cfg.Chain == nil {
		return errors.New("chain confirmer cannot be nil")
	}
	if cfg.Notifier == nil {
		return errors.New("notifier cannot be nil")
	}
	if cfg.Token.Address == "" {
		return errors.New("token address cannot be empty")
	}
	return nil
}

// Token returns the row's token descriptor.
func (c *Controller) Token() types.TokenInfo {
	return c.token
}

// Connected reports whether a wallet is connected to this row.
func (c *Controller) Connected() bool {
	return c.signer != nil
}

// RefreshVaultState queries the vault client and the keeper for current vault
// state. Failures are logged and leave the last-known values in place; the
// row never crashes on a refresh error.
func (c *Controller) RefreshVaultState(ctx context.Context) {
	gen := c.currentGeneration()

	withdrawable, wErr := c.vault.GetWithdrawableAmount(ctx)
	lpSupply, sErr := c.vault.LpSupply(ctx)
	state, kErr := c.keeper.VaultState(ctx, c.token.Address)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.generation {
		return
	}

	if wErr != nil {
		c.log.Error().Err(wErr).Msg("Failed to fetch withdrawable amount")
	} else {
		c.withdrawable = withdrawable
	}
	if sErr != nil {
		c.log.Error().Err(sErr).Msg("Failed to fetch LP supply")
	} else {
		c.lpSupply = lpSupply
	}
	if kErr != nil {
		c.log.Error().Err(kErr).Msg("Failed to fetch vault state from keeper")
	} else {
		c.vaultReserve = state.TokenAmount
	}
}

// SetVaultInfo replaces the keeper summary backing the row's display.
func (c *Controller) SetVaultInfo(info types.VaultInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info = info
}

// RefreshUserBalances queries the user's LP balance and underlying-token
// balance. Balances reset to zero when no wallet is connected. Failures are
// logged and keep the last-known values.
func (c *Controller) RefreshUserBalances(ctx context.Context) {
	gen := c.currentGeneration()

	if c.signer == nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed || gen != c.generation {
			return
		}
		c.userLP = 0
		c.userToken = 0
		return
	}

	owner := c.signer.PublicKey()
	userLP, lpErr := c.vault.GetUserBalance(ctx, owner)
	userToken, tErr := c.balances.Balance(ctx, owner)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.generation {
		return
	}

	if lpErr != nil {
		c.log.Error().Err(lpErr).Msg("Failed to fetch user LP balance")
	} else {
		c.userLP = userLP
	}
	if tErr != nil {
		c.log.Error().Err(tErr).Msg("Failed to fetch user token balance")
	} else {
		c.userToken = userToken
	}
}

// Deposit converts amountText to base units and runs the deposit sequence:
// build, sign and send, notify submission, await confirmation. Whatever the
// outcome, the row leaves the loading state, the deposit input is cleared and
// user balances are refreshed.
func (c *Controller) Deposit(ctx context.Context, amountText string) error {
	amount, ok := parseAmount(amountText)
	if !ok {
		c.log.Debug().Str("input", amountText).Msg("Ignoring deposit with non-positive amount")
		return ErrInvalidInput
	}
	if c.signer == nil {
		c.notifier.Notify(notify.Notification{
			Kind:    notify.KindError,
			Message: "Connect a wallet to deposit",
		})
		return ErrWalletNotConnected
	}
	if !c.beginAction() {
		return ErrActionInFlight
	}
	gen := c.currentGeneration()
	defer c.finishAction(ctx, gen, &c.depositInput)

	err := c.submit(ctx, "deposit", display.ToBaseUnits(amount, c.token.Decimals), c.vault.BuildDepositTransaction)
	if err != nil {
		c.notifier.Notify(notify.Notification{
			Kind:        notify.KindError,
			Message:     "Failed to deposit",
			Description: err.Error(),
		})
		return err
	}
	return nil
}

// Withdraw is symmetric to Deposit, burning LP shares via the withdraw
// transaction builder.
func (c *Controller) Withdraw(ctx context.Context, amountText string) error {
	amount, ok := parseAmount(amountText)
	if !ok {
		c.log.Debug().Str("input", amountText).Msg("Ignoring withdraw with non-positive amount")
		return ErrInvalidInput
	}
	if c.signer == nil {
		c.notifier.Notify(notify.Notification{
			Kind:    notify.KindError,
			Message: "Connect a wallet to withdraw",
		})
		return ErrWalletNotConnected
	}
	if !c.beginAction() {
		return ErrActionInFlight
	}
	gen := c.currentGeneration()
	defer c.finishAction(ctx, gen, &c.withdrawInput)

	err := c.submit(ctx, "withdraw", display.ToBaseUnits(amount, c.token.Decimals), c.vault.BuildWithdrawTransaction)
	if err != nil {
		c.notifier.Notify(notify.Notification{
			Kind:        notify.KindError,
			Message:     "Failed to withdraw",
			Description: err.Error(),
		})
		return err
	}
	return nil
}

type txBuilder func(ctx context.Context, owner solana.PublicKey, amount uint64) (*solana.Transaction, error)

// submit runs the shared transaction sequence. No retries: a failure is
// reported once and left for the user to reinitiate.
func (c *Controller) submit(ctx context.Context, action string, baseUnits uint64, build txBuilder) error {
	if baseUnits == 0 {
		return ErrInvalidInput
	}
	owner := c.signer.PublicKey()

	tx, err := build(ctx, owner, baseUnits)
	if err != nil {
		return fmt.Errorf("failed to build %s transaction: %w", action, err)
	}

	sig, err := c.signer.SignAndSend(ctx, tx)
	if err != nil {
		return fmt.Errorf("failed to send %s transaction: %w", action, err)
	}

	c.notifier.Notify(notify.Notification{
		Kind:    notify.KindInfo,
		Message: "Submitting transaction...",
		TxID:    sig.String(),
	})

	if err := c.chain.ConfirmTransaction(ctx, sig); err != nil {
		return fmt.Errorf("%s transaction not confirmed: %w", action, err)
	}

	c.notifier.Notify(notify.Notification{
		Kind:    notify.KindInfo,
		Message: "Successfully " + pastTense(action),
		TxID:    sig.String(),
	})
	return nil
}

func pastTense(action string) string {
	if action == "deposit" {
		return "deposited"
	}
	return "withdrawn"
}

// beginAction transitions into the loading state. It reports false when a
// deposit or withdraw is already in flight: overlapping submissions on one
// row are rejected, never queued.
func (c *Controller) beginAction() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading || c.closed {
		return false
	}
	c.loading = true
	return true
}

// finishAction leaves the loading state, clears the acted-on input and
// refreshes user balances, regardless of the action's outcome. A stale
// generation means the row was torn down mid-flight; the late result is
// discarded.
func (c *Controller) finishAction(ctx context.Context, gen uint64, input *string) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.loading = false
	*input = ""
	c.mu.Unlock()

	c.RefreshUserBalances(ctx)
}

// SetMaxDeposit sets the deposit input to the full user token balance. For
// the native gas-paying asset a fixed margin is reserved so the transaction
// can pay its fee.
func (c *Controller) SetMaxDeposit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	max := c.displayStateLocked().UserTokenBalance
	if c.token.Address == solana.SolMint.String() {
		max -= solGasReserve
		if max < 0 {
			max = 0
		}
	}
	c.depositInput = formatAmount(max)
}

// SetMaxWithdraw sets the withdraw input to the full user LP balance.
func (c *Controller) SetMaxWithdraw() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.withdrawInput = formatAmount(c.displayStateLocked().UserLPBalance)
}

// SetDepositInput records the user's deposit amount text.
func (c *Controller) SetDepositInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.depositInput = text
}

// SetWithdrawInput records the user's withdraw amount text.
func (c *Controller) SetWithdrawInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.withdrawInput = text
}

// ToggleExpanded flips the expanded axis. It is independent of loading and
// has no effect on any other transition.
func (c *Controller) ToggleExpanded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expanded = !c.expanded
	return c.expanded
}

// DisplayState derives the current display metrics.
func (c *Controller) DisplayState() display.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayStateLocked()
}

// Snapshot copies the row state for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Token:         c.token,
		Info:          c.info,
		Display:       c.displayStateLocked(),
		Loading:       c.loading,
		Expanded:      c.expanded,
		DepositInput:  c.depositInput,
		WithdrawInput: c.withdrawInput,
	}
}

// Loading reports whether a deposit or withdraw is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Close tears the row down. In-flight operations finish against a stale
// generation and their results are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.generation++
}

func (c *Controller) displayStateLocked() display.State {
	return display.Derive(display.DeriveInput{
		Info:         c.info,
		Withdrawable: c.withdrawable,
		LPSupply:     c.lpSupply,
		VaultReserve: c.vaultReserve,
		UserLP:       c.userLP,
		UserToken:    c.userToken,
		Decimals:     c.token.Decimals,
		Connected:    c.signer != nil,
	})
}

func (c *Controller) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// parseAmount parses the user's amount text; ok is false for unparsable or
// non-positive values.
func parseAmount(text string) (float64, bool) {
	value, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0, false
	}
	return value, true
}

// formatAmount renders an amount the way the input field expects it.
func formatAmount(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

package vault

import (
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// maxStrategies is the number of strategy slots in the vault state account.
const maxStrategies = 30

// lockedProfitDegradationDenominator scales the locked profit degradation
// rate; a full period releases the whole locked profit.
const lockedProfitDegradationDenominator = 1_000_000_000_000

var (
	ErrAccountTooShort    = errors.New("account data too short")
	ErrStateDecodeFailed  = errors.New("vault state decode failed")
	ErrInvalidVaultLayout = errors.New("vault state layout is invalid")
)

// VaultBumps holds the PDA bump seeds stored in the vault account.
type VaultBumps struct {
	VaultBump      uint8
	TokenVaultBump uint8
}

// LockedProfitTracker drips realized strategy profit into the withdrawable
// amount over time so the virtual price cannot be sandwiched.
type LockedProfitTracker struct {
	LastUpdatedLockedProfit uint64
	LastReport              uint64
	LockedProfitDegradation uint64
}

// State is the on-chain vault account, borsh-encoded behind the 8-byte anchor
// discriminator.
type State struct {
	Enabled             uint8
	Bumps               VaultBumps
	TotalAmount         uint64
	TokenVault          solana.PublicKey
	FeeVault            solana.PublicKey
	TokenMint           solana.PublicKey
	LpMint              solana.PublicKey
	Strategies          [maxStrategies]solana.PublicKey
	Base                solana.PublicKey
	Admin               solana.PublicKey
	Operator            solana.PublicKey
	LockedProfitTracker LockedProfitTracker
}

// decodeState decodes a vault state account, skipping the anchor
// discriminator.
func decodeState(data []byte) (*State, error) {
	if len(data) <= 8 {
		return nil, ErrAccountTooShort
	}

	var state State
	if err := bin.NewBinDecoder(data[8:]).Decode(&state); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStateDecodeFailed, err)
	}

	if state.TokenMint.IsZero() || state.LpMint.IsZero() {
		return nil, ErrInvalidVaultLayout
	}
	return &state, nil
}

// calculateLockedProfit returns the still-locked portion of the last reported
// profit at the given time. Profit unlocks linearly at the degradation rate.
func (s *State) calculateLockedProfit(now time.Time) uint64 {
	tracker := s.LockedProfitTracker

	ts := uint64(now.Unix())
	if ts <= tracker.LastReport {
		return tracker.LastUpdatedLockedProfit
	}
	duration := ts - tracker.LastReport

	// duration * degradation can exceed uint64 for stale trackers; carry the
	// multiplication in arbitrary precision.
	lockedFundRatio := sdkmath.NewIntFromUint64(duration).
		Mul(sdkmath.NewIntFromUint64(tracker.LockedProfitDegradation))
	denominator := sdkmath.NewIntFromUint64(lockedProfitDegradationDenominator)

	if lockedFundRatio.GTE(denominator) {
		return 0
	}

	lockedProfit := sdkmath.NewIntFromUint64(tracker.LastUpdatedLockedProfit).
		Mul(denominator.Sub(lockedFundRatio)).
		Quo(denominator)
	return lockedProfit.Uint64()
}

// WithdrawableAmount is the vault's total amount minus the profit still
// locked at the given time, never negative.
func (s *State) WithdrawableAmount(now time.Time) uint64 {
	locked := s.calculateLockedProfit(now)
	if locked >= s.TotalAmount {
		return 0
	}
	return s.TotalAmount - locked
}

// AffiliateInfo is the decoded partner account of the affiliate program.
type AffiliateInfo struct {
	PartnerToken  solana.PublicKey `json:"partner_token"`
	Vault         solana.PublicKey `json:"vault"`
	TotalFee      uint64           `json:"total_fee"`
	FeeRatio      uint64           `json:"fee_ratio"`
	CumulativeFee uint64           `json:"cumulative_fee"`
}

// decodeAffiliateInfo decodes a partner account, skipping the anchor
// discriminator.
func decodeAffiliateInfo(data []byte) (*AffiliateInfo, error) {
	if len(data) <= 8 {
		return nil, ErrAccountTooShort
	}

	var info AffiliateInfo
	if err := bin.NewBinDecoder(data[8:]).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStateDecodeFailed, err)
	}
	return &info, nil
}

package display

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/mercurial-finance/vault-portal/internal/types"
)

// ReserveEntryName labels the synthetic allocation entry for liquidity that
// stays in the vault's own token account.
const ReserveEntryName = "Vault Reserves"

// AllocationEntry is one row of the strategy allocation view.
type AllocationEntry struct {
	Name              string  `json:"name"`
	Liquidity         uint64  `json:"liquidity"`
	AllocationPercent float64 `json:"allocation_percent"`
	MaxAllocation     uint64  `json:"max_allocation"`
}

// State holds the derived metrics shown for one vault row. It is recomputed
// from scratch on every input change and never persisted.
type State struct {
	VirtualPrice     float64           `json:"virtual_price"`
	TVL              float64           `json:"tvl"`
	UserTVL          float64           `json:"user_tvl"`
	UserLPBalance    float64           `json:"user_lp_balance"`
	UserTokenBalance float64           `json:"user_token_balance"`
	Allocations      []AllocationEntry `json:"allocations"`
}

// DeriveInput bundles the raw quantities the derivation needs. All amounts are
// in base units except USDRate.
type DeriveInput struct {
	Info         types.VaultInfo
	Withdrawable uint64
	LPSupply     uint64
	VaultReserve uint64
	UserLP       uint64
	UserToken    uint64
	Decimals     int
	Connected    bool
}

// Derive computes the display state for one vault row.
//
// The virtual price is the withdrawable reserve per outstanding LP share and is
// defined as 0 when no shares exist. User balances are forced to zero when no
// wallet is connected so a disconnected wallet never shows stale balances.
func Derive(in DeriveInput) State {
	var virtualPrice float64
	if in.LPSupply > 0 {
		virtualPrice = float64(in.Withdrawable) / float64(in.LPSupply)
	}
	if math.IsNaN(virtualPrice) || math.IsInf(virtualPrice, 0) || virtualPrice < 0 {
		virtualPrice = 0
	}

	userLP := in.UserLP
	userToken := in.UserToken
	if !in.Connected {
		userLP = 0
		userToken = 0
	}

	userLPBalance := FromBaseUnits(userLP, in.Decimals)

	return State{
		VirtualPrice:     virtualPrice,
		TVL:              in.Info.USDRate * FromBaseUnits(in.Info.TokenAmount, in.Decimals),
		UserTVL:          userLPBalance * virtualPrice,
		UserLPBalance:    userLPBalance,
		UserTokenBalance: FromBaseUnits(userToken, in.Decimals),
		Allocations:      deriveAllocations(in.Info.Strategies, in.VaultReserve),
	}
}

// deriveAllocations builds the per-strategy allocation view, appending a
// synthetic entry for the vault's own reserve. Percentages are rounded to the
// nearest whole percent; entries are ordered by descending liquidity with the
// original order preserved on ties.
func deriveAllocations(strategies []types.StrategyInfo, vaultReserve uint64) []AllocationEntry {
	entries := make([]AllocationEntry, 0, len(strategies)+1)
	for _, s := range strategies {
		entries = append(entries, AllocationEntry{
			Name:          s.StrategyName,
			Liquidity:     s.Liquidity,
			MaxAllocation: s.MaxAllocation,
		})
	}
	entries = append(entries, AllocationEntry{
		Name:      ReserveEntryName,
		Liquidity: vaultReserve,
	})

	totalAllocation := lo.SumBy(entries, func(e AllocationEntry) uint64 { return e.Liquidity })
	if totalAllocation > 0 {
		for i := range entries {
			ratio := float64(entries[i].Liquidity) / float64(totalAllocation)
			entries[i].AllocationPercent = math.Round(ratio * 100)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Liquidity > entries[j].Liquidity
	})

	return entries
}

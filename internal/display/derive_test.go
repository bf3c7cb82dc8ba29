package display

import (
	"math"
	"testing"

	"github.com/mercurial-finance/vault-portal/internal/types"
)

func TestDeriveVirtualPrice(t *testing.T) {
	tests := []struct {
		name         string
		withdrawable uint64
		lpSupply     uint64
		want         float64
	}{
		{"normal", 1_100_000_000, 1_000_000_000, 1.1},
		{"zero supply", 500_000_000, 0, 0},
		{"zero supply and zero withdrawable", 0, 0, 0},
		{"price below one", 900, 1000, 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := Derive(DeriveInput{
				Withdrawable: tt.withdrawable,
				LPSupply:     tt.lpSupply,
				Decimals:     9,
			})
			if math.Abs(state.VirtualPrice-tt.want) > 1e-12 {
				t.Errorf("VirtualPrice = %v, want %v", state.VirtualPrice, tt.want)
			}
			if state.VirtualPrice < 0 {
				t.Errorf("VirtualPrice = %v, must never be negative", state.VirtualPrice)
			}
			if math.IsNaN(state.VirtualPrice) || math.IsInf(state.VirtualPrice, 0) {
				t.Errorf("VirtualPrice = %v, must be finite", state.VirtualPrice)
			}
		})
	}
}

func TestDeriveUserBalances(t *testing.T) {
	in := DeriveInput{
		Info:         types.VaultInfo{USDRate: 1},
		Withdrawable: 2_000_000_000,
		LPSupply:     1_000_000_000,
		UserLP:       500_000_000,
		UserToken:    250_000_000,
		Decimals:     9,
		Connected:    true,
	}

	state := Derive(in)
	if math.Abs(state.UserLPBalance-0.5) > 1e-12 {
		t.Errorf("UserLPBalance = %v, want 0.5", state.UserLPBalance)
	}
	if math.Abs(state.UserTokenBalance-0.25) > 1e-12 {
		t.Errorf("UserTokenBalance = %v, want 0.25", state.UserTokenBalance)
	}
	// 0.5 LP at virtual price 2.0
	if math.Abs(state.UserTVL-1.0) > 1e-12 {
		t.Errorf("UserTVL = %v, want 1.0", state.UserTVL)
	}
}

// A disconnected wallet must never display stale balances, whatever was fetched.
func TestDeriveDisconnectedWalletZeroesBalances(t *testing.T) {
	in := DeriveInput{
		Info:         types.VaultInfo{USDRate: 1, TokenAmount: 1_000_000_000},
		Withdrawable: 2_000_000_000,
		LPSupply:     1_000_000_000,
		UserLP:       500_000_000,
		UserToken:    250_000_000,
		Decimals:     9,
		Connected:    false,
	}

	state := Derive(in)
	if state.UserLPBalance != 0 || state.UserTVL != 0 || state.UserTokenBalance != 0 {
		t.Errorf("disconnected wallet: balances = (%v, %v, %v), want all zero",
			state.UserLPBalance, state.UserTVL, state.UserTokenBalance)
	}
	if state.TVL == 0 {
		t.Error("TVL must not depend on wallet connection")
	}
}

func TestDeriveTVL(t *testing.T) {
	state := Derive(DeriveInput{
		Info:     types.VaultInfo{USDRate: 1.0, TokenAmount: 1_000_000_000},
		Decimals: 9,
	})
	if math.Abs(state.TVL-1.0) > 1e-12 {
		t.Errorf("TVL = %v, want 1.0", state.TVL)
	}
}

func TestDeriveAllocations(t *testing.T) {
	info := types.VaultInfo{
		TokenAddress: "SOL",
		TokenAmount:  1_000_000_000,
		USDRate:      1.0,
		Strategies: []types.StrategyInfo{
			{StrategyName: "S1", Liquidity: 400_000_000, MaxAllocation: 500_000_000},
		},
	}

	state := Derive(DeriveInput{
		Info:         info,
		VaultReserve: 600_000_000,
		Decimals:     9,
	})

	if len(state.Allocations) != 2 {
		t.Fatalf("len(Allocations) = %d, want 2", len(state.Allocations))
	}

	// Reserve holds more liquidity than S1 and must sort first.
	reserve := state.Allocations[0]
	s1 := state.Allocations[1]

	if reserve.Name != ReserveEntryName {
		t.Errorf("Allocations[0].Name = %q, want %q", reserve.Name, ReserveEntryName)
	}
	if reserve.AllocationPercent != 60 {
		t.Errorf("reserve allocation = %v, want 60", reserve.AllocationPercent)
	}
	if reserve.MaxAllocation != 0 {
		t.Errorf("reserve max allocation = %d, want 0", reserve.MaxAllocation)
	}
	if s1.Name != "S1" {
		t.Errorf("Allocations[1].Name = %q, want S1", s1.Name)
	}
	if s1.AllocationPercent != 40 {
		t.Errorf("S1 allocation = %v, want 40", s1.AllocationPercent)
	}
	if s1.MaxAllocation != 500_000_000 {
		t.Errorf("S1 max allocation = %d, want 500000000", s1.MaxAllocation)
	}
}

func TestDeriveAllocationsZeroTotal(t *testing.T) {
	state := Derive(DeriveInput{
		Info: types.VaultInfo{
			Strategies: []types.StrategyInfo{{StrategyName: "S1"}},
		},
	})

	for _, e := range state.Allocations {
		if e.AllocationPercent != 0 {
			t.Errorf("%s allocation = %v, want 0 when nothing is deployed", e.Name, e.AllocationPercent)
		}
	}
}

func TestDeriveAllocationsSumNear100(t *testing.T) {
	info := types.VaultInfo{
		Strategies: []types.StrategyInfo{
			{StrategyName: "A", Liquidity: 333},
			{StrategyName: "B", Liquidity: 333},
			{StrategyName: "C", Liquidity: 333},
		},
	}

	state := Derive(DeriveInput{Info: info, VaultReserve: 1})

	var sum float64
	for _, e := range state.Allocations {
		if e.AllocationPercent < 0 || e.AllocationPercent > 100 {
			t.Errorf("%s allocation = %v, out of [0,100]", e.Name, e.AllocationPercent)
		}
		sum += e.AllocationPercent
	}
	tolerance := float64(len(state.Allocations))
	if math.Abs(sum-100) > tolerance {
		t.Errorf("allocation sum = %v, want 100 within ±%v", sum, tolerance)
	}
}

// Ties keep keeper order: strategies first in keeper order, reserve appended last.
func TestDeriveAllocationsStableTies(t *testing.T) {
	info := types.VaultInfo{
		Strategies: []types.StrategyInfo{
			{StrategyName: "first", Liquidity: 100},
			{StrategyName: "second", Liquidity: 100},
		},
	}

	state := Derive(DeriveInput{Info: info, VaultReserve: 100})

	want := []string{"first", "second", ReserveEntryName}
	for i, name := range want {
		if state.Allocations[i].Name != name {
			t.Errorf("Allocations[%d].Name = %q, want %q", i, state.Allocations[i].Name, name)
		}
	}
}

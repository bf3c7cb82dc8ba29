/*

Shared domain types for the vault portal. VaultInfo and VaultStateAPI mirror the
payloads published by the keeper service; TokenInfo mirrors the Solana token list
entry shape.

*/

package types

// StrategyType identifies the lending platform a strategy routes liquidity to.
type StrategyType string

const (
	StrategyPortFinanceWithoutLM StrategyType = "PortFinanceWithoutLM"
	StrategyPortFinanceWithLM    StrategyType = "PortFinanceWithLM"
	StrategySolendWithoutLM      StrategyType = "SolendWithoutLM"
	StrategySolendWithLM         StrategyType = "SolendWithLM"
	StrategyApricotWithoutLM     StrategyType = "ApricotWithoutLM"
	StrategyFrancium             StrategyType = "Francium"
	StrategyMango                StrategyType = "Mango"
	StrategyVault                StrategyType = "Vault"
)

// TokenInfo describes a token as resolved from the token registry.
type TokenInfo struct {
	ChainID  int    `json:"chainId" yaml:"chainId"`
	Address  string `json:"address" yaml:"address"`
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Decimals int    `json:"decimals" yaml:"decimals"`
	LogoURI  string `json:"logoURI" yaml:"logoURI"`
}

// StrategyInfo is the per-strategy slice of a keeper vault snapshot.
type StrategyInfo struct {
	Pubkey        string       `json:"pubkey"`
	Reserve       string       `json:"reserve"`
	StrategyType  StrategyType `json:"strategy_type"`
	StrategyName  string       `json:"strategy_name"`
	Liquidity     uint64       `json:"liquidity"`
	Reward        uint64       `json:"reward"`
	APY           float64      `json:"apy"`
	MaxAllocation uint64       `json:"max_allocation"`
}

// VaultInfo is one entry of the keeper's /vault_info response.
type VaultInfo struct {
	TotalAmount           uint64         `json:"total_amount"`
	TotalAmountWithProfit uint64         `json:"total_amount_with_profit"`
	IsMonitoring          bool           `json:"is_monitoring"`
	TokenAddress          string         `json:"token_address"`
	TokenAmount           uint64         `json:"token_amount"`
	EarnedAmount          uint64         `json:"earned_amount"`
	VirtualPrice          string         `json:"virtual_price"`
	ClosestAPY            float64        `json:"closest_apy"`
	AverageAPY            float64        `json:"average_apy"`
	LongAPY               float64        `json:"long_apy"`
	USDRate               float64        `json:"usd_rate"`
	Strategies            []StrategyInfo `json:"strategies"`
}

// VaultStateAPI is the keeper's /vault_state/{token} response.
type VaultStateAPI struct {
	Enable      bool           `json:"enable"`
	TokenAmount uint64         `json:"token_amount"`
	TotalAmount uint64         `json:"total_amount"`
	LPSupply    uint64         `json:"lp_supply"`
	Strategies  []StrategyInfo `json:"strategies"`
}

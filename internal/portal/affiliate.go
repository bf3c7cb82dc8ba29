package portal

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/mercurial-finance/vault-portal/internal/vault"
)

// AffiliateSummary is the affiliate view payload: the partner account state
// for the partner's SOL vault.
type AffiliateSummary struct {
	AffiliateID  string               `json:"affiliate_id"`
	TokenAddress string               `json:"token_address"`
	Info         *vault.AffiliateInfo `json:"info"`
}

// Affiliate returns the partner fee accounting for the configured affiliate
// ID. The partner currently only supports the SOL vault, so the handle is
// always scoped to the SOL mint.
func (p *Portal) Affiliate(ctx context.Context) (*AffiliateSummary, error) {
	if p.affiliateID.IsZero() {
		return nil, ErrNoAffiliateView
	}

	sol, ok := p.registry.FindBySymbol("SOL")
	if !ok {
		return nil, fmt.Errorf("%w: SOL", ErrVaultNotFound)
	}
	mint, err := solana.PublicKeyFromBase58(sol.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid SOL mint %q: %w", sol.Address, err)
	}

	client, err := vault.NewLiveClient(ctx, p.chain.RPC(), mint, vault.WithAffiliate(p.affiliateID))
	if err != nil {
		return nil, fmt.Errorf("failed to create affiliate vault client: %w", err)
	}

	info, err := client.GetAffiliateInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch affiliate info: %w", err)
	}

	return &AffiliateSummary{
		AffiliateID:  p.affiliateID.String(),
		TokenAddress: sol.Address,
		Info:         info,
	}, nil
}

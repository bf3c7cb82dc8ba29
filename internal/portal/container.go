package portal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/mercurial-finance/vault-portal/internal/chain"
	"github.com/mercurial-finance/vault-portal/internal/keeper"
	"github.com/mercurial-finance/vault-portal/internal/logger"
	"github.com/mercurial-finance/vault-portal/internal/notify"
	"github.com/mercurial-finance/vault-portal/internal/row"
	"github.com/mercurial-finance/vault-portal/internal/tokenregistry"
	"github.com/mercurial-finance/vault-portal/internal/types"
	"github.com/mercurial-finance/vault-portal/internal/vault"
	"github.com/mercurial-finance/vault-portal/internal/wallet"
)

var (
	ErrNilKeeper       = errors.New("keeper client cannot be nil")
	ErrNilRegistry     = errors.New("token registry cannot be nil")
	ErrNilChain        = errors.New("chain client cannot be nil")
	ErrNilNotifier     = errors.New("notifier cannot be nil")
	ErrVaultNotFound   = errors.New("no vault for token address")
	ErrNoAffiliateView = errors.New("no affiliate ID configured")
)

// VaultClientFactory builds a per-vault client handle. The live factory is the
// default; tests substitute their own.
type VaultClientFactory func(ctx context.Context, tokenMint solana.PublicKey) (vault.Client, error)

// Config holds the portal's collaborators.
type Config struct {
	Keeper   *keeper.Client
	Registry *tokenregistry.Registry
	Chain    *chain.Client
	Signer   wallet.Signer // nil when no wallet is connected
	Notifier notify.Notifier

	// AffiliateID enables the affiliate view when set.
	AffiliateID solana.PublicKey

	// Factory overrides vault client construction; defaults to the live
	// on-chain client.
	Factory VaultClientFactory
}

// Portal owns the set of vault rows: it loads the available vaults from the
// keeper, resolves their tokens against the registry, and keeps one row
// controller per resolvable vault.
type Portal struct {
	log      zerolog.Logger
	keeper   *keeper.Client
	registry *tokenregistry.Registry
	chain    *chain.Client
	signer   wallet.Signer
	notifier notify.Notifier
	factory  VaultClientFactory

	affiliateID solana.PublicKey

	mu   sync.RWMutex
	rows []*row.Controller
}

// New creates a portal with dependency injection.
func New(cfg Config) (*Portal, error) {
	if cfg.Keeper == nil {
		return nil, ErrNilKeeper
	}
	if cfg.Registry == nil {
		return nil, ErrNilRegistry
	}
	if cfg.Chain == nil {
		return nil, ErrNilChain
	}
	if cfg.Notifier == nil {
		return nil, ErrNilNotifier
	}

	p := &Portal{
		log:         logger.GetForComponent("portal"),
		keeper:      cfg.Keeper,
		registry:    cfg.Registry,
		chain:       cfg.Chain,
		signer:      cfg.Signer,
		notifier:    cfg.Notifier,
		factory:     cfg.Factory,
		affiliateID: cfg.AffiliateID,
	}
	if p.factory == nil {
		p.factory = func(ctx context.Context, tokenMint solana.PublicKey) (vault.Client, error) {
			return vault.NewLiveClient(ctx, p.chain.RPC(), tokenMint)
		}
	}
	return p, nil
}

// LoadVaults fetches the vault list from the keeper and builds one row per
// vault whose token resolves against the registry. Unresolvable tokens are
// dropped silently; keeper order is preserved. An unloaded registry
// suppresses the fetch entirely.
func (p *Portal) LoadVaults(ctx context.Context) error {
	if !p.registry.Ready() || p.registry.Len() == 0 {
		p.log.Debug().Msg("Token registry empty, skipping vault load")
		return nil
	}

	infos, err := p.keeper.VaultInfos(ctx)
	if err != nil {
		return fmt.Errorf("failed to load vault list: %w", err)
	}

	rows := make([]*row.Controller, 0, len(infos))
	for _, info := range infos {
		controller, err := p.buildRow(ctx, info)
		if err != nil {
			if errors.Is(err, errTokenUnresolved) {
				p.log.Debug().Str("token", info.TokenAddress).Msg("Dropping vault with unresolvable token")
			} else {
				p.log.Error().Err(err).Str("token", info.TokenAddress).Msg("Failed to build vault row")
			}
			continue
		}
		rows = append(rows, controller)
	}

	p.mu.Lock()
	old := p.rows
	p.rows = rows
	p.mu.Unlock()

	for _, r := range old {
		r.Close()
	}

	p.log.Info().
		Int("available", len(infos)).
		Int("rows", len(rows)).
		Msg("Vault rows loaded")
	return nil
}

var errTokenUnresolved = errors.New("token not in registry")

func (p *Portal) buildRow(ctx context.Context, info types.VaultInfo) (*row.Controller, error) {
	token, ok := p.registry.Resolve(info.TokenAddress)
	if !ok {
		return nil, errTokenUnresolved
	}

	mint, err := solana.PublicKeyFromBase58(info.TokenAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid token mint %q: %w", info.TokenAddress, err)
	}

	client, err := p.factory(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	return row.NewController(row.Config{
		Vault:    client,
		Keeper:   p.keeper,
		Balances: p.chain.FetcherForMint(mint),
		Chain:    p.chain,
		Signer:   p.signer,
		Notifier: p.notifier,
		Token:    token,
		Info:     info,
	})
}

// Rows returns the current row controllers in keeper order.
func (p *Portal) Rows() []*row.Controller {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*row.Controller, len(p.rows))
	copy(out, p.rows)
	return out
}

// Row returns the controller for a token address.
func (p *Portal) Row(tokenAddress string) (*row.Controller, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range p.rows {
		if r.Token().Address == tokenAddress {
			return r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrVaultNotFound, tokenAddress)
}

// Close tears down all rows.
func (p *Portal) Close() {
	p.mu.Lock()
	rows := p.rows
	p.rows = nil
	p.mu.Unlock()

	for _, r := range rows {
		r.Close()
	}
}

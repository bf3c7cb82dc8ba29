package portal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/mercurial-finance/vault-portal/internal/chain"
	"github.com/mercurial-finance/vault-portal/internal/keeper"
	"github.com/mercurial-finance/vault-portal/internal/notify"
	"github.com/mercurial-finance/vault-portal/internal/tokenregistry"
	"github.com/mercurial-finance/vault-portal/internal/types"
	"github.com/mercurial-finance/vault-portal/internal/vault"
)

const (
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	// A valid pubkey the token list does not carry.
	unlistedMint = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
)

type stubVault struct {
	mint solana.PublicKey
}

func (s *stubVault) TokenMint() solana.PublicKey { return s.mint }

func (s *stubVault) LpSupply(ctx context.Context) (uint64, error) { return 0, nil }

func (s *stubVault) GetWithdrawableAmount(ctx context.Context) (uint64, error) { return 0, nil }

func (s *stubVault) GetUserBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	return 0, nil
}

func (s *stubVault) BuildDepositTransaction(ctx context.Context, owner solana.PublicKey, amount uint64) (*solana.Transaction, error) {
	return nil, nil
}

func (s *stubVault) BuildWithdrawTransaction(ctx context.Context, owner solana.PublicKey, amount uint64) (*solana.Transaction, error) {
	return nil, nil
}

func (s *stubVault) GetAffiliateInfo(ctx context.Context) (*vault.AffiliateInfo, error) {
	return nil, vault.ErrNoAffiliate
}

func stubFactory(ctx context.Context, tokenMint solana.PublicKey) (vault.Client, error) {
	return &stubVault{mint: tokenMint}, nil
}

func keeperServer(t *testing.T, infos []types.VaultInfo) *keeper.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vault_info" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(infos)
	}))
	t.Cleanup(server.Close)

	client, err := keeper.NewClient(server.URL)
	if err != nil {
		t.Fatalf("keeper.NewClient() error = %v", err)
	}
	return client
}

func loadedRegistry(t *testing.T) *tokenregistry.Registry {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"name": "Test Token List",
			"tokens": [
				{"chainId": 101, "address": "` + solMint + `", "symbol": "SOL", "name": "Wrapped SOL", "decimals": 9},
				{"chainId": 101, "address": "` + usdcMint + `", "symbol": "USDC", "name": "USD Coin", "decimals": 6}
			]
		}`))
	}))
	t.Cleanup(server.Close)

	registry, err := tokenregistry.New(server.URL, "")
	if err != nil {
		t.Fatalf("tokenregistry.New() error = %v", err)
	}
	if err := registry.Load(context.Background()); err != nil {
		t.Fatalf("registry.Load() error = %v", err)
	}
	return registry
}

func newTestPortal(t *testing.T, infos []types.VaultInfo) *Portal {
	t.Helper()

	chainClient, err := chain.NewClient("http://localhost:1")
	if err != nil {
		t.Fatalf("chain.NewClient() error = %v", err)
	}

	p, err := New(Config{
		Keeper:   keeperServer(t, infos),
		Registry: loadedRegistry(t),
		Chain:    chainClient,
		Notifier: notify.NewHub(),
		Factory:  stubFactory,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestNewRejectsMissingCollaborators(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("New(empty) error = nil, want error")
	}
}

func TestLoadVaultsBuildsRowsInKeeperOrder(t *testing.T) {
	p := newTestPortal(t, []types.VaultInfo{
		{TokenAddress: usdcMint, TokenAmount: 5_000_000, USDRate: 1.0},
		{TokenAddress: solMint, TokenAmount: 2_000_000_000, USDRate: 40.0},
	})

	if err := p.LoadVaults(context.Background()); err != nil {
		t.Fatalf("LoadVaults() error = %v", err)
	}

	rows := p.Rows()
	if len(rows) != 2 {
		t.Fatalf("Rows() = %d rows, want 2", len(rows))
	}
	if rows[0].Token().Symbol != "USDC" || rows[1].Token().Symbol != "SOL" {
		t.Errorf("row order = %s, %s; want USDC, SOL", rows[0].Token().Symbol, rows[1].Token().Symbol)
	}
}

func TestLoadVaultsDropsUnresolvableTokens(t *testing.T) {
	p := newTestPortal(t, []types.VaultInfo{
		{TokenAddress: solMint},
		{TokenAddress: unlistedMint},
		{TokenAddress: "not-even-a-pubkey"},
	})

	if err := p.LoadVaults(context.Background()); err != nil {
		t.Fatalf("LoadVaults() error = %v", err)
	}

	rows := p.Rows()
	if len(rows) != 1 {
		t.Fatalf("Rows() = %d rows, want 1", len(rows))
	}
	if rows[0].Token().Symbol != "SOL" {
		t.Errorf("surviving row = %s, want SOL", rows[0].Token().Symbol)
	}
}

func TestLoadVaultsSkipsWhenRegistryEmpty(t *testing.T) {
	chainClient, err := chain.NewClient("http://localhost:1")
	if err != nil {
		t.Fatalf("chain.NewClient() error = %v", err)
	}
	registry, err := tokenregistry.New("http://localhost:1/list.json", "")
	if err != nil {
		t.Fatalf("tokenregistry.New() error = %v", err)
	}

	p, err := New(Config{
		Keeper:   keeperServer(t, []types.VaultInfo{{TokenAddress: solMint}}),
		Registry: registry,
		Chain:    chainClient,
		Notifier: notify.NewHub(),
		Factory:  stubFactory,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := p.LoadVaults(context.Background()); err != nil {
		t.Fatalf("LoadVaults() error = %v", err)
	}
	if len(p.Rows()) != 0 {
		t.Errorf("Rows() = %d rows, want 0 with unloaded registry", len(p.Rows()))
	}
}

func TestRowLookup(t *testing.T) {
	p := newTestPortal(t, []types.VaultInfo{{TokenAddress: solMint}})
	if err := p.LoadVaults(context.Background()); err != nil {
		t.Fatalf("LoadVaults() error = %v", err)
	}

	rc, err := p.Row(solMint)
	if err != nil {
		t.Fatalf("Row(SOL) error = %v", err)
	}
	if rc.Token().Address != solMint {
		t.Errorf("Row(SOL).Token().Address = %s", rc.Token().Address)
	}

	if _, err := p.Row(usdcMint); err == nil {
		t.Error("Row(USDC) error = nil, want ErrVaultNotFound")
	}
}

func TestAffiliateRequiresConfiguredID(t *testing.T) {
	p := newTestPortal(t, nil)
	if _, err := p.Affiliate(context.Background()); err != ErrNoAffiliateView {
		t.Errorf("Affiliate() error = %v, want ErrNoAffiliateView", err)
	}
}

func TestCloseClearsRows(t *testing.T) {
	p := newTestPortal(t, []types.VaultInfo{{TokenAddress: solMint}})
	if err := p.LoadVaults(context.Background()); err != nil {
		t.Fatalf("LoadVaults() error = %v", err)
	}

	p.Close()
	if len(p.Rows()) != 0 {
		t.Errorf("Rows() = %d rows after Close", len(p.Rows()))
	}
}

package tokenregistry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

const listPayload = `{
	"name": "Test Token List",
	"tokens": [
		{"chainId": 101, "address": "So11111111111111111111111111111111111111112", "symbol": "SOL", "name": "Wrapped SOL", "decimals": 9},
		{"chainId": 101, "address": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "symbol": "USDC", "name": "USD Coin", "decimals": 6}
	]
}`

func newListServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listPayload))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRegistryStartsUnloaded(t *testing.T) {
	r, err := New("http://localhost:1/list.json", "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if r.Ready() {
		t.Error("Ready() = true before Load()")
	}
	if _, ok := r.Resolve("So11111111111111111111111111111111111111112"); ok {
		t.Error("Resolve() succeeded on unloaded registry")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0 before load", r.Len())
	}
}

func TestRegistryLoadAndResolve(t *testing.T) {
	server := newListServer(t)

	r, _ := New(server.URL, "")
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !r.Ready() {
		t.Fatal("Ready() = false after Load()")
	}

	token, ok := r.Resolve("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	if !ok {
		t.Fatal("Resolve(USDC) not found")
	}
	if token.Symbol != "USDC" || token.Decimals != 6 {
		t.Errorf("Resolve(USDC) = %+v", token)
	}

	if _, ok := r.Resolve("unknown-mint"); ok {
		t.Error("Resolve(unknown) = found, want not found")
	}

	sol, ok := r.FindBySymbol("SOL")
	if !ok || sol.Decimals != 9 {
		t.Errorf("FindBySymbol(SOL) = %+v, ok = %v", sol, ok)
	}
}

func TestRegistryOverrides(t *testing.T) {
	server := newListServer(t)

	overridesPath := filepath.Join(t.TempDir(), "overrides.yaml")
	overrides := `tokens:
  - chainId: 103
    address: zVzi5VAf4qMEwzv7NXECVx5v2pQ7xnqVVjCXZwS9XzA
    symbol: USDC
    name: Devnet USD Coin
    decimals: 6
`
	if err := os.WriteFile(overridesPath, []byte(overrides), 0644); err != nil {
		t.Fatal(err)
	}

	r, _ := New(server.URL, overridesPath)
	if err := r.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3 with overrides merged", r.Len())
	}
	token, ok := r.Resolve("zVzi5VAf4qMEwzv7NXECVx5v2pQ7xnqVVjCXZwS9XzA")
	if !ok || token.Name != "Devnet USD Coin" {
		t.Errorf("Resolve(devnet USDC) = %+v, ok = %v", token, ok)
	}
}

func TestRegistryLoadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	r, _ := New(server.URL, "")
	if err := r.Load(context.Background()); err == nil {
		t.Error("Load() expected error on 503, got nil")
	}
	if r.Ready() {
		t.Error("Ready() = true after failed load")
	}
}

func TestRegistryEmptyList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name": "empty", "tokens": []}`))
	}))
	defer server.Close()

	r, _ := New(server.URL, "")
	if err := r.Load(context.Background()); err == nil {
		t.Error("Load() expected error on empty token list, got nil")
	}
}

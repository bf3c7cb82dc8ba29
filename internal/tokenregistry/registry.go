package tokenregistry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/mercurial-finance/vault-portal/internal/logger"
	"github.com/mercurial-finance/vault-portal/internal/types"
)

var registryLogger = logger.GetForComponent("token_registry")

var (
	ErrNotLoaded     = errors.New("token registry is not loaded yet")
	ErrFetchFailed   = errors.New("token list fetch failed")
	ErrInvalidList   = errors.New("token list payload is invalid")
	ErrEmptyTokenURL = errors.New("token list URL cannot be empty")
)

// tokenList is the standard Solana token list envelope.
type tokenList struct {
	Name   string            `json:"name"`
	Tokens []types.TokenInfo `json:"tokens"`
}

// overridesFile is the local YAML file with additional token entries, used to
// register mints the published list does not carry (e.g. devnet test mints).
type overridesFile struct {
	Tokens []types.TokenInfo `yaml:"tokens"`
}

// Registry resolves token mint addresses to token metadata. It starts in a
// "not loaded" state and must be loaded (or awaited) before first use; callers
// that see Ready() == false have nothing to resolve against and should hold
// off building vault rows.
type Registry struct {
	listURL       string
	overridesPath string
	httpClient    *http.Client

	mu     sync.RWMutex
	tokens []types.TokenInfo
	loaded bool
}

// New creates an unloaded registry. overridesPath may be empty.
func New(listURL, overridesPath string) (*Registry, error) {
	if listURL == "" {
		return nil, ErrEmptyTokenURL
	}
	return &Registry{
		listURL:       listURL,
		overridesPath: overridesPath,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// Load fetches the token list and merges local overrides. Safe to call more
// than once; a successful load replaces the previous snapshot.
func (r *Registry) Load(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.listURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrFetchFailed, resp.Status)
	}

	var list tokenList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidList, err)
	}
	if len(list.Tokens) == 0 {
		return fmt.Errorf("%w: list contains no tokens", ErrInvalidList)
	}

	tokens := list.Tokens
	if r.overridesPath != "" {
		overrides, err := loadOverrides(r.overridesPath)
		if err != nil {
			return err
		}
		tokens = append(tokens, overrides...)
	}

	r.mu.Lock()
	r.tokens = tokens
	r.loaded = true
	r.mu.Unlock()

	registryLogger.Info().
		Int("tokenCount", len(tokens)).
		Str("source", list.Name).
		Msg("Token registry loaded")
	return nil
}

// Await blocks until the registry is loaded, retrying failed loads, or until
// the context is done.
func (r *Registry) Await(ctx context.Context) error {
	const retryInterval = 5 * time.Second

	for {
		if r.Ready() {
			return nil
		}

		err := r.Load(ctx)
		if err == nil {
			return nil
		}
		registryLogger.Warn().Err(err).Msg("Token registry load failed, retrying")

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNotLoaded, ctx.Err())
		case <-time.After(retryInterval):
		}
	}
}

// Ready reports whether the registry has been loaded at least once.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Resolve returns the token descriptor for a mint address. The second return
// is false both for unknown mints and for an unloaded registry.
func (r *Registry) Resolve(address string) (types.TokenInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.loaded {
		return types.TokenInfo{}, false
	}
	return lo.Find(r.tokens, func(t types.TokenInfo) bool {
		return t.Address == address
	})
}

// FindBySymbol returns the first token with the given symbol.
func (r *Registry) FindBySymbol(symbol string) (types.TokenInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.loaded {
		return types.TokenInfo{}, false
	}
	return lo.Find(r.tokens, func(t types.TokenInfo) bool {
		return t.Symbol == symbol
	})
}

// Len returns the number of registered tokens, 0 while unloaded.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}

func loadOverrides(path string) ([]types.TokenInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token overrides: %w", err)
	}

	var overrides overridesFile
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidList, err)
	}

	registryLogger.Debug().
		Int("overrideCount", len(overrides.Tokens)).
		Str("path", path).
		Msg("Merged local token overrides")
	return overrides.Tokens, nil
}

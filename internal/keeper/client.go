package keeper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/mercurial-finance/vault-portal/internal/logger"
	"github.com/mercurial-finance/vault-portal/internal/types"
)

var keeperLogger = logger.GetForComponent("keeper_client")

var (
	ErrEmptyBaseURL   = errors.New("keeper base URL cannot be empty")
	ErrRequestFailed  = errors.New("keeper request failed")
	ErrBadStatus      = errors.New("keeper returned non-OK status")
	ErrInvalidPayload = errors.New("keeper payload is invalid")
)

// Client queries the off-chain keeper service that publishes periodic vault and
// strategy snapshots.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a keeper client for the given base URL.
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}, nil
}

// VaultInfos fetches the list of available vaults from /vault_info.
func (c *Client) VaultInfos(ctx context.Context) ([]types.VaultInfo, error) {
	var infos []types.VaultInfo
	if err := c.getJSON(ctx, "/vault_info", &infos); err != nil {
		return nil, err
	}

	keeperLogger.Debug().Int("vaultCount", len(infos)).Msg("Fetched vault info list from keeper")
	return infos, nil
}

// VaultState fetches the current state snapshot for one vault, keyed by its
// token mint address.
func (c *Client) VaultState(ctx context.Context, tokenAddress string) (*types.VaultStateAPI, error) {
	if tokenAddress == "" {
		return nil, fmt.Errorf("%w: empty token address", ErrInvalidPayload)
	}

	var state types.VaultStateAPI
	if err := c.getJSON(ctx, "/vault_state/"+url.PathEscape(tokenAddress), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// getJSON performs a GET request against the keeper and decodes the JSON body.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s from %s", ErrBadStatus, resp.Status, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

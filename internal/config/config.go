package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// RPCEndpoint is the Solana JSON-RPC endpoint.
	RPCEndpoint string
	// KeeperURL is the base URL of the vault keeper service.
	KeeperURL string
	// Cluster is the target Solana cluster (e.g., "mainnet-beta", "devnet").
	Cluster string

	// TokenListURL is the URL of the token list JSON the registry loads.
	TokenListURL string
	// TokenListOverrides is an optional path to a local YAML file with
	// additional token entries (e.g., devnet mints).
	TokenListOverrides string

	// WalletKeypair is an optional path to a solana-keygen keypair file.
	// When empty the portal runs without a connected wallet.
	WalletKeypair string
	// AffiliateID is an optional partner public key for the affiliate view.
	AffiliateID string

	// WebPort is the port the dashboard listens on.
	WebPort string
	// RefreshInterval is how often vault rows are refreshed.
	RefreshInterval time.Duration
)

// LoadConfig loads configuration from environment variables and sets the global
// config vars. RPC_ENDPOINT, KEEPER_URL and TOKEN_LIST_URL are required.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	RPCEndpoint, err = getEnv("RPC_ENDPOINT")
	if err != nil {
		return err
	}

	KeeperURL, err = getEnv("KEEPER_URL")
	if err != nil {
		return err
	}

	TokenListURL, err = getEnv("TOKEN_LIST_URL")
	if err != nil {
		return err
	}

	Cluster = getEnvOr("CLUSTER", "mainnet-beta")
	TokenListOverrides = getEnvOr("TOKEN_LIST_OVERRIDES", "")
	WalletKeypair = getEnvOr("WALLET_KEYPAIR", "")
	AffiliateID = getEnvOr("AFFILIATE_ID", "")
	WebPort = getEnvOr("WEB_PORT", "8080")

	RefreshInterval, err = getEnvAsDuration("REFRESH_INTERVAL", 30*time.Second)
	if err != nil {
		return err
	}

	// Expand the tilde (~) in the keypair path to the user's home directory.
	if strings.HasPrefix(WalletKeypair, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		WalletKeypair = filepath.Join(home, WalletKeypair[2:])
	}

	log.Debug().
		Str("RPCEndpoint", RPCEndpoint).
		Str("KeeperURL", KeeperURL).
		Str("Cluster", Cluster).
		Str("WebPort", WebPort).
		Msg("Configuration loaded successfully.")

	return nil
}

// DBConfigured reports whether the optional snapshot database is configured.
func DBConfigured() bool {
	_, exists := os.LookupEnv("DB_HOST")
	return exists
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOr retrieves a string environment variable with a default value.
func getEnvOr(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a time.Duration.
// Returns the default when unset, an error when set but invalid.
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid duration, got: " + valueStr)
	}
	return value, nil
}

// GetEnvAsInt retrieves an environment variable as an int with a default value.
func GetEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/mercurial-finance/vault-portal/internal/chain"
	"github.com/mercurial-finance/vault-portal/internal/config"
	"github.com/mercurial-finance/vault-portal/internal/keeper"
	"github.com/mercurial-finance/vault-portal/internal/logger"
	"github.com/mercurial-finance/vault-portal/internal/notify"
	"github.com/mercurial-finance/vault-portal/internal/portal"
	"github.com/mercurial-finance/vault-portal/internal/state"
	"github.com/mercurial-finance/vault-portal/internal/tokenregistry"
	"github.com/mercurial-finance/vault-portal/internal/wallet"
	"github.com/mercurial-finance/vault-portal/internal/web"
)

// main is the entry point for the vault portal.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Vault Portal Starting...")

	// Initialize the optional snapshot database
	if config.DBConfigured() {
		dbCfg := state.DBConfig{
			Host: os.Getenv("DB_HOST"), Port: config.GetEnvAsInt("DB_PORT", 5432),
			User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
			DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
	} else {
		log.Info().Msg("DB_HOST not set; running without snapshot persistence")
	}

	// --- 2. Collaborator Initialization ---
	chainClient, err := chain.NewClient(config.RPCEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create chain client")
	}
	log.Info().Str("endpoint", config.RPCEndpoint).Str("cluster", config.Cluster).Msg("Chain client ready")

	keeperClient, err := keeper.NewClient(config.KeeperURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create keeper client")
	}

	registry, err := tokenregistry.New(config.TokenListURL, config.TokenListOverrides)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token registry")
	}
	go func() {
		if err := registry.Load(context.Background()); err != nil {
			log.Warn().Err(err).Msg("Initial token list load failed, will retry")
		}
	}()

	// Optional wallet; without it the portal is read-only.
	var signer wallet.Signer
	if config.WalletKeypair != "" {
		keypair, err := wallet.LoadKeypair(config.WalletKeypair, chainClient.RPC())
		if err != nil {
			log.Fatal().Err(err).Str("path", config.WalletKeypair).Msg("Failed to load wallet keypair")
		}
		signer = keypair
		log.Info().Str("pubkey", keypair.PublicKey().String()).Msg("Wallet connected")
	} else {
		log.Info().Msg("WALLET_KEYPAIR not set; deposits and withdrawals are disabled")
	}

	var affiliateID solana.PublicKey
	if config.AffiliateID != "" {
		affiliateID, err = solana.PublicKeyFromBase58(config.AffiliateID)
		if err != nil {
			log.Fatal().Err(err).Msg("AFFILIATE_ID is not a valid public key")
		}
	}

	hub := notify.NewHub()

	// --- 3. Create Portal Instance with Dependency Injection ---
	portalInstance, err := portal.New(portal.Config{
		Keeper:      keeperClient,
		Registry:    registry,
		Chain:       chainClient,
		Signer:      signer,
		Notifier:    hub,
		AffiliateID: affiliateID,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create portal")
	}

	// --- 4. Start Web Server ---
	webServer := web.NewWebServer(config.WebPort, portalInstance, hub)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting vault dashboard")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Start Portal Main Loop ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("interval", config.RefreshInterval.String()).Msg("Starting portal refresh loop")
	portalInstance.RunLoop(ctx, config.RefreshInterval)

	log.Info().Msg("Vault Portal stopped")
}

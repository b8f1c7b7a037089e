package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/qoin-labs/qoin-wallet/internal/config"
	"github.com/qoin-labs/qoin-wallet/internal/infra"
	"github.com/qoin-labs/qoin-wallet/internal/logging"
	"github.com/qoin-labs/qoin-wallet/internal/server"
	"github.com/qoin-labs/qoin-wallet/internal/stellar"
)

const friendbotTestnet = "https://friendbot.stellar.org"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	// Balances serialize as JSON numbers, matching how clients read amounts.
	decimal.MarshalJSONWithoutQuotes = true

	ctx := context.Background()

	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := infra.Migrate(cfg.DatabaseURL); err != nil {
			logger.Error("migrate", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory storage")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	} else {
		logger.Warn("REDIS_URL not set, idempotency and rate limiting disabled")
	}

	var network stellar.Network
	if cfg.IssuerSecret != "" {
		friendbot := ""
		if cfg.StellarNetwork == "testnet" {
			friendbot = friendbotTestnet
		}
		network, err = stellar.NewHorizon(stellar.HorizonConfig{
			BaseURL:           cfg.HorizonURL,
			NetworkPassphrase: cfg.NetworkPassphrase,
			AssetCode:         cfg.AssetCode,
			IssuerSecret:      cfg.IssuerSecret,
			FriendbotURL:      friendbot,
		})
		if err != nil {
			logger.Error("build horizon client", "error", err)
			os.Exit(1)
		}
	} else if cfg.IsDev() {
		logger.Warn("ISSUER_SECRET_KEY not set, using simulated network")
		network = stellar.NewSimulated()
	} else {
		logger.Error("ISSUER_SECRET_KEY must be set outside development")
		os.Exit(1)
	}

	srv, err := server.New(cfg, db, cache, network, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/qoin-labs/qoin-wallet/internal/config"
	"github.com/qoin-labs/qoin-wallet/internal/funding"
	"github.com/qoin-labs/qoin-wallet/internal/ledger"
	"github.com/qoin-labs/qoin-wallet/internal/middleware"
	"github.com/qoin-labs/qoin-wallet/internal/notification"
	"github.com/qoin-labs/qoin-wallet/internal/payments"
	"github.com/qoin-labs/qoin-wallet/internal/stellar"
	"github.com/qoin-labs/qoin-wallet/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Network stellar.Network
	Logger  *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Network == nil {
		if !d.Cfg.IsDev() {
			return fmt.Errorf("stellar network is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		d.Network = stellar.NewSimulated()
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	// Health and index
	RegisterHealthRoutes(app, d)
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"name":    d.Cfg.AppName,
			"status":  "running",
			"network": d.Cfg.StellarNetwork,
			"endpoints": fiber.Map{
				"create_wallet": "POST /api/wallet/create",
				"deposit":       "POST /api/deposit",
				"send":          "POST /api/send",
				"withdraw":      "POST /api/withdraw",
				"balance":       "GET /api/balance/{address}",
				"transactions":  "GET /api/transactions/{address}",
			},
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Storage backends
	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
	}
	var walletRepo wallet.Repository
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
	}

	secrets, err := wallet.NewSecretBox(d.Cfg.EncryptionKey)
	if err != nil {
		return err
	}

	var notifier notification.Notifier
	if d.Cfg.SendGridKey != "" {
		notifier = notification.NewSendGridNotifier(d.Cfg.SendGridKey, d.Cfg.FromEmail)
	} else {
		notifier = notification.NewLoggerNotifier(d.Logger)
	}

	// Services and handlers
	walletSvc := wallet.NewService(walletRepo, ledgerBackend, d.Network, secrets, wallet.Options{
		Notifier:            notifier,
		Logger:              d.Logger,
		DivergenceThreshold: d.Cfg.DivergenceThreshold,
		FundNewAccounts:     d.Cfg.StellarNetwork == "testnet",
	})
	fundingSvc, err := funding.NewService(context.Background(), ledgerBackend, walletSvc, d.Network, funding.Options{
		Logger:        d.Logger,
		MintMax:       d.Cfg.MintMax,
		SubmitTimeout: d.Cfg.SubmitTimeout,
	})
	if err != nil {
		return err
	}
	paymentSvc, err := payments.NewService(context.Background(), ledgerBackend, walletSvc, d.Network, d.Cfg.FeeWalletAddress, payments.Options{
		Notifier:      notifier,
		Logger:        d.Logger,
		SubmitTimeout: d.Cfg.SubmitTimeout,
	})
	if err != nil {
		return err
	}

	walletHandler := wallet.NewHandler(walletSvc, d.Cfg.AssetCode)
	fundingHandler := funding.NewHandler(fundingSvc)
	paymentHandler := payments.NewHandler(paymentSvc)

	// API routes
	api := app.Group("/api")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals("X-Request-ID").(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Balance lookups stay public so wallets can be checked with only the address.
	api.Get("/balance/:address", walletHandler.Balance)

	protected := api.Group("", middleware.APIKey(d.Cfg.APIKey))
	createLimiter := middleware.RateLimit(d.Cache, 5)
	RegisterWalletRoutes(protected, walletHandler, createLimiter)
	RegisterFundingRoutes(protected, fundingHandler)
	RegisterPaymentRoutes(protected, paymentHandler)

	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultAppName        = "QoinWallet"
	defaultAppEnv         = "development"
	defaultPort           = "8000"
	defaultLogLevel       = "info"
	defaultAssetCode      = "QOIN"
	defaultShutdownDelay  = 10 * time.Second
	defaultSubmitTimeout  = 30 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour

	horizonTestnet    = "https://horizon-testnet.stellar.org"
	horizonMainnet    = "https://horizon.stellar.org"
	passphraseTestnet = "Test SDF Network ; September 2015"
	passphraseMainnet = "Public Global Stellar Network ; September 2015"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	DatabaseURL string
	RedisURL    string

	// APIKey is the shared secret clients must present in X-API-Key.
	APIKey string
	// EncryptionKey seals wallet secrets at rest. 32 bytes, hex encoded.
	EncryptionKey string

	// SendGridKey enables outbound email when set.
	SendGridKey string
	FromEmail   string

	StellarNetwork    string
	HorizonURL        string
	NetworkPassphrase string
	IssuerSecret      string
	FeeWalletAddress  string
	AssetCode         string

	// MintMax caps a single deposit. Zero disables the cap.
	MintMax decimal.Decimal
	// DivergenceThreshold is the mirror-vs-network gap that triggers a warning log.
	DivergenceThreshold decimal.Decimal

	SubmitTimeout  time.Duration
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:             getEnv("APP_NAME", defaultAppName),
		AppEnv:              getEnv("APP_ENV", defaultAppEnv),
		Port:                getEnv("PORT", defaultPort),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		APIKey:              os.Getenv("API_SECRET_KEY"),
		EncryptionKey:       os.Getenv("ENCRYPTION_KEY"),
		SendGridKey:         os.Getenv("SENDGRID_API_KEY"),
		FromEmail:           getEnv("FROM_EMAIL", "noreply@qoinwallet.com"),
		StellarNetwork:      strings.ToLower(getEnv("STELLAR_NETWORK", "testnet")),
		IssuerSecret:        os.Getenv("ISSUER_SECRET_KEY"),
		FeeWalletAddress:    os.Getenv("FEE_WALLET_ADDRESS"),
		AssetCode:           getEnv("ASSET_CODE", defaultAssetCode),
		MintMax:             decimal.Zero,
		DivergenceThreshold: decimal.New(1, -7),
		SubmitTimeout:       defaultSubmitTimeout,
		ShutdownPeriod:      defaultShutdownDelay,
		IdempotencyTTL:      defaultIdempotencyTTL,
	}

	switch cfg.StellarNetwork {
	case "mainnet":
		cfg.HorizonURL = getEnv("HORIZON_URL", horizonMainnet)
		cfg.NetworkPassphrase = passphraseMainnet
	case "testnet":
		cfg.HorizonURL = getEnv("HORIZON_URL", horizonTestnet)
		cfg.NetworkPassphrase = passphraseTestnet
	default:
		return Config{}, fmt.Errorf("invalid STELLAR_NETWORK %q", cfg.StellarNetwork)
	}

	if v := os.Getenv("MINT_MAX_AMOUNT"); v != "" {
		max, err := decimal.NewFromString(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MINT_MAX_AMOUNT: %w", err)
		}
		cfg.MintMax = max
	}

	if v := os.Getenv("DIVERGENCE_THRESHOLD"); v != "" {
		threshold, err := decimal.NewFromString(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DIVERGENCE_THRESHOLD: %w", err)
		}
		cfg.DivergenceThreshold = threshold
	}

	if v := os.Getenv("SUBMIT_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SUBMIT_TIMEOUT_SECONDS: %w", err)
		}
		cfg.SubmitTimeout = time.Duration(seconds) * time.Second
	}

	if v := os.Getenv("SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	}

	if v := os.Getenv("IDEMPOTENCY_TTL_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid IDEMPOTENCY_TTL_SECONDS: %w", err)
		}
		cfg.IdempotencyTTL = time.Duration(seconds) * time.Second
	}

	if !cfg.IsDev() {
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("REDIS_URL must be set when APP_ENV=%s", cfg.AppEnv)
		}
		if cfg.APIKey == "" {
			return Config{}, fmt.Errorf("API_SECRET_KEY must be set when APP_ENV=%s", cfg.AppEnv)
		}
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

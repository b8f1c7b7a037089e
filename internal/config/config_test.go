package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STELLAR_NETWORK", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("API_SECRET_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.IsDev() {
		t.Fatal("expected dev environment")
	}
	if cfg.StellarNetwork != "testnet" {
		t.Fatalf("expected testnet default, got %s", cfg.StellarNetwork)
	}
	if cfg.HorizonURL != horizonTestnet {
		t.Fatalf("unexpected horizon url %s", cfg.HorizonURL)
	}
	if cfg.AssetCode != "QOIN" {
		t.Fatalf("unexpected asset code %s", cfg.AssetCode)
	}
	if cfg.Address() != ":8000" {
		t.Fatalf("unexpected address %s", cfg.Address())
	}
}

func TestLoadMainnetSwitchesHorizon(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("STELLAR_NETWORK", "mainnet")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HorizonURL != horizonMainnet {
		t.Fatalf("unexpected horizon url %s", cfg.HorizonURL)
	}
	if cfg.NetworkPassphrase != passphraseMainnet {
		t.Fatalf("unexpected passphrase %s", cfg.NetworkPassphrase)
	}
}

func TestLoadRejectsUnknownNetwork(t *testing.T) {
	t.Setenv("STELLAR_NETWORK", "sidechain")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown network")
	}
}

func TestLoadProductionRequiresBackingServices(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("STELLAR_NETWORK", "mainnet")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("API_SECRET_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing in production")
	}
}

package config

import (
	"errors"
	"strings"
	"testing"
)

func setSyncEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PLAID_CLIENT_ID", "client")
	t.Setenv("PLAID_SECRET", "secret")
	t.Setenv("PG_HOST", "localhost")
	t.Setenv("PG_PORT", "5433")
	t.Setenv("PG_DATABASE", "finance")
	t.Setenv("PG_USER", "etl")
	t.Setenv("PG_PASSWORD", "pw")
}

func TestLoadAndRequireSync(t *testing.T) {
	setSyncEnv(t)
	t.Setenv("PLAID_ENV", "sandbox")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := cfg.RequireSync(); err != nil {
		t.Fatalf("RequireSync() error: %v", err)
	}
	if cfg.PlaidBaseURL != "https://sandbox.plaid.com" {
		t.Errorf("PlaidBaseURL = %q", cfg.PlaidBaseURL)
	}
}

func TestRequireSyncMissingVar(t *testing.T) {
	setSyncEnv(t)
	t.Setenv("PLAID_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	err = cfg.RequireSync()
	var missing *MissingVarError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingVarError, got %v", err)
	}
	if missing.Key != "PLAID_SECRET" {
		t.Errorf("Key = %q, want PLAID_SECRET", missing.Key)
	}
}

func TestRequireStoreDoesNotNeedPlaid(t *testing.T) {
	setSyncEnv(t)
	t.Setenv("PLAID_CLIENT_ID", "")
	t.Setenv("PLAID_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if err := cfg.RequireStore(); err != nil {
		t.Errorf("RequireStore() error: %v", err)
	}
}

func TestLoadUnknownPlaidEnv(t *testing.T) {
	setSyncEnv(t)
	t.Setenv("PLAID_ENV", "staging")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown PLAID_ENV")
	}
}

func TestConnString(t *testing.T) {
	setSyncEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	got := cfg.ConnString()
	for _, want := range []string{"host=localhost", "port=5433", "dbname=finance", "user=etl", "sslmode=disable"} {
		if !strings.Contains(got, want) {
			t.Errorf("ConnString() = %q, missing %q", got, want)
		}
	}
}

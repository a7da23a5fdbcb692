// Package config loads environment configuration for the sync and export
// commands. A .env file is honored when present; the process environment
// always wins.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

var plaidHosts = map[string]string{
	"sandbox":    "https://sandbox.plaid.com",
	"production": "https://production.plaid.com",
}

// MissingVarError reports a required environment variable that is not set.
// It fails the run before any I/O happens.
type MissingVarError struct {
	Key string
}

func (e *MissingVarError) Error() string {
	return fmt.Sprintf("missing required environment variable: %s", e.Key)
}

// Config carries everything the binaries read from the environment. Which
// fields are required depends on the command; see RequireSync and
// RequireStore.
type Config struct {
	PlaidClientID    string
	PlaidSecret      string
	PlaidAccessToken string
	PlaidPublicToken string
	PlaidBaseURL     string

	PGHost     string
	PGPort     string
	PGDatabase string
	PGUser     string
	PGPassword string
	PGSSLMode  string

	Bucket string
	Prefix string
}

// Load reads the environment (after an optional .env) without enforcing any
// required set. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		PlaidClientID:    os.Getenv("PLAID_CLIENT_ID"),
		PlaidSecret:      os.Getenv("PLAID_SECRET"),
		PlaidAccessToken: os.Getenv("PLAID_ACCESS_TOKEN"),
		PlaidPublicToken: os.Getenv("PLAID_PUBLIC_TOKEN"),

		PGHost:     os.Getenv("PG_HOST"),
		PGPort:     getDefault("PG_PORT", "5432"),
		PGDatabase: os.Getenv("PG_DATABASE"),
		PGUser:     os.Getenv("PG_USER"),
		PGPassword: os.Getenv("PG_PASSWORD"),
		PGSSLMode:  getDefault("PG_SSLMODE", "disable"),

		Bucket: os.Getenv("GCS_BUCKET"),
		Prefix: os.Getenv("GCS_PREFIX"),
	}

	env := getDefault("PLAID_ENV", "sandbox")
	host, ok := plaidHosts[env]
	if !ok {
		return nil, fmt.Errorf("unknown PLAID_ENV %q", env)
	}
	cfg.PlaidBaseURL = host

	return cfg, nil
}

// RequireSync validates the variables the sync pipeline needs: Plaid
// credentials plus the store connection.
func (c *Config) RequireSync() error {
	required := []struct {
		key, val string
	}{
		{"PLAID_CLIENT_ID", c.PlaidClientID},
		{"PLAID_SECRET", c.PlaidSecret},
	}
	for _, r := range required {
		if r.val == "" {
			return &MissingVarError{Key: r.key}
		}
	}
	return c.RequireStore()
}

// RequireStore validates the store connection variables. The export command
// needs only these.
func (c *Config) RequireStore() error {
	required := []struct {
		key, val string
	}{
		{"PG_HOST", c.PGHost},
		{"PG_DATABASE", c.PGDatabase},
		{"PG_USER", c.PGUser},
		{"PG_PASSWORD", c.PGPassword},
	}
	for _, r := range required {
		if r.val == "" {
			return &MissingVarError{Key: r.key}
		}
	}
	return nil
}

// ConnString builds the lib/pq keyword/value connection string.
func (c *Config) ConnString() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		c.PGHost, c.PGPort, c.PGDatabase, c.PGUser, c.PGPassword, c.PGSSLMode)
}

func getDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

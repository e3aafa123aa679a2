// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package config loads the judge coordinator's process configuration from
// environment variables, once, at process start.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"
)

// Config holds the coordinator's runtime configuration.
type Config struct {
	// DatabaseURI is the primary Postgres connection string.
	DatabaseURI string

	// TestDatabaseURI is used by the test suite when set, instead of DatabaseURI.
	TestDatabaseURI string

	// RedisURI is the fan-out backplane used to share room events across
	// coordinator replicas.
	RedisURI string

	// SecretKey is the process-wide secret material: SECRET_KEY verbatim, or
	// the hex encoding of 128 random bytes generated once and persisted
	// under AppRoot.
	SecretKey []byte

	// AppRoot is the directory the .secret_key file is read from/written to.
	AppRoot string

	// EnableSocketIO toggles the live-push event fan-out server.
	EnableSocketIO bool

	// JudgeURL is the coordinator's own externally reachable URL, embedded
	// into jury bootstrap scripts.
	JudgeURL string

	// DigitalOceanAPIToken authenticates the Cloud provisioning client.
	DigitalOceanAPIToken string

	// HTTPAddr is the address the HTTP API listens on.
	HTTPAddr string

	// StaleClaimWindow is the duration after which a started job becomes
	// reclaimable (spec: 5 minutes).
	StaleClaimWindow time.Duration

	// CallbackTimeout bounds the submission callback POST (spec: 2 seconds).
	CallbackTimeout time.Duration

	// AutoscalerTick is the autoscaler's sampling interval (spec: 5 seconds).
	AutoscalerTick time.Duration

	// LogFormat selects "json" or "text" log output.
	LogFormat string
}

// NewDefault returns a configuration populated with defaults, with no
// environment overrides applied.
func NewDefault() *Config {
	return &Config{
		DatabaseURI:      "postgres://localhost:5432/judge",
		AppRoot:          ".",
		HTTPAddr:         ":8080",
		StaleClaimWindow: 5 * time.Minute,
		CallbackTimeout:  2 * time.Second,
		AutoscalerTick:   5 * time.Second,
		LogFormat:        "text",
	}
}

// Load builds a Config from environment variables, falling back to NewDefault's
// values for anything unset, except ENABLE_SOCKETIO, which defaults to true.
func Load() (*Config, error) {
	c := NewDefault()

	c.DatabaseURI = getEnvOrDefault("DATABASE_URI", c.DatabaseURI)
	c.TestDatabaseURI = os.Getenv("TEST_DATABASE_URI")
	c.RedisURI = os.Getenv("REDIS_URI")
	c.AppRoot = getEnvOrDefault("JUDGE_APP_ROOT", c.AppRoot)
	c.EnableSocketIO = getEnvBoolOrDefault("ENABLE_SOCKETIO", true)
	c.JudgeURL = os.Getenv("JUDGE_URL")
	c.DigitalOceanAPIToken = os.Getenv("DIGITALOCEAN_API_TOKEN")
	c.HTTPAddr = getEnvOrDefault("HTTP_ADDR", c.HTTPAddr)
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)

	secret, err := LoadOrGenerateSecret(c.AppRoot)
	if err != nil {
		return nil, err
	}
	c.SecretKey = secret

	return c, nil
}

// Validate checks the configuration is complete enough to start the server.
func (c *Config) Validate() error {
	if c.DatabaseURI == "" {
		return ErrMissingDatabaseURI
	}
	if len(c.SecretKey) == 0 {
		return ErrMissingSecretKey
	}
	if c.StaleClaimWindow <= 0 {
		return ErrInvalidStaleClaimWindow
	}
	return nil
}

// LoadOrGenerateSecret returns SECRET_KEY's bytes if set, otherwise reads
// (or, on first run, generates and persists) 128 random bytes at
// <appRoot>/.secret_key. Mirrors the source judge's secret-key bootstrap.
func LoadOrGenerateSecret(appRoot string) ([]byte, error) {
	if hexKey := os.Getenv("SECRET_KEY"); hexKey != "" {
		return []byte(hexKey), nil
	}

	path := filepath.Join(appRoot, ".secret_key")
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	secret := make([]byte, 128)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}
	encoded := hex.EncodeToString(secret)
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return nil, err
	}
	return []byte(encoded), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "1", "true", "TRUE", "True":
			return true
		case "0", "false", "FALSE", "False":
			return false
		}
	}
	return defaultValue
}

// Package config loads the typed, environment-driven configuration that
// selects the registry, replay, and ledger storage backends, plus an
// optional deployment-scoped governance profile override.
package config

import "os"

const (
	RegistryBackendFile     = "file"
	RegistryBackendPostgres = "postgres"

	ReplayStoreMemory = "memory"
	ReplayStoreRedis  = "redis"

	LedgerBackendFile = "file"
	LedgerBackendS3   = "s3"
)

// Config holds the substrate's environment-sourced configuration.
type Config struct {
	LogLevel string

	RegistryBackend string
	DatabaseURL     string
	IdentityFile    string

	ReplayStore string
	RedisURL    string

	LedgerBackend string
	LedgerFile    string
	S3Bucket      string
	S3Region      string

	GovernanceProfilePath string
}

// Load reads configuration from environment variables, falling back to
// safe single-process defaults (file-backed registry and ledger,
// in-memory replay store) when unset.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	registryBackend := os.Getenv("REGISTRY_BACKEND")
	if registryBackend == "" {
		registryBackend = RegistryBackendFile
	}

	replayStore := os.Getenv("REPLAY_STORE")
	if replayStore == "" {
		replayStore = ReplayStoreMemory
	}

	ledgerBackend := os.Getenv("LEDGER_BACKEND")
	if ledgerBackend == "" {
		ledgerBackend = LedgerBackendFile
	}

	identityFile := os.Getenv("IDENTITY_FILE")
	if identityFile == "" {
		identityFile = "identities.json"
	}

	ledgerFile := os.Getenv("LEDGER_FILE")
	if ledgerFile == "" {
		ledgerFile = "ledger.json"
	}

	return &Config{
		LogLevel: logLevel,

		RegistryBackend: registryBackend,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		IdentityFile:    identityFile,

		ReplayStore: replayStore,
		RedisURL:    os.Getenv("REDIS_URL"),

		LedgerBackend: ledgerBackend,
		LedgerFile:    ledgerFile,
		S3Bucket:      os.Getenv("LEDGER_S3_BUCKET"),
		S3Region:      os.Getenv("LEDGER_S3_REGION"),

		GovernanceProfilePath: os.Getenv("GOVERNANCE_PROFILE_PATH"),
	}
}

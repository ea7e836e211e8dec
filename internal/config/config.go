// Package config provides configuration management for the wallet core.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/obscura-systems/wallet-core/internal/types"
)

// Config holds all wallet daemon configuration
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Chain   ChainConfig
	Remote  RemoteConfig
	Prover  ProverConfig
	Scanner ScannerConfig
	Session SessionConfig
	Logging LoggingConfig
}

// ServerConfig holds the command surface listener configuration
type ServerConfig struct {
	Host        string
	Port        string
	ShellOrigin string
}

// StoreConfig holds local store configuration
type StoreConfig struct {
	// AppDataDir is the per-user application data directory holding
	// persistent.db and the file-fallback credential store.
	AppDataDir string
}

// ChainConfig holds chain RPC configuration. The API token is embedded in
// the request path by the chain client.
type ChainConfig struct {
	Network     types.Network
	TestnetBase string
	MainnetBase string
	DevnetBase  string
	DevNodeIP   string
	APIToken    map[types.Network]string
	Timeout     time.Duration
	RatePerSec  int
}

// BaseURL returns the API base for the given network, or "" when the
// network has no endpoint configured.
func (c *ChainConfig) BaseURL(network types.Network) string {
	switch network {
	case types.NetworkTestnet:
		return c.TestnetBase
	case types.NetworkMainnet:
		return c.MainnetBase
	case types.NetworkDevnet:
		if c.DevnetBase != "" {
			return c.DevnetBase
		}
		if c.DevNodeIP != "" {
			return "http://" + c.DevNodeIP
		}
		return ""
	}
	return ""
}

// RemoteConfig holds the backup/user microservice configuration
type RemoteConfig struct {
	APIBase string
	Timeout time.Duration
}

// ProverConfig holds the local proving binary configuration. Proving
// happens on this machine; the spending key never leaves it.
type ProverConfig struct {
	Command string
	Timeout time.Duration
}

// ScannerConfig holds chain scanner configuration
type ScannerConfig struct {
	ChunkSize     int           // blocks per get_blocks range request, bounded by the RPC maximum
	PollInterval  time.Duration // delay between scan passes
	MaxPendingAge time.Duration // pending transactions older than this become aborted
}

// SessionConfig holds in-memory session configuration
type SessionConfig struct {
	PasswordTTL time.Duration // sliding TTL for the password session
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load loads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// .env is optional; environment variables can be set directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	appData, err := defaultAppDataDir()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "127.0.0.1"),
			Port:        getEnv("SERVER_PORT", "4130"),
			ShellOrigin: getEnv("SHELL_ORIGIN", "app://obscura"),
		},
		Store: StoreConfig{
			AppDataDir: getEnv("APP_DATA_DIR", appData),
		},
		Chain: ChainConfig{
			Network:     types.Network(getEnv("NETWORK", string(types.NetworkTestnet))),
			TestnetBase: getEnv("TESTNET_API", "https://api.explorer.provable.com/v1/testnet"),
			MainnetBase: getEnv("MAINNET_API", ""),
			DevnetBase:  getEnv("DEVNET_API", ""),
			DevNodeIP:   getEnv("DEV_NODE_IP", ""),
			APIToken: map[types.Network]string{
				types.NetworkTestnet: getEnv("TESTNET_API_OBSCURA", ""),
				types.NetworkMainnet: getEnv("MAINNET_API_OBSCURA", ""),
				types.NetworkDevnet:  getEnv("DEVNET_API_OBSCURA", ""),
			},
			Timeout:    getEnvAsDuration("CHAIN_TIMEOUT", 30*time.Second),
			RatePerSec: getEnvAsInt("CHAIN_RATE_PER_SEC", 10),
		},
		Remote: RemoteConfig{
			APIBase: getEnv("API", "https://api.obscura.systems"),
			Timeout: getEnvAsDuration("REMOTE_TIMEOUT", 15*time.Second),
		},
		Prover: ProverConfig{
			Command: getEnv("PROVER_CMD", ""),
			Timeout: getEnvAsDuration("PROVER_TIMEOUT", 5*time.Minute),
		},
		Scanner: ScannerConfig{
			ChunkSize:     getEnvAsInt("SCAN_CHUNK_SIZE", 49),
			PollInterval:  getEnvAsDuration("SCAN_POLL_INTERVAL", 15*time.Second),
			MaxPendingAge: getEnvAsDuration("SCAN_MAX_PENDING_AGE", 30*time.Minute),
		},
		Session: SessionConfig{
			PasswordTTL: getEnvAsDuration("PASSWORD_SESSION_TTL", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if !cfg.Chain.Network.Valid() {
		return nil, fmt.Errorf("unknown network %q", cfg.Chain.Network)
	}
	if cfg.Scanner.ChunkSize < 1 || cfg.Scanner.ChunkSize > 49 {
		return nil, fmt.Errorf("scan chunk size must be between 1 and 49, got %d", cfg.Scanner.ChunkSize)
	}

	return cfg, nil
}

// defaultAppDataDir returns the per-user application data directory.
func defaultAppDataDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve user config dir: %w", err)
	}
	return filepath.Join(base, "com.obscura.wallet"), nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	solanago "github.com/gagliardetto/solana-go"
)

// Transfer modes for SPL token transfers that need to create the recipient's
// associated token account.
const (
	TransferModeAtomic  = "atomic"   // create + transfer in one transaction
	TransferModeTwoStep = "two-step" // create, then transfer, as separate submissions
)

// defaultRPCURLs maps a network name to its public RPC endpoint.
var defaultRPCURLs = map[string]string{
	"mainnet":  "https://api.mainnet-beta.solana.com",
	"devnet":   "https://api.devnet.solana.com",
	"testnet":  "https://api.testnet.solana.com",
	"localnet": "http://127.0.0.1:8899",
}

// Config holds all application configuration loaded from environment variables.
// Everything except the signing key is validated at startup; a missing or
// malformed PRIVATE_KEY only disables signing.
type Config struct {
	// Server configuration
	Host          string
	Port          int
	LogLevel      string
	SessionSecret string

	// Solana configuration
	Network   string
	RPCURL    string
	PublicKey string

	// PrivateKey is the raw PRIVATE_KEY value (base58 or JSON byte array).
	// It is parsed by the keys package, never here.
	PrivateKey string

	// Submission configuration
	SkipPreflight       bool
	PreflightCommitment string
	TransferMode        string
	SubmitQueueSize     int
	RPCTimeout          time.Duration

	// NATS configuration (empty URL disables event publishing)
	NATSURL string

	// Temporal configuration (empty host disables async transfers)
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	MetricsEnabled bool
}

// Load reads configuration from environment variables and validates all fields.
// Returns an error listing every problem found.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.Host = getEnvOrDefault("HOST", "0.0.0.0")
	port, err := parseInt("PORT", 7860)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.Port = port
	}
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.SessionSecret = getEnvOrDefault("SECRET_KEY", "dev-secret")

	// Solana configuration
	cfg.Network = getEnvOrDefault("SOLANA_NETWORK", "devnet")
	cfg.RPCURL = os.Getenv("RPC_URL")
	if cfg.RPCURL == "" {
		cfg.RPCURL = defaultRPCURLs[cfg.Network]
	}
	cfg.PublicKey = strings.TrimSpace(os.Getenv("PUBLIC_KEY"))
	cfg.PrivateKey = os.Getenv("PRIVATE_KEY")

	// Submission configuration
	skipPreflight, err := parseBool("SKIP_PREFLIGHT", false)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SkipPreflight = skipPreflight
	}
	cfg.PreflightCommitment = getEnvOrDefault("PREFLIGHT_COMMITMENT", "confirmed")
	cfg.TransferMode = getEnvOrDefault("TRANSFER_MODE", TransferModeAtomic)

	queueSize, err := parseInt("SUBMIT_QUEUE_SIZE", 64)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SubmitQueueSize = queueSize
	}

	rpcTimeout, err := parseDuration("RPC_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCTimeout = rpcTimeout
	}

	// NATS configuration
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Temporal configuration
	cfg.TemporalHost = os.Getenv("TEMPORAL_HOST")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "solgate-transfers")

	metricsEnabled, err := parseBool("METRICS_ENABLED", true)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MetricsEnabled = metricsEnabled
	}

	if len(errs) == 0 {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	return nil, fmt.Errorf("configuration validation failed: %v", errs)
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65534 {
		// port+1 must also be a valid port for the bind fallback
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65534, got %d", c.Port))
	}

	if _, ok := defaultRPCURLs[c.Network]; !ok {
		errs = append(errs, fmt.Errorf("SOLANA_NETWORK must be one of mainnet, devnet, testnet, localnet, got %q", c.Network))
	}

	if c.RPCURL == "" {
		errs = append(errs, fmt.Errorf("RPC_URL is required"))
	} else if u, err := url.Parse(c.RPCURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("RPC_URL must be an http(s) URL, got %q", c.RPCURL))
	}

	if c.PublicKey != "" {
		if _, err := solanago.PublicKeyFromBase58(c.PublicKey); err != nil {
			errs = append(errs, fmt.Errorf("PUBLIC_KEY is not a valid address: %w", err))
		}
	}

	switch c.PreflightCommitment {
	case "processed", "confirmed", "finalized":
	default:
		errs = append(errs, fmt.Errorf("PREFLIGHT_COMMITMENT must be processed, confirmed or finalized, got %q", c.PreflightCommitment))
	}

	if c.TransferMode != TransferModeAtomic && c.TransferMode != TransferModeTwoStep {
		errs = append(errs, fmt.Errorf("TRANSFER_MODE must be %q or %q, got %q", TransferModeAtomic, TransferModeTwoStep, c.TransferMode))
	}

	if c.SubmitQueueSize < 1 {
		errs = append(errs, fmt.Errorf("SUBMIT_QUEUE_SIZE must be at least 1"))
	}

	if c.RPCTimeout < time.Second {
		errs = append(errs, fmt.Errorf("RPC_TIMEOUT must be at least 1 second"))
	}

	if c.TemporalHost != "" {
		if c.TemporalNamespace == "" {
			errs = append(errs, fmt.Errorf("TEMPORAL_NAMESPACE is required when TEMPORAL_HOST is set"))
		}
		if c.TemporalTaskQueue == "" {
			errs = append(errs, fmt.Errorf("TEMPORAL_TASK_QUEUE is required when TEMPORAL_HOST is set"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// Addr returns the primary listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// FallbackAddr returns the address tried when the primary port is taken.
func (c *Config) FallbackAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port+1)
}

// NATSEnabled reports whether transfer events should be published.
func (c *Config) NATSEnabled() bool {
	return c.NATSURL != ""
}

// TemporalEnabled reports whether async transfers are available.
func (c *Config) TemporalEnabled() bool {
	return c.TemporalHost != ""
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseBool parses a boolean from an environment variable or uses a default.
func parseBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q: %w", key, value, err)
	}
	return result, nil
}

package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	RPCURL         string `envconfig:"SWEEPER_RPC_URL"`
	FallbackRPCURL string `envconfig:"SWEEPER_FALLBACK_RPC_URL"`
	ChainID        int64  `envconfig:"SWEEPER_CHAIN_ID" default:"0"`
	RPCRateLimit   int    `envconfig:"SWEEPER_RPC_RATE_LIMIT" default:"25"`

	PrivateKey   string `envconfig:"SWEEPER_PRIVATE_KEY"`
	MnemonicFile string `envconfig:"SWEEPER_MNEMONIC_FILE"`
	KeyIndex     uint32 `envconfig:"SWEEPER_KEY_INDEX" default:"0"`

	Destination   string `envconfig:"SWEEPER_DESTINATION"`
	Asset         string `envconfig:"SWEEPER_ASSET" default:"native"`
	TokenContract string `envconfig:"SWEEPER_TOKEN_CONTRACT"`
	Reserve       string `envconfig:"SWEEPER_RESERVE" default:"0"`

	PollIntervalMS      int64  `envconfig:"SWEEPER_POLL_INTERVAL_MS" default:"3000"`
	FeeBumpPercent      int64  `envconfig:"SWEEPER_FEE_BUMP_PERCENT" default:"20"`
	MinPriorityFeeGwei  string `envconfig:"SWEEPER_MIN_PRIORITY_FEE_GWEI"`
	MinMaxFeeGwei       string `envconfig:"SWEEPER_MIN_MAX_FEE_GWEI"`
	SafetyMarginPercent int64  `envconfig:"SWEEPER_SAFETY_MARGIN_PERCENT" default:"12"`
	MaxAttempts         int    `envconfig:"SWEEPER_MAX_ATTEMPTS" default:"3"`
	EscalationStep      int64  `envconfig:"SWEEPER_ESCALATION_STEP" default:"20"`
	DustWei             string `envconfig:"SWEEPER_DUST_WEI" default:"1000000000000"`
	TokenDust           string `envconfig:"SWEEPER_TOKEN_DUST" default:"1"`

	RetryDelay        time.Duration `envconfig:"SWEEPER_RETRY_DELAY" default:"500ms"`
	ConfirmTimeout    time.Duration `envconfig:"SWEEPER_CONFIRM_TIMEOUT" default:"3m"`
	BlockPollInterval time.Duration `envconfig:"SWEEPER_BLOCK_POLL_INTERVAL" default:"2s"`
	HeartbeatInterval time.Duration `envconfig:"SWEEPER_HEARTBEAT_INTERVAL" default:"1m"`

	LogLevel  string `envconfig:"SWEEPER_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"SWEEPER_LOG_FORMAT" default:"text"`
	LogDir    string `envconfig:"SWEEPER_LOG_DIR"`

	DBPath     string `envconfig:"SWEEPER_DB_PATH"`
	StatusAddr string `envconfig:"SWEEPER_STATUS_ADDR"`
}

var privateKeyPattern = regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64}$`)

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values. Validation is left to the caller so
// command-line overrides can be applied first.
func Load() (*Config, error) {
	// godotenv does NOT override already-set env vars.
	envFiles := []string{".env"}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			if err := godotenv.Load(f); err != nil {
				slog.Warn("failed to load .env file", "file", f, "error", err)
			} else {
				slog.Info("loaded .env file", "file", f)
			}
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if err := validateRPCURL(c.RPCURL); err != nil {
		return err
	}
	if c.FallbackRPCURL != "" {
		if err := validateRPCURL(c.FallbackRPCURL); err != nil {
			return fmt.Errorf("fallback: %w", err)
		}
	}

	switch {
	case c.PrivateKey != "" && c.MnemonicFile != "":
		return fmt.Errorf("%w: set either a private key or a mnemonic file, not both", ErrInvalidConfig)
	case c.PrivateKey != "":
		if !privateKeyPattern.MatchString(c.PrivateKey) {
			return fmt.Errorf("%w: private key must be 64 hex characters", ErrInvalidKey)
		}
	case c.MnemonicFile == "":
		return fmt.Errorf("%w: a private key or mnemonic file is required", ErrInvalidKey)
	}

	if !common.IsHexAddress(c.Destination) {
		return fmt.Errorf("%w: %q", ErrInvalidDestination, c.Destination)
	}

	switch c.Asset {
	case AssetNative:
	case AssetToken:
		if !common.IsHexAddress(c.TokenContract) {
			return fmt.Errorf("%w: %q", ErrInvalidContract, c.TokenContract)
		}
	default:
		return fmt.Errorf("%w: asset must be %q or %q, got %q", ErrInvalidConfig, AssetNative, AssetToken, c.Asset)
	}

	if err := validateAmount("reserve", c.Reserve, false); err != nil {
		return err
	}
	if err := validateAmount("min priority fee", c.MinPriorityFeeGwei, true); err != nil {
		return err
	}
	if err := validateAmount("min max fee", c.MinMaxFeeGwei, true); err != nil {
		return err
	}
	if err := validateAmount("dust wei", c.DustWei, false); err != nil {
		return err
	}
	if err := validateAmount("token dust", c.TokenDust, false); err != nil {
		return err
	}

	if c.PollIntervalMS < 0 {
		return fmt.Errorf("%w: poll interval must be >= 0, got %d", ErrInvalidConfig, c.PollIntervalMS)
	}
	if c.FeeBumpPercent < 0 {
		return fmt.Errorf("%w: fee bump percent must be >= 0, got %d", ErrInvalidConfig, c.FeeBumpPercent)
	}
	if c.SafetyMarginPercent < 0 {
		return fmt.Errorf("%w: safety margin percent must be >= 0, got %d", ErrInvalidConfig, c.SafetyMarginPercent)
	}
	if c.EscalationStep <= 0 {
		return fmt.Errorf("%w: escalation step must be > 0, got %d", ErrInvalidConfig, c.EscalationStep)
	}
	if c.MaxAttempts < 1 || c.MaxAttempts > MaxSubmitAttempts {
		return fmt.Errorf("%w: max attempts must be 1-%d, got %d", ErrInvalidConfig, MaxSubmitAttempts, c.MaxAttempts)
	}
	if c.RPCRateLimit < 0 {
		return fmt.Errorf("%w: rpc rate limit must be >= 0, got %d", ErrInvalidConfig, c.RPCRateLimit)
	}
	if c.RetryDelay < 0 || c.HeartbeatInterval < 0 {
		return fmt.Errorf("%w: durations must be >= 0", ErrInvalidConfig)
	}
	if c.ConfirmTimeout <= 0 || c.BlockPollInterval <= 0 {
		return fmt.Errorf("%w: confirm timeout and block poll interval must be > 0", ErrInvalidConfig)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.LogLevel)
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return fmt.Errorf("%w: log format must be %q or %q, got %q", ErrInvalidConfig, LogFormatText, LogFormatJSON, c.LogFormat)
	}

	return nil
}

// PollInterval returns the poll timer period. Zero disables the timer.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// IsWebsocket reports whether the primary endpoint supports push subscriptions.
func (c *Config) IsWebsocket() bool {
	return strings.HasPrefix(c.RPCURL, "ws://") || strings.HasPrefix(c.RPCURL, "wss://")
}

func validateRPCURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: rpc url is required", ErrInvalidRPCURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidRPCURL, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidRPCURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidRPCURL, raw)
	}
	return nil
}

func validateAmount(name, raw string, optional bool) error {
	if raw == "" {
		if optional {
			return nil
		}
		return fmt.Errorf("%w: %s is required", ErrInvalidAmount, name)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("%w: %s %q: %s", ErrInvalidAmount, name, raw, err)
	}
	if d.IsNegative() {
		return fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalidAmount, name, raw)
	}
	return nil
}

package config

import (
	"errors"
	"testing"
	"time"
)

const (
	testKey  = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testDest = "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d"
)

func validConfig() *Config {
	return &Config{
		RPCURL:              "wss://rpc.example.org",
		PrivateKey:          testKey,
		Destination:         testDest,
		Asset:               AssetNative,
		Reserve:             "0.0001",
		PollIntervalMS:      3000,
		FeeBumpPercent:      20,
		SafetyMarginPercent: 12,
		MaxAttempts:         3,
		EscalationStep:      20,
		DustWei:             DefaultDustWei,
		TokenDust:           DefaultTokenDust,
		RPCRateLimit:        25,
		RetryDelay:          500 * time.Millisecond,
		ConfirmTimeout:      3 * time.Minute,
		BlockPollInterval:   2 * time.Second,
		HeartbeatInterval:   time.Minute,
		LogLevel:            "info",
		LogFormat:           LogFormatText,
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_ValidToken(t *testing.T) {
	cfg := validConfig()
	cfg.Asset = AssetToken
	cfg.TokenContract = "0x55d398326f99059fF775485246999027B3197955"
	cfg.PrivateKey = "0x" + testKey
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_ValidMnemonicFile(t *testing.T) {
	cfg := validConfig()
	cfg.PrivateKey = ""
	cfg.MnemonicFile = "/run/secrets/mnemonic"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   error
	}{
		{"missing rpc", func(c *Config) { c.RPCURL = "" }, ErrInvalidRPCURL},
		{"ftp rpc", func(c *Config) { c.RPCURL = "ftp://rpc.example.org" }, ErrInvalidRPCURL},
		{"bad fallback", func(c *Config) { c.FallbackRPCURL = "rpc.example.org" }, ErrInvalidRPCURL},
		{"short key", func(c *Config) { c.PrivateKey = "abcd" }, ErrInvalidKey},
		{"non-hex key", func(c *Config) { c.PrivateKey = "zz" + testKey[2:] }, ErrInvalidKey},
		{"no credential", func(c *Config) { c.PrivateKey = "" }, ErrInvalidKey},
		{"both credentials", func(c *Config) { c.MnemonicFile = "/tmp/m" }, ErrInvalidConfig},
		{"bad destination", func(c *Config) { c.Destination = "0x1234" }, ErrInvalidDestination},
		{"empty destination", func(c *Config) { c.Destination = "" }, ErrInvalidDestination},
		{"unknown asset", func(c *Config) { c.Asset = "nft" }, ErrInvalidConfig},
		{"token without contract", func(c *Config) { c.Asset = AssetToken }, ErrInvalidContract},
		{"negative reserve", func(c *Config) { c.Reserve = "-1" }, ErrInvalidAmount},
		{"garbage reserve", func(c *Config) { c.Reserve = "one" }, ErrInvalidAmount},
		{"bad floor", func(c *Config) { c.MinPriorityFeeGwei = "x" }, ErrInvalidAmount},
		{"negative poll", func(c *Config) { c.PollIntervalMS = -1 }, ErrInvalidConfig},
		{"negative bump", func(c *Config) { c.FeeBumpPercent = -5 }, ErrInvalidConfig},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, ErrInvalidConfig},
		{"zero step", func(c *Config) { c.EscalationStep = 0 }, ErrInvalidConfig},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, ErrInvalidConfig},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, ErrInvalidConfig},
		{"zero confirm timeout", func(c *Config) { c.ConfirmTimeout = 0 }, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error, got nil")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidate_ZeroPollIntervalAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.PollIntervalMS = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
	if cfg.PollInterval() != 0 {
		t.Errorf("PollInterval() = %v, want 0", cfg.PollInterval())
	}
}

func TestPollInterval(t *testing.T) {
	cfg := validConfig()
	cfg.PollIntervalMS = 1500
	if got := cfg.PollInterval(); got != 1500*time.Millisecond {
		t.Errorf("PollInterval() = %v, want 1.5s", got)
	}
}

func TestIsWebsocket(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"wss://rpc.example.org", true},
		{"ws://127.0.0.1:8546", true},
		{"https://rpc.example.org", false},
		{"http://127.0.0.1:8545", false},
	}

	for _, tt := range tests {
		cfg := &Config{RPCURL: tt.url}
		if got := cfg.IsWebsocket(); got != tt.want {
			t.Errorf("IsWebsocket(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SWEEPER_RPC_URL", "https://rpc.example.org")
	t.Setenv("SWEEPER_PRIVATE_KEY", testKey)
	t.Setenv("SWEEPER_DESTINATION", testDest)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Asset != AssetNative {
		t.Errorf("Asset = %q, want %q", cfg.Asset, AssetNative)
	}
	if cfg.SafetyMarginPercent != DefaultSafetyMarginPercent {
		t.Errorf("SafetyMarginPercent = %d, want %d", cfg.SafetyMarginPercent, DefaultSafetyMarginPercent)
	}
	if cfg.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("MaxAttempts = %d, want %d", cfg.MaxAttempts, DefaultMaxAttempts)
	}
	if cfg.RetryDelay != DefaultRetryDelay {
		t.Errorf("RetryDelay = %v, want %v", cfg.RetryDelay, DefaultRetryDelay)
	}
	if cfg.DustWei != DefaultDustWei {
		t.Errorf("DustWei = %q, want %q", cfg.DustWei, DefaultDustWei)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() on defaults error = %v", err)
	}
}

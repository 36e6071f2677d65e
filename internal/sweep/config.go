package sweep

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"

	"github.com/Fantasim/fcfsweep/internal/config"
	"github.com/Fantasim/fcfsweep/internal/models"
)

// Config is fixed for the lifetime of a Sweeper.
type Config struct {
	Account       common.Address
	Destination   common.Address
	Asset         models.AssetKind
	TokenContract common.Address
	Token         models.TokenMeta

	// Reserve and Dust are base units of the swept asset (wei for native).
	Reserve *big.Int
	Dust    *big.Int

	PollInterval      time.Duration // 0 disables the poll timer
	HeartbeatInterval time.Duration // 0 disables heartbeats

	FeeBumpPercent      int64
	MinPriorityFee      *big.Int // optional, wei
	MinMaxFee           *big.Int // optional, wei
	SafetyMarginPercent int64

	MaxAttempts    int
	EscalationStep int64
	RetryDelay     time.Duration
	ConfirmTimeout time.Duration

	Clock clockwork.Clock
}

// Validate checks the configuration and fills unset optional fields with defaults.
func (c *Config) Validate() error {
	if c.Account == (common.Address{}) {
		return fmt.Errorf("%w: account is required", config.ErrInvalidConfig)
	}
	if c.Destination == (common.Address{}) {
		return fmt.Errorf("%w: destination is required", config.ErrInvalidDestination)
	}
	if c.Destination == c.Account {
		return fmt.Errorf("%w: destination is the swept account", config.ErrInvalidDestination)
	}

	switch c.Asset {
	case models.AssetNative:
		if c.Token.Symbol == "" {
			c.Token = models.TokenMeta{Decimals: config.NativeDecimals, Symbol: config.NativeSymbol}
		}
	case models.AssetToken:
		if c.TokenContract == (common.Address{}) {
			return fmt.Errorf("%w: token contract is required for token sweeps", config.ErrInvalidContract)
		}
		if c.Token.Symbol == "" {
			c.Token = models.TokenMeta{Decimals: config.DefaultTokenDecimals, Symbol: config.DefaultTokenSymbol}
		}
	default:
		return fmt.Errorf("%w: unknown asset kind %q", config.ErrInvalidConfig, c.Asset)
	}

	if c.Reserve == nil {
		c.Reserve = new(big.Int)
	}
	if c.Reserve.Sign() < 0 {
		return fmt.Errorf("%w: reserve must be >= 0", config.ErrInvalidAmount)
	}
	if c.Dust == nil {
		if c.Asset == models.AssetNative {
			c.Dust, _ = new(big.Int).SetString(config.DefaultDustWei, 10)
		} else {
			c.Dust, _ = new(big.Int).SetString(config.DefaultTokenDust, 10)
		}
	}
	if c.Dust.Sign() < 0 {
		return fmt.Errorf("%w: dust threshold must be >= 0", config.ErrInvalidAmount)
	}

	if c.FeeBumpPercent < 0 {
		return fmt.Errorf("%w: fee bump percent must be >= 0, got %d", config.ErrInvalidConfig, c.FeeBumpPercent)
	}
	if c.SafetyMarginPercent < 0 {
		return fmt.Errorf("%w: safety margin percent must be >= 0, got %d", config.ErrInvalidConfig, c.SafetyMarginPercent)
	}
	for name, floor := range map[string]*big.Int{"min priority fee": c.MinPriorityFee, "min max fee": c.MinMaxFee} {
		if floor != nil && floor.Sign() < 0 {
			return fmt.Errorf("%w: %s must be >= 0", config.ErrInvalidAmount, name)
		}
	}

	if c.MaxAttempts == 0 {
		c.MaxAttempts = config.DefaultMaxAttempts
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("%w: max attempts must be >= 1, got %d", config.ErrInvalidConfig, c.MaxAttempts)
	}
	if c.EscalationStep == 0 {
		c.EscalationStep = config.DefaultEscalationStep
	}
	if c.EscalationStep < 0 {
		return fmt.Errorf("%w: escalation step must be > 0, got %d", config.ErrInvalidConfig, c.EscalationStep)
	}

	if c.PollInterval < 0 || c.HeartbeatInterval < 0 || c.RetryDelay < 0 || c.ConfirmTimeout < 0 {
		return fmt.Errorf("%w: intervals must be >= 0", config.ErrInvalidConfig)
	}
	if c.ConfirmTimeout == 0 {
		c.ConfirmTimeout = config.DefaultConfirmTimeout
	}

	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

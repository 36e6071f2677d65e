package config

import "time"

// Asset kinds
const (
	AssetNative = "native"
	AssetToken  = "token"
)

// BIP-44 Derivation Path: m/44'/60'/0'/0/N
const (
	BIP44Purpose = 44
	EVMCoinType  = 60
)

// Gas
const (
	NativeTransferGas        = 21_000
	TokenTransferGasFallback = 100_000

	// Token gas estimates are padded by 20%.
	TokenGasPadNumerator   = 120
	TokenGasPadDenominator = 100

	// Default tip when the node reports none: ceiling / 10.
	DefaultTipDivisor = 10

	// Legacy-only networks get a max fee of 2x base + tip.
	BaseFeeCeilingMultiplier = 2
)

// Sweep policy defaults
const (
	DefaultDustWei             = "1000000000000" // 0.000001 ETH
	DefaultTokenDust           = "1"
	DefaultSafetyMarginPercent = 12
	DefaultMaxAttempts         = 3
	DefaultEscalationStep      = 20
	MaxSubmitAttempts          = 20
	DefaultRetryDelay          = 500 * time.Millisecond
	DefaultConfirmTimeout      = 3 * time.Minute
	TriggerBufferLen           = 16
)

// Token metadata fallback
const (
	DefaultTokenDecimals = 18
	DefaultTokenSymbol   = "TOKEN"
	NativeDecimals       = 18
	NativeSymbol         = "ETH"
	GweiDecimals         = 9
)

// ERC-20 method selectors
const (
	ERC20TransferMethodID  = "a9059cbb" // transfer(address,uint256)
	ERC20BalanceOfMethodID = "70a08231" // balanceOf(address)
	ERC20DecimalsMethodID  = "313ce567" // decimals()
	ERC20SymbolMethodID    = "95d89b41" // symbol()

	// keccak256("Transfer(address,address,uint256)")
	ERC20TransferEventTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
)

// RPC
const (
	DialTimeout           = 15 * time.Second
	RPCCallTimeout        = 10 * time.Second
	ReceiptPollInterval   = 3 * time.Second
	ResubscribeDelay      = 5 * time.Second
	MaxResubscribeDelay   = 60 * time.Second
	SubscriptionBufferLen = 16

	// Limiter waits at or above this are logged with the RPC method.
	RPCThrottleLogThreshold = 100 * time.Millisecond
)

// Circuit Breaker
const (
	CircuitBreakerThreshold   = 5
	CircuitBreakerCooldown    = 15 * time.Second
	CircuitBreakerHalfOpenMax = 1

	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half_open"
)

// Logging
const (
	LogFormatText  = "text"
	LogFormatJSON  = "json"
	LogFilePrefix  = "fcfsweep-"
	LogMaxAgeDays  = 30
	LogTimeLayout  = "2006-01-02T15:04:05.000Z07:00"
	LogFileDateFmt = "2006-01-02"
)

// Status API
const (
	ServerReadTimeout  = 10 * time.Second
	ServerWriteTimeout = 30 * time.Second
	ServerIdleTimeout  = 60 * time.Second
	ShutdownTimeout    = 15 * time.Second
	DefaultEventsLimit = 50
	MaxEventsLimit     = 500
	RecentEventsKept   = 100
)

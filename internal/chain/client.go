package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/jonboulle/clockwork"

	"github.com/Fantasim/fcfsweep/internal/config"
	"github.com/Fantasim/fcfsweep/internal/models"
)

// ClientConfig tunes a Client.
type ClientConfig struct {
	ChainID             *big.Int
	DynamicFee          bool
	RateLimit           int // requests per second, 0 disables
	BlockPollInterval   time.Duration
	ReceiptPollInterval time.Duration
	Clock               clockwork.Clock
}

// Client is the network binding for one signing account. It reads chain state,
// prices and signs transfers, and broadcasts them.
type Client struct {
	eth        EthClient
	key        *ecdsa.PrivateKey
	account    common.Address
	chainID    *big.Int
	txSigner   types.Signer
	dynamicFee bool

	limiter     *rpcLimiter
	breaker     *CircuitBreaker
	blockPoll   time.Duration
	receiptPoll time.Duration
	clock       clockwork.Clock

	closers []func()
}

// NewClient wraps an EthClient. ChainID must be set.
func NewClient(eth EthClient, key *ecdsa.PrivateKey, cfg ClientConfig) *Client {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.BlockPollInterval <= 0 {
		cfg.BlockPollInterval = 2 * time.Second
	}
	if cfg.ReceiptPollInterval <= 0 {
		cfg.ReceiptPollInterval = config.ReceiptPollInterval
	}

	c := &Client{
		eth:         eth,
		key:         key,
		account:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:     cfg.ChainID,
		txSigner:    types.LatestSignerForChainID(cfg.ChainID),
		dynamicFee:  cfg.DynamicFee,
		breaker:     NewCircuitBreaker(config.CircuitBreakerThreshold, config.CircuitBreakerCooldown, cfg.Clock),
		blockPoll:   cfg.BlockPollInterval,
		receiptPoll: cfg.ReceiptPollInterval,
		clock:       cfg.Clock,
	}
	if cfg.RateLimit > 0 {
		c.limiter = newRPCLimiter(cfg.RateLimit)
	}

	slog.Info("chain client created",
		"account", c.account.Hex(),
		"chainID", c.chainID,
		"dynamicFee", c.dynamicFee,
		"rateLimit", cfg.RateLimit,
	)
	return c
}

// Dial connects to the primary (and optional fallback) endpoint, resolves the
// chain id and detects whether the network has a base fee.
func Dial(ctx context.Context, primaryURL, fallbackURL string, key *ecdsa.PrivateKey, cfg ClientConfig) (*Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, config.DialTimeout)
	defer cancel()

	primary, err := ethclient.DialContext(dialCtx, primaryURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	closers := []func(){primary.Close}

	var eth EthClient = primary
	if fallbackURL != "" {
		fallback, err := ethclient.DialContext(dialCtx, fallbackURL)
		if err != nil {
			slog.Warn("fallback rpc unavailable, continuing without it", "error", err)
			eth = NewFallbackEthClient(primary, nil)
		} else {
			closers = append(closers, fallback.Close)
			eth = NewFallbackEthClient(primary, fallback)
		}
	}

	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}

	chainID, err := primary.ChainID(dialCtx)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("query chain id: %w", err)
	}
	if cfg.ChainID != nil && cfg.ChainID.Sign() > 0 && cfg.ChainID.Cmp(chainID) != 0 {
		closeAll()
		return nil, fmt.Errorf("%w: configured %s, node reports %s", config.ErrChainIDMismatch, cfg.ChainID, chainID)
	}
	cfg.ChainID = chainID

	head, err := primary.HeaderByNumber(dialCtx, nil)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("query latest header: %w", err)
	}
	cfg.DynamicFee = head.BaseFee != nil

	slog.Info("connected to rpc",
		"chainID", chainID,
		"block", head.Number,
		"hasFallback", fallbackURL != "",
	)

	c := NewClient(eth, key, cfg)
	c.closers = closers
	return c, nil
}

// Close releases the underlying connections.
func (c *Client) Close() {
	for _, fn := range c.closers {
		fn()
	}
}

// Account returns the signing account.
func (c *Client) Account() common.Address {
	return c.account
}

// ChainID returns the chain id transactions are signed for.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// BreakerState exposes the circuit breaker state for status reporting.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}

// before gates one RPC call on the circuit breaker and the rate limit.
func (c *Client) before(ctx context.Context, method string) error {
	if !c.breaker.Allow() {
		return config.NewTransientError(config.ErrCircuitOpen)
	}
	if c.limiter == nil {
		return nil
	}
	waited, err := c.limiter.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%s: rate limit wait: %w", method, err)
	}
	if waited >= config.RPCThrottleLogThreshold {
		slog.Debug("rpc call throttled",
			"method", method,
			"waited", waited,
		)
	}
	return nil
}

func (c *Client) after(err error) error {
	err = classifyRPCError(err)
	if config.IsTransient(err) {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}
	return err
}

// BalanceAt returns the latest native balance of account.
func (c *Client) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	if err := c.before(ctx, "eth_getBalance"); err != nil {
		return nil, err
	}
	bal, err := c.eth.BalanceAt(ctx, account, nil)
	if err = c.after(err); err != nil {
		return nil, fmt.Errorf("balance of %s: %w", account.Hex(), err)
	}
	return bal, nil
}

// TokenBalanceAt returns the ERC-20 balance of account.
func (c *Client) TokenBalanceAt(ctx context.Context, contract, account common.Address) (*big.Int, error) {
	result, err := c.call(ctx, contract, EncodeERC20BalanceOf(account))
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s on %s: %w", account.Hex(), contract.Hex(), err)
	}
	bal, err := DecodeUint256(result)
	if err != nil {
		return nil, fmt.Errorf("balanceOf %s on %s: %w", account.Hex(), contract.Hex(), err)
	}
	return bal, nil
}

func (c *Client) call(ctx context.Context, contract common.Address, data []byte) ([]byte, error) {
	if err := c.before(ctx, "eth_call"); err != nil {
		return nil, err
	}
	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	return result, c.after(err)
}

// FeeSample reads the node's fee suggestion. Networks without a base fee, or
// nodes that do not implement the tip oracle, yield a LegacySample.
func (c *Client) FeeSample(ctx context.Context) (models.FeeSample, error) {
	if c.dynamicFee {
		sample, err := c.dynamicFeeSample(ctx)
		if err == nil {
			return sample, nil
		}
		slog.Debug("dynamic fee sample unavailable, using gas price", "error", err)
	}

	if err := c.before(ctx, "eth_gasPrice"); err != nil {
		return nil, err
	}
	price, err := c.eth.SuggestGasPrice(ctx)
	if err = c.after(err); err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}
	return models.LegacySample{GasPrice: price}, nil
}

func (c *Client) dynamicFeeSample(ctx context.Context) (models.FeeSample, error) {
	if err := c.before(ctx, "eth_maxPriorityFeePerGas"); err != nil {
		return nil, err
	}
	tip, err := c.eth.SuggestGasTipCap(ctx)
	if err = c.after(err); err != nil {
		return nil, fmt.Errorf("suggest gas tip cap: %w", err)
	}

	head, err := c.LatestBlock(ctx)
	if err != nil {
		return nil, err
	}
	if head.BaseFee == nil {
		return nil, fmt.Errorf("block %d has no base fee", head.Number)
	}

	// Same headroom as go-ethereum's bind package: two base fees plus the tip.
	ceiling := new(big.Int).Mul(head.BaseFee, big.NewInt(config.BaseFeeCeilingMultiplier))
	ceiling.Add(ceiling, tip)

	return models.EIP1559Sample{MaxFee: ceiling, PriorityFee: tip}, nil
}

// LatestBlock returns the head block number and base fee.
func (c *Client) LatestBlock(ctx context.Context) (models.BlockInfo, error) {
	if err := c.before(ctx, "eth_getBlockByNumber"); err != nil {
		return models.BlockInfo{}, err
	}
	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err = c.after(err); err != nil {
		return models.BlockInfo{}, fmt.Errorf("latest header: %w", err)
	}
	return blockInfo(head), nil
}

func blockInfo(h *types.Header) models.BlockInfo {
	info := models.BlockInfo{Time: h.Time}
	if h.Number != nil {
		info.Number = h.Number.Uint64()
	}
	if h.BaseFee != nil {
		info.BaseFee = new(big.Int).Set(h.BaseFee)
	}
	return info
}

// NonceAt returns the pending or confirmed nonce of account.
func (c *Client) NonceAt(ctx context.Context, account common.Address, tag models.NonceTag) (uint64, error) {
	if err := c.before(ctx, "eth_getTransactionCount"); err != nil {
		return 0, err
	}
	var (
		nonce uint64
		err   error
	)
	if tag == models.NoncePending {
		nonce, err = c.eth.PendingNonceAt(ctx, account)
	} else {
		nonce, err = c.eth.NonceAt(ctx, account, nil)
	}
	if err = c.after(err); err != nil {
		return 0, fmt.Errorf("nonce of %s: %w", account.Hex(), err)
	}
	return nonce, nil
}

// EstimateTokenTransferGas asks the node how much gas transfer(to, amount) needs.
func (c *Client) EstimateTokenTransferGas(ctx context.Context, contract, from, to common.Address, amount *big.Int) (uint64, error) {
	if err := c.before(ctx, "eth_estimateGas"); err != nil {
		return 0, err
	}
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &contract,
		Data: EncodeERC20Transfer(to, amount),
	})
	if err = c.after(err); err != nil {
		return 0, fmt.Errorf("estimate token transfer gas: %w", err)
	}
	return gas, nil
}

// SubmitNativeTransfer signs and broadcasts a plain value transfer. When the
// broadcast itself fails the signed hash is still returned with the error.
func (c *Client) SubmitNativeTransfer(ctx context.Context, req models.TransferRequest) (common.Hash, error) {
	gas := req.GasLimit
	if gas == 0 {
		gas = config.NativeTransferGas
	}
	tx := BuildTransfer(c.chainID, c.dynamicFee, req.Nonce, req.To, req.Amount, gas, nil, req.Bid)
	return c.signAndSend(ctx, tx)
}

// SubmitTokenTransfer signs and broadcasts an ERC-20 transfer(req.To, req.Amount).
// Like SubmitNativeTransfer it returns the signed hash on broadcast errors.
func (c *Client) SubmitTokenTransfer(ctx context.Context, contract common.Address, req models.TransferRequest) (common.Hash, error) {
	gas := req.GasLimit
	if gas == 0 {
		gas = config.TokenTransferGasFallback
	}
	data := EncodeERC20Transfer(req.To, req.Amount)
	tx := BuildTransfer(c.chainID, c.dynamicFee, req.Nonce, contract, big.NewInt(0), gas, data, req.Bid)
	return c.signAndSend(ctx, tx)
}

func (c *Client) signAndSend(ctx context.Context, tx *types.Transaction) (common.Hash, error) {
	signed, err := types.SignTx(tx, c.txSigner, c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	if err := c.before(ctx, "eth_sendRawTransaction"); err != nil {
		return common.Hash{}, err
	}
	err = c.eth.SendTransaction(ctx, signed)
	if IsAlreadyKnown(err) {
		slog.Info("node already holds transaction", "txHash", signed.Hash().Hex())
		err = nil
	}
	if err = c.after(err); err != nil {
		// The node may have taken the transaction before the error, so the
		// caller gets the hash to look it up.
		return signed.Hash(), fmt.Errorf("broadcast %s: %w", signed.Hash().Hex(), err)
	}

	slog.Info("transaction broadcast",
		"txHash", signed.Hash().Hex(),
		"nonce", signed.Nonce(),
		"to", signed.To().Hex(),
		"value", signed.Value(),
		"gas", signed.Gas(),
		"maxFeePerGas", signed.GasFeeCap(),
		"maxPriorityFeePerGas", signed.GasTipCap(),
	)
	return signed.Hash(), nil
}

// TokenMeta resolves decimals() and symbol(), falling back to defaults when
// the contract does not implement them.
func (c *Client) TokenMeta(ctx context.Context, contract common.Address) models.TokenMeta {
	meta := models.TokenMeta{Decimals: config.DefaultTokenDecimals, Symbol: config.DefaultTokenSymbol}

	if result, err := c.call(ctx, contract, erc20DecimalsSelector); err != nil {
		slog.Warn("token decimals() failed, using default", "contract", contract.Hex(), "default", meta.Decimals, "error", err)
	} else if d, err := DecodeUint256(result); err != nil || d.Cmp(big.NewInt(255)) > 0 {
		slog.Warn("token decimals() malformed, using default", "contract", contract.Hex(), "default", meta.Decimals)
	} else {
		meta.Decimals = uint8(d.Uint64())
	}

	if result, err := c.call(ctx, contract, erc20SymbolSelector); err != nil {
		slog.Warn("token symbol() failed, using default", "contract", contract.Hex(), "default", meta.Symbol, "error", err)
	} else if s, err := DecodeABIString(result); err != nil || s == "" {
		slog.Warn("token symbol() malformed, using default", "contract", contract.Hex(), "default", meta.Symbol)
	} else {
		meta.Symbol = s
	}

	slog.Info("token metadata resolved",
		"contract", contract.Hex(),
		"decimals", meta.Decimals,
		"symbol", meta.Symbol,
	)
	return meta
}

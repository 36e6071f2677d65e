package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var testChainID = big.NewInt(11155111)

// mockEthClient is a scriptable EthClient.
type mockEthClient struct {
	mu sync.Mutex

	chainID       *big.Int
	balance       *big.Int
	balanceErr    error
	nonce         uint64
	pendingNonce  uint64
	nonceErr      error
	gasPrice      *big.Int
	gasPriceErr   error
	tipCap        *big.Int
	tipCapErr     error
	header        *types.Header
	headerErr     error
	estimateGas   uint64
	estimateErr   error
	callResults   map[string][]byte // keyed by 4-byte selector hex
	callErr       error
	sendErr       error
	txPending     bool
	txErr         error
	receipt       *types.Receipt
	receiptErr    error
	receiptAfter  int // receipt calls returning NotFound before the receipt
	headSubErr    error
	logSubErr     error
	headSub       *mockSubscription
	logSub        *mockSubscription
	headCh        chan<- *types.Header
	logCh         chan<- types.Log
	sentTxs       []*types.Transaction
	receiptCalls  int
	headerCalls   int
	lastCallMsg   ethereum.CallMsg
	lastEstimate  ethereum.CallMsg
	lastFilterQry ethereum.FilterQuery
}

func (m *mockEthClient) ChainID(_ context.Context) (*big.Int, error) {
	return m.chainID, nil
}

func (m *mockEthClient) BalanceAt(_ context.Context, _ common.Address, _ *big.Int) (*big.Int, error) {
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	return new(big.Int).Set(m.balance), nil
}

func (m *mockEthClient) NonceAt(_ context.Context, _ common.Address, _ *big.Int) (uint64, error) {
	return m.nonce, m.nonceErr
}

func (m *mockEthClient) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	return m.pendingNonce, m.nonceErr
}

func (m *mockEthClient) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	if m.gasPriceErr != nil {
		return nil, m.gasPriceErr
	}
	return new(big.Int).Set(m.gasPrice), nil
}

func (m *mockEthClient) SuggestGasTipCap(_ context.Context) (*big.Int, error) {
	if m.tipCapErr != nil {
		return nil, m.tipCapErr
	}
	return new(big.Int).Set(m.tipCap), nil
}

func (m *mockEthClient) HeaderByNumber(_ context.Context, _ *big.Int) (*types.Header, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headerCalls++
	if m.headerErr != nil {
		return nil, m.headerErr
	}
	h := *m.header
	return &h, nil
}

func (m *mockEthClient) setHeader(h *types.Header) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.header = h
}

func (m *mockEthClient) EstimateGas(_ context.Context, msg ethereum.CallMsg) (uint64, error) {
	m.lastEstimate = msg
	return m.estimateGas, m.estimateErr
}

func (m *mockEthClient) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	m.lastCallMsg = msg
	if m.callErr != nil {
		return nil, m.callErr
	}
	if len(msg.Data) < 4 {
		return nil, nil
	}
	return m.callResults[common.Bytes2Hex(msg.Data[:4])], nil
}

func (m *mockEthClient) SendTransaction(_ context.Context, tx *types.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentTxs = append(m.sentTxs, tx)
	return m.sendErr
}

func (m *mockEthClient) TransactionByHash(_ context.Context, _ common.Hash) (*types.Transaction, bool, error) {
	if m.txErr != nil {
		return nil, false, m.txErr
	}
	return nil, m.txPending, nil
}

func (m *mockEthClient) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiptCalls++
	if m.receiptCalls <= m.receiptAfter {
		return nil, ethereum.NotFound
	}
	if m.receiptErr != nil {
		return nil, m.receiptErr
	}
	if m.receipt == nil {
		return nil, ethereum.NotFound
	}
	return m.receipt, nil
}

func (m *mockEthClient) SubscribeNewHead(_ context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	if m.headSubErr != nil {
		return nil, m.headSubErr
	}
	m.headCh = ch
	m.headSub = newMockSubscription()
	return m.headSub, nil
}

func (m *mockEthClient) SubscribeFilterLogs(_ context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	m.lastFilterQry = q
	if m.logSubErr != nil {
		return nil, m.logSubErr
	}
	m.logCh = ch
	m.logSub = newMockSubscription()
	return m.logSub, nil
}

type mockSubscription struct {
	errCh chan error
	once  sync.Once
}

func newMockSubscription() *mockSubscription {
	return &mockSubscription{errCh: make(chan error, 1)}
}

func (s *mockSubscription) Err() <-chan error { return s.errCh }

func (s *mockSubscription) Unsubscribe() {
	s.once.Do(func() { close(s.errCh) })
}

func newTestClient(eth EthClient, cfg ClientConfig) *Client {
	key, err := crypto.HexToECDSA(testKeyHex)
	if err != nil {
		panic(err)
	}
	if cfg.ChainID == nil {
		cfg.ChainID = testChainID
	}
	return NewClient(eth, key, cfg)
}

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

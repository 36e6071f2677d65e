package sweep

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/fcfsweep/internal/models"
	"github.com/Fantasim/fcfsweep/internal/report"
)

var (
	testAccount     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testDestination = common.HexToAddress("0x2222222222222222222222222222222222222222")
	testContract    = common.HexToAddress("0x3333333333333333333333333333333333333333")

	errMockRPC = errors.New("mock rpc failure")
)

func gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// mockNetwork is a scriptable Network. Fields are guarded by mu once a
// sweeper is running.
type mockNetwork struct {
	mu sync.Mutex

	balance         *big.Int
	balanceErr      error
	panicOnBalance  bool
	tokenBalance    *big.Int
	tokenBalanceErr error
	sample          models.FeeSample
	sampleErr       error
	block           models.BlockInfo
	blockErr        error
	pendingNonce    uint64
	confirmedNonce  uint64
	nonceErr        error
	tokenGas        uint64
	tokenGasErr     error

	submitErrs    []error       // consumed one per submit; nil entries succeed
	landedErrs    []error       // consumed first: the transfer reaches the pool but the call still fails
	broadcasts    []models.TransferRequest
	submitEntered chan struct{} // signalled when a submit starts, if set
	submitRelease chan struct{} // submit waits on it, if set
	submitted     []models.TransferRequest
	contracts     []common.Address

	txStatus    models.TxStatus
	txStatusErr error
	waitFn      func(ctx context.Context, txHash common.Hash) (models.Confirmation, error)

	feeCalls   int
	blockCalls int
	gasCalls   int

	headSubErr     error
	headSubs       chan chan<- models.BlockInfo
	headSubCount   int
	lastHeadSub    *mockSub
	transferSubErr error
	transferSubs   chan chan<- models.TransferEvent
}

func newMockNetwork() *mockNetwork {
	return &mockNetwork{
		balance:      new(big.Int),
		tokenBalance: new(big.Int),
		sample:       models.EIP1559Sample{MaxFee: gwei(50), PriorityFee: gwei(2)},
		block:        models.BlockInfo{Number: 100, BaseFee: gwei(10)},
		txStatus:     models.TxPending,
		tokenGas:     50_000,
		headSubs:     make(chan chan<- models.BlockInfo, 8),
		transferSubs: make(chan chan<- models.TransferEvent, 8),
	}
}

func (m *mockNetwork) BalanceAt(_ context.Context, _ common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.panicOnBalance {
		panic("balance exploded")
	}
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	return new(big.Int).Set(m.balance), nil
}

func (m *mockNetwork) TokenBalanceAt(_ context.Context, _, _ common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokenBalanceErr != nil {
		return nil, m.tokenBalanceErr
	}
	return new(big.Int).Set(m.tokenBalance), nil
}

func (m *mockNetwork) FeeSample(_ context.Context) (models.FeeSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feeCalls++
	return m.sample, m.sampleErr
}

func (m *mockNetwork) LatestBlock(_ context.Context) (models.BlockInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockCalls++
	return m.block, m.blockErr
}

func (m *mockNetwork) NonceAt(_ context.Context, _ common.Address, tag models.NonceTag) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nonceErr != nil {
		return 0, m.nonceErr
	}
	if tag == models.NoncePending {
		return m.pendingNonce, nil
	}
	return m.confirmedNonce, nil
}

func (m *mockNetwork) EstimateTokenTransferGas(_ context.Context, _, _, _ common.Address, _ *big.Int) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gasCalls++
	return m.tokenGas, m.tokenGasErr
}

func (m *mockNetwork) SubmitNativeTransfer(ctx context.Context, req models.TransferRequest) (common.Hash, error) {
	return m.submit(ctx, common.Address{}, req)
}

func (m *mockNetwork) SubmitTokenTransfer(ctx context.Context, contract common.Address, req models.TransferRequest) (common.Hash, error) {
	return m.submit(ctx, contract, req)
}

func (m *mockNetwork) submit(ctx context.Context, contract common.Address, req models.TransferRequest) (common.Hash, error) {
	m.mu.Lock()
	entered, release := m.submitEntered, m.submitRelease
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return common.Hash{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.landedErrs) > 0 {
		err := m.landedErrs[0]
		m.landedErrs = m.landedErrs[1:]
		m.broadcasts = append(m.broadcasts, req)
		m.pendingNonce++
		return common.BigToHash(big.NewInt(int64(1000 + len(m.broadcasts)))), err
	}

	var err error
	if len(m.submitErrs) > 0 {
		err = m.submitErrs[0]
		m.submitErrs = m.submitErrs[1:]
	}
	if err != nil {
		return common.Hash{}, err
	}
	m.submitted = append(m.submitted, req)
	m.broadcasts = append(m.broadcasts, req)
	m.contracts = append(m.contracts, contract)
	return common.BigToHash(big.NewInt(int64(len(m.submitted)))), nil
}

func (m *mockNetwork) TransactionStatus(_ context.Context, _ common.Hash) (models.TxStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txStatus, m.txStatusErr
}

func (m *mockNetwork) WaitMined(ctx context.Context, txHash common.Hash) (models.Confirmation, error) {
	m.mu.Lock()
	fn := m.waitFn
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, txHash)
	}
	<-ctx.Done()
	return models.Confirmation{}, ctx.Err()
}

func (m *mockNetwork) SubscribeNewBlocks(_ context.Context, ch chan<- models.BlockInfo) (ethereum.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headSubCount++
	if m.headSubErr != nil {
		return nil, m.headSubErr
	}
	m.lastHeadSub = newMockSub()
	m.headSubs <- ch
	return m.lastHeadSub, nil
}

func (m *mockNetwork) SubscribeIncomingTransfers(_ context.Context, _, _ common.Address, ch chan<- models.TransferEvent) (ethereum.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transferSubErr != nil {
		return nil, m.transferSubErr
	}
	m.transferSubs <- ch
	return newMockSub(), nil
}

func (m *mockNetwork) submissions() []models.TransferRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TransferRequest(nil), m.submitted...)
}

// broadcastLog lists every transfer that reached the pool, including those
// whose submit call failed.
func (m *mockNetwork) broadcastLog() []models.TransferRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TransferRequest(nil), m.broadcasts...)
}

func (m *mockNetwork) set(fn func(m *mockNetwork)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

type mockSub struct {
	errCh chan error
	once  sync.Once
}

func newMockSub() *mockSub {
	return &mockSub{errCh: make(chan error, 1)}
}

func (s *mockSub) Unsubscribe() {
	s.once.Do(func() { close(s.errCh) })
}

func (s *mockSub) Err() <-chan error {
	return s.errCh
}

// recordingReporter keeps every event it is given.
type recordingReporter struct {
	mu     sync.Mutex
	events []report.Event
}

func (r *recordingReporter) Report(ev report.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingReporter) byKind(k report.Kind) []report.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []report.Event
	for _, ev := range r.events {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

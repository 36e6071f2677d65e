package sweep

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Fantasim/fcfsweep/internal/models"
)

// Network is everything the sweeper needs from the chain. chain.Client
// implements it against a JSON-RPC endpoint.
type Network interface {
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalanceAt(ctx context.Context, contract, account common.Address) (*big.Int, error)
	FeeSample(ctx context.Context) (models.FeeSample, error)
	LatestBlock(ctx context.Context) (models.BlockInfo, error)
	NonceAt(ctx context.Context, account common.Address, tag models.NonceTag) (uint64, error)
	EstimateTokenTransferGas(ctx context.Context, contract, from, to common.Address, amount *big.Int) (uint64, error)

	// The submit methods return the signed hash alongside a broadcast error
	// when signing succeeded; a zero hash means nothing left the process.
	SubmitNativeTransfer(ctx context.Context, req models.TransferRequest) (common.Hash, error)
	SubmitTokenTransfer(ctx context.Context, contract common.Address, req models.TransferRequest) (common.Hash, error)

	// TransactionStatus reports whether a transaction is mined, still in the
	// node's pool, or unknown to it.
	TransactionStatus(ctx context.Context, txHash common.Hash) (models.TxStatus, error)
	WaitMined(ctx context.Context, txHash common.Hash) (models.Confirmation, error)

	SubscribeNewBlocks(ctx context.Context, ch chan<- models.BlockInfo) (ethereum.Subscription, error)
	SubscribeIncomingTransfers(ctx context.Context, contract, account common.Address, ch chan<- models.TransferEvent) (ethereum.Subscription, error)
}

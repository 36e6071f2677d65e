package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Fantasim/fcfsweep/internal/config"
	"github.com/Fantasim/fcfsweep/internal/models"
)

func (c *Client) receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if err := c.before(ctx, "eth_getTransactionReceipt"); err != nil {
		return nil, err
	}
	r, err := c.eth.TransactionReceipt(ctx, txHash)
	return r, c.after(err)
}

// TransactionStatus reports whether txHash is mined, still known to the node, or gone.
func (c *Client) TransactionStatus(ctx context.Context, txHash common.Hash) (models.TxStatus, error) {
	_, err := c.receipt(ctx, txHash)
	if err == nil {
		return models.TxMined, nil
	}
	if !errors.Is(err, ethereum.NotFound) {
		return "", fmt.Errorf("query receipt for %s: %w", txHash.Hex(), err)
	}

	if err := c.before(ctx, "eth_getTransactionByHash"); err != nil {
		return "", err
	}
	_, isPending, err := c.eth.TransactionByHash(ctx, txHash)
	err = c.after(err)
	switch {
	case errors.Is(err, ethereum.NotFound):
		return models.TxAbsent, nil
	case err != nil:
		return "", fmt.Errorf("query transaction %s: %w", txHash.Hex(), err)
	case isPending:
		return models.TxPending, nil
	default:
		// Included but the receipt is not indexed yet.
		return models.TxPending, nil
	}
}

// WaitMined polls for a receipt until the transaction is mined or ctx expires.
// A reverted transaction returns its Confirmation together with ErrTxReverted.
func (c *Client) WaitMined(ctx context.Context, txHash common.Hash) (models.Confirmation, error) {
	slog.Debug("waiting for receipt", "txHash", txHash.Hex())

	for {
		receipt, err := c.receipt(ctx, txHash)
		if err == nil {
			conf := models.Confirmation{
				TxHash:   txHash,
				GasUsed:  receipt.GasUsed,
				Reverted: receipt.Status == types.ReceiptStatusFailed,
			}
			if receipt.BlockNumber != nil {
				conf.BlockNumber = receipt.BlockNumber.Uint64()
			}

			slog.Info("receipt received",
				"txHash", txHash.Hex(),
				"status", receipt.Status,
				"blockNumber", conf.BlockNumber,
				"gasUsed", receipt.GasUsed,
			)

			if conf.Reverted {
				return conf, fmt.Errorf("%w: tx %s reverted in block %d", config.ErrTxReverted, txHash.Hex(), conf.BlockNumber)
			}
			return conf, nil
		}

		if ctx.Err() != nil {
			return models.Confirmation{}, fmt.Errorf("%w: tx %s not mined: %s", config.ErrReceiptTimeout, txHash.Hex(), ctx.Err())
		}
		if !errors.Is(err, ethereum.NotFound) && !config.IsTransient(err) {
			return models.Confirmation{}, fmt.Errorf("query receipt for %s: %w", txHash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return models.Confirmation{}, fmt.Errorf("%w: tx %s not mined: %s", config.ErrReceiptTimeout, txHash.Hex(), ctx.Err())
		case <-c.clock.After(c.receiptPoll):
			slog.Debug("receipt not ready, polling again", "txHash", txHash.Hex())
		}
	}
}

package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/Fantasim/fcfsweep/internal/config"
	"github.com/Fantasim/fcfsweep/internal/models"
)

// SubscribeNewBlocks delivers new head blocks to ch. HTTP endpoints cannot push
// notifications, so for them the head is polled every BlockPollInterval instead.
func (c *Client) SubscribeNewBlocks(ctx context.Context, ch chan<- models.BlockInfo) (ethereum.Subscription, error) {
	headers := make(chan *types.Header, config.SubscriptionBufferLen)
	sub, err := c.eth.SubscribeNewHead(ctx, headers)
	if err != nil {
		if errors.Is(err, rpc.ErrNotificationsUnsupported) {
			slog.Info("endpoint has no push notifications, polling for new blocks",
				"interval", c.blockPoll,
			)
			return c.pollNewBlocks(ch), nil
		}
		return nil, fmt.Errorf("subscribe new heads: %w", err)
	}

	slog.Debug("subscribed to new heads")

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case h := <-headers:
				select {
				case ch <- blockInfo(h):
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

func (c *Client) pollNewBlocks(ch chan<- models.BlockInfo) ethereum.Subscription {
	return event.NewSubscription(func(quit <-chan struct{}) error {
		ticker := c.clock.NewTicker(c.blockPoll)
		defer ticker.Stop()

		var last uint64
		for {
			select {
			case <-quit:
				return nil
			case <-ticker.Chan():
			}

			ctx, cancel := context.WithTimeout(context.Background(), config.RPCCallTimeout)
			info, err := c.LatestBlock(ctx)
			cancel()
			if err != nil {
				slog.Debug("head poll failed", "error", err)
				continue
			}
			if info.Number <= last {
				continue
			}
			last = info.Number

			select {
			case ch <- info:
			case <-quit:
				return nil
			}
		}
	})
}

// SubscribeIncomingTransfers delivers ERC-20 Transfer logs of contract whose
// recipient is account.
func (c *Client) SubscribeIncomingTransfers(ctx context.Context, contract, account common.Address, ch chan<- models.TransferEvent) (ethereum.Subscription, error) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{contract},
		Topics: [][]common.Hash{
			{transferEventTopic},
			nil,
			{common.BytesToHash(account.Bytes())},
		},
	}

	logs := make(chan types.Log, config.SubscriptionBufferLen)
	sub, err := c.eth.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return nil, fmt.Errorf("subscribe transfer logs: %w", err)
	}

	slog.Debug("subscribed to incoming transfers",
		"contract", contract.Hex(),
		"account", account.Hex(),
	)

	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-logs:
				if l.Removed {
					continue
				}
				ev, ok := DecodeTransferLog(l)
				if !ok {
					continue
				}
				select {
				case ch <- ev:
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

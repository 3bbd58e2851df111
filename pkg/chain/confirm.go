// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	ethereum "github.com/luxfi/geth"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	luxlog "github.com/luxfi/log"
)

// ConfirmConfig bounds how long a transaction may take to become final.
type ConfirmConfig struct {
	// Confirmations counts the inclusion block, so 1 means "mined".
	// 0 behaves like 1.
	Confirmations uint64
	// Timeout bounds a single wait attempt.
	Timeout time.Duration
	// Retries is the number of extra attempts after the first timeout.
	Retries uint
	// PollInterval is the delay between receipt and head lookups.
	PollInterval time.Duration
	// InitialBackoff is the first delay between attempts.
	InitialBackoff time.Duration
}

// Confirmer waits for transactions to reach a number of confirmations. It
// never resubmits: every attempt waits on the same hash.
type Confirmer struct {
	backend Backend
	cfg     ConfirmConfig
	log     luxlog.Logger
}

func NewConfirmer(backend Backend, cfg ConfirmConfig, log luxlog.Logger) *Confirmer {
	if log == nil {
		log = luxlog.Noop()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = cfg.PollInterval
	}
	return &Confirmer{backend: backend, cfg: cfg, log: log}
}

// Wait returns the receipt of txHash once it has enough confirmations.
// It fails with ErrTransactionReverted on a failed receipt and with
// ErrConfirmationTimeout once all attempts time out.
func (c *Confirmer) Wait(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialBackoff
	bo.MaxInterval = 10 * c.cfg.InitialBackoff

	attempt := 0
	operation := func() (*types.Receipt, error) {
		attempt++
		receipt, err := c.waitOnce(ctx, txHash)
		switch {
		case err == nil:
			return receipt, nil
		case errors.Is(err, ErrConfirmationTimeout):
			c.log.Warn("confirmation attempt timed out",
				luxlog.Stringer("tx", txHash),
				luxlog.Int("attempt", attempt),
				luxlog.Uint("retries", c.cfg.Retries),
			)
			return nil, err
		default:
			return nil, backoff.Permanent(err)
		}
	}

	maxElapsed := time.Duration(c.cfg.Retries+1) * (c.cfg.Timeout + bo.MaxInterval)
	receipt, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.cfg.Retries+1),
		backoff.WithMaxElapsedTime(maxElapsed),
	)
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Confirmer) waitOnce(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var (
		attemptCtx context.Context
		cancel     context.CancelFunc
	)
	if c.cfg.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
	} else {
		attemptCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	required := c.cfg.Confirmations
	if required == 0 {
		required = 1
	}
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.poll(attemptCtx, txHash, required)
		if err != nil || receipt != nil {
			if err != nil && attemptCtx.Err() != nil && ctx.Err() == nil {
				return nil, fmt.Errorf("%w: tx %s", ErrConfirmationTimeout, txHash)
			}
			return receipt, err
		}
		select {
		case <-attemptCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: tx %s after %s", ErrConfirmationTimeout, txHash, c.cfg.Timeout)
		case <-ticker.C:
		}
	}
}

// poll returns (nil, nil) while the tx still needs confirmations.
func (c *Confirmer) poll(ctx context.Context, txHash common.Hash, required uint64) (*types.Receipt, error) {
	receipt, err := c.backend.TransactionReceipt(ctx, txHash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt for %s: %w", txHash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: tx %s in block %s", ErrTransactionReverted, txHash, receipt.BlockNumber)
	}
	if required <= 1 {
		return receipt, nil
	}
	head, err := c.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get block number: %w", err)
	}
	mined := receipt.BlockNumber.Uint64()
	var have uint64
	if head >= mined {
		have = head - mined + 1
	}
	if have >= required {
		return receipt, nil
	}
	c.log.Debug("waiting for confirmations",
		luxlog.Stringer("tx", txHash),
		luxlog.Uint64("have", have),
		luxlog.Uint64("need", required),
	)
	return nil, nil
}

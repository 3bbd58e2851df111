// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
)

var (
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrConfirmationTimeout = errors.New("timed out waiting for confirmations")
	ErrChainIDMismatch     = errors.New("chain id mismatch")
)

// Backend is the chain access a deployment needs. Deploy and Transact return
// once the transaction is accepted by the node, not when it is mined.
// TransactionReceipt returns ethereum.NotFound while the tx is pending.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Deploy(ctx context.Context, code []byte) (*types.Transaction, common.Address, error)
	Transact(ctx context.Context, to common.Address, calldata []byte) (*types.Transaction, error)
	Call(ctx context.Context, to common.Address, calldata []byte) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// CheckChainID fails with ErrChainIDMismatch unless the backend serves expected.
func CheckChainID(ctx context.Context, b Backend, expected uint64) error {
	id, err := b.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID: %w", err)
	}
	if !id.IsUint64() || id.Uint64() != expected {
		return fmt.Errorf("%w: expected %d, got %s", ErrChainIDMismatch, expected, id)
	}
	return nil
}

// TransactionError wraps err with the hash of tx, or notes that tx was never
// submitted.
func TransactionError(tx *types.Transaction, err error, msg string, args ...interface{}) error {
	msgSuffix := ": %w"
	if tx != nil {
		msgSuffix += fmt.Sprintf(" (txHash=%s)", tx.Hash().String())
	} else {
		msgSuffix += " (tx failed to be submitted)"
	}
	args = append(args, err)
	return fmt.Errorf(msg+msgSuffix, args...)
}

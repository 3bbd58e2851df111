// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mocks

import (
	"context"
	"errors"
	"math/big"
	"sync"

	ethereum "github.com/luxfi/geth"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/crypto"
)

var ErrCallNotHandled = errors.New("mock chain: call not handled")

// Submission is one transaction the fake chain accepted.
type Submission struct {
	Tx       *types.Transaction
	To       *common.Address
	Data     []byte
	Address  common.Address
	Block    uint64
	Reverted bool
}

// Chain is an in-memory EVM stand-in. Every accepted transaction is mined
// in its own block; addresses follow the CREATE rule for From.
type Chain struct {
	From common.Address
	ID   *big.Int

	// Revert decides whether a submission fails on chain.
	Revert func(to *common.Address, data []byte) bool
	// Reject makes submission itself fail, before a tx exists.
	Reject func(to *common.Address, data []byte) error
	// CallHandler answers read-only calls.
	CallHandler func(to common.Address, data []byte) ([]byte, error)
	// ReceiptDelay hides each receipt for this many lookups.
	ReceiptDelay int
	// NeverMine hides receipts forever.
	NeverMine bool
	// AutoAdvance mines an empty block on every head lookup.
	AutoAdvance bool

	mu          sync.Mutex
	nonce       uint64
	head        uint64
	submissions []Submission
	receipts    map[common.Hash]*types.Receipt
	lookups     map[common.Hash]int
	calls       int
	held        bool
}

func NewChain(chainID uint64) *Chain {
	return &Chain{
		From:     common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"),
		ID:       new(big.Int).SetUint64(chainID),
		receipts: map[common.Hash]*types.Receipt{},
		lookups:  map[common.Hash]int{},
	}
}

func (c *Chain) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.ID), nil
}

func (c *Chain) BlockNumber(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.AutoAdvance {
		c.head++
	}
	return c.head, nil
}

func (c *Chain) Deploy(ctx context.Context, code []byte) (*types.Transaction, common.Address, error) {
	sub, err := c.submit(ctx, nil, code)
	if err != nil {
		return nil, common.Address{}, err
	}
	return sub.Tx, sub.Address, nil
}

func (c *Chain) Transact(ctx context.Context, to common.Address, calldata []byte) (*types.Transaction, error) {
	sub, err := c.submit(ctx, &to, calldata)
	if err != nil {
		return nil, err
	}
	return sub.Tx, nil
}

func (c *Chain) submit(_ context.Context, to *common.Address, data []byte) (Submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Reject != nil {
		if err := c.Reject(to, data); err != nil {
			return Submission{}, err
		}
	}
	nonce := c.nonce
	c.nonce++
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Gas:      1_000_000,
		GasPrice: big.NewInt(1),
		Data:     common.CopyBytes(data),
	})
	c.head++
	sub := Submission{
		Tx:    tx,
		To:    to,
		Data:  common.CopyBytes(data),
		Block: c.head,
	}
	if to == nil {
		sub.Address = crypto.CreateAddress(c.From, nonce)
	}
	if c.Revert != nil && c.Revert(to, data) {
		sub.Reverted = true
	}
	status := types.ReceiptStatusSuccessful
	if sub.Reverted {
		status = types.ReceiptStatusFailed
	}
	c.receipts[tx.Hash()] = &types.Receipt{
		Status:          status,
		TxHash:          tx.Hash(),
		BlockNumber:     new(big.Int).SetUint64(sub.Block),
		ContractAddress: sub.Address,
	}
	c.submissions = append(c.submissions, sub)
	return sub, nil
}

func (c *Chain) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	receipt, ok := c.receipts[txHash]
	if !ok || c.NeverMine || c.held {
		return nil, ethereum.NotFound
	}
	if c.lookups[txHash] < c.ReceiptDelay {
		c.lookups[txHash]++
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (c *Chain) Call(_ context.Context, to common.Address, calldata []byte) ([]byte, error) {
	c.mu.Lock()
	c.calls++
	handler := c.CallHandler
	c.mu.Unlock()
	if handler == nil {
		return nil, ErrCallNotHandled
	}
	return handler(to, calldata)
}

// Submissions returns every accepted transaction in order.
func (c *Chain) Submissions() []Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Submission(nil), c.submissions...)
}

// Deployments counts contract creations.
func (c *Chain) Deployments() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.submissions {
		if s.To == nil {
			n++
		}
	}
	return n
}

// Calls counts read-only calls.
func (c *Chain) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// HoldReceipts hides every receipt until ReleaseReceipts is called.
func (c *Chain) HoldReceipts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held = true
}

func (c *Chain) ReleaseReceipts() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.held = false
}

// Mine adds n empty blocks.
func (c *Chain) Mine(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.head += n
}

// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	ethereum "github.com/luxfi/geth"
	"github.com/luxfi/geth/accounts/abi/bind"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/core/types"
	"github.com/luxfi/geth/crypto"
	"github.com/luxfi/geth/ethclient"
	luxlog "github.com/luxfi/log"

	"github.com/luxfi/dexstack/pkg/key"
)

// gas estimates get this much headroom, in percent
const gasHeadroom = 20

// Client talks to an EVM node over JSON-RPC and signs with one deployer key.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	auth    *bind.TransactOpts
	log     luxlog.Logger

	// submissions are serialized so pending nonces never collide
	submitMu sync.Mutex
}

// Dial connects to rpcURL and checks that it serves expectedChainID.
func Dial(ctx context.Context, rpcURL string, expectedChainID uint64, signer *key.Signer, log luxlog.Logger) (*Client, error) {
	if log == nil {
		log = luxlog.Noop()
	}
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC (%s): %w", rpcURL, err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	if !chainID.IsUint64() || chainID.Uint64() != expectedChainID {
		eth.Close()
		return nil, fmt.Errorf("%w: expected %d, got %s", ErrChainIDMismatch, expectedChainID, chainID)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(signer.PrivateKey(), chainID)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	return &Client{
		eth:     eth,
		chainID: chainID,
		auth:    auth,
		log:     log.New("chainId", chainID.String(), "from", auth.From.Hex()),
	}, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) From() common.Address {
	return c.auth.From
}

func (c *Client) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

func (c *Client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return c.eth.TransactionReceipt(ctx, txHash)
}

func (c *Client) Call(ctx context.Context, to common.Address, calldata []byte) ([]byte, error) {
	return c.eth.CallContract(ctx, ethereum.CallMsg{From: c.auth.From, To: &to, Data: calldata}, nil)
}

// Deploy submits a contract creation and returns the address it will have.
func (c *Client) Deploy(ctx context.Context, code []byte) (*types.Transaction, common.Address, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	nonce, err := c.eth.PendingNonceAt(ctx, c.auth.From)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	tx, err := c.send(ctx, nonce, nil, code)
	if err != nil {
		return tx, common.Address{}, err
	}
	addr := crypto.CreateAddress(c.auth.From, nonce)
	c.log.Debug("deployment submitted", luxlog.Stringer("tx", tx.Hash()), luxlog.Stringer("address", addr))
	return tx, addr, nil
}

// Transact submits a call to to.
func (c *Client) Transact(ctx context.Context, to common.Address, calldata []byte) (*types.Transaction, error) {
	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	nonce, err := c.eth.PendingNonceAt(ctx, c.auth.From)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}
	tx, err := c.send(ctx, nonce, &to, calldata)
	if err != nil {
		return tx, err
	}
	c.log.Debug("transaction submitted", luxlog.Stringer("tx", tx.Hash()), luxlog.Stringer("to", to))
	return tx, nil
}

func (c *Client) send(ctx context.Context, nonce uint64, to *common.Address, data []byte) (*types.Transaction, error) {
	gas, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: c.auth.From, To: to, Data: data})
	if err != nil {
		// a failing estimate means the call would revert
		return nil, fmt.Errorf("%w: gas estimation failed: %w", ErrTransactionReverted, err)
	}
	gas += gas * gasHeadroom / 100

	tx, err := c.buildTx(ctx, nonce, to, gas, data)
	if err != nil {
		return nil, err
	}
	signed, err := c.auth.Signer(c.auth.From, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %w", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, TransactionError(signed, err, "failed to send transaction")
	}
	return signed, nil
}

func (c *Client) buildTx(ctx context.Context, nonce uint64, to *common.Address, gas uint64, data []byte) (*types.Transaction, error) {
	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}
	if header.BaseFee == nil {
		gasPrice, err := c.eth.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			To:       to,
			Gas:      gas,
			GasPrice: gasPrice,
			Data:     data,
		}), nil
	}
	tipCap, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to suggest gas tip cap: %w", err)
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(header.BaseFee, big.NewInt(2)), tipCap)
	return types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		To:        to,
		Gas:       gas,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Data:      data,
	}), nil
}

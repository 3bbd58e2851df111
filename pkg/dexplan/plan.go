// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dexplan declares the steps that bring up the DEX: mock tokens on
// development networks, the factory, the manager, one initialized pool and
// the quoter.
package dexplan

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/dexstack/pkg/constants"
	"github.com/luxfi/dexstack/pkg/pipeline"
	"github.com/luxfi/dexstack/pkg/pricemath"
	"github.com/luxfi/dexstack/pkg/registry"
)

// artifact names
const (
	WETH    = "WETH"
	USDC    = "USDC"
	Factory = "UniswapV3Factory"
	Manager = "UniswapV3Manager"
	Pool    = "UniswapV3Pool"
	Quoter  = "UniswapV3Quoter"
)

// compiled contract names
const (
	ERC20Contract   = "ERC20Mintable"
	FactoryContract = "UniswapV3Factory"
	ManagerContract = "UniswapV3Manager"
	PoolContract    = "UniswapV3Pool"
	QuoterContract  = "UniswapV3Quoter"
)

const DefaultTickSpacing = 60

var ErrNoTokenOwner = errors.New("token owner address is required")

var (
	ether      = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	wethSupply = new(big.Int).Mul(big.NewInt(1_000), ether)
	usdcSupply = new(big.Int).Mul(big.NewInt(1_000_000), ether)
)

// Params are the per-run inputs of the plan.
type Params struct {
	// TokenOwner receives the minted mock token supply.
	TokenOwner common.Address
	// Price is the initial pool price in token1 per token0.
	Price       *big.Rat
	TickSpacing int
}

// Plan is the built step list plus the price it initializes the pool at.
type Plan struct {
	Steps []pipeline.Step
	Price pricemath.Encoding
}

// DefaultParams returns the parameters of the reference deployment.
func DefaultParams(owner common.Address) Params {
	price, _ := pricemath.ParsePrice(constants.DefaultInitialPrice)
	return Params{
		TokenOwner:  owner,
		Price:       price,
		TickSpacing: DefaultTickSpacing,
	}
}

// Build encodes the initial price and returns the steps. Price problems are
// reported here, before any transaction can be sent.
func Build(p Params) (Plan, error) {
	if p.TokenOwner == (common.Address{}) {
		return Plan{}, ErrNoTokenOwner
	}
	enc, err := pricemath.NewEncoder(p.TickSpacing)
	if err != nil {
		return Plan{}, err
	}
	price, err := enc.Encode(p.Price)
	if err != nil {
		return Plan{}, err
	}
	spacing := big.NewInt(int64(p.TickSpacing))
	mocks := []string{constants.MocksTag}

	steps := []pipeline.Step{
		{
			ID:       "deploy-weth",
			Tags:     mocks,
			Produces: []string{WETH},
			Action:   pipeline.Deploy(ERC20Contract, pipeline.Args("Ether", "ETH")),
		},
		{
			ID:     "mint-weth",
			Tags:   mocks,
			Action: pipeline.Call(WETH, "mint", pipeline.Args(p.TokenOwner, wethSupply)),
		},
		{
			ID:       "deploy-usdc",
			Tags:     mocks,
			Produces: []string{USDC},
			Action:   pipeline.Deploy(ERC20Contract, pipeline.Args("USDC", "USDC")),
		},
		{
			ID:     "mint-usdc",
			Tags:   mocks,
			Action: pipeline.Call(USDC, "mint", pipeline.Args(p.TokenOwner, usdcSupply)),
		},
		{
			ID:       "deploy-factory",
			Produces: []string{Factory},
			Action:   pipeline.Deploy(FactoryContract, nil),
		},
		{
			ID:       "deploy-manager",
			Produces: []string{Manager},
			Requires: []string{Factory},
			Action:   pipeline.Deploy(ManagerContract, addressArgs([]string{Factory})),
		},
		{
			ID:       "init-pool",
			Requires: []string{WETH, USDC},
			Action: pipeline.Call(Manager, "createAndInitializePoolIfNecessary",
				addressArgs([]string{WETH, USDC}, spacing, price.SqrtPriceX96)),
		},
		{
			ID:       "resolve-pool",
			Produces: []string{Pool},
			Requires: []string{WETH, USDC},
			After:    []string{"init-pool"},
			Action:   pipeline.Resolve(Factory, "pools", addressArgs([]string{WETH, USDC}, spacing), PoolContract),
		},
		{
			ID:       "deploy-quoter",
			Produces: []string{Quoter},
			Requires: []string{Factory},
			Action:   pipeline.Deploy(QuoterContract, addressArgs([]string{Factory})),
		},
	}
	return Plan{Steps: steps, Price: price}, nil
}

// addressArgs reads names from the registry as addresses and appends the
// fixed values after them.
func addressArgs(names []string, values ...interface{}) pipeline.ArgsBuilder {
	return func(snap registry.Snapshot) ([]interface{}, error) {
		args := make([]interface{}, 0, len(names)+len(values))
		for _, name := range names {
			addr, err := snap.Address(name)
			if err != nil {
				return nil, fmt.Errorf("argument %s: %w", name, err)
			}
			args = append(args, addr)
		}
		return append(args, values...), nil
	}
}

// UIAliases names the exported entries the frontend reads.
func UIAliases() registry.UIAliases {
	return registry.UIAliases{
		Addresses: map[string]string{
			"token0Address":  WETH,
			"token1Address":  USDC,
			"poolAddress":    Pool,
			"managerAddress": Manager,
			"quoterAddress":  Quoter,
		},
		ABIs: map[string]string{
			"ERC20":   WETH,
			"Pool":    Pool,
			"Manager": Manager,
			"Quoter":  Quoter,
		},
	}
}

// ContractFor returns the compiled contract behind an artifact name, for
// artifacts imported from outside the pipeline.
func ContractFor(artifact string) (string, bool) {
	c, ok := map[string]string{
		WETH:    ERC20Contract,
		USDC:    ERC20Contract,
		Factory: FactoryContract,
		Manager: ManagerContract,
		Pool:    PoolContract,
		Quoter:  QuoterContract,
	}[artifact]
	return c, ok
}

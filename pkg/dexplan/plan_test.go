// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package dexplan_test

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/dexstack/internal/mocks"
	"github.com/luxfi/dexstack/pkg/contract"
	"github.com/luxfi/dexstack/pkg/dexplan"
	"github.com/luxfi/dexstack/pkg/models"
	"github.com/luxfi/dexstack/pkg/pipeline"
	"github.com/luxfi/dexstack/pkg/pricemath"
	"github.com/luxfi/dexstack/pkg/registry"
)

var owner = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

var artifacts = map[string]string{
	"contracts/ERC20Mintable.sol/ERC20Mintable.json": `{"contractName":"ERC20Mintable","sourceName":"contracts/ERC20Mintable.sol","abi":[
	  {"type":"constructor","inputs":[{"name":"name","type":"string"},{"name":"symbol","type":"string"}],"stateMutability":"nonpayable"},
	  {"type":"function","name":"mint","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"}
	],"bytecode":"0x6001"}`,
	"contracts/UniswapV3Factory.sol/UniswapV3Factory.json": `{"contractName":"UniswapV3Factory","sourceName":"contracts/UniswapV3Factory.sol","abi":[
	  {"type":"function","name":"pools","inputs":[{"name":"","type":"address"},{"name":"","type":"address"},{"name":"","type":"uint24"}],"outputs":[{"name":"","type":"address"}],"stateMutability":"view"}
	],"bytecode":"0x6002"}`,
	"contracts/UniswapV3Manager.sol/UniswapV3Manager.json": `{"contractName":"UniswapV3Manager","sourceName":"contracts/UniswapV3Manager.sol","abi":[
	  {"type":"constructor","inputs":[{"name":"factory","type":"address"}],"stateMutability":"nonpayable"},
	  {"type":"function","name":"createAndInitializePoolIfNecessary","inputs":[{"name":"tokenX","type":"address"},{"name":"tokenY","type":"address"},{"name":"tickSpacing","type":"uint24"},{"name":"sqrtPriceX96","type":"uint160"}],"outputs":[{"name":"pool","type":"address"}],"stateMutability":"nonpayable"}
	],"bytecode":"0x6003"}`,
	"contracts/UniswapV3Pool.sol/UniswapV3Pool.json": `{"contractName":"UniswapV3Pool","sourceName":"contracts/UniswapV3Pool.sol","abi":[
	  {"type":"function","name":"slot0","inputs":[],"outputs":[{"name":"sqrtPriceX96","type":"uint160"},{"name":"tick","type":"int24"}],"stateMutability":"view"}
	],"bytecode":"0x6004"}`,
	"contracts/UniswapV3Quoter.sol/UniswapV3Quoter.json": `{"contractName":"UniswapV3Quoter","sourceName":"contracts/UniswapV3Quoter.sol","abi":[
	  {"type":"constructor","inputs":[{"name":"factory","type":"address"}],"stateMutability":"nonpayable"}
	],"bytecode":"0x6005"}`,
}

func loader(t *testing.T) *contract.Loader {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for path, doc := range artifacts {
		full := filepath.Join("/artifacts", path)
		require.NoError(t, fsys.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, afero.WriteFile(fsys, full, []byte(doc), 0o644))
	}
	return contract.NewLoader(fsys, "/artifacts")
}

type harness struct {
	chain    *mocks.Chain
	reg      *registry.Registry
	pipeline *pipeline.Pipeline
	pool     common.Address
}

func newHarness(t *testing.T, chainID uint64) *harness {
	t.Helper()
	contracts := loader(t)
	store, err := registry.NewFileStore(afero.NewMemMapFs(), "/registry")
	require.NoError(t, err)
	reg, err := registry.Open(context.Background(), store, chainID, nil)
	require.NoError(t, err)

	factory, err := contracts.Load(dexplan.FactoryContract)
	require.NoError(t, err)
	h := &harness{
		chain: mocks.NewChain(chainID),
		reg:   reg,
		pool:  common.HexToAddress("0x00000000000000000000000000000000000000aa"),
	}
	h.chain.CallHandler = func(common.Address, []byte) ([]byte, error) {
		return factory.ABI.Methods["pools"].Outputs.Pack(h.pool)
	}
	h.pipeline = pipeline.New(h.chain, reg, contracts, nil, pipeline.Options{
		LockDir:      t.TempDir(),
		PollInterval: time.Millisecond,
	})
	return h
}

func hardhat() models.NetworkProfile {
	p := models.BuiltinProfiles()["hardhat"]
	p.ConfirmationTimeout = time.Second
	return p
}

func TestBuildValidatesParams(t *testing.T) {
	_, err := dexplan.Build(dexplan.DefaultParams(common.Address{}))
	require.ErrorIs(t, err, dexplan.ErrNoTokenOwner)

	params := dexplan.DefaultParams(owner)
	params.TickSpacing = 0
	_, err = dexplan.Build(params)
	require.ErrorIs(t, err, pricemath.ErrInvalidTickSpacing)

	params = dexplan.DefaultParams(owner)
	params.Price, _ = new(big.Rat).SetString("1/100000000000000000000000000000000000000000")
	_, err = dexplan.Build(params)
	require.ErrorIs(t, err, pricemath.ErrPriceOutOfRange)
}

func TestPlanOrder(t *testing.T) {
	plan, err := dexplan.Build(dexplan.DefaultParams(owner))
	require.NoError(t, err)

	order, err := pipeline.Order(plan.Steps)
	require.NoError(t, err)
	require.Equal(t, []string{
		"deploy-weth", "mint-weth", "deploy-usdc", "mint-usdc",
		"deploy-factory", "deploy-manager", "init-pool", "resolve-pool", "deploy-quoter",
	}, order)
	require.Equal(t, 60, plan.Price.TickSpacing)
	require.Zero(t, plan.Price.Tick%60)
}

func TestDeployOnDevelopmentNetwork(t *testing.T) {
	h := newHarness(t, 31337)
	plan, err := dexplan.Build(dexplan.DefaultParams(owner))
	require.NoError(t, err)

	report, err := h.pipeline.Run(context.Background(), plan.Steps, hardhat())
	require.NoError(t, err)
	require.Equal(t, 9, report.Count(pipeline.StepCompleted))
	require.Equal(t, 5, h.chain.Deployments())

	pool, err := h.reg.Get(dexplan.Pool)
	require.NoError(t, err)
	require.Equal(t, h.pool, pool.Address)
	require.Equal(t, dexplan.PoolContract, pool.Contract)

	// init-pool carries the encoded price as its last word
	var initData []byte
	manager, err := h.reg.Get(dexplan.Manager)
	require.NoError(t, err)
	for _, sub := range h.chain.Submissions() {
		if sub.To != nil && *sub.To == manager.Address {
			initData = sub.Data
		}
	}
	require.NotEmpty(t, initData)
	last := new(big.Int).SetBytes(initData[len(initData)-32:])
	require.Zero(t, last.Cmp(plan.Price.SqrtPriceX96))

	cfg := registry.BuildUIConfig(report.Registry, dexplan.UIAliases())
	require.Empty(t, cfg.Missing)
	require.Len(t, cfg.Addresses, 5)

	again, err := h.pipeline.Run(context.Background(), plan.Steps, hardhat())
	require.NoError(t, err)
	require.Equal(t, 9, again.Count(pipeline.StepSkipped))
	require.Equal(t, 5, h.chain.Deployments())
}

func TestPublicNetworkNeedsImportedTokens(t *testing.T) {
	profile := models.NetworkProfile{
		Name:                  "testnet",
		ChainID:               11155111,
		Kind:                  models.Public,
		ConfirmationsRequired: 1,
		ConfirmationTimeout:   time.Second,
		MaxParallel:           1,
	}
	plan, err := dexplan.Build(dexplan.DefaultParams(owner))
	require.NoError(t, err)

	h := newHarness(t, profile.ChainID)
	report, err := h.pipeline.Run(context.Background(), plan.Steps, profile)
	require.ErrorIs(t, err, pipeline.ErrDependencyUnresolved)
	require.Equal(t, pipeline.KindDependencyUnresolved, report.Kind)
	require.Empty(t, h.chain.Submissions())

	weth := common.HexToAddress("0x7b79995e5f793A07Bc00c21412e50Ecae098E7f9")
	usdc := common.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
	ctx := context.Background()
	require.NoError(t, h.reg.Import(ctx, dexplan.WETH, weth, dexplan.ERC20Contract, nil))
	require.NoError(t, h.reg.Import(ctx, dexplan.USDC, usdc, dexplan.ERC20Contract, nil))

	report, err = h.pipeline.Run(ctx, plan.Steps, profile)
	require.NoError(t, err)
	for _, id := range []string{"deploy-weth", "mint-weth", "deploy-usdc", "mint-usdc"} {
		res, ok := report.Result(id)
		require.True(t, ok)
		require.Equal(t, pipeline.StepExcluded, res.Status, id)
	}
	require.Equal(t, 5, report.Count(pipeline.StepCompleted))
}

func TestContractFor(t *testing.T) {
	c, ok := dexplan.ContractFor(dexplan.USDC)
	require.True(t, ok)
	require.Equal(t, dexplan.ERC20Contract, c)

	_, ok = dexplan.ContractFor("Unknown")
	require.False(t, ok)
}

// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deploycmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/luxfi/geth/common"
	luxlog "github.com/luxfi/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luxfi/dexstack/cmd/flags"
	"github.com/luxfi/dexstack/cmd/registrycmd"
	"github.com/luxfi/dexstack/pkg/application"
	"github.com/luxfi/dexstack/pkg/chain"
	"github.com/luxfi/dexstack/pkg/constants"
	"github.com/luxfi/dexstack/pkg/contract"
	"github.com/luxfi/dexstack/pkg/dexplan"
	"github.com/luxfi/dexstack/pkg/key"
	"github.com/luxfi/dexstack/pkg/models"
	"github.com/luxfi/dexstack/pkg/pipeline"
	"github.com/luxfi/dexstack/pkg/pricemath"
	"github.com/luxfi/dexstack/pkg/prompts"
	"github.com/luxfi/dexstack/pkg/ux"
)

var (
	app *application.Dex

	errAborted = errors.New("deployment aborted by user")
)

type deployFlags struct {
	network   string
	tags      []string
	exportDir string
	noExport  bool
	yes       bool
}

// NewCmd creates the deploy command.
func NewCmd(injectedApp *application.Dex) *cobra.Command {
	app = injectedApp
	var f deployFlags
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the DEX contracts to a network",
		Long: `Deploy runs the deployment plan against one network: mock tokens (tag
"mocks", development networks only), factory, manager, the initial pool and
the quoter. Artifacts already recorded with the same constructor arguments
are skipped, so a failed deployment can be re-run and resumes where it stopped.

On public networks the command asks for confirmation unless --yes is given.`,
		Example: `  dexstack deploy --network hardhat
  dexstack deploy --network sepolia --price 2500 --token-owner 0x... --yes
  dexstack deploy --network localhost --store sqlite --parallel 1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return deploy(cmd, f)
		},
	}
	flags.AddNetworkFlagToCmd(cmd, &f.network)
	flags.RegisterFlagGroup(cmd, "Plan Flags", func(set *pflag.FlagSet) {
		set.String(constants.ConfigArtifactsKey, "", "compiler artifacts directory (default ./artifacts)")
		set.String(constants.ConfigPriceKey, constants.DefaultInitialPrice, "initial pool price, token1 per token0")
		set.Int(constants.ConfigTickSpacingKey, dexplan.DefaultTickSpacing, "pool tick spacing")
		set.String(constants.ConfigTokenOwnerKey, "", "receiver of the minted mock tokens (default: deployer)")
		set.StringSliceVar(&f.tags, "tags", nil, "override the active tags of the network (e.g. mocks)")
		set.Int(constants.ConfigParallelKey, 0, "maximum steps in flight (default from the network profile)")
	})
	flags.RegisterFlagGroup(cmd, "Registry Flags", func(set *pflag.FlagSet) {
		set.String(constants.ConfigStoreKey, constants.FileStore, "registry store: file or sqlite")
		set.StringVar(&f.exportDir, "export", "", "export directory (default ~/.dexstack/export/<network>)")
		set.BoolVar(&f.noExport, "no-export", false, "skip writing export files")
	})
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "do not ask for confirmation on public networks")
	return cmd
}

func deploy(cmd *cobra.Command, f deployFlags) error {
	profile, err := flags.ResolveNetwork(app, f.network)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("tags") {
		profile.ActiveTags = f.tags
	}
	if n := viper.GetInt(constants.ConfigParallelKey); n > 0 {
		profile.MaxParallel = n
	}
	if profile.RPCURL == "" {
		return fmt.Errorf("%w for %s", models.ErrMissingRPCURL, profile.Name)
	}

	signer, err := key.Load(viper.GetString(constants.ConfigPrivateKeyKey), viper.GetString(constants.ConfigMnemonicKey))
	if err != nil {
		return err
	}
	params, err := planParams(signer.Address(), profile.HasTag(constants.MocksTag) && !f.yes)
	if err != nil {
		return err
	}
	plan, err := dexplan.Build(params)
	if err != nil {
		return err
	}

	printSummary(profile, signer.Address(), params, plan)
	if !profile.IsLocal() && !f.yes {
		ok, err := app.Prompt.CaptureNoYes(fmt.Sprintf("Deploy to public network %s from %s?", profile, signer.Address().Hex()))
		if err != nil {
			return err
		}
		if !ok {
			return errAborted
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, store, err := app.OpenRegistry(ctx, viper.GetString(constants.ConfigStoreKey), profile.ChainID)
	if err != nil {
		return err
	}
	defer store.Close()

	artifactsDir := viper.GetString(constants.ConfigArtifactsKey)
	if artifactsDir == "" {
		artifactsDir = app.GetArtifactsDir()
	}
	contracts := app.ContractLoader(artifactsDir)
	imports, err := profileImports(contracts, profile)
	if err != nil {
		return err
	}

	tracker := ux.NewStepTracker(ux.Logger)
	tracker.Start(fmt.Sprintf("Connecting to %s", profile.Name))
	client, err := chain.Dial(ctx, profile.RPCURL, profile.ChainID, signer, app.Log)
	if err != nil {
		tracker.Failed(err.Error())
		return err
	}
	defer client.Close()
	tracker.Complete(fmt.Sprintf("chain id %d", profile.ChainID))

	progress := newProgress(plan.Steps, profile)
	p := pipeline.New(client, reg, contracts, app.Log, pipeline.Options{
		LockDir:      app.GetLocksDir(),
		OnTransition: progress.observe,
		Imports:      imports,
	})
	report, runErr := p.Run(ctx, plan.Steps, profile)
	progress.finish()

	if err := printReport(report); err != nil {
		app.Log.Warn("failed to print report", luxlog.Err(err))
	}
	if runErr != nil {
		printFailure(report)
		return runErr
	}
	ux.Logger.GreenCheckmarkToUser("Deployment to %s finished: %d deployed or called, %d already done, %d excluded",
		profile.Name, report.Count(pipeline.StepCompleted), report.Count(pipeline.StepSkipped), report.Count(pipeline.StepExcluded))

	if f.noExport {
		return nil
	}
	dir := f.exportDir
	if dir == "" {
		dir = app.GetExportDir(profile.Name)
	}
	return registrycmd.Export(dir, report.Registry)
}

// planParams reads the plan parameters from flags and config. With askOwner
// set and no --token-owner, the operator picks who receives the mock tokens.
func planParams(deployer common.Address, askOwner bool) (dexplan.Params, error) {
	params := dexplan.DefaultParams(deployer)

	priceStr := viper.GetString(constants.ConfigPriceKey)
	if priceStr == "" {
		var err error
		if priceStr, err = app.Prompt.CapturePrice("Initial pool price (token1 per token0)"); err != nil {
			return params, err
		}
	}
	price, err := pricemath.ParsePrice(priceStr)
	if err != nil {
		return params, err
	}
	params.Price = price

	if spacing := viper.GetInt(constants.ConfigTickSpacingKey); spacing != 0 {
		params.TickSpacing = spacing
	}
	owner := viper.GetString(constants.ConfigTokenOwnerKey)
	switch {
	case owner != "":
		if !common.IsHexAddress(owner) {
			return params, fmt.Errorf("invalid token owner %q", owner)
		}
		params.TokenOwner = common.HexToAddress(owner)
	case askOwner:
		toDeployer, err := app.Prompt.CaptureYesNo(fmt.Sprintf("Mint the mock tokens to the deployer %s?", deployer.Hex()))
		switch {
		case errors.Is(err, prompts.ErrNonInteractive):
		case err != nil:
			return params, err
		case !toDeployer:
			if params.TokenOwner, err = app.Prompt.CaptureAddress("Token owner address"); err != nil {
				return params, err
			}
		}
	}
	return params, nil
}

// profileImports lists the profile's externally deployed contracts so steps
// excluded on this network can still be depended on. The pipeline records
// them once it holds the run lock.
func profileImports(contracts *contract.Loader, profile models.NetworkProfile) ([]pipeline.Import, error) {
	names, addrs, err := profile.ImportAddresses()
	if err != nil {
		return nil, err
	}
	imports := make([]pipeline.Import, 0, len(names))
	for _, name := range names {
		contractName, _ := dexplan.ContractFor(name)
		var abi []byte
		if contractName != "" {
			if c, err := contracts.Load(contractName); err == nil {
				abi = c.RawABI
			} else {
				app.Log.Warn("no ABI for imported artifact", luxlog.String("artifact", name), luxlog.Err(err))
			}
		}
		imports = append(imports, pipeline.Import{
			Name:     name,
			Address:  addrs[name],
			Contract: contractName,
			ABI:      abi,
		})
	}
	return imports, nil
}

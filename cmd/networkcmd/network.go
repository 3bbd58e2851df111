// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package networkcmd

import (
	"github.com/spf13/cobra"

	"github.com/luxfi/dexstack/pkg/application"
	"github.com/luxfi/dexstack/pkg/cobrautils"
)

var app *application.Dex

// NewCmd creates the network command.
func NewCmd(injectedApp *application.Dex) *cobra.Command {
	app = injectedApp
	cmd := &cobra.Command{
		Use:   "network",
		Short: "Show network profiles",
		Long: `Network profiles say where and how to deploy: chain id, RPC endpoint,
confirmations required, active tags and contracts imported from elsewhere.

hardhat, localhost and sepolia are built in. More profiles, or overrides of
the built-in ones, go under the networks: key of ~/.dexstack/config.yaml:

  networks:
    anvil:
      chainId: 31337
      kind: local
      rpcUrl: http://127.0.0.1:8545
      tags: [mocks]
    sepolia:
      confirmations: 3
      imports:
        - name: WETH
          address: "0x7b79995e5f793A07Bc00c21412e50Ecae098E7f9"`,
		RunE: cobrautils.CommandSuiteUsage,
	}
	cmd.AddCommand(newListCmd())
	return cmd
}

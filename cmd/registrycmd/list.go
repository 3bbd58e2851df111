// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registrycmd

import (
	"github.com/spf13/cobra"

	"github.com/luxfi/dexstack/cmd/flags"
	"github.com/luxfi/dexstack/pkg/ux"
)

func newListCmd() *cobra.Command {
	var network, store string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the artifacts recorded for a network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := flags.ResolveNetwork(app, network)
			if err != nil {
				return err
			}
			reg, st, err := app.OpenRegistry(cmd.Context(), store, profile.ChainID)
			if err != nil {
				return err
			}
			defer st.Close()
			ux.Logger.PrintToUser("Registry for %s", profile)
			return PrintArtifacts(ux.Logger.Writer(), reg.Snapshot())
		},
	}
	flags.AddNetworkFlagToCmd(cmd, &network)
	flags.AddStoreFlagToCmd(cmd, &store)
	return cmd
}

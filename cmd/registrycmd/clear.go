// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registrycmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luxfi/dexstack/cmd/flags"
	"github.com/luxfi/dexstack/pkg/ux"
)

var errClearAborted = errors.New("registry clear aborted")

func newClearCmd() *cobra.Command {
	var (
		network, store string
		yes            bool
	)
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget every artifact recorded for a network",
		Long: `Clear removes the registry entries of one network. The next deployment
redeploys everything. Contracts already on chain are not affected.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := flags.ResolveNetwork(app, network)
			if err != nil {
				return err
			}
			if !yes {
				ok, err := app.Prompt.CaptureNoYes(fmt.Sprintf("Clear the registry of %s?", profile))
				if err != nil {
					return err
				}
				if !ok {
					return errClearAborted
				}
			}
			if err := app.ClearRegistry(cmd.Context(), store, profile.ChainID); err != nil {
				return err
			}
			ux.Logger.GreenCheckmarkToUser("Cleared registry of %s", profile)
			return nil
		},
	}
	flags.AddNetworkFlagToCmd(cmd, &network)
	flags.AddStoreFlagToCmd(cmd, &store)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

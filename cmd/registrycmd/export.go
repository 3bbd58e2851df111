// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registrycmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/luxfi/dexstack/cmd/flags"
	"github.com/luxfi/dexstack/pkg/dexplan"
	"github.com/luxfi/dexstack/pkg/registry"
	"github.com/luxfi/dexstack/pkg/ux"
)

func newExportCmd() *cobra.Command {
	var network, store, dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write deployments.json, ui-config.json and ABIs for a network",
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
			if dir == "" {
				dir = app.GetExportDir(profile.Name)
			}
			return Export(dir, reg.Snapshot())
		},
	}
	flags.AddNetworkFlagToCmd(cmd, &network)
	flags.AddStoreFlagToCmd(cmd, &store)
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (default ~/.dexstack/export/<network>)")
	return cmd
}

// Export writes the export files for snap into dir and reports UI entries
// that have no artifact yet.
func Export(dir string, snap registry.Snapshot) error {
	cfg, err := registry.Export(app.Fs, dir, snap, dexplan.UIAliases())
	if err != nil {
		return err
	}
	ux.Logger.GreenCheckmarkToUser("Exported %d artifacts to %s", len(snap.Artifacts), dir)
	if len(cfg.Missing) > 0 {
		ux.Logger.RedXToUser("ui-config.json is missing: %s", strings.Join(cfg.Missing, ", "))
	}
	return nil
}

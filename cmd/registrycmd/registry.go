// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registrycmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/luxfi/dexstack/pkg/application"
	"github.com/luxfi/dexstack/pkg/cobrautils"
	"github.com/luxfi/dexstack/pkg/registry"
	"github.com/luxfi/dexstack/pkg/ux"
)

var app *application.Dex

// NewCmd creates the registry command suite.
func NewCmd(injectedApp *application.Dex) *cobra.Command {
	app = injectedApp
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect and manage recorded deployments",
		Long: `The registry holds every artifact a deployment recorded, per network:
its address, contract, ABI, block and the hash of its constructor arguments.
Deployments consult it to skip work that is already on chain.`,
		RunE: cobrautils.CommandSuiteUsage,
	}
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newClearCmd())
	return cmd
}

// PrintArtifacts renders the artifacts of snap as a table.
func PrintArtifacts(w io.Writer, snap registry.Snapshot) error {
	rows := make([][]string, 0, len(snap.Artifacts))
	for _, name := range snap.Names() {
		a := snap.Artifacts[name]
		origin := a.StepID
		if a.Imported {
			origin = "imported"
		}
		block := "-"
		if a.DeployedAtBlock > 0 {
			block = ux.ConvertToStringWithThousandSeparator(a.DeployedAtBlock)
		}
		rows = append(rows, []string{
			name,
			a.Contract,
			a.Address.Hex(),
			block,
			origin,
			a.RecordedAt.Format(time.RFC3339),
		})
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintf(w, "no artifacts recorded for network %d\n", snap.NetworkID)
		return err
	}
	return ux.RenderTable(w, []string{"Artifact", "Contract", "Address", "Block", "Origin", "Recorded"}, rows)
}

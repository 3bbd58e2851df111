// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package networkcmd

import (
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/luxfi/dexstack/pkg/config"
	"github.com/luxfi/dexstack/pkg/models"
	"github.com/luxfi/dexstack/pkg/ux"
)

func newListCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the known network profiles",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			profiles, err := app.Conf.Networks()
			if err != nil {
				return err
			}
			if file != "" {
				profiles, err = config.LoadNetworksFile(afero.NewOsFs(), file, profiles)
				if err != nil {
					return err
				}
			}
			return printProfiles(ux.Logger.Writer(), profiles)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "also read profiles from this YAML file")
	return cmd
}

func printProfiles(w io.Writer, profiles map[string]models.NetworkProfile) error {
	rows := make([][]string, 0, len(profiles))
	for _, name := range config.Names(profiles) {
		p := profiles[name].WithDefaults()
		imports := make([]string, 0, len(p.Imports))
		for k := range p.Imports {
			imports = append(imports, k)
		}
		sort.Strings(imports)
		rpc := p.RPCURL
		if rpc == "" {
			rpc = "(not set)"
		}
		rows = append(rows, []string{
			name,
			strconv.FormatUint(p.ChainID, 10),
			p.Kind.String(),
			rpc,
			strconv.FormatUint(p.ConfirmationsRequired, 10),
			strings.Join(p.ActiveTags, ","),
			strconv.Itoa(p.MaxParallel),
			strings.Join(imports, ","),
		})
	}
	return ux.RenderTable(w, []string{"Name", "Chain ID", "Kind", "RPC", "Confirmations", "Tags", "Parallel", "Imports"}, rows)
}

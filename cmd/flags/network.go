// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package flags

import (
	"github.com/spf13/cobra"

	"github.com/luxfi/dexstack/pkg/application"
	"github.com/luxfi/dexstack/pkg/config"
	"github.com/luxfi/dexstack/pkg/constants"
	"github.com/luxfi/dexstack/pkg/models"
)

const (
	NetworkFlag = "network"
	StoreFlag   = "store"
)

func AddNetworkFlagToCmd(cmd *cobra.Command, network *string) {
	cmd.Flags().StringVarP(network, NetworkFlag, "n", "", "target network profile (hardhat, localhost, sepolia or one from the config file)")
}

func AddStoreFlagToCmd(cmd *cobra.Command, store *string) {
	cmd.Flags().StringVar(store, StoreFlag, constants.FileStore, "registry store: file or sqlite")
}

// ResolveNetwork returns the profile named by the flag, the configured
// default network, or the operator's pick.
func ResolveNetwork(app *application.Dex, name string) (models.NetworkProfile, error) {
	if name == "" {
		name = app.Conf.GetConfigStringValue(constants.ConfigDefaultNetwork)
	}
	if name == "" {
		profiles, err := app.Conf.Networks()
		if err != nil {
			return models.NetworkProfile{}, err
		}
		name, err = app.Prompt.CaptureList("Choose a network", config.Names(profiles))
		if err != nil {
			return models.NetworkProfile{}, err
		}
	}
	return app.Conf.Network(name)
}

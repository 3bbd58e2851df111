// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package models

import (
	"testing"

	"github.com/luxfi/dexstack/pkg/constants"
	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestBuiltinProfilesAreValid(t *testing.T) {
	for name, p := range BuiltinProfiles() {
		require.Equal(t, name, p.Name)
		require.NoError(t, p.WithDefaults().Validate(), name)
	}
}

func TestPublicProfileNeedsConfirmations(t *testing.T) {
	p := BuiltinProfiles()["sepolia"]
	p.ConfirmationsRequired = 0
	require.ErrorIs(t, p.Validate(), ErrInvalidProfile)

	local := BuiltinProfiles()["hardhat"]
	require.Zero(t, local.ConfirmationsRequired)
	require.NoError(t, local.Validate())
}

func TestProfileWithoutKindIsInvalid(t *testing.T) {
	p := NetworkProfile{Name: "x", ChainID: 1, ConfirmationsRequired: 1}
	require.ErrorIs(t, p.Validate(), ErrInvalidProfile)
}

func TestTagsActive(t *testing.T) {
	p := NetworkProfile{ActiveTags: []string{constants.MocksTag}}
	require.True(t, p.TagsActive(nil))
	require.True(t, p.TagsActive([]string{constants.MocksTag}))
	require.False(t, p.TagsActive([]string{constants.MocksTag, "extra"}))

	empty := NetworkProfile{}
	require.True(t, empty.TagsActive(nil))
	require.False(t, empty.TagsActive([]string{constants.MocksTag}))
}

func TestImportAddresses(t *testing.T) {
	p := BuiltinProfiles()["sepolia"]
	p.Imports = map[string]string{
		"WETH": "0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14",
		"USDC": "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
	}
	names, addrs, err := p.ImportAddresses()
	require.NoError(t, err)
	require.Equal(t, []string{"USDC", "WETH"}, names)
	require.Equal(t, common.HexToAddress("0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14"), addrs["WETH"])

	p.Imports["BAD"] = "0x1234"
	require.ErrorIs(t, p.Validate(), ErrInvalidProfile)
}

func TestWithDefaults(t *testing.T) {
	p := NetworkProfile{}.WithDefaults()
	require.Equal(t, constants.DefaultConfirmationTimeout, p.ConfirmationTimeout)
	require.Equal(t, uint(constants.DefaultConfirmationRetries), p.Retries())
	require.Equal(t, constants.DefaultMaxParallel, p.MaxParallel)
}

func TestZeroRetriesSurviveDefaults(t *testing.T) {
	none := uint(0)
	p := NetworkProfile{ConfirmationRetries: &none}.WithDefaults()
	require.NotNil(t, p.ConfirmationRetries)
	require.Zero(t, p.Retries())
	require.Equal(t, uint(constants.DefaultConfirmationRetries), NetworkProfile{}.Retries())
}

func TestNetworkKindFromString(t *testing.T) {
	require.Equal(t, Local, NetworkKindFromString("local"))
	require.Equal(t, Public, NetworkKindFromString("Public"))
	require.Equal(t, Undefined, NetworkKindFromString("other"))
}

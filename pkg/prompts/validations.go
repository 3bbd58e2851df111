// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package prompts

import (
	"errors"
	"strings"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/dexstack/pkg/pricemath"
)

func validateAddress(input string) error {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return errors.New("invalid address")
	}
	if common.HexToAddress(input) == (common.Address{}) {
		return errors.New("zero address")
	}
	return nil
}

func validatePrice(input string) error {
	_, err := pricemath.ParsePrice(input)
	return err
}

// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pricecmd

import (
	"fmt"
	"io"
	"math/big"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/luxfi/dexstack/pkg/application"
	"github.com/luxfi/dexstack/pkg/cobrautils"
	"github.com/luxfi/dexstack/pkg/dexplan"
	"github.com/luxfi/dexstack/pkg/pricemath"
	"github.com/luxfi/dexstack/pkg/ux"
)

const displayPlaces = 18

var app *application.Dex

// NewCmd creates the price command suite.
func NewCmd(injectedApp *application.Dex) *cobra.Command {
	app = injectedApp
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Convert pool prices to and from sqrtPriceX96",
		Long: `Pools store their price as sqrtPriceX96, the square root of the price
(token1 per token0) in Q64.96 fixed point. These commands convert between
that form, human prices and ticks using integer arithmetic only.`,
		RunE: cobrautils.CommandSuiteUsage,
	}
	cmd.AddCommand(newEncodeCmd())
	cmd.AddCommand(newDecodeCmd())
	return cmd
}

func newEncodeCmd() *cobra.Command {
	var spacing int
	cmd := &cobra.Command{
		Use:     "encode <price>",
		Short:   "Encode a price as sqrtPriceX96 and tick",
		Example: "  dexstack price encode 5000\n  dexstack price encode 1/3 --tick-spacing 10",
		Args:    cobrautils.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return encode(ux.Logger.Writer(), args[0], spacing)
		},
	}
	cmd.Flags().IntVar(&spacing, "tick-spacing", dexplan.DefaultTickSpacing, "pool tick spacing")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <sqrtPriceX96>",
		Short: "Decode a sqrtPriceX96 value into a price and tick",
		Args:  cobrautils.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return decode(ux.Logger.Writer(), args[0])
		},
	}
}

func encode(w io.Writer, priceStr string, spacing int) error {
	enc, err := pricemath.NewEncoder(spacing)
	if err != nil {
		return err
	}
	e, err := enc.EncodeString(priceStr)
	if err != nil {
		return err
	}
	decoded, err := pricemath.Decode(e.SqrtPriceX96)
	if err != nil {
		return err
	}
	return ux.RenderTable(w, []string{"Field", "Value"}, [][]string{
		{"price", pricemath.FormatPrice(e.Price, displayPlaces)},
		{"sqrtPriceX96", e.SqrtPriceX96.String()},
		{"tick", strconv.Itoa(e.RawTick)},
		{"tick (spacing " + strconv.Itoa(e.TickSpacing) + ")", strconv.Itoa(e.Tick)},
		{"usable ticks", fmt.Sprintf("[%d, %d]", pricemath.MinUsableTick(e.TickSpacing), pricemath.MaxUsableTick(e.TickSpacing))},
		{"decoded price", pricemath.FormatPrice(decoded, displayPlaces)},
	})
}

func decode(w io.Writer, raw string) error {
	v, ok := new(big.Int).SetString(raw, 0)
	if !ok {
		return fmt.Errorf("%w: %q", pricemath.ErrInvalidSqrtPriceX96, raw)
	}
	price, err := pricemath.Decode(v)
	if err != nil {
		return err
	}
	tick, err := pricemath.TickAtSqrtRatio(v)
	if err != nil {
		return err
	}
	return ux.RenderTable(w, []string{"Field", "Value"}, [][]string{
		{"sqrtPriceX96", v.String()},
		{"price", pricemath.FormatPrice(price, displayPlaces)},
		{"tick", strconv.Itoa(tick)},
	})
}

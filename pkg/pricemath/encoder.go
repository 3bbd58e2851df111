// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pricemath

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// maxPriceMagnitude bounds the decimal exponent of a parsed price well
// beyond the prices any tick can express.
const maxPriceMagnitude = 64

// DefaultTickSpacing matches the 0.3% fee tier pool the DEX plan creates
const DefaultTickSpacing = 60

var (
	ErrPriceOutOfRange     = errors.New("price out of range")
	ErrTickOutOfRange      = errors.New("tick out of range")
	ErrInvalidPrice        = errors.New("invalid price")
	ErrInvalidTickSpacing  = errors.New("invalid tick spacing")
	ErrInvalidSqrtPriceX96 = errors.New("invalid sqrtPriceX96")
)

// Encoding is the fixed point form of a human price (token1 per token0).
type Encoding struct {
	Price        *big.Rat
	SqrtPriceX96 *big.Int
	// RawTick is the greatest tick at or below the price
	RawTick int
	// Tick is RawTick rounded down to a multiple of TickSpacing
	Tick        int
	TickSpacing int
}

// Encoder converts prices into Q64.96 square root prices and ticks for a pool
// with a fixed tick spacing. It holds no mutable state and is safe for
// concurrent use.
type Encoder struct {
	tickSpacing int
}

func NewEncoder(tickSpacing int) (*Encoder, error) {
	if tickSpacing <= 0 || tickSpacing > MaxTick {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTickSpacing, tickSpacing)
	}
	return &Encoder{tickSpacing: tickSpacing}, nil
}

func (e *Encoder) TickSpacing() int {
	return e.tickSpacing
}

// Encode computes floor(sqrt(price) * 2^96) exactly with integer arithmetic,
// then derives the tick from that value.
func (e *Encoder) Encode(price *big.Rat) (Encoding, error) {
	if price == nil || price.Sign() <= 0 {
		return Encoding{}, fmt.Errorf("%w: price must be positive, got %v", ErrInvalidPrice, price)
	}

	// floor(sqrt(n/d) * 2^96) == floor(sqrt(floor(n * 2^192 / d)))
	scaled := new(big.Int).Lsh(price.Num(), 192)
	scaled.Quo(scaled, price.Denom())
	sqrtPriceX96 := new(big.Int).Sqrt(scaled)

	if sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return Encoding{}, fmt.Errorf("%w: price %s encodes to sqrtPriceX96 %s outside [%s, %s)",
			ErrPriceOutOfRange, price.RatString(), sqrtPriceX96, MinSqrtRatio, MaxSqrtRatio)
	}

	rawTick, err := TickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return Encoding{}, err
	}
	tick := floorToSpacing(rawTick, e.tickSpacing)
	if tick < MinUsableTick(e.tickSpacing) {
		return Encoding{}, fmt.Errorf("%w: tick %d below lowest usable tick %d for spacing %d",
			ErrPriceOutOfRange, tick, MinUsableTick(e.tickSpacing), e.tickSpacing)
	}

	return Encoding{
		Price:        new(big.Rat).Set(price),
		SqrtPriceX96: sqrtPriceX96,
		RawTick:      rawTick,
		Tick:         tick,
		TickSpacing:  e.tickSpacing,
	}, nil
}

// EncodeString parses price with ParsePrice and encodes it.
func (e *Encoder) EncodeString(price string) (Encoding, error) {
	p, err := ParsePrice(price)
	if err != nil {
		return Encoding{}, err
	}
	return e.Encode(p)
}

// Decode turns a Q64.96 square root price back into the exact price it represents.
func Decode(sqrtPriceX96 *big.Int) (*big.Rat, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSqrtPriceX96, sqrtPriceX96)
	}
	num := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	den := new(big.Int).Lsh(big.NewInt(1), 192)
	return new(big.Rat).SetFrac(num, den), nil
}

// ParsePrice accepts decimal notation ("5000", "0.0002", "2.5e-3") or a
// fraction ("1/3").
func ParsePrice(s string) (*big.Rat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty price", ErrInvalidPrice)
	}
	var price *big.Rat
	if strings.Contains(s, "/") {
		r, ok := new(big.Rat).SetString(s)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPrice, s)
		}
		price = r
	} else {
		d, err := decimal.NewFromString(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPrice, s, err)
		}
		if d.Sign() <= 0 {
			return nil, fmt.Errorf("%w: price must be positive, got %q", ErrInvalidPrice, s)
		}
		// 1.0001^MaxTick is about 3.4e38
		if mag := int64(d.Exponent()) + int64(d.NumDigits()) - 1; mag < -maxPriceMagnitude || mag > maxPriceMagnitude {
			return nil, fmt.Errorf("%w: %q is about 1e%d", ErrPriceOutOfRange, s, mag)
		}
		price = d.Rat()
	}
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("%w: price must be positive, got %q", ErrInvalidPrice, s)
	}
	return price, nil
}

// FormatPrice renders price in decimal notation with at most places fractional digits.
func FormatPrice(price *big.Rat, places int32) string {
	if price == nil {
		return "<nil>"
	}
	num := decimal.NewFromBigInt(price.Num(), 0)
	den := decimal.NewFromBigInt(price.Denom(), 0)
	return num.DivRound(den, places).String()
}

// Copyright (C) 2022-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package pricemath

import (
	"fmt"
	"math/big"
)

const (
	// MinTick is the lowest tick a concentrated liquidity pool accepts, log base 1.0001 of 2**-128
	MinTick = -887272
	// MaxTick is the highest tick a concentrated liquidity pool accepts, log base 1.0001 of 2**128
	MaxTick = -MinTick
)

var (
	// Q96 is 2**96, the scale of a Q64.96 fixed point value
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)
	// MinSqrtRatio is SqrtRatioAtTick(MinTick)
	MinSqrtRatio = big.NewInt(4295128739)
	// MaxSqrtRatio is SqrtRatioAtTick(MaxTick)
	MaxSqrtRatio = mustBig("1461446703485210103287273052203988822378723970342", 10)

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	q32        = new(big.Int).Lsh(big.NewInt(1), 32)
	q128       = new(big.Int).Lsh(big.NewInt(1), 128)

	// 1/sqrt(1.0001)^(2^i) as Q128.128, applied for each bit i of |tick|
	tickBitFactors = []*big.Int{
		mustBig("fffcb933bd6fad37aa2d162d1a594001", 16),
		mustBig("fff97272373d413259a46990580e213a", 16),
		mustBig("fff2e50f5f656932ef12357cf3c7fdcc", 16),
		mustBig("ffe5caca7e10e4e61c3624eaa0941cd0", 16),
		mustBig("ffcb9843d60f6159c9db58835c926644", 16),
		mustBig("ff973b41fa98c081472e6896dfb254c0", 16),
		mustBig("ff2ea16466c96a3843ec78b326b52861", 16),
		mustBig("fe5dee046a99a2a811c461f1969c3053", 16),
		mustBig("fcbe86c7900a88aedcffc83b479aa3a4", 16),
		mustBig("f987a7253ac413176f2b074cf7815e54", 16),
		mustBig("f3392b0822b70005940c7a398e4b70f3", 16),
		mustBig("e7159475a2c29b7443b29c7fa6e889d9", 16),
		mustBig("d097f3bdfd2022b8845ad8f792aa5825", 16),
		mustBig("a9f746462d870fdf8a65dc1f90e061e5", 16),
		mustBig("70d869a156d2a1b890bb3df62baf32f7", 16),
		mustBig("31be135f97d08fd981231505542fcfa6", 16),
		mustBig("9aa508b5b7a84e1c677de54f3e99bc9", 16),
		mustBig("5d6af8dedb81196699c329225ee604", 16),
		mustBig("2216e584f5fa1ea926041bedfe98", 16),
		mustBig("48a170391f7dc42444e8fa2", 16),
	}
)

func mustBig(s string, base int) *big.Int {
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		panic(fmt.Sprintf("invalid big integer constant %q", s))
	}
	return v
}

// SqrtRatioAtTick returns sqrt(1.0001^tick) as a Q64.96 value, computed with
// the same integer-only algorithm the pool contracts use, so the result is
// bit-for-bit identical to the on-chain value.
func SqrtRatioAtTick(tick int) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("%w: tick %d outside [%d, %d]", ErrTickOutOfRange, tick, MinTick, MaxTick)
	}
	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	ratio := new(big.Int).Set(q128)
	if absTick&1 != 0 {
		ratio.Set(tickBitFactors[0])
	}
	for i := 1; i < len(tickBitFactors); i++ {
		if absTick&(1<<i) != 0 {
			ratio.Mul(ratio, tickBitFactors[i])
			ratio.Rsh(ratio, 128)
		}
	}
	if tick > 0 {
		ratio.Quo(maxUint256, ratio)
	}

	// Q128.128 -> Q64.96, rounding up so the result never undershoots the tick
	rem := new(big.Int).Mod(ratio, q32)
	ratio.Rsh(ratio, 32)
	if rem.Sign() != 0 {
		ratio.Add(ratio, big.NewInt(1))
	}
	return ratio, nil
}

// TickAtSqrtRatio returns the greatest tick whose SqrtRatioAtTick is less than
// or equal to sqrtPriceX96.
func TickAtSqrtRatio(sqrtPriceX96 *big.Int) (int, error) {
	if sqrtPriceX96 == nil || sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return 0, fmt.Errorf("%w: sqrtPriceX96 %v outside [%s, %s)", ErrPriceOutOfRange, sqrtPriceX96, MinSqrtRatio, MaxSqrtRatio)
	}
	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := lo + (hi-lo+1)/2
		ratio, err := SqrtRatioAtTick(mid)
		if err != nil {
			return 0, err
		}
		if ratio.Cmp(sqrtPriceX96) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}

// floorToSpacing rounds tick down to a multiple of spacing, toward negative infinity.
func floorToSpacing(tick, spacing int) int {
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}

// MinUsableTick is the lowest multiple of spacing that is still a valid tick.
func MinUsableTick(spacing int) int {
	return -floorToSpacing(MaxTick, spacing)
}

// MaxUsableTick is the highest multiple of spacing that is still a valid tick.
func MaxUsableTick(spacing int) int {
	return floorToSpacing(MaxTick, spacing)
}

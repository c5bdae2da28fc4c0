package broker

import (
	"math"
	"math/bits"
)

// PriceCurve is the pluggable lead-in pricing policy. Implementations
// must be monotonically non-increasing over the lead-in and must return
// exactly endPrice once elapsed reaches leadin.
type PriceCurve interface {
	// StartPrice derives the price at the start of the lead-in from the
	// sale's end price. It must be strictly greater than endPrice for a
	// nonzero end price.
	StartPrice(endPrice Balance) Balance
	// PriceAt gives the price after elapsed of leadin blocks.
	PriceAt(elapsed, leadin uint64, startPrice, endPrice Balance) Balance
}

// LinearCurve descends linearly from InitialFactor times the end price
// down to the end price. Integer arithmetic throughout, so the boundary
// values are exact.
type LinearCurve struct {
	// InitialFactor is the start-price multiplier; 100 is the stock
	// marketplace value.
	InitialFactor uint64
}

// DefaultCurve returns the stock linear curve.
func DefaultCurve() PriceCurve {
	return LinearCurve{InitialFactor: 100}
}

func (c LinearCurve) StartPrice(endPrice Balance) Balance {
	return endPrice * Balance(c.InitialFactor)
}

func (c LinearCurve) PriceAt(elapsed, leadin uint64, startPrice, endPrice Balance) Balance {
	if leadin == 0 || elapsed >= leadin {
		return endPrice
	}
	remaining := leadin - elapsed
	return endPrice + Balance(mulDiv(uint64(startPrice-endPrice), remaining, leadin))
}

// ExponentialCurve descends geometrically, spending most of the lead-in
// near the end price. Still monotonic and exact at both boundaries.
type ExponentialCurve struct {
	InitialFactor uint64
}

func (c ExponentialCurve) StartPrice(endPrice Balance) Balance {
	return endPrice * Balance(c.InitialFactor)
}

func (c ExponentialCurve) PriceAt(elapsed, leadin uint64, startPrice, endPrice Balance) Balance {
	if leadin == 0 || elapsed >= leadin {
		return endPrice
	}
	if elapsed == 0 || startPrice <= endPrice {
		return startPrice
	}
	// price = start * (end/start)^(elapsed/leadin)
	ratio := float64(endPrice) / float64(startPrice)
	through := float64(elapsed) / float64(leadin)
	price := Balance(float64(startPrice) * math.Pow(ratio, through))
	// Floating point must never break the monotonicity bounds.
	return min(max(price, endPrice), startPrice)
}

// mulDiv computes a*b/d without overflowing the intermediate product.
func mulDiv(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi == 0 {
		return lo / d
	}
	q, _ := bits.Div64(hi, lo, d)
	return q
}

// Package balance computes position sizes and issues the counter-orders
// that narrow a directional imbalance in the book. The pure pieces (tier
// selection, count rounding, TP/SL distribution, the balance→volume table)
// are plain functions; Balancer wires them to the Gateway.
package balance

import (
	"math"
	"math/rand"
)

// Tier is one row of the dynamic margin-free strategy: the first tier (in
// ascending ceiling order) whose ceiling covers the current free-margin
// ratio supplies the batch volume, order percentage, and TP/SL bounds.
type Tier struct {
	MaxMarginFreePct float64 `json:"max_margin_free_pct" yaml:"max_margin_free_pct"`
	Volume           float64 `json:"volume" yaml:"volume"`
	OrderPercentage  float64 `json:"order_percentage" yaml:"order_percentage"`
	TPMin            float64 `json:"tp_min" yaml:"tp_min"`
	TPMax            float64 `json:"tp_max" yaml:"tp_max"`
	SLMin            float64 `json:"sl_min" yaml:"sl_min"`
	SLMax            float64 `json:"sl_max" yaml:"sl_max"`
}

// SelectTier returns the first tier whose ceiling is at or above the ratio,
// or nil when no tier covers it (balancing disabled for the cycle). Tiers
// are assumed sorted ascending by ceiling; config validation enforces it.
func SelectTier(tiers []Tier, marginFreePct float64) *Tier {
	for i := range tiers {
		if marginFreePct <= tiers[i].MaxMarginFreePct {
			return &tiers[i]
		}
	}
	return nil
}

type RoundMode string

const (
	RoundCeil    RoundMode = "ceil"
	RoundFloor   RoundMode = "floor"
	RoundNearest RoundMode = "nearest"
)

// OrderCount converts the count imbalance into an order count:
// round(max(dominant-minority, 0) * perc) under the configured mode.
func OrderCount(dominant, minority int, perc float64, mode RoundMode) int {
	diff := dominant - minority
	if diff < 0 {
		diff = 0
	}
	raw := float64(diff) * perc
	switch mode {
	case RoundCeil:
		return int(math.Ceil(raw))
	case RoundFloor:
		return int(math.Floor(raw))
	default:
		return int(math.Round(raw))
	}
}

type DistMode string

const (
	DistLinear DistMode = "linear"
	DistRandom DistMode = "random"
	DistFixed  DistMode = "fixed"
)

// Levels is one order's point distances.
type Levels struct {
	TP float64
	SL float64
}

// DistributeTPSL spreads TP/SL over n orders. Linear spaces both bounds
// evenly with inclusive endpoints (a single order gets the minimum), random
// draws each bound independently per order, fixed pins everything to the
// minimums.
func DistributeTPSL(n int, tpMin, tpMax, slMin, slMax float64, mode DistMode, rng *rand.Rand) []Levels {
	if n <= 0 {
		return nil
	}
	out := make([]Levels, n)
	switch mode {
	case DistLinear:
		tpStep, slStep := 0.0, 0.0
		if n > 1 {
			tpStep = (tpMax - tpMin) / float64(n-1)
			slStep = (slMax - slMin) / float64(n-1)
		}
		for i := range out {
			out[i] = Levels{
				TP: tpMin + float64(i)*tpStep,
				SL: slMin + float64(i)*slStep,
			}
		}
	case DistRandom:
		for i := range out {
			out[i] = Levels{
				TP: tpMin + rng.Float64()*(tpMax-tpMin),
				SL: slMin + rng.Float64()*(slMax-slMin),
			}
		}
	default: // fixed
		for i := range out {
			out[i] = Levels{TP: tpMin, SL: slMin}
		}
	}
	return out
}

// volumeLevel maps an account-balance floor to a base order volume.
type volumeLevel struct {
	threshold float64
	volume    float64
}

// Descending thresholds, first match wins. Below every threshold the floor
// volume applies.
var volumeLevels = []volumeLevel{
	{250, 0.04},
	{150, 0.03},
	{100, 0.02},
	{0, 0.01},
}

// VolumeForBalance looks up the base single-order volume for the account
// balance. This feeds the single-order entry path, distinct from the tier
// volume used by batch balancing.
func VolumeForBalance(balance float64) float64 {
	for _, lv := range volumeLevels {
		if balance >= lv.threshold {
			return lv.volume
		}
	}
	return 0.01
}

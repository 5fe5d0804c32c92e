// Package signal classifies trend per bar from EMA and ADX: direction from
// close versus EMA, strength from ADX bands. Only the last bar's
// classification drives the engine, but the whole series is returned for
// export and tests.
package signal

import (
	"fmt"

	"github.com/markcheno/go-talib"
	"github.com/rustyeddy/daytrader/market"
)

type TrendDirection string

const (
	TrendUp   TrendDirection = "UP"
	TrendDown TrendDirection = "DOWN"
)

type TrendStrength string

const (
	StrengthStrong   TrendStrength = "STRONG"
	StrengthWeak     TrendStrength = "WEAK"
	StrengthSideways TrendStrength = "SIDEWAYS"
	StrengthUnknown  TrendStrength = "UNKNOWN"
)

type Classification struct {
	Direction TrendDirection
	Strength  TrendStrength
}

// ADX bands: above 25 the trend is strong, below 20 weak, between the two
// it is going sideways.
const (
	adxStrong = 25.0
	adxWeak   = 20.0
)

// Classify computes per-bar trend classifications over the series. The
// series must be longer than both warmup windows.
func Classify(series market.CandleSeries, emaPeriod, adxPeriod int) ([]Classification, error) {
	if emaPeriod <= 0 || adxPeriod <= 0 {
		return nil, fmt.Errorf("classify: periods must be positive (ema=%d adx=%d)", emaPeriod, adxPeriod)
	}
	if len(series) < emaPeriod || len(series) < 2*adxPeriod {
		return nil, fmt.Errorf("classify: %d bars is not enough for ema=%d adx=%d", len(series), emaPeriod, adxPeriod)
	}

	closes := series.Closes()
	ema := talib.Ema(closes, emaPeriod)
	adx := talib.Adx(series.Highs(), series.Lows(), closes, adxPeriod)

	emaWarm := emaPeriod - 1
	adxWarm := 2*adxPeriod - 1

	out := make([]Classification, len(series))
	for i := range series {
		c := Classification{Direction: TrendDown, Strength: StrengthUnknown}
		if i >= emaWarm && closes[i] > ema[i] {
			c.Direction = TrendUp
		}
		if i >= adxWarm {
			switch {
			case adx[i] > adxStrong:
				c.Strength = StrengthStrong
			case adx[i] < adxWeak:
				c.Strength = StrengthWeak
			default:
				c.Strength = StrengthSideways
			}
		}
		out[i] = c
	}
	return out, nil
}

// Last is the classification of the newest bar.
func Last(cls []Classification) (Classification, bool) {
	if len(cls) == 0 {
		return Classification{}, false
	}
	return cls[len(cls)-1], true
}

// DirectionFor maps an order side to the trend direction that agrees with
// it.
func DirectionFor(dir market.Direction) TrendDirection {
	if dir == market.Buy {
		return TrendUp
	}
	return TrendDown
}

// AllowsNewOrder reports whether trend conditions permit an entry on the
// side: the current timeframe agrees outright, or the previous (higher)
// timeframe agrees and is strong.
func AllowsNewOrder(current, previous Classification, dir market.Direction) bool {
	want := DirectionFor(dir)
	if current.Direction == want {
		return true
	}
	return previous.Direction == want && previous.Strength == StrengthStrong
}

package signal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/daytrader/market"
)

// trendingSeries builds bars that move steadily in one direction, enough
// for both warmups.
func trendingSeries(n int, start, step float64) market.CandleSeries {
	out := make(market.CandleSeries, n)
	t0 := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	for i := range out {
		c := start + float64(i)*step
		out[i] = market.Candle{
			Time:  t0.Add(time.Duration(i) * 5 * time.Minute),
			Open:  c - step/2,
			High:  c + math.Abs(step),
			Low:   c - math.Abs(step),
			Close: c,
		}
	}
	return out
}

func TestClassify_UptrendIsUpAndStrong(t *testing.T) {
	t.Parallel()

	series := trendingSeries(120, 2000, 1.5)
	cls, err := Classify(series, 20, 14)
	require.NoError(t, err)
	require.Len(t, cls, len(series))

	last, ok := Last(cls)
	require.True(t, ok)
	assert.Equal(t, TrendUp, last.Direction)
	// A clean monotone rise keeps ADX well above the strong band.
	assert.Equal(t, StrengthStrong, last.Strength)
}

func TestClassify_DowntrendIsDown(t *testing.T) {
	t.Parallel()

	series := trendingSeries(120, 2400, -1.5)
	cls, err := Classify(series, 20, 14)
	require.NoError(t, err)

	last, ok := Last(cls)
	require.True(t, ok)
	assert.Equal(t, TrendDown, last.Direction)
}

func TestClassify_WarmupIsUnknown(t *testing.T) {
	t.Parallel()

	series := trendingSeries(120, 2000, 1.5)
	cls, err := Classify(series, 20, 14)
	require.NoError(t, err)

	// Before 2*adx-1 bars the strength cannot be computed.
	for i := 0; i < 2*14-1; i++ {
		assert.Equal(t, StrengthUnknown, cls[i].Strength, "bar %d", i)
	}
}

func TestClassify_Errors(t *testing.T) {
	t.Parallel()

	series := trendingSeries(10, 2000, 1)

	_, err := Classify(series, 20, 14)
	assert.Error(t, err)

	_, err = Classify(series, 0, 14)
	assert.Error(t, err)

	_, err = Classify(series, 5, -1)
	assert.Error(t, err)
}

func TestLast_Empty(t *testing.T) {
	t.Parallel()

	_, ok := Last(nil)
	assert.False(t, ok)
}

func TestDirectionFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TrendUp, DirectionFor(market.Buy))
	assert.Equal(t, TrendDown, DirectionFor(market.Sell))
}

func TestAllowsNewOrder(t *testing.T) {
	t.Parallel()

	up := func(s TrendStrength) Classification { return Classification{Direction: TrendUp, Strength: s} }
	down := func(s TrendStrength) Classification { return Classification{Direction: TrendDown, Strength: s} }

	tests := []struct {
		name     string
		current  Classification
		previous Classification
		dir      market.Direction
		want     bool
	}{
		{"current agrees", up(StrengthWeak), down(StrengthStrong), market.Buy, true},
		{"previous strong rescues", down(StrengthWeak), up(StrengthStrong), market.Buy, true},
		{"previous weak does not", down(StrengthWeak), up(StrengthWeak), market.Buy, false},
		{"previous sideways does not", down(StrengthStrong), up(StrengthSideways), market.Buy, false},
		{"both against", down(StrengthStrong), down(StrengthStrong), market.Buy, false},
		{"sell side mirror", down(StrengthWeak), up(StrengthStrong), market.Sell, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, AllowsNewOrder(tt.current, tt.previous, tt.dir))
		})
	}
}

package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rustyeddy/daytrader/broker"
	"github.com/rustyeddy/daytrader/broker/sim"
)

func TestWorstPosition(t *testing.T) {
	t.Parallel()

	worst, ok := WorstPosition([]broker.Position{
		{Ticket: 1, Profit: -5},
		{Ticket: 2, Profit: 10},
	})
	require.True(t, ok)
	assert.Equal(t, int64(1), worst.Ticket)

	_, ok = WorstPosition(nil)
	assert.False(t, ok)
}

func TestMarginGuard_ClosesWorstBelowThreshold(t *testing.T) {
	t.Parallel()

	positions := []broker.Position{
		{Ticket: 1, Profit: -5},
		{Ticket: 2, Profit: 10},
	}
	gw := sim.New()
	for _, p := range positions {
		gw.AddPosition(p)
	}

	g := NewMarginGuard(gw, zap.NewNop(), 0.5)
	g.Check(context.Background(), 0.3, positions)

	require.Len(t, gw.Closed, 1)
	assert.Equal(t, int64(1), gw.Closed[0])
}

func TestMarginGuard_NoActionAtOrAboveThreshold(t *testing.T) {
	t.Parallel()

	positions := []broker.Position{{Ticket: 1, Profit: -5}, {Ticket: 2, Profit: 1}}

	for _, pct := range []float64{0.5, 0.8} {
		gw := sim.New()
		g := NewMarginGuard(gw, zap.NewNop(), 0.5)
		g.Check(context.Background(), pct, positions)
		assert.Empty(t, gw.Closed, "pct=%v", pct)
	}
}

func TestMarginGuard_NonPositiveRatioRefuses(t *testing.T) {
	t.Parallel()

	positions := []broker.Position{{Ticket: 1, Profit: -5}, {Ticket: 2, Profit: 1}}
	gw := sim.New()
	g := NewMarginGuard(gw, zap.NewNop(), 0.5)

	g.Check(context.Background(), 0, positions)
	g.Check(context.Background(), -0.2, positions)

	assert.Empty(t, gw.Closed)
}

func TestMarginGuard_SinglePositionRefuses(t *testing.T) {
	t.Parallel()

	gw := sim.New()
	positions := []broker.Position{{Ticket: 42, Profit: -50}}
	gw.AddPosition(positions[0])

	g := NewMarginGuard(gw, zap.NewNop(), 0.5)
	g.Check(context.Background(), 0.2, positions)

	assert.Empty(t, gw.Closed)
}

func TestNewMarginGuard_DefaultThreshold(t *testing.T) {
	t.Parallel()

	g := NewMarginGuard(sim.New(), zap.NewNop(), 0)
	assert.InDelta(t, 0.5, g.Threshold, 1e-12)
}

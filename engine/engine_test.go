package engine

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rustyeddy/daytrader/broker"
	"github.com/rustyeddy/daytrader/broker/sim"
	"github.com/rustyeddy/daytrader/config"
	"github.com/rustyeddy/daytrader/hedge"
	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/signal"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.IndicatorsEnabled = false
	cfg.HedgeStateFile = filepath.Join(t.TempDir(), "hedge_state.json")
	cfg.Journal.Type = "none"
	return cfg
}

func testGateway() *sim.Gateway {
	gw := sim.New()
	gw.SetAccount(broker.Account{Balance: 1000, Equity: 1000, MarginFree: 900})
	gw.SetTick(market.Tick{
		Symbol: "XAUUSD", Bid: 2399.9, Ask: 2400.1,
		Time: time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC),
	})
	return gw
}

func TestCycle_EmptyBookPlacesEntry(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	gw := testGateway()
	e := New(cfg, gw, zap.NewNop(), nil, nil)

	_, err := e.cycle(context.Background(), hedge.DefaultState(), time.Now())
	require.NoError(t, err)

	require.Len(t, gw.Placed, 1)
	req := gw.Placed[0]
	assert.Equal(t, market.Buy, req.Direction)
	assert.Equal(t, cfg.Magic, req.Magic)
	// Balance 1000 sits in the top volume band.
	assert.InDelta(t, 0.04, req.Volume, 1e-12)
	assert.InDelta(t, cfg.StopPoints, req.StopPoints, 1e-9)
	assert.InDelta(t, cfg.ProfitPoints, req.ProfitPoints, 1e-9)
}

func TestCycle_PriceInsideRangeNoEntry(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	gw := testGateway()
	gw.AddPosition(broker.Position{
		Ticket: 1, Symbol: cfg.Symbol, Direction: market.Buy,
		Magic: cfg.Magic, OpenPrice: 2400.0, Volume: 0.01,
		OpenTime: time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC),
	})
	e := New(cfg, gw, zap.NewNop(), nil, nil)

	_, err := e.cycle(context.Background(), hedge.DefaultState(), time.Now())
	require.NoError(t, err)

	assert.Empty(t, gw.Placed)
}

func TestCycle_SweepsStalePositions(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.ClosePositionsByTime = true
	cfg.MaxPositionDurationMinutes = 60

	gw := testGateway()
	stale := broker.Position{
		Ticket: 7, Symbol: cfg.Symbol, Direction: market.Buy,
		Magic: cfg.Magic, OpenPrice: 2400.0, Volume: 0.01,
		// Opened two hours before the tick time.
		OpenTime: time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC),
	}
	fresh := stale
	fresh.Ticket = 8
	fresh.OpenTime = time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC)
	fresh.OpenPrice = 2400.2
	gw.AddPosition(stale)
	gw.AddPosition(fresh)

	e := New(cfg, gw, zap.NewNop(), nil, nil)
	_, err := e.cycle(context.Background(), hedge.DefaultState(), time.Now())
	require.NoError(t, err)

	require.Len(t, gw.Closed, 1)
	assert.Equal(t, int64(7), gw.Closed[0])
}

func TestCycle_GatewayErrorPropagates(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	gw := testGateway()
	gw.TickErr = assert.AnError

	e := New(cfg, gw, zap.NewNop(), nil, nil)
	_, err := e.cycle(context.Background(), hedge.DefaultState(), time.Now())
	assert.Error(t, err)
}

func TestCycle_HedgeTriggerRunsAndPersists(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.DynamicMF.Enabled = false
	gw := testGateway()

	// Deep in loss on the primary side, price far below the open range so
	// the pullback entry also fires; the hedge sell must still be tracked.
	gw.AddPosition(broker.Position{
		Ticket: 1, Symbol: cfg.Symbol, Direction: market.Buy,
		Magic: cfg.Magic, OpenPrice: 2500.0, Profit: -100, Volume: 0.01,
		OpenTime: time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC),
	})

	e := New(cfg, gw, zap.NewNop(), nil, nil)
	st, err := e.cycle(context.Background(), hedge.DefaultState(), time.Now())
	require.NoError(t, err)

	require.True(t, st.Active)
	require.NotNil(t, st.ActiveTradeID)

	// The state survived to disk.
	reloaded := hedge.NewStore(cfg.HedgeStateFile, zap.NewNop()).Load()
	assert.Equal(t, *st.ActiveTradeID, *reloaded.ActiveTradeID)
}

func TestCycle_DrawdownGuardScopedToOwnMagic(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.HedgeManagerEnabled = false
	gw := testGateway()

	// The process's book alone crosses the -200 stop. The deeper loser
	// belongs to another strategy and must never be touched.
	gw.AddPosition(broker.Position{
		Ticket: 1, Symbol: cfg.Symbol, Direction: market.Buy,
		Magic: cfg.Magic, OpenPrice: 2400.0, Profit: -250, Volume: 0.01,
		OpenTime: time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC),
	})
	gw.AddPosition(broker.Position{
		Ticket: 66, Symbol: cfg.Symbol, Direction: market.Buy,
		Magic: 999999, OpenPrice: 2400.0, Profit: -400, Volume: 0.01,
		OpenTime: time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC),
	})

	e := New(cfg, gw, zap.NewNop(), nil, nil)
	_, err := e.cycle(context.Background(), hedge.DefaultState(), time.Now())
	require.NoError(t, err)

	assert.NotContains(t, gw.Closed, int64(66))
	assert.Contains(t, gw.Closed, int64(1))
}

func TestCycle_MarginGuardIgnoresHedgePosition(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.HedgeManagerEnabled = false
	cfg.DynamicMF.Enabled = false

	gw := testGateway()
	// Free margin ratio 0.3 is under the 0.5 guard threshold.
	gw.SetAccount(broker.Account{Balance: 1000, Equity: 1000, MarginFree: 300})

	open := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	gw.AddPosition(broker.Position{
		Ticket: 1, Symbol: cfg.Symbol, Direction: market.Buy,
		Magic: cfg.Magic, OpenPrice: 2399.0, Profit: -50, Volume: 0.01, OpenTime: open,
	})
	gw.AddPosition(broker.Position{
		Ticket: 2, Symbol: cfg.Symbol, Direction: market.Buy,
		Magic: cfg.Magic, OpenPrice: 2401.0, Profit: -10, Volume: 0.01, OpenTime: open,
	})
	// The hedge sell is the deepest loser but runs under its own magic.
	gw.AddPosition(broker.Position{
		Ticket: 9, Symbol: cfg.Symbol, Direction: market.Sell,
		Magic: cfg.HedgeMagic, OpenPrice: 2405.0, Profit: -500, Volume: 0.01, OpenTime: open,
	})

	e := New(cfg, gw, zap.NewNop(), nil, nil)
	_, err := e.cycle(context.Background(), hedge.DefaultState(), time.Now())
	require.NoError(t, err)

	require.Len(t, gw.Closed, 1)
	assert.Equal(t, int64(1), gw.Closed[0])
}

func TestCycle_AllPositionsWidensGuardScope(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.HedgeManagerEnabled = false
	cfg.DynamicMF.Enabled = false
	cfg.AllPositions = true

	gw := testGateway()
	gw.SetAccount(broker.Account{Balance: 1000, Equity: 1000, MarginFree: 300})

	open := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	gw.AddPosition(broker.Position{
		Ticket: 1, Symbol: cfg.Symbol, Direction: market.Buy,
		Magic: cfg.Magic, OpenPrice: 2399.0, Profit: -50, Volume: 0.01, OpenTime: open,
	})
	gw.AddPosition(broker.Position{
		Ticket: 9, Symbol: cfg.Symbol, Direction: market.Sell,
		Magic: cfg.HedgeMagic, OpenPrice: 2405.0, Profit: -500, Volume: 0.01, OpenTime: open,
	})

	e := New(cfg, gw, zap.NewNop(), nil, nil)
	_, err := e.cycle(context.Background(), hedge.DefaultState(), time.Now())
	require.NoError(t, err)

	// With the whole-symbol view the margin guard picks the true worst.
	require.Len(t, gw.Closed, 1)
	assert.Equal(t, int64(9), gw.Closed[0])
}

func TestCycle_HedgeStateReloadedFromDisk(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	gw := testGateway()

	// Deep enough in loss to trigger a hedge, but the state file carries a
	// live cooldown that must be honored over the in-memory state.
	gw.AddPosition(broker.Position{
		Ticket: 1, Symbol: cfg.Symbol, Direction: market.Buy,
		Magic: cfg.Magic, OpenPrice: 2400.0, Profit: -100, Volume: 0.01,
		OpenTime: time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC),
	})

	until := time.Now().Add(2 * time.Hour)
	st := hedge.DefaultState()
	st.CooldownUntil = &until
	require.NoError(t, hedge.NewStore(cfg.HedgeStateFile, zap.NewNop()).Save(st))

	e := New(cfg, gw, zap.NewNop(), nil, nil)
	out, err := e.cycle(context.Background(), hedge.DefaultState(), time.Now())
	require.NoError(t, err)

	assert.Empty(t, gw.Placed)
	require.NotNil(t, out.CooldownUntil)
	assert.WithinDuration(t, until, *out.CooldownUntil, time.Second)
}

func TestTryEntry_PullbackCooldown(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	gw := testGateway()

	pos := broker.Position{
		Ticket: 1, Symbol: cfg.Symbol, Direction: market.Buy,
		Magic: cfg.Magic, OpenPrice: 2500.0, Volume: 0.01,
	}
	primary := []broker.Position{pos}
	acct := broker.Account{Balance: 1000}
	tick := market.Tick{Symbol: cfg.Symbol, Bid: 2399.9, Ask: 2400.1}
	agree := signal.Classification{Direction: signal.TrendUp, Strength: signal.StrengthUnknown}

	e := New(cfg, gw, zap.NewNop(), nil, nil)
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	// Price well below the band: an averaging-in entry fires and starts
	// the cooldown.
	e.tryEntry(context.Background(), primary, primary, acct, tick, agree, agree, now)
	require.Len(t, gw.Placed, 1)

	// Inside the cooldown the same pullback is blocked.
	e.tryEntry(context.Background(), primary, primary, acct, tick, agree, agree, now.Add(10*time.Second))
	require.Len(t, gw.Placed, 1)

	// After it expires the pullback may fire again.
	e.tryEntry(context.Background(), primary, primary, acct, tick, agree, agree, now.Add(301*time.Second))
	assert.Len(t, gw.Placed, 2)
}

func TestRun_ShutdownHour(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	hour := 18
	cfg.ShutdownHour = &hour

	e := New(cfg, testGateway(), zap.NewNop(), nil, nil)
	e.now = func() time.Time {
		return time.Date(2026, 8, 31, 19, 0, 0, 0, time.UTC)
	}

	err := e.Run(context.Background())
	assert.NoError(t, err)
}

func TestRun_ContextCancel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.CheckIntervalSeconds = 1

	e := New(cfg, testGateway(), zap.NewNop(), nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

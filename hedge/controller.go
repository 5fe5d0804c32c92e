package hedge

import (
	"context"
	"time"

	"github.com/rustyeddy/daytrader/broker"
	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/metrics"
	"go.uber.org/zap"
)

// Settings are the static hedge parameters. The hedge magic must differ
// from the primary magic; equal values disable the whole feature.
type Settings struct {
	Enabled          bool
	Symbol           string
	PrimaryDirection market.Direction // side of the book being protected
	PrimaryMagic     int64
	HedgeMagic       int64
	TriggerProfit    float64 // negative; entry when primary profit < this
	MaxOpenPrimary   int
	Volume           float64
	StopPoints       float64
	ProfitPoints     float64 // effectively unreachable; protective, not profit-seeking
	DrawdownCash     float64
	Cooldown         time.Duration
}

// Controller runs one hedge state-machine step per cycle. It never fetches:
// the engine hands it the cycle's position snapshot and server time, and it
// returns the next state for the engine to persist.
type Controller struct {
	cfg Settings
	gw  broker.Gateway
	log *zap.Logger
}

func NewController(cfg Settings, gw broker.Gateway, log *zap.Logger) *Controller {
	return &Controller{cfg: cfg, gw: gw, log: log}
}

// Run advances the state machine by one step.
func (c *Controller) Run(ctx context.Context, st State, all []broker.Position, now time.Time) State {
	if !c.cfg.Enabled {
		return st
	}
	if c.cfg.PrimaryMagic == c.cfg.HedgeMagic {
		c.log.Error("hedge disabled: hedge magic must differ from primary magic",
			zap.Int64("magic", c.cfg.PrimaryMagic))
		return st
	}

	// Cooldown expiry is checked before anything else.
	if st.CooldownUntil != nil && !now.Before(*st.CooldownUntil) {
		c.log.Info("hedge cooldown ended")
		st.CooldownUntil = nil
	}

	if st.Active {
		if pos, ok := c.trackedPosition(st, all); ok {
			return c.manageActive(ctx, st, pos, now)
		}
		// Tracked position gone: stop-loss hit or closed manually. No close
		// call; reconcile straight into cooldown.
		c.log.Warn("tracked hedge position missing, assuming external close",
			zap.Int64p("ticket", st.ActiveTradeID))
		st.deactivate(now, c.cfg.Cooldown)
		return st
	}

	if st.CooldownUntil != nil {
		return st // still cooling down, no trigger evaluation
	}
	return c.checkTrigger(ctx, st, all)
}

// trackedPosition identifies the hedge by exact ticket, not tag alone.
func (c *Controller) trackedPosition(st State, all []broker.Position) (broker.Position, bool) {
	if st.ActiveTradeID == nil {
		return broker.Position{}, false
	}
	hedgeDir := c.cfg.PrimaryDirection.Opposite()
	for _, p := range all {
		if p.Ticket == *st.ActiveTradeID && p.Magic == c.cfg.HedgeMagic && p.Direction == hedgeDir {
			return p, true
		}
	}
	return broker.Position{}, false
}

func (c *Controller) manageActive(ctx context.Context, st State, pos broker.Position, now time.Time) State {
	profit := pos.Profit
	if profit > st.ProfitMax {
		st.ProfitMax = profit
	}
	if profit < st.ProfitMin {
		st.ProfitMin = profit
	}

	if profit <= 0 {
		return st
	}
	drawdown := st.ProfitMax - profit
	if drawdown < c.cfg.DrawdownCash {
		return st
	}

	c.log.Info("hedge profit drawdown reached, closing",
		zap.Int64("ticket", pos.Ticket),
		zap.Float64("profit", profit),
		zap.Float64("drawdown", drawdown),
		zap.Float64("limit", c.cfg.DrawdownCash))

	if err := c.gw.ClosePosition(ctx, pos); err != nil {
		c.log.Error("hedge close failed, will retry next cycle",
			zap.Int64("ticket", pos.Ticket), zap.Error(err))
		return st
	}
	metrics.IncClose("hedge")
	st.deactivate(now, c.cfg.Cooldown)
	c.log.Info("hedge cooldown started", zap.Timep("until", st.CooldownUntil))
	return st
}

func (c *Controller) checkTrigger(ctx context.Context, st State, all []broker.Position) State {
	var profit float64
	var open int
	for _, p := range all {
		if p.Magic == c.cfg.PrimaryMagic && p.Direction == c.cfg.PrimaryDirection {
			profit += p.Profit
			open++
		}
	}

	if profit >= c.cfg.TriggerProfit || open > c.cfg.MaxOpenPrimary {
		return st
	}

	hedgeDir := c.cfg.PrimaryDirection.Opposite()
	c.log.Warn("hedge trigger hit",
		zap.Float64("primary_profit", profit),
		zap.Float64("trigger", c.cfg.TriggerProfit),
		zap.Int("open_primary", open),
		zap.Int("max_open", c.cfg.MaxOpenPrimary))

	res, err := c.gw.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:       c.cfg.Symbol,
		Direction:    hedgeDir,
		Volume:       c.cfg.Volume,
		Magic:        c.cfg.HedgeMagic,
		StopPoints:   c.cfg.StopPoints,
		ProfitPoints: c.cfg.ProfitPoints,
		Comment:      "hedge",
	})
	if err != nil {
		c.log.Error("hedge order failed, will retry next cycle", zap.Error(err))
		return st
	}
	if !res.Placed() {
		c.log.Error("hedge order refused",
			zap.String("status", res.Status.String()),
			zap.String("reason", res.Reason))
		return st
	}

	c.log.Info("hedge opened",
		zap.Int64("ticket", res.Ticket),
		zap.String("direction", hedgeDir.String()),
		zap.Float64("volume", c.cfg.Volume))
	st.activate(res.Ticket)
	return st
}

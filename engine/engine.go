// Package engine runs the polling loop that drives every manager feature
// from a single consistent snapshot per cycle: fetch, classify trend,
// maybe enter, then hand the book to the balancer, the guards and the
// hedge controller on their own intervals.
package engine

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/daytrader/alert"
	"github.com/rustyeddy/daytrader/analysis"
	"github.com/rustyeddy/daytrader/balance"
	"github.com/rustyeddy/daytrader/broker"
	"github.com/rustyeddy/daytrader/config"
	"github.com/rustyeddy/daytrader/hedge"
	"github.com/rustyeddy/daytrader/internal/gate"
	"github.com/rustyeddy/daytrader/journal"
	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/metrics"
	"github.com/rustyeddy/daytrader/pkg/id"
	"github.com/rustyeddy/daytrader/risk"
	"github.com/rustyeddy/daytrader/signal"
)

// Engine owns the per-process feature set for one symbol and direction.
type Engine struct {
	cfg *config.Config
	gw  broker.Gateway
	log *zap.Logger
	jrn journal.Journal

	watcher    *alert.EquityWatcher
	balancer   *balance.Balancer
	ddGuard    *risk.DrawdownGuard
	mGuard     *risk.MarginGuard
	thresholds *risk.ThresholdManager
	hedgeCtl   *hedge.Controller
	hedgeStore *hedge.Store

	runID string

	entryGate    gate.Interval
	downCooldown gate.Cooldown
	marginGate   gate.Interval
	ddGate       gate.Interval
	hedgeGate    gate.Interval
	journalGate  gate.Interval

	// now is swappable in tests.
	now func() time.Time
}

func New(cfg *config.Config, gw broker.Gateway, log *zap.Logger, jrn journal.Journal, watcher *alert.EquityWatcher) *Engine {
	if jrn == nil {
		jrn = journal.Nop{}
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	return &Engine{
		cfg:        cfg,
		gw:         gw,
		log:        log,
		jrn:        jrn,
		watcher:    watcher,
		balancer:   balance.New(cfg.BalanceSettings(), gw, log, rng),
		ddGuard:    risk.NewDrawdownGuard(gw, log, cfg.FloatingDDStopThreshold, cfg.NumWorstToCloseOnDDStop, cfg.EnableFloatingDDStop),
		mGuard:     risk.NewMarginGuard(gw, log, cfg.MarginFreePerc),
		thresholds: risk.NewThresholdManager(cfg.Thresholds),
		hedgeCtl:   hedge.NewController(cfg.HedgeSettings(), gw, log),
		hedgeStore: hedge.NewStore(cfg.HedgeStateFile, log),

		runID: id.New(),

		entryGate:   gate.Interval{Every: time.Duration(cfg.TargetDownIntervalSeconds) * time.Second},
		marginGate:  gate.Interval{Every: time.Duration(cfg.ManagerMarginIntervalSeconds) * time.Second},
		ddGate:      gate.Interval{Every: time.Duration(cfg.DrawdownIntervalSeconds) * time.Second},
		hedgeGate:   gate.Interval{Every: time.Duration(cfg.HedgeIntervalSeconds) * time.Second},
		journalGate: gate.Interval{Every: time.Duration(cfg.Journal.IntervalSeconds) * time.Second},

		now: time.Now,
	}
}

// Run polls until the context is cancelled, the shutdown hour arrives, or
// the gateway fails twice in a row (once before a reconnect, once after).
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("starting manager",
		zap.String("run_id", e.runID),
		zap.String("symbol", e.cfg.Symbol),
		zap.String("direction", e.cfg.Direction),
		zap.Int64("magic", e.cfg.Magic),
	)

	hedgeState := e.hedgeStore.Load()

	interval := time.Duration(e.cfg.CheckIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		now := e.now()
		if now.Hour() >= *e.cfg.ShutdownHour {
			e.log.Info("shutdown hour reached", zap.Int("hour", *e.cfg.ShutdownHour))
			return nil
		}

		var err error
		hedgeState, err = e.cycle(ctx, hedgeState, now)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Error("cycle failed, attempting reconnect", zap.Error(err))
			if rerr := e.reconnect(ctx); rerr != nil {
				e.log.Error("reconnect failed, shutting down", zap.Error(rerr))
				return rerr
			}
			e.log.Info("reconnected, resuming")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) reconnect(ctx context.Context) error {
	// Tear the session down first so the redial starts clean.
	if err := e.gw.Close(); err != nil {
		e.log.Warn("gateway close before reconnect failed", zap.Error(err))
	}

	backoff := time.Duration(e.cfg.ReconnectBackoffSeconds) * time.Second
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
	}

	rc, ok := e.gw.(broker.Reconnector)
	if !ok {
		return errNotReconnectable
	}
	if err := rc.Reconnect(ctx); err != nil {
		return err
	}
	metrics.IncReconnect()
	return nil
}

// cycle is one pass over the book. Everything downstream works from the
// snapshot taken here; nothing re-fetches mid-cycle.
func (e *Engine) cycle(ctx context.Context, hedgeState hedge.State, now time.Time) (hedge.State, error) {
	dir := e.cfg.PrimaryDirection()

	primary, err := e.gw.OpenPositionsByMagic(ctx, e.cfg.Symbol, e.cfg.Magic, dir)
	if err != nil {
		return hedgeState, err
	}
	all, err := e.gw.OpenPositions(ctx, e.cfg.Symbol)
	if err != nil {
		return hedgeState, err
	}
	acct, err := e.gw.Account(ctx)
	if err != nil {
		return hedgeState, err
	}
	tick, err := e.gw.Tick(ctx, e.cfg.Symbol)
	if err != nil {
		return hedgeState, err
	}

	// Guards act on this process's book only. The hedge runs under its own
	// magic and stays out of guard scope; all_positions widens the analyzer
	// and margin guard to the whole symbol.
	book := ownPositions(all, e.cfg.Magic)
	analyzed := book
	if e.cfg.AllPositions {
		analyzed = all
	}

	sum := analysis.Summarize(analyzed, acct, tick)
	e.log.Info("cycle",
		zap.Int("positions", sum.TotalPositions),
		zap.Int("buys", sum.BuyCount),
		zap.Int("sells", sum.SellCount),
		zap.Float64("total_profit", sum.TotalProfit),
		zap.Float64("equity", sum.Equity),
		zap.Float64("margin_free_pct", sum.MarginFreePct),
	)

	current, previous := e.classifyTrend(ctx, now)

	// New entries on the primary side.
	if e.entryGate.Due(now) {
		e.tryEntry(ctx, primary, all, acct, tick, current, previous, now)
	}

	// Order-count thresholds reduce an overgrown book.
	for _, act := range e.thresholds.Check(dir, len(primary), now) {
		e.log.Warn("order threshold reached",
			zap.Int("max", act.Rule.MaxOrderCount),
			zap.Int("closing", act.Reduction),
			zap.Time("cooldown_until", act.CooldownUntil),
		)
		for _, p := range risk.WorstN(primary, act.Reduction) {
			if cerr := e.gw.ClosePosition(ctx, p); cerr != nil {
				e.log.Error("threshold close failed", zap.Int64("ticket", p.Ticket), zap.Error(cerr))
				continue
			}
			metrics.IncClose("threshold")
		}
	}

	if e.marginGate.Due(now) {
		e.runMarginInterval(ctx, sum, analyzed, current)
	}

	if e.ddGate.Due(now) {
		e.ddGuard.Check(ctx, book)
	}

	if e.hedgeGate.Due(now) {
		// Reload from disk so operator edits between cycles are honored.
		next := e.hedgeCtl.Run(ctx, e.hedgeStore.Load(), all, now)
		if err := e.hedgeStore.Save(next); err != nil {
			e.log.Error("hedge state save failed", zap.Error(err))
		}
		hedgeState = next
	}

	e.sweepStalePositions(ctx, analyzed, tick)

	if e.journalGate.Due(now) {
		rec := journal.FromSummary(e.runID, e.cfg.Symbol, sum)
		rec.Trend = string(current.Direction)
		rec.HedgeActive = hedgeState.Active
		if jerr := e.jrn.RecordCycle(rec); jerr != nil {
			e.log.Error("journal write failed", zap.Error(jerr))
		}
	}

	metrics.IncCycle()
	metrics.SetEquity(sum.Equity)
	metrics.SetTotalProfit(sum.TotalProfit)
	metrics.SetMarginFreePct(sum.MarginFreePct)
	metrics.SetOpenPositions(sum.BuyCount, sum.SellCount)
	metrics.SetHedgeActive(hedgeState.Active)

	return hedgeState, nil
}

// classifyTrend fetches both timeframes and classifies the last bar of
// each. Indicator failures never block the cycle: an unclassifiable
// timeframe degrades to one that agrees with the primary side, matching
// the permissive behavior on missing history.
func (e *Engine) classifyTrend(ctx context.Context, now time.Time) (current, previous signal.Classification) {
	agree := signal.Classification{
		Direction: signal.DirectionFor(e.cfg.PrimaryDirection()),
		Strength:  signal.StrengthUnknown,
	}
	current, previous = agree, agree

	if !e.cfg.IndicatorsEnabled {
		return current, previous
	}

	from := now.Add(-time.Duration(e.cfg.HistoryHours) * time.Hour)

	if cls, ok := e.classifyTimeframe(ctx, e.cfg.Timeframe, from, now); ok {
		current = cls
	}
	if cls, ok := e.classifyTimeframe(ctx, e.cfg.TimeframePrevious, from, now); ok {
		previous = cls
	}
	e.log.Info("trend",
		zap.String("timeframe", e.cfg.Timeframe),
		zap.String("direction", string(current.Direction)),
		zap.String("strength", string(current.Strength)),
	)
	return current, previous
}

func (e *Engine) classifyTimeframe(ctx context.Context, timeframe string, from, to time.Time) (signal.Classification, bool) {
	series, err := e.gw.Candles(ctx, e.cfg.Symbol, timeframe, from, to)
	if err != nil {
		e.log.Error("candle fetch failed", zap.String("timeframe", timeframe), zap.Error(err))
		return signal.Classification{}, false
	}
	cls, err := signal.Classify(series, e.cfg.EMAPeriod, e.cfg.ADXPeriod)
	if err != nil {
		e.log.Error("trend classification failed", zap.String("timeframe", timeframe), zap.Error(err))
		return signal.Classification{}, false
	}
	last, ok := signal.Last(cls)
	return last, ok
}

// tryEntry opens one position on the primary side when the price has left
// the open-price range by enough and the trend agrees.
func (e *Engine) tryEntry(ctx context.Context, primary, all []broker.Position, acct broker.Account, tick market.Tick, current, previous signal.Classification, now time.Time) {
	dir := e.cfg.PrimaryDirection()

	if !RangeEntry(primary, tick.Mid(), e.cfg.TargetUpDollars, e.cfg.TargetDownDollars, dir) {
		return
	}
	pullback := Pullback(primary, tick.Mid(), e.cfg.TargetDownDollars, dir)
	if pullback && e.downCooldown.Active(now) {
		e.log.Info("pullback entry in cooldown", zap.Time("until", e.downCooldown.Until()))
		return
	}
	if !signal.AllowsNewOrder(current, previous, dir) {
		e.log.Info("entry blocked by trend",
			zap.String("current", string(current.Direction)),
			zap.String("previous", string(previous.Direction)),
		)
		return
	}

	volume := balance.VolumeForBalance(acct.Balance)
	res, err := e.gw.PlaceOrder(ctx, broker.OrderRequest{
		Symbol:       e.cfg.Symbol,
		Direction:    dir,
		Volume:       volume,
		Magic:        e.cfg.Magic,
		StopPoints:   e.cfg.StopPoints,
		ProfitPoints: e.cfg.ProfitPoints,
		Comment:      "range entry",
	})
	if err != nil {
		e.log.Error("entry order failed", zap.Error(err))
		return
	}

	switch res.Status {
	case broker.OrderPlaced:
		e.log.Info("entry placed",
			zap.Int64("ticket", res.Ticket),
			zap.String("direction", dir.String()),
			zap.Float64("volume", volume),
		)
		e.thresholds.CountOrder(dir)
		metrics.IncOrder(dir.String())
		if pullback {
			e.downCooldown.Set(now, time.Duration(e.cfg.TargetDownIntervalSeconds)*time.Second)
		}
	case broker.OrderNoMargin:
		// Out of margin on a plain entry means the book is too heavy to
		// carry; flatten the primary side to free margin.
		e.log.Warn("entry refused, no margin; flattening primary side")
		for _, p := range primary {
			if cerr := e.gw.ClosePosition(ctx, p); cerr != nil {
				e.log.Error("flatten close failed", zap.Int64("ticket", p.Ticket), zap.Error(cerr))
				continue
			}
			metrics.IncClose("no_margin")
		}
	default:
		e.log.Error("entry rejected", zap.String("reason", res.Reason))
	}
}

// runMarginInterval is the slower maintenance beat: balancing against the
// trend, the low-margin guard, and the equity alert.
func (e *Engine) runMarginInterval(ctx context.Context, sum analysis.Summary, all []broker.Position, current signal.Classification) {
	dir := e.cfg.PrimaryDirection()

	opposing := signal.DirectionFor(dir.Opposite())
	if current.Direction == opposing {
		var placed int
		if dir == market.Buy {
			placed = e.balancer.PlaceBalancingSells(ctx, sum)
		} else {
			placed = e.balancer.PlaceBalancingBuys(ctx, sum)
		}
		if placed > 0 {
			e.log.Info("balancing orders placed", zap.Int("count", placed))
		}
	}

	e.mGuard.Check(ctx, sum.MarginFreePct, all)

	if e.watcher != nil && e.watcher.Observe(sum.Equity) {
		e.log.Info("equity alert sent", zap.Float64("equity", sum.Equity))
	}
}

// ownPositions filters the symbol book down to one magic, both directions.
func ownPositions(all []broker.Position, magic int64) []broker.Position {
	var out []broker.Position
	for _, p := range all {
		if p.Magic == magic {
			out = append(out, p)
		}
	}
	return out
}

// sweepStalePositions closes positions older than the configured maximum,
// measured against the tick time so a stale local clock cannot trigger it.
func (e *Engine) sweepStalePositions(ctx context.Context, all []broker.Position, tick market.Tick) {
	if !e.cfg.ClosePositionsByTime || e.cfg.MaxPositionDurationMinutes <= 0 {
		return
	}
	maxAge := time.Duration(e.cfg.MaxPositionDurationMinutes) * time.Minute
	for _, p := range all {
		age := tick.Time.Sub(p.OpenTime)
		if age <= maxAge {
			continue
		}
		e.log.Warn("position exceeded max age",
			zap.Int64("ticket", p.Ticket),
			zap.Duration("age", age),
			zap.Duration("max", maxAge),
		)
		if err := e.gw.ClosePosition(ctx, p); err != nil {
			e.log.Error("max-age close failed", zap.Int64("ticket", p.Ticket), zap.Error(err))
			continue
		}
		metrics.IncClose("max_age")
	}
}

// Package risk holds the per-cycle risk triggers: the floating-drawdown
// stop, the low-margin guard, and the order-count threshold rules. Pure
// decisions are plain functions; the guards wrap them with the one-shot
// Gateway I/O for a cycle.
package risk

import (
	"context"
	"sort"

	"github.com/rustyeddy/daytrader/broker"
	"github.com/rustyeddy/daytrader/metrics"
	"go.uber.org/zap"
)

// DrawdownTriggered reports whether total floating profit has crossed the
// (negative) threshold. Holds at exact equality.
func DrawdownTriggered(totalProfit, threshold float64) bool {
	return totalProfit <= threshold
}

// WorstN returns the n lowest-profit positions, ascending, so out[0] is the
// worst. Stable: ties keep their input order. Empty for n <= 0.
func WorstN(positions []broker.Position, n int) []broker.Position {
	if len(positions) == 0 || n <= 0 {
		return nil
	}
	sorted := make([]broker.Position, len(positions))
	copy(sorted, positions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Profit < sorted[j].Profit
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// DrawdownGuard closes the worst-performing positions once the book's
// floating loss crosses Threshold. Stateless between cycles.
type DrawdownGuard struct {
	Enabled    bool
	Threshold  float64 // must be strictly negative
	NumToClose int

	gw  broker.Gateway
	log *zap.Logger
}

func NewDrawdownGuard(gw broker.Gateway, log *zap.Logger, threshold float64, numToClose int, enabled bool) *DrawdownGuard {
	return &DrawdownGuard{
		Enabled:    enabled,
		Threshold:  threshold,
		NumToClose: numToClose,
		gw:         gw,
		log:        log,
	}
}

// Check evaluates the trigger against this cycle's positions and closes the
// worst NumToClose of them. Per-position close failures are logged and do
// not stop the rest; an unclosed loser is still open next cycle and will be
// re-selected.
func (g *DrawdownGuard) Check(ctx context.Context, positions []broker.Position) {
	if !g.Enabled {
		return
	}
	if g.NumToClose <= 0 {
		g.log.Warn("drawdown stop disabled: num_worst_to_close is not positive",
			zap.Int("num_to_close", g.NumToClose))
		return
	}
	if g.Threshold >= 0 {
		g.log.Error("drawdown stop disabled: threshold must be negative",
			zap.Float64("threshold", g.Threshold))
		return
	}
	if len(positions) == 0 {
		return
	}

	var total float64
	for _, p := range positions {
		total += p.Profit
	}
	if !DrawdownTriggered(total, g.Threshold) {
		return
	}

	g.log.Warn("floating drawdown trigger hit",
		zap.Float64("floating_profit", total),
		zap.Float64("threshold", g.Threshold))

	worst := WorstN(positions, g.NumToClose)
	closed := 0
	for _, p := range worst {
		g.log.Info("closing drawdown position",
			zap.Int64("ticket", p.Ticket),
			zap.String("direction", p.Direction.String()),
			zap.Float64("volume", p.Volume),
			zap.Float64("profit", p.Profit))
		if err := g.gw.ClosePosition(ctx, p); err != nil {
			g.log.Error("drawdown close failed, will retry next cycle",
				zap.Int64("ticket", p.Ticket), zap.Error(err))
			continue
		}
		closed++
		metrics.IncClose("drawdown")
	}
	g.log.Info("drawdown closes done",
		zap.Int("closed", closed), zap.Int("selected", len(worst)))
}

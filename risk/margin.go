package risk

import (
	"context"

	"github.com/rustyeddy/daytrader/broker"
	"github.com/rustyeddy/daytrader/metrics"
	"go.uber.org/zap"
)

// MarginGuard frees margin by closing the single worst position when the
// free-margin ratio drops under Threshold. It acts only on a positive ratio
// below the threshold; zero or negative means the snapshot cannot be
// trusted enough to act on. With exactly one position open it refuses to
// close, so a margin blip never flattens the whole book.
type MarginGuard struct {
	Threshold float64

	gw  broker.Gateway
	log *zap.Logger
}

func NewMarginGuard(gw broker.Gateway, log *zap.Logger, threshold float64) *MarginGuard {
	if threshold == 0 {
		threshold = 0.5
	}
	return &MarginGuard{Threshold: threshold, gw: gw, log: log}
}

// WorstPosition returns the open position with the lowest profit, or false
// on an empty book.
func WorstPosition(positions []broker.Position) (broker.Position, bool) {
	if len(positions) == 0 {
		return broker.Position{}, false
	}
	worst := positions[0]
	for _, p := range positions[1:] {
		if p.Profit < worst.Profit {
			worst = p
		}
	}
	return worst, true
}

func (g *MarginGuard) Check(ctx context.Context, marginFreePct float64, positions []broker.Position) {
	if marginFreePct <= 0 {
		if len(positions) > 0 {
			g.log.Error("margin ratio not positive, refusing to act",
				zap.Float64("margin_free_pct", marginFreePct))
		}
		return
	}
	if marginFreePct >= g.Threshold {
		return
	}

	g.log.Warn("low margin",
		zap.Float64("margin_free_pct", marginFreePct),
		zap.Float64("threshold", g.Threshold))

	switch len(positions) {
	case 0:
		g.log.Error("margin alert with no open positions to close")
		return
	case 1:
		g.log.Warn("only one position open, not closing it on margin alert",
			zap.Int64("ticket", positions[0].Ticket))
		return
	}

	worst, _ := WorstPosition(positions)
	g.log.Info("closing worst position to free margin",
		zap.Int64("ticket", worst.Ticket),
		zap.Float64("profit", worst.Profit))
	if err := g.gw.ClosePosition(ctx, worst); err != nil {
		g.log.Error("margin close failed, will retry next cycle",
			zap.Int64("ticket", worst.Ticket), zap.Error(err))
		return
	}
	metrics.IncClose("margin")
}

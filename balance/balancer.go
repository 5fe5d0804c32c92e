package balance

import (
	"context"
	"math/rand"

	"github.com/rustyeddy/daytrader/analysis"
	"github.com/rustyeddy/daytrader/broker"
	"github.com/rustyeddy/daytrader/market"
	"go.uber.org/zap"
)

// Settings is the dynamic margin-free strategy configuration.
type Settings struct {
	Enabled      bool
	Symbol       string
	Magic        int64
	Tiers        []Tier
	RoundMode    RoundMode
	Distribution DistMode
}

// Balancer emits counter-orders against the dominant side. Balancing only
// ever narrows an imbalance: when the minority side's volume or count has
// caught up, nothing is placed.
type Balancer struct {
	cfg Settings
	gw  broker.Gateway
	log *zap.Logger
	rng *rand.Rand
}

func New(cfg Settings, gw broker.Gateway, log *zap.Logger, rng *rand.Rand) *Balancer {
	return &Balancer{cfg: cfg, gw: gw, log: log, rng: rng}
}

// PlaceBalancingSells opens SELLs against a BUY-heavy book. Returns the
// number of orders successfully placed.
func (b *Balancer) PlaceBalancingSells(ctx context.Context, sum analysis.Summary) int {
	return b.place(ctx, sum, market.Sell)
}

// PlaceBalancingBuys is the mirror: BUYs against a SELL-heavy book.
func (b *Balancer) PlaceBalancingBuys(ctx context.Context, sum analysis.Summary) int {
	return b.place(ctx, sum, market.Buy)
}

func (b *Balancer) place(ctx context.Context, sum analysis.Summary, dir market.Direction) int {
	if !b.cfg.Enabled {
		return 0
	}

	tier := SelectTier(b.cfg.Tiers, sum.MarginFreePct)
	if tier == nil {
		b.log.Debug("no tier covers current margin ratio, balancing off this cycle",
			zap.Float64("margin_free_pct", sum.MarginFreePct))
		return 0
	}

	var dominant, minority int
	var dominantVol, minorityVol float64
	if dir == market.Sell {
		dominant, minority = sum.BuyCount, sum.SellCount
		dominantVol, minorityVol = sum.BuyVolume, sum.SellVolume
	} else {
		dominant, minority = sum.SellCount, sum.BuyCount
		dominantVol, minorityVol = sum.SellVolume, sum.BuyVolume
	}

	if minorityVol >= dominantVol {
		b.log.Info("balance not favorable by volume",
			zap.String("direction", dir.String()),
			zap.Float64("minority_volume", minorityVol),
			zap.Float64("dominant_volume", dominantVol))
		return 0
	}
	if minority >= dominant {
		b.log.Info("balance not favorable by count",
			zap.String("direction", dir.String()),
			zap.Int("minority", minority),
			zap.Int("dominant", dominant))
		return 0
	}

	n := OrderCount(dominant, minority, tier.OrderPercentage, b.cfg.RoundMode)
	if n <= 0 {
		return 0
	}
	b.log.Info("placing balancing orders",
		zap.String("direction", dir.String()),
		zap.Int("orders", n),
		zap.Float64("volume", tier.Volume))

	levels := DistributeTPSL(n, tier.TPMin, tier.TPMax, tier.SLMin, tier.SLMax, b.cfg.Distribution, b.rng)

	// Best-effort batch: a failed order is logged and the rest still go out.
	placed := 0
	for i, lv := range levels {
		res, err := b.gw.PlaceOrder(ctx, broker.OrderRequest{
			Symbol:       b.cfg.Symbol,
			Direction:    dir,
			Volume:       tier.Volume,
			Magic:        b.cfg.Magic,
			StopPoints:   lv.SL,
			ProfitPoints: lv.TP,
			Comment:      "balance",
		})
		if err != nil {
			b.log.Error("balancing order failed",
				zap.Int("index", i), zap.Error(err))
			continue
		}
		if !res.Placed() {
			b.log.Error("balancing order refused",
				zap.Int("index", i),
				zap.String("status", res.Status.String()),
				zap.String("reason", res.Reason))
			continue
		}
		placed++
		b.log.Info("balancing order placed",
			zap.Int64("ticket", res.Ticket),
			zap.Float64("tp", lv.TP),
			zap.Float64("sl", lv.SL))
	}
	b.log.Info("balancing batch done", zap.Int("placed", placed), zap.Int("requested", n))
	return placed
}

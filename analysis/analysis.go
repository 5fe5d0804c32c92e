// Package analysis aggregates one cycle's position snapshot into the
// summary metrics every guard reads. It is pure: the engine fetches from
// the Gateway once per cycle and passes the values in, so all guards see
// the same view.
package analysis

import (
	"math"
	"time"

	"github.com/rustyeddy/daytrader/broker"
	"github.com/rustyeddy/daytrader/market"
)

type Summary struct {
	Time           time.Time
	TotalPositions int
	BuyCount       int
	SellCount      int
	BuyVolume      float64
	SellVolume     float64
	BuyProfit      float64
	SellProfit     float64
	TotalProfit    float64
	Equity         float64
	Balance        float64
	MarginFree     float64
	MarginFreePct  float64
	CurrentPrice   float64
}

// Summarize rolls the position list and account snapshot into a Summary.
// MarginFreePct is free margin over equity rounded to 4 decimals, 0 when
// equity is 0.
func Summarize(positions []broker.Position, acct broker.Account, tick market.Tick) Summary {
	s := Summary{
		Time:           tick.Time,
		TotalPositions: len(positions),
		Equity:         acct.Equity,
		Balance:        acct.Balance,
		MarginFree:     acct.MarginFree,
		TotalProfit:    acct.Profit,
		CurrentPrice:   tick.Mid(),
	}

	for _, p := range positions {
		switch p.Direction {
		case market.Buy:
			s.BuyCount++
			s.BuyVolume += p.Volume
			s.BuyProfit += p.Profit
		case market.Sell:
			s.SellCount++
			s.SellVolume += p.Volume
			s.SellProfit += p.Profit
		}
	}
	s.BuyProfit = round2(s.BuyProfit)
	s.SellProfit = round2(s.SellProfit)

	if acct.Equity != 0 {
		s.MarginFreePct = round4(acct.MarginFree / acct.Equity)
	}
	return s
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

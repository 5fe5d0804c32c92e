// Package journal persists one row per main-loop cycle so a day of
// trading can be reconstructed and audited after the fact.
package journal

import (
	"time"

	"github.com/rustyeddy/daytrader/analysis"
)

// CycleRecord is one snapshot of the book at the end of a cycle.
type CycleRecord struct {
	RunID          string
	Time           time.Time
	Symbol         string
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
	Price          float64
	Trend          string
	HedgeActive    bool
}

// FromSummary builds a record from a cycle summary. Trend and hedge
// state are filled by the caller.
func FromSummary(runID, symbol string, s analysis.Summary) CycleRecord {
	return CycleRecord{
		RunID:          runID,
		Time:           s.Time,
		Symbol:         symbol,
		TotalPositions: s.TotalPositions,
		BuyCount:       s.BuyCount,
		SellCount:      s.SellCount,
		BuyVolume:      s.BuyVolume,
		SellVolume:     s.SellVolume,
		BuyProfit:      s.BuyProfit,
		SellProfit:     s.SellProfit,
		TotalProfit:    s.TotalProfit,
		Equity:         s.Equity,
		Balance:        s.Balance,
		MarginFree:     s.MarginFree,
		MarginFreePct:  s.MarginFreePct,
		Price:          s.CurrentPrice,
	}
}

type Journal interface {
	RecordCycle(CycleRecord) error
	Close() error
}

// Nop discards every record. Used when journaling is disabled.
type Nop struct{}

func (Nop) RecordCycle(CycleRecord) error { return nil }
func (Nop) Close() error                  { return nil }

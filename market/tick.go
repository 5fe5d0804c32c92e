package market

import "time"

// Tick is a bid/ask quote snapshot for one symbol. Time is the terminal's
// server time, which the rest of the system treats as "now" for anything
// driven by market data.
type Tick struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time
}

func (t Tick) Mid() float64 {
	return (t.Bid + t.Ask) / 2
}

func (t Tick) Spread() float64 {
	return t.Ask - t.Bid
}

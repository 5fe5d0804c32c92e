package engine

import (
	"github.com/rustyeddy/daytrader/broker"
	"github.com/rustyeddy/daytrader/market"
)

// RangeEntry decides whether the current price justifies a new entry on
// the side, given the book already open on that side.
//
// An empty book always allows an entry. Otherwise the open prices span a
// range; a price inside the range blocks the entry. Outside the range the
// entry opens only past a buffer: trading with the side (breakout) must
// clear targetUp, trading against it (averaging in) must clear targetDown.
func RangeEntry(positions []broker.Position, price, targetUp, targetDown float64, dir market.Direction) bool {
	minOpen, maxOpen, ok := openBand(positions)
	if !ok {
		return true
	}

	if price >= minOpen && price <= maxOpen {
		return false
	}

	switch dir {
	case market.Buy:
		return price > maxOpen+targetUp || price < minOpen-targetDown
	case market.Sell:
		return price < minOpen-targetUp || price > maxOpen+targetDown
	}
	return false
}

// Pullback reports whether the price sits on the averaging-in side of the
// band beyond targetDown. These entries widen an already losing book, so
// the engine cools them down separately from breakout entries.
func Pullback(positions []broker.Position, price, targetDown float64, dir market.Direction) bool {
	minOpen, maxOpen, ok := openBand(positions)
	if !ok {
		return false
	}
	if dir == market.Buy {
		return price < minOpen-targetDown
	}
	return price > maxOpen+targetDown
}

// openBand is the span of open prices, ok false on an empty book.
func openBand(positions []broker.Position) (minOpen, maxOpen float64, ok bool) {
	if len(positions) == 0 {
		return 0, 0, false
	}
	minOpen = positions[0].OpenPrice
	maxOpen = positions[0].OpenPrice
	for _, p := range positions[1:] {
		if p.OpenPrice < minOpen {
			minOpen = p.OpenPrice
		}
		if p.OpenPrice > maxOpen {
			maxOpen = p.OpenPrice
		}
	}
	return minOpen, maxOpen, true
}

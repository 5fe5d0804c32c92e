package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/daytrader/market"
)

// Gateway is the terminal connection the position manager drives. The
// manager never mutates positions locally; it issues commands through the
// Gateway and observes the resulting reality on the next cycle's fetch.
type Gateway interface {
	// OpenPositions returns every open position on the symbol, any magic.
	OpenPositions(ctx context.Context, symbol string) ([]Position, error)

	// OpenPositionsByMagic filters by owning strategy tag and direction.
	OpenPositionsByMagic(ctx context.Context, symbol string, magic int64, dir market.Direction) ([]Position, error)

	Account(ctx context.Context) (Account, error)
	Tick(ctx context.Context, symbol string) (market.Tick, error)
	Candles(ctx context.Context, symbol, timeframe string, from, to time.Time) (market.CandleSeries, error)

	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	ModifyStops(ctx context.Context, ticket int64, stopLoss, takeProfit float64) error
	ClosePosition(ctx context.Context, pos Position) error

	Close() error
}

// Reconnector is implemented by gateways that can re-establish a dropped
// terminal connection. The engine tears down and redials through this after
// a mid-cycle communication failure.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// Position is a brokerage-held trade, immutable for the cycle it was
// fetched in.
type Position struct {
	Ticket       int64
	Symbol       string
	Direction    market.Direction
	Volume       float64
	OpenPrice    float64
	CurrentPrice float64
	Profit       float64
	OpenTime     time.Time
	Magic        int64
}

// Account is the terminal's account snapshot.
type Account struct {
	Login      int64
	Currency   string
	Balance    float64
	Equity     float64
	MarginFree float64
	Profit     float64
}

// OrderRequest places a market order with point-distance stops. The
// terminal converts point distances to absolute SL/TP prices around the
// fill price.
type OrderRequest struct {
	Symbol       string
	Direction    market.Direction
	Volume       float64
	Magic        int64
	StopPoints   float64
	ProfitPoints float64
	Comment      string
}

type OrderStatus int

const (
	OrderPlaced OrderStatus = iota
	OrderNoMargin
	OrderRejected
)

func (s OrderStatus) String() string {
	switch s {
	case OrderPlaced:
		return "placed"
	case OrderNoMargin:
		return "no_margin"
	case OrderRejected:
		return "rejected"
	}
	return "unknown"
}

// OrderResult is the single tagged outcome of a placement. A transport
// failure is an error from PlaceOrder; a terminal-side refusal is a status
// here, with Ticket set only on OrderPlaced.
type OrderResult struct {
	Status OrderStatus
	Ticket int64
	Reason string
}

func (r OrderResult) Placed() bool { return r.Status == OrderPlaced }

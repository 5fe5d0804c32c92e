// Package sim is an in-memory Gateway used by tests and dry runs. It holds
// whatever account, tick, and position state the caller sets and scripts
// order outcomes, recording every command it receives.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/daytrader/broker"
	"github.com/rustyeddy/daytrader/market"
)

type Gateway struct {
	mu        sync.Mutex
	acct      broker.Account
	tick      market.Tick
	candles   market.CandleSeries
	positions map[int64]broker.Position
	nextTick  int64

	// Scripted outcomes. When empty, orders fill with sequential tickets
	// and closes succeed.
	OrderScript []broker.OrderResult
	CloseErr    error
	TickErr     error
	AccountErr  error

	// Recorded calls.
	Placed   []broker.OrderRequest
	Closed   []int64
	Modified []int64
}

func New() *Gateway {
	return &Gateway{
		positions: make(map[int64]broker.Position),
		nextTick:  100000,
	}
}

func (g *Gateway) SetAccount(a broker.Account) { g.mu.Lock(); g.acct = a; g.mu.Unlock() }
func (g *Gateway) SetTick(t market.Tick)       { g.mu.Lock(); g.tick = t; g.mu.Unlock() }
func (g *Gateway) SetCandles(cs market.CandleSeries) {
	g.mu.Lock()
	g.candles = cs
	g.mu.Unlock()
}

func (g *Gateway) AddPosition(p broker.Position) {
	g.mu.Lock()
	g.positions[p.Ticket] = p
	g.mu.Unlock()
}

func (g *Gateway) RemovePosition(ticket int64) {
	g.mu.Lock()
	delete(g.positions, ticket)
	g.mu.Unlock()
}

func (g *Gateway) OpenPositions(ctx context.Context, symbol string) ([]broker.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []broker.Position
	for _, p := range g.positions {
		if p.Symbol == symbol {
			out = append(out, p)
		}
	}
	return out, nil
}

func (g *Gateway) OpenPositionsByMagic(ctx context.Context, symbol string, magic int64, dir market.Direction) ([]broker.Position, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []broker.Position
	for _, p := range g.positions {
		if p.Symbol == symbol && p.Magic == magic && p.Direction == dir {
			out = append(out, p)
		}
	}
	return out, nil
}

func (g *Gateway) Account(ctx context.Context) (broker.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.AccountErr != nil {
		return broker.Account{}, g.AccountErr
	}
	return g.acct, nil
}

func (g *Gateway) Tick(ctx context.Context, symbol string) (market.Tick, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.TickErr != nil {
		return market.Tick{}, g.TickErr
	}
	return g.tick, nil
}

func (g *Gateway) Candles(ctx context.Context, symbol, timeframe string, from, to time.Time) (market.CandleSeries, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.candles, nil
}

func (g *Gateway) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.Placed = append(g.Placed, req)

	if len(g.OrderScript) > 0 {
		res := g.OrderScript[0]
		g.OrderScript = g.OrderScript[1:]
		if res.Placed() && res.Ticket != 0 {
			g.openLocked(res.Ticket, req)
		}
		return res, nil
	}

	g.nextTick++
	t := g.nextTick
	g.openLocked(t, req)
	return broker.OrderResult{Status: broker.OrderPlaced, Ticket: t}, nil
}

func (g *Gateway) openLocked(ticket int64, req broker.OrderRequest) {
	price := g.tick.Ask
	if req.Direction == market.Sell {
		price = g.tick.Bid
	}
	g.positions[ticket] = broker.Position{
		Ticket:       ticket,
		Symbol:       req.Symbol,
		Direction:    req.Direction,
		Volume:       req.Volume,
		OpenPrice:    price,
		CurrentPrice: price,
		OpenTime:     g.tick.Time,
		Magic:        req.Magic,
	}
}

func (g *Gateway) ModifyStops(ctx context.Context, ticket int64, stopLoss, takeProfit float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.positions[ticket]; !ok {
		return fmt.Errorf("modify stops: position %d not found", ticket)
	}
	g.Modified = append(g.Modified, ticket)
	return nil
}

func (g *Gateway) ClosePosition(ctx context.Context, pos broker.Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Closed = append(g.Closed, pos.Ticket)
	if g.CloseErr != nil {
		return g.CloseErr
	}
	if _, ok := g.positions[pos.Ticket]; !ok {
		return fmt.Errorf("close: position %d not found", pos.Ticket)
	}
	delete(g.positions, pos.Ticket)
	return nil
}

func (g *Gateway) Close() error { return nil }

func (g *Gateway) Reconnect(ctx context.Context) error { return nil }

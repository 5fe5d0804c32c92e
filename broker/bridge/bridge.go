// Package bridge implements the broker.Gateway over HTTP against a local
// MT5 terminal bridge sidecar. The sidecar owns the terminal session; this
// client only translates Gateway calls into its JSON endpoints.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rustyeddy/daytrader/broker"
	"github.com/rustyeddy/daytrader/market"
	"go.uber.org/zap"
)

const userAgent = "daytrader/bridge"

type Gateway struct {
	base string
	hc   *http.Client
	log  *zap.Logger
}

func New(base string, log *zap.Logger) *Gateway {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "http://127.0.0.1:8787"
	}
	base = strings.TrimRight(base, "/")
	return &Gateway{
		base: base,
		hc:   &http.Client{Timeout: 15 * time.Second},
		log:  log,
	}
}

type positionRow struct {
	Ticket    int64   `json:"ticket"`
	Symbol    string  `json:"symbol"`
	Type      string  `json:"type"` // "BUY" | "SELL"
	Volume    float64 `json:"volume"`
	PriceOpen float64 `json:"price_open"`
	PriceCur  float64 `json:"price_current"`
	Profit    float64 `json:"profit"`
	Time      int64   `json:"time"` // unix seconds, server time
	Magic     int64   `json:"magic"`
}

func (r positionRow) toPosition() broker.Position {
	dir := market.Buy
	if strings.EqualFold(r.Type, "SELL") {
		dir = market.Sell
	}
	return broker.Position{
		Ticket:       r.Ticket,
		Symbol:       r.Symbol,
		Direction:    dir,
		Volume:       r.Volume,
		OpenPrice:    r.PriceOpen,
		CurrentPrice: r.PriceCur,
		Profit:       r.Profit,
		OpenTime:     time.Unix(r.Time, 0).UTC(),
		Magic:        r.Magic,
	}
}

func (g *Gateway) OpenPositions(ctx context.Context, symbol string) ([]broker.Position, error) {
	var rows []positionRow
	u := fmt.Sprintf("%s/positions?symbol=%s", g.base, url.QueryEscape(symbol))
	if err := g.getJSON(ctx, u, &rows); err != nil {
		return nil, fmt.Errorf("open positions: %w", err)
	}
	out := make([]broker.Position, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toPosition())
	}
	return out, nil
}

func (g *Gateway) OpenPositionsByMagic(ctx context.Context, symbol string, magic int64, dir market.Direction) ([]broker.Position, error) {
	all, err := g.OpenPositions(ctx, symbol)
	if err != nil {
		return nil, err
	}
	var out []broker.Position
	for _, p := range all {
		if p.Magic == magic && p.Direction == dir {
			out = append(out, p)
		}
	}
	return out, nil
}

func (g *Gateway) Account(ctx context.Context) (broker.Account, error) {
	var out struct {
		Login      int64   `json:"login"`
		Currency   string  `json:"currency"`
		Balance    float64 `json:"balance"`
		Equity     float64 `json:"equity"`
		MarginFree float64 `json:"margin_free"`
		Profit     float64 `json:"profit"`
	}
	if err := g.getJSON(ctx, g.base+"/account", &out); err != nil {
		return broker.Account{}, fmt.Errorf("account: %w", err)
	}
	return broker.Account{
		Login:      out.Login,
		Currency:   out.Currency,
		Balance:    out.Balance,
		Equity:     out.Equity,
		MarginFree: out.MarginFree,
		Profit:     out.Profit,
	}, nil
}

func (g *Gateway) Tick(ctx context.Context, symbol string) (market.Tick, error) {
	var out struct {
		Bid  float64 `json:"bid"`
		Ask  float64 `json:"ask"`
		Time int64   `json:"time"`
	}
	u := fmt.Sprintf("%s/tick/%s", g.base, url.PathEscape(symbol))
	if err := g.getJSON(ctx, u, &out); err != nil {
		return market.Tick{}, fmt.Errorf("tick %s: %w", symbol, err)
	}
	return market.Tick{
		Symbol: symbol,
		Bid:    out.Bid,
		Ask:    out.Ask,
		Time:   time.Unix(out.Time, 0).UTC(),
	}, nil
}

func (g *Gateway) Candles(ctx context.Context, symbol, timeframe string, from, to time.Time) (market.CandleSeries, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("timeframe", timeframe)
	q.Set("from", fmt.Sprintf("%d", from.Unix()))
	q.Set("to", fmt.Sprintf("%d", to.Unix()))

	var rows []struct {
		Time   int64   `json:"time"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume float64 `json:"tick_volume"`
	}
	if err := g.getJSON(ctx, g.base+"/candles?"+q.Encode(), &rows); err != nil {
		return nil, fmt.Errorf("candles %s %s: %w", symbol, timeframe, err)
	}
	cs := make(market.CandleSeries, 0, len(rows))
	for _, r := range rows {
		cs = append(cs, market.Candle{
			Time:   time.Unix(r.Time, 0).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		})
	}
	return cs, nil
}

func (g *Gateway) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	body := map[string]any{
		"client_order_id": uuid.NewString(),
		"symbol":          req.Symbol,
		"type":            req.Direction.String(),
		"volume":          req.Volume,
		"magic":           req.Magic,
		"stop_points":     req.StopPoints,
		"profit_points":   req.ProfitPoints,
		"comment":         req.Comment,
	}
	var out struct {
		Status string `json:"status"` // "done" | "no_money" | "rejected"
		Ticket int64  `json:"ticket"`
		Reason string `json:"reason"`
	}
	if err := g.postJSON(ctx, g.base+"/order", body, &out); err != nil {
		return broker.OrderResult{}, fmt.Errorf("place order: %w", err)
	}
	switch out.Status {
	case "done":
		return broker.OrderResult{Status: broker.OrderPlaced, Ticket: out.Ticket}, nil
	case "no_money":
		return broker.OrderResult{Status: broker.OrderNoMargin, Reason: out.Reason}, nil
	default:
		return broker.OrderResult{Status: broker.OrderRejected, Reason: out.Reason}, nil
	}
}

func (g *Gateway) ModifyStops(ctx context.Context, ticket int64, stopLoss, takeProfit float64) error {
	body := map[string]any{
		"ticket": ticket,
		"sl":     stopLoss,
		"tp":     takeProfit,
	}
	var out struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := g.postJSON(ctx, g.base+"/order/modify", body, &out); err != nil {
		return fmt.Errorf("modify stops %d: %w", ticket, err)
	}
	if out.Status != "done" {
		return fmt.Errorf("modify stops %d: %s", ticket, out.Reason)
	}
	return nil
}

func (g *Gateway) ClosePosition(ctx context.Context, pos broker.Position) error {
	body := map[string]any{
		"ticket": pos.Ticket,
		"symbol": pos.Symbol,
		"volume": pos.Volume,
	}
	var out struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := g.postJSON(ctx, g.base+"/position/close", body, &out); err != nil {
		return fmt.Errorf("close position %d: %w", pos.Ticket, err)
	}
	if out.Status != "done" {
		return fmt.Errorf("close position %d: %s", pos.Ticket, out.Reason)
	}
	g.log.Info("close order sent",
		zap.Int64("ticket", pos.Ticket),
		zap.Float64("volume", pos.Volume))
	return nil
}

// Close asks the sidecar to shut the terminal session down. A failure here
// is reported but the client itself holds no resources worth fighting for.
func (g *Gateway) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var out struct {
		Status string `json:"status"`
	}
	return g.postJSON(ctx, g.base+"/shutdown", map[string]any{}, &out)
}

// Reconnect re-initializes the terminal session after a dropped connection.
func (g *Gateway) Reconnect(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := g.postJSON(ctx, g.base+"/initialize", map[string]any{}, &out); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	if out.Status != "done" {
		return fmt.Errorf("reconnect: %s", out.Reason)
	}
	return nil
}

func (g *Gateway) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	return g.do(req, out)
}

func (g *Gateway) postJSON(ctx context.Context, u string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	return g.do(req, out)
}

func (g *Gateway) do(req *http.Request, out any) error {
	res, err := g.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bridge %d: %s", res.StatusCode, string(b))
	}
	return json.NewDecoder(res.Body).Decode(out)
}

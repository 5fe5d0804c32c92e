// Package metrics exposes the manager's Prometheus metrics.
//
//   - manager_cycles_total: completed main-loop cycles
//   - manager_orders_total{side}: orders placed (BUY|SELL)
//   - manager_closes_total{reason}: positions closed, split by trigger
//   - manager_equity: account equity (gauge)
//   - manager_total_profit: floating P/L across the book (gauge)
//   - manager_margin_free_pct: free margin as a fraction of equity (gauge)
//   - manager_open_positions{side}: open position count (gauge)
//   - manager_hedge_active: 1 while a hedge is being tracked (gauge)
//   - manager_reconnects_total: gateway reconnect attempts
//
// Served at /metrics in Prometheus text format when metrics_listen is set.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "manager_cycles_total",
			Help: "Completed main-loop cycles",
		},
	)

	orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "manager_orders_total",
			Help: "Orders placed",
		},
		[]string{"side"}, // BUY|SELL
	)

	closes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "manager_closes_total",
			Help: "Positions closed, split by trigger",
		},
		[]string{"reason"}, // drawdown|margin|hedge|threshold|no_margin|max_age
	)

	equity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "manager_equity",
			Help: "Account equity",
		},
	)

	totalProfit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "manager_total_profit",
			Help: "Floating profit across all open positions",
		},
	)

	marginFreePct = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "manager_margin_free_pct",
			Help: "Free margin as a fraction of equity",
		},
	)

	openPositions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "manager_open_positions",
			Help: "Open positions by side",
		},
		[]string{"side"},
	)

	hedgeActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "manager_hedge_active",
			Help: "1 while a hedge position is being tracked",
		},
	)

	reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "manager_reconnects_total",
			Help: "Gateway reconnect attempts",
		},
	)
)

func init() {
	prometheus.MustRegister(cycles, orders, closes)
	prometheus.MustRegister(equity, totalProfit, marginFreePct, openPositions)
	prometheus.MustRegister(hedgeActive, reconnects)
}

func IncCycle()                { cycles.Inc() }
func IncOrder(side string)     { orders.WithLabelValues(side).Inc() }
func IncClose(reason string)   { closes.WithLabelValues(reason).Inc() }
func SetEquity(v float64)      { equity.Set(v) }
func SetTotalProfit(v float64) { totalProfit.Set(v) }
func SetMarginFreePct(v float64) {
	marginFreePct.Set(v)
}
func SetOpenPositions(buys, sells int) {
	openPositions.WithLabelValues("BUY").Set(float64(buys))
	openPositions.WithLabelValues("SELL").Set(float64(sells))
}
func SetHedgeActive(active bool) {
	if active {
		hedgeActive.Set(1)
	} else {
		hedgeActive.Set(0)
	}
}
func IncReconnect() { reconnects.Inc() }

// Serve starts the /metrics endpoint on addr. It blocks, so callers run
// it in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}

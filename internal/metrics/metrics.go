// Package metrics exposes the paper bot's Prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"fortuneBot/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fortune_cycles_total", Help: "Trading cycles completed"},
	)
	CycleErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fortune_cycle_errors_total", Help: "Trading cycles that failed"},
	)
	FetchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fortune_fetch_failures_total", Help: "Symbols skipped because market data was unavailable"},
		[]string{"symbol"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fortune_signals_total", Help: "Signals accepted by the risk filter"},
		[]string{"strategy", "side"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "fortune_orders_total", Help: "Paper orders filled"},
		[]string{"symbol", "side"},
	)
	PortfolioValue = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "fortune_portfolio_value", Help: "Cash plus open positions at the last marks"},
	)
	CashBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "fortune_cash_balance", Help: "Free cash in the paper account"},
	)
	OpenPositions = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "fortune_open_positions", Help: "Number of open positions"},
	)
)

func init() {
	prometheus.MustRegister(
		CyclesTotal,
		CycleErrorsTotal,
		FetchFailuresTotal,
		SignalsTotal,
		OrdersTotal,
		PortfolioValue,
		CashBalance,
		OpenPositions,
	)
}

// Serve binds addr and exposes /metrics on it in the background. The returned
// server's Addr holds the bound address; Close or Shutdown it to stop.
func Serve(addr string, logger ports.Logger) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen for metrics on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: ln.Addr().String(), Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), err, "Metrics endpoint stopped", map[string]interface{}{"addr": srv.Addr})
		}
	}()
	return srv, nil
}

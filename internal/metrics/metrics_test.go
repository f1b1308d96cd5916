package metrics

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"fortuneBot/internal/adapters/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRegistered(t *testing.T) {
	srv, err := Serve("127.0.0.1:0", logger.Nop{})
	require.NoError(t, err)
	defer srv.Close()

	OrdersTotal.WithLabelValues("BTCUSDT", "buy").Inc()
	PortfolioValue.Set(10250)

	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["fortune_orders_total"])
	assert.True(t, names["fortune_portfolio_value"])
}

func TestHandlerExposition(t *testing.T) {
	SignalsTotal.WithLabelValues("rsi", "sell").Inc()
	CashBalance.Set(9000)

	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `fortune_signals_total{side="sell",strategy="rsi"} 1`)
	assert.Contains(t, body, "fortune_cash_balance 9000")
}

func TestServe(t *testing.T) {
	srv, err := Serve("127.0.0.1:0", logger.Nop{})
	require.NoError(t, err)
	defer srv.Close()

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", srv.Addr))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "fortune_cycles_total")

	taken, err := Serve(srv.Addr, logger.Nop{})
	assert.Error(t, err, "address already bound")
	assert.Nil(t, taken)
}

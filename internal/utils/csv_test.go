package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBarsCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "BTCUSDT_1m.csv")
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	bars := []domain.Bar{
		{Timestamp: start, Symbol: "BTCUSDT", Interval: "1m", Open: 45000.1, High: 45010.25, Low: 44990, Close: 45005.5, Volume: 12.345},
		{Timestamp: start.Add(time.Minute), Symbol: "BTCUSDT", Interval: "1m", Open: 45005.5, High: 45020, Low: 45001, Close: 45019.99, Volume: 8},
	}

	require.NoError(t, WriteBarsToCSV(bars, path))
	got, err := ReadBarsFromCSV(path)
	require.NoError(t, err)
	assert.Equal(t, bars, got)
}

func TestTradesCSV_QuantityPrecision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	trades := []domain.Trade{
		{ID: "a", Timestamp: ts, Symbol: "ETHUSDT", Side: domain.Sell, Quantity: 0.123456789123, Price: 3000.5, Profit: -12.75, Strategy: "rsi"},
	}

	require.NoError(t, WriteTradesToCSV(trades, path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), ",0.12345679,")

	got, err := ReadTradesFromCSV(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.12345679, got[0].Quantity)
	assert.Equal(t, -12.75, got[0].Profit)
	assert.Equal(t, domain.Sell, got[0].Side)
	assert.True(t, ts.Equal(got[0].Timestamp))
	assert.Equal(t, "rsi", got[0].Strategy)
}

func TestEquityCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "equity.csv")
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	points := []domain.EquityPoint{
		{Timestamp: ts, Equity: 10000, Cash: 10000},
		{Timestamp: ts.Add(time.Minute), Equity: 10012.5, Cash: 9800},
	}

	require.NoError(t, WriteEquityToCSV(points, path))
	got, err := ReadEquityFromCSV(path)
	require.NoError(t, err)
	assert.Equal(t, points, got)
}

func TestReadCSV_Errors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{name: "empty", content: ""},
		{name: "wrong header", content: "time,equity,cash\n"},
		{name: "bad number", content: "timestamp,equity,cash\n2024-05-01T00:00:00Z,abc,1\n"},
		{name: "bad time", content: "timestamp,equity,cash\nyesterday,1,1\n"},
		{name: "short row", content: "timestamp,equity,cash\n2024-05-01T00:00:00Z,1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".csv")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := ReadEquityFromCSV(path)
			assert.ErrorIs(t, err, ports.ErrInvalidRequest)
		})
	}

	_, err := ReadTradesFromCSV(filepath.Join(dir, "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadTradesFromCSV_UnknownSide(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	content := "id,timestamp,symbol,side,quantity,price,profit,strategy\nx,2024-05-01T00:00:00Z,BTCUSDT,hold,1,1,0,rsi\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := ReadTradesFromCSV(path)
	assert.ErrorIs(t, err, ports.ErrInvalidRequest)
}

package utils

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"

	"github.com/shopspring/decimal"
)

const quantityDecimals = 8

var (
	barHeader    = []string{"open_time", "symbol", "interval", "open", "high", "low", "close", "volume"}
	tradeHeader  = []string{"id", "timestamp", "symbol", "side", "quantity", "price", "profit", "strategy"}
	equityHeader = []string{"timestamp", "equity", "cash"}
)

// WriteBarsToCSV writes bars to filename, creating parent directories.
func WriteBarsToCSV(bars []domain.Bar, filename string) error {
	rows := make([][]string, 0, len(bars))
	for _, b := range bars {
		rows = append(rows, []string{
			b.Timestamp.UTC().Format(time.RFC3339),
			b.Symbol,
			b.Interval,
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		})
	}
	return writeCSV(filename, barHeader, rows)
}

// ReadBarsFromCSV reads bars written by WriteBarsToCSV.
func ReadBarsFromCSV(filename string) ([]domain.Bar, error) {
	rows, err := readCSV(filename, barHeader)
	if err != nil {
		return nil, err
	}
	bars := make([]domain.Bar, 0, len(rows))
	for i, row := range rows {
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return nil, rowError(filename, i, err)
		}
		values, err := parseFloats(row[3:8])
		if err != nil {
			return nil, rowError(filename, i, err)
		}
		bars = append(bars, domain.Bar{
			Timestamp: ts.UTC(),
			Symbol:    row[1],
			Interval:  row[2],
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
		})
	}
	return bars, nil
}

// WriteTradesToCSV writes trades with quantities fixed to eight decimals.
func WriteTradesToCSV(trades []domain.Trade, filename string) error {
	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, []string{
			t.ID,
			t.Timestamp.UTC().Format(time.RFC3339Nano),
			t.Symbol,
			string(t.Side),
			decimal.NewFromFloat(t.Quantity).StringFixed(quantityDecimals),
			formatFloat(t.Price),
			formatFloat(t.Profit),
			t.Strategy,
		})
	}
	return writeCSV(filename, tradeHeader, rows)
}

func ReadTradesFromCSV(filename string) ([]domain.Trade, error) {
	rows, err := readCSV(filename, tradeHeader)
	if err != nil {
		return nil, err
	}
	trades := make([]domain.Trade, 0, len(rows))
	for i, row := range rows {
		ts, err := time.Parse(time.RFC3339Nano, row[1])
		if err != nil {
			return nil, rowError(filename, i, err)
		}
		side := domain.Side(row[3])
		if side != domain.Buy && side != domain.Sell {
			return nil, rowError(filename, i, fmt.Errorf("unknown side %q", row[3]))
		}
		values, err := parseFloats(row[4:7])
		if err != nil {
			return nil, rowError(filename, i, err)
		}
		trades = append(trades, domain.Trade{
			ID:        row[0],
			Timestamp: ts.UTC(),
			Symbol:    row[2],
			Side:      side,
			Quantity:  values[0],
			Price:     values[1],
			Profit:    values[2],
			Strategy:  row[7],
		})
	}
	return trades, nil
}

func WriteEquityToCSV(points []domain.EquityPoint, filename string) error {
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{
			p.Timestamp.UTC().Format(time.RFC3339Nano),
			formatFloat(p.Equity),
			formatFloat(p.Cash),
		})
	}
	return writeCSV(filename, equityHeader, rows)
}

func ReadEquityFromCSV(filename string) ([]domain.EquityPoint, error) {
	rows, err := readCSV(filename, equityHeader)
	if err != nil {
		return nil, err
	}
	points := make([]domain.EquityPoint, 0, len(rows))
	for i, row := range rows {
		ts, err := time.Parse(time.RFC3339Nano, row[0])
		if err != nil {
			return nil, rowError(filename, i, err)
		}
		values, err := parseFloats(row[1:3])
		if err != nil {
			return nil, rowError(filename, i, err)
		}
		points = append(points, domain.EquityPoint{Timestamp: ts.UTC(), Equity: values[0], Cash: values[1]})
	}
	return points, nil
}

func writeCSV(filename string, header []string, rows [][]string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory for %s: %w", filename, err)
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return file.Close()
}

// readCSV returns the data rows after checking the header matches.
func readCSV(filename string, header []string) ([][]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(header)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ports.ErrInvalidRequest, filename, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ports.ErrInvalidRequest, filename)
	}
	for i, name := range header {
		if records[0][i] != name {
			return nil, fmt.Errorf("%w: %s column %d is %q, want %q", ports.ErrInvalidRequest, filename, i, records[0][i], name)
		}
	}
	return records[1:], nil
}

func formatFloat(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		d, err := decimal.NewFromString(f)
		if err != nil {
			return nil, err
		}
		out[i] = d.InexactFloat64()
	}
	return out, nil
}

func rowError(filename string, row int, err error) error {
	return fmt.Errorf("%w: %s row %d: %v", ports.ErrInvalidRequest, filename, row+2, err)
}

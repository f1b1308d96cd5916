package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"fortuneBot/internal/domain"
	"fortuneBot/internal/strategy/analytics"
	"fortuneBot/internal/utils"

	"github.com/spf13/cobra"
)

const (
	tradesSuffix = "_trades.csv"
	equitySuffix = "_equity.csv"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("analyze_backtests: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		dir     string
		initial float64
	)
	cmd := &cobra.Command{
		Use:          "analyze_backtests",
		Short:        "Compute performance reports from exported trade and equity CSV files",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return analyze(dir, initial)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "data/backtests", "directory written by backtest_runner")
	cmd.Flags().Float64Var(&initial, "balance", 10000, "initial balance of the runs")
	return cmd
}

func analyze(dir string, initial float64) error {
	files, err := findTradeFiles(dir)
	if err != nil {
		return fmt.Errorf("find backtest files: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("No backtest files found. Run backtest_runner first.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Run\tTrades\tWinRate\tAvgWin\tAvgLoss\tTotalPnL\tReturn%\tSharpe\tMaxDD%\tMaxLossStreak\t")

	var (
		all     []domain.Trade
		reports []analytics.Report
		names   []string
	)
	for _, file := range files {
		trades, err := utils.ReadTradesFromCSV(file)
		if err != nil {
			log.Printf("Error reading trades from %s: %v", file, err)
			continue
		}
		// The equity curve is optional; without it ratios come from trades alone.
		equity, err := utils.ReadEquityFromCSV(strings.TrimSuffix(file, tradesSuffix) + equitySuffix)
		if err != nil && !os.IsNotExist(err) {
			log.Printf("Error reading equity for %s: %v", file, err)
		}
		all = append(all, trades...)

		run := strings.TrimSuffix(filepath.Base(file), tradesSuffix)
		r := analytics.Compute(initial, trades, equity)
		reports = append(reports, r)
		names = append(names, run)
		if r.NoData {
			fmt.Fprintf(w, "%s\t0\t-\t-\t-\t-\t-\t-\t-\t-\t\n", run)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.3f\t%.2f\t%d\t\n",
			run,
			r.TotalTrades,
			r.WinRate*100,
			r.AverageWin,
			r.AverageLoss,
			r.TotalProfit,
			r.TotalReturn*100,
			r.SharpeRatio,
			r.MaxDrawdown*100,
			r.MaxConsecutiveLosses,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for i, r := range reports {
		if err := analytics.WriteBreakdown(os.Stdout, names[i], r); err != nil {
			return err
		}
	}

	fmt.Println("\n## Strategy Summary")
	fmt.Println("Strategy\tTrades\tWinRate\tTotal PnL\tAvg PnL")
	for _, s := range analytics.SummarizeByStrategy(all) {
		fmt.Printf("%s\t%d\t%.2f\t%.2f\t%.2f\n", s.Strategy, s.TotalTrades, s.WinRate*100, s.TotalProfit, s.AvgProfit)
	}
	return nil
}

// findTradeFiles lists the trade exports in dir, sorted by name.
func findTradeFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), tradesSuffix) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

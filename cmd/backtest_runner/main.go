package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"text/tabwriter"
	"time"

	"fortuneBot/internal/adapters/logger"
	"fortuneBot/internal/adapters/simfeed"
	"fortuneBot/internal/adapters/sqlite"
	"fortuneBot/internal/domain"
	"fortuneBot/internal/ports"
	"fortuneBot/internal/strategy/analytics"
	"fortuneBot/internal/strategy/backtesting"
	"fortuneBot/internal/strategy/indicators"
	"fortuneBot/internal/strategy/optimization"
	"fortuneBot/internal/strategy/strategies"
	"fortuneBot/internal/utils"

	"github.com/spf13/cobra"
)

type runnerFlags struct {
	strategies []string
	symbols    []string
	days       int
	interval   string
	balance    float64
	out        string
	barsFile   string
	seed       int64
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatalf("backtest_runner: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	f := &runnerFlags{}
	cmd := &cobra.Command{
		Use:           "backtest_runner",
		Short:         "Replay historical bars through each strategy and export the results",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktests(cmd.Context(), f)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringSliceVar(&f.strategies, "strategy", strategies.Names(), "strategies to run")
	pf.StringSliceVar(&f.symbols, "symbol", []string{"BTCUSDT"}, "symbols to replay")
	pf.IntVar(&f.days, "days", 30, "days of history")
	pf.StringVar(&f.interval, "interval", "1m", "bar interval")
	pf.Float64Var(&f.balance, "balance", 10000, "initial balance")
	pf.StringVar(&f.out, "out", "data/backtests", "directory for CSV exports")
	pf.StringVar(&f.barsFile, "bars", "", "bar CSV from fetch_klines instead of synthetic data (single symbol)")
	pf.Int64Var(&f.seed, "seed", simfeed.DefaultSeed, "seed of the synthetic generator")
	pf.StringVar(&f.logLevel, "log-level", "WARN", "log level")

	cmd.AddCommand(newOptimizeCmd(f))
	return cmd
}

func newOptimizeCmd(f *runnerFlags) *cobra.Command {
	var (
		dbPath string
		save   bool
		top    int
	)
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Grid-search strategy parameters and optionally store the best set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(cmd.Context(), f, dbPath, save, top)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "./data/fortune_bot.db", "parameter store used with --save")
	cmd.Flags().BoolVar(&save, "save", false, "store the best parameters")
	cmd.Flags().IntVar(&top, "top", 5, "results to print per strategy")
	return cmd
}

func loadBars(ctx context.Context, f *runnerFlags, symbol string) ([]domain.Bar, error) {
	if f.barsFile != "" {
		return utils.ReadBarsFromCSV(f.barsFile)
	}
	step, ok := domain.IntervalDuration(f.interval)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported interval %q", ports.ErrInvalidRequest, f.interval)
	}
	gen := simfeed.New(simfeed.WithSeed(f.seed))
	if step == time.Minute {
		return gen.Historical(ctx, symbol, f.days)
	}
	return gen.FetchBars(ctx, symbol, f.interval, int(time.Duration(f.days)*24*time.Hour/step))
}

func runBacktests(ctx context.Context, f *runnerFlags) error {
	appLogger := logger.NewStdLogger(logger.ParseLevel(f.logLevel))
	cfg := backtesting.DefaultConfig()
	cfg.InitialFunds = f.balance
	cfg.EnforceMaxHold = true

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "Strategy\tSymbol\tTrades\tWinRate%\tReturn%\tSharpe\tMaxDD%\tProfitFactor\tFinal\t")

	var (
		all  []domain.Trade
		runs []run
	)
	for _, symbol := range f.symbols {
		bars, err := loadBars(ctx, f, symbol)
		if err != nil {
			return fmt.Errorf("load bars for %s: %w", symbol, err)
		}
		for _, name := range f.strategies {
			result, err := backtesting.Backtest(ctx, bars, backtesting.FromNames([]string{name}, nil, appLogger), cfg, appLogger)
			if err != nil {
				return fmt.Errorf("backtest %s on %s: %w", name, symbol, err)
			}
			printRow(w, name, symbol, result.Report)
			all = append(all, result.Trades...)
			runs = append(runs, run{title: name + " " + symbol, report: result.Report})

			base := filepath.Join(f.out, fmt.Sprintf("%s_%s", name, symbol))
			if err := utils.WriteTradesToCSV(result.Trades, base+"_trades.csv"); err != nil {
				return err
			}
			if err := utils.WriteEquityToCSV(result.Equity, base+"_equity.csv"); err != nil {
				return err
			}
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	for _, r := range runs {
		if err := analytics.WriteBreakdown(os.Stdout, r.title, r.report); err != nil {
			return err
		}
	}

	fmt.Println("\n## Per-strategy performance")
	sw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(sw, "Strategy\tTrades\tWinRate%\tAvg\tMax\tMin\tTotal\t")
	for _, s := range analytics.SummarizeByStrategy(all) {
		fmt.Fprintf(sw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			s.Strategy, s.TotalTrades, s.WinRate*100, s.AvgProfit, s.MaxProfit, s.MaxLoss, s.TotalProfit)
	}
	fmt.Printf("\nExports written to %s\n", f.out)
	return sw.Flush()
}

type run struct {
	title  string
	report analytics.Report
}

func printRow(w *tabwriter.Writer, name, symbol string, r analytics.Report) {
	if r.NoData {
		fmt.Fprintf(w, "%s\t%s\t0\t-\t-\t-\t-\t-\t%.2f\t\n", name, symbol, r.FinalEquity)
		return
	}
	fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\t%.3f\t%.2f\t%.2f\t%.2f\t\n",
		name, symbol, r.TotalTrades, r.WinRate*100, r.TotalReturn*100, r.SharpeRatio, r.MaxDrawdown*100, r.ProfitFactor, r.FinalEquity)
}

func runOptimize(ctx context.Context, f *runnerFlags, dbPath string, save bool, top int) error {
	appLogger := logger.NewStdLogger(logger.ParseLevel(f.logLevel))

	var store ports.ParamStore
	if save {
		repo, err := sqlite.NewRepository(sqlite.Config{DBPath: dbPath, Logger: appLogger})
		if err != nil {
			return err
		}
		defer repo.Close()
		store = repo
	}

	bt := backtesting.DefaultConfig()
	bt.InitialFunds = f.balance
	optimizer, err := optimization.NewOptimizer(optimization.OptimizerConfig{Backtest: bt}, nil, appLogger)
	if err != nil {
		return err
	}

	symbol := f.symbols[0]
	bars, err := loadBars(ctx, f, symbol)
	if err != nil {
		return fmt.Errorf("load bars for %s: %w", symbol, err)
	}
	frame := indicators.Calculate(bars, bt.Indicators)

	for _, name := range f.strategies {
		if _, ok := optimization.PresetRanges(name); !ok {
			fmt.Printf("%s: no parameter grid, skipped\n", name)
			continue
		}
		results, err := optimizer.Optimize(ctx, name, frame)
		if err != nil {
			return fmt.Errorf("optimize %s: %w", name, err)
		}
		fmt.Printf("\n## %s on %s (%d scored sets)\n", name, symbol, len(results))
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "Score\tReturn%\tSharpe\tMaxDD%\tParams")
		for i := 0; i < len(results) && i < top; i++ {
			r := results[i]
			fmt.Fprintf(w, "%.4f\t%.2f\t%.3f\t%.2f\t%v\n",
				r.Score, r.Report.TotalReturn*100, r.Report.SharpeRatio, r.Report.MaxDrawdown*100, r.Parameters)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if store != nil && len(results) > 0 {
			if err := store.SaveStrategyParams(ctx, name, results[0].Parameters); err != nil {
				return fmt.Errorf("save best %s parameters: %w", name, err)
			}
			fmt.Printf("Best %s parameters saved to %s\n", name, dbPath)
		}
	}
	return nil
}

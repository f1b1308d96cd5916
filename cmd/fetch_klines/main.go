package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"fortuneBot/config"
	"fortuneBot/internal/adapters/binanceclient"
	"fortuneBot/internal/adapters/logger"
	"fortuneBot/internal/utils"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatalf("fetch_klines: %v", err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		symbol   string
		interval string
		days     int
		outDir   string
		settings string
	)
	cmd := &cobra.Command{
		Use:          "fetch_klines",
		Short:        "Download Binance futures klines into a CSV file",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.LoadConfig(settings)
			if err != nil {
				return err
			}
			appLogger := logger.New(cfg.Runtime.LogFormat, cfg.LogLevel())

			client, err := binanceclient.New(binanceclient.Config{
				APIKey:     cfg.API.APIKey,
				SecretKey:  cfg.API.APISecret,
				UseTestnet: cfg.API.Testnet,
				Logger:     appLogger,
			})
			if err != nil {
				return err
			}

			// Range ends at exchange time so a skewed local clock cannot ask for future klines.
			end, err := client.GetServerTime(ctx)
			if err != nil {
				return fmt.Errorf("get server time: %w", err)
			}
			start := end.AddDate(0, 0, -days)
			fmt.Printf("Fetching klines for %s %s from %s to %s...\n", symbol, interval, start.Format(time.RFC3339), end.Format(time.RFC3339))
			bars, err := client.GetKlinesRange(ctx, symbol, interval, start, end)
			if err != nil {
				return fmt.Errorf("fetch klines: %w", err)
			}

			filename := filepath.Join(outDir, fmt.Sprintf("%s_%s_%s_to_%s.csv", symbol, interval, start.Format("20060102"), end.Format("20060102")))
			if err := utils.WriteBarsToCSV(bars, filename); err != nil {
				return fmt.Errorf("write CSV: %w", err)
			}
			appLogger.Info(ctx, "Saved klines", map[string]interface{}{"filename": filename, "count": len(bars)})
			return nil
		},
	}
	cmd.Flags().StringVar(&symbol, "symbol", "ETHUSDT", "futures symbol")
	cmd.Flags().StringVar(&interval, "interval", "1m", "kline interval")
	cmd.Flags().IntVar(&days, "days", 90, "days of history ending now")
	cmd.Flags().StringVar(&outDir, "out", "data", "output directory")
	cmd.Flags().StringVar(&settings, "settings", "", "settings file; empty uses defaults and environment")
	return cmd
}

package main

import (
	"context"
	"errors"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"fortuneBot/config"
	"fortuneBot/internal/adapters/binanceclient"
	"fortuneBot/internal/adapters/jsonfile"
	"fortuneBot/internal/adapters/logger"
	"fortuneBot/internal/adapters/simfeed"
	"fortuneBot/internal/adapters/sqlite"
	"fortuneBot/internal/app"
	"fortuneBot/internal/domain"
	"fortuneBot/internal/marketdata"
	"fortuneBot/internal/metrics"
	"fortuneBot/internal/paper"
	"fortuneBot/internal/ports"
	"fortuneBot/internal/risk"
	"fortuneBot/internal/strategy/aggregator"
	"fortuneBot/internal/strategy/backtesting"
	"fortuneBot/internal/strategy/indicators"
	"fortuneBot/internal/strategy/optimization"
	"fortuneBot/internal/strategy/strategies"
)

const (
	defaultSettingsPath = "config/settings.yaml"
	tuneInterval        = "1h"
)

func main() {
	// 1. Load Configuration
	settingsPath := defaultSettingsPath
	if p := os.Getenv("SETTINGS_PATH"); p != "" {
		settingsPath = p
	}
	cfg, err := config.LoadConfig(settingsPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.Runtime.LogFormat, cfg.LogLevel())
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel().String(), "mode": cfg.Trading.Mode})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.Runtime.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing database repository")
		}
	}()

	// 4. Paper portfolio, resumed from the snapshot file
	snapshots, err := jsonfile.NewSnapshotFile(cfg.Runtime.SnapshotPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to open portfolio snapshot: %v", err)
	}
	portfolio, err := paper.NewPortfolio(ctx, cfg.Trading.InitialBalance, snapshots, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize paper portfolio")
		log.Fatalf("FATAL: Failed to initialize paper portfolio: %v", err)
	}

	// 5. Market data: synthetic in paper mode, Binance otherwise
	provider, err := newProvider(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize market data provider")
		log.Fatalf("FATAL: Failed to initialize market data provider: %v", err)
	}
	market, err := marketdata.NewManager(provider, marketdata.Config{
		Symbols:   cfg.Trading.Symbols,
		Interval:  cfg.Runtime.Interval,
		Limit:     cfg.Runtime.BarLimit,
		Freshness: cfg.Runtime.DataFreshness,
	}, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize market data manager: %v", err)
	}

	// 6. Metrics endpoint
	if cfg.Runtime.MetricsAddr != "" {
		srv, err := metrics.Serve(cfg.Runtime.MetricsAddr, appLogger)
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to start metrics endpoint")
			log.Fatalf("FATAL: Failed to start metrics endpoint: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		appLogger.Info(ctx, "Metrics endpoint started", map[string]interface{}{"addr": srv.Addr})
	}

	// 7. Strategies, optionally re-tuned on recent history first
	if cfg.Strategies.AutoTune {
		autoTune(ctx, cfg, provider, repo, appLogger)
	}
	strats, err := loadStrategies(ctx, cfg, repo, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading strategies")
		log.Fatalf("FATAL: Failed to initialize trading strategies: %v", err)
	}
	agg, err := aggregator.New(strats, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize signal aggregator: %v", err)
	}
	riskManager, err := risk.NewRiskManager(cfg.Risk(), appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize risk manager: %v", err)
	}

	// 8. Initialize Application Service
	service, err := app.NewService(app.Config{
		PollInterval:   cfg.Runtime.PollInterval,
		ErrorBackoff:   cfg.Runtime.ErrorBackoff,
		MinTradeAmount: cfg.Trading.MinTradeAmount,
		MaxTradeAmount: cfg.Trading.MaxTradeAmount,
		MaxDrawdown:    cfg.RiskManagement.MaxDrawdown,
		StopLossPct:    cfg.RiskManagement.StopLossPct,
		TakeProfitPct:  cfg.RiskManagement.TakeProfitPct,
		Indicators:     indicators.DefaultConfig(),
	}, appLogger, market, agg, riskManager, portfolio, repo)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}

	// 9. Run until SIGINT/SIGTERM
	if err := service.Run(ctx); err != nil {
		appLogger.Error(context.Background(), err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}
	appLogger.Info(context.Background(), "Application finished gracefully.")
}

func newProvider(ctx context.Context, cfg *config.Config, appLogger ports.Logger) (ports.MarketDataProvider, error) {
	if cfg.Trading.Mode == config.ModePaper {
		appLogger.Info(ctx, "Using synthetic market data")
		return simfeed.New(), nil
	}
	client, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.API.APIKey,
		SecretKey:  cfg.API.APISecret,
		UseTestnet: cfg.API.Testnet,
		Logger:     appLogger,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// loadStrategies builds the enabled strategies from the configured
// parameters overlaid with the ones stored by the optimizer.
func loadStrategies(ctx context.Context, cfg *config.Config, store ports.ParamStore, appLogger ports.Logger) ([]ports.Strategy, error) {
	out := make([]ports.Strategy, 0, len(cfg.Strategies.Enabled))
	for _, name := range cfg.Strategies.Enabled {
		stored, err := store.GetStrategyParams(ctx, name)
		if err != nil {
			return nil, err
		}
		params := cfg.Strategies.Params[name].Merge(stored)
		s, err := strategies.New(name, params, appLogger)
		if err != nil {
			return nil, err
		}
		appLogger.Info(ctx, "Strategy loaded", map[string]interface{}{"strategy": name, "params": s.Params()})
		out = append(out, s)
	}
	return out, nil
}

// autoTune grid-searches every enabled strategy that has a preset grid on
// backtest_period days of hourly bars of the first symbol. Failures are logged
// and leave the stored parameters untouched.
func autoTune(ctx context.Context, cfg *config.Config, provider ports.MarketDataProvider, store ports.ParamStore, appLogger ports.Logger) {
	symbol := cfg.Trading.Symbols[0]
	step, _ := domain.IntervalDuration(tuneInterval)
	limit := int(time.Duration(cfg.Strategies.BacktestPeriod) * 24 * time.Hour / step)
	bars, err := provider.FetchBars(ctx, symbol, tuneInterval, limit)
	if err != nil {
		appLogger.Error(ctx, err, "Auto tune skipped: history unavailable", map[string]interface{}{"symbol": symbol})
		return
	}
	frame := indicators.Calculate(bars, indicators.DefaultConfig())

	bt := backtesting.DefaultConfig()
	bt.InitialFunds = cfg.Trading.InitialBalance
	optimizer, err := optimization.NewOptimizer(optimization.OptimizerConfig{Backtest: bt, AutoTune: true}, store, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "Auto tune skipped")
		return
	}
	for _, name := range cfg.Strategies.Enabled {
		if _, ok := optimization.PresetRanges(name); !ok {
			continue
		}
		if _, err := optimizer.Tune(ctx, name, frame); err != nil {
			if errors.Is(err, ports.ErrNoTrades) {
				appLogger.Warn(ctx, "Auto tune found no trading parameter set", map[string]interface{}{"strategy": name})
				continue
			}
			appLogger.Error(ctx, err, "Auto tune failed", map[string]interface{}{"strategy": name})
		}
	}
}

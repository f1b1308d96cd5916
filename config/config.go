package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fortuneBot/internal/adapters/logger"
	"fortuneBot/internal/domain"
	"fortuneBot/internal/risk"
	"fortuneBot/internal/strategy/strategies"
)

// Trading modes. Both fill orders on the paper account; live reads real market data.
const (
	ModePaper = "paper"
	ModeLive  = "live"
)

// Trading holds account and order size settings.
type Trading struct {
	Mode                string   `yaml:"mode"`
	BaseCurrency        string   `yaml:"base_currency"`
	Symbols             []string `yaml:"symbols"`
	InitialBalance      float64  `yaml:"initial_balance"`
	MaxPositions        int      `yaml:"max_positions"`
	DefaultRiskPerTrade float64  `yaml:"default_risk_per_trade"`
	MinTradeAmount      float64  `yaml:"min_trade_amount"`
	MaxTradeAmount      float64  `yaml:"max_trade_amount"`
}

// API describes the exchange used for market data. Keys come from the environment only.
type API struct {
	Exchange  string `yaml:"exchange"`
	Testnet   bool   `yaml:"testnet"`
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
}

// Strategies selects and tunes the strategy set.
type Strategies struct {
	Enabled        []string                 `yaml:"enabled"`
	AutoTune       bool                     `yaml:"auto_tune"`
	BacktestPeriod int                      `yaml:"backtest_period"` // Days
	Params         map[string]domain.Params `yaml:"params,omitempty"`
}

// RiskManagement bounds losses and sizes positions.
type RiskManagement struct {
	MaxDrawdown    float64 `yaml:"max_drawdown"`
	DailyLossLimit float64 `yaml:"daily_loss_limit"` // Fraction of the initial balance
	PositionSizing string  `yaml:"position_sizing"`
	StopLossPct    float64 `yaml:"stop_loss_pct"`
	TakeProfitPct  float64 `yaml:"take_profit_pct"`
	MinConfidence  float64 `yaml:"min_confidence"`
}

// Runtime holds process settings for the polling loop and its adapters.
type Runtime struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	ErrorBackoff  time.Duration `yaml:"error_backoff"`
	DataFreshness time.Duration `yaml:"data_freshness"`
	Interval      string        `yaml:"interval"`
	BarLimit      int           `yaml:"bar_limit"`
	DBPath        string        `yaml:"db_path"`
	SnapshotPath  string        `yaml:"snapshot_path"`
	MetricsAddr   string        `yaml:"metrics_addr"`
	LogLevel      string        `yaml:"log_level"`
	LogFormat     string        `yaml:"log_format"` // "text" or "json"
}

// Config holds all application configuration.
type Config struct {
	Trading        Trading        `yaml:"trading"`
	API            API            `yaml:"api"`
	Strategies     Strategies     `yaml:"strategies"`
	RiskManagement RiskManagement `yaml:"risk_management"`
	Runtime        Runtime        `yaml:"runtime"`
}

// Default returns the settings used when no file or override says otherwise.
func Default() *Config {
	return &Config{
		Trading: Trading{
			Mode:                ModePaper,
			BaseCurrency:        "USDT",
			Symbols:             []string{"BTCUSDT", "ETHUSDT", "ADAUSDT", "DOTUSDT", "LINKUSDT"},
			InitialBalance:      10000,
			MaxPositions:        5,
			DefaultRiskPerTrade: 0.02,
			MinTradeAmount:      10,
			MaxTradeAmount:      1000,
		},
		API: API{Exchange: "binance", Testnet: true},
		Strategies: Strategies{
			Enabled:        []string{"rsi", "macd", "grid", "dca"},
			AutoTune:       true,
			BacktestPeriod: 30,
		},
		RiskManagement: RiskManagement{
			MaxDrawdown:    0.15,
			DailyLossLimit: 0.05,
			PositionSizing: risk.SizingKelly,
			StopLossPct:    0.02,
			TakeProfitPct:  0.04,
			MinConfidence:  0.5,
		},
		Runtime: Runtime{
			PollInterval:  time.Second,
			ErrorBackoff:  5 * time.Second,
			DataFreshness: time.Minute,
			Interval:      "1m",
			BarLimit:      100,
			DBPath:        "./data/fortune_bot.db",
			SnapshotPath:  "./data/portfolio.json",
			MetricsAddr:   ":9090",
			LogLevel:      "INFO",
			LogFormat:     "text",
		},
	}
}

// LoadConfig reads the .env file (if any), then the YAML settings at path,
// then applies environment overrides and validates the result. A missing
// settings file is created with the defaults. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			if err := Save(path, cfg); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, fmt.Errorf("read settings: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("decode settings %s: %w", path, err)
			}
		}
	}

	errs := applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// Save persists cfg to path as YAML, creating the directory if needed.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) []error {
	var errs []error
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setList := func(key string, dst *[]string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = splitList(v)
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok, err := getEnvAsFloat(key); err != nil {
			errs = append(errs, err)
		} else if ok {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok, err := getEnvAsBool(key); err != nil {
			errs = append(errs, err)
		} else if ok {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v, ok, err := getEnvAsDuration(key); err != nil {
			errs = append(errs, err)
		} else if ok {
			*dst = v
		}
	}

	cfg.API.APIKey = os.Getenv("BINANCE_API_KEY")
	cfg.API.APISecret = os.Getenv("BINANCE_API_SECRET")
	setBool("IS_TESTNET", &cfg.API.Testnet)

	setString("TRADING_MODE", &cfg.Trading.Mode)
	setList("SYMBOLS", &cfg.Trading.Symbols)
	setFloat("INITIAL_BALANCE", &cfg.Trading.InitialBalance)
	setList("STRATEGIES_ENABLED", &cfg.Strategies.Enabled)
	setBool("AUTO_TUNE", &cfg.Strategies.AutoTune)
	setString("POSITION_SIZING", &cfg.RiskManagement.PositionSizing)
	setFloat("DAILY_LOSS_LIMIT", &cfg.RiskManagement.DailyLossLimit)
	setDuration("POLL_INTERVAL", &cfg.Runtime.PollInterval)
	setString("DB_PATH", &cfg.Runtime.DBPath)
	setString("SNAPSHOT_PATH", &cfg.Runtime.SnapshotPath)
	setString("METRICS_ADDR", &cfg.Runtime.MetricsAddr)
	setString("LOG_LEVEL", &cfg.Runtime.LogLevel)
	setString("LOG_FORMAT", &cfg.Runtime.LogFormat)
	return errs
}

// Validate collects every invalid setting into one joined error.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	t := c.Trading
	if t.Mode != ModePaper && t.Mode != ModeLive {
		add("trading.mode must be %q or %q, got %q", ModePaper, ModeLive, t.Mode)
	}
	if len(t.Symbols) == 0 {
		add("trading.symbols must not be empty")
	}
	if t.InitialBalance <= 0 {
		add("trading.initial_balance must be positive")
	}
	if t.MaxPositions <= 0 {
		add("trading.max_positions must be positive")
	}
	if t.DefaultRiskPerTrade <= 0 || t.DefaultRiskPerTrade > 1 {
		add("trading.default_risk_per_trade must be in (0, 1]")
	}
	if t.MinTradeAmount < 0 || t.MaxTradeAmount <= 0 || t.MinTradeAmount > t.MaxTradeAmount {
		add("trading.min_trade_amount must be in [0, max_trade_amount] and max_trade_amount positive")
	}

	known := make(map[string]bool)
	for _, name := range strategies.Names() {
		known[name] = true
	}
	if len(c.Strategies.Enabled) == 0 {
		add("strategies.enabled must name at least one strategy")
	}
	for _, name := range c.Strategies.Enabled {
		if !known[name] {
			add("strategies.enabled: unknown strategy %q", name)
		}
	}
	for name := range c.Strategies.Params {
		if !known[name] {
			add("strategies.params: unknown strategy %q", name)
		}
	}
	if c.Strategies.BacktestPeriod <= 0 {
		add("strategies.backtest_period must be positive")
	}

	r := c.RiskManagement
	if r.MaxDrawdown <= 0 || r.MaxDrawdown >= 1 {
		add("risk_management.max_drawdown must be in (0, 1)")
	}
	if r.DailyLossLimit <= 0 || r.DailyLossLimit > 1 {
		add("risk_management.daily_loss_limit must be in (0, 1]")
	}
	switch r.PositionSizing {
	case risk.SizingFixed, risk.SizingPercentage, risk.SizingKelly, risk.SizingVolatility:
	default:
		add("risk_management.position_sizing: unknown method %q", r.PositionSizing)
	}
	if r.StopLossPct <= 0 || r.StopLossPct >= 1 || r.TakeProfitPct <= 0 {
		add("risk_management.stop_loss_pct must be in (0, 1) and take_profit_pct positive")
	}
	if r.MinConfidence < 0 || r.MinConfidence > 1 {
		add("risk_management.min_confidence must be in [0, 1]")
	}

	rt := c.Runtime
	if rt.PollInterval <= 0 || rt.ErrorBackoff <= 0 || rt.DataFreshness <= 0 {
		add("runtime.poll_interval, error_backoff and data_freshness must be positive")
	}
	if _, ok := domain.IntervalDuration(rt.Interval); !ok {
		add("runtime.interval: unsupported interval %q", rt.Interval)
	}
	if rt.BarLimit <= 0 {
		add("runtime.bar_limit must be positive")
	}
	if rt.DBPath == "" || rt.SnapshotPath == "" {
		add("runtime.db_path and snapshot_path must be set")
	}
	if rt.LogFormat != "text" && rt.LogFormat != "json" {
		add("runtime.log_format must be \"text\" or \"json\"")
	}
	return errors.Join(errs...)
}

// Risk derives the risk manager settings. The daily loss limit becomes an
// absolute amount of the initial balance.
func (c *Config) Risk() risk.RiskConfig {
	return risk.RiskConfig{
		MaxDailyLoss:     c.RiskManagement.DailyLossLimit * c.Trading.InitialBalance,
		MaxOpenPositions: c.Trading.MaxPositions,
		MinConfidence:    c.RiskManagement.MinConfidence,
		RiskPerTrade:     c.Trading.DefaultRiskPerTrade,
		SizingMethod:     c.RiskManagement.PositionSizing,
	}
}

// LogLevel parses Runtime.LogLevel.
func (c *Config) LogLevel() logger.LogLevel {
	return logger.ParseLevel(c.Runtime.LogLevel)
}

// --- Env Var Helpers ---

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvAsFloat(key string) (float64, bool, error) {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return 0, false, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, true, nil
}

func getEnvAsBool(key string) (bool, bool, error) {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return false, false, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, false, fmt.Errorf("invalid bool value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, true, nil
}

func getEnvAsDuration(key string) (time.Duration, bool, error) {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return 0, false, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, false, fmt.Errorf("invalid duration value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, true, nil
}

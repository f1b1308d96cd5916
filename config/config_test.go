package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fortuneBot/internal/adapters/logger"
	"fortuneBot/internal/domain"
	"fortuneBot/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "settings.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Trading, cfg.Trading)
	assert.FileExists(t, path)

	again, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again, "written defaults read back unchanged")
}

func TestLoadConfig_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	settings := `
trading:
  mode: live
  symbols: [BTCUSDT]
  initial_balance: 5000
strategies:
  enabled: [rsi, scalping]
  params:
    rsi:
      rsi_period: 21
risk_management:
  daily_loss_limit: 0.1
runtime:
  poll_interval: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(settings), 0o644))
	t.Setenv("SYMBOLS", "ETHUSDT, ADAUSDT")
	t.Setenv("BINANCE_API_KEY", "key")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ModeLive, cfg.Trading.Mode)
	assert.Equal(t, []string{"ETHUSDT", "ADAUSDT"}, cfg.Trading.Symbols)
	assert.Equal(t, 5000.0, cfg.Trading.InitialBalance)
	assert.Equal(t, 5, cfg.Trading.MaxPositions, "unset keys keep defaults")
	assert.Equal(t, []string{"rsi", "scalping"}, cfg.Strategies.Enabled)
	assert.Equal(t, domain.Params{"rsi_period": 21}, cfg.Strategies.Params["rsi"])
	assert.Equal(t, 2*time.Second, cfg.Runtime.PollInterval)
	assert.Equal(t, "key", cfg.API.APIKey)
	assert.Equal(t, "json", cfg.Runtime.LogFormat)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel())

	rc := cfg.Risk()
	assert.Equal(t, risk.RiskConfig{
		MaxDailyLoss:     500,
		MaxOpenPositions: 5,
		MinConfidence:    0.5,
		RiskPerTrade:     0.02,
		SizingMethod:     risk.SizingKelly,
	}, rc)
}

func TestLoadConfig_CollectsErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	settings := `
trading:
  mode: margin
  initial_balance: -1
strategies:
  enabled: [rsi, martingale]
risk_management:
  position_sizing: yolo
`
	require.NoError(t, os.WriteFile(path, []byte(settings), 0o644))
	t.Setenv("INITIAL_BALANCE", "lots")

	_, err := LoadConfig(path)
	require.Error(t, err)
	for _, want := range []string{"trading.mode", "martingale", "yolo", "INITIAL_BALANCE"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trading: [unclosed"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate_Defaults(t *testing.T) {
	assert.NoError(t, Default().Validate())

	cfg := Default()
	cfg.Runtime.Interval = "7m"
	cfg.Trading.MinTradeAmount = 2000
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime.interval")
	assert.Contains(t, err.Error(), "min_trade_amount")
}

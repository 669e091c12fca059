package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "BTCUSDT", cfg.Analysis.Symbol)
	assert.Equal(t, 60, cfg.Analysis.Technical.MinCandles)
	assert.Equal(t, 0.15, cfg.Analysis.Liquidation.RangePct)
	assert.Equal(t, 0.01, cfg.Analysis.TradePlan.RiskPerTrade)
	assert.NotEmpty(t, cfg.Exchange.BaseURLs)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
analysis:
  symbol: ETHUSDT
  account_equity: 2500
  liquidation:
    timeframe: 1d
    range_pct: 0.2
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ETHUSDT", cfg.Analysis.Symbol)
	assert.Equal(t, 2500.0, cfg.Analysis.AccountEquity)
	assert.Equal(t, "1d", cfg.Analysis.Liquidation.Timeframe)
	assert.Equal(t, 0.2, cfg.Analysis.Liquidation.RangePct)
	assert.Equal(t, 0.01, cfg.Analysis.Liquidation.StepPct)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.Analysis.AccountEquity = -1
	cfg.Analysis.Liquidation.Timeframe = "15m"
	cfg.Log.Level = "trace"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
}

func TestCacheTTL(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 300.0, cfg.Cache.TTL("1d").Seconds())
	assert.Equal(t, 60.0, cfg.Cache.TTL("unknown").Seconds())
}

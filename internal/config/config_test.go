package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  log_level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 20, cfg.Alert.ScanInterval)
	assert.Equal(t, 10, cfg.Alert.MaxWorkers)
	assert.Equal(t, []string{"em", "tx", "sina"}, cfg.Data.Sources)
	assert.Equal(t, "configs/strategies.yaml", cfg.Strategies.Path)
	assert.Equal(t, ":8823", cfg.Admin.Listen)
}

func TestLoadNormalizesTaskSymbols(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
alert:
  tasks:
    - symbol: "600519"
      strategy: MA_TREND
    - symbol: "000001"
      strategy: GRID
      period: "15"
`))
	require.NoError(t, err)
	require.Len(t, cfg.Alert.Tasks, 2)

	assert.Equal(t, "sh600519", cfg.Alert.Tasks[0].Symbol)
	assert.Equal(t, "5", cfg.Alert.Tasks[0].Period, "period defaults to 5 minutes")
	assert.Equal(t, "sz000001", cfg.Alert.Tasks[1].Symbol)
	assert.Equal(t, "15", cfg.Alert.Tasks[1].Period)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load(writeConfig(t, `
alert:
  tasks:
    - symbol: "600519"
      strategy: MA_TREND
      period: "7"
`))
	assert.Error(t, err, "period outside 1/5/15/30/60")

	_, err = Load(writeConfig(t, `
alert:
  tasks:
    - symbol: "600519"
      strategy: ""
`))
	assert.Error(t, err, "empty strategy")

	_, err = Load(writeConfig(t, "data:\n  sources: [em, nope]\n"))
	assert.Error(t, err, "unknown data source")

	_, err = Load(writeConfig(t, "calendar:\n  holidays: [\"2025/01/01\"]\n"))
	assert.Error(t, err, "bad date format")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}

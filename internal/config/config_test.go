package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.Equal(t, "https://www.contratos.gov.co", cfg.Portal.BaseURL)
	assert.True(t, cfg.Portal.Headless)
	assert.Equal(t, 45, cfg.Portal.NavTimeoutSecs)
	assert.Equal(t, 120, cfg.Portal.CaptchaWaitSecs)
	assert.Equal(t, 3, cfg.Portal.PageRetries)
	assert.Equal(t, 100, cfg.Portal.MaxPages)
	assert.Equal(t, "iframeVentana", cfg.Portal.Selectors.ResultsFrame)
	assert.Equal(t, "table.tbl_resulados", cfg.Portal.Selectors.ResultsTable)
	assert.Equal(t, "detalleProceso", cfg.Portal.Selectors.DetailPattern)
	assert.NotEmpty(t, cfg.Portal.Selectors.NoResultPhrases)

	assert.Equal(t, "https://www.datos.gov.co", cfg.Socrata.BaseURL)
	assert.Equal(t, "jbjy-vk9h", cfg.Socrata.Dataset)
	assert.Equal(t, 1000, cfg.Socrata.PageSize)
	assert.Equal(t, 60, cfg.Socrata.TimeoutSecs)

	assert.Equal(t, "auto", cfg.Acquire.Source)
	assert.Equal(t, 1500, cfg.Enrich.DelayMillis)
	assert.Equal(t, 5, cfg.Enrich.MaxConsecutiveFails)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, ";", cfg.Output.Delimiter)
	assert.Equal(t, "utf-8-sig", cfg.Output.Encoding)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
log:
  level: debug
  format: console
portal:
  headless: false
  max_pages: 7
socrata:
  page_size: 250
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.False(t, cfg.Portal.Headless)
	assert.Equal(t, 7, cfg.Portal.MaxPages)
	assert.Equal(t, 250, cfg.Socrata.PageSize)
	// Defaults still apply for unset values
	assert.Equal(t, "jbjy-vk9h", cfg.Socrata.Dataset)
	assert.Equal(t, "iframeVentana", cfg.Portal.Selectors.ResultsFrame)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("SECOP_STORE_DRIVER", "sqlite")
	t.Setenv("SECOP_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("SECOP_SOCRATA_PAGE_SIZE", "500")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Socrata.PageSize)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "loud", Format: "json"})
	require.Error(t, err)
}

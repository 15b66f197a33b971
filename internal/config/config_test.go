package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nexus-paies/fiscal-updater/internal/gate"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Now().Year(), cfg.Fiscal.Year)
	assert.Equal(t, "data.json", cfg.Paths.Baseline)
	assert.Equal(t, "rapport_maj.md", cfg.Paths.Report)
	assert.Empty(t, cfg.Paths.ReportXLSX)
	assert.Equal(t, "fr-FR,fr;q=0.9", cfg.Fetch.AcceptLanguage)
	assert.Contains(t, cfg.Fetch.UserAgent, "Mozilla/5.0")
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout())
	assert.Equal(t, int64(5*1024*1024), cfg.Fetch.MaxBodyBytes)
	assert.Equal(t, "sqlite", cfg.History.Driver)
	assert.Equal(t, "history.db", cfg.History.DatabaseURL)
	assert.True(t, cfg.Notify.OnlyChanges)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	require.Len(t, cfg.Documents, 1)
	assert.Equal(t, "simulateur-fiscal.html", cfg.Documents[0].Path)

	assert.Len(t, cfg.Bounds, len(DefaultBounds))
	assert.Equal(t, gate.Bound{Min: 0.20, Max: 0.30}, cfg.Bounds["cotisation_bnc"])
	assert.Equal(t, gate.Bound{Min: 180000, Max: 200000}, cfg.Bounds["plafond_vente"])
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
fiscal:
  year: 2025
paths:
  baseline: scripts/data.json
  report_xlsx: rapport.xlsx
log:
  level: debug
  format: json
bounds:
  cotisation_bnc:
    min: 0.21
    max: 0.27
sources:
  pmss:
    - https://example.test/pmss
documents:
  - path: simulateur-fiscal.html
    rules: [cotisations, bareme_ir]
  - path: fiche-smic.html
    rules: [smic]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2025, cfg.Fiscal.Year)
	assert.Equal(t, "scripts/data.json", cfg.Paths.Baseline)
	assert.Equal(t, "rapport.xlsx", cfg.Paths.ReportXLSX)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, gate.Bound{Min: 0.21, Max: 0.27}, cfg.Bounds["cotisation_bnc"])
	// Defaults still apply for unset values
	assert.Equal(t, gate.Bound{Min: 3500, Max: 4500}, cfg.Bounds["pmss"])
	assert.Equal(t, "rapport_maj.md", cfg.Paths.Report)
	assert.Equal(t, []string{"https://example.test/pmss"}, cfg.Sources["pmss"])

	require.Len(t, cfg.Documents, 2)
	assert.Equal(t, []string{"cotisations", "bareme_ir"}, cfg.Documents[0].Rules)
	assert.Equal(t, "fiche-smic.html", cfg.Documents[1].Path)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
history:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("FISCAL_HISTORY_DRIVER", "postgres")
	t.Setenv("FISCAL_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.History.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("FISCAL_FISCAL_YEAR", "2024")
	t.Setenv("FISCAL_FETCH_TIMEOUT_SECS", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2024, cfg.Fiscal.Year)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout())
}

func TestLoadInvalidFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("fiscal: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func validConfig() *Config {
	return &Config{
		Fiscal:    FiscalConfig{Year: 2025},
		Paths:     PathsConfig{Baseline: "data.json"},
		Bounds:    map[string]gate.Bound{"pmss": {Min: 3500, Max: 4500}},
		Documents: []DocumentConfig{{Path: "simulateur-fiscal.html"}},
		History:   HistoryConfig{Driver: "sqlite"},
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Fiscal.Year = 0
	assert.ErrorContains(t, cfg.Validate(), "fiscal.year")

	cfg = validConfig()
	cfg.Paths.Baseline = ""
	assert.ErrorContains(t, cfg.Validate(), "paths.baseline is required")

	cfg = validConfig()
	cfg.Bounds["pmss"] = gate.Bound{Min: 5000, Max: 4000}
	assert.ErrorContains(t, cfg.Validate(), "bound pmss")

	cfg = validConfig()
	cfg.Documents = append(cfg.Documents, DocumentConfig{})
	assert.ErrorContains(t, cfg.Validate(), "documents[1].path")

	cfg = validConfig()
	cfg.History.Driver = "mysql"
	assert.ErrorContains(t, cfg.Validate(), "unknown history driver")

	cfg = validConfig()
	cfg.History.Driver = "none"
	assert.NoError(t, cfg.Validate())
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

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

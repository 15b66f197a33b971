package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nexus-paies/fiscal-updater/internal/gate"
)

// Config holds the full application configuration.
type Config struct {
	Fiscal    FiscalConfig          `yaml:"fiscal" mapstructure:"fiscal"`
	Paths     PathsConfig           `yaml:"paths" mapstructure:"paths"`
	Fetch     FetchConfig           `yaml:"fetch" mapstructure:"fetch"`
	Sources   map[string][]string   `yaml:"sources" mapstructure:"sources"`
	Bounds    map[string]gate.Bound `yaml:"bounds" mapstructure:"bounds"`
	Documents []DocumentConfig      `yaml:"documents" mapstructure:"documents"`
	History   HistoryConfig         `yaml:"history" mapstructure:"history"`
	Notify    NotifyConfig          `yaml:"notify" mapstructure:"notify"`
	Log       LogConfig             `yaml:"log" mapstructure:"log"`
}

// FiscalConfig selects the legal year whose tables are tracked.
type FiscalConfig struct {
	Year int `yaml:"year" mapstructure:"year"`
}

// PathsConfig locates the files read and written by a run.
type PathsConfig struct {
	Baseline   string `yaml:"baseline" mapstructure:"baseline"`
	Report     string `yaml:"report" mapstructure:"report"`
	ReportXLSX string `yaml:"report_xlsx" mapstructure:"report_xlsx"`
}

// FetchConfig configures page retrieval.
type FetchConfig struct {
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	Accept         string  `yaml:"accept" mapstructure:"accept"`
	AcceptLanguage string  `yaml:"accept_language" mapstructure:"accept_language"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxBodyBytes   int64   `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HostRate       float64 `yaml:"host_rate" mapstructure:"host_rate"`
}

// Timeout returns the per-request timeout.
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSecs) * time.Second
}

// DocumentConfig names a target document and the rule sets patched into it.
// An empty Rules list applies every rule set.
type DocumentConfig struct {
	Path  string   `yaml:"path" mapstructure:"path"`
	Rules []string `yaml:"rules,omitempty" mapstructure:"rules"`
}

// HistoryConfig configures the run audit trail.
type HistoryConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// NotifyConfig configures the end-of-run webhook.
type NotifyConfig struct {
	WebhookURL  string `yaml:"webhook_url" mapstructure:"webhook_url"`
	OnlyChanges bool   `yaml:"only_changes" mapstructure:"only_changes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultBounds are the plausibility intervals per bound name. They track
// legal values and must be revised when the law moves a value outside them.
var DefaultBounds = map[string]gate.Bound{
	"cotisation_bnc":          {Min: 0.20, Max: 0.30},
	"cotisation_bic_services": {Min: 0.20, Max: 0.25},
	"cotisation_bic_vente":    {Min: 0.10, Max: 0.15},
	"ir_tranche_1":            {Min: 10000, Max: 13000},
	"ir_tranche_2":            {Min: 25000, Max: 33000},
	"ir_tranche_3":            {Min: 75000, Max: 95000},
	"ir_tranche_4":            {Min: 160000, Max: 200000},
	"plafond_vente":           {Min: 180000, Max: 200000},
	"plafond_services":        {Min: 75000, Max: 85000},
	"smic_horaire":            {Min: 10, Max: 15},
	"pmss":                    {Min: 3500, Max: 4500},
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FISCAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("fiscal.year", time.Now().Year())
	v.SetDefault("paths.baseline", "data.json")
	v.SetDefault("paths.report", "rapport_maj.md")
	v.SetDefault("paths.report_xlsx", "")
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("fetch.accept", "text/html,application/xhtml+xml")
	v.SetDefault("fetch.accept_language", "fr-FR,fr;q=0.9")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.max_body_bytes", 5*1024*1024)
	v.SetDefault("fetch.host_rate", 1.0)
	v.SetDefault("documents", []map[string]any{{"path": "simulateur-fiscal.html"}})
	v.SetDefault("history.driver", "sqlite")
	v.SetDefault("history.database_url", "history.db")
	v.SetDefault("notify.only_changes", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	for name, b := range DefaultBounds {
		v.SetDefault("bounds."+name+".min", b.Min)
		v.SetDefault("bounds."+name+".max", b.Max)
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects configurations that would make a run meaningless.
func (c *Config) Validate() error {
	if c.Fiscal.Year < 2000 || c.Fiscal.Year > 2100 {
		return eris.Errorf("config: fiscal.year %d out of range", c.Fiscal.Year)
	}
	if c.Paths.Baseline == "" {
		return eris.New("config: paths.baseline is required")
	}
	for name, b := range c.Bounds {
		if b.Min > b.Max {
			return eris.Errorf("config: bound %s has min %v > max %v", name, b.Min, b.Max)
		}
	}
	for i, d := range c.Documents {
		if d.Path == "" {
			return eris.Errorf("config: documents[%d].path is required", i)
		}
	}
	switch c.History.Driver {
	case "", "none", "sqlite", "postgres":
	default:
		return eris.Errorf("config: unknown history driver %q", c.History.Driver)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

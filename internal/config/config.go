// Package config loads ans-sync settings from config.yaml and ANS_* environment
// variables.
package config

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/ans-sync/internal/ingest"
)

// Config holds the full application configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source" mapstructure:"source"`
	Data    DataConfig    `yaml:"data" mapstructure:"data"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
}

// SourceConfig points at the ANS open-data portal.
type SourceConfig struct {
	BaseAccountingURL   string   `yaml:"base_accounting_url" mapstructure:"base_accounting_url"`
	OperatorsCSVURL     string   `yaml:"operators_csv_url" mapstructure:"operators_csv_url"`
	Years               []string `yaml:"years" mapstructure:"years"`
	CurrentYear         int      `yaml:"current_year" mapstructure:"current_year"`
	DownloadTimeoutSecs int      `yaml:"download_timeout_secs" mapstructure:"download_timeout_secs"`
	PageTimeoutSecs     int      `yaml:"page_timeout_secs" mapstructure:"page_timeout_secs"`
	MaxRetries          int      `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent           string   `yaml:"user_agent" mapstructure:"user_agent"`
	Workers             int      `yaml:"workers" mapstructure:"workers"`
}

// DataConfig lays out the local file tree. Empty overrides derive from RootDir.
type DataConfig struct {
	RootDir       string `yaml:"root_dir" mapstructure:"root_dir"`
	AccountingDir string `yaml:"accounting_dir" mapstructure:"accounting_dir"`
	ZipsDir       string `yaml:"zips_dir" mapstructure:"zips_dir"`
	CSVsDir       string `yaml:"csvs_dir" mapstructure:"csvs_dir"`
	OperatorsDir  string `yaml:"operators_dir" mapstructure:"operators_dir"`
	OperatorsCSV  string `yaml:"operators_csv" mapstructure:"operators_csv"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	PoolSize    int    `yaml:"pool_size" mapstructure:"pool_size"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
	CSVEncoding string `yaml:"csv_encoding" mapstructure:"csv_encoding"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MetricsConfig configures the end-of-run metrics dump.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// ServerConfig configures the search API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ANS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Keys without a meaningful default are still registered so that
	// AutomaticEnv can bind them on Unmarshal.
	v.SetDefault("source.base_accounting_url", "https://dadosabertos.ans.gov.br/FTP/PDA/demonstracoes_contabeis/")
	v.SetDefault("source.operators_csv_url", "https://dadosabertos.ans.gov.br/FTP/PDA/operadoras_de_plano_de_saude_ativas/Relatorio_cadop.csv")
	v.SetDefault("source.years", []string{})
	v.SetDefault("source.current_year", 0)
	v.SetDefault("source.download_timeout_secs", 60)
	v.SetDefault("source.page_timeout_secs", 30)
	v.SetDefault("source.max_retries", 3)
	v.SetDefault("source.user_agent", "ans-sync/1.0")
	v.SetDefault("source.workers", 1)
	v.SetDefault("data.root_dir", "./data")
	v.SetDefault("data.accounting_dir", "")
	v.SetDefault("data.zips_dir", "")
	v.SetDefault("data.csvs_dir", "")
	v.SetDefault("data.operators_dir", "")
	v.SetDefault("data.operators_csv", "")
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.pool_size", 2)
	v.SetDefault("store.schema", "ans")
	v.SetDefault("store.csv_encoding", "utf-8")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})

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
	cfg.Source.Years = cleanYears(cfg.Source.Years)
	if len(cfg.Source.Years) == 0 {
		cfg.Source.Years = DefaultYears(cfg.Source.CurrentYear)
	}

	return &cfg, nil
}

// DefaultYears returns the two years before current, oldest first. A zero current
// means this year.
func DefaultYears(current int) []string {
	if current <= 0 {
		current = time.Now().Year()
	}
	return []string{strconv.Itoa(current - 2), strconv.Itoa(current - 1)}
}

// cleanYears trims entries and drops empty ones. A single comma-separated entry, as
// set through the environment, is split.
func cleanYears(in []string) []string {
	var out []string
	for _, y := range in {
		for _, part := range strings.Split(y, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate checks the settings needed by mode: "download", "load", "run" or "serve".
// All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	checkSource := func() {
		if strings.TrimSpace(c.Source.BaseAccountingURL) == "" {
			errs = append(errs, "source.base_accounting_url is required")
		}
		if strings.TrimSpace(c.Source.OperatorsCSVURL) == "" {
			errs = append(errs, "source.operators_csv_url is required")
		}
		if len(c.Source.Years) == 0 {
			errs = append(errs, "source.years resolved to no years")
		}
		for _, y := range c.Source.Years {
			if _, err := strconv.Atoi(y); err != nil {
				errs = append(errs, "source.years has invalid year "+strconv.Quote(y))
			}
		}
		if c.Source.Workers < 0 {
			errs = append(errs, "source.workers must be >= 0")
		}
	}
	checkStore := func() {
		switch c.Store.Driver {
		case "postgres", "sqlite":
		default:
			errs = append(errs, "store.driver must be postgres or sqlite")
		}
		if strings.TrimSpace(c.Store.DatabaseURL) == "" {
			errs = append(errs, "store.database_url is required")
		}
		if c.Store.PoolSize < 0 {
			errs = append(errs, "store.pool_size must be >= 0")
		}
	}

	switch mode {
	case "download":
		checkSource()
	case "load":
		checkStore()
	case "run":
		checkSource()
		checkStore()
	case "serve":
		checkStore()
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Layout derives the local file tree.
func (c *Config) Layout() ingest.Layout {
	d := c.Data
	root := d.RootDir
	if root == "" {
		root = "./data"
	}
	l := ingest.Layout{
		Root:         root,
		Accounting:   or(d.AccountingDir, filepath.Join(root, "accounting")),
		Operators:    or(d.OperatorsDir, filepath.Join(root, "operators")),
		OperatorsCSV: d.OperatorsCSV,
	}
	l.Zips = or(d.ZipsDir, filepath.Join(l.Accounting, "zips"))
	l.CSVs = or(d.CSVsDir, filepath.Join(l.Accounting, "csvs"))
	if l.OperatorsCSV == "" {
		l.OperatorsCSV = filepath.Join(l.Operators, "operators.csv")
	}
	return l
}

// DownloadTimeout is the per-artifact download timeout.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Source.DownloadTimeoutSecs) * time.Second
}

// PageTimeout is the listing page fetch timeout.
func (c *Config) PageTimeout() time.Duration {
	return time.Duration(c.Source.PageTimeoutSecs) * time.Second
}

func or(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// InitLogger builds the logger described by cfg.
func InitLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	return logger, nil
}

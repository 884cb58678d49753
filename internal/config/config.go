package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Portal  PortalConfig  `yaml:"portal" mapstructure:"portal"`
	Socrata SocrataConfig `yaml:"socrata" mapstructure:"socrata"`
	Acquire AcquireConfig `yaml:"acquire" mapstructure:"acquire"`
	Enrich  EnrichConfig  `yaml:"enrich" mapstructure:"enrich"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	History HistoryConfig `yaml:"history" mapstructure:"history"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-ledger database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PortalConfig configures the browser-driven portal source. Every selector
// the automation touches lives here so portal markup drift is a config
// change, not a code change.
type PortalConfig struct {
	SearchURL         string          `yaml:"search_url" mapstructure:"search_url"`
	BaseURL           string          `yaml:"base_url" mapstructure:"base_url"`
	Headless          bool            `yaml:"headless" mapstructure:"headless"`
	NavTimeoutSecs    int             `yaml:"nav_timeout_secs" mapstructure:"nav_timeout_secs"`
	SettleDelayMillis int             `yaml:"settle_delay_millis" mapstructure:"settle_delay_millis"`
	OptionWaitSecs    int             `yaml:"option_wait_secs" mapstructure:"option_wait_secs"`
	CaptchaWaitSecs   int             `yaml:"captcha_wait_secs" mapstructure:"captcha_wait_secs"`
	CaptchaPollSecs   int             `yaml:"captcha_poll_secs" mapstructure:"captcha_poll_secs"`
	PageRetries       int             `yaml:"page_retries" mapstructure:"page_retries"`
	MaxPages          int             `yaml:"max_pages" mapstructure:"max_pages"`
	Selectors         PortalSelectors `yaml:"selectors" mapstructure:"selectors"`
}

// PortalSelectors names every DOM element the portal automation touches.
type PortalSelectors struct {
	ResultsFrame    string   `yaml:"results_frame" mapstructure:"results_frame"`
	Keyword         string   `yaml:"keyword" mapstructure:"keyword"`
	ProcessNumber   string   `yaml:"process_number" mapstructure:"process_number"`
	Entity          string   `yaml:"entity" mapstructure:"entity"`
	Department      string   `yaml:"department" mapstructure:"department"`
	Modality        string   `yaml:"modality" mapstructure:"modality"`
	Status          string   `yaml:"status" mapstructure:"status"`
	DateFrom        string   `yaml:"date_from" mapstructure:"date_from"`
	DateTo          string   `yaml:"date_to" mapstructure:"date_to"`
	Submit          string   `yaml:"submit" mapstructure:"submit"`
	ResultsTable    string   `yaml:"results_table" mapstructure:"results_table"`
	TotalCount      string   `yaml:"total_count" mapstructure:"total_count"`
	NextPage        string   `yaml:"next_page" mapstructure:"next_page"`
	DetailPattern   string   `yaml:"detail_pattern" mapstructure:"detail_pattern"`
	NoResultPhrases []string `yaml:"no_result_phrases" mapstructure:"no_result_phrases"`
}

// SocrataConfig configures the open-data fallback source.
type SocrataConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Dataset     string `yaml:"dataset" mapstructure:"dataset"`
	AppToken    string `yaml:"app_token" mapstructure:"app_token"`
	PageSize    int    `yaml:"page_size" mapstructure:"page_size"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AcquireConfig configures the dual-source orchestration.
type AcquireConfig struct {
	Source string `yaml:"source" mapstructure:"source"` // auto | portal | api
}

// EnrichConfig configures the detail-page enrichment pass.
type EnrichConfig struct {
	DelayMillis         int `yaml:"delay_millis" mapstructure:"delay_millis"`
	MaxConsecutiveFails int `yaml:"max_consecutive_fails" mapstructure:"max_consecutive_fails"`
}

// OutputConfig configures result exports.
type OutputConfig struct {
	Format    string `yaml:"format" mapstructure:"format"` // csv | xlsx
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
	Encoding  string `yaml:"encoding" mapstructure:"encoding"` // utf-8 | utf-8-sig | latin-1
}

// HistoryConfig configures the keyed history store.
type HistoryConfig struct {
	Path      string `yaml:"path" mapstructure:"path"`
	Delimiter string `yaml:"delimiter" mapstructure:"delimiter"`
	Encoding  string `yaml:"encoding" mapstructure:"encoding"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SECOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "secop-runs.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("portal.search_url", "https://www.contratos.gov.co/consultas/inicioConsulta.do")
	v.SetDefault("portal.base_url", "https://www.contratos.gov.co")
	v.SetDefault("portal.headless", true)
	v.SetDefault("portal.nav_timeout_secs", 45)
	v.SetDefault("portal.settle_delay_millis", 1500)
	v.SetDefault("portal.option_wait_secs", 10)
	v.SetDefault("portal.captcha_wait_secs", 120)
	v.SetDefault("portal.captcha_poll_secs", 5)
	v.SetDefault("portal.page_retries", 3)
	v.SetDefault("portal.max_pages", 100)
	v.SetDefault("portal.selectors.results_frame", "iframeVentana")
	v.SetDefault("portal.selectors.keyword", "#objeto")
	v.SetDefault("portal.selectors.process_number", "#numeroProceso")
	v.SetDefault("portal.selectors.entity", "#entidad")
	v.SetDefault("portal.selectors.department", "#departamento")
	v.SetDefault("portal.selectors.modality", "#modalidad")
	v.SetDefault("portal.selectors.status", "#estado")
	v.SetDefault("portal.selectors.date_from", "#fechaInicial")
	v.SetDefault("portal.selectors.date_to", "#fechaFinal")
	v.SetDefault("portal.selectors.submit", "#btnBuscar")
	v.SetDefault("portal.selectors.results_table", "table.tbl_resulados")
	v.SetDefault("portal.selectors.total_count", "span.totalRegistros")
	v.SetDefault("portal.selectors.next_page", "a#siguiente")
	v.SetDefault("portal.selectors.detail_pattern", "detalleProceso")
	v.SetDefault("portal.selectors.no_result_phrases", []string{
		"no se encontraron resultados",
		"no hay resultados",
		"su consulta no produjo resultados",
	})

	v.SetDefault("socrata.base_url", "https://www.datos.gov.co")
	v.SetDefault("socrata.dataset", "jbjy-vk9h")
	v.SetDefault("socrata.page_size", 1000)
	v.SetDefault("socrata.timeout_secs", 60)

	v.SetDefault("acquire.source", "auto")
	v.SetDefault("enrich.delay_millis", 1500)
	v.SetDefault("enrich.max_consecutive_fails", 5)

	v.SetDefault("output.format", "csv")
	v.SetDefault("output.delimiter", ";")
	v.SetDefault("output.encoding", "utf-8-sig")
	v.SetDefault("history.path", "secop-history.csv")
	v.SetDefault("history.delimiter", ";")
	v.SetDefault("history.encoding", "utf-8-sig")

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

	return &cfg, nil
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

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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Cron     CronConfig     `yaml:"cron" mapstructure:"cron"`
	Scrape   ScrapeConfig   `yaml:"scrape" mapstructure:"scrape"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Overpass OverpassConfig `yaml:"overpass" mapstructure:"overpass"`
	Places   PlacesConfig   `yaml:"places" mapstructure:"places"`
	Serp     SerpConfig     `yaml:"serp" mapstructure:"serp"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// CronConfig configures the scheduled rotation endpoint.
type CronConfig struct {
	Secret string `yaml:"secret" mapstructure:"secret"`
	Quota  int    `yaml:"quota" mapstructure:"quota"`
}

// ScrapeConfig bounds a single location run.
type ScrapeConfig struct {
	RadiusCapKm     float64 `yaml:"radius_cap_km" mapstructure:"radius_cap_km"`
	DefaultRadiusKm float64 `yaml:"default_radius_km" mapstructure:"default_radius_km"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PipelineConfig tunes dedup and reconciliation.
type PipelineConfig struct {
	DedupPrecision       int     `yaml:"dedup_precision" mapstructure:"dedup_precision"`
	BBoxToleranceDeg     float64 `yaml:"bbox_tolerance_deg" mapstructure:"bbox_tolerance_deg"`
	ReconcileConcurrency int     `yaml:"reconcile_concurrency" mapstructure:"reconcile_concurrency"`
}

// OverpassConfig configures the OpenStreetMap Overpass source.
type OverpassConfig struct {
	BaseURL  string  `yaml:"base_url" mapstructure:"base_url"`
	RadiusKm float64 `yaml:"radius_km" mapstructure:"radius_km"`
}

// PlacesConfig configures the commercial places source.
type PlacesConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	PacingMs int    `yaml:"pacing_ms" mapstructure:"pacing_ms"`
}

// SerpConfig configures the SERP maps source.
type SerpConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	PacingMs int    `yaml:"pacing_ms" mapstructure:"pacing_ms"`
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
	v.SetEnvPrefix("CLUBSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "clubscout.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("cron.quota", 2)
	v.SetDefault("scrape.radius_cap_km", 50)
	v.SetDefault("scrape.default_radius_km", 10)
	v.SetDefault("scrape.timeout_secs", 300)
	v.SetDefault("pipeline.dedup_precision", 3)
	v.SetDefault("pipeline.bbox_tolerance_deg", 0.001)
	v.SetDefault("pipeline.reconcile_concurrency", 4)
	v.SetDefault("overpass.base_url", "https://overpass-api.de/api/interpreter")
	v.SetDefault("overpass.radius_km", 20)
	v.SetDefault("places.base_url", "https://maps.googleapis.com/maps/api/place/textsearch/json")
	v.SetDefault("places.pacing_ms", 500)
	v.SetDefault("serp.base_url", "https://serpapi.com/search.json")
	v.SetDefault("serp.pacing_ms", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the configuration required by the given run mode.
// Modes: "serve", "scrape", "cron".
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}
	if c.Scrape.RadiusCapKm <= 0 {
		problems = append(problems, "scrape.radius_cap_km must be > 0")
	}
	if c.Pipeline.DedupPrecision < 1 || c.Pipeline.DedupPrecision > 8 {
		problems = append(problems, "pipeline.dedup_precision must be between 1 and 8")
	}
	if c.Pipeline.BBoxToleranceDeg <= 0 {
		problems = append(problems, "pipeline.bbox_tolerance_deg must be > 0")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "cron":
		if c.Cron.Quota <= 0 {
			problems = append(problems, "cron.quota must be > 0")
		}
	case "scrape":
		// Nothing beyond the shared checks.
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration: %s", strings.Join(problems, "; "))
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

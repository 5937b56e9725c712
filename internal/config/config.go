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
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	ATTOM  ATTOMConfig  `yaml:"attom" mapstructure:"attom"`
	Apify  ApifyConfig  `yaml:"apify" mapstructure:"apify"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Media  MediaConfig  `yaml:"media" mapstructure:"media"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ATTOMConfig holds ATTOM property API credentials and endpoints.
type ATTOMConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ApifyConfig holds the Apify actor settings for the Realtor scraper.
type ApifyConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	ActorID string `yaml:"actor_id" mapstructure:"actor_id"`
}

// IngestConfig holds run-level defaults shared by both orchestrators.
type IngestConfig struct {
	DefaultRadiusMiles float64 `yaml:"default_radius_miles" mapstructure:"default_radius_miles"`
	DefaultLimit       int     `yaml:"default_limit" mapstructure:"default_limit"`
	MaxLimit           int     `yaml:"max_limit" mapstructure:"max_limit"`
	RealtorPriceFloor  float64 `yaml:"realtor_price_floor" mapstructure:"realtor_price_floor"`
	MaxPhotos          int     `yaml:"max_photos" mapstructure:"max_photos"`
	CityPresetsFile    string  `yaml:"city_presets_file" mapstructure:"city_presets_file"`
}

// MediaConfig configures the media persistence step.
type MediaConfig struct {
	ValidateURLs bool `yaml:"validate_urls" mapstructure:"validate_urls"`
	Concurrency  int  `yaml:"concurrency" mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP ingest server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("LUXKEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("attom.base_url", "https://api.gateway.attomdata.com/propertyapi/v1.0.0")
	v.SetDefault("apify.base_url", "https://api.apify.com/v2")
	v.SetDefault("apify.actor_id", "epctex~realtor-scraper")
	v.SetDefault("ingest.default_radius_miles", 5.0)
	v.SetDefault("ingest.default_limit", 50)
	v.SetDefault("ingest.max_limit", 100)
	v.SetDefault("ingest.realtor_price_floor", 2000000)
	v.SetDefault("ingest.max_photos", 40)
	v.SetDefault("ingest.city_presets_file", "")
	v.SetDefault("media.validate_urls", false)
	v.SetDefault("media.concurrency", 4)

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

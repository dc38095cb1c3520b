// Package config loads application configuration from file and environment
// and initializes the global logger.
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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Listings  ListingsConfig  `yaml:"listings" mapstructure:"listings"`
	Reverse   ReverseConfig   `yaml:"reverse" mapstructure:"reverse"`
	Retrieval RetrievalConfig `yaml:"retrieval" mapstructure:"retrieval"`
	Scan      ScanConfig      `yaml:"scan" mapstructure:"scan"`
	Sensor    SensorConfig    `yaml:"sensor" mapstructure:"sensor"`
	Comps     CompsConfig     `yaml:"comps" mapstructure:"comps"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ListingsConfig holds the upstream listings API settings.
type ListingsConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ReverseConfig configures the reverse-lookup providers. The parcel
// shapefile is optional; when absent the HTTP provider runs alone.
type ReverseConfig struct {
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	Key           string `yaml:"key" mapstructure:"key"`
	ParcelShpPath string `yaml:"parcel_shp_path" mapstructure:"parcel_shp_path"`
}

// RetrievalConfig tunes the retry and rate-limit policy shared by all
// upstream HTTP calls.
type RetrievalConfig struct {
	MaxAttempts        int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	AttemptTimeoutSecs int     `yaml:"attempt_timeout_secs" mapstructure:"attempt_timeout_secs"`
	BackoffUnitSecs    int     `yaml:"backoff_unit_secs" mapstructure:"backoff_unit_secs"`
	RatePerSecond      float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Burst              int     `yaml:"burst" mapstructure:"burst"`
}

// ScanConfig configures the targeting cone geometry.
type ScanConfig struct {
	HalfAngleDeg     float64 `yaml:"half_angle_deg" mapstructure:"half_angle_deg"`
	DistanceWindowM  float64 `yaml:"distance_window_m" mapstructure:"distance_window_m"`
	DefaultDistanceM float64 `yaml:"default_distance_m" mapstructure:"default_distance_m"`
	MaxProbes        int     `yaml:"max_probes" mapstructure:"max_probes"`
}

// SensorConfig tunes the magnetometer fusion smoothing coefficients.
type SensorConfig struct {
	Alpha float64 `yaml:"alpha" mapstructure:"alpha"`
	Beta  float64 `yaml:"beta" mapstructure:"beta"`
}

// CompsConfig configures comparable retrieval and ranking.
type CompsConfig struct {
	Limit         int    `yaml:"limit" mapstructure:"limit"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	WeightsPath   string `yaml:"weights_path" mapstructure:"weights_path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the fields required by the given mode are set.
// Modes correspond to commands: "resolve", "comps", and "serve".
func (c *Config) Validate(mode string) error {
	var missing []string

	checkStore := func() {
		if c.Store.Driver != "sqlite" && c.Store.Driver != "postgres" {
			missing = append(missing, "store.driver must be sqlite or postgres")
		}
		if c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	}

	switch mode {
	case "resolve":
		checkStore()
		if c.Reverse.BaseURL == "" && c.Reverse.ParcelShpPath == "" {
			missing = append(missing, "reverse.base_url or reverse.parcel_shp_path is required")
		}
	case "comps":
		checkStore()
		if c.Listings.Key == "" {
			missing = append(missing, "listings.key is required")
		}
		if c.Listings.BaseURL == "" {
			missing = append(missing, "listings.base_url is required")
		}
	case "serve":
		checkStore()
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Retrieval.MaxAttempts < 1 || c.Retrieval.MaxAttempts > 10 {
		missing = append(missing, "retrieval.max_attempts must be between 1 and 10")
	}
	if c.Scan.HalfAngleDeg <= 0 || c.Scan.HalfAngleDeg > 90 {
		missing = append(missing, "scan.half_angle_deg must be between 0 and 90")
	}
	if c.Sensor.Alpha < 0 || c.Sensor.Alpha > 1 {
		missing = append(missing, "sensor.alpha must be between 0 and 1")
	}
	if c.Sensor.Beta < 0 || c.Sensor.Beta > 1 {
		missing = append(missing, "sensor.beta must be between 0 and 1")
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "scout.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("listings.base_url", "https://api.propsight.io")
	v.SetDefault("reverse.base_url", "https://api.propsight.io")
	v.SetDefault("retrieval.max_attempts", 3)
	v.SetDefault("retrieval.attempt_timeout_secs", 15)
	v.SetDefault("retrieval.backoff_unit_secs", 2)
	v.SetDefault("retrieval.rate_per_second", 10)
	v.SetDefault("retrieval.burst", 10)
	v.SetDefault("scan.half_angle_deg", 20)
	v.SetDefault("scan.distance_window_m", 20)
	v.SetDefault("scan.default_distance_m", 50)
	v.SetDefault("scan.max_probes", 10)
	v.SetDefault("sensor.alpha", 0.15)
	v.SetDefault("sensor.beta", 0.3)
	v.SetDefault("comps.limit", 20)
	v.SetDefault("comps.cache_ttl_hours", 24)

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

package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Environment mode values. Development loosens CORS for localhost origins;
// production enables HSTS.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Upload size bounds, in megabytes.
const (
	minUploadMB = 1
	maxUploadMB = 50
)

// Config represents the runtime configuration for the voiceclone backend.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Provider    ProviderConfig    `mapstructure:"provider"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Uploads     UploadConfig      `mapstructure:"uploads"`
	Audio       AudioConfig       `mapstructure:"audio"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`
	Environment string `mapstructure:"environment"`
}

// ProviderConfig describes the remote voice-cloning/TTS provider.
type ProviderConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	WSURL   string        `mapstructure:"ws_url"`
	Backend string        `mapstructure:"backend"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CORSConfig holds the origin allow-list.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// UploadConfig bounds inbound audio uploads.
type UploadConfig struct {
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	Dir       string `mapstructure:"dir"`
}

// AudioConfig configures generated-audio output.
type AudioConfig struct {
	OutputDir string        `mapstructure:"output_dir"`
	Retention time.Duration `mapstructure:"retention"`
}

// RateLimitConfig carries the per-route request budgets. The creation budget
// is tighter than synthesis because model training is the more expensive
// remote operation.
type RateLimitConfig struct {
	CreateMax    int           `mapstructure:"create_max"`
	CreateWindow time.Duration `mapstructure:"create_window"`
	TTSMax       int           `mapstructure:"tts_max"`
	TTSWindow    time.Duration `mapstructure:"tts_window"`
	GlobalMax    int           `mapstructure:"global_max"`
	GlobalWindow time.Duration `mapstructure:"global_window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// MaintenanceConfig schedules background sweeps.
type MaintenanceConfig struct {
	SweepSchedule string `mapstructure:"sweep_schedule"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("VOICECLONE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.environment", EnvDevelopment)

	// Registered empty so the environment override is picked up during unmarshal.
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "https://api.fish.audio")
	v.SetDefault("provider.ws_url", "wss://api.fish.audio")
	v.SetDefault("provider.backend", "speech-1.6")
	v.SetDefault("provider.timeout", "60s")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000")

	v.SetDefault("uploads.max_size_mb", 10)
	v.SetDefault("uploads.dir", "./data/uploads")

	v.SetDefault("audio.output_dir", "./public/audio")
	v.SetDefault("audio.retention", "24h")

	v.SetDefault("ratelimit.create_max", 5)
	v.SetDefault("ratelimit.create_window", "1m")
	v.SetDefault("ratelimit.tts_max", 10)
	v.SetDefault("ratelimit.tts_window", "1m")
	v.SetDefault("ratelimit.global_max", 100)
	v.SetDefault("ratelimit.global_window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/voiceclone.sqlite")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")

	v.SetDefault("maintenance.sweep_schedule", "@hourly")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate fails fast on configuration that cannot produce a working process.
// Out-of-range upload caps are clamped rather than rejected.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	c.Provider.APIKey = strings.TrimSpace(c.Provider.APIKey)
	if c.Provider.APIKey == "" {
		return errors.New("provider.api_key must be configured")
	}
	if len(c.Provider.APIKey) < 16 {
		return fmt.Errorf("provider.api_key looks implausibly short (%d characters)", len(c.Provider.APIKey))
	}

	env := strings.ToLower(strings.TrimSpace(c.Server.Environment))
	switch env {
	case "", EnvDevelopment:
		c.Server.Environment = EnvDevelopment
	case EnvProduction, EnvTest:
		c.Server.Environment = env
	default:
		return fmt.Errorf("server.environment must be one of %s, %s, %s", EnvDevelopment, EnvProduction, EnvTest)
	}

	if c.Uploads.MaxSizeMB < minUploadMB {
		c.Uploads.MaxSizeMB = minUploadMB
	}
	if c.Uploads.MaxSizeMB > maxUploadMB {
		c.Uploads.MaxSizeMB = maxUploadMB
	}

	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	}

	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = 60 * time.Second
	}

	return nil
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Server.Environment, EnvDevelopment)
}

// IsProduction reports whether the process runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, EnvProduction)
}

// MaxUploadBytes converts the configured upload cap to bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Uploads.MaxSizeMB) << 20
}

// Package config loads heartbeat settings from defaults, an optional YAML
// file and HEARTBEAT_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/HerbHall/heartbeat/internal/heartbeat"
	"github.com/HerbHall/heartbeat/internal/server"
	"github.com/HerbHall/heartbeat/internal/telemetry"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override: HEARTBEAT_SERVER_PORT=9090.
const EnvPrefix = "HEARTBEAT"

// ErrInvalid is returned by Config.Validate.
var ErrInvalid = errors.New("invalid configuration")

// Load builds a Viper instance with defaults applied. An explicit path must
// exist; otherwise heartbeat.yaml is searched for and may be absent.
func Load(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("heartbeat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/heartbeat")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.burst", 40)
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("database.path", "heartbeat.db")

	v.SetDefault("heartbeat.tick_interval", "1s")
	v.SetDefault("heartbeat.batch_size", 10)

	v.SetDefault("definitions.root_directory", "./monitors")
	v.SetDefault("definitions.search_pattern", "*.json")
	v.SetDefault("definitions.include_subdirectories", true)

	v.SetDefault("metrics.exporter", telemetry.ExporterPrometheus)
	v.SetDefault("metrics.name", "heartbeat.monitor.up")
	v.SetDefault("metrics.description", "1 if the last check of the monitor succeeded, 0 otherwise")
	v.SetDefault("metrics.service_name", "heartbeat")
	v.SetDefault("metrics.otlp_endpoint", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "heartbeat")
	v.SetDefault("auth.token_ttl", "24h")
}

// Config is the typed form of every section.
type Config struct {
	Server      server.Config     `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Heartbeat   heartbeat.Config  `mapstructure:"heartbeat"`
	Definitions DefinitionsConfig `mapstructure:"definitions"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Auth        AuthConfig        `mapstructure:"auth"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig locates the SQLite file. An empty path disables
// persistence of API-registered definitions.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type DefinitionsConfig struct {
	RootDirectory         string `mapstructure:"root_directory"`
	SearchPattern         string `mapstructure:"search_pattern"`
	IncludeSubdirectories bool   `mapstructure:"include_subdirectories"`
}

type MetricsConfig struct {
	Exporter     string `mapstructure:"exporter"`
	Name         string `mapstructure:"name"`
	Description  string `mapstructure:"description"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

// AuthConfig protects the write API. An empty secret disables it.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// Enabled reports whether write routes require a token.
func (a AuthConfig) Enabled() bool { return a.JWTSecret != "" }

// Decode unmarshals v into a Config and validates it.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail late.
func (c Config) Validate() error {
	if err := c.Heartbeat.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port)
	}
	if !telemetry.ValidExporter(c.Metrics.Exporter) {
		return fmt.Errorf("%w: metrics.exporter %q", ErrInvalid, c.Metrics.Exporter)
	}
	if c.Metrics.Name == "" {
		return fmt.Errorf("%w: metrics.name is required", ErrInvalid)
	}
	if c.Definitions.RootDirectory == "" {
		return fmt.Errorf("%w: definitions.root_directory is required", ErrInvalid)
	}
	if c.Auth.Enabled() && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("%w: auth.jwt_secret must be at least 32 bytes", ErrInvalid)
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("%w: auth.token_ttl must be positive", ErrInvalid)
	}
	return nil
}

package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Session   SessionConfig   `mapstructure:"session"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Zones     ZonesConfig     `mapstructure:"zones"`
	SMS       SMSConfig       `mapstructure:"sms"`
	Mapbox    MapboxConfig    `mapstructure:"mapbox"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type SessionConfig struct {
	// Flow selects the interaction model: "explicit" (pick start, draw
	// zones, dispatch) or "paired" (two clicks, auto-dispatch).
	Flow                   string  `mapstructure:"flow"`
	ClickSuppressionMeters float64 `mapstructure:"click_suppression_meters"`
	AllowOverlap           bool    `mapstructure:"allow_overlap"`
}

type RoutingConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type ZonesConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

type SMSConfig struct {
	RelayURL    string `mapstructure:"relay_url"`
	APIKey      string `mapstructure:"api_key"`
	Destination string `mapstructure:"destination"`
}

// Configured reports whether the relay can actually be used. Checked before
// any send so the proxy endpoint degrades instead of dialing with no key.
func (s SMSConfig) Configured() bool {
	return s.RelayURL != "" && s.APIKey != "" && s.Destination != ""
}

type MapboxConfig struct {
	Token string `mapstructure:"token"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("session.flow", "explicit")
	v.SetDefault("session.click_suppression_meters", 15.0)
	v.SetDefault("session.allow_overlap", false)
	v.SetDefault("routing.base_url", "http://localhost:8000")
	v.SetDefault("zones.base_url", "http://localhost:8000")
	v.SetDefault("sms.relay_url", "https://textbelt.com/text")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "evacmap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "evacmap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "localhost:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: EVACMAP_ROUTING_BASE_URL → routing.base_url
	v.SetEnvPrefix("EVACMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
// SMS and Mapbox credentials are deliberately optional: their affordances
// are disabled when absent rather than refusing to start.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Session.Flow != "explicit" && c.Session.Flow != "paired" {
		errs = append(errs, fmt.Sprintf("session.flow must be explicit or paired, got %q", c.Session.Flow))
	}
	if c.Session.ClickSuppressionMeters < 0 {
		errs = append(errs, "session.click_suppression_meters must not be negative")
	}
	if c.Routing.BaseURL == "" {
		errs = append(errs, "routing.base_url is required")
	}
	if c.Zones.BaseURL == "" {
		errs = append(errs, "zones.base_url is required")
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

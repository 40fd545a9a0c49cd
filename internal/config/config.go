// Package config loads service configuration from a TOML file and
// environment variables via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	HTTP    HTTPConfig
	Storage StorageConfig
	Billing BillingConfig
	Log     LogConfig
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// StorageConfig holds SQLite settings.
type StorageConfig struct {
	// Path is the SQLite database path; ":memory:" for an in-memory
	// database.
	Path string
}

// BillingConfig holds the tariff defaults applied when a request omits
// per-cycle values, and the consumption warning threshold.
type BillingConfig struct {
	DefaultRatePerUnit       float64
	DefaultStandingCharge    float64
	HighConsumptionThreshold float64
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// Load loads configuration from config.toml and environment variables.
// Priority (highest to lowest):
//  1. Environment variables with BILLING_ prefix (e.g., BILLING_HTTP_PORT)
//  2. config.toml in the working directory
//  3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/billing-engine")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		HTTP: HTTPConfig{
			Port:            v.GetInt("http.port"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			CORSOrigins:     v.GetStringSlice("http.cors_origins"),
		},
		Storage: StorageConfig{
			Path: v.GetString("storage.path"),
		},
		Billing: BillingConfig{
			DefaultRatePerUnit:       v.GetFloat64("billing.default_rate_per_unit"),
			DefaultStandingCharge:    v.GetFloat64("billing.default_standing_charge"),
			HighConsumptionThreshold: v.GetFloat64("billing.high_consumption_threshold"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
	}

	if cfg.Billing.DefaultRatePerUnit < 0 || cfg.Billing.DefaultStandingCharge < 0 {
		return nil, fmt.Errorf("billing defaults must not be negative")
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.shutdown_timeout", 30*time.Second)
	v.SetDefault("http.cors_origins", []string{"http://localhost:5173", "http://localhost:8080"})

	v.SetDefault("storage.path", "billing.db")

	// Tariff defaults in KES; readings are cubic meters.
	v.SetDefault("billing.default_rate_per_unit", 50)
	v.SetDefault("billing.default_standing_charge", 100)
	v.SetDefault("billing.high_consumption_threshold", 50)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
}

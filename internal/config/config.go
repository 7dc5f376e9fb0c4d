// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	DBHost         string `mapstructure:"DB_HOST"`
	DBPort         string `mapstructure:"DB_PORT"`
	DBUser         string `mapstructure:"DB_USER"`
	DBPassword     string `mapstructure:"DB_PASSWORD"`
	DBName         string `mapstructure:"DB_NAME"`
	DBSSLMode      string `mapstructure:"DB_SSLMODE"`
	RedisURL       string `mapstructure:"REDIS_URL"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	// RootDomain anchors locality subdomains (e.g. springfield.<RootDomain>).
	RootDomain string `mapstructure:"ROOT_DOMAIN"`
	// LocalityCookie names the cookie carrying the client's asserted locality slug.
	LocalityCookie string `mapstructure:"LOCALITY_COOKIE"`

	GeocoderBaseURL    string `mapstructure:"GEOCODER_BASE_URL"`
	GeocoderAPIKey     string `mapstructure:"GEOCODER_API_KEY"`
	GeocoderTimeoutSec int    `mapstructure:"GEOCODER_TIMEOUT_SECONDS"`

	AnthropicAPIKey      string `mapstructure:"ANTHROPIC_API_KEY"`
	ModerationModel      string `mapstructure:"MODERATION_MODEL"`
	ModerationFailPolicy string `mapstructure:"MODERATION_FAIL_POLICY"`
	ModerationTimeoutSec int    `mapstructure:"MODERATION_TIMEOUT_SECONDS"`

	FreshnessWindowHours int     `mapstructure:"FRESHNESS_WINDOW_HOURS"`
	CellPrecision        int     `mapstructure:"CELL_PRECISION"`
	RadiusMiles          float64 `mapstructure:"RADIUS_MILES"`
	QueryStrategy        string  `mapstructure:"QUERY_STRATEGY"`
	MaxContentLength     int     `mapstructure:"MAX_CONTENT_LENGTH"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	TracingOTLPEndpoint string  `mapstructure:"TRACING_OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// Initial read to get APP_ENV if set in base config
	// We intentionally ignore this error as the config file may not exist yet
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	// Set default values for development
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "corkboard")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")

	viper.SetDefault("ROOT_DOMAIN", "corkboard.app")
	viper.SetDefault("LOCALITY_COOKIE", "corkboard_locality")

	viper.SetDefault("GEOCODER_BASE_URL", "https://maps.googleapis.com/maps/api/geocode")
	viper.SetDefault("GEOCODER_API_KEY", "")
	viper.SetDefault("GEOCODER_TIMEOUT_SECONDS", 5)

	viper.SetDefault("ANTHROPIC_API_KEY", "")
	viper.SetDefault("MODERATION_MODEL", "claude-haiku-4-5")
	viper.SetDefault("MODERATION_FAIL_POLICY", "open")
	viper.SetDefault("MODERATION_TIMEOUT_SECONDS", 10)

	viper.SetDefault("FRESHNESS_WINDOW_HOURS", 24)
	viper.SetDefault("CELL_PRECISION", 4)
	viper.SetDefault("RADIUS_MILES", 30.0)
	viper.SetDefault("QUERY_STRATEGY", "cell_radius")
	viper.SetDefault("MAX_CONTENT_LENGTH", 140)

	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("TRACING_OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and sane.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.RootDomain == "" {
		return errors.New("ROOT_DOMAIN is required")
	}
	if c.FreshnessWindowHours <= 0 {
		return errors.New("FRESHNESS_WINDOW_HOURS must be positive")
	}
	if c.MaxContentLength <= 0 {
		return errors.New("MAX_CONTENT_LENGTH must be positive")
	}
	switch c.QueryStrategy {
	case "locality", "cell", "cell_radius":
	default:
		return fmt.Errorf("QUERY_STRATEGY must be one of locality, cell, cell_radius (got %q)", c.QueryStrategy)
	}
	switch c.ModerationFailPolicy {
	case "open", "closed":
	default:
		return fmt.Errorf("MODERATION_FAIL_POLICY must be open or closed (got %q)", c.ModerationFailPolicy)
	}

	isProduction := c.Env == "production" || c.Env == "prod"
	if isProduction {
		if c.GeocoderAPIKey == "" {
			return errors.New("GEOCODER_API_KEY is required in production")
		}
		if c.AnthropicAPIKey == "" {
			log.Println("WARNING: ANTHROPIC_API_KEY is empty in production. Every post will take the moderation fallback path.")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	}

	return nil
}

// IsDevelopment reports whether the app runs in a local/developer environment.
func (c *Config) IsDevelopment() bool {
	return c.Env == "" || c.Env == "development" || c.Env == "test"
}

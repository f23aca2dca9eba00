// Package config loads settings from defaults, an optional YAML file, a .env
// file and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all obdai configuration.
type Config struct {
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`       // development, production
	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	DatabaseURL string `yaml:"database_url"`

	Auth     AuthConfig     `yaml:"auth"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Diagnose DiagnoseConfig `yaml:"diagnose"`

	CORSOrigin string `yaml:"cors_origin"`
}

// AuthConfig configures local tokens and the optional identity provider.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
	// Provider domain (e.g. https://yourapp.kinde.com); empty disables provider sessions.
	ProviderDomain   string `yaml:"provider_domain"`
	ProviderAudience string `yaml:"provider_audience"`
}

// GeminiConfig configures the completion endpoint.
type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// CatalogConfig configures vehicle reference lookups.
type CatalogConfig struct {
	BaseURL   string `yaml:"base_url"`
	CacheSize int    `yaml:"cache_size"`
}

// DiagnoseConfig configures the diagnosis endpoints.
type DiagnoseConfig struct {
	RatePerMinute float64 `yaml:"rate_per_minute"`
	Burst         int     `yaml:"burst"`
	Strict        bool    `yaml:"strict"`
}

// Requirement selects which settings Validate insists on.
type Requirement int

const (
	RequireGemini Requirement = 1 << iota
	RequireDatabase
	RequireJWT
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:     "8080",
		Env:      "production",
		LogLevel: "info",
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Gemini: GeminiConfig{
			Model:   "gemini-2.0-flash",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		},
		Catalog: CatalogConfig{
			BaseURL:   "https://www.carqueryapi.com/api/0.3/",
			CacheSize: 512,
		},
		Diagnose: DiagnoseConfig{
			RatePerMinute: 10,
			Burst:         3,
		},
		CORSOrigin: "*",
	}
}

// Load builds the configuration. path may be empty; a missing file or .env is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Existing environment variables win over .env entries.
	_ = godotenv.Load()

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	setString(&c.Port, "PORT")
	setString(&c.Env, "OBDAI_ENV")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.CORSOrigin, "CORS_ORIGIN")

	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Auth.ProviderDomain, "AUTH_DOMAIN")
	setString(&c.Auth.ProviderAudience, "AUTH_AUDIENCE")

	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Gemini.Model, "GEMINI_MODEL")
	setString(&c.Gemini.BaseURL, "GEMINI_BASE_URL")

	setString(&c.Catalog.BaseURL, "CATALOG_BASE_URL")

	var errs []error
	if v := env("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		errs = append(errs, wrapEnv("TOKEN_TTL", err))
		if err == nil {
			c.Auth.TokenTTL = d
		}
	}
	if v := env("CATALOG_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, wrapEnv("CATALOG_CACHE_SIZE", err))
		if err == nil {
			c.Catalog.CacheSize = n
		}
	}
	if v := env("DIAGNOSE_RATE_PER_MINUTE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		errs = append(errs, wrapEnv("DIAGNOSE_RATE_PER_MINUTE", err))
		if err == nil {
			c.Diagnose.RatePerMinute = f
		}
	}
	if v := env("DIAGNOSE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, wrapEnv("DIAGNOSE_BURST", err))
		if err == nil {
			c.Diagnose.Burst = n
		}
	}
	if v := env("DIAGNOSE_STRICT"); v != "" {
		b, err := strconv.ParseBool(v)
		errs = append(errs, wrapEnv("DIAGNOSE_STRICT", err))
		if err == nil {
			c.Diagnose.Strict = b
		}
	}
	return errors.Join(errs...)
}

// Validate reports every missing or invalid setting needed by req.
func (c *Config) Validate(req Requirement) error {
	var errs []error
	if req&RequireGemini != 0 && c.Gemini.APIKey == "" {
		errs = append(errs, errors.New("GEMINI_API_KEY is required"))
	}
	if req&RequireDatabase != 0 && c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if req&RequireJWT != 0 {
		if len(c.Auth.JWTSecret) < 32 {
			errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
		}
		if c.Auth.TokenTTL <= 0 {
			errs = append(errs, errors.New("token TTL must be positive"))
		}
	}
	if c.Diagnose.RatePerMinute < 0 || c.Diagnose.Burst < 0 {
		errs = append(errs, errors.New("diagnose rate limit must not be negative"))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether human-friendly output should be used.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func setString(dst *string, key string) {
	if v := env(key); v != "" {
		*dst = v
	}
}

func wrapEnv(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("invalid %s: %w", key, err)
}

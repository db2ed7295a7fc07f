package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/curation/curator/internal/domain/dictionary"
)

type Config struct {
	Port           string   `mapstructure:"PORT"`
	Env            string   `mapstructure:"ENV"`
	DatabaseURL    string   `mapstructure:"DATABASE_URL"`
	DBMaxConns     int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns     int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins    []string `mapstructure:"CORS_ORIGINS"`
	AuthIssuer     string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string   `mapstructure:"AUTH_AUDIENCE"`
	JWTSigningKey  string   `mapstructure:"JWT_SIGNING_KEY"`
	SuggestURL     string   `mapstructure:"SUGGEST_URL"`
	EpicCutover    string   `mapstructure:"EPIC_CUTOVER"`
	ICD10Cutover   string   `mapstructure:"ICD10_CUTOVER"`
	RateLimitRPS   float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("JWT_SIGNING_KEY")
	v.BindEnv("SUGGEST_URL")
	v.BindEnv("EPIC_CUTOVER")
	v.BindEnv("ICD10_CUTOVER")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Cutovers returns the source-system cutover dates, applying any configured
// overrides to the defaults. The dates are configurable; the comparison
// semantics (inclusive range end, strict range start) are not.
func (c *Config) Cutovers() (dictionary.Cutovers, error) {
	cut := dictionary.DefaultCutovers()
	if c.EpicCutover != "" {
		d, err := time.Parse("2006-01-02", c.EpicCutover)
		if err != nil {
			return cut, fmt.Errorf("EPIC_CUTOVER is not a valid date: %w", err)
		}
		cut.EpicGoLive = d
	}
	if c.ICD10Cutover != "" {
		d, err := time.Parse("2006-01-02", c.ICD10Cutover)
		if err != nil {
			return cut, fmt.Errorf("ICD10_CUTOVER is not a valid date: %w", err)
		}
		cut.ICD10Adoption = d
	}
	return cut, nil
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT signing key must be set so real authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSigningKey == "" {
		return fmt.Errorf("JWT_SIGNING_KEY is required when ENV is %q", c.Env)
	}
	if _, err := c.Cutovers(); err != nil {
		return err
	}
	return nil
}

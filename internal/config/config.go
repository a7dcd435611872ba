package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	AuthModeDevelopment = "development"
	AuthModeJWT         = "jwt"
)

type Config struct {
	Port                  string        `mapstructure:"PORT"`
	Env                   string        `mapstructure:"ENV"`
	LogLevel              string        `mapstructure:"LOG_LEVEL"`
	AuthMode              string        `mapstructure:"AUTH_MODE"`
	StoreDriver           string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL           string        `mapstructure:"DATABASE_URL"`
	DBMaxConns            int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32         `mapstructure:"DB_MIN_CONNS"`
	MongoURI              string        `mapstructure:"MONGO_URI"`
	MongoDatabase         string        `mapstructure:"MONGO_DATABASE"`
	FirestoreProjectID    string        `mapstructure:"FIRESTORE_PROJECT_ID"`
	StoreTimeout          time.Duration `mapstructure:"STORE_TIMEOUT"`
	RequestTimeout        time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	AuthIssuer            string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL           string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience          string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey        string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins           []string      `mapstructure:"CORS_ORIGINS"`
	BodyLimit             string        `mapstructure:"BODY_LIMIT"`
	RateLimitRPS          float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int           `mapstructure:"RATE_LIMIT_BURST"`
	ShareAttemptsPerMin   int           `mapstructure:"SHARE_ATTEMPTS_PER_MINUTE"`
	DoctorCodeMaxAttempts int           `mapstructure:"DOCTOR_CODE_MAX_ATTEMPTS"`
	RecordsPageSize       int           `mapstructure:"RECORDS_PAGE_SIZE"`
	RecordsMaxPageSize    int           `mapstructure:"RECORDS_MAX_PAGE_SIZE"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "AUTH_MODE",
	"STORE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"MONGO_URI", "MONGO_DATABASE", "FIRESTORE_PROJECT_ID",
	"STORE_TIMEOUT", "REQUEST_TIMEOUT",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "BODY_LIMIT", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "SHARE_ATTEMPTS_PER_MINUTE",
	"DOCTOR_CODE_MAX_ATTEMPTS", "RECORDS_PAGE_SIZE", "RECORDS_MAX_PAGE_SIZE",
}

// Load reads configuration from the environment and an optional .env file.
// It does not validate; call Validate before serving.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("AUTH_MODE", "") // inferred from ENV
	v.SetDefault("STORE_DRIVER", "postgres")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MONGO_DATABASE", "carelink")
	v.SetDefault("STORE_TIMEOUT", "5s")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("SHARE_ATTEMPTS_PER_MINUTE", 10)
	v.SetDefault("DOCTOR_CODE_MAX_ATTEMPTS", 10)
	v.SetDefault("RECORDS_PAGE_SIZE", 20)
	v.SetDefault("RECORDS_MAX_PAGE_SIZE", 100)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns AUTH_MODE if set, otherwise "development" for
// ENV=development and "jwt" everywhere else.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return c.AuthMode
	}
	if c.IsDev() {
		return AuthModeDevelopment
	}
	return AuthModeJWT
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	switch mode := c.ResolvedAuthMode(); mode {
	case AuthModeDevelopment:
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=development is not allowed when ENV=production")
		}
	case AuthModeJWT:
		if c.AuthSigningKey == "" && c.AuthJWKSURL == "" {
			return fmt.Errorf("AUTH_JWKS_URL or AUTH_SIGNING_KEY is required when AUTH_MODE is %q", mode)
		}
		if c.IsProduction() && c.AuthSigningKey != "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is for development only; use AUTH_JWKS_URL in production")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeDevelopment, AuthModeJWT, mode)
	}

	switch c.StoreDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=postgres")
		}
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORE_DRIVER=mongo")
		}
	case "firestore":
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("FIRESTORE_PROJECT_ID is required for STORE_DRIVER=firestore")
		}
	case "memory":
		if c.IsProduction() {
			return fmt.Errorf("STORE_DRIVER=memory is not allowed when ENV=production")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres, mongo, firestore or memory, got %q", c.StoreDriver)
	}

	if c.DoctorCodeMaxAttempts < 1 {
		return fmt.Errorf("DOCTOR_CODE_MAX_ATTEMPTS must be at least 1")
	}
	if c.RecordsPageSize < 1 || c.RecordsMaxPageSize < c.RecordsPageSize {
		return fmt.Errorf("RECORDS_PAGE_SIZE must be at least 1 and not exceed RECORDS_MAX_PAGE_SIZE")
	}
	if c.StoreTimeout < 0 || c.RequestTimeout < 0 {
		return fmt.Errorf("STORE_TIMEOUT and REQUEST_TIMEOUT must not be negative")
	}
	return nil
}

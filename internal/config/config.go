// Package config loads the API server settings from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           string        `env:"PORT,default=8080" validate:"required,numeric"`
	DBHost         string        `env:"DB_HOST,required=true" validate:"required"`
	DBPort         string        `env:"DB_PORT,default=5432" validate:"required,numeric"`
	DBUser         string        `env:"DB_USER,required=true" validate:"required"`
	DBPassword     string        `env:"DB_PASSWORD"`
	DBName         string        `env:"DB_NAME,required=true" validate:"required"`
	DBSSLMode      string        `env:"DB_SSLMODE,default=disable" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	JWTSecret      string        `env:"JWT_SECRET,required=true" validate:"min=16"`
	TokenTTL       time.Duration `env:"TOKEN_TTL,default=72h" validate:"gt=0"`
	LogLevel       string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	AllowedOrigins string        `env:"ALLOWED_ORIGINS,default=*"`
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, cfg.Validate()
}

// Parse decodes cfg from an explicit environment.
func Parse(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(env.EnvSet(vars), &cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DSN is the keyword/value connection string understood by both gorm's
// postgres driver and pgx.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode,
	)
}

func (c Config) Origins() []string {
	return strings.Split(c.AllowedOrigins, ",")
}

func (c Config) Level() slog.Level {
	var l slog.Level
	_ = l.UnmarshalText([]byte(c.LogLevel))
	return l
}

// Logger returns a JSON logger at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.Level()}))
}

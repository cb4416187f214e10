package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func base() map[string]string {
	return map[string]string{
		"DB_HOST":    "localhost",
		"DB_USER":    "warroom",
		"DB_NAME":    "warroom",
		"JWT_SECRET": "0123456789abcdef",
	}
}

func TestParse_Defaults(t *testing.T) {
	req := require.New(t)

	cfg, err := Parse(base())

	req.NoError(err)
	req.Equal("8080", cfg.Port)
	req.Equal("5432", cfg.DBPort)
	req.Equal("disable", cfg.DBSSLMode)
	req.Equal(72*time.Hour, cfg.TokenTTL)
	req.Equal(slog.LevelInfo, cfg.Level())
	req.Equal([]string{"*"}, cfg.Origins())
	req.Equal("host=localhost user=warroom password= dbname=warroom port=5432 sslmode=disable TimeZone=UTC", cfg.DSN())
}

func TestParse_Rejects(t *testing.T) {
	tests := map[string]func(map[string]string){
		"missing host":     func(m map[string]string) { delete(m, "DB_HOST") },
		"short secret":     func(m map[string]string) { m["JWT_SECRET"] = "short" },
		"bad level":        func(m map[string]string) { m["LOG_LEVEL"] = "LOUD" },
		"bad ssl mode":     func(m map[string]string) { m["DB_SSLMODE"] = "maybe" },
		"non numeric port": func(m map[string]string) { m["PORT"] = "http" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			vars := base()
			mutate(vars)
			_, err := Parse(vars)
			require.Error(t, err)
		})
	}
}

func TestParse_Overrides(t *testing.T) {
	req := require.New(t)
	vars := base()
	vars["LOG_LEVEL"] = "DEBUG"
	vars["TOKEN_TTL"] = "15m"
	vars["ALLOWED_ORIGINS"] = "http://a.test,http://b.test"

	cfg, err := Parse(vars)

	req.NoError(err)
	req.Equal(slog.LevelDebug, cfg.Level())
	req.Equal(15*time.Minute, cfg.TokenTTL)
	req.Equal([]string{"http://a.test", "http://b.test"}, cfg.Origins())
}

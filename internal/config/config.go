package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Default allowed origins for development
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

type Config struct {
	Port             string
	DatabaseDriver   string
	DatabaseURL      string
	JWTSecret        string
	JWTTTL           time.Duration
	AllowedOrigins   []string
	CookieDomain     string
	ReminderSchedule string
	DueSoonWindow    time.Duration
	LogLevel         string
	LogFormat        string
	SeedOnStart      bool
	SeedFile         string
}

// Load reads .env files (when present) and the environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "3000")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_URL", "taskboard.db")
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("REMINDER_SCHEDULE", "@every 1m")
	v.SetDefault("DUE_SOON_WINDOW", "30m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("SEED_ON_START", true)

	cfg := &Config{
		Port:             v.GetString("PORT"),
		DatabaseDriver:   strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		JWTTTL:           v.GetDuration("JWT_TTL"),
		CookieDomain:     v.GetString("COOKIE_DOMAIN"),
		ReminderSchedule: v.GetString("REMINDER_SCHEDULE"),
		DueSoonWindow:    v.GetDuration("DUE_SOON_WINDOW"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		LogFormat:        v.GetString("LOG_FORMAT"),
		SeedOnStart:      v.GetBool("SEED_ON_START"),
		SeedFile:         v.GetString("SEED_FILE"),
	}

	cfg.AllowedOrigins = allowedOrigins(v.GetString("CLIENT_URL"), v.GetString("ALLOWED_ORIGINS"))

	return cfg, nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is not set")
	}

	if c.DueSoonWindow <= 0 {
		return fmt.Errorf("DUE_SOON_WINDOW must be positive, got %s", c.DueSoonWindow)
	}

	return nil
}

func allowedOrigins(clientURL, extra string) []string {
	origins := make([]string, len(defaultOrigins))
	copy(origins, defaultOrigins)

	if clientURL != "" {
		origins = append(origins, clientURL)
	}

	if extra != "" {
		for _, origin := range strings.Split(extra, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}

	return origins
}

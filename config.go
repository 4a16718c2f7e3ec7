package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/robalobadob/cardgame/internal/httpserver"
)

// Config is read from the environment (optionally seeded by a .env file).
type Config struct {
	Port           string        `env:"PORT" envDefault:"5175"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	DBPath         string        `env:"DB_PATH" envDefault:"./data/cardgame.db"`
	ClientOrigin   string        `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`
	JWTSecret      string        `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	JWTExpiresDays int           `env:"JWT_EXPIRES_DAYS" envDefault:"14"`
	CookieName     string        `env:"COOKIE_NAME" envDefault:"cardgame_token"`
	Env            string        `env:"NODE_ENV" envDefault:"development"`
	SaveRetries    uint          `env:"SAVE_RETRIES" envDefault:"3"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	SessionSweep   time.Duration `env:"SESSION_SWEEP" envDefault:"1m"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.SaveRetries == 0 {
		return Config{}, fmt.Errorf("SAVE_RETRIES must be at least 1")
	}
	if cfg.SessionTTL <= 0 || cfg.SessionSweep <= 0 {
		return Config{}, fmt.Errorf("SESSION_TTL and SESSION_SWEEP must be positive")
	}
	return cfg, nil
}

// HTTP returns the settings the HTTP layer needs.
func (c Config) HTTP() httpserver.Config {
	return httpserver.Config{
		ClientOrigin:   c.ClientOrigin,
		JWTSecret:      c.JWTSecret,
		JWTExpiresDays: c.JWTExpiresDays,
		CookieName:     c.CookieName,
		Secure:         c.Env == "production",
	}
}

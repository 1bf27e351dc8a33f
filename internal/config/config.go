// Package config loads taskhub.toml and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full server configuration.
type Config struct {
	Server       Server       `toml:"server"`
	Database     Database     `toml:"database"`
	Storage      Storage      `toml:"storage"`
	Auth         Auth         `toml:"auth"`
	Push         Push         `toml:"push"`
	Dependencies Dependencies `toml:"dependencies"`
	Reminder     Reminder     `toml:"reminder"`
	Log          Log          `toml:"log"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `toml:"addr"`
	ReadTimeout     time.Duration `toml:"read-timeout"`
	WriteTimeout    time.Duration `toml:"write-timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown-timeout"`
}

// Database configures the Postgres pool.
type Database struct {
	URL      string `toml:"url"`
	MaxConns int32  `toml:"max-conns"`
}

// Storage selects the persistence backend.
type Storage struct {
	// Backend is "postgres" or "memory".
	Backend string `toml:"backend"`
}

// Auth configures bearer token verification.
type Auth struct {
	JWTSecret string `toml:"jwt-secret"`
	Issuer    string `toml:"issuer"`
}

// Push configures real-time delivery.
type Push struct {
	ThrottleWindow time.Duration `toml:"throttle-window"`
	// ThrottleBackend is "memory" or "redis".
	ThrottleBackend string `toml:"throttle-backend"`
	RedisURL        string `toml:"redis-url"`
	// Buffer is the per-subscriber channel capacity.
	Buffer int `toml:"buffer"`
}

// Dependencies configures the completion gate.
type Dependencies struct {
	// EnforceCompletion refuses a move to completed while any prerequisite
	// is still open.
	EnforceCompletion bool `toml:"enforce-completion"`
}

// Reminder configures the due-date sweep.
type Reminder struct {
	Enabled  bool          `toml:"enabled"`
	Schedule string        `toml:"schedule"`
	Lead     time.Duration `toml:"lead"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    0, // SSE streams stay open
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{MaxConns: 10},
		Storage:  Storage{Backend: "postgres"},
		Auth:     Auth{Issuer: "taskhub"},
		Push: Push{
			ThrottleWindow:  time.Second,
			ThrottleBackend: "memory",
			Buffer:          64,
		},
		Dependencies: Dependencies{EnforceCompletion: true},
		Reminder: Reminder{
			Enabled:  true,
			Schedule: "@every 15m",
			Lead:     24 * time.Hour,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads the TOML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		default:
			if _, err := toml.Decode(string(data), cfg); err != nil {
				return nil, fmt.Errorf("parse config file %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if port := getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	if addr := getenv("TASKHUB_ADDR"); addr != "" {
		c.Server.Addr = addr
	}
	if url := getenv("DATABASE_URL"); url != "" {
		c.Database.URL = url
	}
	if url := getenv("REDIS_URL"); url != "" {
		c.Push.RedisURL = url
	}
	if secret := getenv("TASKHUB_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if backend := getenv("TASKHUB_STORAGE"); backend != "" {
		c.Storage.Backend = backend
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("config: database.url (or DATABASE_URL) is required for postgres storage")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Push.ThrottleBackend {
	case "memory":
	case "redis":
		if c.Push.RedisURL == "" {
			return errors.New("config: push.redis-url (or REDIS_URL) is required for the redis throttle")
		}
	default:
		return fmt.Errorf("config: unknown throttle backend %q", c.Push.ThrottleBackend)
	}
	if c.Push.ThrottleWindow <= 0 {
		return errors.New("config: push.throttle-window must be positive")
	}
	if c.Push.Buffer <= 0 {
		return errors.New("config: push.buffer must be positive")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("config: auth.jwt-secret (or TASKHUB_JWT_SECRET) is required")
	}
	if c.Reminder.Enabled && c.Reminder.Lead <= 0 {
		return errors.New("config: reminder.lead must be positive")
	}
	return nil
}

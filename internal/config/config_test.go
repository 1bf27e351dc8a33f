package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskhub.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":9090"

[storage]
backend = "memory"

[auth]
jwt-secret = "s3cret"

[push]
throttle-window = "2s"
buffer = 16

[dependencies]
enforce-completion = false

[reminder]
schedule = "@every 1m"
lead = "12h"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 2*time.Second, cfg.Push.ThrottleWindow)
	assert.Equal(t, 16, cfg.Push.Buffer)
	assert.False(t, cfg.Dependencies.EnforceCompletion)
	assert.Equal(t, 12*time.Hour, cfg.Reminder.Lead)
	// untouched keys keep their defaults
	assert.Equal(t, "memory", cfg.Push.ThrottleBackend)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TASKHUB_STORAGE", "memory")
	t.Setenv("TASKHUB_JWT_SECRET", "x")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, time.Second, cfg.Push.ThrottleWindow)
	assert.True(t, cfg.Dependencies.EnforceCompletion)
}

func TestEnvOverrides(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"PORT":               "7000",
		"DATABASE_URL":       "postgres://localhost/taskhub",
		"REDIS_URL":          "redis://localhost:6379/0",
		"TASKHUB_JWT_SECRET": "abc",
	}
	cfg.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "postgres://localhost/taskhub", cfg.Database.URL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Push.RedisURL)
	assert.Equal(t, "abc", cfg.Auth.JWTSecret)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := Default()
		c.Storage.Backend = "memory"
		c.Auth.JWTSecret = "x"
		return c
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown storage", func(c *Config) { c.Storage.Backend = "sqlite" }},
		{"postgres without url", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"unknown throttle", func(c *Config) { c.Push.ThrottleBackend = "memcached" }},
		{"redis without url", func(c *Config) { c.Push.ThrottleBackend = "redis" }},
		{"zero window", func(c *Config) { c.Push.ThrottleWindow = 0 }},
		{"zero buffer", func(c *Config) { c.Push.Buffer = 0 }},
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"zero lead", func(c *Config) { c.Reminder.Lead = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	assert.NoError(t, base().Validate())
}

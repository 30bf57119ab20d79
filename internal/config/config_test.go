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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "SECRET_SALT_2025", cfg.License.Salt)
	assert.True(t, cfg.License.VerifyChecksum)
	assert.Equal(t, 12, cfg.License.DefaultValidityMonths)
	assert.Equal(t, StorageDriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, LockDriverLocal, cfg.Lock.Driver)
	assert.Equal(t, DefaultTiers(), cfg.License.Tiers)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "9090"
license:
  salt: "another-salt"
  verifyChecksum: false
  timezone: "UTC"
  tiers:
    - name: HOURLY
      code: HR01
      title: Hourly Plan
      days: 1
storage:
  driver: memory
lock:
  driver: redis
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "another-salt", cfg.License.Salt)
	assert.False(t, cfg.License.VerifyChecksum)
	assert.Equal(t, StorageDriverMemory, cfg.Storage.Driver)
	assert.Equal(t, LockDriverRedis, cfg.Lock.Driver)
	require.Len(t, cfg.License.Tiers, 1)
	assert.Equal(t, "HR01", cfg.License.Tiers[0].Code)

	loc, err := cfg.License.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			License: LicenseConfig{Salt: "s", DefaultValidityMonths: 12, Tiers: DefaultTiers()},
			Storage: StorageConfig{Driver: StorageDriverMemory},
			Lock:    LockConfig{Driver: LockDriverLocal},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{name: "empty salt", mutate: func(c *Config) { c.License.Salt = "" }},
		{name: "unknown storage", mutate: func(c *Config) { c.Storage.Driver = "json" }},
		{name: "unknown lock", mutate: func(c *Config) { c.Lock.Driver = "etcd" }},
		{name: "bad tier code", mutate: func(c *Config) { c.License.Tiers[0].Code = "DAILY" }},
		{name: "bad tier days", mutate: func(c *Config) { c.License.Tiers[0].Days = 0 }},
		{name: "no default validity", mutate: func(c *Config) { c.License.DefaultValidityMonths = 0 }},
		{name: "bad timezone", mutate: func(c *Config) { c.License.Timezone = "Mars/Olympus" }},
		{name: "admin without jwt secret", mutate: func(c *Config) { c.Auth.AdminPasswordHash = "$2a$10$hash" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

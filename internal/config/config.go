package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	License  LicenseConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Lock     LockConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	ShutdownPeriod time.Duration `mapstructure:"shutdownPeriod"`
	AllowOrigins   []string      `mapstructure:"allowOrigins"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
	AutoMigrate     bool          `mapstructure:"autoMigrate"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LicenseConfig drives key generation and activation. Salt must be identical on
// every instance that issues or verifies keys.
type LicenseConfig struct {
	Salt                  string       `mapstructure:"salt"`
	VerifyChecksum        bool         `mapstructure:"verifyChecksum"`
	DefaultValidityMonths int          `mapstructure:"defaultValidityMonths"`
	Timezone              string       `mapstructure:"timezone"`
	Tiers                 []TierConfig `mapstructure:"tiers"`
}

type TierConfig struct {
	Name     string `mapstructure:"name"`
	Code     string `mapstructure:"code"`
	Title    string `mapstructure:"title"`
	Days     int    `mapstructure:"days"`
	Price    int64  `mapstructure:"price"`
	Currency string `mapstructure:"currency"`
}

type AuthConfig struct {
	JWTSecret         string        `mapstructure:"jwtSecret"`
	TokenTTL          time.Duration `mapstructure:"tokenTTL"`
	AdminUsername     string        `mapstructure:"adminUsername"`
	AdminPasswordHash string        `mapstructure:"adminPasswordHash"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

type LockConfig struct {
	Driver        string        `mapstructure:"driver"`
	TTL           time.Duration `mapstructure:"ttl"`
	RetryInterval time.Duration `mapstructure:"retryInterval"`
}

type WorkerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ReconcileSchedule string `mapstructure:"reconcileSchedule"`
	Concurrency       int    `mapstructure:"concurrency"`
}

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"

	LockDriverLocal = "local"
	LockDriverRedis = "redis"
)

// DefaultTiers mirrors the plans sold by the storefront.
func DefaultTiers() []TierConfig {
	return []TierConfig{
		{Name: "DAILY", Code: "DALY", Title: "Daily Plan", Days: 1, Price: 9900, Currency: "INR"},
		{Name: "WEEKLY", Code: "WEEK", Title: "Weekly Plan", Days: 7, Price: 19900, Currency: "INR"},
		{Name: "MONTHLY", Code: "MNTH", Title: "Monthly Plan", Days: 30, Price: 49900, Currency: "INR"},
	}
}

func LoadConfig(configPath string) (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables and config file")
	}

	v := viper.New()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.shutdownPeriod", 15*time.Second)
	v.SetDefault("server.allowOrigins", []string{"http://localhost:3000"})

	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 25)
	v.SetDefault("database.connMaxLifetime", 5*time.Minute)
	v.SetDefault("database.autoMigrate", true)

	v.SetDefault("redis.db", "0")

	v.SetDefault("log.level", "info")

	v.SetDefault("license.salt", "SECRET_SALT_2025")
	v.SetDefault("license.verifyChecksum", true)
	v.SetDefault("license.defaultValidityMonths", 12)
	v.SetDefault("license.timezone", "Local")

	v.SetDefault("auth.tokenTTL", 12*time.Hour)
	v.SetDefault("auth.adminUsername", "admin")

	v.SetDefault("storage.driver", StorageDriverPostgres)

	v.SetDefault("lock.driver", LockDriverLocal)
	v.SetDefault("lock.ttl", 10*time.Second)
	v.SetDefault("lock.retryInterval", 25*time.Millisecond)

	v.SetDefault("worker.enabled", true)
	v.SetDefault("worker.reconcileSchedule", "@every 1h")
	v.SetDefault("worker.concurrency", 2)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AllowEmptyEnv(true)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("Warning: could not read config file: %s. Error: %v\n", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if len(cfg.License.Tiers) == 0 {
		cfg.License.Tiers = DefaultTiers()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.License.Salt == "" {
		return fmt.Errorf("license.salt must not be empty")
	}
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	switch c.Lock.Driver {
	case LockDriverLocal, LockDriverRedis:
	default:
		return fmt.Errorf("unknown lock.driver %q", c.Lock.Driver)
	}
	if c.License.DefaultValidityMonths <= 0 {
		return fmt.Errorf("license.defaultValidityMonths must be positive")
	}
	for _, t := range c.License.Tiers {
		if len(t.Code) != 4 {
			return fmt.Errorf("tier %q: code %q must be 4 characters", t.Name, t.Code)
		}
		if t.Days <= 0 {
			return fmt.Errorf("tier %q: days must be positive", t.Name)
		}
	}
	if _, err := c.License.Location(); err != nil {
		return err
	}
	if c.Auth.AdminPasswordHash != "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtSecret must be set when an admin account is configured")
	}
	return nil
}

// Location resolves the calendar used for embedded expiry dates.
func (l LicenseConfig) Location() (*time.Location, error) {
	if l.Timezone == "" || l.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid license.timezone %q: %w", l.Timezone, err)
	}
	return loc, nil
}

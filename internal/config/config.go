// Package config loads server settings from an optional .env file, a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the configuration settings.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Admin     AdminConfig     `yaml:"admin"`
	Store     StoreConfig     `yaml:"store"`
	NATS      NATSConfig      `yaml:"nats"`
	Log       LogConfig       `yaml:"log"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Games     int             `yaml:"games_per_room"`
}

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Addr    string `yaml:"addr"`
	BaseURL string `yaml:"base_url"`
}

// AdminConfig holds the admin credential and session settings.
type AdminConfig struct {
	User       string        `yaml:"user"`
	Pass       string        `yaml:"pass"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	LoginRate  int           `yaml:"login_rate_per_minute"`
	LoginBurst int           `yaml:"login_burst"`
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// StoreConfig selects the store driver.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// NATSConfig enables the cross-instance relay when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json|text
}

// ReconcileConfig holds the periodic total reconciliation interval; zero disables it.
type ReconcileConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ArchiveConfig holds S3-compatible storage settings; an empty bucket disables archiving.
type ArchiveConfig struct {
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Enabled reports whether archiving is configured.
func (a ArchiveConfig) Enabled() bool { return a.Bucket != "" }

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{Addr: ":8080"},
		Admin: AdminConfig{
			SessionTTL: 12 * time.Hour,
			LoginRate:  5,
			LoginBurst: 5,
		},
		Store:     StoreConfig{Driver: DriverMemory},
		NATS:      NATSConfig{Subject: "xfive.changes"},
		Log:       LogConfig{Level: "info", Format: "text"},
		Reconcile: ReconcileConfig{Interval: time.Minute},
		Archive:   ArchiveConfig{Prefix: "standings/", Region: "auto"},
		Games:     5,
	}
}

// Load reads .env (if present) into the environment, then filename (if present) over the
// defaults, then applies environment overrides.
func Load(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to unmarshal config: %w", err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	if v := strings.TrimSpace(getenv("PORT")); v != "" {
		c.HTTP.Addr = ":" + v
	}
	str("XFIVE_ADDR", &c.HTTP.Addr)
	str("BASE_URL", &c.HTTP.BaseURL)
	str("ADMIN_USER", &c.Admin.User)
	str("ADMIN_PASS", &c.Admin.Pass)
	str("ADMIN_JWT_SECRET", &c.Admin.JWTSecret)
	str("STORE_DRIVER", &c.Store.Driver)
	if v := strings.TrimSpace(getenv("DATABASE_URL")); v != "" {
		c.Store.DSN = v
		if getenv("STORE_DRIVER") == "" {
			c.Store.Driver = DriverPostgres
		}
	}
	str("NATS_URL", &c.NATS.URL)
	str("NATS_SUBJECT", &c.NATS.Subject)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("ARCHIVE_BUCKET", &c.Archive.Bucket)
	str("ARCHIVE_PREFIX", &c.Archive.Prefix)
	str("ARCHIVE_REGION", &c.Archive.Region)
	str("ARCHIVE_ENDPOINT", &c.Archive.Endpoint)
	str("ARCHIVE_ACCESS_KEY_ID", &c.Archive.AccessKeyID)
	str("ARCHIVE_SECRET_ACCESS_KEY", &c.Archive.SecretAccessKey)

	if v := getenv("RECONCILE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid RECONCILE_INTERVAL value: %w", err)
		}
		c.Reconcile.Interval = d
	}
	if v := getenv("ADMIN_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid ADMIN_SESSION_TTL value: %w", err)
		}
		c.Admin.SessionTTL = d
	}
	if v := getenv("GAMES_PER_ROOM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid GAMES_PER_ROOM value: %w", err)
		}
		c.Games = n
	}
	return nil
}

// Validate reports configuration that cannot run.
func (c *Config) Validate() error {
	var errs []error
	if c.Admin.User == "" || c.Admin.Pass == "" {
		errs = append(errs, errors.New("admin user and password are required (ADMIN_USER, ADMIN_PASS)"))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("postgres store requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Games < 1 {
		errs = append(errs, fmt.Errorf("games per room must be positive, got %d", c.Games))
	}
	if c.Admin.SessionTTL <= 0 {
		errs = append(errs, errors.New("admin session TTL must be positive"))
	}
	if c.Reconcile.Interval < 0 {
		errs = append(errs, errors.New("reconcile interval must not be negative"))
	}
	return errors.Join(errs...)
}

// SessionSecret returns the JWT signing key, falling back to one derived from the admin
// password so a bare ADMIN_USER/ADMIN_PASS setup still works.
func (c *Config) SessionSecret() []byte {
	if c.Admin.JWTSecret != "" {
		return []byte(c.Admin.JWTSecret)
	}
	return []byte("xfive:" + c.Admin.User + ":" + c.Admin.Pass)
}

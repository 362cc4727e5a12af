package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const defaultSessionSecret = "change-me-in-production"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	OAuth    OAuthConfig    `yaml:"oauth"`
	Backup   BackupConfig   `yaml:"backup"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Host               string   `yaml:"host"`
	Port               int      `yaml:"port"`
	AppURL             string   `yaml:"app_url"` // public base URL, used for OAuth redirects and cookie security
	TrustedProxies     []string `yaml:"trusted_proxies"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	PublicRateLimit    float64  `yaml:"public_rate_limit"` // requests per second per client on token lookups
	PublicRateBurst    int      `yaml:"public_rate_burst"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`    // file path for sqlite, connection string for postgres
}

type SessionConfig struct {
	Secret        string `yaml:"secret"`
	TTL           string `yaml:"ttl"`   // e.g. "720h"
	Store         string `yaml:"store"` // "database" or "redis"
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type OAuthConfig struct {
	Google ProviderConfig `yaml:"google"`
	GitHub ProviderConfig `yaml:"github"`
}

type ProviderConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

func (p ProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

type BackupConfig struct {
	Backend  string   `yaml:"backend"` // "local" or "s3"
	Path     string   `yaml:"path"`    // root directory for the local backend
	Interval string   `yaml:"interval"`
	Keep     int      `yaml:"keep"` // archives to retain; 0 keeps everything
	S3       S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // "text" or "json"
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SessionTTL parses Session.TTL.
func (c *Config) SessionTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Session.TTL)
	if err != nil {
		return 0, fmt.Errorf("session.ttl: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("session.ttl must be positive")
	}
	return d, nil
}

// BackupInterval parses Backup.Interval. Zero means scheduled backups are off.
func (c *Config) BackupInterval() (time.Duration, error) {
	if strings.TrimSpace(c.Backup.Interval) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Backup.Interval)
	if err != nil {
		return 0, fmt.Errorf("backup.interval: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("backup.interval must not be negative")
	}
	return d, nil
}

func (c *Config) ValidateDatabase() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn must be configured")
	}
	return nil
}

func (c *Config) ValidateBackup() error {
	switch c.Backup.Backend {
	case "local":
		if c.Backup.Path == "" {
			return fmt.Errorf("backup.path must be configured for the local backend")
		}
	case "s3":
		if c.Backup.S3.Endpoint == "" || c.Backup.S3.Bucket == "" {
			return fmt.Errorf("backup.s3.endpoint and backup.s3.bucket must be configured for the s3 backend")
		}
	default:
		return fmt.Errorf("unsupported backup backend: %q", c.Backup.Backend)
	}
	if c.Backup.Keep < 0 {
		return fmt.Errorf("backup.keep must not be negative")
	}
	_, err := c.BackupInterval()
	return err
}

func (c *Config) ValidateServe() error {
	if c == nil {
		return fmt.Errorf("config is required")
	}
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if c.Session.Secret == "" || c.Session.Secret == defaultSessionSecret {
		return fmt.Errorf("SONGLIST_SESSION_SECRET must be set to a non-default value (example: SONGLIST_SESSION_SECRET=dev-session-secret-change-this)")
	}
	if len(c.Session.Secret) < 16 {
		return fmt.Errorf("SONGLIST_SESSION_SECRET must be at least 16 characters (current length: %d)", len(c.Session.Secret))
	}
	if _, err := c.SessionTTL(); err != nil {
		return err
	}
	switch c.Session.Store {
	case "database":
	case "redis":
		if c.Session.RedisAddr == "" {
			return fmt.Errorf("SONGLIST_REDIS_ADDR must be set when session.store is redis")
		}
	default:
		return fmt.Errorf("unsupported session store: %q", c.Session.Store)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %q", c.Log.Format)
	}
	return c.ValidateBackup()
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3000,
			AppURL:          "http://localhost:3000",
			PublicRateLimit: 5,
			PublicRateBurst: 20,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "songlist.db",
		},
		Session: SessionConfig{
			Secret: defaultSessionSecret,
			TTL:    "720h",
			Store:  "database",
		},
		Backup: BackupConfig{
			Backend: "local",
			Path:    "data",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SONGLIST_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SONGLIST_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("SONGLIST_APP_URL"); v != "" {
		cfg.Server.AppURL = strings.TrimRight(strings.TrimSpace(v), "/")
	}
	if v := os.Getenv("SONGLIST_TRUSTED_PROXIES"); v != "" {
		cfg.Server.TrustedProxies = parseCSV(v)
	}
	if v := os.Getenv("SONGLIST_CORS_ALLOW_ORIGINS"); v != "" {
		cfg.Server.CORSAllowedOrigins = parseCSV(v)
	}
	if v := os.Getenv("SONGLIST_PUBLIC_RATE_LIMIT"); v != "" {
		if limit, err := strconv.ParseFloat(v, 64); err == nil && limit >= 0 {
			cfg.Server.PublicRateLimit = limit
		}
	}
	if v := os.Getenv("SONGLIST_PUBLIC_RATE_BURST"); v != "" {
		if burst, err := strconv.Atoi(v); err == nil && burst > 0 {
			cfg.Server.PublicRateBurst = burst
		}
	}
	if v := os.Getenv("SONGLIST_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SONGLIST_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SONGLIST_SESSION_SECRET"); v != "" {
		cfg.Session.Secret = v
	}
	if v := os.Getenv("SONGLIST_SESSION_TTL"); v != "" {
		cfg.Session.TTL = v
	}
	if v := os.Getenv("SONGLIST_SESSION_STORE"); v != "" {
		cfg.Session.Store = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("SONGLIST_REDIS_ADDR"); v != "" {
		cfg.Session.RedisAddr = v
	}
	if v := os.Getenv("SONGLIST_REDIS_PASSWORD"); v != "" {
		cfg.Session.RedisPassword = v
	}
	if v := os.Getenv("SONGLIST_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Session.RedisDB = n
		}
	}
	if v := os.Getenv("SONGLIST_GOOGLE_CLIENT_ID"); v != "" {
		cfg.OAuth.Google.ClientID = v
	}
	if v := os.Getenv("SONGLIST_GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.OAuth.Google.ClientSecret = v
	}
	if v := os.Getenv("SONGLIST_GITHUB_CLIENT_ID"); v != "" {
		cfg.OAuth.GitHub.ClientID = v
	}
	if v := os.Getenv("SONGLIST_GITHUB_CLIENT_SECRET"); v != "" {
		cfg.OAuth.GitHub.ClientSecret = v
	}
	if v := os.Getenv("SONGLIST_BACKUP_BACKEND"); v != "" {
		cfg.Backup.Backend = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("SONGLIST_BACKUP_PATH"); v != "" {
		cfg.Backup.Path = v
	}
	if v := os.Getenv("SONGLIST_BACKUP_INTERVAL"); v != "" {
		cfg.Backup.Interval = v
	}
	if v := os.Getenv("SONGLIST_BACKUP_KEEP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Backup.Keep = n
		}
	}
	if v := os.Getenv("SONGLIST_BACKUP_S3_ENDPOINT"); v != "" {
		cfg.Backup.S3.Endpoint = v
	}
	if v := os.Getenv("SONGLIST_BACKUP_S3_BUCKET"); v != "" {
		cfg.Backup.S3.Bucket = v
	}
	if v := os.Getenv("SONGLIST_BACKUP_S3_ACCESS_KEY"); v != "" {
		cfg.Backup.S3.AccessKey = v
	}
	if v := os.Getenv("SONGLIST_BACKUP_S3_SECRET_KEY"); v != "" {
		cfg.Backup.S3.SecretKey = v
	}
	if v := os.Getenv("SONGLIST_BACKUP_S3_REGION"); v != "" {
		cfg.Backup.S3.Region = v
	}
	if v := os.Getenv("SONGLIST_BACKUP_S3_USE_SSL"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Backup.S3.UseSSL = enabled
		}
	}
	if v := os.Getenv("SONGLIST_LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("SONGLIST_LOG_FORMAT"); v != "" {
		cfg.Log.Format = strings.ToLower(strings.TrimSpace(v))
	}
}

func parseCSV(v string) []string {
	raw := strings.TrimSpace(v)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

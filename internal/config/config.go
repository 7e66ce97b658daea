package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultJWTSecret is only acceptable with JOBCARD_ENV=development.
const DefaultJWTSecret = "supersecretkey"

type Config struct {
	Addr          string        `yaml:"addr"`
	JWTSecret     string        `yaml:"jwt_secret"`
	APITimeout    time.Duration `yaml:"timeout"`
	DatabasePath  string        `yaml:"database_path"`
	DeviceIDPath  string        `yaml:"device_id_path"`
	TokenDuration time.Duration `yaml:"token_duration"`
	LogLevel      string        `yaml:"log_level"`
	Remote        RemoteConfig  `yaml:"remote"`
	Sync          SyncConfig    `yaml:"sync"`
}

// RemoteConfig locates the central PostgreSQL database.
type RemoteConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	User           string        `yaml:"user"`
	Password       string        `yaml:"password"`
	Name           string        `yaml:"name"`
	SSLMode        string        `yaml:"sslmode"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	MaxOpenConns   int           `yaml:"max_open_conns"`
	MaxIdleConns   int           `yaml:"max_idle_conns"`
}

type SyncConfig struct {
	DownloadOnLogin  bool `yaml:"download_on_login"`
	Workers          int  `yaml:"workers"`
	MaxAttempts      int  `yaml:"max_attempts"`
	PasswordHashCost int  `yaml:"password_hash_cost"`
	EventBuffer      int  `yaml:"event_buffer"`
}

// DSN renders a postgres:// URL understood by pgx. Credentials and the
// database name are escaped, and an empty password is left out.
func (r RemoteConfig) DSN() string {
	timeout := int(r.ConnectTimeout / time.Second)
	if timeout <= 0 {
		timeout = 5
	}
	sslmode := r.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	q := url.Values{}
	q.Set("sslmode", sslmode)
	q.Set("connect_timeout", strconv.Itoa(timeout))

	u := url.URL{
		Scheme:   "postgres",
		Host:     r.Address(),
		Path:     "/" + r.Name,
		RawQuery: q.Encode(),
	}
	switch {
	case r.Password != "":
		u.User = url.UserPassword(r.User, r.Password)
	case r.User != "":
		u.User = url.User(r.User)
	}
	return u.String()
}

// Address is the host:port the connectivity probe dials.
func (r RemoteConfig) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		Addr:          getEnv("JOBCARD_ADDR", "127.0.0.1:8550"),
		JWTSecret:     getEnv("JOBCARD_JWT_SECRET", DefaultJWTSecret),
		APITimeout:    15 * time.Second,
		DatabasePath:  getEnv("JOBCARD_DATABASE_PATH", "job_cards.db"),
		DeviceIDPath:  getEnv("JOBCARD_DEVICE_ID_PATH", "device_id"),
		TokenDuration: 8 * time.Hour,
		LogLevel:      getEnv("JOBCARD_LOG_LEVEL", "info"),
		Remote: RemoteConfig{
			Host:           getEnv("JOBCARD_REMOTE_HOST", "127.0.0.1"),
			Port:           getEnvInt("JOBCARD_REMOTE_PORT", 5432),
			User:           getEnv("JOBCARD_REMOTE_USER", "jobcard"),
			Password:       getEnv("JOBCARD_REMOTE_PASSWORD", ""),
			Name:           getEnv("JOBCARD_REMOTE_DB", "asm_sys"),
			SSLMode:        getEnv("JOBCARD_REMOTE_SSLMODE", "disable"),
			ConnectTimeout: 5 * time.Second,
			ProbeTimeout:   2 * time.Second,
		},
		Sync: SyncConfig{
			DownloadOnLogin: true,
			Workers:         1,
			MaxAttempts:     1,
		},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate fills zero values with defaults and rejects unusable settings.
func (c *Config) Validate() error {
	env := strings.ToLower(os.Getenv("JOBCARD_ENV"))
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if c.JWTSecret == DefaultJWTSecret && env != "development" {
		return errors.New("insecure jwt_secret: set JOBCARD_JWT_SECRET or JOBCARD_ENV=development")
	}
	if c.DatabasePath == "" {
		return errors.New("database_path is required")
	}
	if c.Remote.Host == "" {
		return errors.New("remote.host is required")
	}
	if c.Remote.Port <= 0 || c.Remote.Port > 65535 {
		return fmt.Errorf("remote.port %d out of range", c.Remote.Port)
	}

	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.TokenDuration <= 0 {
		c.TokenDuration = 8 * time.Hour
	}
	if c.Remote.ProbeTimeout <= 0 {
		c.Remote.ProbeTimeout = 2 * time.Second
	}
	if c.Remote.ConnectTimeout <= 0 {
		c.Remote.ConnectTimeout = 5 * time.Second
	}
	if c.Sync.Workers <= 0 {
		c.Sync.Workers = 1
	}
	if c.Sync.MaxAttempts <= 0 {
		c.Sync.MaxAttempts = 1
	}
	if c.Sync.EventBuffer <= 0 {
		c.Sync.EventBuffer = 100
	}

	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}

	return def
}

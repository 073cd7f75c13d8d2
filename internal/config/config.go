package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Storage backends for the session store.
const (
	StoreBolt   = "bolt"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds all environment-based configuration for tmc-client.
type Config struct {
	// Backend API base URL. Relative request paths are appended to it.
	BaseURL string `env:"TMC_BASE_URL" envDefault:"https://tmc.u9d.net/tmc"`

	// Header the access token is sent in.
	TokenHeader string `env:"TMC_TOKEN_HEADER" envDefault:"x-token"`

	// Per-call network timeout, and the budget for one refresh cycle.
	RequestTimeout time.Duration `env:"TMC_REQUEST_TIMEOUT" envDefault:"30s"`
	RefreshTimeout time.Duration `env:"TMC_REFRESH_TIMEOUT" envDefault:"30s"`

	// Login redirect behavior once a session is lost.
	RedirectDelay time.Duration `env:"TMC_REDIRECT_DELAY" envDefault:"1500ms"`
	ToastDuration time.Duration `env:"TMC_TOAST_DURATION" envDefault:"2s"`
	LoginRoute    string        `env:"TMC_LOGIN_ROUTE" envDefault:"/pages/login/login"`

	// Session storage. StatePath defaults to ~/.tmc-client/state.db.
	Store     string `env:"TMC_STORE" envDefault:"bolt"`
	StatePath string `env:"TMC_STATE_PATH"`

	// Redis settings (required when TMC_STORE=redis)
	RedisAddr     string `env:"TMC_REDIS_ADDR"`
	RedisPassword string `env:"TMC_REDIS_PASSWORD"`
	RedisDB       int    `env:"TMC_REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"TMC_REDIS_PREFIX" envDefault:"tmc:"`

	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	// Optional rotating log file. Logs go to stderr when empty.
	LogFile       string `env:"TMC_LOG_FILE"`
	LogMaxSizeMB  int    `env:"TMC_LOG_MAX_SIZE_MB" envDefault:"10"`
	LogMaxBackups int    `env:"TMC_LOG_MAX_BACKUPS" envDefault:"3"`
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing credentials to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// bbolt takes a lock on the file, so two relative spellings of the
	// same path must resolve to one absolute path.
	if cfg.StatePath != "" {
		absPath, err := filepath.Abs(cfg.StatePath)
		if err != nil {
			return nil, fmt.Errorf("resolving state path to absolute path: %w", err)
		}

		cfg.StatePath = absPath
	}

	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("TMC_BASE_URL must be an absolute http(s) URL, got %q", c.BaseURL)
	}

	if strings.TrimSpace(c.TokenHeader) == "" {
		return fmt.Errorf("TMC_TOKEN_HEADER must not be empty")
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("TMC_REQUEST_TIMEOUT must be positive")
	}

	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("TMC_REFRESH_TIMEOUT must be positive")
	}

	if c.RedirectDelay <= 0 {
		return fmt.Errorf("TMC_REDIRECT_DELAY must be positive")
	}

	if !strings.HasPrefix(c.LoginRoute, "/") {
		return fmt.Errorf("TMC_LOGIN_ROUTE must start with '/', got %q", c.LoginRoute)
	}

	switch c.Store {
	case StoreBolt, StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("TMC_REDIS_ADDR is required when TMC_STORE is redis")
		}

		if c.RedisDB < 0 {
			return fmt.Errorf("TMC_REDIS_DB must not be negative")
		}
	default:
		return fmt.Errorf("TMC_STORE must be one of bolt, memory, redis; got %q", c.Store)
	}

	if c.LogFile != "" {
		if c.LogMaxSizeMB <= 0 {
			return fmt.Errorf("TMC_LOG_MAX_SIZE_MB must be positive")
		}

		if c.LogMaxBackups < 0 {
			return fmt.Errorf("TMC_LOG_MAX_BACKUPS must not be negative")
		}
	}

	return nil
}

// IsProduction returns true when the environment is set to production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "TASTE_AI_CONFIG"
	apiURLEnv        = "TASTE_AI_API_URL"
	apiTimeoutEnv    = "TASTE_AI_TIMEOUT"
	storageDriverEnv = "TASTE_AI_STORAGE"
	storageDSNEnv    = "TASTE_AI_STORAGE_DSN"
	tokenKeyEnv      = "TASTE_AI_TOKEN_KEY"
	logLevelEnv      = "TASTE_AI_LOG_LEVEL"

	defaultBaseURL    = "http://localhost:8001"
	defaultTimeout    = 30 * time.Second
	defaultStorageKey = "taste_ai_token"
	defaultLoginPath  = "/login"
	defaultDriver     = DriverFile
	defaultStateDir   = ".taste-ai"
	defaultMaxBytes   = 10 << 20
	defaultCategory   = "fashion"
	defaultLogLevel   = "info"
)

// Storage drivers selectable through storage.driver.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds high-level settings required across the client.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Storage StorageConfig `yaml:"storage"`
	Upload  UploadConfig  `yaml:"upload"`
	Trends  TrendsConfig  `yaml:"trends"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig describes how to reach the scoring service.
type APIConfig struct {
	BaseURL   string        `yaml:"baseUrl"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"userAgent"`
}

// SessionConfig names where the token lives and where re-login happens.
type SessionConfig struct {
	StorageKey string `yaml:"storageKey"`
	LoginPath  string `yaml:"loginPath"`
}

// StorageConfig selects the durable token backend.
type StorageConfig struct {
	Driver        string `yaml:"driver"`
	Dir           string `yaml:"dir"`
	DSN           string `yaml:"dsn"`
	EncryptionKey string `yaml:"encryptionKey"`
}

// UploadConfig mirrors the upload widget rules.
type UploadConfig struct {
	MaxBytes     int64    `yaml:"maxBytes"`
	AllowedTypes []string `yaml:"allowedTypes"`
}

type TrendsConfig struct {
	DefaultCategory string `yaml:"defaultCategory"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads .env and the YAML configuration (if present) and applies environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: cannot load .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if fileCfg, err := readFile(path); err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = mergeConfig(cfg, fileCfg)
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	return cfg
}

func readFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, errors.New("cannot parse " + path + ": " + err.Error())
	}
	return fileCfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(apiURLEnv); v != "" {
		c.API.BaseURL = v
	}

	if v := os.Getenv(apiTimeoutEnv); v != "" {
		if d, err := parseDuration(v); err != nil {
			log.Printf("config: invalid %s=%q, keeping %s", apiTimeoutEnv, v, c.API.Timeout)
		} else {
			c.API.Timeout = d
		}
	}

	if v := os.Getenv(storageDriverEnv); v != "" {
		c.Storage.Driver = v
	}

	if v := os.Getenv(storageDSNEnv); v != "" {
		c.Storage.DSN = v
	}

	if v := os.Getenv(tokenKeyEnv); v != "" {
		c.Storage.EncryptionKey = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

// parseDuration accepts Go durations and bare seconds.
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0, errors.New("timeout must be positive")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("timeout must be positive")
	}
	return d, nil
}

func (c *Config) normalize() {
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite, DriverPostgres, DriverMemory:
	default:
		log.Printf("config: unknown storage driver %q, reverting to %s", c.Storage.Driver, defaultDriver)
		c.Storage.Driver = defaultDriver
	}

	if strings.HasPrefix(c.Storage.Dir, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			c.Storage.Dir = filepath.Join(home, c.Storage.Dir[2:])
		}
	}

	if c.Storage.Driver == DriverSQLite && c.Storage.DSN == "" {
		c.Storage.DSN = filepath.Join(c.Storage.Dir, "state.db")
	}
}

func mergeConfig(base, override Config) Config {
	if override.API.BaseURL != "" {
		base.API.BaseURL = override.API.BaseURL
	}
	if override.API.Timeout > 0 {
		base.API.Timeout = override.API.Timeout
	}
	if override.API.UserAgent != "" {
		base.API.UserAgent = override.API.UserAgent
	}

	if override.Session.StorageKey != "" {
		base.Session.StorageKey = override.Session.StorageKey
	}
	if override.Session.LoginPath != "" {
		base.Session.LoginPath = override.Session.LoginPath
	}

	if override.Storage.Driver != "" {
		base.Storage.Driver = override.Storage.Driver
	}
	if override.Storage.Dir != "" {
		base.Storage.Dir = override.Storage.Dir
	}
	if override.Storage.DSN != "" {
		base.Storage.DSN = override.Storage.DSN
	}
	if override.Storage.EncryptionKey != "" {
		base.Storage.EncryptionKey = override.Storage.EncryptionKey
	}

	if override.Upload.MaxBytes > 0 {
		base.Upload.MaxBytes = override.Upload.MaxBytes
	}
	if len(override.Upload.AllowedTypes) > 0 {
		base.Upload.AllowedTypes = override.Upload.AllowedTypes
	}

	if override.Trends.DefaultCategory != "" {
		base.Trends.DefaultCategory = override.Trends.DefaultCategory
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	return Config{
		API:     APIConfig{BaseURL: defaultBaseURL, Timeout: defaultTimeout},
		Session: SessionConfig{StorageKey: defaultStorageKey, LoginPath: defaultLoginPath},
		Storage: StorageConfig{Driver: defaultDriver, Dir: "~/" + defaultStateDir},
		Upload: UploadConfig{
			MaxBytes:     defaultMaxBytes,
			AllowedTypes: []string{"image/jpeg", "image/jpg", "image/png", "image/webp"},
		},
		Trends:  TrendsConfig{DefaultCategory: defaultCategory},
		Logging: LoggingConfig{Level: defaultLogLevel},
	}
}

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Storage backend names accepted by store.backend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendS3     = "s3"
	BackendMemory = "memory"
)

// Config holds all giftswap configuration
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Game    GameConfig    `mapstructure:"game"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StoreConfig selects and configures the state backend
type StoreConfig struct {
	// Backend is one of "file", "sqlite", "s3" or "memory" (default: "file")
	Backend string       `mapstructure:"backend"`
	File    FileConfig   `mapstructure:"file"`
	SQLite  SQLiteConfig `mapstructure:"sqlite"`
	S3      S3Config     `mapstructure:"s3"`
}

// FileConfig configures the exclusive-lock file backend
type FileConfig struct {
	// Path is the JSON state document. A sibling "<path>.lock" file holds the lock.
	Path string `mapstructure:"path"`
}

// SQLiteConfig configures the SQLite object bucket
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
	Key  string `mapstructure:"key"`
}

// S3Config configures the S3 object bucket
type S3Config struct {
	Bucket string `mapstructure:"bucket"`
	Key    string `mapstructure:"key"`
	Region string `mapstructure:"region"`
	// Endpoint overrides the service endpoint for S3-compatible stores.
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	// ConditionalWrites enables If-Match / If-None-Match puts. Disable it for
	// stores that reject conditional requests; writes then become
	// last-writer-wins.
	ConditionalWrites bool `mapstructure:"conditional_writes"`
}

// RetryConfig controls the retry budget around every store operation
type RetryConfig struct {
	// MaxRetries is the total number of attempts (default: 5)
	MaxRetries int `mapstructure:"max_retries"`
	// BaseDelay is the wait before the second attempt; it doubles each time (default: 100ms)
	BaseDelay time.Duration `mapstructure:"base_delay"`
	// RetryAfter is the delay suggested to clients once retries are exhausted (default: 1s)
	RetryAfter time.Duration `mapstructure:"retry_after"`
}

// GameConfig holds gameplay knobs
type GameConfig struct {
	// Seed fixes the random source for slot and gift id assignment. 0 seeds from crypto/rand.
	Seed uint64 `mapstructure:"seed"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	// Level is "DEBUG", "INFO", "WARN" or "ERROR" (default: "INFO")
	Level string `mapstructure:"level"`
	// File is the log destination (default: giftswap.log in the data dir). Empty logs to stderr.
	File string `mapstructure:"file"`
	// MaxSizeMB rotates the log file past this size (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of rotated files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
	// Compress gzips rotated files
	Compress bool `mapstructure:"compress"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	data := DataDir()
	return &Config{
		Store: StoreConfig{
			Backend: BackendFile,
			File: FileConfig{
				Path: filepath.Join(data, "state.json"),
			},
			SQLite: SQLiteConfig{
				Path: filepath.Join(data, "state.db"),
				Key:  "state",
			},
			S3: S3Config{
				Key:               "giftswap/state.json",
				ConditionalWrites: true,
			},
		},
		Retry: RetryConfig{
			MaxRetries: 5,
			BaseDelay:  100 * time.Millisecond,
			RetryAfter: time.Second,
		},
		Logging: LoggingConfig{
			Level:      "INFO",
			File:       filepath.Join(data, "giftswap.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with the global viper instance
func SetDefaults() {
	applyDefaults(viper.GetViper())
}

func applyDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("store.backend", defaults.Store.Backend)
	v.SetDefault("store.file.path", defaults.Store.File.Path)
	v.SetDefault("store.sqlite.path", defaults.Store.SQLite.Path)
	v.SetDefault("store.sqlite.key", defaults.Store.SQLite.Key)
	v.SetDefault("store.s3.bucket", defaults.Store.S3.Bucket)
	v.SetDefault("store.s3.key", defaults.Store.S3.Key)
	v.SetDefault("store.s3.region", defaults.Store.S3.Region)
	v.SetDefault("store.s3.endpoint", defaults.Store.S3.Endpoint)
	v.SetDefault("store.s3.use_path_style", defaults.Store.S3.UsePathStyle)
	v.SetDefault("store.s3.conditional_writes", defaults.Store.S3.ConditionalWrites)

	// Durations are registered as strings so written config files stay readable
	v.SetDefault("retry.max_retries", defaults.Retry.MaxRetries)
	v.SetDefault("retry.base_delay", defaults.Retry.BaseDelay.String())
	v.SetDefault("retry.retry_after", defaults.Retry.RetryAfter.String())

	v.SetDefault("game.seed", defaults.Game.Seed)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	v.SetDefault("logging.compress", defaults.Logging.Compress)
}

// WriteDefaults writes a config file containing every default to path.
func WriteDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	v := viper.New()
	applyDefaults(v)
	return v.WriteConfigAs(path)
}

// decodeHook turns "100ms" style strings into durations and expands a
// leading "~/" in string values.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		expandHomeHook(),
	)
}

func expandHomeHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to.Kind() != reflect.String {
			return data, nil
		}
		s := data.(string)
		if !strings.HasPrefix(s, "~/") {
			return data, nil
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return data, nil
		}
		return filepath.Join(home, s[2:]), nil
	}
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return load(viper.GetViper())
}

func load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if the
// loaded configuration is invalid
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "giftswap")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".giftswap"
	}
	return filepath.Join(home, ".config", "giftswap")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the directory holding local state files
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "giftswap")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".giftswap"
	}
	return filepath.Join(home, ".local", "share", "giftswap")
}

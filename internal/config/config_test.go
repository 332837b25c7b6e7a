package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Store.Backend != BackendFile {
		t.Errorf("Store.Backend = %q, want %q", cfg.Store.Backend, BackendFile)
	}
	if filepath.Base(cfg.Store.File.Path) != "state.json" {
		t.Errorf("Store.File.Path = %q, want a state.json path", cfg.Store.File.Path)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Errorf("Retry.MaxRetries = %d, want 5", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay != 100*time.Millisecond {
		t.Errorf("Retry.BaseDelay = %v, want 100ms", cfg.Retry.BaseDelay)
	}
	if cfg.Retry.RetryAfter != time.Second {
		t.Errorf("Retry.RetryAfter = %v, want 1s", cfg.Retry.RetryAfter)
	}
	if !cfg.Store.S3.ConditionalWrites {
		t.Error("Store.S3.ConditionalWrites should be true by default")
	}
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default().Validate() = %v, want no errors", errs)
	}
}

func TestConfigDir(t *testing.T) {
	t.Run("honours XDG_CONFIG_HOME", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
		if got, want := ConfigDir(), "/tmp/xdg/giftswap"; got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
		if got, want := ConfigFile(), "/tmp/xdg/giftswap/config.yaml"; got != want {
			t.Errorf("ConfigFile() = %q, want %q", got, want)
		}
	})

	t.Run("falls back to home", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", "")
		home, err := os.UserHomeDir()
		if err != nil {
			t.Skip("no home directory")
		}
		if got, want := ConfigDir(), filepath.Join(home, ".config", "giftswap"); got != want {
			t.Errorf("ConfigDir() = %q, want %q", got, want)
		}
	})
}

func TestDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/tmp/data")
	if got, want := DataDir(), "/tmp/data/giftswap"; got != want {
		t.Errorf("DataDir() = %q, want %q", got, want)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
store:
  backend: sqlite
  sqlite:
    path: ~/games/party.db
retry:
  max_retries: 3
  base_delay: 250ms
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	v := viper.New()
	applyDefaults(v)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}

	cfg, err := load(v)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}

	if cfg.Store.Backend != BackendSQLite {
		t.Errorf("Store.Backend = %q, want sqlite", cfg.Store.Backend)
	}
	if strings.HasPrefix(cfg.Store.SQLite.Path, "~") {
		t.Errorf("Store.SQLite.Path = %q, want home expanded", cfg.Store.SQLite.Path)
	}
	if !strings.HasSuffix(cfg.Store.SQLite.Path, filepath.Join("games", "party.db")) {
		t.Errorf("Store.SQLite.Path = %q, want suffix games/party.db", cfg.Store.SQLite.Path)
	}
	if cfg.Store.SQLite.Key != "state" {
		t.Errorf("Store.SQLite.Key = %q, want default state", cfg.Store.SQLite.Key)
	}
	if cfg.Retry.MaxRetries != 3 {
		t.Errorf("Retry.MaxRetries = %d, want 3", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.BaseDelay != 250*time.Millisecond {
		t.Errorf("Retry.BaseDelay = %v, want 250ms", cfg.Retry.BaseDelay)
	}
	if cfg.Retry.RetryAfter != time.Second {
		t.Errorf("Retry.RetryAfter = %v, want 1s", cfg.Retry.RetryAfter)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GIFTSWAP_RETRY_MAX_RETRIES", "7")
	t.Setenv("GIFTSWAP_GAME_SEED", "42")

	v := viper.New()
	applyDefaults(v)
	v.SetEnvPrefix("GIFTSWAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := load(v)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Retry.MaxRetries != 7 {
		t.Errorf("Retry.MaxRetries = %d, want 7", cfg.Retry.MaxRetries)
	}
	if cfg.Game.Seed != 42 {
		t.Errorf("Game.Seed = %d, want 42", cfg.Game.Seed)
	}
}

func TestLoad_InvalidReturnsValidationErrors(t *testing.T) {
	v := viper.New()
	applyDefaults(v)
	v.Set("store.backend", "postgres")

	_, err := load(v)
	if err == nil {
		t.Fatal("load() error = nil, want validation error")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("load() error type = %T, want ValidationErrors", err)
	}
	if verrs[0].Field != "store.backend" {
		t.Errorf("Field = %q, want store.backend", verrs[0].Field)
	}
}

func TestWriteDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := WriteDefaults(path); err != nil {
		t.Fatalf("WriteDefaults() error = %v", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}
	cfg, err := load(v)
	if err != nil {
		t.Fatalf("load() error = %v", err)
	}
	if cfg.Retry.BaseDelay != 100*time.Millisecond {
		t.Errorf("Retry.BaseDelay = %v, want 100ms", cfg.Retry.BaseDelay)
	}
	if cfg.Store.Backend != BackendFile {
		t.Errorf("Store.Backend = %q, want file", cfg.Store.Backend)
	}
}

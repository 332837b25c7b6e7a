package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/giftswap/internal/config"
	"github.com/Iron-Ham/giftswap/internal/errors"
	"github.com/Iron-Ham/giftswap/internal/game"
	"github.com/Iron-Ham/giftswap/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "giftswap",
	Short: "Run a white-elephant gift swap",
	Long: `Giftswap keeps the state of a gift swap party: who is playing, which
gifts are on the table, who owns them and whose turn it is.

State lives in a single document shared by every invocation. Concurrent
invocations are serialized by the configured backend.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, which is passed to every
// store operation.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "config file (default is $HOME/.config/giftswap/config.yaml)")
	flags.String("backend", "", "state backend: file, sqlite, s3 or memory")
	flags.String("state", "", "state document for the file backend")
	flags.String("log-level", "", "log level: DEBUG, INFO, WARN or ERROR")
	bindGlobalFlags()
}

// bindGlobalFlags points the configuration keys at their persistent flags.
func bindGlobalFlags() {
	flags := rootCmd.PersistentFlags()
	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("store.backend", flags.Lookup("backend"))
	_ = viper.BindPFlag("store.file.path", flags.Lookup("state"))
	_ = viper.BindPFlag("logging.level", flags.Lookup("log-level"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("GIFTSWAP")
	// e.g. GIFTSWAP_STORE_BACKEND for store.backend
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// openGame loads the configuration and opens the game over the configured
// backend. The returned func releases the backend and the log file.
func openGame(cmd *cobra.Command) (*game.Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	logger = logger.WithOperation(cmd.CommandPath())

	svc, err := game.Open(cmd.Context(), cfg, logger)
	if err != nil {
		_ = logger.Close()
		return nil, nil, err
	}
	return svc, func() {
		_ = svc.Close()
		_ = logger.Close()
	}, nil
}

func newLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	if cfg.File == "" {
		return logging.NewLogger("", cfg.Level)
	}
	return logging.NewRotatingLogger(cfg.File, cfg.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	})
}

// Exit codes reported for each error class.
const (
	ExitOK          = 0
	ExitInternal    = 1
	ExitValidation  = 2
	ExitNotFound    = 3
	ExitCapacity    = 4
	ExitConflict    = 5
	ExitUnavailable = 75 // EX_TEMPFAIL: try again later
)

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	switch errors.Classify(err) {
	case errors.ClassNone:
		return ExitOK
	case errors.ClassValidation:
		return ExitValidation
	case errors.ClassNotFound:
		return ExitNotFound
	case errors.ClassCapacity:
		return ExitCapacity
	case errors.ClassConflict:
		return ExitConflict
	case errors.ClassUnavailable:
		return ExitUnavailable
	default:
		return ExitInternal
	}
}

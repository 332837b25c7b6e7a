package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/giftswap/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify giftswap configuration",
	Long: `View or modify giftswap configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  giftswap config set store.backend sqlite
  giftswap config set retry.base_delay 250ms
  giftswap config set store.s3.conditional_writes false

Valid keys:
  store.backend                 - file, sqlite, s3 or memory
  store.file.path               - State document for the file backend
  store.sqlite.path             - Database file for the sqlite backend
  store.sqlite.key              - Object key inside the database
  store.s3.bucket               - S3 bucket name
  store.s3.key                  - Object key inside the bucket
  store.s3.region               - AWS region
  store.s3.endpoint             - Endpoint for S3-compatible stores
  store.s3.use_path_style       - Path-style addressing (true/false)
  store.s3.conditional_writes   - If-Match/If-None-Match puts (true/false)
  retry.max_retries             - Attempts per operation
  retry.base_delay              - First backoff delay, doubled per attempt
  retry.retry_after             - Delay suggested once retries run out
  game.seed                     - Fixed random seed, 0 for a random one
  logging.level                 - DEBUG, INFO, WARN or ERROR
  logging.file                  - Log file, empty for stderr
  logging.max_size_mb           - Rotate the log past this size
  logging.max_backups           - Rotated log files to keep
  logging.compress              - Gzip rotated logs (true/false)`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/giftswap/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	configSetCmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return configKeys(), cobra.ShellCompDirectiveNoFileComp
	}

	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

// Value kinds accepted by config set.
const (
	kindString   = "string"
	kindBool     = "bool"
	kindInt      = "int"
	kindUint     = "uint"
	kindDuration = "duration"
)

var validKeys = map[string]string{
	"store.backend":               kindString,
	"store.file.path":             kindString,
	"store.sqlite.path":           kindString,
	"store.sqlite.key":            kindString,
	"store.s3.bucket":             kindString,
	"store.s3.key":                kindString,
	"store.s3.region":             kindString,
	"store.s3.endpoint":           kindString,
	"store.s3.use_path_style":     kindBool,
	"store.s3.conditional_writes": kindBool,
	"retry.max_retries":           kindInt,
	"retry.base_delay":            kindDuration,
	"retry.retry_after":           kindDuration,
	"game.seed":                   kindUint,
	"logging.level":               kindString,
	"logging.file":                kindString,
	"logging.max_size_mb":         kindInt,
	"logging.max_backups":         kindInt,
	"logging.compress":            kindBool,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintln(out, "Config file: (none - using defaults)")
	}
	fmt.Fprintln(out)

	settings := viper.AllSettings()
	delete(settings, "config")
	return writeYAML(out, settings)
}

// parseValue converts a command-line value to the kind registered for key.
func parseValue(key, value string) (any, error) {
	kind, ok := validKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nRun 'giftswap config set --help' to see valid keys", key)
	}

	switch kind {
	case kindBool:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return b, nil
	case kindInt:
		n, err := cast.ToIntE(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		return n, nil
	case kindUint:
		n, err := cast.ToUint64E(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected non-negative integer", key)
		}
		return n, nil
	case kindDuration:
		d, err := cast.ToDurationE(value)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid value for %s: expected a duration such as 250ms", key)
		}
		// Stored as a string so the file stays readable
		return d.String(), nil
	default:
		if key == "logging.level" {
			value = strings.ToUpper(value)
		}
		return value, nil
	}
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	typedValue, err := parseValue(key, args[1])
	if err != nil {
		return err
	}

	// Validate the whole configuration before touching the file
	previous := viper.Get(key)
	viper.Set(key, typedValue)
	if _, err := config.Load(); err != nil {
		viper.Set(key, previous)
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Set %s = %v\n", key, typedValue)
	fmt.Fprintf(out, "Config saved to %s\n", configFile)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'giftswap config set' to modify values", configFile)
	}

	if err := config.WriteDefaults(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Fprintln(cmd.OutOrStdout(), config.ConfigFile())
	return nil
}

// configKeys returns the keys accepted by config set, sorted.
func configKeys() []string {
	keys := make([]string, 0, len(validKeys))
	for k := range validKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

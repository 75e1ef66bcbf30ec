package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alnah/go-medscribe/internal/config"
)

// ConfigCmd creates the config command with subcommands.
// The env parameter provides injectable dependencies for testing.
func ConfigCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
		Long: `Manage persistent configuration settings.

Configuration is stored in ~/.config/medscribe/config.yaml.
Keys use dotted paths (breaker.threshold, retry.primary.max_retries).
Settings can also be overridden via environment variables:
  MEDSCRIBE_LOG_LEVEL, MEDSCRIBE_OUTPUT_DIR, OPENAI_API_KEY (never stored)`,
		Example: `  medscribe config set breaker.threshold 3
  medscribe config set retry.primary.base_delay 2s
  medscribe config get openai.model
  medscribe config list`,
	}

	cmd.AddCommand(configSetCmd(env))
	cmd.AddCommand(configGetCmd(env))
	cmd.AddCommand(configListCmd(env))

	return cmd
}

// configSetCmd creates the "config set" subcommand.
func configSetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value.

The value is checked against the whole configuration before the file is
written, so an invalid setting never reaches disk.`,
		Example: `  medscribe config set openai.fallback_model gpt-4o-mini
  medscribe config set breaker.open_timeout 90s`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(env, args[0], args[1])
		},
	}
}

// configGetCmd creates the "config get" subcommand.
func configGetCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:     "get <key>",
		Short:   "Get a configuration value",
		Example: `  medscribe config get breaker.threshold`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(env, args[0])
		},
	}
}

// configListCmd creates the "config list" subcommand.
func configListCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long: `List all configuration values.

Shows the file over the built-in defaults, then environment overrides.`,
		Example: `  medscribe config list`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigList(env)
		},
	}
}

// runConfigSet handles the "config set" command.
func runConfigSet(env *Env, key, value string) error {
	if key == "output_dir" {
		value = config.ExpandPath(value)
	}
	if err := config.Set(key, value); err != nil {
		return err
	}
	fmt.Fprintf(env.Stderr, "Set %s = %s\n", key, value)
	return nil
}

// runConfigGet handles the "config get" command.
func runConfigGet(env *Env, key string) error {
	value, err := config.Get(key)
	if err != nil {
		return err
	}
	if value != "" {
		fmt.Fprintln(env.Stdout, value)
	}
	return nil
}

// envOverrides maps dotted keys to the environment variables overriding them.
var envOverrides = map[string]string{
	"log.level":  config.EnvLogLevel,
	"output_dir": config.EnvOutputDir,
}

// runConfigList handles the "config list" command.
func runConfigList(env *Env) error {
	data, err := config.List()
	if err != nil {
		return err
	}

	for _, key := range slices.Sorted(maps.Keys(data)) {
		fmt.Fprintf(env.Stdout, "%s=%s\n", key, data[key])
	}

	var overrides []string
	for _, key := range slices.Sorted(maps.Keys(envOverrides)) {
		if v := env.Getenv(envOverrides[key]); v != "" {
			overrides = append(overrides, fmt.Sprintf("%s=%s (from %s)", key, v, envOverrides[key]))
		}
	}
	if env.Getenv(config.EnvAPIKey) != "" {
		overrides = append(overrides, fmt.Sprintf("openai.api_key=set (from %s)", config.EnvAPIKey))
	}
	if len(overrides) > 0 {
		fmt.Fprintf(env.Stdout, "\n%s\n", strings.Join(overrides, "\n"))
	}
	return nil
}

package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-medscribe/internal/apierr"
	"github.com/alnah/go-medscribe/internal/config"
	"github.com/alnah/go-medscribe/internal/retry"
)

// loadConfig loads the configuration and requires an API key when needKey is set.
// Load failures are reported as CONFIG_ERROR.
func loadConfig(env *Env, needKey bool) (config.Config, error) {
	cfg, err := env.ConfigLoader.Load()
	if err != nil {
		return cfg, apierr.ConfigError(err)
	}
	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = env.Getenv(config.EnvAPIKey)
	}
	if needKey && cfg.OpenAI.APIKey == "" {
		return cfg, fmt.Errorf("%w (set it with: export %s=sk-...)", ErrAPIKeyMissing, config.EnvAPIKey)
	}
	return cfg, nil
}

// progress returns a retry callback that reports waits on stderr.
func progress(env *Env, label string) retry.OnRetry {
	return func(ev retry.RetryEvent) {
		fmt.Fprintf(env.Stderr, "%s: %s Retrying in %s (attempt %d/%d)\n",
			label, ev.Reason, ev.Delay.Round(100*time.Millisecond), ev.AttemptNumber, ev.TotalAttempts)
	}
}

// checkInputs verifies every path exists and is a regular file.
func checkInputs(paths []string) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrFileNotFound, p)
			}
			return fmt.Errorf("cannot access input file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory: %w", p, apierr.InvalidInput("input must be a file"))
		}
	}
	return nil
}

// outputPaths resolves one output file per input. An explicit output only
// applies to a single input.
func outputPaths(inputs []string, output, outputDir, suffix string) ([]string, error) {
	if output != "" && len(inputs) > 1 {
		return nil, ErrOutputWithMany
	}
	outs := make([]string, len(inputs))
	for i, in := range inputs {
		outs[i] = config.ResolveOutputPath(output, outputDir, deriveOutputPath(filepath.Base(in), suffix))
	}
	return outs, nil
}

// deriveOutputPath replaces the extension of name with suffix.
// Example: ("visit.txt", ".soap.md") -> "visit.soap.md"
func deriveOutputPath(name, suffix string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + suffix
}

// ensureWritable fails when any output already exists, before any API call.
func ensureWritable(paths []string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return fmt.Errorf("%w: %s", ErrOutputExists, p)
		}
	}
	return nil
}

// writeOutput writes content to path, creating parent directories.
func writeOutput(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

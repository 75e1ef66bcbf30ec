// Package config loads medscribe settings from a YAML file and the environment.
//
// The file lives at $XDG_CONFIG_HOME/medscribe/config.yaml (or
// ~/.config/medscribe/config.yaml). Environment references such as
// ${OPENAI_BASE_URL} are expanded before parsing. Unset keys keep their
// defaults, so a partial file is valid.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alnah/go-medscribe/internal/logging"
	"github.com/alnah/go-medscribe/internal/retry"
)

// Environment variables.
const (
	EnvLogLevel  = "MEDSCRIBE_LOG_LEVEL"
	EnvOutputDir = "MEDSCRIBE_OUTPUT_DIR"
	EnvAPIKey    = "OPENAI_API_KEY"
)

// Model defaults.
const (
	DefaultModel              = "o4-mini"
	DefaultFallbackModel      = "gpt-4o-mini"
	DefaultTranscriptionModel = "gpt-4o-mini-transcribe"
)

// Config holds all user settings.
type Config struct {
	Log       LogConfig     `yaml:"log"`
	Server    ServerConfig  `yaml:"server"`
	OpenAI    OpenAIConfig  `yaml:"openai"`
	Breaker   BreakerConfig `yaml:"breaker"`
	Retry     RetryConfig   `yaml:"retry"`
	OutputDir string        `yaml:"output_dir"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// OpenAIConfig configures the AI backend.
type OpenAIConfig struct {
	Model              string `yaml:"model"`
	FallbackModel      string `yaml:"fallback_model"`
	TranscriptionModel string `yaml:"transcription_model"`
	BaseURL            string `yaml:"base_url"`

	// APIKey comes from OPENAI_API_KEY only.
	APIKey string `yaml:"-"`
}

// BreakerConfig configures circuit breakers.
type BreakerConfig struct {
	Threshold   int           `yaml:"threshold"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// RetryConfig holds retry policies per call role.
type RetryConfig struct {
	// Default applies to calls with no dedicated policy (transcription).
	Default retry.Config `yaml:"default"`
	// Primary applies to the primary note model.
	Primary retry.Config `yaml:"primary"`
	// Fallback applies to the fallback note model.
	Fallback retry.Config `yaml:"fallback"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Log:    LogConfig{Level: "info"},
		Server: ServerConfig{Addr: ":8080"},
		OpenAI: OpenAIConfig{
			Model:              DefaultModel,
			FallbackModel:      DefaultFallbackModel,
			TranscriptionModel: DefaultTranscriptionModel,
		},
		Breaker: BreakerConfig{Threshold: 5, OpenTimeout: 60 * time.Second},
		Retry: RetryConfig{
			Default: retry.DefaultConfig,
			Primary: retry.DefaultConfig,
			Fallback: retry.Config{
				MaxRetries:      2,
				BaseDelay:       time.Second,
				MaxDelay:        10 * time.Second,
				ExponentialBase: 2,
				JitterMax:       500 * time.Millisecond,
			},
		},
	}
}

// dir returns the configuration directory path.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/medscribe.
func dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "medscribe"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "medscribe"), nil
}

// Path returns the full path to the config file.
func Path() (string, error) {
	d, err := dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config.yaml"), nil
}

// Load reads the config file over the defaults, then applies environment
// overrides and validates the result. A missing file is not an error.
func Load() (Config, error) {
	p, err := Path()
	if err != nil {
		return Config{}, err
	}
	return LoadFile(p)
}

// LoadFile is Load with an explicit path.
func LoadFile(p string) (Config, error) {
	cfg, err := readFile(p, true)
	if err != nil {
		return cfg, err
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		cfg.OutputDir = v
	}
	cfg.OpenAI.APIKey = os.Getenv(EnvAPIKey)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// readFile decodes p over the defaults. expand controls environment expansion.
func readFile(p string, expand bool) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(p) // #nosec G304 -- config path is constructed from config dir or flag
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if expand {
		data = []byte(os.ExpandEnv(string(data)))
	}
	if err := decode(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// decode strictly unmarshals YAML into cfg. Empty input leaves cfg as is.
func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate checks the configuration for values the application cannot use.
func (c Config) Validate() error {
	var errs []error
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if strings.TrimSpace(c.OpenAI.Model) == "" {
		errs = append(errs, errors.New("openai.model must not be empty"))
	}
	if c.Breaker.Threshold < 1 {
		errs = append(errs, fmt.Errorf("breaker.threshold must be at least 1, got %d", c.Breaker.Threshold))
	}
	if c.Breaker.OpenTimeout <= 0 {
		errs = append(errs, fmt.Errorf("breaker.open_timeout must be positive, got %s", c.Breaker.OpenTimeout))
	}
	for name, rc := range map[string]retry.Config{
		"retry.default":  c.Retry.Default,
		"retry.primary":  c.Retry.Primary,
		"retry.fallback": c.Retry.Fallback,
	} {
		if rc.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("%s.max_retries must not be negative, got %d", name, rc.MaxRetries))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// ResolveOutputPath resolves the final output path:
//  1. An absolute output is used as is
//  2. A relative output is joined to outputDir when set
//  3. An empty output becomes defaultName in outputDir (or the cwd)
func ResolveOutputPath(output, outputDir, defaultName string) string {
	if output != "" && filepath.IsAbs(output) {
		return filepath.Clean(output)
	}
	if output != "" {
		if outputDir != "" {
			return filepath.Clean(filepath.Join(outputDir, output))
		}
		return filepath.Clean(output)
	}
	if outputDir != "" {
		return filepath.Clean(filepath.Join(outputDir, defaultName))
	}
	return filepath.Clean(defaultName)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(p string) string {
	if strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, p[2:])
	}
	return p
}

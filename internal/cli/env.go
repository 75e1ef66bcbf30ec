package cli

import (
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/alnah/go-medscribe/internal/breaker"
	"github.com/alnah/go-medscribe/internal/config"
	"github.com/alnah/go-medscribe/internal/logging"
	"github.com/alnah/go-medscribe/internal/metrics"
	"github.com/alnah/go-medscribe/internal/notes"
	"github.com/alnah/go-medscribe/internal/retry"
	"github.com/alnah/go-medscribe/internal/transcribe"
)

// Env holds injectable dependencies for CLI commands.
// This is the central injection point for testing CLI commands in isolation.
//
// Env must not be nil when passed to command functions. Use DefaultEnv()
// or NewEnv() to create a valid instance.
type Env struct {
	// I/O and environment
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string

	// Registry collects the resilience metrics of every command run.
	Registry *prometheus.Registry

	// Factories for domain objects
	ConfigLoader       ConfigLoader
	GeneratorFactory   GeneratorFactory
	TranscriberFactory TranscriberFactory

	rec *metrics.Recorder
}

// Runtime bundles the shared resilience plumbing built once per command.
type Runtime struct {
	Logger   *slog.Logger
	Metrics  *metrics.Recorder
	Executor *retry.Executor
	Breaker  []breaker.Option
	// OnRetry reports retries of calls whose interface takes no callback.
	OnRetry retry.OnRetry
}

// ConfigLoader loads configuration.
type ConfigLoader interface {
	Load() (config.Config, error)
}

// Generator is a note generator whose breakers can be reported.
type Generator interface {
	notes.Generator
	Breakers() []*breaker.Breaker
}

// Transcriber is a transcriber whose breaker can be reported.
type Transcriber interface {
	transcribe.Transcriber
	Breaker() *breaker.Breaker
}

// GeneratorFactory creates note generators.
type GeneratorFactory interface {
	NewGenerator(cfg config.Config, rt Runtime) Generator
}

// TranscriberFactory creates transcribers.
type TranscriberFactory interface {
	NewTranscriber(cfg config.Config, rt Runtime) Transcriber
}

// EnvOption configures an Env.
type EnvOption func(*Env)

// WithStdout sets the stdout writer.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stdout = w
	}
}

// WithStderr sets the stderr writer.
func WithStderr(w io.Writer) EnvOption {
	return func(e *Env) {
		e.Stderr = w
	}
}

// WithGetenv sets the environment variable getter.
func WithGetenv(fn func(string) string) EnvOption {
	return func(e *Env) {
		e.Getenv = fn
	}
}

// WithRegistry sets the metrics registry.
func WithRegistry(r *prometheus.Registry) EnvOption {
	return func(e *Env) {
		e.Registry = r
	}
}

// WithConfigLoader sets the config loader.
func WithConfigLoader(l ConfigLoader) EnvOption {
	return func(e *Env) {
		e.ConfigLoader = l
	}
}

// WithGeneratorFactory sets the generator factory.
func WithGeneratorFactory(f GeneratorFactory) EnvOption {
	return func(e *Env) {
		e.GeneratorFactory = f
	}
}

// WithTranscriberFactory sets the transcriber factory.
func WithTranscriberFactory(f TranscriberFactory) EnvOption {
	return func(e *Env) {
		e.TranscriberFactory = f
	}
}

// DefaultEnv returns an Env with production defaults.
func DefaultEnv() *Env {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Env{
		Stdout:             os.Stdout,
		Stderr:             os.Stderr,
		Getenv:             os.Getenv,
		Registry:           reg,
		ConfigLoader:       &defaultConfigLoader{},
		GeneratorFactory:   &defaultGeneratorFactory{},
		TranscriberFactory: &defaultTranscriberFactory{},
	}
}

// NewEnv creates an Env with the given options applied to defaults.
func NewEnv(opts ...EnvOption) *Env {
	env := DefaultEnv()
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// newRuntime builds the logger, metrics and executor for cfg.
// The recorder registers into env.Registry once; later calls reuse the
// collectors already there.
func newRuntime(env *Env, cfg config.Config) (Runtime, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return Runtime{}, err
	}
	logger := logging.New(env.Stderr, level, env.Getenv("NO_COLOR") != "")

	rec := env.recorder()
	exec := retry.New(retry.WithLogger(logger), retry.WithMetrics(rec))
	return Runtime{
		Logger:   logger,
		Metrics:  rec,
		Executor: exec,
		Breaker: []breaker.Option{
			breaker.WithThreshold(cfg.Breaker.Threshold),
			breaker.WithOpenTimeout(cfg.Breaker.OpenTimeout),
			breaker.WithLogger(logger),
			breaker.WithMetrics(rec),
		},
	}, nil
}

// recorder returns the metrics recorder bound to env.Registry, creating it
// on first use. A nil registry disables metrics.
func (e *Env) recorder() *metrics.Recorder {
	if e.Registry == nil {
		return nil
	}
	if e.rec == nil {
		e.rec = metrics.NewRecorder(e.Registry)
	}
	return e.rec
}

// ---------------------------------------------------------------------------
// Default implementations - delegate to real packages
// ---------------------------------------------------------------------------

// defaultConfigLoader implements ConfigLoader using the config package.
type defaultConfigLoader struct{}

func (defaultConfigLoader) Load() (config.Config, error) {
	return config.Load()
}

// newOpenAIClient creates a client for cfg, honoring a custom base URL.
func newOpenAIClient(cfg config.OpenAIConfig) *openai.Client {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(c)
}

// defaultGeneratorFactory implements GeneratorFactory using OpenAI.
type defaultGeneratorFactory struct{}

func (defaultGeneratorFactory) NewGenerator(cfg config.Config, rt Runtime) Generator {
	return notes.NewOpenAIGenerator(newOpenAIClient(cfg.OpenAI),
		notes.WithModel(cfg.OpenAI.Model),
		notes.WithFallbackModel(cfg.OpenAI.FallbackModel),
		notes.WithRetryConfigs(cfg.Retry.Primary, cfg.Retry.Fallback),
		notes.WithExecutor(rt.Executor),
		notes.WithBreakerOptions(rt.Breaker...),
		notes.WithLogger(rt.Logger),
	)
}

// defaultTranscriberFactory implements TranscriberFactory using OpenAI.
type defaultTranscriberFactory struct{}

func (defaultTranscriberFactory) NewTranscriber(cfg config.Config, rt Runtime) Transcriber {
	return transcribe.NewOpenAITranscriber(newOpenAIClient(cfg.OpenAI),
		transcribe.WithModel(cfg.OpenAI.TranscriptionModel),
		transcribe.WithRetryConfig(cfg.Retry.Default),
		transcribe.WithExecutor(rt.Executor),
		transcribe.WithBreakerOptions(rt.Breaker...),
		transcribe.WithOnRetry(rt.OnRetry),
		transcribe.WithLogger(rt.Logger),
	)
}

// Compile-time interface verification.
var (
	_ ConfigLoader       = (*defaultConfigLoader)(nil)
	_ GeneratorFactory   = (*defaultGeneratorFactory)(nil)
	_ TranscriberFactory = (*defaultTranscriberFactory)(nil)
	_ Generator          = (*notes.OpenAIGenerator)(nil)
	_ Transcriber        = (*transcribe.OpenAITranscriber)(nil)
)

// Package transcribe converts dictation audio to text with OpenAI's
// transcription API, behind a circuit breaker with retries.
package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-medscribe/internal/apierr"
	"github.com/alnah/go-medscribe/internal/breaker"
	"github.com/alnah/go-medscribe/internal/retry"
)

// ModelGPT4oMiniTranscribe is the default transcription model.
const ModelGPT4oMiniTranscribe = "gpt-4o-mini-transcribe"

// MaxRecommendedParallel is the recommended upper limit for concurrent
// requests in TranscribeAll. Higher values may trigger rate limiting.
const MaxRecommendedParallel = 10

// supportedExtensions lists the audio formats the API accepts.
var supportedExtensions = []string{".mp3", ".mp4", ".mpeg", ".mpga", ".m4a", ".wav", ".webm", ".ogg"}

// Options configures transcription behavior.
type Options struct {
	// Prompt provides context to improve accuracy, e.g. drug names or the
	// specialty ("Cardiology clinic letter, mentions apixaban").
	Prompt string

	// Language is an ISO 639-1 code. Empty means auto-detect.
	Language string
}

// Transcriber transcribes audio files to text.
type Transcriber interface {
	// Transcribe converts an audio file to text.
	Transcribe(ctx context.Context, audioPath string, opts Options) (string, error)
}

// audioTranscriber is the subset of *openai.Client used here.
type audioTranscriber interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Transcriber      = (*OpenAITranscriber)(nil)
	_ audioTranscriber = (*openai.Client)(nil)
)

// OpenAITranscriber transcribes audio using OpenAI's transcription API.
type OpenAITranscriber struct {
	client      audioTranscriber
	model       string
	cfg         retry.Config
	exec        *retry.Executor
	breakerOpts []breaker.Option
	breaker     *breaker.Breaker
	onRetry     retry.OnRetry
	logger      *slog.Logger
}

// TranscriberOption configures an OpenAITranscriber.
type TranscriberOption func(*OpenAITranscriber)

// WithModel sets the transcription model.
func WithModel(model string) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if model != "" {
			t.model = model
		}
	}
}

// WithRetryConfig sets the retry policy.
func WithRetryConfig(cfg retry.Config) TranscriberOption {
	return func(t *OpenAITranscriber) {
		t.cfg = cfg
	}
}

// WithExecutor sets the retry executor.
func WithExecutor(e *retry.Executor) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if e != nil {
			t.exec = e
		}
	}
}

// WithBreakerOptions configures the breaker guarding the API.
func WithBreakerOptions(opts ...breaker.Option) TranscriberOption {
	return func(t *OpenAITranscriber) {
		t.breakerOpts = append(t.breakerOpts, opts...)
	}
}

// WithOnRetry sets a callback invoked before each retry.
func WithOnRetry(fn retry.OnRetry) TranscriberOption {
	return func(t *OpenAITranscriber) {
		t.onRetry = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) TranscriberOption {
	return func(t *OpenAITranscriber) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewOpenAITranscriber creates a new OpenAITranscriber.
// The client is injected to enable testing with mocks.
func NewOpenAITranscriber(client *openai.Client, opts ...TranscriberOption) *OpenAITranscriber {
	return newTranscriber(client, opts...)
}

func newTranscriber(client audioTranscriber, opts ...TranscriberOption) *OpenAITranscriber {
	t := &OpenAITranscriber{
		client: client,
		model:  ModelGPT4oMiniTranscribe,
		cfg:    retry.DefaultConfig,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.exec == nil {
		t.exec = retry.New(retry.WithLogger(t.logger))
	}
	t.breaker = breaker.New("transcription/"+t.model, t.exec, t.breakerOpts...)
	return t
}

// Breaker returns the breaker guarding the transcription API.
func (t *OpenAITranscriber) Breaker() *breaker.Breaker {
	return t.breaker
}

// Transcribe validates audioPath and transcribes it.
// Errors are *apierr.ServiceError, retry.ErrCanceled or *breaker.OpenError.
func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string, opts Options) (string, error) {
	if err := ValidateAudio(audioPath); err != nil {
		return "", err
	}

	req := openai.AudioRequest{
		Model:    t.model,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatJSON,
		Prompt:   opts.Prompt,
		Language: opts.Language,
	}

	return breaker.Run(ctx, t.breaker, t.cfg, func(ctx context.Context) (string, error) {
		resp, err := t.client.CreateTranscription(ctx, req)
		if err != nil {
			return "", err
		}
		text := strings.TrimSpace(resp.Text)
		if text == "" {
			return "", apierr.EmptyResponse("transcription")
		}
		return text, nil
	}, t.onRetry)
}

// ValidateAudio checks that path is a readable file in a supported format.
func ValidateAudio(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(supportedExtensions, ext) {
		return apierr.InvalidInput(fmt.Sprintf("unsupported audio format %q (supported: %s)",
			ext, strings.Join(supportedExtensions, ", ")))
	}
	info, err := os.Stat(path)
	if err != nil {
		return apierr.InvalidInput(fmt.Sprintf("cannot read audio file: %v", err))
	}
	if info.IsDir() {
		return apierr.InvalidInput(fmt.Sprintf("%s is a directory", path))
	}
	if info.Size() == 0 {
		return apierr.InvalidInput(fmt.Sprintf("%s is empty", path))
	}
	return nil
}

// TranscribeAll transcribes multiple audio files in parallel.
// Results are returned in the same order as the input paths.
// If any file fails, the remaining ones are canceled and the error is returned.
// maxParallel limits the number of concurrent API requests.
func TranscribeAll(ctx context.Context, paths []string, t Transcriber, opts Options, maxParallel int) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	if maxParallel < 1 {
		maxParallel = 1
	}

	results := make([]string, len(paths))
	sem := make(chan struct{}, maxParallel)

	g, ctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			text, err := t.Transcribe(ctx, p, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", filepath.Base(p), err)
			}
			results[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

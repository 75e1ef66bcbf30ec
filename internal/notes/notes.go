// Package notes turns dictation transcripts into clinical notes with an
// OpenAI chat model. Calls to the primary model run behind a circuit breaker
// with retries; when they fail, the same request goes to a fallback model
// behind its own breaker.
package notes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-medscribe/internal/apierr"
	"github.com/alnah/go-medscribe/internal/breaker"
	"github.com/alnah/go-medscribe/internal/retry"
	"github.com/alnah/go-medscribe/internal/template"
)

// Defaults.
const (
	DefaultModel         = "o4-mini"
	DefaultFallbackModel = "gpt-4o-mini"

	// DefaultMinWords is the shortest transcript worth a note.
	DefaultMinWords = 20

	// DefaultMaxInputTokens leaves a margin under the 128K context window.
	DefaultMaxInputTokens = 100000

	// MaxRecommendedParallel is the recommended upper limit for concurrent
	// requests in GenerateAll. Higher values may trigger rate limiting.
	MaxRecommendedParallel = 5
)

// charsPerToken is a conservative estimate for clinical English and French.
const charsPerToken = 3

// estimateTokens estimates the token count of text.
func estimateTokens(text string) int {
	return len(text) / charsPerToken
}

// Note is a generated clinical note.
type Note struct {
	Template template.Name `json:"template"`
	// Model is the model that produced Content.
	Model        string `json:"model"`
	Content      string `json:"content"`
	UsedFallback bool   `json:"used_fallback"`
}

// Request is one transcript to turn into a note.
type Request struct {
	Transcript string        `json:"transcript"`
	Template   template.Name `json:"template"`
}

// Generator produces clinical notes from transcripts.
type Generator interface {
	// Generate returns a note or a *apierr.ServiceError, retry.ErrCanceled,
	// or a *breaker.OpenError when every model is gated.
	Generate(ctx context.Context, req Request, onRetry retry.OnRetry) (Note, error)
}

// chatCompleter is the subset of *openai.Client used here.
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Compile-time interface compliance checks.
var (
	_ Generator     = (*OpenAIGenerator)(nil)
	_ chatCompleter = (*openai.Client)(nil)
)

// OpenAIGenerator generates notes with OpenAI chat completions.
// It is safe for concurrent use; breakers are shared by all callers.
type OpenAIGenerator struct {
	client         chatCompleter
	model          string
	fallbackModel  string
	primaryCfg     retry.Config
	fallbackCfg    retry.Config
	minWords       int
	maxInputTokens int
	exec           *retry.Executor
	breakerOpts    []breaker.Option
	logger         *slog.Logger

	primary  *breaker.Breaker
	fallback *breaker.Breaker
}

// Option configures an OpenAIGenerator.
type Option func(*OpenAIGenerator)

// WithModel sets the primary model.
func WithModel(model string) Option {
	return func(g *OpenAIGenerator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithFallbackModel sets the fallback model. Empty disables the fallback.
func WithFallbackModel(model string) Option {
	return func(g *OpenAIGenerator) {
		g.fallbackModel = model
	}
}

// WithRetryConfigs sets the retry policies of the primary and fallback legs.
func WithRetryConfigs(primary, fallback retry.Config) Option {
	return func(g *OpenAIGenerator) {
		g.primaryCfg = primary
		g.fallbackCfg = fallback
	}
}

// WithExecutor sets the retry executor shared by both legs.
func WithExecutor(e *retry.Executor) Option {
	return func(g *OpenAIGenerator) {
		if e != nil {
			g.exec = e
		}
	}
}

// WithBreakerOptions configures the breakers created for each model.
func WithBreakerOptions(opts ...breaker.Option) Option {
	return func(g *OpenAIGenerator) {
		g.breakerOpts = append(g.breakerOpts, opts...)
	}
}

// WithMinWords sets the minimum transcript length in words.
func WithMinWords(n int) Option {
	return func(g *OpenAIGenerator) {
		if n >= 0 {
			g.minWords = n
		}
	}
}

// WithMaxInputTokens sets the estimated token limit of a transcript.
func WithMaxInputTokens(n int) Option {
	return func(g *OpenAIGenerator) {
		if n > 0 {
			g.maxInputTokens = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *OpenAIGenerator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewOpenAIGenerator creates a generator. The client is injected to enable
// testing with mocks.
func NewOpenAIGenerator(client *openai.Client, opts ...Option) *OpenAIGenerator {
	return newGenerator(client, opts...)
}

func newGenerator(client chatCompleter, opts ...Option) *OpenAIGenerator {
	g := &OpenAIGenerator{
		client:         client,
		model:          DefaultModel,
		fallbackModel:  DefaultFallbackModel,
		primaryCfg:     retry.DefaultConfig,
		fallbackCfg:    retry.DefaultConfig,
		minWords:       DefaultMinWords,
		maxInputTokens: DefaultMaxInputTokens,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.exec == nil {
		g.exec = retry.New(retry.WithLogger(g.logger))
	}
	if g.fallbackModel == g.model {
		g.fallbackModel = ""
	}

	g.primary = breaker.New("chat/"+g.model, g.exec, g.breakerOpts...)
	if g.fallbackModel != "" {
		g.fallback = breaker.New("chat/"+g.fallbackModel, g.exec, g.breakerOpts...)
	}
	return g
}

// Breakers returns the breakers guarding each model, primary first.
func (g *OpenAIGenerator) Breakers() []*breaker.Breaker {
	if g.fallback == nil {
		return []*breaker.Breaker{g.primary}
	}
	return []*breaker.Breaker{g.primary, g.fallback}
}

// Validate checks a request before any AI call.
func (g *OpenAIGenerator) Validate(req Request) error {
	if req.Template.IsZero() {
		return apierr.InvalidInput("template is required")
	}
	if strings.TrimSpace(req.Transcript) == "" {
		return apierr.InvalidInput("transcript is empty")
	}
	if words := len(strings.Fields(req.Transcript)); words < g.minWords {
		return apierr.TranscriptTooShort(words, g.minWords)
	}
	if tokens := estimateTokens(req.Transcript); tokens > g.maxInputTokens {
		return apierr.TranscriptTooLong(tokens, g.maxInputTokens)
	}
	return nil
}

// Generate validates req and produces a note, switching to the fallback model
// once the primary model's retries are exhausted or its breaker is open.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request, onRetry retry.OnRetry) (Note, error) {
	if err := g.Validate(req); err != nil {
		return Note{}, err
	}

	primary := func(ctx context.Context) (Note, error) {
		return breaker.Run(ctx, g.primary, g.primaryCfg, g.complete(req, g.model, false), onRetry)
	}
	if g.fallback == nil {
		return primary(ctx)
	}

	fallback := func(ctx context.Context) (Note, error) {
		g.logger.Warn("primary model failed, using fallback",
			"model", g.model, "fallback_model", g.fallbackModel)
		return breaker.Run(ctx, g.fallback, g.fallbackCfg, g.complete(req, g.fallbackModel, true), onRetry)
	}
	return retry.Fallback(ctx, primary, fallback)
}

// complete returns a single chat completion attempt for model.
func (g *OpenAIGenerator) complete(req Request, model string, usedFallback bool) func(context.Context) (Note, error) {
	chat := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.Template.Prompt()},
			{Role: openai.ChatMessageRoleUser, Content: req.Transcript},
		},
	}

	return func(ctx context.Context) (Note, error) {
		resp, err := g.client.CreateChatCompletion(ctx, chat)
		if err != nil {
			return Note{}, err
		}
		if len(resp.Choices) == 0 {
			return Note{}, apierr.EmptyResponse("chat completion")
		}

		choice := resp.Choices[0]
		if choice.FinishReason == openai.FinishReasonLength {
			return Note{}, apierr.ResponseTruncated(string(choice.FinishReason))
		}
		content := strings.TrimSpace(choice.Message.Content)
		if content == "" {
			return Note{}, apierr.EmptyResponse("chat completion")
		}

		return Note{
			Template:     req.Template,
			Model:        model,
			Content:      content,
			UsedFallback: usedFallback,
		}, nil
	}
}

// GenerateAll generates notes for several transcripts in parallel.
// Results are returned in input order. If any request fails, the remaining
// ones are canceled and the error is returned.
// maxParallel limits concurrent requests (1-MaxRecommendedParallel recommended).
func GenerateAll(ctx context.Context, g Generator, reqs []Request, maxParallel int, onRetry retry.OnRetry) ([]Note, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if maxParallel < 1 {
		maxParallel = 1
	}

	results := make([]Note, len(reqs))
	sem := make(chan struct{}, maxParallel)

	grp, ctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		grp.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { <-sem }()

			note, err := g.Generate(ctx, req, onRetry)
			if err != nil {
				return fmt.Errorf("transcript %d: %w", i+1, err)
			}
			results[i] = note
			return nil
		})
	}

	if err := grp.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

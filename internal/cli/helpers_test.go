package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/alnah/go-medscribe/internal/breaker"
	"github.com/alnah/go-medscribe/internal/config"
	"github.com/alnah/go-medscribe/internal/notes"
	"github.com/alnah/go-medscribe/internal/retry"
	"github.com/alnah/go-medscribe/internal/transcribe"
)

// ---------------------------------------------------------------------------
// syncBuffer - thread-safe bytes.Buffer for concurrent test output
// ---------------------------------------------------------------------------

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Compile-time check that syncBuffer implements io.Writer.
var _ io.Writer = (*syncBuffer)(nil)

// ---------------------------------------------------------------------------
// mockConfigLoader
// ---------------------------------------------------------------------------

type mockConfigLoader struct {
	cfg config.Config
	err error
}

func (m *mockConfigLoader) Load() (config.Config, error) {
	return m.cfg, m.err
}

// ---------------------------------------------------------------------------
// mockGeneratorFactory - records the config and serves a stub generator
// ---------------------------------------------------------------------------

type stubGenerator struct {
	mu       sync.Mutex
	calls    int
	generate func(ctx context.Context, req notes.Request, onRetry retry.OnRetry) (notes.Note, error)
	breakers []*breaker.Breaker
}

func (s *stubGenerator) Generate(ctx context.Context, req notes.Request, onRetry retry.OnRetry) (notes.Note, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.generate == nil {
		return notes.Note{Template: req.Template, Model: "test-model", Content: "S: stub note"}, nil
	}
	return s.generate(ctx, req, onRetry)
}

func (s *stubGenerator) Breakers() []*breaker.Breaker {
	return s.breakers
}

func (s *stubGenerator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type mockGeneratorFactory struct {
	gen *stubGenerator
	cfg config.Config
}

func (m *mockGeneratorFactory) NewGenerator(cfg config.Config, rt Runtime) Generator {
	m.cfg = cfg
	m.gen.breakers = []*breaker.Breaker{
		breaker.New("chat/"+cfg.OpenAI.Model, rt.Executor, rt.Breaker...),
	}
	return m.gen
}

// ---------------------------------------------------------------------------
// mockTranscriberFactory
// ---------------------------------------------------------------------------

type stubTranscriber struct {
	transcribe func(ctx context.Context, path string, opts transcribe.Options) (string, error)
	onRetry    retry.OnRetry
	brk        *breaker.Breaker
}

func (s *stubTranscriber) Transcribe(ctx context.Context, path string, opts transcribe.Options) (string, error) {
	if s.transcribe == nil {
		return "patient reports chest pain", nil
	}
	return s.transcribe(ctx, path, opts)
}

func (s *stubTranscriber) Breaker() *breaker.Breaker {
	return s.brk
}

type mockTranscriberFactory struct {
	tr *stubTranscriber
}

func (m *mockTranscriberFactory) NewTranscriber(cfg config.Config, rt Runtime) Transcriber {
	m.tr.onRetry = rt.OnRetry
	m.tr.brk = breaker.New("transcription/"+cfg.OpenAI.TranscriptionModel, rt.Executor, rt.Breaker...)
	return m.tr
}

// Compile-time interface verification.
var (
	_ ConfigLoader       = (*mockConfigLoader)(nil)
	_ GeneratorFactory   = (*mockGeneratorFactory)(nil)
	_ TranscriberFactory = (*mockTranscriberFactory)(nil)
)

// ---------------------------------------------------------------------------
// testEnv - creates a fully mocked Env for testing
// ---------------------------------------------------------------------------

type testEnv struct {
	env         *Env
	stdout      *syncBuffer
	stderr      *syncBuffer
	loader      *mockConfigLoader
	generators  *mockGeneratorFactory
	transcriber *mockTranscriberFactory
	outputDir   string
}

// newTestEnv returns an Env whose config writes outputs to a temp directory
// and carries a test API key.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.OpenAI.APIKey = "sk-test"
	cfg.OutputDir = t.TempDir()

	te := &testEnv{
		stdout:      &syncBuffer{},
		stderr:      &syncBuffer{},
		loader:      &mockConfigLoader{cfg: cfg},
		generators:  &mockGeneratorFactory{gen: &stubGenerator{}},
		transcriber: &mockTranscriberFactory{tr: &stubTranscriber{}},
		outputDir:   cfg.OutputDir,
	}
	te.env = &Env{
		Stdout:             te.stdout,
		Stderr:             te.stderr,
		Getenv:             func(string) string { return "" },
		Registry:           prometheus.NewRegistry(),
		ConfigLoader:       te.loader,
		GeneratorFactory:   te.generators,
		TranscriberFactory: te.transcriber,
	}
	return te
}

// writeFile creates a file under a temp directory and returns its path.
func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// transcriptText is long enough for any note template.
const transcriptText = "Patient is a 54 year old man seen today for follow up of hypertension. " +
	"He reports good adherence to amlodipine and no chest pain or dyspnea. " +
	"Blood pressure today 132 over 84. Plan to continue current dose and recheck in three months."

// execute runs cmd with args the way the root command would.
func execute(ctx context.Context, cmd *cobra.Command, args ...string) error {
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	return cmd.ExecuteContext(ctx)
}

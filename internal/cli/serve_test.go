package cli

import (
	"context"
	"errors"
	"testing"
)

// ---------------------------------------------------------------------------
// Tests for the serve command
// ---------------------------------------------------------------------------

func TestServeCmd_StopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	te := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := execute(ctx, ServeCmd(te.env), "--addr", "127.0.0.1:0"); err != nil {
		t.Fatalf("serve: unexpected error: %v", err)
	}

	if got := te.generators.gen.Breakers()[0].Name(); got != "chat/o4-mini" {
		t.Errorf("generator breaker = %q, want chat/o4-mini", got)
	}
	if te.transcriber.tr.Breaker() == nil {
		t.Error("transcriber breaker was not created")
	}
}

func TestServeCmd_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	te := newTestEnv(t)
	te.loader.cfg.OpenAI.APIKey = ""

	err := execute(context.Background(), ServeCmd(te.env))
	if !errors.Is(err, ErrAPIKeyMissing) {
		t.Errorf("error = %v, want ErrAPIKeyMissing", err)
	}
}

func TestServeCmd_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	te := newTestEnv(t)
	te.loader.cfg.Log.Level = "chatty"

	err := execute(context.Background(), ServeCmd(te.env), "--addr", "127.0.0.1:0")
	if err == nil {
		t.Fatal("expected error for unknown log level")
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alnah/go-medscribe/internal/apierr"
	"github.com/alnah/go-medscribe/internal/breaker"
	"github.com/alnah/go-medscribe/internal/cli"
	"github.com/alnah/go-medscribe/internal/config"
	"github.com/alnah/go-medscribe/internal/retry"
	"github.com/alnah/go-medscribe/internal/template"
)

// Injected at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitGeneral     = 1
	ExitUsage       = 2
	ExitSetup       = 3
	ExitValidation  = 4
	ExitAIService   = 5
	ExitCircuitOpen = 6
	ExitInterrupt   = 130
)

func main() {
	// Load .env file if present (ignore error if missing).
	_ = godotenv.Load()

	// Context with signal cancellation.
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Create the CLI environment with production defaults.
	env := cli.DefaultEnv()

	rootCmd := newRootCmd(env)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, cli.Describe(err))
		os.Exit(exitCode(err))
	}
}

// newRootCmd assembles the command tree.
func newRootCmd(env *cli.Env) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "medscribe",
		Short:   "Resilient AI calls for clinical dictation",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),
		// Silence Cobra's default error/usage printing; we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(cli.ClassifyCmd(env))
	rootCmd.AddCommand(cli.PolicyCmd(env))
	rootCmd.AddCommand(cli.NoteCmd(env))
	rootCmd.AddCommand(cli.TranscribeCmd(env))
	rootCmd.AddCommand(cli.ServeCmd(env))
	rootCmd.AddCommand(cli.ConfigCmd(env))
	return rootCmd
}

// exitCode maps errors to exit codes.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	// Interrupt: the context was canceled, possibly mid-retry.
	if errors.Is(err, retry.ErrCanceled) || errors.Is(err, context.Canceled) {
		return ExitInterrupt
	}

	// Setup errors (ExitSetup = 3).
	if errors.Is(err, cli.ErrAPIKeyMissing) || errors.Is(err, apierr.ErrConfig) ||
		errors.Is(err, config.ErrInvalid) || errors.Is(err, config.ErrUnknownKey) ||
		errors.Is(err, config.ErrSecretKey) {
		return ExitSetup
	}

	// Validation errors (ExitValidation = 4).
	if errors.Is(err, cli.ErrFileNotFound) || errors.Is(err, cli.ErrOutputExists) ||
		errors.Is(err, cli.ErrOutputWithMany) || errors.Is(err, template.ErrUnknown) ||
		errors.Is(err, apierr.ErrUnknownCode) {
		return ExitValidation
	}

	// The call that decided the outcome: the fallback leg when there was one.
	final := retry.Final(err)

	if breaker.IsOpen(final) {
		return ExitCircuitOpen
	}

	if se, ok := apierr.As(final); ok {
		if se.Category == apierr.CategoryValidation {
			return ExitValidation
		}
		return ExitAIService
	}

	// Usage errors (ExitUsage = 2): Cobra flag/arg parsing errors. Checked
	// after typed errors so provider messages never match these patterns.
	if isCobraUsageError(err) {
		return ExitUsage
	}

	return ExitGeneral
}

// cobraUsageErrorPatterns contains error message substrings that indicate Cobra usage errors.
// Cobra doesn't expose typed errors, so string matching is the only reliable approach.
var cobraUsageErrorPatterns = []string{
	"required flag",          // Missing required flag
	"unknown flag",           // Flag doesn't exist
	"unknown shorthand",      // Short flag doesn't exist
	"unknown command",        // Subcommand doesn't exist
	"flag needs an argument", // Flag provided without value
	"invalid argument",       // Invalid flag value type
	"accepts ",               // Wrong number of arguments (e.g., "accepts 1 arg(s)")
	"requires at least",      // Too few arguments
	"requires at most",       // Too many arguments
}

// isCobraUsageError checks if an error is a Cobra usage/parsing error.
func isCobraUsageError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	for _, pattern := range cobraUsageErrorPatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}

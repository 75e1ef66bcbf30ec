package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alnah/go-medscribe/internal/transcribe"
)

// transcribeOptions holds the transcribe command flags.
type transcribeOptions struct {
	output   string
	language string
	prompt   string
	parallel int
}

// TranscribeCmd creates the transcribe command.
// The env parameter provides injectable dependencies for testing.
func TranscribeCmd(env *Env) *cobra.Command {
	var opts transcribeOptions

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>...",
		Short: "Transcribe dictation audio",
		Long: `Transcribe dictation audio using OpenAI's transcription API.

Calls go through the transcription circuit breaker with retries. Several
files are transcribed in parallel.

Supported formats: mp3, mp4, mpeg, mpga, m4a, wav, webm, ogg`,
		Example: `  medscribe transcribe visit.m4a
  medscribe transcribe visit.m4a -o visit.txt -l fr
  medscribe transcribe clinic/*.ogg --prompt "Cardiology, mentions apixaban"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd, env, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path (default: <input>.txt)")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Audio language (ISO 639-1 code, e.g., en, fr)")
	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "Context to improve accuracy (specialty, drug names)")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", transcribe.MaxRecommendedParallel, "Max concurrent API requests (1-10)")

	return cmd
}

// runTranscribe executes the transcription pipeline.
// Validation order: files exist -> format -> config and API key -> outputs
func runTranscribe(cmd *cobra.Command, env *Env, inputs []string, opts transcribeOptions) error {
	ctx := cmd.Context()

	// === VALIDATION (fail-fast) ===

	if err := checkInputs(inputs); err != nil {
		return err
	}
	for _, in := range inputs {
		if err := transcribe.ValidateAudio(in); err != nil {
			return err
		}
	}

	cfg, err := loadConfig(env, true)
	if err != nil {
		return err
	}

	outputs, err := outputPaths(inputs, opts.output, cfg.OutputDir, ".txt")
	if err != nil {
		return err
	}
	if err := ensureWritable(outputs); err != nil {
		return err
	}

	// === SETUP ===

	rt, err := newRuntime(env, cfg)
	if err != nil {
		return err
	}
	rt.OnRetry = progress(env, "transcribe")
	tr := env.TranscriberFactory.NewTranscriber(cfg, rt)

	// === TRANSCRIPTION ===

	fmt.Fprintf(env.Stderr, "Transcribing %d file(s) with %s...\n", len(inputs), cfg.OpenAI.TranscriptionModel)
	texts, err := transcribe.TranscribeAll(ctx, inputs, tr,
		transcribe.Options{Prompt: opts.prompt, Language: opts.language},
		clampParallel(opts.parallel, transcribe.MaxRecommendedParallel))
	if err != nil {
		return err
	}

	for i, text := range texts {
		if err := writeOutput(outputs[i], text); err != nil {
			return err
		}
		fmt.Fprintf(env.Stderr, "Wrote %s\n", outputs[i])
	}
	return nil
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alnah/go-medscribe/internal/notes"
	"github.com/alnah/go-medscribe/internal/template"
)

// noteOptions holds the note command flags.
type noteOptions struct {
	output        string
	template      string
	model         string
	fallbackModel string
	// fallbackSet reports whether --fallback-model was given, since an
	// empty value disables the fallback.
	fallbackSet bool
	parallel    int
}

// clampParallel constrains parallel request count to the range [1, limit].
func clampParallel(n, limit int) int {
	if n < 1 {
		return 1
	}
	if n > limit {
		return limit
	}
	return n
}

// NoteCmd creates the note command.
// The env parameter provides injectable dependencies for testing.
func NoteCmd(env *Env) *cobra.Command {
	var opts noteOptions

	cmd := &cobra.Command{
		Use:   "note <transcript-file>...",
		Short: "Generate a clinical note from a transcript",
		Long: `Generate a clinical note from a dictation transcript.

The primary model is called through its circuit breaker with retries. When it
fails, the fallback model gets one more chance with its own retry policy.
Several transcripts are processed in parallel.

Templates: soap, progress, consult, discharge`,
		Example: `  medscribe note visit.txt -t soap
  medscribe note visit.txt -t consult -o letter.md
  medscribe note day/*.txt -t progress -p 3
  medscribe note visit.txt -t soap --model gpt-4o --fallback-model ""`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.fallbackSet = cmd.Flags().Changed("fallback-model")
			return runNote(cmd, env, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file path (default: <input>.<template>.md)")
	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "Note template: soap, progress, consult, discharge")
	cmd.Flags().StringVar(&opts.model, "model", "", "Primary model (default from config)")
	cmd.Flags().StringVar(&opts.fallbackModel, "fallback-model", "", "Fallback model, empty to disable (default from config)")
	cmd.Flags().IntVarP(&opts.parallel, "parallel", "p", notes.MaxRecommendedParallel, "Max concurrent API requests (1-5)")
	_ = cmd.MarkFlagRequired("template")

	return cmd
}

// runNote executes the note pipeline.
// Validation order: files exist -> template -> config and API key -> outputs
func runNote(cmd *cobra.Command, env *Env, inputs []string, opts noteOptions) error {
	ctx := cmd.Context()

	// === VALIDATION (fail-fast) ===

	if err := checkInputs(inputs); err != nil {
		return err
	}

	tmpl, err := template.ParseName(opts.template)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(env, true)
	if err != nil {
		return err
	}

	outputs, err := outputPaths(inputs, opts.output, cfg.OutputDir, "."+tmpl.String()+".md")
	if err != nil {
		return err
	}
	if err := ensureWritable(outputs); err != nil {
		return err
	}

	reqs := make([]notes.Request, len(inputs))
	for i, in := range inputs {
		data, err := os.ReadFile(in) // #nosec G304 -- user-provided transcript path
		if err != nil {
			return fmt.Errorf("read transcript: %w", err)
		}
		reqs[i] = notes.Request{Transcript: string(data), Template: tmpl}
	}

	// === SETUP ===

	if opts.model != "" {
		cfg.OpenAI.Model = opts.model
	}
	if opts.fallbackSet {
		cfg.OpenAI.FallbackModel = opts.fallbackModel
	}

	rt, err := newRuntime(env, cfg)
	if err != nil {
		return err
	}
	gen := env.GeneratorFactory.NewGenerator(cfg, rt)

	// === GENERATION ===

	fmt.Fprintf(env.Stderr, "Generating %d %s note(s) with %s...\n", len(reqs), tmpl, cfg.OpenAI.Model)
	results, err := notes.GenerateAll(ctx, gen, reqs, clampParallel(opts.parallel, notes.MaxRecommendedParallel), progress(env, "note"))
	if err != nil {
		return err
	}

	for i, note := range results {
		if note.UsedFallback {
			fmt.Fprintf(env.Stderr, "Note: %s was generated by the fallback model %s\n", inputs[i], note.Model)
		}
		if err := writeOutput(outputs[i], note.Content); err != nil {
			return err
		}
		fmt.Fprintf(env.Stderr, "Wrote %s\n", outputs[i])
	}
	return nil
}

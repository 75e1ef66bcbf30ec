package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/alnah/go-medscribe/internal/apierr"
	"github.com/alnah/go-medscribe/internal/health"
	"github.com/alnah/go-medscribe/internal/retry"
)

// classifyOptions holds the raw failure fields given on the command line.
type classifyOptions struct {
	status    int
	name      string
	code      string
	requestID string
	asJSON    bool
}

// ClassifyCmd creates the classify command.
// The env parameter provides injectable dependencies for testing.
func ClassifyCmd(env *Env) *cobra.Command {
	var opts classifyOptions

	cmd := &cobra.Command{
		Use:   "classify <message>",
		Short: "Classify a raw AI service failure",
		Long: `Classify a raw AI service failure into an error code.

Prints the clinician-facing message with troubleshooting steps, the category,
whether the failure is worth retrying, and the recommended retry policy.`,
		Example: `  medscribe classify --status 429 "Too Many Requests"
  medscribe classify --code ETIMEDOUT "socket hang up"
  medscribe classify --name AccessDeniedException "not authorized" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(env, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVar(&opts.status, "status", 0, "HTTP status code of the failure")
	cmd.Flags().StringVar(&opts.name, "name", "", "Exception or error type name (e.g., ThrottlingException)")
	cmd.Flags().StringVar(&opts.code, "code", "", "Errno-style code (e.g., ETIMEDOUT, ENOTFOUND)")
	cmd.Flags().StringVar(&opts.requestID, "request-id", "", "Provider request ID, kept as metadata")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")

	return cmd
}

// runClassify classifies one failure and prints the diagnosis.
func runClassify(env *Env, message string, opts classifyOptions) error {
	raw := apierr.RawFailure{
		StatusCode: opts.status,
		Name:       opts.name,
		Code:       opts.code,
		Message:    message,
	}
	if opts.requestID != "" {
		raw.Metadata = &apierr.Metadata{RequestID: opts.requestID}
	}

	se := apierr.ClassifyFailure(raw)
	policy := retry.RecommendedConfig(se.Code)

	if opts.asJSON {
		return writeJSON(env, health.NewClassifyResponse(se, policy))
	}

	fmt.Fprintln(env.Stdout, apierr.FormatForUser(se))
	fmt.Fprintln(env.Stdout)
	fmt.Fprintf(env.Stdout, "Category:  %s\n", se.Category)
	fmt.Fprintf(env.Stdout, "Retryable: %s\n", yesNo(se.Retryable))
	if se.Retryable {
		fmt.Fprintf(env.Stdout, "Policy:    %s\n", describePolicy(policy))
	}
	return nil
}

// PolicyCmd creates the policy command.
// The env parameter provides injectable dependencies for testing.
func PolicyCmd(env *Env) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "policy [CODE]",
		Short: "Show recommended retry policies",
		Long: `Show the recommended retry policy for an error code.

Without a code, lists every code with its category, whether it is retried,
and its policy.`,
		Example: `  medscribe policy
  medscribe policy RATE_LIMIT_EXCEEDED`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := ""
			if len(args) == 1 {
				code = args[0]
			}
			return runPolicy(env, code, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the policy as JSON")

	return cmd
}

// runPolicy prints one code's policy, or a table of all of them.
func runPolicy(env *Env, code string, asJSON bool) error {
	if code != "" {
		c, err := apierr.ParseCode(strings.ToUpper(code))
		if err != nil {
			return err
		}
		policy := retry.RecommendedConfig(c)
		if asJSON {
			return writeJSON(env, health.NewPolicyBody(policy))
		}
		fmt.Fprintf(env.Stdout, "%s (%s, retryable: %s)\n", c, c.Category(), yesNo(c.Retryable()))
		fmt.Fprintln(env.Stdout, describePolicy(policy))
		return nil
	}

	if asJSON {
		all := make(map[apierr.Code]health.PolicyBody)
		for _, c := range apierr.Codes() {
			all[c] = health.NewPolicyBody(retry.RecommendedConfig(c))
		}
		return writeJSON(env, all)
	}

	tw := tabwriter.NewWriter(env.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tCATEGORY\tRETRY\tPOLICY")
	for _, c := range apierr.Codes() {
		policy := "-"
		if c.Retryable() {
			policy = describePolicy(retry.RecommendedConfig(c))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c, c.Category(), yesNo(c.Retryable()), policy)
	}
	return tw.Flush()
}

// describePolicy renders cfg on one line.
func describePolicy(cfg retry.Config) string {
	return fmt.Sprintf("max %d retries, base %s, cap %s, x%g, jitter < %s",
		cfg.MaxRetries, cfg.BaseDelay, cfg.MaxDelay, cfg.ExponentialBase, cfg.JitterMax)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// writeJSON prints v as indented JSON on stdout.
func writeJSON(env *Env, v any) error {
	enc := json.NewEncoder(env.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

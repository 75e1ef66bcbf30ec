package cli

import (
	"github.com/spf13/cobra"

	"github.com/alnah/go-medscribe/internal/breaker"
	"github.com/alnah/go-medscribe/internal/health"
)

// ServeCmd creates the serve command.
// The env parameter provides injectable dependencies for testing.
func ServeCmd(env *Env) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP diagnostics and notes API",
		Long: `Run the HTTP server.

Endpoints:
  GET  /health        circuit breaker states (503 while any is open)
  GET  /metrics       Prometheus metrics
  POST /v1/classify   classify a raw failure
  POST /v1/notes      generate a note through breaker and fallback

The server stops gracefully on SIGINT or SIGTERM.`,
		Example: `  medscribe serve
  medscribe serve --addr 127.0.0.1:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, env, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")

	return cmd
}

// runServe wires the generator and transcriber breakers into the HTTP server.
func runServe(cmd *cobra.Command, env *Env, addr string) error {
	cfg, err := loadConfig(env, true)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	rt, err := newRuntime(env, cfg)
	if err != nil {
		return err
	}
	gen := env.GeneratorFactory.NewGenerator(cfg, rt)
	tr := env.TranscriberFactory.NewTranscriber(cfg, rt)

	breakers := append([]*breaker.Breaker{}, gen.Breakers()...)
	breakers = append(breakers, tr.Breaker())

	opts := []health.Option{
		health.WithBreakers(breakers...),
		health.WithGenerator(gen),
		health.WithLogger(rt.Logger),
	}
	if env.Registry != nil {
		opts = append(opts, health.WithGatherer(env.Registry))
	}

	srv := health.NewServer(addr, opts...)
	rt.Logger.Info("serving", "addr", addr, "model", cfg.OpenAI.Model, "fallback_model", cfg.OpenAI.FallbackModel)
	return srv.Run(cmd.Context())
}

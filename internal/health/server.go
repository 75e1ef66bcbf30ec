// Package health serves breaker status, Prometheus metrics and the note
// generation API over HTTP.
package health

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alnah/go-medscribe/internal/apierr"
	"github.com/alnah/go-medscribe/internal/breaker"
	"github.com/alnah/go-medscribe/internal/notes"
)

// Server timeouts. Write timeout covers a full note generation with retries.
const (
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 10 * time.Minute
	shutdownTimeout   = 15 * time.Second

	// maxBodyBytes bounds request bodies; transcripts above the token limit
	// are rejected well before this.
	maxBodyBytes = 2 << 20
)

// Server provides HTTP endpoints for health monitoring and note generation.
type Server struct {
	breakers   []*breaker.Breaker
	generator  notes.Generator
	classifier *apierr.Classifier
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithBreakers adds breakers reported by /health.
func WithBreakers(bs ...*breaker.Breaker) Option {
	return func(s *Server) {
		s.breakers = append(s.breakers, bs...)
	}
}

// WithGenerator enables POST /v1/notes.
func WithGenerator(g notes.Generator) Option {
	return func(s *Server) {
		s.generator = g
	}
}

// WithClassifier sets the classifier behind POST /v1/classify.
func WithClassifier(c *apierr.Classifier) Option {
	return func(s *Server) {
		if c != nil {
			s.classifier = c
		}
	}
}

// WithGatherer sets the registry exposed on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a server listening on addr.
func NewServer(addr string, opts ...Option) *Server {
	s := &Server{
		classifier: apierr.NewClassifier(),
		gatherer:   prometheus.DefaultGatherer,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("POST /v1/classify", s.handleClassify)
	mux.HandleFunc("POST /v1/notes", s.handleNotes)
	return s.withRequestID(mux)
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Stop.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and stops it when ctx is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// withRequestID tags each request with an X-Request-ID and logs it.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("request served",
			"method", r.Method, "path", r.URL.Path, "request_id", id, "duration", time.Since(start))
	})
}

// Package server provides the HTTP API for kangae.
package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kangae/internal/config"
	"github.com/hyperjump/kangae/internal/generate"
	"github.com/hyperjump/kangae/internal/index"
	"github.com/hyperjump/kangae/internal/metrics"
	"github.com/hyperjump/kangae/internal/models"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// TextEmbedder embeds texts as-is in one upstream call.
type TextEmbedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// Completer runs a chat completion across the configured model candidates.
type Completer interface {
	Complete(ctx context.Context, p generate.Prompt) (*generate.Completion, error)
}

// Synthesizer turns items into a themes/connections/questions result.
type Synthesizer interface {
	Synthesize(ctx context.Context, items []models.InputItem, guidance string) (*models.SynthesisResponse, error)
}

// Deps are the components the handlers call into. Index may be nil, in which case
// the vector-store routes are not mounted.
type Deps struct {
	Embedder    TextEmbedder
	Chain       Completer
	Synthesizer Synthesizer
	Index       *index.Service
	Metrics     *metrics.Collector
}

// Server is the HTTP server for the kangae API.
type Server struct {
	deps   Deps
	config *config.Config
	logger *zap.Logger
	server *http.Server
	cancel context.CancelFunc
}

// NewServer creates a server with the given dependencies. The listener is not opened
// until Start; Start and Stop may be called from different goroutines.
func NewServer(cfg *config.Config, deps Deps, logger *zap.Logger) *Server {
	s := &Server{
		deps:   deps,
		config: cfg,
		logger: logger.With(zap.String("component", "server")),
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: s.Router(ctx),
	}
	return s
}

// Router builds the handler tree. ctx bounds background work such as limiter cleanup.
func (s *Server) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware(s.deps.Metrics))
	if s.config.Server.RateLimitRPS > 0 {
		r.Use(rateLimiter(ctx, s.config.Server.RateLimitRPS, s.config.Server.RateLimitBurst, s.logger))
	}
	if len(s.config.Server.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: s.config.Server.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", secretHeader, middleware.RequestIDHeader},
		}).Handler)
	}

	r.Get("/health", s.handleHealth)
	if s.config.Metrics.EnabledOrDefault() && s.deps.Metrics != nil {
		r.Handle(s.config.Metrics.Path, s.deps.Metrics.Handler())
	}
	if s.config.Server.DebugEndpoints {
		r.Get("/debug/secret", s.handleDebugSecret)
		r.Get("/debug/hf", s.handleDebugHF)
	}

	r.Group(func(r chi.Router) {
		if s.config.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.config.Server.RequestTimeout))
		}
		r.Use(requireSecret(s.config.Auth.SharedSecret, s.logger))

		r.Post("/debug/hf-smoke", s.handleHFSmoke)
		r.Post("/embed", s.handleEmbed)
		r.Post("/synthesize", s.handleSynthesize)
		if s.deps.Index != nil {
			r.Post("/embed/upsert", s.handleUpsert)
			r.Post("/embed/get", s.handleGet)
			r.Post("/embed/delete", s.handleDelete)
			r.Post("/search", s.handleSearch)
			r.Post("/similar", s.handleSimilar)
		}
	})
	return r
}

// Start starts the HTTP server and blocks until it stops. After Stop it returns
// http.ErrServerClosed.
func (s *Server) Start() error {
	secret := strings.TrimSpace(s.config.Auth.SharedSecret)
	s.logger.Info("shared secret",
		zap.Int("length", len(secret)),
		zap.String("sha256_12", SecretFingerprint(secret)))

	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server and its background work.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	return s.server.Shutdown(ctx)
}

// SecretFingerprint returns the first 12 hex characters of the secret's SHA-256,
// or "EMPTY" when no secret is set.
func SecretFingerprint(secret string) string {
	if secret == "" {
		return "EMPTY"
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])[:12]
}

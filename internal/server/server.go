// Package server exposes the OAuth flow and the cover-letter workflow over
// HTTP. Handlers stay thin: decode, dispatch to a service, map the error.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-coverbot/internal/aggregate"
	"github.com/spigell/hh-coverbot/internal/entity"
	"github.com/spigell/hh-coverbot/internal/generation"
	"github.com/spigell/hh-coverbot/internal/headhunter"
	"github.com/spigell/hh-coverbot/internal/storage"
	"github.com/spigell/hh-coverbot/internal/token"
)

// Authorizer is the slice of the token manager the HTTP layer needs.
type Authorizer interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*entity.AuthTokens, error)
	SaveTokens(ctx context.Context, subject string, tokens *entity.AuthTokens) error
}

// Generator runs the cover-letter workflow.
type Generator interface {
	Generate(ctx context.Context, gctx *entity.GenerationContext) (*entity.ResponseToVacancy, error)
	Regenerate(ctx context.Context, req generation.RegenerateRequest) (*entity.ResponseToVacancy, error)
}

// PlatformClient is everything the handlers do against the platform API on
// behalf of one subject.
type PlatformClient interface {
	aggregate.API
	GetMe(ctx context.Context) (*headhunter.MePayload, error)
	GetResumes(ctx context.Context) ([]*headhunter.ResumePayload, error)
	ApplyToVacancy(ctx context.Context, resumeID, vacancyID, message string) error
}

// ClientFactory builds a platform client acting for one subject. Clients are
// per-subject because every call carries that subject's access token.
type ClientFactory func(subject string) PlatformClient

type Server struct {
	auth     Authorizer
	signer   *token.StateSigner
	workflow Generator
	users    storage.UserRepository
	clients  ClientFactory
	rules    map[string]string
	logger   *zap.Logger
}

// New wires the HTTP layer. users may be nil when running without a database;
// the callback then skips profile bootstrapping.
func New(auth Authorizer, signer *token.StateSigner, workflow Generator,
	users storage.UserRepository, clients ClientFactory, rules map[string]string, logger *zap.Logger,
) *Server {
	return &Server{
		auth:     auth,
		signer:   signer,
		workflow: workflow,
		users:    users,
		clients:  clients,
		rules:    rules,
		logger:   logger,
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /auth/url", s.handleAuthURL)
	mux.HandleFunc("GET /auth/callback", s.handleAuthCallback)

	mux.HandleFunc("POST /ai/generate", s.handleGenerate)
	mux.HandleFunc("POST /ai/regenerate", s.handleRegenerate)
	mux.HandleFunc("POST /ai/submit", s.handleSubmit)

	return mux
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("http server started", zap.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	}
}

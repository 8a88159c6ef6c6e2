package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IcensRAGHomework/rag1-Kllin0219/config"
	"github.com/IcensRAGHomework/rag1-Kllin0219/internal/agent"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const apiKeyHeader = "X-API-Key"

type Server struct {
	agent  agent.Exercises
	store  *agent.SessionStore
	port   int
	logger zerolog.Logger
	config *config.Config
}

func NewServer(ag agent.Exercises, store *agent.SessionStore, logger zerolog.Logger, cfg *config.Config) *Server {
	return &Server{
		agent:  ag,
		store:  store,
		port:   cfg.ServerPort,
		logger: logger,
		config: cfg,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.apiKeyMiddleware)

			r.Post("/hw01", s.handleHW01)
			r.Post("/hw02", s.handleHW02)
			r.Post("/hw03", s.handleHW03)
			r.Post("/hw04", s.handleHW04)
			r.Post("/demo", s.handleDemo)
			r.Post("/chat", s.handleChat)
			r.Get("/chat", s.handleListSessions)
			r.Get("/chat/{id}", s.handleGetSession)
			r.Delete("/chat/{id}", s.handleDeleteSession)
		})
	})

	return r
}

func (s *Server) Start() error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Routes(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.cleanupSessions(ctx)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		s.logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Int("port", s.port).Msg("starting API server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) cleanupSessions(ctx context.Context) {
	maxAge := s.config.SessionMaxAge
	if maxAge <= 0 {
		return
	}

	ticker := time.NewTicker(maxAge / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.store.Cleanup(maxAge); n > 0 {
				s.logger.Info().Int("removed", n).Msg("expired sessions removed")
			}
		}
	}
}

func (s *Server) apiKeyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.config.ValidateAPIKey(r.Header.Get(apiKeyHeader)) {
			s.writeError(w, "invalid API key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("request_id", middleware.GetReqID(r.Context())).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		}()

		next.ServeHTTP(ww, r)
	})
}

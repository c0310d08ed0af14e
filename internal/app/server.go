package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/markdave123-py/Examina/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/Examina/internal/api/middlewares"
	"github.com/markdave123-py/Examina/internal/config"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, exams *handlers.ExamHandler, ai *handlers.AIHandler, log *zap.Logger) *Server {
	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, exams, ai, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpSrv, log: log}
}

// NewRouter registers the API. Synchronous extraction runs without the
// request timeout since it paces and retries completion calls.
func NewRouter(cfg *config.Config, exams *handlers.ExamHandler, ai *handlers.AIHandler, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appMiddleware.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(appMiddleware.JWTMiddleware(cfg.JWTSecret))

		api.Post("/exams/extract", exams.Extract)

		api.Group(func(timed chi.Router) {
			timed.Use(middleware.Timeout(60 * time.Second))
			timed.Post("/exams/from-document", exams.CreateFromDocument)
			timed.Get("/exams", exams.List)
			timed.Get("/exams/{id}", exams.Get)

			timed.Get("/ai/status", ai.Status)
			timed.Post("/ai/models/refresh", ai.Refresh)
		})
	})

	return r
}

// Start runs the HTTP server until Shutdown.
func (s *Server) Start() error {
	s.log.Info("http.listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http.shutdown")
	return s.httpServer.Shutdown(ctx)
}

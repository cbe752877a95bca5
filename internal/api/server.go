// Package api is the localhost HTTP surface the presentational UI consumes.
// It carries no workflow logic of its own: handlers translate UI intents into
// store/workflow calls and workflow state back into JSON.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"

	"github.com/convertly/convertly-agent/internal/conversion"
	"github.com/convertly/convertly-agent/internal/history"
	"github.com/convertly/convertly-agent/internal/preview"
	"github.com/convertly/convertly-agent/internal/store"
)

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port          int
	AllowedOrigin string
	Session       *store.SessionStore
	Prefs         *store.PrefsStore
	Workflow      *conversion.Workflow
	History       *history.View
	Preview       *preview.Server
	Logger        *slog.Logger
	StartTime     time.Time
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	// The UI runs in a browser on a different localhost origin.
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{cfg.AllowedOrigin}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      cors(router),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Package server exposes run status over HTTP for monitoring. It serves
// /ping and the last run's per-feed results; delivery itself never depends
// on the server being up.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/rest/logger"
	"github.com/go-pkgz/routegroup"

	"github.com/feedrelay/feedrelay/pkg/domain"
)

// StatusProvider reports the most recent run, nil before the first run
type StatusProvider interface {
	LastResult() *domain.RunResult
}

// Config holds server configuration
type Config struct {
	Listen  string
	Timeout time.Duration
	Version string
	Debug   bool
}

// Server is the status HTTP server
type Server struct {
	status  StatusProvider
	cfg     Config
	version string

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// New initializes a new server instance
func New(status StatusProvider, cfg Config) *Server {
	s := &Server{
		status: status,
		cfg:    cfg,
		router: routegroup.New(http.NewServeMux()),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	lgr.Printf("[INFO] starting status server on %s", s.cfg.Listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Timeout,
		WriteTimeout: s.cfg.Timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down status server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			lgr.Printf("[WARN] server shutdown error: %v", err)
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("feedrelay", "feedrelay", s.cfg.Version))
	s.router.Use(rest.Ping)
	if s.cfg.Debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}
	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /api/v1/status", s.statusHandler)
}

// statusHandler returns the last run result; 204 before the first run
func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	result := s.status.LastResult()
	if result == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		lgr.Printf("[WARN] failed to encode status: %v", err)
	}
}

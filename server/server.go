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

	"github.com/clipmark/clipmark/pkg/domain"
	"github.com/clipmark/clipmark/pkg/importer"
)

// Server represents HTTP server instance
type Server struct {
	config   ConfigProvider
	sources  SourceStore
	contents ContentStore
	logs     ImportLogStore
	importer Importer
	version  string
	debug    bool

	lock       sync.Mutex
	httpServer *http.Server
	router     *routegroup.Bundle
}

// SourceStore interface for source management operations
type SourceStore interface {
	CreateSource(ctx context.Context, src *domain.ContentSource) error
	GetSource(ctx context.Context, id int64) (*domain.ContentSource, error)
	GetSources(ctx context.Context, userID int64) ([]domain.ContentSource, error)
	UpdateSourceActive(ctx context.Context, sourceID int64, active bool) error
	DeleteSource(ctx context.Context, id int64) error
}

// ContentStore interface for content listing
type ContentStore interface {
	GetContents(ctx context.Context, userID int64, limit, offset int) ([]domain.Content, error)
}

// ImportLogStore interface for the audit trail
type ImportLogStore interface {
	GetImportLogs(ctx context.Context, sourceID int64, limit int) ([]domain.ImportLog, error)
}

// Importer interface for the on-demand import path
type Importer interface {
	ImportFromSource(ctx context.Context, sourceID int64) importer.Result
}

// ConfigProvider provides server configuration
type ConfigProvider interface {
	GetServerConfig() (listen string, timeout time.Duration)
}

// Params holds server dependencies
type Params struct {
	Config   ConfigProvider
	Sources  SourceStore
	Contents ContentStore
	Logs     ImportLogStore
	Importer Importer
	Version  string
	Debug    bool
}

// New initializes a new server instance
func New(p Params) *Server {
	s := &Server{
		config:   p.Config,
		sources:  p.Sources,
		contents: p.Contents,
		logs:     p.Logs,
		importer: p.Importer,
		version:  p.Version,
		debug:    p.Debug,
		router:   routegroup.New(http.NewServeMux()),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Run starts the HTTP server and handles graceful shutdown
func (s *Server) Run(ctx context.Context) error {
	listen, timeout := s.config.GetServerConfig()
	lgr.Printf("[INFO] starting server on %s", listen)

	s.lock.Lock()
	s.httpServer = &http.Server{
		Addr:         listen,
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	}
	s.lock.Unlock()

	go func() {
		<-ctx.Done()
		lgr.Printf("[INFO] shutting down server")
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

// setupMiddleware configures standard middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(rest.AppInfo("clipmark", "clipmark", s.version))
	s.router.Use(rest.Ping)

	if s.debug {
		s.router.Use(logger.New(logger.Log(lgr.Default()), logger.Prefix("[DEBUG]")).Handler)
	}

	s.router.Use(rest.Recoverer(lgr.Default()))
	s.router.Use(rest.Throttle(100))
	s.router.Use(rest.SizeLimit(1024 * 1024)) // 1MB
}

// setupRoutes configures application routes
func (s *Server) setupRoutes() {
	s.router.Mount("/api/v1").Route(func(r *routegroup.Bundle) {
		r.HandleFunc("GET /status", s.statusHandler)

		r.HandleFunc("GET /sources", s.listSourcesHandler)
		r.HandleFunc("POST /sources", s.createSourceHandler)
		r.HandleFunc("GET /sources/{id}", s.getSourceHandler)
		r.HandleFunc("DELETE /sources/{id}", s.deleteSourceHandler)
		r.HandleFunc("POST /sources/{id}/activate", s.activateSourceHandler)
		r.HandleFunc("POST /sources/{id}/deactivate", s.deactivateSourceHandler)
		r.HandleFunc("POST /sources/{id}/import", s.importNowHandler)
		r.HandleFunc("GET /sources/{id}/logs", s.importLogsHandler)

		r.HandleFunc("GET /contents", s.listContentsHandler)
	})
}

// renderJSON sends data as JSON response
func renderJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			lgr.Printf("[ERROR] can't encode response to JSON: %v", err)
		}
	}
}

// renderError sends error response as JSON
func renderError(w http.ResponseWriter, err error, code int) {
	errMsg := "unknown error"
	if err != nil {
		errMsg = err.Error()
	}
	renderJSON(w, code, map[string]string{"error": errMsg})
}

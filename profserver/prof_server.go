/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Package profserver provides an HTTP server exposing pprof endpoints under /debug/pprof/.
// "fwlimit serve" runs it next to the main server when profServer.enabled is set.
package profserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/acronis/go-ratelimit/httpserver/middleware"
	"github.com/acronis/go-ratelimit/log"
	"github.com/acronis/go-ratelimit/service"
)

const readHeaderTimeout = 5 * time.Second

// ProfServer represents HTTP server for profiling. It implements service.Unit interface.
type ProfServer struct {
	URL            string
	HTTPServer     *http.Server
	Logger         log.FieldLogger
	httpServerDone chan struct{}
}

var _ service.Unit = (*ProfServer)(nil)

// New creates a new HTTP server (pprof) for profiling.
func New(cfg *Config, logger log.FieldLogger) *ProfServer {
	router := chi.NewRouter()
	router.Use(middleware.RequestID(), middleware.Logging(logger))
	router.Mount("/debug", chimiddleware.Profiler())

	return &ProfServer{
		URL:            "http://" + cfg.Address,
		HTTPServer:     &http.Server{Addr: cfg.Address, Handler: router, ReadHeaderTimeout: readHeaderTimeout},
		Logger:         logger.With(log.String("address", cfg.Address)),
		httpServerDone: make(chan struct{}),
	}
}

// Start starts the profiling HTTP server in a blocking way.
// A fatal error is sent into fatalError and should be processed outside.
func (s *ProfServer) Start(fatalError chan<- error) {
	defer close(s.httpServerDone)

	s.Logger.Info("starting profiling HTTP server...")
	if err := s.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.Logger.Error("profiling HTTP server error", log.Error(err))
		fatalError <- err
		return
	}
	s.Logger.Info("profiling HTTP server closed")
}

// Stop closes the profiling HTTP server. Profiling requests are never waited for.
func (s *ProfServer) Stop(gracefully bool) error {
	if err := s.HTTPServer.Close(); err != nil {
		s.Logger.Error("profiling HTTP server closing error", log.Error(err))
		return err
	}
	<-s.httpServerDone
	return nil
}

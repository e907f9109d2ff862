// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package web exposes the scan pipeline over HTTP: text extraction and
// matching, spatial detection, redaction and the combined scan report.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"blackout/internal/config"
	"blackout/internal/logging"
	"blackout/internal/scan"

	// Import formatters to register them
	_ "blackout/internal/formatters/csv"
	_ "blackout/internal/formatters/json"
	_ "blackout/internal/formatters/junit"
	_ "blackout/internal/formatters/sarif"
	_ "blackout/internal/formatters/text"
	_ "blackout/internal/formatters/yaml"
)

// multipartOverhead is added to the document cap to size the request body
// limit.
const multipartOverhead = 1 << 20

// defaultMaxUpload applies when the config sets no document cap.
const defaultMaxUpload = 64 << 20

// shutdownTimeout bounds graceful shutdown once the serve context ends.
const shutdownTimeout = 10 * time.Second

// Server is the HTTP front of a Scanner.
type Server struct {
	cfg            *config.Config
	scanner        *scan.Scanner
	options        scan.Options
	logger         *logging.Logger
	metrics        *Metrics
	limiter        *rate.Limiter
	allowedOrigins []string
	maxUpload      int64
	router         chi.Router
}

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// NewServer builds the router around scanner. The scanner is not closed by
// the server.
func NewServer(cfg *config.Config, scanner *scan.Scanner, logger *logging.Logger) (*Server, error) {
	if scanner == nil {
		return nil, errors.New("web: scanner is required")
	}
	if logger == nil {
		logger = logging.Nop()
	}
	opts, err := scan.OptionsFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}

	maxUpload := int64(defaultMaxUpload)
	if cfg.Limits.MaxDocumentBytes > 0 {
		maxUpload = cfg.Limits.MaxDocumentBytes + multipartOverhead
	}

	s := &Server{
		cfg:            cfg,
		scanner:        scanner,
		options:        opts,
		logger:         logger.WithComponent("web"),
		metrics:        NewMetrics(),
		limiter:        newLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		allowedOrigins: cfg.Server.AllowedOrigins,
		maxUpload:      maxUpload,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.instrument)
	r.Use(s.recoverer)
	r.Use(s.cors)

	r.Get("/", s.handleRoot)
	r.Get("/v1/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Route("/v1/text", func(r chi.Router) {
			r.Get("/rules", s.handleRules)
			r.Post("/extract", s.handleExtract)
			r.Post("/match", s.handleMatch)
		})
		r.Route("/redactions", func(r chi.Router) {
			r.Post("/detect", s.handleDetect)
			r.Post("/apply", s.handleApply)
		})
		r.Post("/v1/scan", s.handleScan)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.sendErrorWithStatus(w, r, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.sendErrorWithStatus(w, r, "method not allowed", http.StatusMethodNotAllowed)
	})
	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := s.createSecureServer(s.cfg.Server.Addr)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w\n"+
			"Troubleshooting: check that the port is free and that you may bind to it", srv.Addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// createSecureServer creates an HTTP server with timeouts against slow
// clients. Zero config values fall back to fixed defaults.
func (s *Server) createSecureServer(addr string) *http.Server {
	orDefault := func(d, def time.Duration) time.Duration {
		if d > 0 {
			return d
		}
		return def
	}
	return &http.Server{
		Addr:    addr,
		Handler: s.router,
		// Timeout for reading request headers
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       orDefault(s.cfg.Server.ReadTimeout, 30*time.Second),
		// Redaction of large PDFs can take a while
		WriteTimeout:   orDefault(s.cfg.Server.WriteTimeout, 120*time.Second),
		IdleTimeout:    orDefault(s.cfg.Server.IdleTimeout, 120*time.Second),
		MaxHeaderBytes: 1 << 20,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", zap.Error(err))
	}
}

// sendErrorWithStatus sends a JSON error with a specific HTTP status code
func (s *Server) sendErrorWithStatus(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Detail:    sanitizeUserInput(message, 500),
		RequestID: RequestIDFromContext(r.Context()),
	})
}

// sanitizeUserInput removes control and markup characters from text that is
// echoed back to the client
func sanitizeUserInput(input string, maxLength int) string {
	sanitized := strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		switch r {
		case '<', '>', '"', '\'', '&':
			return -1
		}
		return r
	}, input)

	if len(sanitized) > maxLength {
		sanitized = sanitized[:maxLength] + "..."
	}
	return sanitized
}

// sanitizeFilename keeps the base name of an uploaded file.
func sanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	if i := strings.LastIndex(filename, "/"); i >= 0 {
		filename = filename[i+1:]
	}
	filename = sanitizeUserInput(filename, 255)
	if filename == "" || filename == "." || filename == ".." {
		return "upload"
	}
	return filename
}

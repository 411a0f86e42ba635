// Package review serves images that automatic detection could not resolve
// to a human operator and feeds the operator's numbers back into the
// collector.
package review

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/russross/blackfriday/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed assets/index.md
var indexMarkdown []byte

//go:embed assets/page.html
var pageTemplate string

// Collector is the part of the result collector the review surface drives.
type Collector interface {
	NextManualPending(ctx context.Context) (string, bool)
	ResolveClaimed(name string) (string, bool)
	ApplyManualResult(ctx context.Context, identity string, numbers []int) error
	ReleaseClaim(identity string) bool
	PendingManualCount() int
}

// Config holds server settings.
type Config struct {
	Host string
	Port int
	// WSInterval is how often /ws clients get the pending count.
	WSInterval   time.Duration
	MaxBodyBytes int64
	Version      string
}

// DefaultConfig listens on localhost:8081.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         8081,
		WSInterval:   2 * time.Second,
		MaxBodyBytes: 4 << 10,
	}
}

// Addr returns host:port.
func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

// Server implements the review HTTP surface. It holds no locks of its own;
// the collector's operations are atomic.
type Server struct {
	collector Collector
	cfg       Config
	logger    *slog.Logger
	bundle    *i18n.Bundle
	schema    *jsonschema.Schema
	page      *template.Template
	content   template.HTML
	readFile  func(string) ([]byte, error)
}

// New builds a Server.
func New(c Collector, cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.WSInterval <= 0 {
		cfg.WSInterval = def.WSInterval
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}

	bundle, err := newBundle()
	if err != nil {
		return nil, err
	}
	schema, err := compileSubmissionSchema()
	if err != nil {
		return nil, err
	}
	page, err := template.New("page").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}

	return &Server{
		collector: c,
		cfg:       cfg,
		logger:    logger,
		bundle:    bundle,
		schema:    schema,
		page:      page,
		content:   template.HTML(blackfriday.Run(indexMarkdown)), //nolint:gosec // G203: embedded, trusted markdown
		readFile:  os.ReadFile,
	}, nil
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.indexHandler)
	mux.HandleFunc("GET /image", s.nextImageHandler)
	mux.HandleFunc("POST /image/{identity...}", s.submitHandler)
	mux.HandleFunc("POST /image", s.badPathHandler)
	mux.HandleFunc("/image/", s.badPathHandler)
	mux.HandleFunc("GET /healthz", s.healthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /ws", s.pendingWebSocketHandler)

	return s.requestIDMiddleware(s.loggingMiddleware(metricsMiddleware(mux)))
}

// ListenAndServe serves until ctx is cancelled, then shuts down within
// shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("review server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown review server: %w", err)
	}
	return nil
}

func (s *Server) renderPage(r *http.Request) ([]byte, error) {
	var buf bytes.Buffer
	err := s.page.Execute(&buf, struct {
		Lang    string
		Content template.HTML
	}{Lang: pageLanguage(r), Content: s.content})
	return buf.Bytes(), err
}

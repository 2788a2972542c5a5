// Package httpapi provides the HTTP API for ragd.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/generator"
	"github.com/fyrsmithlabs/ragd/internal/loader"
	"github.com/fyrsmithlabs/ragd/internal/pipeline"
	"github.com/fyrsmithlabs/ragd/internal/vectorstore"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// MaxUploadBytes bounds a single uploaded file.
	MaxUploadBytes int64
}

// Retriever answers questions against a scope.
type Retriever interface {
	Query(ctx context.Context, question, scope string) (*pipeline.QueryResult, error)
}

// Ingestor indexes documents into a scope.
type Ingestor interface {
	IngestFile(ctx context.Context, path, scope string, fresh bool) (*pipeline.IngestResult, error)
	IngestText(ctx context.Context, name, text, scope string, fresh bool) (*pipeline.IngestResult, error)
	Reset(ctx context.Context, scope string) error
}

// Server provides the HTTP endpoints.
type Server struct {
	echo      *echo.Echo
	ingestor  Ingestor
	retriever Retriever
	store     vectorstore.Store
	logger    *zap.Logger
	config    *Config
}

// NewServer creates a new HTTP server.
func NewServer(ingestor Ingestor, retriever Retriever, store vectorstore.Store, logger *zap.Logger, cfg *Config) (*Server, error) {
	if ingestor == nil {
		return nil, fmt.Errorf("ingestor cannot be nil")
	}
	if retriever == nil {
		return nil, fmt.Errorf("retriever cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8000,
		}
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 20 << 20
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:      e,
		ingestor:  ingestor,
		retriever: retriever,
		store:     store,
		logger:    logger,
		config:    cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/upload", s.handleUpload)
	v1.POST("/text", s.handleText)
	v1.POST("/query", s.handleQuery)
	v1.DELETE("/scopes/:scope", s.handleDeleteScope)
	v1.GET("/info", s.handleInfo)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// TextRequest is the request body for POST /api/v1/text.
type TextRequest struct {
	Name  string `json:"name"`
	Text  string `json:"text"`
	Scope string `json:"scope"`
	Fresh bool   `json:"fresh"`
}

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	Question string `json:"question"`
	Scope    string `json:"scope"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// uploadMIMETypes is the allowlist of upload content types per extension.
// Browsers are inconsistent here, so application/octet-stream and an empty
// type are accepted for any supported extension; the extension decides.
var uploadMIMETypes = map[string]bool{
	"text/plain":               true,
	"text/markdown":            true,
	"application/pdf":          true,
	"application/octet-stream": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// handleUpload ingests a multipart file upload. Form fields: file (the
// document), scope (optional), fresh (optional, "true" empties the scope
// first).
func (s *Server) handleUpload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file field is required")
	}

	if fileHeader.Size > s.config.MaxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds %d bytes", s.config.MaxUploadBytes))
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !loader.Supported(ext) {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("unsupported file type %q (supported: %s)", ext, strings.Join(loader.Extensions(), ", ")))
	}

	if mime := fileHeader.Header.Get(echo.HeaderContentType); mime != "" {
		base := strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])
		if !uploadMIMETypes[base] {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("unsupported content type %q", base))
		}
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
	}
	defer src.Close()

	// Stage the upload on disk under its original base name so the loader
	// can dispatch by extension and the source name stays meaningful.
	tmpDir, err := os.MkdirTemp("", "ragd-upload-*")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot stage upload")
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, filepath.Base(fileHeader.Filename))
	dst, err := os.Create(tmpPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot stage upload")
	}
	if _, err := io.Copy(dst, io.LimitReader(src, s.config.MaxUploadBytes+1)); err != nil {
		dst.Close()
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot stage upload")
	}
	dst.Close()

	scope := c.FormValue("scope")
	fresh := strings.EqualFold(c.FormValue("fresh"), "true")

	result, err := s.ingestor.IngestFile(c.Request().Context(), tmpPath, scope, fresh)
	if err != nil {
		return s.mapError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// handleText ingests raw text.
func (s *Server) handleText(c echo.Context) error {
	var req TextRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid text request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text field is required")
	}

	result, err := s.ingestor.IngestText(c.Request().Context(), req.Name, req.Text, req.Scope, req.Fresh)
	if err != nil {
		return s.mapError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// handleQuery answers a question from one scope.
func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}

	result, err := s.retriever.Query(c.Request().Context(), req.Question, req.Scope)
	if err != nil {
		return s.mapError(err)
	}

	return c.JSON(http.StatusOK, result)
}

// handleDeleteScope removes every chunk in the scope.
func (s *Server) handleDeleteScope(c echo.Context) error {
	scope := c.Param("scope")

	if err := s.ingestor.Reset(c.Request().Context(), scope); err != nil {
		return s.mapError(err)
	}

	return c.JSON(http.StatusOK, map[string]string{"scope": scope, "status": "deleted"})
}

// handleInfo reports collection statistics.
func (s *Server) handleInfo(c echo.Context) error {
	info, err := s.store.Info(c.Request().Context())
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, info)
}

// mapError translates pipeline errors onto HTTP status codes. Caller
// mistakes are 400s, upstream generation problems are 502s, everything else
// is a 500.
func (s *Server) mapError(err error) error {
	switch {
	case errors.Is(err, loader.ErrUnsupportedFormat),
		errors.Is(err, loader.ErrEmptyDocument),
		errors.Is(err, vectorstore.ErrInvalidScope),
		errors.Is(err, vectorstore.ErrEmptyChunks):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, generator.ErrMissingAPIKey),
		errors.Is(err, generator.ErrAuth),
		errors.Is(err, generator.ErrModelDeprecated),
		errors.Is(err, generator.ErrGeneration):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Package httpapi exposes the collection store and retrieval pipeline over
// HTTP.
//
// The server uses Echo for routing with standard middleware, serves
// Prometheus metrics at /metrics, and performs graceful shutdown on context
// cancellation.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/collections"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/guardrails"
	"github.com/Sama-ndari/enterprise-rag-chatbot/internal/retrieval"
)

// roleHeader carries the caller's role for collection access decisions.
const roleHeader = "X-Role"

// Server is the HTTP front of the RAG core.
type Server struct {
	echo     *echo.Echo
	store    *collections.Store
	pipeline *retrieval.Pipeline
	answerer *retrieval.Answerer
	policy   guardrails.AccessPolicy
	logger   *zap.Logger
}

// NewServer creates the HTTP server and registers all routes. The access
// policy may be nil, which allows every role.
func NewServer(store *collections.Store, pipeline *retrieval.Pipeline, answerer *retrieval.Answerer, policy guardrails.AccessPolicy, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	if policy == nil {
		policy = guardrails.AllowAll
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		echo:     e,
		store:    store,
		pipeline: pipeline,
		answerer: answerer,
		policy:   policy,
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/v1")
	v1.GET("/collections", s.handleListCollections)
	v1.POST("/collections", s.handleCreateCollection)
	v1.GET("/collections/:name", s.handleGetCollection)
	v1.PATCH("/collections/:name", s.handleUpdateCollection)
	v1.DELETE("/collections/:name", s.handleDeleteCollection)
	v1.POST("/collections/:name/load", s.handleLoadCollection)
	v1.POST("/collections/:name/unload", s.handleUnloadCollection)
	v1.POST("/documents", s.handleIngestDocument)
	v1.POST("/query", s.handleQuery)
}

// Echo returns the underlying Echo instance for registering additional
// routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "ragd"})
}

type createCollectionRequest struct {
	Name        string   `json:"name"`
	VectorDim   int      `json:"vector_dim"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
}

func (s *Server) handleCreateCollection(c echo.Context) error {
	var req createCollectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	if req.VectorDim == 0 {
		req.VectorDim = s.pipeline.EmbedderDimension()
	}
	if err := s.store.EnsureExists(ctx, req.Name, req.VectorDim); err != nil {
		return s.mapError(err)
	}
	if len(req.Tags) > 0 || req.Description != "" {
		update := collections.MetadataUpdate{}
		if len(req.Tags) > 0 {
			update.Tags = &req.Tags
		}
		if req.Description != "" {
			update.Description = &req.Description
		}
		if _, err := s.store.UpdateMetadata(ctx, req.Name, update); err != nil {
			return s.mapError(err)
		}
	}

	md, err := s.store.GetMetadata(ctx, req.Name)
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusCreated, md)
}

func (s *Server) handleListCollections(c echo.Context) error {
	list, err := s.store.List(c.Request().Context())
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleGetCollection(c echo.Context) error {
	md, err := s.store.GetMetadata(c.Request().Context(), c.Param("name"))
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, md)
}

type updateCollectionRequest struct {
	Tags        *[]string `json:"tags,omitempty"`
	Description *string   `json:"description,omitempty"`
}

func (s *Server) handleUpdateCollection(c echo.Context) error {
	var req updateCollectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	md, err := s.store.UpdateMetadata(c.Request().Context(), c.Param("name"), collections.MetadataUpdate{
		Tags:        req.Tags,
		Description: req.Description,
	})
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, md)
}

func (s *Server) handleDeleteCollection(c echo.Context) error {
	if err := s.store.Delete(c.Request().Context(), c.Param("name")); err != nil {
		return s.mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleLoadCollection(c echo.Context) error {
	if err := s.store.Load(c.Request().Context(), c.Param("name")); err != nil {
		return s.mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleUnloadCollection(c echo.Context) error {
	if err := s.store.Unload(c.Request().Context(), c.Param("name")); err != nil {
		return s.mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type ingestRequest struct {
	Collection string         `json:"collection"`
	Text       string         `json:"text"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func (s *Server) handleIngestDocument(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	n, err := s.pipeline.ProcessDocument(c.Request().Context(), req.Collection, retrieval.Document{
		Text:     req.Text,
		Metadata: req.Metadata,
	})
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusAccepted, map[string]int{"chunks": n})
}

type queryRequest struct {
	Question    string   `json:"question"`
	Collections []string `json:"collections"`
	TopK        int      `json:"top_k,omitempty"`
}

type queryResponse struct {
	Answer  string   `json:"answer"`
	Sources []source `json:"sources"`
}

type source struct {
	Collection string  `json:"collection"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
}

func (s *Server) handleQuery(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx := c.Request().Context()
	role := c.Request().Header.Get(roleHeader)
	allowed := make([]string, 0, len(req.Collections))
	for _, name := range req.Collections {
		md, err := s.store.GetMetadata(ctx, name)
		if err != nil {
			if errors.Is(err, collections.ErrNotFound) {
				continue
			}
			return s.mapError(err)
		}
		if !s.policy(role, md.Tags) {
			s.logger.Warn("collection access denied",
				zap.String("collection", name),
				zap.String("role", role),
			)
			continue
		}
		allowed = append(allowed, name)
	}
	if len(allowed) == 0 {
		return echo.NewHTTPError(http.StatusForbidden, "no accessible collections")
	}

	answer, err := s.answerer.Ask(ctx, req.Question, allowed, req.TopK)
	if err != nil {
		return s.mapError(err)
	}

	resp := queryResponse{Answer: answer.Text, Sources: make([]source, len(answer.Sources))}
	for i, r := range answer.Sources {
		resp.Sources[i] = source{Collection: r.Collection, Text: r.Text, Score: r.Score}
	}
	return c.JSON(http.StatusOK, resp)
}

// mapError translates the error taxonomy to HTTP status codes.
func (s *Server) mapError(err error) error {
	switch {
	case errors.Is(err, collections.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, collections.ErrValidation),
		errors.Is(err, retrieval.ErrEmptyDocument),
		errors.Is(err, retrieval.ErrNoCollections):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, retrieval.ErrQuestionRejected):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, collections.ErrRemoteUnavailable),
		errors.Is(err, retrieval.ErrAllCollectionsFailed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, collections.ErrProvision):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("unhandled error", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// Start serves HTTP on the given port and blocks until ctx is cancelled,
// then shuts down gracefully within shutdownTimeout. Returns
// http.ErrServerClosed on graceful shutdown.
func (s *Server) Start(ctx context.Context, port int, shutdownTimeout time.Duration) error {
	addr := fmt.Sprintf(":%d", port)
	errCh := make(chan error, 1)

	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

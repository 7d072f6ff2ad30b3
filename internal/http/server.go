// Package http exposes the incidentd diagnosis pipeline over a REST
// API.
//
// Each diagnosis request is fully processed within its handler: the
// classifier scan, optional cluster collection, runbook search, and
// the single reasoning engine invocation all happen synchronously and
// nothing is retained after the response is written. Reasoning engine
// output crosses a trust boundary here, so severity and category are
// re-validated before they reach clients.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/incidentd/internal/classifier"
	"github.com/fyrsmithlabs/incidentd/internal/cluster"
	"github.com/fyrsmithlabs/incidentd/internal/diagnose"
	"github.com/fyrsmithlabs/incidentd/internal/runbooks"
)

// Server provides HTTP endpoints for incidentd.
type Server struct {
	echo      *echo.Echo
	logger    *zap.Logger
	config    *Config
	diagnoser *diagnose.Service
	store     *runbooks.Store

	// collector is nil when no cluster access is available; cluster
	// endpoints then degrade instead of failing.
	collector *cluster.Collector
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// CORSOrigins lists allowed origins. Empty means allow all.
	CORSOrigins []string

	// RateLimit is requests per second per client IP; Burst is the
	// allowed burst above it.
	RateLimit float64
	Burst     int

	// Version is reported by GET /health.
	Version string

	// LLMConfigured is reported by GET /health so operators can tell
	// mock mode from live mode.
	LLMConfigured bool

	// TopK bounds runbook matches attached to diagnosis responses.
	TopK int
}

// NewServer creates a new HTTP server. collector may be nil.
func NewServer(diagnoser *diagnose.Service, store *runbooks.Store, collector *cluster.Collector, logger *zap.Logger, cfg *Config) (*Server, error) {
	if diagnoser == nil {
		return nil, fmt.Errorf("diagnose service is required")
	}
	if store == nil {
		return nil, fmt.Errorf("runbook store is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8000,
		}
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.TopK <= 0 {
		cfg.TopK = runbooks.DefaultTopK
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
	}))
	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(cfg.RateLimit),
			Burst:     cfg.Burst,
			ExpiresIn: 3 * time.Minute,
		}),
	}))
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
		logger:    logger,
		config:    cfg,
		diagnoser: diagnoser,
		store:     store,
		collector: collector,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/diagnose", s.handleDiagnose)
	v1.POST("/runbooks/suggest", s.handleRunbookSuggest)
	v1.GET("/cluster/health", s.handleClusterHealth)

	// Kept for clients that predate the /api/v1 prefix.
	s.echo.POST("/analyze-error", s.handleDiagnose)
}

// handleHealth returns service liveness plus configured capabilities.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:        "ok",
		Service:       "incidentd",
		Version:       s.config.Version,
		K8sConnected:  s.collector != nil,
		LLMConfigured: s.config.LLMConfigured,
	})
}

// handleDiagnose runs the full diagnosis pipeline for one error report.
func (s *Server) handleDiagnose(c echo.Context) error {
	var req DiagnoseRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid diagnose request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ErrorMessage == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "error_message field is required")
	}
	if req.Namespace == "" {
		req.Namespace = "default"
	}

	ctx := c.Request().Context()
	requestID := shortID()

	classifications := classifier.Classify(req.ErrorMessage)
	snap := s.collectSnapshot(ctx, &req)

	matches, err := s.store.Search(ctx, req.ErrorMessage, s.config.TopK)
	if err != nil {
		s.logger.Warn("runbook search failed", zap.String("request_id", requestID), zap.Error(err))
	}

	analysis := s.diagnoser.Diagnose(ctx, req.ErrorMessage, classifications, snap)

	severity, category := validateAnalysis(analysis, classifications, s.logger.With(zap.String("request_id", requestID)))

	resp := DiagnoseResponse{
		RequestID:       requestID,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		Severity:        severity,
		ErrorCategory:   category,
		RootCause:       analysis.RootCause,
		Explanation:     analysis.Explanation,
		FixCommands:     analysis.FixCommands,
		PreventionTips:  analysis.PreventionTips,
		RelatedRunbooks: s.relatedRunbooks(ctx, matches, analysis.RelatedRunbooks),
	}
	if !snap.Empty() {
		resp.ClusterContext = snap
	}
	if len(classifications) > 0 {
		resp.ClassifiedErrors = classifications
	}

	return c.JSON(http.StatusOK, resp)
}

// collectSnapshot gathers live cluster state for the request. Returns
// nil when no collection was requested or no collector is available.
func (s *Server) collectSnapshot(ctx context.Context, req *DiagnoseRequest) *cluster.Snapshot {
	if s.collector == nil {
		return nil
	}

	var snap *cluster.Snapshot
	if req.PodName != "" {
		snap = s.collector.PodDetails(ctx, req.PodName, req.Namespace)
	}
	if req.DeploymentName != "" {
		snap = s.collector.DeploymentDetails(ctx, req.DeploymentName, req.Namespace, snap)
	}
	if req.IncludeClusterHealth {
		if snap == nil {
			snap = &cluster.Snapshot{Namespace: req.Namespace}
		}
		snap.NamespaceOverview = s.collector.NamespaceOverview(ctx, req.Namespace)
	}
	return snap
}

// validateAnalysis re-checks the engine-reported severity and category
// against the closed sets. Invalid severity falls back to the highest
// classified severity, or MEDIUM when nothing was classified; invalid
// category falls back to Unknown.
func validateAnalysis(analysis *diagnose.Analysis, classifications []classifier.Classification, logger *zap.Logger) (classifier.Severity, classifier.ErrorCategory) {
	severity, ok := classifier.ParseSeverity(analysis.Severity)
	if !ok {
		logger.Warn("engine returned invalid severity, substituting",
			zap.String("severity", analysis.Severity),
		)
		if len(classifications) > 0 {
			severity = classifier.HighestSeverity(classifications)
		} else {
			severity = classifier.SeverityMedium
		}
	}

	category, ok := classifier.ParseCategory(analysis.ErrorCategory)
	if !ok {
		logger.Warn("engine returned unknown category, substituting",
			zap.String("category", analysis.ErrorCategory),
		)
	}

	return severity, category
}

// relatedRunbooks builds the response entries from the handler's own
// search, then merges in runbooks the diagnosis named that the search
// missed. Engine-named filenames are untrusted and only included when
// the corpus actually holds them.
func (s *Server) relatedRunbooks(ctx context.Context, matches []runbooks.Match, named []string) []RelatedRunbook {
	out := make([]RelatedRunbook, 0, len(matches)+len(named))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		seen[m.Filename] = true
		out = append(out, RelatedRunbook{
			Title:          m.Title,
			Filename:       m.Filename,
			RelevanceScore: m.Relevance,
			Summary:        m.Excerpt,
		})
	}
	for _, filename := range named {
		if seen[filename] {
			continue
		}
		seen[filename] = true
		m, ok := s.store.Describe(ctx, filename)
		if !ok {
			s.logger.Warn("diagnosis referenced unknown runbook", zap.String("filename", filename))
			continue
		}
		out = append(out, RelatedRunbook{
			Title:    m.Title,
			Filename: m.Filename,
			Summary:  m.Excerpt,
		})
	}
	return out
}

// handleRunbookSuggest returns runbooks matching the error text without
// invoking the reasoning engine.
func (s *Server) handleRunbookSuggest(c echo.Context) error {
	var req RunbookRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid runbook request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ErrorMessage == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "error_message field is required")
	}
	if req.TopK == 0 {
		req.TopK = runbooks.DefaultTopK
	}

	matches, err := s.store.Search(c.Request().Context(), req.ErrorMessage, req.TopK)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if matches == nil {
		matches = []runbooks.Match{}
	}

	return c.JSON(http.StatusOK, RunbookResponse{
		Query:        req.ErrorMessage,
		Results:      matches,
		TotalMatched: len(matches),
	})
}

// handleClusterHealth reports node, HPA, and quota health across the
// cluster. Without cluster access the status is UNKNOWN, not an error.
func (s *Server) handleClusterHealth(c echo.Context) error {
	resp := ClusterHealthResponse{
		RequestID: shortID(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if s.collector == nil {
		resp.ClusterStatus = "UNKNOWN"
		resp.Warnings = []string{"no cluster access configured"}
		return c.JSON(http.StatusOK, resp)
	}

	health := s.collector.ClusterHealth(c.Request().Context())
	resp.TotalNodes = health.TotalNodes
	resp.ReadyNodes = health.ReadyNodes
	if health.Error != "" {
		resp.Warnings = append(resp.Warnings, health.Error)
	}

	for _, node := range health.Nodes {
		if node.Ready == "True" && !node.MemoryPressure && !node.DiskPressure && !node.PIDPressure {
			continue
		}
		issue := NodeIssue{
			Name:           node.Name,
			Status:         node.Ready,
			MemoryPressure: node.MemoryPressure,
			DiskPressure:   node.DiskPressure,
		}
		if node.MemoryPressure {
			issue.Conditions = append(issue.Conditions, "MemoryPressure")
		}
		if node.DiskPressure {
			issue.Conditions = append(issue.Conditions, "DiskPressure")
		}
		if node.PIDPressure {
			issue.Conditions = append(issue.Conditions, "PIDPressure")
		}
		resp.NodeIssues = append(resp.NodeIssues, issue)
	}

	switch {
	case health.TotalNodes == 0:
		resp.ClusterStatus = "UNKNOWN"
	case health.ReadyNodes == 0:
		resp.ClusterStatus = "CRITICAL"
	case health.ReadyNodes < health.TotalNodes || len(resp.NodeIssues) > 0:
		resp.ClusterStatus = "DEGRADED"
	default:
		resp.ClusterStatus = "HEALTHY"
	}

	return c.JSON(http.StatusOK, resp)
}

// shortID returns a compact request correlation id.
func shortID() string {
	return uuid.NewString()[:8]
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

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

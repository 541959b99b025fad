// Package server is the protocol executor: it accepts evaluation requests as
// A2A messages over JSON-RPC, runs them through the orchestrator and returns
// or streams the result.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"finbench/evaluation/orchestrator"
	"finbench/internal/a2a"
	"finbench/internal/logging"
	"finbench/internal/observability"
)

// Evaluator runs evaluation requests.
type Evaluator interface {
	Validate(req orchestrator.Request) error
	Run(ctx context.Context, req orchestrator.Request, observer orchestrator.Observer) (*orchestrator.Report, error)
}

// Config configures the HTTP surface.
type Config struct {
	PublicURL      string
	AllowedOrigins []string
	RequestTimeout time.Duration
	Debug          bool
}

// Server routes HTTP requests to the evaluator.
type Server struct {
	evaluator Evaluator
	card      a2a.AgentCard
	cfg       Config
	logger    logging.Logger
	metrics   *observability.MetricsCollector
	tracer    *observability.TracerProvider
	engine    *gin.Engine
	started   time.Time
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) { s.logger = logging.OrNop(logger) }
}

// WithMetrics exposes the collector at /metrics.
func WithMetrics(m *observability.MetricsCollector) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTracer sets the tracer provider for request spans.
func WithTracer(tp *observability.TracerProvider) Option {
	return func(s *Server) { s.tracer = tp }
}

// New builds the server and its routes.
func New(evaluator Evaluator, cfg Config, opts ...Option) *Server {
	s := &Server{
		evaluator: evaluator,
		card:      NewAgentCard(cfg.PublicURL),
		cfg:       cfg,
		logger:    logging.NewComponentLogger("ProtocolExecutor"),
		tracer:    observability.NoopTracerProvider(),
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(s.loggingMiddleware())

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Log-Id"}
	corsConfig.ExposeHeaders = []string{"X-Log-Id"}
	engine.Use(cors.New(corsConfig))

	engine.GET(a2a.WellKnownCardPath, s.handleCard)
	engine.GET("/.well-known/agent.json", s.handleCard)
	engine.GET("/healthz", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	engine.POST("/", s.handleRPC)

	s.engine = engine
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Card returns the advertised agent card.
func (s *Server) Card() a2a.AgentCard {
	return s.card
}

func (s *Server) handleCard(c *gin.Context) {
	c.JSON(http.StatusOK, s.card)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"agent":   s.card.Name,
		"version": s.card.Version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"fuellog/internal/cache"
	"fuellog/internal/log"
	"fuellog/internal/middleware/ratelimit"
	"fuellog/internal/middleware/security"
	"fuellog/internal/middleware/trace"
	"fuellog/internal/services"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 120 * time.Second

	readyCheckTimeout = 5 * time.Second
)

type Server struct {
	http.Server

	svc       *services.FuelService
	summaries *cache.SummaryCache
	logger    *log.Logger
	reqLogger *log.StructuredLogger
	started   time.Time
	now       func() time.Time

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	shutdownOnce sync.Once
}

type ServerOption func(*Server)

// WithRateLimiter throttles mutating requests. Without it no limit applies.
func WithRateLimiter(l *ratelimit.Limiter) ServerOption {
	return func(s *Server) { s.rateLimiter = l }
}

// WithSummaryCache exposes the cache size on /readyz and /metrics.
func WithSummaryCache(c *cache.SummaryCache) ServerOption {
	return func(s *Server) { s.summaries = c }
}

func WithLogger(l *log.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, svc *services.FuelService, opts ...ServerOption) *Server {
	s := &Server{
		svc:              svc,
		started:          time.Now(),
		now:              time.Now,
		securityDetector: security.NewDetector(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.DefaultConfig())
	}
	s.reqLogger = log.NewStructuredLogger(s.logger)
	s.traceMiddleware = trace.New(func(r *http.Request, c trace.Completion) {
		s.reqLogger.LogHTTPEnd(r.Context(), r, c.StatusCode, c.Duration.Milliseconds(), ratelimit.ClientIP(r))
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /vehicles", s.handleListVehicles)
	mux.HandleFunc("POST /vehicles", s.handleCreateVehicle)
	mux.HandleFunc("GET /vehicles/{id}", s.handleGetVehicle)
	mux.HandleFunc("DELETE /vehicles/{id}", s.handleDeleteVehicle)

	mux.HandleFunc("GET /vehicles/{id}/records", s.handleListRecords)
	mux.HandleFunc("POST /vehicles/{id}/records", s.handleCreateRecord)
	mux.HandleFunc("GET /records/{id}", s.handleGetRecord)
	mux.HandleFunc("PUT /records/{id}", s.handleUpdateRecord)
	mux.HandleFunc("DELETE /records/{id}", s.handleDeleteRecord)

	mux.HandleFunc("GET /vehicles/{id}/summary", s.handleSummary)
	mux.HandleFunc("GET /vehicles/{id}/export", s.handleExport)
	mux.HandleFunc("POST /vehicles/{id}/import", s.handleImport)
	mux.HandleFunc("POST /vehicles/{id}/recompute", s.handleRecompute)

	mux.HandleFunc("POST /solve", s.handleSolve)

	var handler http.Handler = mux
	if s.rateLimiter != nil {
		handler = s.rateLimiter.Middleware(handler)
	}
	handler = s.securityDetector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.RequestIDMiddleware(trace.RequestID)(handler)
	handler = log.Middleware(s.logger)(handler)
	handler = s.traceMiddleware.Handler(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Package http serves the cashbook JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cashbook/internal/cache"
	applog "cashbook/internal/log"
	"cashbook/internal/middleware/ratelimit"
	"cashbook/internal/middleware/security"
	"cashbook/internal/middleware/trace"
	"cashbook/internal/services"
)

type Options struct {
	Logger *applog.Logger

	// RateLimitRPM caps requests per client and minute; 0 uses the limiter
	// default.
	RateLimitRPM int

	// CacheCleanupInterval controls how often expired cache entries are
	// swept. Defaults to ten minutes.
	CacheCleanupInterval time.Duration
}

// Server wraps http.Server with the API routes and the middleware chain.
type Server struct {
	http.Server

	app      *services.Cashbook
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	caches   *cache.Manager
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. Shutdown releases the background sweepers.
func NewServer(addr string, app *services.Cashbook, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.CacheCleanupInterval <= 0 {
		opts.CacheCleanupInterval = 10 * time.Minute
	}

	s := &Server{
		app:      app,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitRPM}),
		detector: security.NewDetector(),
		caches:   cache.NewManager(),
		now:      time.Now,
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	s.caches.Register("fx_converters", app.Rates().Cache())
	s.caches.Start(context.Background(), opts.CacheCleanupInterval)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)

	mux.HandleFunc("GET /api/aggregate", s.handleAggregate)
	mux.HandleFunc("GET /api/budgets/status", s.handleBudgetStatus)
	mux.HandleFunc("POST /api/budgets", s.handleCreateBudget)
	mux.HandleFunc("PUT /api/budgets/{id}", s.handleUpdateBudget)
	mux.HandleFunc("DELETE /api/budgets/{id}", s.handleDeleteBudget)
	mux.HandleFunc("POST /api/recurring", s.handleCreateRule)
	mux.HandleFunc("POST /api/recurring/{id}/apply", s.handleApplyRule)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/convert", s.handleConvert)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("GET /api/fx", s.handleListRates)
	mux.HandleFunc("PUT /api/fx", s.handlePutRates)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = applog.Middleware(opts.Logger)(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, retry later", Kind: "rate_limited"})
}

func (s *Server) today() time.Time {
	return s.now().UTC()
}

// Shutdown stops the sweepers and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// Metrics exposes the counters of the middleware chain.
type Metrics struct {
	Requests           int64
	ServerErrors       int64
	RateLimitHits      int64
	SuspiciousRequests int64
	ActiveClients      int
}

func (s *Server) Metrics() Metrics {
	t := s.tracer.GetMetrics()
	return Metrics{
		Requests:           t.TotalRequests,
		ServerErrors:       t.ServerErrors,
		RateLimitHits:      s.limiter.Hits(),
		SuspiciousRequests: s.detector.GetMetrics().SuspiciousRequests,
		ActiveClients:      s.limiter.ActiveClients(),
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

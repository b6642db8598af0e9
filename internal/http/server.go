// Package http exposes the forecast service as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"previsioni/internal/cache"
	"previsioni/internal/core"
	"previsioni/internal/engine"
	"previsioni/internal/forecast"
	"previsioni/internal/log"
	"previsioni/internal/recurring"
	"previsioni/internal/services"
)

// ForecastService is the service surface the handlers need.
type ForecastService interface {
	Report(ctx context.Context, req services.ReportRequest) (engine.Report, error)
	Recurring(ctx context.Context, req services.ReportRequest) ([]recurring.Series, error)
	Projection(ctx context.Context, req services.ReportRequest, first *core.Month, months int) ([]forecast.MonthlySummary, error)
	Ready(ctx context.Context) error
	CacheStats() cache.Stats
}

type Server struct {
	http.Server
	service     ForecastService
	logger      *log.Logger
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	prom        *serverMetrics

	shutdownOnce sync.Once
}

// Options tunes the server. Zero values select the defaults.
type Options struct {
	// RequestsPerMinute is the per-client limit on /api routes.
	RequestsPerMinute int
	// RequestTimeout bounds the time a handler may spend on the source.
	RequestTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.RequestsPerMinute <= 0 {
		o.RequestsPerMinute = 60
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 15 * time.Second
	}
	return o
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, service ForecastService, logger *log.Logger, opts Options) *Server {
	opts = opts.withDefaults()
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      opts.RequestTimeout + 5*time.Second,
		},
		service:     service,
		logger:      logger.WithComponent(log.ComponentHTTP),
		rateLimiter: newRateLimiter(opts.RequestsPerMinute),
		metrics:     &securityMetrics{},
	}
	s.prom = newServerMetrics(s)

	api := func(route string, h http.HandlerFunc) {
		timed := http.TimeoutHandler(h, opts.RequestTimeout, `{"error":"request timed out"}`)
		mux.Handle("GET "+route, s.prom.instrument(route, s.withSecurity(timed)))
	}

	api("/api/report", s.handleReport)
	api("/api/recurring", s.handleRecurring)
	api("/api/forecast", s.handleForecast)
	api("/api/categories", s.handleCategories)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.prom.handler())

	s.Handler = log.RequestLogger(logger)(mux)
	return s
}

// withSecurity adds security headers, per-client rate limiting and logging
// of suspicious requests.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := extractClientIP(r)

		if detectSuspiciousRequest(r, s.metrics) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, clientIP, log.FieldPath, r.URL.Path, "user_agent", r.UserAgent())
		}

		if !s.rateLimiter.allow(clientIP, s.metrics) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the rate limiter cleanup and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

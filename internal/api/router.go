// 文件路径: internal/api/router.go
// 模块说明: 组装中间件链与路由。注册顺序即执行顺序，错误处理器是所有失败的唯一出口。
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/creamcroissant/apiserver/internal/api/handler"
	"github.com/creamcroissant/apiserver/internal/api/middleware"
	"github.com/creamcroissant/apiserver/internal/apperr"
	"github.com/creamcroissant/apiserver/internal/cache"
	"github.com/creamcroissant/apiserver/internal/config"
	"github.com/creamcroissant/apiserver/internal/cors"
	"github.com/creamcroissant/apiserver/internal/security"
	"github.com/creamcroissant/apiserver/internal/support/i18n"
)

// APIPrefix is where the business router is mounted.
const APIPrefix = "/api/v1"

// Options carries everything NewRouter composes.
type Options struct {
	Logger *slog.Logger
	Config *config.Config
	Policy *cors.Policy
	I18n   *i18n.Manager
	Info   handler.ServiceInfo

	// MountV1 builds the /api/v1 router; nil mounts handler.NewV1Router.
	MountV1 func(errs apperr.Responder) http.Handler

	// Registry receives the HTTP metrics and backs /metrics; nil uses the
	// process-wide default registry.
	Registry *prometheus.Registry

	// Counters backs the rate limiter; nil creates an in-memory store.
	Counters cache.Counters
}

// NewRouter wires the middleware chain and routes:
//
//	request id → real ip → metrics → access log → language → recover
//	→ security headers → CORS → rate limit → body parsers
//	→ /health | /metrics | /api/v1 → not found
//
// and every failure along the way is answered by the one ErrorHandler.
func NewRouter(opts Options) http.Handler {
	if opts.Config == nil {
		panic("router requires Config")
	}
	if opts.Policy == nil {
		panic("router requires CORS Policy")
	}
	if opts.I18n == nil {
		panic("router requires I18n Manager")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config

	errs := handler.NewErrorHandler(logger, opts.I18n)
	notFound := handler.NotFound(logger, opts.I18n)
	audit := security.NewLoggerRecorder(logger)

	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chiMiddleware.RealIP,
	)

	var metrics *middleware.Metrics
	if cfg.Metrics.Enabled {
		mCfg := middleware.DefaultMetricsConfig()
		if cfg.Metrics.Namespace != "" {
			mCfg.Namespace = cfg.Metrics.Namespace
		}
		if cfg.Metrics.Subsystem != "" {
			mCfg.Subsystem = cfg.Metrics.Subsystem
		}
		if len(cfg.Metrics.Buckets) > 0 {
			mCfg.Buckets = cfg.Metrics.Buckets
		}
		if opts.Registry != nil {
			mCfg.Registerer = opts.Registry
		}
		metrics = middleware.NewMetrics(mCfg)
		r.Use(metrics.Middleware)
	}

	corsCfg := middleware.CORSConfig{
		Policy:    opts.Policy,
		Logger:    logger,
		Errors:    errs,
		MaxAge:    cfg.CORS.MaxAge,
		SkipPaths: cfg.CORS.SkipPaths,
		Audit:     audit,
	}
	if metrics != nil {
		corsCfg.OnDecision = metrics.ObserveCORS
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.StructuredLogger(middleware.LoggingConfig{
			Logger:        logger,
			SlowThreshold: 500 * time.Millisecond,
			SkipPaths:     []string{"/health", "/metrics"},
		}),
		middleware.I18n(opts.I18n),
		middleware.Recover(errs),
		middleware.SecurityHeaders(middleware.SecurityHeadersConfig{
			ContentSecurityPolicy: cfg.Security.ContentSecurityPolicy,
			HSTSSeconds:           cfg.Security.HSTSSeconds,
		}),
		middleware.CORS(corsCfg),
	}

	if rl := cfg.Security.RateLimit; rl.Enabled {
		middlewares = append(middlewares, middleware.RateLimit(middleware.RateLimitConfig{
			Limit:     rl.Limit,
			Window:    rl.Window,
			SkipPaths: rl.SkipPaths,
			Counters:  opts.Counters,
			Audit:     audit,
			Errors:    errs,
		}))
	}

	middlewares = append(middlewares, middleware.BodyParser(middleware.BodyParserConfig{
		MaxBytes:       cfg.Body.MaxBytes,
		ParameterLimit: cfg.Body.ParameterLimit,
		Depth:          cfg.Body.Depth,
		SkipPaths:      cfg.Body.SkipPaths,
		Errors:         errs,
	}))

	r.Use(middlewares...)

	// Set before mounting so the v1 sub-router inherits it.
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	r.Get("/health", handler.Health)

	if metrics != nil {
		var promHandler http.Handler = promhttp.Handler()
		if opts.Registry != nil {
			promHandler = promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})
		}
		if cfg.Metrics.Token != "" {
			r.With(middleware.MetricsGuard(cfg.Metrics.Token, errs)).Handle("/metrics", promHandler)
		} else {
			r.Handle("/metrics", promHandler)
		}
	}

	mountV1 := opts.MountV1
	if mountV1 == nil {
		mountV1 = func(errs apperr.Responder) http.Handler {
			return handler.NewV1Router(errs, opts.Info)
		}
	}
	r.Mount(APIPrefix, mountV1(errs))

	return r
}

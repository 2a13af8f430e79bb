// 文件路径: internal/api/middleware/cors.go
// 模块说明: CORS 准入中间件，基于 rs/cors，拒绝时交给错误处理器。
package middleware

import (
	"log/slog"
	"net/http"

	rscors "github.com/rs/cors"

	"github.com/creamcroissant/apiserver/internal/apperr"
	"github.com/creamcroissant/apiserver/internal/cors"
	"github.com/creamcroissant/apiserver/internal/security"
)

// CORSAllowedMethods and CORSAllowedHeaders are advertised to admitted origins.
var (
	CORSAllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
	CORSAllowedHeaders = []string{"Content-Type", "Authorization"}
)

// CORSConfig wires the admission policy into the chain.
type CORSConfig struct {
	Policy *cors.Policy
	Logger *slog.Logger
	Errors apperr.Responder
	// MaxAge caches preflight results in seconds; 0 leaves it to the browser.
	MaxAge int
	// SkipPaths are exempt from rejection (health checks).
	SkipPaths []string
	// OnDecision observes every decision, e.g. for metrics.
	OnDecision func(cors.Decision)
	// Audit receives one event per rejected origin.
	Audit security.Recorder
}

// CORS admits or rejects the request's Origin. Rejections go to the error
// handler; admitted cross-origin requests get credentialed CORS headers and
// preflights are answered here.
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	policy := config.Policy
	skipPaths := pathSet(config.SkipPaths)

	headers := rscors.New(rscors.Options{
		AllowOriginFunc:  policy.Allowed,
		AllowedMethods:   CORSAllowedMethods,
		AllowedHeaders:   CORSAllowedHeaders,
		AllowCredentials: true,
		MaxAge:           config.MaxAge,
	})

	return func(next http.Handler) http.Handler {
		withHeaders := headers.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip paths are never rejected but admitted origins still get headers.
			if skipPaths[r.URL.Path] {
				withHeaders.ServeHTTP(w, r)
				return
			}

			decision := policy.Admit(r.Header.Get("Origin"))
			logDecision(config.Logger, r, decision)
			if config.OnDecision != nil {
				config.OnDecision(decision)
			}

			if !decision.Allowed {
				if config.Audit != nil {
					config.Audit.Record(r.Context(), security.Event{
						Kind:      security.EventCORSRejected,
						IP:        clientIP(r),
						UserAgent: r.UserAgent(),
						Metadata:  map[string]any{"origin": decision.Origin, "method": r.Method, "path": r.URL.Path},
					})
				}
				config.Errors.ServeError(w, r, apperr.CORSRejected(decision.Origin))
				return
			}
			withHeaders.ServeHTTP(w, r)
		})
	}
}

func logDecision(logger *slog.Logger, r *http.Request, d cors.Decision) {
	attrs := []any{"origin", d.Origin, "reason", string(d.Reason), "method", r.Method, "path", r.URL.Path}
	switch d.Reason {
	case cors.ReasonNoOrigin, cors.ReasonAllowList:
		logger.DebugContext(r.Context(), "cors origin allowed", attrs...)
	case cors.ReasonTrustedSuffix:
		logger.InfoContext(r.Context(), "cors allowing trusted-suffix origin", attrs...)
	default:
		logger.WarnContext(r.Context(), "cors blocked origin", attrs...)
	}
}

// LogCORSPolicy records the effective allow-list once at startup.
func LogCORSPolicy(logger *slog.Logger, policy *cors.Policy) {
	suffix, match := policy.TrustedSuffix()
	logger.Info("cors configured origins", "origins", policy.Origins(), "trusted_suffix", suffix, "suffix_match", string(match))
	if suffix != "" && match == cors.MatchContains {
		logger.Warn("cors trusted suffix uses substring matching; origins containing it anywhere are admitted",
			"trusted_suffix", suffix, "tighten_with", "cors.suffix_match=host_suffix")
	}
}

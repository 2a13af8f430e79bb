// 文件路径: internal/api/middleware/security.go
// 模块说明: 安全中间件，包括安全响应头与按 IP 的限流。
package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/unrolled/secure"

	"github.com/creamcroissant/apiserver/internal/apperr"
	"github.com/creamcroissant/apiserver/internal/cache"
	"github.com/creamcroissant/apiserver/internal/security"
)

// DefaultContentSecurityPolicy 默认 CSP：仅允许同源资源。
const DefaultContentSecurityPolicy = "default-src 'self';base-uri 'self';font-src 'self' https: data:;" +
	"form-action 'self';frame-ancestors 'self';img-src 'self' data:;object-src 'none';" +
	"script-src 'self';script-src-attr 'none';style-src 'self' https: 'unsafe-inline';" +
	"upgrade-insecure-requests"

// SecurityHeadersConfig 安全响应头配置
type SecurityHeadersConfig struct {
	ContentSecurityPolicy string
	HSTSSeconds           int64
}

// DefaultSecurityHeadersConfig 默认配置（HSTS 180 天）
func DefaultSecurityHeadersConfig() SecurityHeadersConfig {
	return SecurityHeadersConfig{
		ContentSecurityPolicy: DefaultContentSecurityPolicy,
		HSTSSeconds:           15552000,
	}
}

// SecurityHeaders 在后续阶段写响应之前设置安全响应头。
func SecurityHeaders(config SecurityHeadersConfig) func(http.Handler) http.Handler {
	if config.ContentSecurityPolicy == "" {
		config.ContentSecurityPolicy = DefaultContentSecurityPolicy
	}

	sec := secure.New(secure.Options{
		ContentSecurityPolicy:         config.ContentSecurityPolicy,
		STSSeconds:                    config.HSTSSeconds,
		STSIncludeSubdomains:          true,
		ForceSTSHeader:                true,
		FrameDeny:                     true,
		CustomFrameOptionsValue:       "SAMEORIGIN",
		ContentTypeNosniff:            true,
		BrowserXssFilter:              true,
		CustomBrowserXssValue:         "0",
		ReferrerPolicy:                "no-referrer",
		CrossOriginOpenerPolicy:       "same-origin",
		CrossOriginResourcePolicy:     "same-origin",
		XDNSPrefetchControl:           "off",
		XPermittedCrossDomainPolicies: "none",
	})

	return func(next http.Handler) http.Handler {
		inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Origin-Agent-Cluster", "?1")
			h.Set("X-Download-Options", "noopen")
			next.ServeHTTP(w, r)
		})
		return sec.Handler(inner)
	}
}

// RateLimitConfig Rate Limit 配置
type RateLimitConfig struct {
	Limit     int                        // 每个窗口的请求数
	Window    time.Duration              // 时间窗口
	KeyFunc   func(*http.Request) string // 获取限流 key 的函数
	SkipPaths []string                   // 跳过限流的路径
	Counters  cache.Counters
	Audit     security.Recorder
	Errors    apperr.Responder
}

// RateLimit 固定窗口限流中间件，超限时交给错误处理器返回 429。
func RateLimit(config RateLimitConfig) func(http.Handler) http.Handler {
	if config.Limit <= 0 {
		config.Limit = 300
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.KeyFunc == nil {
		config.KeyFunc = clientIP
	}
	if config.Counters == nil {
		config.Counters = cache.NewCounters(cache.Options{DefaultWindow: config.Window, Prefix: "ratelimit"})
	}
	limiter, err := security.NewRateLimiter(config.Counters)
	if err != nil {
		panic(err)
	}
	skipPaths := pathSet(config.SkipPaths)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			key := config.KeyFunc(r)
			res, err := limiter.Allow(r.Context(), key, config.Limit, config.Window)
			if err != nil {
				config.Errors.ServeError(w, r, apperr.Internal(fmt.Errorf("rate limit: %w", err)))
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retry := int(time.Until(res.ResetAt).Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				if config.Audit != nil {
					config.Audit.Record(r.Context(), security.Event{
						Kind:      security.EventRateLimited,
						IP:        key,
						UserAgent: r.UserAgent(),
						Metadata:  map[string]any{"path": r.URL.Path, "limit": res.Limit},
					})
				}
				config.Errors.ServeError(w, r, apperr.New(apperr.KindTooManyRequests, "error.rate_limited", nil))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP 依赖 chi 的 RealIP 已改写 RemoteAddr。
func clientIP(r *http.Request) string {
	trimmed := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(trimmed); err == nil {
		return host
	}
	return trimmed
}

func pathSet(paths []string) map[string]bool {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return set
}

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/apiserver/internal/api/handler"
	"github.com/creamcroissant/apiserver/internal/api/requestctx"
	"github.com/creamcroissant/apiserver/internal/apperr"
	"github.com/creamcroissant/apiserver/internal/config"
	"github.com/creamcroissant/apiserver/internal/cors"
	"github.com/creamcroissant/apiserver/internal/support/i18n"
	"github.com/creamcroissant/apiserver/internal/support/logging"
)

func testConfig() *config.Config {
	skip := []string{"/health", "/metrics"}
	return &config.Config{
		CORS: config.CORSConfig{
			Defaults:      cors.DefaultOrigins,
			TrustedSuffix: cors.DefaultTrustedSuffix,
			SuffixMatch:   string(cors.MatchContains),
			SkipPaths:     skip,
		},
		Body: config.BodyConfig{
			MaxBytes:       100 * 1024,
			ParameterLimit: 1000,
			Depth:          5,
			SkipPaths:      skip,
		},
		Security: config.SecurityConfig{
			HSTSSeconds: 15552000,
			RateLimit: config.RateLimitConfig{
				Enabled:   false,
				Limit:     300,
				Window:    time.Minute,
				SkipPaths: skip,
			},
		},
		Metrics: config.MetricsConfig{
			Enabled:   true,
			Namespace: "apiserver",
			Subsystem: "http",
		},
	}
}

type routerFixture struct {
	handler  http.Handler
	registry *prometheus.Registry
}

// echoBody exposes what the body parsers put into the context.
func echoBody(errs apperr.Responder) http.Handler {
	r := chi.NewRouter()
	r.Post("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, ok := requestctx.BodyFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"parsed": ok, "kind": body.Kind, "value": body.Value})
	})
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})
	r.Get("/fail", handler.NewAdapter(errs).Handle(func(http.ResponseWriter, *http.Request) error {
		return apperr.BadRequest("error.invalid_form", nil)
	}))
	return r
}

func newFixture(t *testing.T, cfg *config.Config) routerFixture {
	t.Helper()
	policy, err := cors.NewPolicy(cfg.CORS.PolicyOptions())
	require.NoError(t, err)
	mgr, err := i18n.NewManager(i18n.WithLogger(logging.Discard()))
	require.NoError(t, err)
	reg := prometheus.NewRegistry()

	h := NewRouter(Options{
		Logger:   logging.Discard(),
		Config:   cfg,
		Policy:   policy,
		I18n:     mgr,
		Info:     handler.ServiceInfo{Name: "apiserver", Version: "test"},
		MountV1:  echoBody,
		Registry: reg,
	})
	return routerFixture{handler: h, registry: reg}
}

func (f routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t, testConfig())

	t.Run("plain", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := f.do(req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
	})

	t.Run("admitted origin gets cors headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := f.do(req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("admitted preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		rec := f.do(req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
		assert.Equal(t, http.MethodGet, rec.Header().Get("Access-Control-Allow-Methods"))
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		rec := f.do(req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"UP"}`, rec.Body.String())
	})

	t.Run("security headers", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "SAMEORIGIN", rec.Header().Get("X-Frame-Options"))
		assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
		assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=15552000")
	})
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, testConfig())

	rec := f.do(httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "not_found", body["code"])
	assert.Equal(t, "/does-not-exist", body["path"])
	assert.Equal(t, "Route not found", body["error"])

	t.Run("unknown method on known path", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodDelete, "/health", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("inside api prefix", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", decode(t, rec)["code"])
	})
}

func TestCORS(t *testing.T) {
	f := newFixture(t, testConfig())

	t.Run("no origin", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/does-not-exist", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("default origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader(`{}`))
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Content-Type", "application/json")
		rec := f.do(req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("rejected origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/", nil)
		req.Header.Set("Origin", "https://evil.example")
		req.Header.Set(requestIDHeader, "req-42")
		rec := f.do(req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "cors_rejected", body["code"])
		assert.Equal(t, "Not allowed by CORS", body["error"])
		assert.Equal(t, "req-42", body["request_id"])
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("trusted suffix substring", func(t *testing.T) {
		for _, origin := range []string{
			"https://myapp.azurewebsites.net",
			"https://evil.azurewebsites.net.attacker.com",
		} {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/", nil)
			req.Header.Set("Origin", origin)
			rec := f.do(req)
			assert.Equal(t, http.StatusOK, rec.Code, origin)
			assert.Equal(t, origin, rec.Header().Get("Access-Control-Allow-Origin"))
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/echo", nil)
		req.Header.Set("Origin", "http://127.0.0.1:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		rec := f.do(req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://127.0.0.1:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.MethodPost, rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("decisions counted", func(t *testing.T) {
		rejected := counterValue(t, f.registry, "apiserver_cors_decisions_total", map[string]string{
			"allowed": "false", "reason": string(cors.ReasonNotAllowed),
		})
		assert.GreaterOrEqual(t, rejected, 1.0)
	})
}

func TestCORSExtraOrigins(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.Origins = cors.ParseOrigins("https://app.example.com, https://admin.example.com")
	f := newFixture(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/", nil)
	req.Header.Set("Origin", "https://admin.example.com")
	rec := f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://admin.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSHostSuffixMode(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.SuffixMatch = string(cors.MatchHostSuffix)
	f := newFixture(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/", nil)
	req.Header.Set("Origin", "https://evil.azurewebsites.net.attacker.com")
	assert.Equal(t, http.StatusForbidden, f.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/", nil)
	req.Header.Set("Origin", "https://myapp.azurewebsites.net")
	assert.Equal(t, http.StatusOK, f.do(req).Code)
}

func TestBodyParsing(t *testing.T) {
	f := newFixture(t, testConfig())

	post := func(contentType, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
		return f.do(req)
	}

	t.Run("json", func(t *testing.T) {
		rec := post("application/json", `{"a":1,"b":[true,"x"]}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"parsed":true,"kind":"json","value":{"a":1,"b":[true,"x"]}}`, rec.Body.String())
	})

	t.Run("urlencoded nested", func(t *testing.T) {
		rec := post("application/x-www-form-urlencoded", "user[name]=ana&user[tags][]=a&user[tags][]=b")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t,
			`{"parsed":true,"kind":"urlencoded","value":{"user":{"name":"ana","tags":["a","b"]}}}`,
			rec.Body.String())
	})

	t.Run("urlencoded keeps index order and raw text", func(t *testing.T) {
		rec := post("application/x-www-form-urlencoded", "a[10]=x&a[2]=y&a[]=z&b=%zz&c=1;d=2")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t,
			`{"parsed":true,"kind":"urlencoded","value":{"a":["y","x","z"],"b":"%zz","c":"1;d=2"}}`,
			rec.Body.String())
	})

	t.Run("empty chunked json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader(""))
		req.ContentLength = -1
		req.Header.Set("Content-Type", "application/json")
		rec := f.do(req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"parsed":true,"kind":"json","value":{}}`, rec.Body.String())
	})

	t.Run("other content type passes through", func(t *testing.T) {
		rec := post("text/plain", "hello")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"parsed":false,"kind":"","value":null}`, rec.Body.String())
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := post("application/json", `{"a":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "bad_request", decode(t, rec)["code"])
	})

	t.Run("scalar json rejected", func(t *testing.T) {
		rec := post("application/json", `"just a string"`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unsupported charset", func(t *testing.T) {
		rec := post("application/json; charset=latin1", `{}`)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Equal(t, `Unsupported charset "latin1"`, decode(t, rec)["error"])
	})

	t.Run("too large", func(t *testing.T) {
		rec := post("application/json", `{"a":"`+strings.Repeat("x", 100*1024)+`"}`)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, "payload_too_large", decode(t, rec)["code"])
	})
}

func TestErrorHandlerTerminal(t *testing.T) {
	f := newFixture(t, testConfig())

	t.Run("panic", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/boom", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "internal", body["code"])
		assert.NotContains(t, rec.Body.String(), "kaboom")
	})

	t.Run("handler error", func(t *testing.T) {
		rec := f.do(httptest.NewRequest(http.MethodGet, "/api/v1/fail", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("localized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/", nil)
		req.Header.Set("Origin", "https://evil.example")
		req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")
		rec := f.do(req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Origem não permitida pelo CORS", decode(t, rec)["error"])
		assert.Equal(t, "pt-BR", rec.Header().Get("Content-Language"))
	})
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RateLimit.Enabled = true
	cfg.Security.RateLimit.Limit = 2
	f := newFixture(t, cfg)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = f.do(httptest.NewRequest(http.MethodGet, "/api/v1/", nil))
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "too_many_requests", decode(t, last)["code"])
	assert.NotEmpty(t, last.Header().Get("Retry-After"))

	// liveness stays reachable while limited
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Token = "s3cret"
	f := newFixture(t, cfg)

	f.do(httptest.NewRequest(http.MethodGet, "/api/v1/", nil))

	rec := f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	body := decode(t, rec)
	assert.Equal(t, "unauthorized", body["code"])
	assert.Equal(t, "Unauthorized", body["error"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = f.do(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "apiserver_http_requests_total")
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	f := newFixture(t, cfg)

	assert.Equal(t, http.StatusNotFound, f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)
}

func TestDefaultV1Router(t *testing.T) {
	cfg := testConfig()
	policy, err := cors.NewPolicy(cfg.CORS.PolicyOptions())
	require.NoError(t, err)
	mgr, err := i18n.NewManager()
	require.NoError(t, err)

	h := NewRouter(Options{
		Logger:   logging.Discard(),
		Config:   cfg,
		Policy:   policy,
		I18n:     mgr,
		Info:     handler.ServiceInfo{Name: "apiserver", Version: "1.2.3"},
		Registry: prometheus.NewRegistry(),
	})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"apiserver","version":"1.2.3"}`, rec.Body.String())
}

func TestNewRouterRequiresCollaborators(t *testing.T) {
	assert.Panics(t, func() { NewRouter(Options{}) })
}

const requestIDHeader = "X-Request-ID"

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := true
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					match = false
				}
			}
			if match {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetricsCollectorsRegistered(t *testing.T) {
	f := newFixture(t, testConfig())
	f.do(httptest.NewRequest(http.MethodGet, "/api/v1/", nil))
	n, err := testutil.GatherAndCount(f.registry, "apiserver_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

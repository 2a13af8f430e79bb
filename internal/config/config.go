// 文件路径: internal/config/config.go
// 模块说明: 配置结构定义。
package config

import (
	"log/slog"
	"net"
	"time"

	"github.com/creamcroissant/apiserver/internal/cors"
)

// Config 汇总应用的全部配置。构建完成后只读。
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Log      LogConfig      `mapstructure:"log"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Body     BodyConfig     `mapstructure:"body"`
	Security SecurityConfig `mapstructure:"security"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// HTTPConfig 定义 HTTP 服务配置。
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ListenRetry     time.Duration `mapstructure:"listen_retry"`
}

// ListenAddr 返回 Addr；设置了 PORT 时保留 host 并替换端口。
func (c HTTPConfig) ListenAddr() string {
	if c.Port == "" {
		return c.Addr
	}
	host, _, err := net.SplitHostPort(c.Addr)
	if err != nil {
		host = ""
	}
	return net.JoinHostPort(host, c.Port)
}

// LogConfig 定义日志配置。
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format"`
	AddSource   bool   `mapstructure:"add_source"`
	Environment string `mapstructure:"environment"`
}

// CORSConfig 定义跨域来源白名单。
type CORSConfig struct {
	Defaults      []string `mapstructure:"defaults"`
	Origins       []string `mapstructure:"origins"`
	TrustedSuffix string   `mapstructure:"trusted_suffix"`
	SuffixMatch   string   `mapstructure:"suffix_match"`
	MaxAge        int      `mapstructure:"max_age"`
	SkipPaths     []string `mapstructure:"skip_paths"`
}

// PolicyOptions 将该配置段转换为 cors.Options。
func (c CORSConfig) PolicyOptions() cors.Options {
	return cors.Options{
		Defaults:      c.Defaults,
		Extra:         c.Origins,
		TrustedSuffix: c.TrustedSuffix,
		SuffixMatch:   cors.SuffixMatch(c.SuffixMatch),
	}
}

// BodyConfig 定义请求体解析配置。
type BodyConfig struct {
	MaxBytes       int64    `mapstructure:"max_bytes"`
	ParameterLimit int      `mapstructure:"parameter_limit"`
	Depth          int      `mapstructure:"depth"`
	SkipPaths      []string `mapstructure:"skip_paths"`
}

// SecurityConfig 定义安全响应头与限流配置。
type SecurityConfig struct {
	ContentSecurityPolicy string          `mapstructure:"content_security_policy"`
	HSTSSeconds           int64           `mapstructure:"hsts_seconds"`
	RateLimit             RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig 定义按客户端 IP 的固定窗口限流。
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Limit     int           `mapstructure:"limit"`
	Window    time.Duration `mapstructure:"window"`
	SkipPaths []string      `mapstructure:"skip_paths"`
}

// MetricsConfig 定义 Prometheus 指标配置。
type MetricsConfig struct {
	Enabled   bool      `mapstructure:"enabled"`
	Namespace string    `mapstructure:"namespace"`
	Subsystem string    `mapstructure:"subsystem"`
	Token     string    `mapstructure:"token"`
	Buckets   []float64 `mapstructure:"buckets"`
}

func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

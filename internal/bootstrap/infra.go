// 文件路径: internal/bootstrap/infra.go
// 模块说明: 根据配置构建路由所需的共享组件（CORS 策略、语言包、指标注册表、限流计数器）。
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/creamcroissant/apiserver/internal/cache"
	"github.com/creamcroissant/apiserver/internal/config"
	"github.com/creamcroissant/apiserver/internal/cors"
	"github.com/creamcroissant/apiserver/internal/support/i18n"
)

// Infrastructure bundles the collaborators the HTTP router is built from.
type Infrastructure struct {
	Policy   *cors.Policy
	I18n     *i18n.Manager
	Registry *prometheus.Registry
	Counters cache.Counters
}

// BuildInfrastructure wires default implementations from cfg.
func BuildInfrastructure(cfg *config.Config, logger *slog.Logger) (*Infrastructure, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required / 配置不能为空")
	}
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := cors.NewPolicy(cfg.CORS.PolicyOptions())
	if err != nil {
		return nil, fmt.Errorf("cors policy: %w", err)
	}

	i18nMgr, err := i18n.NewManager(i18n.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("i18n: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	counters := cache.NewCounters(cache.Options{
		Prefix:        "apiserver",
		DefaultWindow: cfg.Security.RateLimit.Window,
	}).Namespace("ratelimit")

	return &Infrastructure{
		Policy:   policy,
		I18n:     i18nMgr,
		Registry: registry,
		Counters: counters,
	}, nil
}

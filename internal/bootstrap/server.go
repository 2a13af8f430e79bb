// 文件路径: internal/bootstrap/server.go
// 模块说明: 构建 http.Server，并提供带重试的端口监听。
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/creamcroissant/apiserver/internal/config"
)

// NewHTTPServer constructs a baseline http.Server with conservative defaults.
func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}
}

// listenFunc is swapped in tests.
var listenFunc = func(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}

// Listen binds addr. While the port is still held by a previous process it
// retries with exponential backoff for up to maxElapsed; any other error
// fails immediately.
func Listen(ctx context.Context, addr string, maxElapsed time.Duration, logger *slog.Logger) (net.Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = 200 * time.Millisecond
	backoffCfg.MaxInterval = 5 * time.Second
	backoffCfg.MaxElapsedTime = maxElapsed

	var ln net.Listener
	attempt := 0
	op := func() error {
		attempt++
		l, err := listenFunc(ctx, addr)
		if err == nil {
			ln = l
			return nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) || maxElapsed <= 0 {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("listen failed, retrying", "addr", addr, "attempt", attempt, "retry_in", wait, "error", err)
	}

	if err := backoff.RetryNotify(op, backoff.WithContext(backoffCfg, ctx), notify); err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return ln, nil
}

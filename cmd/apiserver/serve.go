// 文件路径: cmd/apiserver/serve.go
// 模块说明: serve 子命令：构建依赖、启动 HTTP 服务并在收到信号后优雅退出。
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/creamcroissant/apiserver/internal/api"
	"github.com/creamcroissant/apiserver/internal/api/handler"
	"github.com/creamcroissant/apiserver/internal/api/middleware"
	"github.com/creamcroissant/apiserver/internal/bootstrap"
	"github.com/creamcroissant/apiserver/internal/config"
	"github.com/creamcroissant/apiserver/internal/support/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Level:     cfg.Log.SlogLevel(),
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
		Attrs: []slog.Attr{
			slog.String("service", "apiserver"),
			slog.String("env", cfg.Log.Environment),
		},
	})
	slog.SetDefault(logger)

	infra, err := bootstrap.BuildInfrastructure(cfg, logger)
	if err != nil {
		return err
	}
	middleware.LogCORSPolicy(logger, infra.Policy)

	router := api.NewRouter(api.Options{
		Logger:   logger,
		Config:   cfg,
		Policy:   infra.Policy,
		I18n:     infra.I18n,
		Info:     handler.ServiceInfo{Name: "apiserver", Version: Version},
		Registry: infra.Registry,
		Counters: infra.Counters,
	})

	ln, err := bootstrap.Listen(ctx, cfg.HTTP.ListenAddr(), cfg.HTTP.ListenRetry, logger)
	if err != nil {
		return err
	}

	server := bootstrap.NewHTTPServer(cfg.HTTP, router)
	serveErr := make(chan error, 1)
	go func() {
		defer close(serveErr)
		logger.Info("http server starting", "addr", ln.Addr().String(), "version", Version, "commit", Commit)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			logger.Error("http server failed", "error", err)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down http server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}
	logger.Info("server exited cleanly")
	return nil
}

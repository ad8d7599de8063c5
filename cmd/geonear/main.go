// 程序入口：读取配置、装配依赖并启动 HTTP 服务；路由注册在 internal/api
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"geonear/internal/api"
	"geonear/internal/app"
	"geonear/internal/logger"
	"geonear/internal/metrics"
	"geonear/internal/middleware"
	"geonear/internal/utils"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, l)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// run 在 ctx 取消后优雅退出并返回 nil；启动或监听失败时返回错误，延迟清理先于退出执行
func run(ctx context.Context, l *slog.Logger) error {
	apiBase := utils.EnvString("API_BASE", "/api")
	l.Debug("config_api_base", "base", apiBase)

	a, err := app.FromEnv(ctx, l)
	if err != nil {
		l.Error("app_init_error", "err", err)
		return err
	}
	defer a.Close()

	mux := http.NewServeMux()
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, api.Handler(a.Globe, a.Render)))
	mux.Handle(apiBase+"/metrics", metrics.Handler())

	addr := utils.EnvString("ADDR", ":8080")
	handler := middleware.GuardAdmin([]string{apiBase + "/metrics", apiBase + "/debug/"}, mux)
	handler = logger.AccessMiddleware(l)(handler)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		l.Info("shutdown_begin")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
	}()

	if utils.EnvBool("TLS_ENABLE", false) {
		certPath := utils.EnvString("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt"))
		keyPath := utils.EnvString("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key"))
		if err := utils.EnsureSelfSignedCert(certPath, keyPath, "geonear.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			return err
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		err = s.ListenAndServeTLS(certPath, keyPath)
	} else {
		l.Info("listening", "addr", addr)
		err = s.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("listen_error", "err", err)
		return err
	}
	l.Info("shutdown_done")
	return nil
}

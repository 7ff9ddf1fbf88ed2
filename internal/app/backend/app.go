/**
 * 后端应用
 * @date: 2026.10.18
 * @description: 组装调度器、路由与 HTTP 服务，负责启动与优雅关闭
 */
package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"lss/internal/config"
	"lss/internal/pkg/logger"
)

// App 后端应用
type App struct {
	config     *config.Config
	logger     *logger.LoggerManager
	dispatcher *Dispatcher
	router     *Router
	httpServer *http.Server
	log        *logrus.Entry
}

// NewApp 创建后端应用
func NewApp(cfg *config.Config, lm *logger.LoggerManager) (*App, error) {
	if cfg == nil || cfg.Server == nil {
		return nil, fmt.Errorf("server config is required")
	}
	if lm == nil {
		lm = logger.NewNop()
	}
	log := lm.Component("backend")
	dispatcher := NewDispatcher(cfg, lm, nil)
	router := NewRouter(cfg.Server.Mode, dispatcher, log)

	return &App{
		config:     cfg,
		logger:     lm,
		dispatcher: dispatcher,
		router:     router,
		httpServer: &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      router.Engine(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		log: log,
	}, nil
}

// Handler HTTP 处理器
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Dispatcher 提交调度器
func (a *App) Dispatcher() *Dispatcher {
	return a.dispatcher
}

// Run 启动服务直到 ctx 结束，随后优雅关闭并等待正在执行的提交退出
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.httpServer.Addr, err)
	}
	return a.serve(ctx, ln)
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	a.dispatcher.Start(runCtx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.LogSystemEvent(a.log, "startup", "backend started", logrus.InfoLevel, map[string]interface{}{
		"address": ln.Addr().String(),
	})

	select {
	case err := <-errCh:
		if err != nil {
			// 服务已经不可用，停止调度器并等待当前提交结束
			cancelRun()
			a.dispatcher.Wait()
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.log.WithError(err).Warn("http server shutdown")
	}
	cancelRun()
	a.dispatcher.Wait()
	logger.LogSystemEvent(a.log, "shutdown", "backend stopped", logrus.InfoLevel, nil)
	return nil
}

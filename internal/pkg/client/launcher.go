package client

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"
)

// Launcher 后端未运行时在后台拉起后端进程
type Launcher struct {
	Executable string        // 后端可执行文件，为空时使用当前程序
	Args       []string      // 启动参数，例如 serve --config xxx
	Retries    int           // 拉起后探活次数
	Interval   time.Duration // 探活间隔
	Log        *logrus.Entry

	start func(exe string, args []string) error
}

// EnsureRunning 后端可用时直接返回；否则拉起后端并按重试次数等待其就绪
func (l *Launcher) EnsureRunning(ctx context.Context, c BackendClient) error {
	log := l.Log
	if log == nil {
		lg := logrus.New()
		lg.SetOutput(io.Discard)
		log = logrus.NewEntry(lg)
	}

	if err := c.Ping(ctx); err == nil {
		log.WithField("backend", c.BaseURL()).Debug("backend already running")
		return nil
	}

	exe := l.Executable
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve backend executable: %w", err)
		}
		exe = self
	}

	start := l.start
	if start == nil {
		start = startDetached
	}
	log.WithFields(logrus.Fields{"executable": exe, "args": l.Args}).Info("backend not running, launching")
	if err := start(exe, l.Args); err != nil {
		return fmt.Errorf("launch backend %s: %w", exe, err)
	}

	retries, interval := l.Retries, l.Interval
	if retries < 1 {
		retries = 5
	}
	if interval <= 0 {
		interval = time.Second
	}

	var lastErr error
	for i := 0; i < retries; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		if lastErr = c.Ping(ctx); lastErr == nil {
			log.WithField("attempt", i+1).Info("backend is up")
			return nil
		}
		log.WithField("attempt", i+1).Debug("backend not ready yet")
	}
	return fmt.Errorf("backend did not become ready after %d attempts: %w", retries, lastErr)
}

// startDetached 以独立进程组启动后端，前端退出不影响后端
func startDetached(exe string, args []string) error {
	cmd := exec.Command(exe, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = detachedAttr()
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

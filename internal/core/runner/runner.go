/**
 * 任务进程运行器
 * @date: 2026.10.18
 * @description: 通过 shell 启动任务可执行文件，接入日志引擎，负责超时强杀与终止信号转发，只报告运行结果不修改任务状态
 */
package runner

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"lss/internal/core/logtail"
	"lss/internal/model/task"
)

// Result 一次运行的结果
type Result struct {
	ExitCode *int          // 进程未能启动时为 nil
	TimedOut bool          // 因超时被强制结束
	PID      int           // 子进程 PID
	Duration time.Duration // 运行时长
}

// Option 运行器选项
type Option func(*Runner)

// WithLogEngine 接入日志引擎，流模式引擎会接管子进程的 stdout/stderr
func WithLogEngine(engine *logtail.Engine) Option {
	return func(r *Runner) { r.engine = engine }
}

// WithLogger 设置日志条目
func WithLogger(entry *logrus.Entry) Option {
	return func(r *Runner) { r.log = entry }
}

// WithShell 指定解释命令的 shell，例如 "sh", "-c"；为空时保留默认 shell
func WithShell(shell ...string) Option {
	return func(r *Runner) {
		if len(shell) > 0 && shell[0] != "" {
			r.shell = append([]string(nil), shell...)
		}
	}
}

// WithKillGrace 优雅终止后等待多久仍未退出则强制结束，0 表示一直等待
func WithKillGrace(d time.Duration) Option {
	return func(r *Runner) { r.killGrace = d }
}

// WithEnv 追加子进程环境变量 (KEY=VALUE)
func WithEnv(env ...string) Option {
	return func(r *Runner) { r.env = append(r.env, env...) }
}

// Runner 单个任务的进程运行器，一个实例只运行一次
type Runner struct {
	task      *task.Task
	engine    *logtail.Engine
	log       *logrus.Entry
	shell     []string
	env       []string
	killGrace time.Duration
	waitDelay time.Duration

	proc     atomic.Pointer[os.Process]
	termOnce sync.Once
}

// New 创建运行器
func New(t *task.Task, opts ...Option) *Runner {
	r := &Runner{
		task:      t,
		shell:     defaultShell(),
		killGrace: 10 * time.Second,
		waitDelay: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		r.log = logrus.NewEntry(l)
	}
	r.log = r.log.WithFields(logrus.Fields{"task_id": t.ID(), "task_name": t.Name()})
	return r
}

func defaultShell() []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C"}
	}
	return []string{"sh", "-c"}
}

// Run 启动子进程并等待其退出
// ctx 取消、收到 SIGINT/SIGTERM 时向子进程发送一次 SIGTERM；超时则强制结束
func (r *Runner) Run(ctx context.Context) (Result, error) {
	cfg := r.task.Config
	cmd := r.command()

	// 流模式接管 stdout/stderr，否则子进程继承父进程标准输出
	cmd.Stdin = os.Stdin
	if r.engine != nil && r.engine.Path() == "" {
		stderrLog := logtail.NewSplitter(func(line string) {
			r.log.WithField("stream", "stderr").Warn(line)
		})
		cmd.Stdout = r.engine
		cmd.Stderr = io.MultiWriter(r.engine.Stream(), stderrLog)
		cmd.WaitDelay = r.waitDelay
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if r.engine != nil {
		if err := r.engine.Start(); err != nil {
			r.log.WithError(err).Warn("log engine start failed, continuing without log tracking")
		}
	}

	started := time.Now()
	if err := cmd.Start(); err != nil {
		if r.engine != nil {
			r.engine.Stop()
		}
		spawnErr := &task.ProcessSpawnError{Executable: cfg.ExecutablePath, Err: err}
		r.log.WithError(spawnErr).Error("task process spawn failed")
		return Result{}, spawnErr
	}
	r.proc.Store(cmd.Process)
	pid := cmd.Process.Pid
	r.log.WithFields(logrus.Fields{"pid": pid, "executable": cfg.ExecutablePath}).Info("task process started")

	var exited atomic.Bool
	defer func() {
		// 任何退出路径上子进程都不能遗留
		if !exited.Load() {
			r.Terminate()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var timedOut atomic.Bool
	var timer *time.Timer
	if cfg.Timeout > 0 {
		timer = time.AfterFunc(cfg.Timeout, func() {
			if exited.Load() {
				return
			}
			if err := r.kill(cmd.Process); err != nil {
				return
			}
			timedOut.Store(true)
			r.log.WithError(&task.ProcessTimeoutError{Task: r.task.Name(), PID: pid, Timeout: cfg.Timeout}).
				Error("task timed out, process killed")
		})
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	var (
		waitErr error
		done    = ctx.Done()
		grace   <-chan time.Time
	)
loop:
	for {
		select {
		case waitErr = <-waitCh:
			break loop
		case <-done:
			done = nil
			r.log.Info("run cancelled, terminating task process")
			if g := r.Terminate(); g != nil {
				grace = g
			}
		case sig := <-sigCh:
			r.log.WithField("signal", sig.String()).Info("received exit signal, terminating task process")
			if g := r.Terminate(); g != nil {
				grace = g
			}
		case <-grace:
			grace = nil
			r.log.Warn("task process ignored termination, killing")
			_ = r.kill(cmd.Process)
		}
	}
	exited.Store(true)

	if timer != nil {
		timer.Stop()
	}
	if r.engine != nil {
		r.engine.Stop()
	}

	res := Result{PID: pid, TimedOut: timedOut.Load(), Duration: time.Since(started)}
	if cmd.ProcessState == nil {
		return res, waitErr
	}
	code := cmd.ProcessState.ExitCode()
	res.ExitCode = &code

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) && !errors.Is(waitErr, exec.ErrWaitDelay) {
		r.log.WithError(waitErr).Warn("task process wait returned error")
	}
	r.log.WithFields(logrus.Fields{"pid": pid, "exit_code": code, "timed_out": res.TimedOut}).Info("task process exited")
	return res, nil
}

// command 构造子进程命令，父进程意外退出时由内核通知子进程 (仅 Linux)
func (r *Runner) command() *exec.Cmd {
	cfg := r.task.Config
	args := append(append([]string(nil), r.shell[1:]...), cfg.ExecutablePath)
	cmd := exec.Command(r.shell[0], args...)
	cmd.Dir = cfg.BaseDir
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}
	cmd.SysProcAttr = parentDeathAttr()
	return cmd
}

// Terminate 向子进程 (以及跟踪的子孙进程) 发送一次 SIGTERM，多次调用只生效一次
// 返回等待强制结束的计时通道，未启动或未配置宽限期时为 nil
func (r *Runner) Terminate() <-chan time.Time {
	proc := r.proc.Load()
	if proc == nil {
		return nil
	}
	var grace <-chan time.Time
	r.termOnce.Do(func() {
		var tree []*childProcess
		if r.task.Config.TrackChildProcess {
			tree = descendants(proc.Pid)
		}
		if err := proc.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			// 不支持 SIGTERM 的平台直接结束
			_ = proc.Kill()
		}
		for _, c := range tree {
			c.terminate()
		}
		r.log.WithFields(logrus.Fields{"pid": proc.Pid, "descendants": len(tree)}).Info("sent SIGTERM to task process")
		if r.killGrace > 0 {
			grace = time.After(r.killGrace)
		}
	})
	return grace
}

func (r *Runner) kill(proc *os.Process) error {
	var tree []*childProcess
	if r.task.Config.TrackChildProcess {
		tree = descendants(proc.Pid)
	}
	err := proc.Kill()
	for _, c := range tree {
		c.kill()
	}
	return err
}

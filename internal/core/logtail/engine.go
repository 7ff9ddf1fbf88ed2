/**
 * 日志追踪引擎
 * @date: 2026.10.18
 * @description: 文件模式下从启动时的文件大小开始追踪增量内容，处理日志翻转；
 *               流模式下直接消费子进程输出。两种模式共用同一套按字节切行逻辑。
 */
package logtail

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

var (
	ErrAlreadyStarted = errors.New("log engine already started")
	ErrStopped        = errors.New("log engine stopped")
)

// Option 引擎选项
type Option func(*Engine)

// WithPollInterval 兜底轮询间隔，0 表示只依赖文件变更通知
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.pollInterval = d }
}

// WithWatch 是否监听文件变更通知，关闭后只能通过轮询或手动 Poll 读取
func WithWatch(enabled bool) Option {
	return func(e *Engine) { e.watch = enabled }
}

// WithLogger 设置日志条目
func WithLogger(entry *logrus.Entry) Option {
	return func(e *Engine) { e.log = entry }
}

// Engine 日志追踪引擎，一次任务运行对应一个实例
type Engine struct {
	path         string // 为空表示流模式
	pollInterval time.Duration
	watch        bool
	log          *logrus.Entry

	mu       sync.Mutex // 保护 splitter 与 lastSize
	splitter *Splitter
	lastSize int64

	emitMu  sync.Mutex // 多路输出共用行处理器时串行调用
	handler LineHandler

	processing atomic.Bool // 同一时间只允许一次读取处理
	started    atomic.Bool
	stopped    atomic.Bool
	stopOnce   sync.Once

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewFileEngine 创建文件追踪引擎
func NewFileEngine(path string, handler LineHandler, opts ...Option) *Engine {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return newEngine(filepath.Clean(path), handler, opts)
}

// NewStreamEngine 创建流模式引擎
func NewStreamEngine(handler LineHandler, opts ...Option) *Engine {
	return newEngine("", handler, opts)
}

func newEngine(path string, handler LineHandler, opts []Option) *Engine {
	e := &Engine{
		path:    path,
		watch:   true,
		handler: handler,
		done:    make(chan struct{}),
	}
	e.splitter = NewSplitter(e.emit)
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		e.log = logrus.NewEntry(l)
	}
	return e
}

func (e *Engine) emit(line string) {
	if e.handler == nil {
		return
	}
	e.emitMu.Lock()
	defer e.emitMu.Unlock()
	e.handler(line)
}

// Stream 返回共用行处理器的独立切分器，用于同一任务的另一路输出 (如 stderr)
func (e *Engine) Stream() *Splitter {
	return NewSplitter(e.emit)
}

// Path 被追踪的文件路径，流模式为空
func (e *Engine) Path() string {
	return e.path
}

// Start 启动引擎，每个实例只能启动一次
// 文件模式下以当前文件大小为基线，启动前的历史内容不会输出
func (e *Engine) Start() error {
	if e.stopped.Load() {
		return ErrStopped
	}
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if e.path == "" {
		return nil
	}

	e.mu.Lock()
	if info, err := os.Stat(e.path); err == nil {
		e.lastSize = info.Size()
	} else {
		e.lastSize = 0
	}
	e.mu.Unlock()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if e.watch {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create log watcher: %w", err)
		}
		// 监听所在目录，文件被删除重建后依然能收到通知
		if err := watcher.Add(filepath.Dir(e.path)); err != nil {
			watcher.Close()
			return fmt.Errorf("failed to watch log directory: %w", err)
		}
		e.watcher = watcher
		events, errs = watcher.Events, watcher.Errors
	}

	var tick <-chan time.Time
	var ticker *time.Ticker
	if e.pollInterval > 0 {
		ticker = time.NewTicker(e.pollInterval)
		tick = ticker.C
	}

	if events == nil && tick == nil {
		return nil
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-e.done:
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != e.path {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					e.Poll()
				}
			case err, ok := <-errs:
				if !ok {
					return
				}
				e.log.WithError(err).Warn("log watcher error")
			case <-tick:
				e.Poll()
			}
		}
	}()

	e.log.WithField("path", e.path).Debug("log engine started")
	return nil
}

// Poll 执行一次读取处理
// 文件变小视为翻转: 偏移归零并丢弃残留半行; 文件变大只读取增量部分
// 已有处理在进行时直接返回，增量会在下一次处理中一并读取
func (e *Engine) Poll() {
	if e.stopped.Load() {
		return
	}
	e.pass()
}

func (e *Engine) pass() {
	if e.path == "" || !e.started.Load() {
		return
	}
	if !e.processing.CompareAndSwap(false, true) {
		return
	}
	defer e.processing.Store(false)

	if err := e.readDelta(); err != nil {
		e.log.WithError(err).WithField("path", e.path).Warn("read log delta failed")
	}
}

func (e *Engine) readDelta() error {
	info, err := os.Stat(e.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// 翻转过程中文件短暂不存在
			return nil
		}
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	size := info.Size()
	if size < e.lastSize {
		e.lastSize = 0
		e.splitter.Reset()
	}
	if size == e.lastSize {
		return nil
	}

	f, err := os.Open(e.path)
	if err != nil {
		return err
	}
	defer f.Close()

	delta := make([]byte, size-e.lastSize)
	n, err := f.ReadAt(delta, e.lastSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	e.splitter.Write(delta[:n])
	e.lastSize += int64(n)
	return nil
}

// Feed 流模式下处理一块输出
func (e *Engine) Feed(chunk []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.splitter.Write(chunk)
}

// Write 实现 io.Writer，便于直接作为子进程输出目标
func (e *Engine) Write(p []byte) (int, error) {
	e.Feed(p)
	return len(p), nil
}

// Consume 持续读取直到 EOF
func (e *Engine) Consume(r io.Reader) error {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			e.Feed(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
				return nil
			}
			return err
		}
	}
}

// Pending 尚未以换行结尾的残留内容
func (e *Engine) Pending() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.splitter.Pending()
}

// Stop 停止引擎，可重复调用，启动前调用也安全
// 文件模式下停止监听后再做最后一次读取，避免遗漏退出前写入的内容
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.stopped.Store(true)
		close(e.done)
		if e.watcher != nil {
			e.watcher.Close()
		}
		e.wg.Wait()
		e.pass()
		e.log.WithField("path", e.path).Debug("log engine stopped")
	})
}

package backend

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lss/internal/config"
	"lss/internal/core/orchestrator"
	"lss/internal/core/pool"
	"lss/internal/model/task"
	"lss/internal/pkg/logger"
)

// ErrQueueFull 待执行提交已满
var ErrQueueFull = errors.New("submission queue is full")

// Submission 一次已校验的提交
type Submission struct {
	ID             string
	Job            task.Job
	DescriptorPath string
	ReceivedAt     time.Time
}

// RunFunc 执行一次提交，测试中可替换
type RunFunc func(ctx context.Context, rc *orchestrator.RunContext, sub Submission) (*orchestrator.Report, error)

func defaultRun(ctx context.Context, rc *orchestrator.RunContext, sub Submission) (*orchestrator.Report, error) {
	return orchestrator.New(rc).Run(ctx, sub.Job, sub.DescriptorPath)
}

// Status 后端当前状态
type Status struct {
	Pending   int                  `json:"pending"`
	Processed int                  `json:"processed"`
	Current   *CurrentRun          `json:"current,omitempty"`
	Last      *orchestrator.Report `json:"last_report,omitempty"`
	LastError string               `json:"last_error,omitempty"`
}

// CurrentRun 正在执行的提交
type CurrentRun struct {
	ID       string        `json:"id"`
	Job      string        `json:"job"`
	Snapshot pool.Snapshot `json:"snapshot"`
}

// Dispatcher 串行执行提交，同一时间只有一个 Job 在运行，避免两个提交同时修改同一配置文件
type Dispatcher struct {
	cfg *config.Config
	lm  *logger.LoggerManager
	log *logrus.Entry
	run RunFunc

	queue chan Submission

	mu        sync.Mutex
	current   *Submission
	currentRC *orchestrator.RunContext
	processed int
	last      *orchestrator.Report
	lastErr   error

	wg sync.WaitGroup
}

// NewDispatcher 创建调度器
func NewDispatcher(cfg *config.Config, lm *logger.LoggerManager, run RunFunc) *Dispatcher {
	size := 16
	if cfg != nil && cfg.Server != nil && cfg.Server.QueueSize > 0 {
		size = cfg.Server.QueueSize
	}
	if run == nil {
		run = defaultRun
	}
	return &Dispatcher{
		cfg:   cfg,
		lm:    lm,
		log:   lm.Component("dispatcher"),
		run:   run,
		queue: make(chan Submission, size),
	}
}

// Submit 放入待执行队列，队列已满时返回 ErrQueueFull
func (d *Dispatcher) Submit(job task.Job, descriptorPath string) (Submission, error) {
	sub := Submission{ID: uuid.NewString(), Job: job, DescriptorPath: descriptorPath, ReceivedAt: time.Now()}
	select {
	case d.queue <- sub:
		d.log.WithFields(logrus.Fields{"submission": sub.ID, "job": job.JobName()}).Info("submission queued")
		return sub, nil
	default:
		return Submission{}, ErrQueueFull
	}
}

// Start 启动工作协程，ctx 结束后不再取新的提交
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case sub := <-d.queue:
				d.execute(ctx, sub)
			}
		}
	}()
}

// Wait 等待工作协程退出
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) execute(ctx context.Context, sub Submission) {
	rc := orchestrator.NewRunContext(d.cfg, d.lm)

	d.mu.Lock()
	d.current, d.currentRC = &sub, rc
	d.mu.Unlock()

	report, err := d.run(ctx, rc, sub)
	entry := d.log.WithFields(logrus.Fields{"submission": sub.ID, "job": sub.Job.JobName()})
	if err != nil {
		entry.WithError(err).Error("submission finished with error")
	} else {
		entry.Info("submission finished")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.current, d.currentRC = nil, nil
	d.processed++
	d.last, d.lastErr = report, err
}

// Status 当前状态
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Status{Pending: len(d.queue), Processed: d.processed, Last: d.last}
	if d.lastErr != nil {
		s.LastError = d.lastErr.Error()
	}
	if d.current != nil {
		s.Current = &CurrentRun{ID: d.current.ID, Job: d.current.Job.JobName(), Snapshot: d.currentRC.Manager.Snapshot()}
	}
	return s
}

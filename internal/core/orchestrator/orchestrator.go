/**
 * 运行编排
 * @date: 2026.10.18
 * @description: 串行执行单任务或队列成员: 准入 -> 前置钩子 -> 参数备份写入 -> 运行 -> 恢复 -> 状态 -> 后置钩子
 */
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"lss/internal/core/logtail"
	"lss/internal/core/param"
	"lss/internal/core/plugin"
	"lss/internal/core/runner"
	"lss/internal/model/task"
	"lss/internal/pkg/logger"
	"lss/pkg/pluginapi"
)

// Orchestrator 运行编排器
type Orchestrator struct {
	rc         *RunContext
	log        *logrus.Entry
	runnerOpts []runner.Option
}

// New 创建编排器，runnerOpts 会附加到每个任务的运行器上
func New(rc *RunContext, runnerOpts ...runner.Option) *Orchestrator {
	return &Orchestrator{
		rc:         rc,
		log:        rc.Logger.Component("orchestrator"),
		runnerOpts: runnerOpts,
	}
}

// Run 执行一个 Job，descriptorPath 用于定位同目录下的插件描述文件
// 参数备份/写入失败会中止整个运行；其余单任务错误只影响该任务
func (o *Orchestrator) Run(ctx context.Context, job task.Job, descriptorPath string) (*Report, error) {
	tasks, err := task.Tasks(job)
	if err != nil {
		return nil, err
	}
	if err := o.rc.Manager.Init(job); err != nil {
		return nil, err
	}

	queueName := ""
	if q, ok := job.(task.TaskQueue); ok {
		queueName = q.Queue.Name
	}

	var hooks *plugin.HookTable
	if job.NeedPlugin() {
		hooks = o.rc.Plugins.Load(descriptorPath)
		o.log.WithFields(logrus.Fields{
			"descriptor": o.rc.Plugins.DescriptorPath(descriptorPath),
			"hooks":      hooks.Names(),
		}).Info("plugin hooks loaded")
	}

	report := &Report{Queue: job.JobName(), StartedAt: time.Now()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	logger.LogSystemEvent(o.log, "job_started", "job started", logrus.InfoLevel, map[string]interface{}{
		"job": job.JobName(), "tasks": len(tasks),
	})

	qhc := pluginapi.HookContext{QueueName: queueName}
	if queueName != "" {
		o.callHook(ctx, hooks, pluginapi.HookQueueBeforeRun, qhc)
		defer func() {
			ahc := qhc
			ahc.Status = "finished"
			if report.Aborted {
				ahc.Status = "aborted"
			}
			o.callHook(context.WithoutCancel(ctx), hooks, pluginapi.HookQueueAfterRun, ahc)
		}()
	}

	for range tasks {
		if err := ctx.Err(); err != nil {
			report.Aborted = true
			o.log.WithError(err).Warn("run cancelled, remaining tasks not started")
			return report, err
		}

		t, err := o.rc.Manager.RequestTask(task.StatusInit)
		if err != nil {
			report.Aborted = true
			return report, fmt.Errorf("admit next task: %w", err)
		}

		result, fatal := o.runTask(ctx, t, hooks, queueName)
		report.Results = append(report.Results, result)
		if fatal != nil {
			report.Aborted = true
			logger.LogTaskError(o.log, t.ID(), t.Name(), "run_aborted", fatal)
			return report, fatal
		}
	}

	logger.LogSystemEvent(o.log, "job_finished", "job finished", logrus.InfoLevel, map[string]interface{}{
		"job": job.JobName(), "tasks": len(report.Results),
	})
	return report, nil
}

// runTask 执行单个已准入的任务，返回的 error 只会是需要中止整个运行的 ParamIOError
func (o *Orchestrator) runTask(ctx context.Context, t *task.Task, hooks *plugin.HookTable, queueName string) (TaskResult, error) {
	cfg := t.Config
	hc := pluginapi.HookContext{QueueName: queueName, TaskID: t.ID(), TaskName: t.Name()}
	result := TaskResult{TaskID: t.ID(), Name: t.Name(), Status: task.StatusError, Verdict: logtail.VerdictUnknown.String()}
	taskLog := o.log.WithFields(logrus.Fields{"task_id": t.ID(), "task_name": t.Name()})

	logger.LogTaskEvent(o.log, t.ID(), t.Name(), "task_admitted", logrus.Fields{"queue": queueName})
	o.callHook(ctx, hooks, pluginapi.HookTaskBeforeRun, hc)

	finish := func(status task.Status, cause error) {
		if err := o.rc.Manager.Complete(t.ID(), status); err != nil {
			taskLog.WithError(err).Error("update task status failed")
		}
		result.Status = status
		if cause != nil {
			result.Error = cause.Error()
		}
		hc.Status = status.String()
		hc.ExitCode = result.ExitCode
		o.callHook(context.WithoutCancel(ctx), hooks, pluginapi.HookTaskAfterRun, hc)
		logger.LogTaskEvent(o.log, t.ID(), t.Name(), "task_finished", logrus.Fields{
			"status": status.String(), "exit_code": derefCode(result.ExitCode), "timed_out": result.TimedOut,
		})
	}

	// 参数注入: 备份失败直接中止；写入失败先恢复再中止
	var helper *param.Helper
	if cfg.NeedParam && cfg.ParamConfig != nil {
		helper = param.NewHelper(cfg.ParamConfig, o.rc.TempDir, o.rc.Logger.Component("param"))
		if err := helper.Backup(); err != nil {
			finish(task.StatusError, err)
			return result, err
		}
		if err := helper.Write(); err != nil {
			o.recover(helper, taskLog)
			finish(task.StatusError, err)
			return result, err
		}
	}

	analyzer := logtail.NewAnalyzer(cfg.LogConfig, time.Now())
	analyzer.OnFailed(func(line string) {
		if err := o.rc.Manager.SetStatus(t.ID(), task.StatusErrorWhenRunning); err != nil {
			taskLog.WithError(err).Debug("mark errorwhenrunning skipped")
			return
		}
		taskLog.WithField("line", line).Warn("failure marker seen in task log")
	})
	if hooks.Has(pluginapi.HookLogHandler) {
		analyzer.Chain(func(line string) {
			if err := hooks.LogLine(ctx, hc, line); err != nil {
				taskLog.WithError(err).Warn("logHandler hook failed")
			}
		})
	}

	opts := append([]runner.Option{
		runner.WithLogger(o.rc.Logger.Component("runner")),
		runner.WithEnv("LSS_TASK_ID="+t.ID(), "LSS_TASK_NAME="+t.Name(), "LSS_QUEUE_NAME="+queueName),
	}, o.runnerOpts...)
	if engine := o.logEngine(cfg, analyzer.Handle, taskLog); engine != nil {
		opts = append(opts, runner.WithLogEngine(engine))
	}

	res, runErr := runner.New(t, opts...).Run(ctx)
	if helper != nil {
		o.recover(helper, taskLog)
	}

	result.ExitCode = res.ExitCode
	result.TimedOut = res.TimedOut
	result.Duration = res.Duration
	result.Verdict = analyzer.Verdict().String()

	switch {
	case runErr != nil:
		finish(task.StatusError, runErr)
	case res.ExitCode != nil && *res.ExitCode == 0 && analyzer.Verdict() != logtail.VerdictFailed:
		finish(task.StatusDone, nil)
	case res.TimedOut:
		finish(task.StatusError, &task.ProcessTimeoutError{Task: t.Name(), PID: res.PID, Timeout: cfg.Timeout})
	case analyzer.Verdict() == logtail.VerdictFailed:
		finish(task.StatusError, fmt.Errorf("failure marker in log: %s", analyzer.MatchedLine()))
	default:
		finish(task.StatusError, fmt.Errorf("exit code %d", derefCode(res.ExitCode)))
	}
	return result, nil
}

// logEngine 按日志配置构造引擎，定位失败时降级为不追踪日志
func (o *Orchestrator) logEngine(cfg task.Config, handler logtail.LineHandler, taskLog *logrus.Entry) *logtail.Engine {
	if !cfg.NeedLog || cfg.LogConfig == nil {
		return nil
	}
	engineLog := o.rc.Logger.Component("logtail").WithField("task_name", cfg.Name)
	if cfg.LogConfig.Source == task.LogSourceStdout {
		return logtail.NewStreamEngine(handler, logtail.WithLogger(engineLog))
	}

	path, err := logtail.Locate(cfg.LogConfig)
	if err != nil {
		var locErr *task.FileLocateError
		if errors.As(err, &locErr) {
			taskLog.WithError(err).Warn("log file not found, running without log tracking")
			return nil
		}
		taskLog.WithError(err).Warn("log file locate failed")
		return nil
	}

	var interval time.Duration
	if o.rc.Config != nil && o.rc.Config.Engine != nil {
		interval = o.rc.Config.Engine.LogPollInterval
	}
	return logtail.NewFileEngine(path, handler, logtail.WithLogger(engineLog), logtail.WithPollInterval(interval))
}

func (o *Orchestrator) recover(helper *param.Helper, taskLog *logrus.Entry) {
	if err := helper.Recovery(); err != nil {
		// 恢复失败不影响后续任务，需要人工处理
		taskLog.WithError(err).Error("config recovery failed")
	}
}

func (o *Orchestrator) callHook(ctx context.Context, hooks *plugin.HookTable, hook pluginapi.Hook, hc pluginapi.HookContext) {
	if !hooks.Has(hook) {
		return
	}
	if err := hooks.Call(ctx, hook, hc); err != nil {
		logger.LogPluginOperation(o.log, string(hook), "", "call", "failed", err)
		return
	}
	o.log.WithFields(logrus.Fields{"hook": string(hook), "task_name": hc.TaskName}).Debug("hook called")
}

func derefCode(code *int) int {
	if code == nil {
		return -1
	}
	return *code
}

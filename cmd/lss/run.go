/*
 * @date: 2026.10.18
 * @description: run 子命令，本进程执行描述文件或提交到后端
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"lss/internal/core/orchestrator"
	"lss/internal/core/reporter"
	"lss/internal/model/task"
	"lss/internal/pkg/client"
)

var errRunFailed = errors.New("one or more tasks did not finish successfully")

func newRunCmd(st *cliState) *cobra.Command {
	var useBackend bool

	cmd := &cobra.Command{
		Use:   "run <descriptor.json>",
		Short: "运行任务或队列描述文件",
		Long: `读取任务 (type=task) 或队列 (type=queue) 描述文件并执行。

默认在当前进程内串行执行；指定 --backend 时把归一化后的队列提交给本地后端，
后端未运行时会先在后台拉起。`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if useBackend {
				return submitToBackend(ctx, st, args[0])
			}
			return runLocal(ctx, st, args[0])
		},
	}
	cmd.Flags().BoolVar(&useBackend, "backend", false, "提交到后端执行，而不是在当前进程内执行")
	return cmd
}

// runLocal 本进程内执行
func runLocal(ctx context.Context, st *cliState, path string) error {
	job, err := task.LoadJob(path)
	if err != nil {
		printViolations(err)
		return err
	}
	tasks, err := task.Tasks(job)
	if err != nil {
		return err
	}

	rc := orchestrator.NewRunContext(st.cfg, st.lm)
	report, runErr := orchestrator.New(rc).Run(ctx, job, path)
	if report != nil {
		if err := reporter.NewConsoleReporter(nil).PrintReport(report, len(tasks)); err != nil {
			st.lm.Component("cli").WithError(err).Warn("print report")
		}
	}
	if runErr != nil {
		return runErr
	}
	if !report.Succeeded(len(tasks)) {
		return errRunFailed
	}
	return nil
}

// submitToBackend 校验并归一化描述文件，确保后端存活后提交
func submitToBackend(ctx context.Context, st *cliState, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read descriptor %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	desc, err := task.NormalizeDescriptor(data, filepath.Dir(abs))
	if err != nil {
		printViolations(err)
		return err
	}

	log := st.lm.Component("cli")
	c := client.NewHTTPClient(st.cfg.Server.BaseURL(), 10*time.Second)
	launcher := &client.Launcher{
		Executable: st.cfg.Backend.Filename,
		Args:       serveArgs(st),
		Retries:    st.cfg.Backend.StartupRetries,
		Interval:   st.cfg.Backend.RetryInterval,
		Log:        log,
	}
	if err := launcher.EnsureRunning(ctx, c); err != nil {
		return err
	}

	resp, err := c.Submit(ctx, desc)
	if err != nil {
		if resp != nil && len(resp.Violations) > 0 {
			printViolations(&task.ConfigValidationError{Subject: desc.Name, Violations: resp.Violations})
		}
		return err
	}
	pterm.Success.Printf("queue %q accepted by backend %s (id %s)\n", resp.Queue, c.BaseURL(), resp.ID)
	return nil
}

// serveArgs 拉起后端时沿用当前使用的配置文件
func serveArgs(st *cliState) []string {
	args := []string{"serve"}
	if p := st.loader.GetConfigPath(); p != "" {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		args = append(args, "--config", p)
	}
	return args
}

func printViolations(err error) {
	var cve *task.ConfigValidationError
	if !errors.As(err, &cve) {
		return
	}
	items := make([]pterm.BulletListItem, 0, len(cve.Violations))
	for _, v := range cve.Violations {
		items = append(items, pterm.BulletListItem{Level: 0, Text: v.String()})
	}
	pterm.Error.Printf("invalid descriptor %q\n", cve.Subject)
	_ = pterm.DefaultBulletList.WithItems(items).Render()
}

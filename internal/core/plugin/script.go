package plugin

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"

	"lss/pkg/pluginapi"
)

// scriptManifest 脚本钩子清单，钩子字段的值是交给 shell 执行的命令
type scriptManifest struct {
	Name           string `json:"name" yaml:"name"`
	Type           string `json:"type" yaml:"type"`
	TaskBeforeRun  string `json:"taskBeforeRun" yaml:"taskBeforeRun"`
	TaskAfterRun   string `json:"taskAfterRun" yaml:"taskAfterRun"`
	LogHandler     string `json:"logHandler" yaml:"logHandler"`
	QueueBeforeRun string `json:"queueBeforeRun" yaml:"queueBeforeRun"`
	QueueAfterRun  string `json:"queueAfterRun" yaml:"queueAfterRun"`
}

// openScript 把脚本清单转换为模块，清单里出现的每个钩子都会生成对应函数，由 Validate 负责拒绝多余钩子
func (l *Loader) openScript(path string) (*pluginapi.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var mf scriptManifest
	if err := decodeManifest(path, data, &mf); err != nil {
		return nil, fmt.Errorf("parse script manifest: %w", err)
	}

	dir := filepath.Dir(path)
	m := &pluginapi.Module{Name: mf.Name, Type: pluginapi.Hook(mf.Type)}
	if mf.TaskBeforeRun != "" {
		m.TaskBeforeRun = l.scriptFunc(dir, pluginapi.HookTaskBeforeRun, mf.TaskBeforeRun)
	}
	if mf.TaskAfterRun != "" {
		m.TaskAfterRun = l.scriptFunc(dir, pluginapi.HookTaskAfterRun, mf.TaskAfterRun)
	}
	if mf.QueueBeforeRun != "" {
		m.QueueBeforeRun = l.scriptFunc(dir, pluginapi.HookQueueBeforeRun, mf.QueueBeforeRun)
	}
	if mf.QueueAfterRun != "" {
		m.QueueAfterRun = l.scriptFunc(dir, pluginapi.HookQueueAfterRun, mf.QueueAfterRun)
	}
	if mf.LogHandler != "" {
		command := mf.LogHandler
		m.LogHandler = func(ctx context.Context, hc pluginapi.HookContext, line string) error {
			return l.runScript(ctx, dir, pluginapi.HookLogHandler, command, hc, line)
		}
	}
	return m, nil
}

func (l *Loader) scriptFunc(dir string, hook pluginapi.Hook, command string) pluginapi.Func {
	return func(ctx context.Context, hc pluginapi.HookContext) error {
		return l.runScript(ctx, dir, hook, command, hc, "")
	}
}

func (l *Loader) runScript(ctx context.Context, dir string, hook pluginapi.Hook, command string, hc pluginapi.HookContext, line string) error {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"LSS_HOOK="+string(hook),
		"LSS_QUEUE_NAME="+hc.QueueName,
		"LSS_TASK_ID="+hc.TaskID,
		"LSS_TASK_NAME="+hc.TaskName,
		"LSS_TASK_STATUS="+hc.Status,
	)
	if hc.ExitCode != nil {
		cmd.Env = append(cmd.Env, fmt.Sprintf("LSS_EXIT_CODE=%d", *hc.ExitCode))
	}
	if hook == pluginapi.HookLogHandler {
		cmd.Env = append(cmd.Env, "LSS_LOG_LINE="+line)
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	entry := l.log.WithFields(logrus.Fields{"hook": string(hook), "command": command})
	if s := strings.TrimSpace(out.String()); s != "" {
		entry.WithField("output", s).Debug("script hook output")
	}
	if err != nil {
		return fmt.Errorf("script hook %s: %w", hook, err)
	}
	return nil
}

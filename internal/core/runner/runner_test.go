package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lss/internal/core/logtail"
	"lss/internal/model/task"
)

func newTask(t *testing.T, desc task.TaskDescriptor) *task.Task {
	t.Helper()
	desc.Type = task.DescriptorTypeTask
	if desc.Name == "" {
		desc.Name = t.Name()
	}
	tk, err := task.NewTask(desc)
	require.NoError(t, err)
	return tk
}

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts require a POSIX shell")
	}
}

func TestRun_ExitCode(t *testing.T) {
	skipOnWindows(t)
	r := New(newTask(t, task.TaskDescriptor{ExecutableFilePath: "exit 3"}))

	res, err := r.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 3, *res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.NotZero(t, res.PID)
}

func TestRun_SpawnFailure(t *testing.T) {
	r := New(newTask(t, task.TaskDescriptor{ExecutableFilePath: "true"}), WithShell("/nonexistent/shell", "-c"))

	res, err := r.Run(context.Background())
	var spawnErr *task.ProcessSpawnError
	require.True(t, errors.As(err, &spawnErr))
	assert.Nil(t, res.ExitCode)
}

func TestRun_Timeout(t *testing.T) {
	skipOnWindows(t)
	tk := newTask(t, task.TaskDescriptor{ExecutableFilePath: "sleep 5"})
	tk.Config.Timeout = 200 * time.Millisecond

	start := time.Now()
	res, err := New(tk).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	require.NotNil(t, res.ExitCode)
	assert.NotEqual(t, 0, *res.ExitCode)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRun_StdoutStream(t *testing.T) {
	skipOnWindows(t)
	var (
		mu    sync.Mutex
		lines []string
	)
	engine := logtail.NewStreamEngine(func(line string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, line)
	})
	tk := newTask(t, task.TaskDescriptor{
		ExecutableFilePath: `printf 'alpha\r\nbeta\n'; echo oops >&2`,
		IsNeedLog:          true,
		TaskLogConfig:      &task.LogDescriptor{LogSource: "stdout"},
	})

	res, err := New(tk, WithLogEngine(engine)).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"alpha", "beta", "oops"}, lines)
}

func TestRun_CancelDeliversSingleSIGTERM(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	out := filepath.Join(dir, "trap.out")
	script := filepath.Join(dir, "trap.sh")
	body := fmt.Sprintf(`#!/bin/sh
trap 'echo TERM >> %q; exit 143' TERM
echo ready >> %q
sleep 30 &
wait $!
`, out, out)
	require.NoError(t, os.WriteFile(script, []byte(body), 0755))

	tk := newTask(t, task.TaskDescriptor{ExecutableFilePath: script, TrackChildProcess: true})
	r := New(tk, WithKillGrace(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := r.Run(ctx)
		done <- outcome{res, err}
	}()

	require.Eventually(t, func() bool {
		data, _ := os.ReadFile(out)
		return strings.Contains(string(data), "ready")
	}, 5*time.Second, 20*time.Millisecond)

	// 取消与显式终止同时发生，子进程只应收到一次 SIGTERM
	cancel()
	r.Terminate()
	r.Terminate()

	select {
	case o := <-done:
		require.NoError(t, o.err)
		require.NotNil(t, o.res.ExitCode)
	case <-time.After(10 * time.Second):
		t.Fatal("runner did not return after cancellation")
	}

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "TERM"))
}

func TestTerminate_BeforeStart(t *testing.T) {
	r := New(newTask(t, task.TaskDescriptor{ExecutableFilePath: "true"}))
	assert.Nil(t, r.Terminate())
}

func TestWithShell_EmptyKeepsDefault(t *testing.T) {
	tk := newTask(t, task.TaskDescriptor{ExecutableFilePath: "exit 0"})

	r := New(tk, WithShell())
	assert.Equal(t, defaultShell(), r.shell)

	r = New(tk, WithShell(""))
	assert.Equal(t, defaultShell(), r.shell)

	cmd := r.command()
	assert.Equal(t, tk.Config.ExecutablePath, cmd.Args[len(cmd.Args)-1])
}

func TestRun_ExtraEnv(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	tk := newTask(t, task.TaskDescriptor{ExecutableFilePath: `test "$LSS_TASK_NAME" = extra || exit 9`, BaseDir: dir})

	res, err := New(tk, WithEnv("LSS_TASK_NAME=extra")).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode)
}

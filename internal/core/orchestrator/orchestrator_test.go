package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lss/internal/config"
	"lss/internal/model/task"
	"lss/pkg/pluginapi"
)

func skipOnWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("tasks use a POSIX shell")
	}
}

func newRunContext(t *testing.T) *RunContext {
	t.Helper()
	return NewRunContext(&config.Config{Engine: &config.EngineConfig{
		MaxConcurrency: 1,
		TempDir:        filepath.Join(t.TempDir(), "temp"),
	}}, nil)
}

func writeJSON(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func loadJob(t *testing.T, path string) task.Job {
	t.Helper()
	job, err := task.LoadJob(path)
	require.NoError(t, err)
	return job
}

func TestRun_QueueIsSerial(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	queuePath := filepath.Join(dir, "queue.json")
	writeJSON(t, queuePath, `{
		"type": "queue", "name": "nightly", "isNeedPlugin": true,
		"tasks": [
			{"type": "task", "name": "first", "executableFilePath": "exit 0"},
			{"type": "task", "name": "second", "executableFilePath": "exit 1"}
		]
	}`)
	writeJSON(t, filepath.Join(dir, "plugin.json"), `{"taskBeforeRun": "probe.hook", "queueAfterRun": "after.hook"}`)
	writeJSON(t, filepath.Join(dir, "probe.hook"), "")
	writeJSON(t, filepath.Join(dir, "after.hook"), "")

	rc := newRunContext(t)
	var (
		mu        sync.Mutex
		refusals  []error
		running   []int
		seen      []string
		afterRuns int
		afterStat string
	)
	rc.Plugins.RegisterOpener(".hook", func(path string) (*pluginapi.Module, error) {
		if filepath.Base(path) == "after.hook" {
			return &pluginapi.Module{Name: "after", Type: pluginapi.HookQueueAfterRun,
				QueueAfterRun: func(_ context.Context, hc pluginapi.HookContext) error {
					afterRuns++
					afterStat = hc.Status
					return nil
				}}, nil
		}
		return &pluginapi.Module{Name: "probe", Type: pluginapi.HookTaskBeforeRun,
			TaskBeforeRun: func(_ context.Context, hc pluginapi.HookContext) error {
				mu.Lock()
				defer mu.Unlock()
				_, err := rc.Manager.RequestTask(task.StatusInit)
				refusals = append(refusals, err)
				running = append(running, rc.Manager.Snapshot().Counts["running"])
				seen = append(seen, hc.QueueName+"/"+hc.TaskName)
				return nil
			}}, nil
	})

	report, err := New(rc).Run(context.Background(), loadJob(t, queuePath), queuePath)
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.Equal(t, "first", report.Results[0].Name)
	assert.Equal(t, task.StatusDone, report.Results[0].Status)
	assert.Equal(t, "second", report.Results[1].Name)
	assert.Equal(t, task.StatusError, report.Results[1].Status)
	assert.False(t, report.Succeeded(2))

	for _, e := range refusals {
		assert.ErrorIs(t, e, task.ErrNoTaskAvailable)
	}
	assert.Equal(t, []int{1, 1}, running)
	assert.Equal(t, []string{"nightly/first", "nightly/second"}, seen)
	assert.Equal(t, 1, afterRuns)
	assert.Equal(t, "finished", afterStat)

	snap := rc.Manager.Snapshot()
	assert.Equal(t, 1, snap.Counts["done"])
	assert.Equal(t, 1, snap.Counts["error"])
}

func TestRun_ParamInjectedAndRestored(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	original := `{"a":1,"b":{"c":2}}`
	writeJSON(t, filepath.Join(dir, "conf", "config.json"), original)
	writeJSON(t, filepath.Join(dir, "conf", "param.json"), `{"b":{"c":3,"d":4}}`)
	taskPath := filepath.Join(dir, "task.json")
	writeJSON(t, taskPath, `{
		"type": "task", "name": "inject",
		"executableFilePath": "cat conf/config.json > seen.json",
		"isNeedParam": true,
		"taskParamConfig": {"paramFilePath": "conf/param.json", "configFilePath": "conf/config.json"}
	}`)

	report, err := New(newRunContext(t)).Run(context.Background(), loadJob(t, taskPath), taskPath)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, task.StatusDone, report.Results[0].Status)

	seen, err := os.ReadFile(filepath.Join(dir, "seen.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":{"c":3,"d":4}}`, string(seen))

	restored, err := os.ReadFile(filepath.Join(dir, "conf", "config.json"))
	require.NoError(t, err)
	assert.Equal(t, original, string(restored))
}

func TestRun_ParamIOErrorAbortsRun(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	queuePath := filepath.Join(dir, "queue.json")
	writeJSON(t, queuePath, `{
		"type": "queue", "name": "q",
		"tasks": [
			{"type": "task", "name": "broken", "executableFilePath": "touch ran-broken",
			 "isNeedParam": true, "taskParamConfig": {"paramFilePath": "p.json", "configFilePath": "missing.json"}},
			{"type": "task", "name": "never", "executableFilePath": "touch ran-never"}
		]
	}`)

	rc := newRunContext(t)
	report, err := New(rc).Run(context.Background(), loadJob(t, queuePath), queuePath)

	var ioErr *task.ParamIOError
	require.True(t, errors.As(err, &ioErr))
	assert.True(t, report.Aborted)
	require.Len(t, report.Results, 1)
	assert.Equal(t, task.StatusError, report.Results[0].Status)
	assert.NoFileExists(t, filepath.Join(dir, "ran-broken"))
	assert.NoFileExists(t, filepath.Join(dir, "ran-never"))
	assert.Equal(t, 1, rc.Manager.Snapshot().Counts["init"])
}

func TestRun_RecoveryErrorDoesNotAbort(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	rc := newRunContext(t)
	writeJSON(t, filepath.Join(dir, "config.json"), `{"a":1}`)
	writeJSON(t, filepath.Join(dir, "param.json"), `{"a":2}`)
	queuePath := filepath.Join(dir, "queue.json")
	writeJSON(t, queuePath, fmt.Sprintf(`{
		"type": "queue", "name": "q",
		"tasks": [
			{"type": "task", "name": "wipe-backup", "executableFilePath": "rm -rf %s",
			 "isNeedParam": true, "taskParamConfig": {"paramFilePath": "param.json", "configFilePath": "config.json"}},
			{"type": "task", "name": "next", "executableFilePath": "true"}
		]
	}`, rc.TempDir))

	report, err := New(rc).Run(context.Background(), loadJob(t, queuePath), queuePath)
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	assert.Equal(t, task.StatusDone, report.Results[1].Status)

	// 备份被删除，配置保持合并后的内容等待人工处理
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":2}`, string(data))
}

func TestRun_FailureMarkerFailsTask(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	taskPath := filepath.Join(dir, "task.json")
	writeJSON(t, taskPath, `{
		"type": "task", "name": "marker",
		"executableFilePath": "echo starting; echo 'BOOM: disk full'; exit 0",
		"isNeedLog": true,
		"taskLogConfig": {"logSource": "stdout", "successLog": "starting", "failedLog": ["BOOM"]}
	}`)

	report, err := New(newRunContext(t)).Run(context.Background(), loadJob(t, taskPath), taskPath)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, task.StatusError, res.Status)
	assert.Equal(t, "failed", res.Verdict)
	require.NotNil(t, res.ExitCode)
	assert.Equal(t, 0, *res.ExitCode)
	assert.Contains(t, res.Error, "BOOM")
}

func TestRun_CancelledContextStartsNothing(t *testing.T) {
	dir := t.TempDir()
	taskPath := filepath.Join(dir, "task.json")
	writeJSON(t, taskPath, `{"type": "task", "name": "idle", "executableFilePath": "touch ran"}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := New(newRunContext(t)).Run(ctx, loadJob(t, taskPath), taskPath)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, report.Aborted)
	assert.Empty(t, report.Results)
	assert.NoFileExists(t, filepath.Join(dir, "ran"))
}

func TestRun_TaskIdentityInEnvironment(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()
	queuePath := filepath.Join(dir, "queue.json")
	writeJSON(t, queuePath, `{
		"type": "queue", "name": "envq",
		"tasks": [{"type": "task", "name": "printer", "executableFilePath": "echo \"$LSS_QUEUE_NAME/$LSS_TASK_NAME/$LSS_TASK_ID\" > env.txt"}]
	}`)

	report, err := New(newRunContext(t)).Run(context.Background(), loadJob(t, queuePath), queuePath)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	data, err := os.ReadFile(filepath.Join(dir, "env.txt"))
	require.NoError(t, err)
	assert.Equal(t, "envq/printer/"+report.Results[0].TaskID+"\n", string(data))
}

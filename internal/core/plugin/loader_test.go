package plugin

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lss/pkg/pluginapi"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoad_MissingDescriptorGivesEmptyTable(t *testing.T) {
	dir := t.TempDir()
	table := NewLoader("", nil).Load(filepath.Join(dir, "task.json"))

	assert.Equal(t, 0, table.Len())
	assert.False(t, table.Has(pluginapi.HookTaskBeforeRun))
	assert.NoError(t, table.Call(context.Background(), pluginapi.HookTaskBeforeRun, pluginapi.HookContext{}))
}

func TestLoad_UnparseableDescriptorGivesEmptyTable(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plugin.json", `{"taskBeforeRun": `)

	table := NewLoader("", nil).Load(filepath.Join(dir, "task.json"))
	assert.Equal(t, 0, table.Len())
}

func TestLoad_TypeMismatchIsOmitted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "plugins/after.json", `{"name":"after","type":"taskAfterRun","taskAfterRun":"true"}`)
	writeFile(t, dir, "plugins/before.json", `{"name":"before","type":"taskBeforeRun","taskBeforeRun":"true"}`)
	writeFile(t, dir, "plugin.json", `{
	"taskBeforeRun": "./plugins/after.json",
	"queueBeforeRun": "./plugins/missing.json",
	"taskAfterRun": "./plugins/after.json",
	"somethingElse": "./plugins/before.json"
}`)

	table := NewLoader("", nil).Load(filepath.Join(dir, "task.json"))

	assert.False(t, table.Has(pluginapi.HookTaskBeforeRun))
	assert.False(t, table.Has(pluginapi.HookQueueBeforeRun))
	assert.True(t, table.Has(pluginapi.HookTaskAfterRun))
	assert.Equal(t, []string{"taskAfterRun"}, table.Names())
}

func TestLoad_ExtraSlotIsRejected(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "two.yaml", "name: two\ntype: taskBeforeRun\ntaskBeforeRun: \"true\"\ntaskAfterRun: \"true\"\n")
	writeFile(t, dir, "plugin.json", `{"taskBeforeRun": "two.yaml"}`)

	table := NewLoader("", nil).Load(filepath.Join(dir, "queue.json"))
	assert.Equal(t, 0, table.Len())
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hook.js", "module.exports = {}")
	writeFile(t, dir, "plugin.json", `{"taskBeforeRun": "hook.js"}`)

	_, err := NewLoader("", nil).loadOne(pluginapi.HookTaskBeforeRun, filepath.Join(dir, "hook.js"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported plugin file type")
}

func TestScriptHooks_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("script hooks use a POSIX shell in this test")
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "hook.out")
	writeFile(t, dir, "before.yaml", "name: before\ntype: taskBeforeRun\ntaskBeforeRun: 'echo \"$LSS_HOOK $LSS_QUEUE_NAME $LSS_TASK_NAME\" >> "+out+"'\n")
	writeFile(t, dir, "log.json", `{"name":"log","type":"logHandler","logHandler":"echo \"line=$LSS_LOG_LINE\" >> `+out+`"}`)
	writeFile(t, dir, "plugin.json", `{"taskBeforeRun": "before.yaml", "logHandler": "log.json"}`)

	table := NewLoader("", nil).Load(filepath.Join(dir, "queue.json"))
	require.Equal(t, 2, table.Len())

	hc := pluginapi.HookContext{QueueName: "nightly", TaskName: "build"}
	require.NoError(t, table.Call(context.Background(), pluginapi.HookTaskBeforeRun, hc))
	require.NoError(t, table.LogLine(context.Background(), hc, "compiled 3 files"))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{"taskBeforeRun nightly build", "line=compiled 3 files"}, lines)
}

func TestScriptHooks_FailureSurfaces(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("script hooks use a POSIX shell in this test")
	}
	dir := t.TempDir()
	writeFile(t, dir, "after.yml", "name: after\ntype: queueAfterRun\nqueueAfterRun: exit 4\n")
	writeFile(t, dir, "plugin.json", `{"queueAfterRun": "after.yml"}`)

	table := NewLoader("", nil).Load(filepath.Join(dir, "queue.json"))
	err := table.Call(context.Background(), pluginapi.HookQueueAfterRun, pluginapi.HookContext{})
	assert.Error(t, err)
}

func TestLoader_CustomOpener(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "builtin.hook", "")
	writeFile(t, dir, "plugin.json", `{"queueBeforeRun": "builtin.hook"}`)

	called := false
	l := NewLoader("", nil)
	l.RegisterOpener(".hook", func(string) (*pluginapi.Module, error) {
		return &pluginapi.Module{Name: "builtin", Type: pluginapi.HookQueueBeforeRun,
			QueueBeforeRun: func(context.Context, pluginapi.HookContext) error { called = true; return nil }}, nil
	})

	table := l.Load(filepath.Join(dir, "queue.json"))
	require.NoError(t, table.Call(context.Background(), pluginapi.HookQueueBeforeRun, pluginapi.HookContext{}))
	assert.True(t, called)
}

func TestLoader_DescriptorPath(t *testing.T) {
	assert.Equal(t, filepath.Join("jobs", "plugin.json"), NewLoader("", nil).DescriptorPath(filepath.Join("jobs", "queue.json")))
	assert.Equal(t, filepath.Join("jobs", "hooks.yaml"), NewLoader("hooks.yaml", nil).DescriptorPath(filepath.Join("jobs", "queue.json")))
}

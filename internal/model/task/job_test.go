package task

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const queueJSON = `{
  "type": "queue",
  "name": "nightly",
  "isNeedPlugin": true,
  "tasks": [
    {"type": "task", "name": "first", "executableFilePath": "echo one", "isNeedParam": false, "isNeedLog": false},
    {"type": "task", "name": "second", "executableFilePath": "echo two", "isNeedParam": false, "isNeedLog": false, "timeout": 5}
  ]
}`

func TestLoadJob_Queue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.json")
	require.NoError(t, os.WriteFile(path, []byte(queueJSON), 0o644))

	job, err := LoadJob(path)
	require.NoError(t, err)

	q, ok := job.(TaskQueue)
	require.True(t, ok)
	assert.Equal(t, "nightly", job.JobName())
	assert.True(t, job.NeedPlugin())

	tasks, err := Tasks(job)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "first", tasks[0].Name())
	assert.Equal(t, "second", tasks[1].Name())
	assert.Equal(t, dir, q.Queue.Tasks[0].Config.BaseDir)
}

func TestParseJob_SingleTask(t *testing.T) {
	job, err := ParseJob([]byte(`{"type":"task","name":"solo","executableFilePath":"true","isNeedPlugin":true}`), "/tmp")
	require.NoError(t, err)
	st, ok := job.(SingleTask)
	require.True(t, ok)
	assert.Equal(t, "solo", st.Task.Name())
	assert.True(t, job.NeedPlugin())
}

func TestParseJob_Rejects(t *testing.T) {
	var cve *ConfigValidationError

	_, err := ParseJob([]byte(`{"type":"workflow"}`), "")
	require.ErrorAs(t, err, &cve)
	assert.True(t, cve.HasField("type"))

	_, err = ParseJob([]byte(`not json`), "")
	require.ErrorAs(t, err, &cve)

	// 队列中第二个任务缺少日志配置，整体构造失败
	_, err = ParseJob([]byte(`{"type":"queue","name":"q","tasks":[
		{"type":"task","executableFilePath":"true"},
		{"type":"task","executableFilePath":"true","isNeedLog":true}]}`), "")
	require.ErrorAs(t, err, &cve)
	assert.True(t, cve.HasField("tasks[1].taskLogConfig"))

	_, err = ParseJob([]byte(`{"type":"queue","name":"empty","tasks":[]}`), "")
	require.ErrorAs(t, err, &cve)
}

type fakeJob struct{ SingleTask }

func TestTasks_UnknownVariant(t *testing.T) {
	_, err := Tasks(fakeJob{})
	assert.True(t, errors.Is(err, ErrUnknownJobType))
}

func TestNormalizeDescriptor(t *testing.T) {
	desc, err := NormalizeDescriptor([]byte(`{"type":"task","name":"solo","executableFilePath":"true"}`), "/work")
	require.NoError(t, err)
	assert.Equal(t, DescriptorTypeQueue, desc.Type)
	assert.Equal(t, "solo", desc.Name)
	require.Len(t, desc.Tasks, 1)
	assert.Equal(t, "/work", desc.Tasks[0].BaseDir)

	desc, err = NormalizeDescriptor([]byte(`{"type":"task","executableFilePath":"true"}`), "/work")
	require.NoError(t, err)
	assert.Equal(t, "Single_Task_Queue", desc.Name)

	desc, err = NormalizeDescriptor([]byte(queueJSON), "/work")
	require.NoError(t, err)
	assert.Equal(t, "nightly", desc.Name)
	assert.Len(t, desc.Tasks, 2)

	_, err = NormalizeDescriptor([]byte(`{"type":"task"}`), "/work")
	assert.Error(t, err)
}

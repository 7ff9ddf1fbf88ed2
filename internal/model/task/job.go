package task

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Job 一次运行的对象：单个任务或一个队列
// 通过未导出方法封闭实现，只有 SingleTask 与 TaskQueue 两种变体
type Job interface {
	JobName() string
	NeedPlugin() bool
	isJob()
}

// SingleTask 单任务变体
type SingleTask struct {
	Task *Task
}

func (j SingleTask) JobName() string  { return j.Task.Name() }
func (j SingleTask) NeedPlugin() bool { return j.Task.Config.NeedPlugin }
func (SingleTask) isJob()             {}

// TaskQueue 队列变体
type TaskQueue struct {
	Queue *Queue
}

func (j TaskQueue) JobName() string  { return j.Queue.Name }
func (j TaskQueue) NeedPlugin() bool { return j.Queue.NeedPlugin }
func (TaskQueue) isJob()             {}

// Tasks 按执行顺序展开 Job 中的任务
func Tasks(job Job) ([]*Task, error) {
	switch j := job.(type) {
	case SingleTask:
		return []*Task{j.Task}, nil
	case TaskQueue:
		return j.Queue.Tasks, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownJobType, job)
	}
}

// LoadJob 读取描述文件并构造 Job
func LoadJob(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor %s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return ParseJob(data, filepath.Dir(abs))
}

// ParseJob 按 type 字段分派到任务或队列
func ParseJob(data []byte, baseDir string) (Job, error) {
	var head struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, &ConfigValidationError{
			Subject:    "descriptor",
			Violations: []Violation{{Field: "$", Message: fmt.Sprintf("not valid JSON: %v", err)}},
		}
	}

	switch head.Type {
	case DescriptorTypeTask:
		var desc TaskDescriptor
		if err := json.Unmarshal(data, &desc); err != nil {
			return nil, decodeError(head.Name, err)
		}
		desc.BaseDir = baseDir
		t, err := NewTask(desc)
		if err != nil {
			return nil, err
		}
		return SingleTask{Task: t}, nil
	case DescriptorTypeQueue:
		var desc QueueDescriptor
		if err := json.Unmarshal(data, &desc); err != nil {
			return nil, decodeError(head.Name, err)
		}
		if desc.BaseDir == "" {
			desc.BaseDir = baseDir
		}
		return NewQueueJob(desc)
	default:
		return nil, &ConfigValidationError{
			Subject:    subjectName(head.Name, "descriptor"),
			Violations: []Violation{{Field: "type", Message: fmt.Sprintf("must be task or queue, got %q", head.Type)}},
		}
	}
}

// NewQueueJob 由队列描述构造 Job
func NewQueueJob(desc QueueDescriptor) (Job, error) {
	q, err := NewQueue(desc)
	if err != nil {
		return nil, err
	}
	return TaskQueue{Queue: q}, nil
}

// NormalizeDescriptor 校验描述文件并归一化为队列结构 (后端 /submit 的载荷)
func NormalizeDescriptor(data []byte, baseDir string) (QueueDescriptor, error) {
	// 先完整校验一遍，保证提交出去的载荷是合法的
	if _, err := ParseJob(data, baseDir); err != nil {
		return QueueDescriptor{}, err
	}

	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(data, &head)

	if head.Type == DescriptorTypeQueue {
		var desc QueueDescriptor
		if err := json.Unmarshal(data, &desc); err != nil {
			return QueueDescriptor{}, decodeError("queue", err)
		}
		if desc.BaseDir == "" {
			desc.BaseDir = baseDir
		}
		return desc, nil
	}

	var td TaskDescriptor
	if err := json.Unmarshal(data, &td); err != nil {
		return QueueDescriptor{}, decodeError("task", err)
	}
	td.BaseDir = baseDir
	name := td.Name
	if name == "" {
		name = "Single_Task_Queue"
	}
	return QueueDescriptor{
		Type:         DescriptorTypeQueue,
		Name:         name,
		IsNeedPlugin: td.IsNeedPlugin,
		Tasks:        []TaskDescriptor{td},
		BaseDir:      baseDir,
	}, nil
}

func decodeError(name string, err error) error {
	return &ConfigValidationError{
		Subject:    subjectName(name, "descriptor"),
		Violations: []Violation{{Field: "$", Message: err.Error()}},
	}
}

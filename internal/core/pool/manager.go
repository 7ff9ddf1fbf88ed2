/**
 * 任务池管理器
 * @date: 2026.10.18
 * @description: 唯一的准入门，控制同时处于 running 的任务数量，并负责任务状态流转，不改变任务池成员与顺序
 */
package pool

import (
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"lss/internal/model/task"
)

// Manager 任务池管理器
type Manager struct {
	mu             sync.Mutex
	pool           *Pool
	maxConcurrency int
	log            *logrus.Entry
}

// NewManager 创建管理器，maxConcurrency 小于 1 时按 1 处理
func NewManager(p *Pool, maxConcurrency int, log *logrus.Entry) *Manager {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Manager{pool: p, maxConcurrency: maxConcurrency, log: log}
}

// MaxConcurrency 并发上限
func (m *Manager) MaxConcurrency() int {
	return m.maxConcurrency
}

// Init 把 Job 的任务装入任务池
func (m *Manager) Init(job task.Job) error {
	tasks, err := task.Tasks(job)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pool.SetAll(tasks)
	m.log.WithFields(logrus.Fields{"job": job.JobName(), "tasks": len(tasks)}).Debug("task pool initialized")
	return nil
}

// RequestTask 准入门，按插入顺序取第一个处于 wanted 状态的任务
// 串行模式 (并发为 1) 下只要有任务处于活跃状态就拒绝新的 init 准入；
// 否则 running 数达到上限时拒绝 init 准入。
// init/retry 任务准入后置为 running，其余状态原样返回
func (m *Manager) RequestTask(wanted task.Status) (*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wanted == task.StatusInit {
		if m.maxConcurrency == 1 {
			if m.pool.Count(func(t *task.Task) bool { return t.Status.IsActive() }) > 0 {
				return nil, task.ErrNoTaskAvailable
			}
		} else if m.pool.Count(func(t *task.Task) bool { return t.Status == task.StatusRunning }) >= m.maxConcurrency {
			return nil, task.ErrNoTaskAvailable
		}
	}

	t := m.pool.Find(func(t *task.Task) bool { return t.Status == wanted })
	if t == nil {
		return nil, task.ErrNoTaskAvailable
	}

	if wanted == task.StatusInit || wanted == task.StatusRetry {
		running := task.StatusRunning
		m.pool.Update(t.ID(), TaskUpdate{Status: &running})
		t.Status = running
		m.log.WithFields(logrus.Fields{"task_id": t.ID(), "task_name": t.Name(), "from": wanted.String()}).Debug("task admitted")
	}
	return t, nil
}

// SetStatus 按状态流转表修改任务状态
func (m *Manager) SetStatus(id string, to task.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.pool.Find(func(t *task.Task) bool { return t.ID() == id })
	if cur == nil {
		return fmt.Errorf("%w: %s", task.ErrTaskNotFound, id)
	}
	if !task.CanTransition(cur.Status, to) {
		return fmt.Errorf("%w: %s -> %s", task.ErrInvalidTransition, cur.Status, to)
	}
	m.pool.Update(id, TaskUpdate{Status: &to})
	return nil
}

// Complete 把任务置为终态 done/error
func (m *Manager) Complete(id string, to task.Status) error {
	if !to.IsTerminal() {
		return fmt.Errorf("%w: %s is not a terminal status", task.ErrInvalidTransition, to)
	}
	return m.SetStatus(id, to)
}

// TaskState 任务状态视图
type TaskState struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Status task.Status `json:"status"`
}

// Snapshot 任务池状态快照
type Snapshot struct {
	Total          int            `json:"total"`
	MaxConcurrency int            `json:"max_concurrency"`
	Counts         map[string]int `json:"counts"`
	Tasks          []TaskState    `json:"tasks"`
}

// Snapshot 统计各状态任务数量
func (m *Manager) Snapshot() Snapshot {
	all := m.pool.GetAll()
	s := Snapshot{
		Total:          len(all),
		MaxConcurrency: m.maxConcurrency,
		Counts:         make(map[string]int),
		Tasks:          make([]TaskState, 0, len(all)),
	}
	for _, t := range all {
		s.Counts[t.Status.String()]++
		s.Tasks = append(s.Tasks, TaskState{ID: t.ID(), Name: t.Name(), Status: t.Status})
	}
	return s
}

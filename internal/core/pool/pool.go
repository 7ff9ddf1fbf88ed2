package pool

import (
	"sync"

	"lss/internal/model/task"
)

// TaskUpdate 部分字段更新，nil 字段保持不变
type TaskUpdate struct {
	Status *task.Status
}

// Pool 本次运行的任务工作集，是任务列表的唯一持有者
// 对外返回的都是副本，修改副本不会影响池内任务
type Pool struct {
	mu    sync.RWMutex
	tasks []*task.Task
}

// NewPool 创建任务池
func NewPool() *Pool {
	return &Pool{}
}

// SetAll 替换整个工作集 (运行开始时调用一次)
func (p *Pool) SetAll(tasks []*task.Task) {
	cloned := make([]*task.Task, 0, len(tasks))
	for _, t := range tasks {
		cloned = append(cloned, t.Clone())
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = cloned
}

// GetAll 返回全部任务的副本，保持插入顺序
func (p *Pool) GetAll() []*task.Task {
	return p.Filter(func(*task.Task) bool { return true })
}

// Find 按插入顺序返回第一个满足条件的任务副本
func (p *Pool) Find(pred func(*task.Task) bool) *task.Task {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.tasks {
		if pred(t) {
			return t.Clone()
		}
	}
	return nil
}

// Filter 按插入顺序返回所有满足条件的任务副本
func (p *Pool) Filter(pred func(*task.Task) bool) []*task.Task {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*task.Task, 0, len(p.tasks))
	for _, t := range p.tasks {
		if pred(t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// Count 满足条件的任务数量
func (p *Pool) Count(pred func(*task.Task) bool) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, t := range p.tasks {
		if pred(t) {
			n++
		}
	}
	return n
}

// Update 合并字段到指定任务，任务不存在时不做任何事并返回 false
func (p *Pool) Update(id string, upd TaskUpdate) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, t := range p.tasks {
		if t.ID() != id {
			continue
		}
		if upd.Status != nil {
			t.Status = *upd.Status
		}
		return true
	}
	return false
}

// Len 任务数量
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.tasks)
}

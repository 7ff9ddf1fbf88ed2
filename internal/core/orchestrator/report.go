package orchestrator

import (
	"time"

	"lss/internal/model/task"
)

// TaskResult 单个任务的运行结果
type TaskResult struct {
	TaskID   string        `json:"task_id"`
	Name     string        `json:"name"`
	Status   task.Status   `json:"status"`
	ExitCode *int          `json:"exit_code"`
	TimedOut bool          `json:"timed_out"`
	Verdict  string        `json:"verdict"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Report 一次 Job 运行的汇总
type Report struct {
	Queue     string        `json:"queue"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Results   []TaskResult  `json:"results"`
	Aborted   bool          `json:"aborted"`
}

// Succeeded 所有任务都已运行且状态为 done
func (r *Report) Succeeded(total int) bool {
	if r.Aborted || len(r.Results) != total {
		return false
	}
	for _, res := range r.Results {
		if res.Status != task.StatusDone {
			return false
		}
	}
	return true
}

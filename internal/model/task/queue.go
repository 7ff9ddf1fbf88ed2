package task

import (
	"errors"
	"fmt"
)

// Queue 有序任务集合，顺序即执行顺序
type Queue struct {
	Name       string
	NeedPlugin bool
	Tasks      []*Task
}

// NewQueue 逐个展开成员任务，第一个失败即中止构造
func NewQueue(desc QueueDescriptor) (*Queue, error) {
	if violations := ValidateQueue(desc); len(violations) > 0 {
		return nil, &ConfigValidationError{Subject: subjectName(desc.Name, "queue"), Violations: violations}
	}

	q := &Queue{
		Name:       desc.Name,
		NeedPlugin: desc.IsNeedPlugin,
		Tasks:      make([]*Task, 0, len(desc.Tasks)),
	}
	for i, td := range desc.Tasks {
		if td.BaseDir == "" {
			td.BaseDir = desc.BaseDir
		}
		t, err := NewTask(td)
		if err != nil {
			var cve *ConfigValidationError
			if errors.As(err, &cve) {
				// 字段前加上成员下标，方便定位
				prefixed := make([]Violation, 0, len(cve.Violations))
				for _, v := range cve.Violations {
					prefixed = append(prefixed, Violation{Field: fmt.Sprintf("tasks[%d].%s", i, v.Field), Message: v.Message})
				}
				return nil, &ConfigValidationError{Subject: subjectName(desc.Name, "queue"), Violations: prefixed}
			}
			return nil, fmt.Errorf("queue task %d: %w", i, err)
		}
		q.Tasks = append(q.Tasks, t)
	}
	return q, nil
}

// Package pluginapi 插件作者编译插件时依赖的公共类型
//
// Go 插件 (.so) 需要导出名为 Plugin 的变量:
//
//	var Plugin = pluginapi.Module{
//		Name: "notify",
//		Type: pluginapi.HookTaskAfterRun,
//		TaskAfterRun: func(ctx context.Context, hc pluginapi.HookContext) error { ... },
//	}
//
// 每个模块只能实现与 Type 对应的一个钩子。
package pluginapi

import (
	"context"
	"errors"
	"fmt"
)

// Hook 钩子名称
type Hook string

const (
	HookTaskBeforeRun  Hook = "taskBeforeRun"
	HookTaskAfterRun   Hook = "taskAfterRun"
	HookLogHandler     Hook = "logHandler"
	HookQueueBeforeRun Hook = "queueBeforeRun"
	HookQueueAfterRun  Hook = "queueAfterRun"
)

// Hooks 全部钩子，按调用时机排列
var Hooks = []Hook{HookQueueBeforeRun, HookTaskBeforeRun, HookLogHandler, HookTaskAfterRun, HookQueueAfterRun}

// Valid 是否为已知钩子
func (h Hook) Valid() bool {
	for _, k := range Hooks {
		if k == h {
			return true
		}
	}
	return false
}

// HookContext 钩子调用时的上下文信息
type HookContext struct {
	QueueName string
	TaskID    string
	TaskName  string
	ExitCode  *int   // 仅 taskAfterRun 有值
	Status    string // taskAfterRun 为任务终态，queueAfterRun 为 finished/aborted
}

// Func 生命周期钩子
type Func func(ctx context.Context, hc HookContext) error

// LogFunc 日志行钩子
type LogFunc func(ctx context.Context, hc HookContext, line string) error

// Module 插件模块
type Module struct {
	Name string
	Type Hook

	TaskBeforeRun  Func
	TaskAfterRun   Func
	LogHandler     LogFunc
	QueueBeforeRun Func
	QueueAfterRun  Func
}

// ErrInvalidModule 模块结构与声明不符
var ErrInvalidModule = errors.New("invalid plugin module")

func (m *Module) slots() map[Hook]bool {
	return map[Hook]bool{
		HookTaskBeforeRun:  m.TaskBeforeRun != nil,
		HookTaskAfterRun:   m.TaskAfterRun != nil,
		HookLogHandler:     m.LogHandler != nil,
		HookQueueBeforeRun: m.QueueBeforeRun != nil,
		HookQueueAfterRun:  m.QueueAfterRun != nil,
	}
}

// Validate 校验模块: 名称非空，声明类型与期望一致，只实现了对应的一个钩子
func (m *Module) Validate(expected Hook) error {
	if m == nil {
		return fmt.Errorf("%w: nil module", ErrInvalidModule)
	}
	if m.Name == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidModule)
	}
	if m.Type != expected {
		return fmt.Errorf("%w: module %q declares type %q, expected %q", ErrInvalidModule, m.Name, m.Type, expected)
	}
	for hook, set := range m.slots() {
		if hook == expected && !set {
			return fmt.Errorf("%w: module %q does not implement %s", ErrInvalidModule, m.Name, expected)
		}
		if hook != expected && set {
			return fmt.Errorf("%w: module %q implements %s besides %s", ErrInvalidModule, m.Name, hook, expected)
		}
	}
	return nil
}

// Invoke 调用模块声明的钩子，line 仅对 logHandler 有意义
func (m *Module) Invoke(ctx context.Context, hc HookContext, line string) error {
	var fn Func
	switch m.Type {
	case HookTaskBeforeRun:
		fn = m.TaskBeforeRun
	case HookTaskAfterRun:
		fn = m.TaskAfterRun
	case HookQueueBeforeRun:
		fn = m.QueueBeforeRun
	case HookQueueAfterRun:
		fn = m.QueueAfterRun
	case HookLogHandler:
		if m.LogHandler == nil {
			return fmt.Errorf("%w: module %q has no logHandler", ErrInvalidModule, m.Name)
		}
		return m.LogHandler(ctx, hc, line)
	}
	if fn == nil {
		return fmt.Errorf("%w: module %q has no %s", ErrInvalidModule, m.Name, m.Type)
	}
	return fn(ctx, hc)
}

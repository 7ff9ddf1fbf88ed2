package plugin

import (
	"context"
	"sort"

	"lss/pkg/pluginapi"
)

// HookTable 钩子名到模块的映射，未注册的钩子调用时静默跳过
// nil 表等同于空表
type HookTable struct {
	hooks map[pluginapi.Hook]*pluginapi.Module
}

// NewHookTable 创建空表
func NewHookTable() *HookTable {
	return &HookTable{hooks: make(map[pluginapi.Hook]*pluginapi.Module)}
}

func (t *HookTable) set(hook pluginapi.Hook, m *pluginapi.Module) {
	t.hooks[hook] = m
}

// Has 是否注册了该钩子
func (t *HookTable) Has(hook pluginapi.Hook) bool {
	if t == nil {
		return false
	}
	_, ok := t.hooks[hook]
	return ok
}

// Get 返回钩子对应的模块
func (t *HookTable) Get(hook pluginapi.Hook) (*pluginapi.Module, bool) {
	if t == nil {
		return nil, false
	}
	m, ok := t.hooks[hook]
	return m, ok
}

// Len 已注册钩子数量
func (t *HookTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.hooks)
}

// Names 已注册钩子名称 (排序后)
func (t *HookTable) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, 0, len(t.hooks))
	for h := range t.hooks {
		out = append(out, string(h))
	}
	sort.Strings(out)
	return out
}

// Call 调用生命周期钩子，未注册时返回 nil
func (t *HookTable) Call(ctx context.Context, hook pluginapi.Hook, hc pluginapi.HookContext) error {
	m, ok := t.Get(hook)
	if !ok {
		return nil
	}
	return m.Invoke(ctx, hc, "")
}

// LogLine 调用 logHandler 钩子，未注册时返回 nil
func (t *HookTable) LogLine(ctx context.Context, hc pluginapi.HookContext, line string) error {
	m, ok := t.Get(pluginapi.HookLogHandler)
	if !ok {
		return nil
	}
	return m.Invoke(ctx, hc, line)
}

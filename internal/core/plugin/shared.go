package plugin

import (
	"fmt"
	goplugin "plugin"

	"lss/internal/model/task"
	"lss/pkg/pluginapi"
)

// SymbolName Go 插件需要导出的变量名
const SymbolName = "Plugin"

// openShared 加载 Go 插件 (.so)，导出变量 Plugin 的类型必须是 pluginapi.Module
func openShared(path string) (*pluginapi.Module, error) {
	p, err := goplugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shared object: %w", err)
	}
	sym, err := p.Lookup(SymbolName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", task.ErrPluginNotFound, err)
	}
	switch m := sym.(type) {
	case *pluginapi.Module:
		return m, nil
	case **pluginapi.Module:
		return *m, nil
	default:
		return nil, fmt.Errorf("%w: symbol %s has type %T", task.ErrPluginShape, SymbolName, sym)
	}
}

package orchestrator

import (
	"lss/internal/config"
	"lss/internal/core/plugin"
	"lss/internal/core/pool"
	"lss/internal/pkg/logger"
)

// RunContext 一次调用 (CLI 运行或一次后端提交) 所需的全部组件，显式传递给各组件
type RunContext struct {
	Config  *config.Config
	Logger  *logger.LoggerManager
	Pool    *pool.Pool
	Manager *pool.Manager
	Plugins *plugin.Loader
	TempDir string
}

// NewRunContext 根据应用配置构造运行上下文
func NewRunContext(cfg *config.Config, lm *logger.LoggerManager) *RunContext {
	if lm == nil {
		lm = logger.NewNop()
	}
	maxConcurrency := 1
	tempDir := "./temp"
	pluginFile := plugin.DefaultDescriptorName
	if cfg != nil && cfg.Engine != nil {
		maxConcurrency = cfg.Engine.MaxConcurrency
		if cfg.Engine.TempDir != "" {
			tempDir = cfg.Engine.TempDir
		}
		if cfg.Engine.PluginFile != "" {
			pluginFile = cfg.Engine.PluginFile
		}
	}

	p := pool.NewPool()
	return &RunContext{
		Config:  cfg,
		Logger:  lm,
		Pool:    p,
		Manager: pool.NewManager(p, maxConcurrency, lm.Component("pool")),
		Plugins: plugin.NewLoader(pluginFile, lm.Component("plugin")),
		TempDir: tempDir,
	}
}

/**
 * 应用配置
 * @date: 2026.10.18
 * @description: lss 运行配置，负责日志、执行引擎、后端服务等配置项的定义与校验
 */
package config

import (
	"fmt"
	"time"
)

// Config 应用配置
type Config struct {
	// 应用配置
	App *AppConfig `yaml:"app" mapstructure:"app"`

	// 日志配置
	Log *LogConfig `yaml:"log" mapstructure:"log"`

	// 执行引擎配置
	Engine *EngineConfig `yaml:"engine" mapstructure:"engine"`

	// 后端服务配置
	Server *ServerConfig `yaml:"server" mapstructure:"server"`

	// 前端拉起后端时使用的配置
	Backend *BackendConfig `yaml:"backend" mapstructure:"backend"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`               // 应用名称
	Environment string `yaml:"environment" mapstructure:"environment"` // 运行环境
	Debug       bool   `yaml:"debug" mapstructure:"debug"`             // 调试模式
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`             // 日志级别 (debug/info/warn/error)
	Format     string `yaml:"format" mapstructure:"format"`           // 日志格式 (json/text)
	Output     string `yaml:"output" mapstructure:"output"`           // 日志输出 (stdout/stderr/file)
	FilePath   string `yaml:"file_path" mapstructure:"file_path"`     // 日志文件路径
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`       // 最大文件大小（MB）
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"` // 最大备份数
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`         // 最大保留天数
	Compress   bool   `yaml:"compress" mapstructure:"compress"`       // 是否压缩
	Caller     bool   `yaml:"caller" mapstructure:"caller"`           // 是否显示调用者信息
}

// EngineConfig 执行引擎配置
type EngineConfig struct {
	MaxConcurrency  int           `yaml:"max_concurrency" mapstructure:"max_concurrency"`     // 最大并发运行任务数
	TempDir         string        `yaml:"temp_dir" mapstructure:"temp_dir"`                   // 配置备份目录
	LogPollInterval time.Duration `yaml:"log_poll_interval" mapstructure:"log_poll_interval"` // 日志兜底轮询间隔，0 表示只依赖文件通知
	PluginFile      string        `yaml:"plugin_file" mapstructure:"plugin_file"`             // 插件描述文件名
}

// ServerConfig 后端服务配置
type ServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`                   // 监听地址
	Port         int           `yaml:"port" mapstructure:"port"`                   // 监听端口
	Mode         string        `yaml:"mode" mapstructure:"mode"`                   // 运行模式 (debug/release/test)
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`   // 读取超时时间
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"` // 写入超时时间
	QueueSize    int           `yaml:"queue_size" mapstructure:"queue_size"`       // 待执行提交的缓冲数量
}

// BackendConfig 前端视角的后端配置
type BackendConfig struct {
	Filename       string        `yaml:"filename" mapstructure:"filename"`               // 后端可执行文件，为空时使用自身
	StartupRetries int           `yaml:"startup_retries" mapstructure:"startup_retries"` // 等待后端存活的重试次数
	RetryInterval  time.Duration `yaml:"retry_interval" mapstructure:"retry_interval"`   // 重试间隔
}

// Address 后端监听地址
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BaseURL 前端访问后端的地址
func (s *ServerConfig) BaseURL() string {
	host := s.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, s.Port)
}

// Validate 校验并修正配置
func (c *Config) Validate() error {
	if c.Log == nil || c.Engine == nil || c.Server == nil || c.Backend == nil {
		return fmt.Errorf("config sections log/engine/server/backend are required")
	}
	if c.Engine.MaxConcurrency < 1 {
		c.Engine.MaxConcurrency = 1
	}
	if c.Engine.TempDir == "" {
		return fmt.Errorf("engine.temp_dir is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.QueueSize < 1 {
		c.Server.QueueSize = 1
	}
	return nil
}

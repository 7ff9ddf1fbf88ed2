/**
 * 执行引擎错误定义
 * @date: 2026.10.18
 * @description: 任务/队列执行过程中的错误分类，调用方通过 errors.As / errors.Is 判断处理方式
 */
package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid task status transition") // 非法状态流转
	ErrNoTaskAvailable   = errors.New("no task available for admission") // 准入门拒绝
	ErrTaskNotFound      = errors.New("task not found in pool")
	ErrPluginNotFound    = errors.New("plugin module not found")          // 插件不存在
	ErrPluginShape       = errors.New("plugin module shape mismatch")     // 插件结构与声明不符
	ErrUnknownJobType    = errors.New("unknown job type")
)

// Violation 单条校验失败信息
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ConfigValidationError 描述文件不完整或格式错误，属于致命错误，必须在任何进程启动前抛出
type ConfigValidationError struct {
	Subject    string      `json:"subject"`
	Violations []Violation `json:"violations"`
}

func (e *ConfigValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return fmt.Sprintf("invalid descriptor %q: %s", e.Subject, strings.Join(parts, "; "))
}

// HasField 判断是否包含指定字段的校验失败
func (e *ConfigValidationError) HasField(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// FileLocateError 日志文件定位失败，非致命，任务降级为不追踪日志
type FileLocateError struct {
	Folder string
	Method string
	Query  string
	Err    error
}

func (e *FileLocateError) Error() string {
	msg := fmt.Sprintf("locate log file in %s by %s", e.Folder, e.Method)
	if e.Query != "" {
		msg += fmt.Sprintf(" (%q)", e.Query)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg + ": no match"
}

func (e *FileLocateError) Unwrap() error { return e.Err }

// ProcessSpawnError 可执行文件无法启动，本次运行没有退出码
type ProcessSpawnError struct {
	Executable string
	Err        error
}

func (e *ProcessSpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Executable, e.Err)
}

func (e *ProcessSpawnError) Unwrap() error { return e.Err }

// ProcessTimeoutError 子进程超时被强制结束
type ProcessTimeoutError struct {
	Task    string
	PID     int
	Timeout time.Duration
}

func (e *ProcessTimeoutError) Error() string {
	return fmt.Sprintf("task %s (pid %d) exceeded timeout %s and was killed", e.Task, e.PID, e.Timeout)
}

// ParamIOError 备份或写入参数失败，致命，整次运行中止
type ParamIOError struct {
	Op   string // backup / write
	Path string
	Err  error
}

func (e *ParamIOError) Error() string {
	return fmt.Sprintf("param %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ParamIOError) Unwrap() error { return e.Err }

// RecoveryError 配置恢复失败，需要人工介入，备份文件会被保留
type RecoveryError struct {
	BackupPath string
	ConfigPath string
	Err        error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("restore %s from backup %s failed, manual intervention required: %v",
		e.ConfigPath, e.BackupPath, e.Err)
}

func (e *RecoveryError) Unwrap() error { return e.Err }

// PluginLoadError 单个钩子加载失败，只影响该钩子
type PluginLoadError struct {
	Hook string
	Path string
	Err  error
}

func (e *PluginLoadError) Error() string {
	return fmt.Sprintf("load plugin hook %q from %s: %v", e.Hook, e.Path, e.Err)
}

func (e *PluginLoadError) Unwrap() error { return e.Err }

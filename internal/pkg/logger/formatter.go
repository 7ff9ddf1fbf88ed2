// 结构化日志辅助函数
package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// FormatTimestamp 格式化时间戳为统一的毫秒精度格式
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05.000")
}

// NowFormatted 返回当前时间的格式化字符串
func NowFormatted() string {
	return FormatTimestamp(time.Now())
}

// LogType 日志类型枚举
type LogType string

const (
	// AccessLog 访问日志 - 记录后端 HTTP 请求
	AccessLog LogType = "access"
	// SystemLog 系统日志 - 记录启动、关闭、配置变更
	SystemLog LogType = "system"
	// TaskLog 任务日志 - 记录任务生命周期
	TaskLog LogType = "task"
	// PluginLog 插件日志 - 记录插件加载与调用
	PluginLog LogType = "plugin"
	// ErrorLog 错误日志
	ErrorLog LogType = "error"
)

// LogTaskEvent 记录任务生命周期事件
func LogTaskEvent(entry *logrus.Entry, taskID, taskName, event string, fields logrus.Fields) {
	f := logrus.Fields{
		"type":      TaskLog,
		"task_id":   taskID,
		"task_name": taskName,
		"event":     event,
		"timestamp": NowFormatted(),
	}
	for k, v := range fields {
		f[k] = v
	}
	entry.WithFields(f).Info(event)
}

// LogTaskError 记录任务错误
func LogTaskError(entry *logrus.Entry, taskID, taskName, event string, err error) {
	entry.WithFields(logrus.Fields{
		"type":      ErrorLog,
		"task_id":   taskID,
		"task_name": taskName,
		"event":     event,
		"timestamp": NowFormatted(),
	}).WithError(err).Error(event)
}

// LogPluginOperation 记录插件操作
func LogPluginOperation(entry *logrus.Entry, hook, path, operation, result string, err error) {
	e := entry.WithFields(logrus.Fields{
		"type":      PluginLog,
		"hook":      hook,
		"path":      path,
		"operation": operation,
		"result":    result,
		"timestamp": NowFormatted(),
	})
	if err != nil {
		e.WithError(err).Warn("plugin " + operation + " failed")
		return
	}
	e.Info("plugin " + operation)
}

// LogSystemEvent 记录系统事件
func LogSystemEvent(entry *logrus.Entry, event, message string, level logrus.Level, extra map[string]interface{}) {
	f := logrus.Fields{
		"type":      SystemLog,
		"event":     event,
		"timestamp": NowFormatted(),
	}
	for k, v := range extra {
		f[k] = v
	}
	entry.WithFields(f).Log(level, message)
}

// LogAccessRequest 记录 HTTP 访问日志
func LogAccessRequest(entry *logrus.Entry, c *gin.Context, latency time.Duration) {
	e := entry.WithFields(logrus.Fields{
		"type":          AccessLog,
		"method":        c.Request.Method,
		"path":          c.Request.URL.Path,
		"query":         c.Request.URL.RawQuery,
		"status_code":   c.Writer.Status(),
		"response_time": latency.Milliseconds(),
		"client_ip":     c.ClientIP(),
		"user_agent":    c.Request.UserAgent(),
		"response_size": c.Writer.Size(),
		"timestamp":     NowFormatted(),
	})
	switch {
	case c.Writer.Status() >= 500:
		e.Error("HTTP request")
	case c.Writer.Status() >= 400:
		e.Warn("HTTP request")
	default:
		e.Info("HTTP request")
	}
}

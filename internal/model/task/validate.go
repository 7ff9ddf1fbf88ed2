package task

import (
	"fmt"
	"strings"
)

// ValidateTask 校验任务描述，返回全部违反的约束，空切片表示通过
func ValidateTask(desc TaskDescriptor) []Violation {
	var vs []Violation
	add := func(field, format string, args ...interface{}) {
		vs = append(vs, Violation{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if desc.Type != DescriptorTypeTask {
		add("type", "must be %q, got %q", DescriptorTypeTask, desc.Type)
	}
	if strings.TrimSpace(desc.ExecutableFilePath) == "" {
		add("executableFilePath", "is required")
	}
	if desc.Timeout < 0 {
		add("timeout", "must be >= 0, got %d", desc.Timeout)
	}

	// isNeedParam 依赖 taskParamConfig
	if desc.IsNeedParam && desc.TaskParamConfig == nil {
		add("taskParamConfig", "is required when isNeedParam is true")
	}
	if pc := desc.TaskParamConfig; pc != nil {
		if pc.ParamFilePath == "" {
			add("taskParamConfig.paramFilePath", "is required")
		}
		if pc.ConfigFilePath == "" {
			add("taskParamConfig.configFilePath", "is required")
		}
	}

	// isNeedLog 依赖 taskLogConfig
	if desc.IsNeedLog && desc.TaskLogConfig == nil {
		add("taskLogConfig", "is required when isNeedLog is true")
	}
	if lc := desc.TaskLogConfig; lc != nil {
		vs = append(vs, validateLog(lc)...)
	}
	return vs
}

func validateLog(lc *LogDescriptor) []Violation {
	var vs []Violation
	add := func(field, format string, args ...interface{}) {
		vs = append(vs, Violation{Field: "taskLogConfig." + field, Message: fmt.Sprintf(format, args...)})
	}

	source := LogSource(lc.LogSource)
	switch source {
	case "", LogSourceFile, LogSourceStdout:
	default:
		add("logSource", "must be one of file, stdout, got %q", lc.LogSource)
	}

	method := SearchMethod(lc.LogFileSearchMethod)
	switch method {
	case SearchByFilename:
		if lc.LogFileName == "" {
			add("logFileName", "is required when logFileSearchMethod is filename")
		}
	case SearchByField:
		if lc.LogFilenameField == "" {
			add("logFilenameField", "is required when logFileSearchMethod is field")
		}
	case SearchByLatest:
	case "":
		// stdout 模式不需要定位文件
		if source != LogSourceStdout {
			add("logFileSearchMethod", "is required when logSource is file")
		}
	default:
		add("logFileSearchMethod", "must be one of filename, latest, field, got %q", lc.LogFileSearchMethod)
	}

	if source != LogSourceStdout && lc.LogFileFolderPath == "" {
		add("logFileFolderPath", "is required when logSource is file")
	}

	if lc.LogTimeFormat != "" {
		if lc.LogTimeSectionStart < 0 || lc.LogTimeSectionEnd <= lc.LogTimeSectionStart {
			add("logTimeSectionEnd", "time section [%d,%d) is empty or negative",
				lc.LogTimeSectionStart, lc.LogTimeSectionEnd)
		}
	}
	return vs
}

// ValidateQueue 只校验队列自身字段，成员任务在 NewQueue 中逐个校验
func ValidateQueue(desc QueueDescriptor) []Violation {
	var vs []Violation
	if desc.Type != DescriptorTypeQueue {
		vs = append(vs, Violation{Field: "type", Message: fmt.Sprintf("must be %q, got %q", DescriptorTypeQueue, desc.Type)})
	}
	if len(desc.Tasks) == 0 {
		vs = append(vs, Violation{Field: "tasks", Message: "queue must contain at least one task"})
	}
	return vs
}

package task

import (
	"encoding/json"
	"fmt"
)

// 描述文件类型标识
const (
	DescriptorTypeTask  = "task"
	DescriptorTypeQueue = "queue"
)

// TaskDescriptor 任务描述文件 (JSON)
type TaskDescriptor struct {
	Type               string           `json:"type"`
	Name               string           `json:"name"`
	ExecutableFilePath string           `json:"executableFilePath"`
	IsNeedParam        bool             `json:"isNeedParam"`
	TaskParamConfig    *ParamDescriptor `json:"taskParamConfig,omitempty"`
	IsNeedLog          bool             `json:"isNeedLog"`
	TaskLogConfig      *LogDescriptor   `json:"taskLogConfig,omitempty"`
	Timeout            int              `json:"timeout"` // 单位：秒，0 表示不限时
	TrackChildProcess  bool             `json:"trackChildProcess"`
	IsNeedPlugin       bool             `json:"isNeedPlugin"`

	// 描述文件所在目录，用于解析相对路径，不参与序列化
	BaseDir string `json:"baseDir,omitempty"`
}

// ParamDescriptor 参数注入配置
type ParamDescriptor struct {
	ParamFilePath  string `json:"paramFilePath"`
	ConfigFilePath string `json:"configFilePath"`
}

// LogDescriptor 日志追踪配置
type LogDescriptor struct {
	LogSource           string  `json:"logSource,omitempty"` // file / stdout，缺省为 file
	LogFileSearchMethod string  `json:"logFileSearchMethod"` // filename / latest / field
	LogFileFolderPath   string  `json:"logFileFolderPath"`
	LogFileName         string  `json:"logFileName,omitempty"`
	LogFilenameField    string  `json:"logFilenameField,omitempty"`
	LogTimeSectionStart int     `json:"logTimeSectionStart"`
	LogTimeSectionEnd   int     `json:"logTimeSectionEnd"`
	LogTimeFormat       string  `json:"logTimeFormat"`
	SuccessLog          Markers `json:"successLog"`
	FailedLog           Markers `json:"failedLog"`
}

// QueueDescriptor 队列描述文件 (JSON)，也是后端 /submit 接收的归一化载荷
type QueueDescriptor struct {
	Type         string           `json:"type"`
	Name         string           `json:"name"`
	IsNeedPlugin bool             `json:"isNeedPlugin"`
	Tasks        []TaskDescriptor `json:"tasks"`

	BaseDir string `json:"baseDir,omitempty"`
}

// Markers 日志标记，描述文件中既可以是单个字符串也可以是字符串数组
type Markers []string

// UnmarshalJSON 兼容 string 与 []string 两种写法
func (m *Markers) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = nil
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*m = nil
		} else {
			*m = Markers{single}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("log marker must be a string or an array of strings: %w", err)
	}
	*m = Markers(list)
	return nil
}

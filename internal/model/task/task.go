/**
 * 任务实体模型
 * @date: 2026.10.18
 * @description: 任务/任务状态/日志与参数子配置定义，任务在构造时完成字段依赖校验
 */
package task

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Status 任务状态
type Status int

const (
	StatusInit             Status = iota // 初始化，等待准入
	StatusRunning                        // 运行中
	StatusErrorWhenRunning               // 运行中出现错误标记
	StatusRetry                          // 等待重新准入
	StatusDone                           // 完成 (终态)
	StatusError                          // 失败 (终态)
)

var statusNames = map[Status]string{
	StatusInit:             "init",
	StatusRunning:          "running",
	StatusErrorWhenRunning: "errorwhenrunning",
	StatusRetry:            "retry",
	StatusDone:             "done",
	StatusError:            "error",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText 状态在 JSON 中以名称输出
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText 按名称解析状态
func (s *Status) UnmarshalText(text []byte) error {
	for st, name := range statusNames {
		if name == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown task status %q", text)
}

// IsTerminal done/error 为终态，不可回退
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusError
}

// IsActive 处于活跃流转中的状态
func (s Status) IsActive() bool {
	return s == StatusRunning || s == StatusErrorWhenRunning || s == StatusRetry
}

// 合法的状态流转表
var transitions = map[Status][]Status{
	StatusInit:             {StatusRunning},
	StatusRunning:          {StatusDone, StatusError, StatusErrorWhenRunning},
	StatusErrorWhenRunning: {StatusRunning, StatusDone, StatusError},
	StatusRetry:            {StatusRunning},
}

// CanTransition 判断 from -> to 是否合法
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LogSource 日志来源
type LogSource string

const (
	LogSourceFile   LogSource = "file"
	LogSourceStdout LogSource = "stdout"
)

// SearchMethod 日志文件定位方式
type SearchMethod string

const (
	SearchByFilename SearchMethod = "filename"
	SearchByLatest   SearchMethod = "latest"
	SearchByField    SearchMethod = "field"
)

// ParamConfig 参数注入配置，路径均已解析为绝对路径
type ParamConfig struct {
	ParamFilePath  string
	ConfigFilePath string
}

// LogConfig 日志追踪配置
type LogConfig struct {
	Source           LogSource
	SearchMethod     SearchMethod
	FolderPath       string
	FileName         string
	FilenameField    string
	TimeSectionStart int
	TimeSectionEnd   int
	TimeFormat       string
	SuccessLog       []string
	FailedLog        []string
}

// Config 任务的不可变配置
type Config struct {
	Name              string
	ExecutablePath    string
	NeedParam         bool
	ParamConfig       *ParamConfig
	NeedLog           bool
	LogConfig         *LogConfig
	Timeout           time.Duration // 0 表示不限时
	TrackChildProcess bool
	NeedPlugin        bool
	BaseDir           string // 描述文件所在目录
}

// Task 一次可执行文件调用及其日志/参数/超时配置
type Task struct {
	id     string
	Config Config
	Status Status
}

// NewTask 校验描述并构造任务，初始状态为 init
func NewTask(desc TaskDescriptor) (*Task, error) {
	if violations := ValidateTask(desc); len(violations) > 0 {
		return nil, &ConfigValidationError{Subject: subjectName(desc.Name, "task"), Violations: violations}
	}

	cfg := Config{
		Name:              desc.Name,
		ExecutablePath:    desc.ExecutableFilePath,
		NeedParam:         desc.IsNeedParam,
		NeedLog:           desc.IsNeedLog,
		Timeout:           time.Duration(desc.Timeout) * time.Second,
		TrackChildProcess: desc.TrackChildProcess,
		NeedPlugin:        desc.IsNeedPlugin,
		BaseDir:           desc.BaseDir,
	}
	if desc.TaskParamConfig != nil {
		cfg.ParamConfig = &ParamConfig{
			ParamFilePath:  resolvePath(desc.BaseDir, desc.TaskParamConfig.ParamFilePath),
			ConfigFilePath: resolvePath(desc.BaseDir, desc.TaskParamConfig.ConfigFilePath),
		}
	}
	if lc := desc.TaskLogConfig; lc != nil {
		source := LogSource(lc.LogSource)
		if source == "" {
			source = LogSourceFile
		}
		cfg.LogConfig = &LogConfig{
			Source:           source,
			SearchMethod:     SearchMethod(lc.LogFileSearchMethod),
			FolderPath:       resolvePath(desc.BaseDir, lc.LogFileFolderPath),
			FileName:         lc.LogFileName,
			FilenameField:    lc.LogFilenameField,
			TimeSectionStart: lc.LogTimeSectionStart,
			TimeSectionEnd:   lc.LogTimeSectionEnd,
			TimeFormat:       lc.LogTimeFormat,
			SuccessLog:       append([]string(nil), lc.SuccessLog...),
			FailedLog:        append([]string(nil), lc.FailedLog...),
		}
	}

	return &Task{
		id:     uuid.NewString(),
		Config: cfg,
		Status: StatusInit,
	}, nil
}

// ID 任务唯一标识，分配后不再变化
func (t *Task) ID() string {
	return t.id
}

// Name 任务名称，未命名时使用 id
func (t *Task) Name() string {
	if t.Config.Name != "" {
		return t.Config.Name
	}
	return t.id
}

// Clone 深拷贝，返回给调用方的副本修改不会影响任务池
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	if t.Config.ParamConfig != nil {
		pc := *t.Config.ParamConfig
		c.Config.ParamConfig = &pc
	}
	if t.Config.LogConfig != nil {
		lc := *t.Config.LogConfig
		lc.SuccessLog = append([]string(nil), t.Config.LogConfig.SuccessLog...)
		lc.FailedLog = append([]string(nil), t.Config.LogConfig.FailedLog...)
		c.Config.LogConfig = &lc
	}
	return &c
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

func subjectName(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

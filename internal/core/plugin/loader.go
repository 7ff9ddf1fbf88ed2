/**
 * 插件钩子加载器
 * @date: 2026.10.18
 * @description: 读取任务/队列描述文件同目录下的插件描述，逐个加载并校验钩子模块，
 *               加载失败只影响对应钩子，其余钩子照常加载
 */
package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"lss/internal/model/task"
	"lss/internal/pkg/logger"
	"lss/pkg/pluginapi"
)

// DefaultDescriptorName 插件描述文件默认名称
const DefaultDescriptorName = "plugin.json"

// Opener 按文件类型加载模块
type Opener func(path string) (*pluginapi.Module, error)

// Loader 插件加载器
type Loader struct {
	descriptorName string
	openers        map[string]Opener
	log            *logrus.Entry
}

// NewLoader 创建加载器，descriptorName 为空时使用 plugin.json
func NewLoader(descriptorName string, log *logrus.Entry) *Loader {
	if descriptorName == "" {
		descriptorName = DefaultDescriptorName
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	l := &Loader{descriptorName: descriptorName, log: log}
	l.openers = map[string]Opener{
		".so":   openShared,
		".json": l.openScript,
		".yaml": l.openScript,
		".yml":  l.openScript,
	}
	return l
}

// RegisterOpener 注册其他扩展名的加载方式
func (l *Loader) RegisterOpener(ext string, opener Opener) {
	l.openers[strings.ToLower(ext)] = opener
}

// DescriptorPath 任务/队列描述文件对应的插件描述文件路径
func (l *Loader) DescriptorPath(jobPath string) string {
	return filepath.Join(filepath.Dir(jobPath), l.descriptorName)
}

// Load 加载 jobPath 同目录下插件描述中声明的全部钩子
// 描述文件缺失或无法解析时返回空表
func (l *Loader) Load(jobPath string) *HookTable {
	return l.loadDescriptor(l.DescriptorPath(jobPath))
}

// LoadDir 加载目录下插件描述中声明的全部钩子
func (l *Loader) LoadDir(dir string) *HookTable {
	return l.loadDescriptor(filepath.Join(dir, l.descriptorName))
}

func (l *Loader) loadDescriptor(descPath string) *HookTable {
	table := NewHookTable()

	data, err := os.ReadFile(descPath)
	if err != nil {
		l.log.WithError(err).WithField("path", descPath).Warn("plugin descriptor unavailable, no hooks loaded")
		return table
	}

	var entries map[string]string
	if err := decodeManifest(descPath, data, &entries); err != nil {
		l.log.WithError(err).WithField("path", descPath).Warn("plugin descriptor unparseable, no hooks loaded")
		return table
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	baseDir := filepath.Dir(descPath)
	for _, name := range names {
		hook := pluginapi.Hook(name)
		path := entries[name]
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		module, err := l.loadOne(hook, path)
		if err != nil {
			loadErr := &task.PluginLoadError{Hook: name, Path: path, Err: err}
			logger.LogPluginOperation(l.log, name, path, "load", "rejected", loadErr)
			continue
		}
		table.set(hook, module)
		logger.LogPluginOperation(l.log, name, path, "load", "loaded", nil)
	}
	return table
}

func (l *Loader) loadOne(hook pluginapi.Hook, path string) (*pluginapi.Module, error) {
	if !hook.Valid() {
		return nil, fmt.Errorf("%w: unknown hook %q", task.ErrPluginShape, hook)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", task.ErrPluginNotFound, err)
		}
		return nil, err
	}

	opener, ok := l.openers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported plugin file type %q", task.ErrPluginShape, filepath.Ext(path))
	}
	module, err := opener(path)
	if err != nil {
		return nil, err
	}
	if err := module.Validate(hook); err != nil {
		return nil, fmt.Errorf("%w: %v", task.ErrPluginShape, err)
	}
	return module, nil
}

// decodeManifest .json 文件按 JSON 解析，其余按 YAML 解析
func decodeManifest(path string, data []byte, v interface{}) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

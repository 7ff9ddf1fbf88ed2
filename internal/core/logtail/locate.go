package logtail

import (
	"os"
	"path/filepath"
	"strings"

	"lss/internal/model/task"
)

// Locate 按配置的查找方式在目录中定位日志文件
// filename: 文件名完全匹配; field: 去掉扩展名后包含关键字; latest: 修改时间最新 (并列时取先遇到的)
func Locate(cfg *task.LogConfig) (string, error) {
	query := ""
	switch cfg.SearchMethod {
	case task.SearchByFilename:
		query = cfg.FileName
	case task.SearchByField:
		query = cfg.FilenameField
	}
	locateErr := &task.FileLocateError{Folder: cfg.FolderPath, Method: string(cfg.SearchMethod), Query: query}

	entries, err := os.ReadDir(cfg.FolderPath)
	if err != nil {
		locateErr.Err = err
		return "", locateErr
	}

	var (
		found  string
		latest int64
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch cfg.SearchMethod {
		case task.SearchByFilename:
			if name == cfg.FileName {
				return filepath.Join(cfg.FolderPath, name), nil
			}
		case task.SearchByField:
			if cfg.FilenameField != "" && strings.Contains(strings.TrimSuffix(name, filepath.Ext(name)), cfg.FilenameField) {
				return filepath.Join(cfg.FolderPath, name), nil
			}
		case task.SearchByLatest:
			info, err := entry.Info()
			if err != nil {
				// 文件在遍历期间被删除
				continue
			}
			if mtime := info.ModTime().UnixNano(); found == "" || mtime > latest {
				found, latest = name, mtime
			}
		}
	}

	if found == "" {
		return "", locateErr
	}
	return filepath.Join(cfg.FolderPath, found), nil
}

/**
 * 参数注入辅助
 * @date: 2026.10.18
 * @description: 在一次任务运行前后完成 备份 -> 合并写入 -> (运行) -> 恢复，保证配置文件运行后回到原样
 */
package param

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lss/internal/model/task"
)

// Helper 单次运行的参数注入辅助，配置文件在 备份 到 恢复 期间由该实例独占
type Helper struct {
	configPath string
	paramPath  string
	backupPath string
	log        *logrus.Entry
}

// NewHelper 创建参数注入辅助，备份文件名在创建时确定
func NewHelper(cfg *task.ParamConfig, tempDir string, log *logrus.Entry) *Helper {
	id := uuid.New()
	name := fmt.Sprintf("taskconfig_%d_%s.bak", time.Now().UnixMilli(), hex.EncodeToString(id[:4]))
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Helper{
		configPath: cfg.ConfigFilePath,
		paramPath:  cfg.ParamFilePath,
		backupPath: filepath.Join(tempDir, name),
		log:        log,
	}
}

// BackupPath 备份文件路径
func (h *Helper) BackupPath() string {
	return h.backupPath
}

// Backup 把当前配置文件逐字节复制到备份文件
func (h *Helper) Backup() error {
	if err := os.MkdirAll(filepath.Dir(h.backupPath), 0755); err != nil {
		return &task.ParamIOError{Op: "backup", Path: h.backupPath, Err: err}
	}
	if err := copyFile(h.configPath, h.backupPath); err != nil {
		return &task.ParamIOError{Op: "backup", Path: h.configPath, Err: err}
	}
	h.log.WithFields(logrus.Fields{"config": h.configPath, "backup": h.backupPath}).Debug("config backed up")
	return nil
}

// Write 把参数文件深度合并进配置文件并写回
// 冲突时参数优先，对象递归合并，数组整体替换
func (h *Helper) Write() error {
	config, err := readJSON(h.configPath)
	if err != nil {
		return &task.ParamIOError{Op: "write", Path: h.configPath, Err: err}
	}
	params, err := readJSON(h.paramPath)
	if err != nil {
		return &task.ParamIOError{Op: "write", Path: h.paramPath, Err: err}
	}

	data, err := json.MarshalIndent(Merge(config, params), "", "  ")
	if err != nil {
		return &task.ParamIOError{Op: "write", Path: h.configPath, Err: err}
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(h.configPath); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(h.configPath, data, mode); err != nil {
		return &task.ParamIOError{Op: "write", Path: h.configPath, Err: err}
	}
	h.log.WithFields(logrus.Fields{"config": h.configPath, "param": h.paramPath}).Debug("params merged into config")
	return nil
}

// Recovery 用备份还原配置文件，只有还原成功后才删除备份
func (h *Helper) Recovery() error {
	if _, err := os.Stat(h.backupPath); err != nil {
		return &task.RecoveryError{BackupPath: h.backupPath, ConfigPath: h.configPath, Err: err}
	}
	if err := copyFile(h.backupPath, h.configPath); err != nil {
		return &task.RecoveryError{BackupPath: h.backupPath, ConfigPath: h.configPath, Err: err}
	}
	if err := os.Remove(h.backupPath); err != nil {
		// 配置已还原，残留的备份文件不影响后续任务
		h.log.WithError(err).WithField("backup", h.backupPath).Warn("remove backup failed")
	}
	h.log.WithField("config", h.configPath).Debug("config restored")
	return nil
}

func readJSON(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), errors.New("trailing data after JSON value"))
	}
	return v, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

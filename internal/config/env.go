package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvManager 环境变量管理器
type EnvManager struct {
	prefix string // 环境变量前缀
}

// NewEnvManager 创建环境变量管理器
func NewEnvManager(prefix string) *EnvManager {
	if prefix == "" {
		prefix = "LSS"
	}
	return &EnvManager{prefix: prefix}
}

// LoadEnvFiles 加载 .env 文件，文件不存在时忽略；已存在的环境变量不会被覆盖
func (em *EnvManager) LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// GetString 获取字符串类型环境变量
func (em *EnvManager) GetString(key, defaultValue string) string {
	value := os.Getenv(em.buildEnvKey(key))
	if value == "" {
		return defaultValue
	}
	return value
}

// GetInt 获取整数类型环境变量
func (em *EnvManager) GetInt(key string, defaultValue int) int {
	value := os.Getenv(em.buildEnvKey(key))
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// buildEnvKey 构建环境变量键名 (engine.temp_dir -> LSS_ENGINE_TEMP_DIR)
func (em *EnvManager) buildEnvKey(key string) string {
	key = strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
	return em.prefix + "_" + key
}

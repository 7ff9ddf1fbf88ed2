package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// ConfigLoader 配置加载器
type ConfigLoader struct {
	configFile string // 显式指定的配置文件，为空时按搜索路径查找
	searchDirs []string
	envPrefix  string
	viper      *viper.Viper
	env        *EnvManager
	found      bool
}

// NewConfigLoader 创建配置加载器
func NewConfigLoader(configFile, envPrefix string, searchDirs ...string) *ConfigLoader {
	if envPrefix == "" {
		envPrefix = "LSS"
	}
	if len(searchDirs) == 0 {
		searchDirs = []string{"./configs", "."}
	}
	return &ConfigLoader{
		configFile: configFile,
		searchDirs: searchDirs,
		envPrefix:  envPrefix,
		viper:      viper.New(),
		env:        NewEnvManager(envPrefix),
	}
}

// LoadConfig 加载配置：默认值 < 配置文件 < 环境变量
// 找不到配置文件不算错误，直接使用默认配置
func (cl *ConfigLoader) LoadConfig() (*Config, error) {
	if err := cl.env.LoadEnvFiles(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cl.viper.SetConfigType("yaml")
	cl.viper.SetEnvPrefix(cl.envPrefix)
	cl.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cl.viper.AutomaticEnv()

	cl.setDefaults()

	if err := cl.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	var config Config
	if err := cl.viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &config, nil
}

// loadConfigFile 加载配置文件
func (cl *ConfigLoader) loadConfigFile() error {
	if cl.configFile == "" {
		cl.configFile = cl.env.GetString("config_path", "")
	}

	if cl.configFile != "" {
		cl.viper.SetConfigFile(cl.configFile)
	} else {
		for _, dir := range cl.searchDirs {
			cl.viper.AddConfigPath(dir)
		}
		cl.viper.SetConfigName("config")
	}

	if err := cl.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			cl.found = false
			return nil
		}
		return err
	}
	cl.found = true
	return nil
}

// setDefaults 设置默认值
func (cl *ConfigLoader) setDefaults() {
	// App默认值
	cl.viper.SetDefault("app.name", "lss")
	cl.viper.SetDefault("app.environment", "development")
	cl.viper.SetDefault("app.debug", false)

	// 日志默认值
	cl.viper.SetDefault("log.level", "info")
	cl.viper.SetDefault("log.format", "text")
	cl.viper.SetDefault("log.output", "stdout")
	cl.viper.SetDefault("log.file_path", "./logs/lss.log")
	cl.viper.SetDefault("log.max_size", 10)
	cl.viper.SetDefault("log.max_backups", 7)
	cl.viper.SetDefault("log.max_age", 28)
	cl.viper.SetDefault("log.compress", false)
	cl.viper.SetDefault("log.caller", false)

	// 执行引擎默认值
	cl.viper.SetDefault("engine.max_concurrency", 1)
	cl.viper.SetDefault("engine.temp_dir", "./temp")
	cl.viper.SetDefault("engine.log_poll_interval", "0s")
	cl.viper.SetDefault("engine.plugin_file", "plugin.json")

	// 后端服务默认值
	cl.viper.SetDefault("server.host", "127.0.0.1")
	cl.viper.SetDefault("server.port", 17480)
	cl.viper.SetDefault("server.mode", "release")
	cl.viper.SetDefault("server.read_timeout", "30s")
	cl.viper.SetDefault("server.write_timeout", "30s")
	cl.viper.SetDefault("server.queue_size", 16)

	// 前端默认值
	cl.viper.SetDefault("backend.filename", "")
	cl.viper.SetDefault("backend.startup_retries", 5)
	cl.viper.SetDefault("backend.retry_interval", "1s")
}

// GetConfigPath 获取实际使用的配置文件路径，未找到时为空
func (cl *ConfigLoader) GetConfigPath() string {
	if !cl.found {
		return ""
	}
	return cl.viper.ConfigFileUsed()
}

// Found 是否找到了配置文件
func (cl *ConfigLoader) Found() bool {
	return cl.found
}

// LoadConfig 使用默认搜索路径加载配置
func LoadConfig(configFile string) (*Config, *ConfigLoader, error) {
	loader := NewConfigLoader(configFile, "LSS")
	cfg, err := loader.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

/*
 * @date: 2026.10.18
 * @description: Cobra Root Command 定义
 */

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"lss/internal/config"
	"lss/internal/pkg/logger"
)

var errNoCommand = errors.New("a command is required, see usage above")

// cliState 根命令解析出的全局状态，由 PersistentPreRunE 填充后交给子命令
type cliState struct {
	cfgFile  string
	logLevel string

	cfg    *config.Config
	loader *config.ConfigLoader
	lm     *logger.LoggerManager
}

// NewRootCmd 构造完整命令树
func NewRootCmd() *cobra.Command {
	st := &cliState{}

	rootCmd := &cobra.Command{
		Use:   "lss",
		Short: "lss 本地任务/队列执行引擎",
		Long: `lss 负责在本机上运行单个任务或任务队列：
注入参数、追踪日志判定结果、执行插件钩子，并在结束后恢复配置。

示例:
  1.直接运行描述文件
	lss run ./jobs/nightly.json
  2.提交到后台执行 (后端未运行时会自动拉起)
	lss run ./jobs/nightly.json --backend
  3.启动后端服务
	lss serve --config ./configs/config.yaml
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return errNoCommand
		},
		// PersistentPreRunE: 全局初始化逻辑，确保所有子命令都能使用配置和日志
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if st.lm != nil {
				_ = st.lm.Close()
			}
		},
	}

	// 全局 Flag
	rootCmd.PersistentFlags().StringVar(&st.cfgFile, "config", "", "配置文件路径 (默认: ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "日志级别 (debug, info, warn, error)")

	// 注册子命令
	rootCmd.AddCommand(newRunCmd(st))
	rootCmd.AddCommand(newServeCmd(st))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func Execute() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\n[FATAL] lss crashed unexpectedly: %v\n", r)
			os.Exit(1)
		}
	}()

	if err := NewRootCmd().Execute(); err != nil {
		pterm.Error.WithWriter(os.Stderr).Println(err)
		os.Exit(1)
	}
}

// init 加载配置并初始化日志，--log-level 优先于配置文件
func (st *cliState) init(cmd *cobra.Command) error {
	cfg, loader, err := config.LoadConfig(st.cfgFile)
	if err != nil {
		return err
	}
	if st.logLevel != "" {
		cfg.Log.Level = st.logLevel
	}

	// 配置 pterm
	switch cfg.Log.Level {
	case "debug":
		pterm.EnableDebugMessages()
	case "info":
		pterm.DisableDebugMessages()
	case "warn", "error", "fatal":
		pterm.DisableDebugMessages()
		pterm.Info = *pterm.Info.WithWriter(io.Discard)
	}

	lm, err := logger.InitLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	if !loader.Found() {
		lm.Component("cli").Warn("config file not found, using defaults")
	}

	st.cfg, st.loader, st.lm = cfg, loader, lm
	return nil
}
